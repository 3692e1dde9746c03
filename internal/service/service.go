// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import "go.opentelemetry.io/otel"

// Service is implemented by every component the readiness probe checks.
type Service interface {
	ServiceReady() bool
}

// Pipeline stage names used in logs and spans.
const (
	StageVerify     = "verify"
	StageCredential = "credential"
	StageFetch      = "fetch"
	StageClassify   = "classify"
	StageNotify     = "notify"
	StagePublish    = "publish"
)

var tracer = otel.Tracer("github.com/linuxfoundation/lfx-v2-attendance-service/internal/service")
