// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// ReportEventSender publishes attendance pipeline events.
type ReportEventSender interface {
	SendReportProcessed(ctx context.Context, msg models.ReportProcessedMessage) error
}
