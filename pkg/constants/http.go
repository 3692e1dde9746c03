// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

const (
	// RequestIDHeader is the header name for the request ID
	RequestIDHeader string = "X-REQUEST-ID"

	// ZoomSignatureHeader carries the webhook signature, "v0=<hex>"
	ZoomSignatureHeader string = "x-zm-signature"

	// ZoomRequestTimestampHeader carries the timestamp the signature covers
	ZoomRequestTimestampHeader string = "x-zm-request-timestamp"

	// ContentTypeHeader is the header name for the content type
	ContentTypeHeader string = "Content-Type"
)

// HTTP routes served by the attendance API.
const (
	WebhookPath = "/webhook"
	LivezPath   = "/livez"
	ReadyzPath  = "/readyz"
)

type contextRequestID string

// RequestIDContextID is the context key holding the request ID.
const RequestIDContextID contextRequestID = "X-REQUEST-ID"

type contextWebhookBody string

// WebhookBodyContextID is the context key holding the raw webhook body.
const WebhookBodyContextID contextWebhookBody = "webhook-body"
