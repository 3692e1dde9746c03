// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package handlers contains the HTTP handlers of the attendance API.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/middleware"
	"github.com/linuxfoundation/lfx-v2-attendance-service/pkg/constants"
)

// Response bodies of the webhook endpoint.
const (
	ProcessedResponse    = "Webhook received and processed"
	AcceptedResponse     = "Webhook received"
	UnauthorizedResponse = "Unauthorized request to Zoom Webhook."
)

// Dispatcher runs a verified webhook delivery through the attendance pipeline.
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.WebhookEvent) (*models.DispatchOutcome, error)
	ServiceReady() bool
}

// WebhookHandler serves POST /webhook.
type WebhookHandler struct {
	dispatcher Dispatcher
	now        func() time.Time
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(dispatcher Dispatcher) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// HandlerReady reports whether the pipeline behind the handler is ready.
func (h *WebhookHandler) HandlerReady() bool {
	return h.dispatcher != nil && h.dispatcher.ServiceReady()
}

// ServeHTTP implements http.Handler.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, ok := middleware.GetRawBodyFromContext(ctx)
	if !ok {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, middleware.MaxWebhookBodyBytes))
		if err != nil {
			slog.WarnContext(ctx, "failed to read webhook body", logging.ErrKey, err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
	}

	event := models.WebhookEvent{
		Timestamp:       r.Header.Get(constants.ZoomRequestTimestampHeader),
		SignatureHeader: r.Header.Get(constants.ZoomSignatureHeader),
		RawBody:         body,
		ReceivedAt:      h.now().UTC(),
	}

	outcome, err := h.dispatcher.Dispatch(ctx, event)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	switch {
	case outcome.Challenge != nil:
		writeJSON(ctx, w, http.StatusOK, outcome.Challenge)
	case outcome.Kind == models.EventKindMeetingEnded:
		writeText(w, http.StatusOK, ProcessedResponse)
	default:
		writeText(w, http.StatusOK, AcceptedResponse)
	}
}

func (h *WebhookHandler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := domain.HTTPStatus(err)
	if status == http.StatusUnauthorized {
		writeJSON(ctx, w, status, map[string]string{"message": UnauthorizedResponse})
		return
	}
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "webhook delivery failed", logging.ErrKey, err, "status", status)
	}
	writeText(w, status, http.StatusText(status))
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set(constants.ContentTypeHeader, "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to write response", logging.ErrKey, err)
	}
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set(constants.ContentTypeHeader, "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}
