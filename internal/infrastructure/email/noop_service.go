// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package email

import (
	"context"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

// NoOpService is a no-operation email service that logs but doesn't send emails
type NoOpService struct{}

// NewNoOpService creates a new no-op email service
func NewNoOpService() *NoOpService {
	return &NoOpService{}
}

// SendReportNotification logs the notification but doesn't send an email
func (s *NoOpService) SendReportNotification(ctx context.Context, notification domain.ReportNotification) error {
	ctx = logging.AppendCtx(ctx, slog.Int("recipient_count", len(notification.Recipients)))
	ctx = logging.AppendCtx(ctx, slog.String("meeting_topic", notification.Meeting.Topic))
	if notification.Attachment != nil {
		ctx = logging.AppendCtx(ctx, slog.String("attachment", notification.Attachment.Filename))
	}

	slog.DebugContext(ctx, "email service disabled, skipping report notification")
	return nil
}
