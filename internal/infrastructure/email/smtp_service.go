// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

// SMTPService implements the EmailService interface using SMTP
type SMTPService struct {
	config    SMTPConfig
	templates ReportTemplateManager
	now       func() time.Time
}

// SMTPConfig holds the SMTP server configuration
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	FromName string // Optional display name for the From header
	Username string // Optional for authenticated SMTP
	Password string // Optional for authenticated SMTP
}

// NewSMTPService creates a new SMTP email service
func NewSMTPService(config SMTPConfig) (*SMTPService, error) {
	templates, err := NewTemplateManager()
	if err != nil {
		return nil, err
	}

	return &SMTPService{
		config:    config,
		templates: templates,
		now:       time.Now,
	}, nil
}

// SendReportNotification sends one email carrying the processed report to all recipients
func (s *SMTPService) SendReportNotification(ctx context.Context, notification domain.ReportNotification) error {
	ctx = logging.AppendCtx(ctx, slog.Int("recipient_count", len(notification.Recipients)))
	ctx = logging.AppendCtx(ctx, slog.String("meeting_topic", notification.Meeting.Topic))

	if len(notification.Recipients) == 0 {
		return domain.NewNotificationError("no recipients configured")
	}

	rendered, err := s.templates.RenderReportNotification(notification)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render report notification", logging.ErrKey, err)
		return domain.NewNotificationError("failed to render report notification", err)
	}

	message := buildEmailMessage(emailContent{
		Recipients: notification.Recipients,
		Subject:    ReportNotificationSubject,
		HTML:       rendered.HTML,
		Text:       rendered.Text,
		Attachment: notification.Attachment,
	}, s.config, s.now())

	if err := sendEmailMessage(ctx, notification.Recipients, message, s.config); err != nil {
		slog.ErrorContext(ctx, "failed to send report notification", logging.ErrKey, err)
		return domain.NewNotificationError(fmt.Sprintf("failed to send report for meeting %s", notification.Meeting.MeetingID), err)
	}

	slog.InfoContext(ctx, "report notification sent successfully")
	return nil
}
