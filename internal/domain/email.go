// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// EmailService defines the interface for sending emails
type EmailService interface {
	SendReportNotification(ctx context.Context, notification ReportNotification) error
}

// ReportNotification contains the data needed to send a processed report email
type ReportNotification struct {
	Recipients []string
	Meeting    models.MeetingDetails
	Summary    *models.ClassificationResult // Optional counts rendered in the body
	Attachment *EmailAttachment
}

// EmailAttachment represents a file attachment for an email
type EmailAttachment struct {
	Filename    string // Name of the attachment file
	ContentType string // MIME type of the attachment
	Content     string // Base64 encoded content
}
