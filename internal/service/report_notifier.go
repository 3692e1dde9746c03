// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

// NotifyTrigger selects which path sends the report email.
type NotifyTrigger string

const (
	// NotifyTriggerDirect sends right after classification.
	NotifyTriggerDirect NotifyTrigger = "direct"
	// NotifyTriggerWatch sends when the processed file shows up in the watched directory.
	NotifyTriggerWatch NotifyTrigger = "watch"
)

// pendingTTL bounds how long a registration or an unmatched arrival is kept.
const pendingTTL = time.Hour

// ParseNotifyTrigger parses a NOTIFY_TRIGGER value. Empty selects direct.
func ParseNotifyTrigger(value string) (NotifyTrigger, error) {
	switch NotifyTrigger(value) {
	case "", NotifyTriggerDirect:
		return NotifyTriggerDirect, nil
	case NotifyTriggerWatch:
		return NotifyTriggerWatch, nil
	default:
		return "", fmt.Errorf("invalid notify trigger %q, expected %q or %q", value, NotifyTriggerDirect, NotifyTriggerWatch)
	}
}

// ReportNotifier emails processed reports to the distribution list, at most
// once per meeting occurrence.
type ReportNotifier struct {
	email      domain.EmailService
	store      domain.ReportStore
	ledger     domain.DeliveryLedger
	recipients []string
	trigger    NotifyTrigger

	// sendTimeout bounds a send started by a file arrival.
	sendTimeout time.Duration

	mu      sync.Mutex
	pending map[string]models.PendingReport // by processed file name
	arrived map[string]time.Time            // files seen before their registration
	now     func() time.Time
}

// NotifierOption configures a ReportNotifier.
type NotifierOption func(*ReportNotifier)

// WithSendTimeout bounds each email send started by a file arrival.
// Non-positive values keep DefaultNotifyTimeout.
func WithSendTimeout(d time.Duration) NotifierOption {
	return func(n *ReportNotifier) {
		if d > 0 {
			n.sendTimeout = d
		}
	}
}

// NewReportNotifier creates a notifier.
func NewReportNotifier(
	email domain.EmailService,
	store domain.ReportStore,
	ledger domain.DeliveryLedger,
	recipients []string,
	trigger NotifyTrigger,
	opts ...NotifierOption,
) *ReportNotifier {
	n := &ReportNotifier{
		email:       email,
		store:       store,
		ledger:      ledger,
		recipients:  recipients,
		trigger:     trigger,
		sendTimeout: DefaultNotifyTimeout,
		pending:     make(map[string]models.PendingReport),
		arrived:     make(map[string]time.Time),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ServiceReady checks if the notifier has its dependencies.
func (n *ReportNotifier) ServiceReady() bool {
	return n.email != nil && n.store != nil && n.ledger != nil
}

// Trigger returns the active trigger path.
func (n *ReportNotifier) Trigger() NotifyTrigger {
	return n.trigger
}

// Notify sends the report email for a classified report. A second call for
// the same meeting occurrence is a no-op.
func (n *ReportNotifier) Notify(ctx context.Context, report models.PendingReport) error {
	ctx = logging.WithStage(logging.WithMeeting(ctx, report.Meeting.MeetingID), StageNotify)
	ctx, span := tracer.Start(ctx, "ReportNotifier.Notify")
	defer span.End()

	key := notifyKey(report.Meeting)
	claimed, err := n.ledger.Claim(ctx, key)
	if err != nil {
		slog.ErrorContext(ctx, "failed to claim notification", logging.ErrKey, err)
		return domain.NewNotificationError("failed to claim notification", err)
	}
	if !claimed {
		slog.InfoContext(ctx, "report already sent for this meeting occurrence, skipping")
		return nil
	}

	if err := n.send(ctx, report); err != nil {
		span.RecordError(err)
		if relErr := n.ledger.Release(ctx, key); relErr != nil {
			slog.WarnContext(ctx, "failed to release notification claim", logging.ErrKey, relErr)
		}
		return err
	}
	return nil
}

func (n *ReportNotifier) send(ctx context.Context, report models.PendingReport) error {
	content, err := n.store.ReadFile(ctx, report.ProcessedPath)
	if err != nil {
		slog.ErrorContext(ctx, "processed report is not readable, email not sent", logging.ErrKey, err, "file", report.ProcessedPath)
		return domain.NewNotificationError("processed report is not readable", err)
	}

	notification := domain.ReportNotification{
		Recipients: n.recipients,
		Meeting:    report.Meeting,
		Summary:    report.Summary,
		Attachment: &domain.EmailAttachment{
			Filename:    filepath.Base(report.ProcessedPath),
			ContentType: "text/csv",
			Content:     base64.StdEncoding.EncodeToString(content),
		},
	}

	if err := n.email.SendReportNotification(ctx, notification); err != nil {
		slog.ErrorContext(ctx, "failed to send report email", logging.ErrKey, err)
		if domain.GetErrorType(err) == domain.ErrorTypeNotification {
			return err
		}
		return domain.NewNotificationError("failed to send report email", err)
	}

	slog.InfoContext(ctx, "report email sent", "file", notification.Attachment.Filename, "recipients", len(n.recipients))
	return nil
}

// Register records a classified report for the watch trigger. If the file
// already arrived, the email is sent now.
func (n *ReportNotifier) Register(ctx context.Context, report models.PendingReport) error {
	name := filepath.Base(report.ProcessedPath)
	if report.RegisteredAt.IsZero() {
		report.RegisteredAt = n.now()
	}

	n.mu.Lock()
	n.pruneLocked()
	_, seen := n.arrived[name]
	if seen {
		delete(n.arrived, name)
	} else {
		n.pending[name] = report
	}
	n.mu.Unlock()

	if seen {
		return n.Notify(ctx, report)
	}
	slog.DebugContext(ctx, "report registered, waiting for file arrival", "file", name)
	return nil
}

// HandleReportArrival is called for each processed file the watcher reports.
// In direct mode it only logs. The send outlives cancellation of ctx and is
// bounded by the send timeout.
func (n *ReportNotifier) HandleReportArrival(ctx context.Context, path string) error {
	name := filepath.Base(path)
	if n.trigger != NotifyTriggerWatch {
		slog.DebugContext(ctx, "processed report arrived", "file", name)
		return nil
	}

	n.mu.Lock()
	n.pruneLocked()
	report, ok := n.pending[name]
	if ok {
		delete(n.pending, name)
	} else {
		n.arrived[name] = n.now()
	}
	n.mu.Unlock()

	if !ok {
		slog.DebugContext(ctx, "processed report arrived before its registration", "file", name)
		return nil
	}
	report.ProcessedPath = path

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.sendTimeout)
	defer cancel()
	return n.Notify(sendCtx, report)
}

// pendingCount returns the number of registrations waiting for their file.
func (n *ReportNotifier) pendingCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

func (n *ReportNotifier) pruneLocked() {
	cutoff := n.now().Add(-pendingTTL)
	for name, report := range n.pending {
		if report.RegisteredAt.Before(cutoff) {
			delete(n.pending, name)
		}
	}
	for name, at := range n.arrived {
		if at.Before(cutoff) {
			delete(n.arrived, name)
		}
	}
}

func notifyKey(meeting models.MeetingDetails) string {
	return "notify/" + meeting.OccurrenceKey()
}
