// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/mocks"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/store"
)

var recipients = []string{"ops@example.com", "lead@example.com"}

func standupMeeting() models.MeetingDetails {
	return models.MeetingDetails{
		MeetingID:       "123",
		UUID:            "4444AAAiAAAAAiAiAiiAii==",
		Topic:           "Standup",
		StartTime:       time.Date(2024, 1, 15, 14, 0, 0, 0, time.UTC),
		EndTime:         time.Date(2024, 1, 15, 15, 46, 0, 0, time.UTC),
		DurationMinutes: 106,
	}
}

const processedContent = "id,name,user_email,join_time,leave_time,duration,Status\nu1,Ada,ada@example.com,2024-01-15T14:00:00Z,2024-01-15T15:35:00Z,95,Present\n"

func writeProcessed(t *testing.T, dirs reportDirs) string {
	t.Helper()
	path := filepath.Join(dirs.processed, "processed_123_participants.csv")
	writeCSV(t, path, "id,name,user_email,join_time,leave_time,duration,Status",
		"u1,Ada,ada@example.com,2024-01-15T14:00:00Z,2024-01-15T15:35:00Z,95,Present")
	return path
}

func matchReportEmail(path string) any {
	return mock.MatchedBy(func(n domain.ReportNotification) bool {
		if n.Attachment == nil {
			return false
		}
		content, err := base64.StdEncoding.DecodeString(n.Attachment.Content)
		if err != nil {
			return false
		}
		return n.Meeting.Topic == "Standup" &&
			len(n.Recipients) == 2 &&
			n.Attachment.Filename == filepath.Base(path) &&
			n.Attachment.ContentType == "text/csv" &&
			string(content) == processedContent
	})
}

func TestParseNotifyTrigger(t *testing.T) {
	tests := []struct {
		input    string
		expected NotifyTrigger
		wantErr  bool
	}{
		{"", NotifyTriggerDirect, false},
		{"direct", NotifyTriggerDirect, false},
		{"watch", NotifyTriggerWatch, false},
		{"both", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseNotifyTrigger(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestReportNotifier_Notify(t *testing.T) {
	t.Run("sends once per occurrence", func(t *testing.T) {
		dirs := newReportDirs(t)
		path := writeProcessed(t, dirs)
		email := new(mocks.MockEmailService)
		email.On("SendReportNotification", mock.Anything, matchReportEmail(path)).Return(nil).Once()

		notifier := NewReportNotifier(email, dirs.store(), store.NewMemoryDeliveryLedger(), recipients, NotifyTriggerDirect)
		report := models.PendingReport{Meeting: standupMeeting(), ProcessedPath: path}

		require.NoError(t, notifier.Notify(context.Background(), report))
		require.NoError(t, notifier.Notify(context.Background(), report))
		email.AssertNumberOfCalls(t, "SendReportNotification", 1)
	})

	t.Run("failed send releases the claim", func(t *testing.T) {
		dirs := newReportDirs(t)
		path := writeProcessed(t, dirs)
		email := new(mocks.MockEmailService)
		email.On("SendReportNotification", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()
		email.On("SendReportNotification", mock.Anything, mock.Anything).Return(nil).Once()

		notifier := NewReportNotifier(email, dirs.store(), store.NewMemoryDeliveryLedger(), recipients, NotifyTriggerDirect)
		report := models.PendingReport{Meeting: standupMeeting(), ProcessedPath: path}

		err := notifier.Notify(context.Background(), report)
		require.Error(t, err)
		assert.Equal(t, domain.ErrorTypeNotification, domain.GetErrorType(err))

		require.NoError(t, notifier.Notify(context.Background(), report))
		email.AssertNumberOfCalls(t, "SendReportNotification", 2)
	})

	t.Run("missing attachment aborts the send", func(t *testing.T) {
		dirs := newReportDirs(t)
		email := new(mocks.MockEmailService)

		notifier := NewReportNotifier(email, dirs.store(), store.NewMemoryDeliveryLedger(), recipients, NotifyTriggerDirect)
		err := notifier.Notify(context.Background(), models.PendingReport{
			Meeting:       standupMeeting(),
			ProcessedPath: filepath.Join(dirs.processed, "processed_123_participants.csv"),
		})
		require.Error(t, err)
		assert.Equal(t, domain.ErrorTypeNotification, domain.GetErrorType(err))
		email.AssertNotCalled(t, "SendReportNotification", mock.Anything, mock.Anything)
	})

	t.Run("separate occurrences of a recurring meeting each send", func(t *testing.T) {
		dirs := newReportDirs(t)
		path := writeProcessed(t, dirs)
		email := new(mocks.MockEmailService)
		email.On("SendReportNotification", mock.Anything, mock.Anything).Return(nil).Twice()

		notifier := NewReportNotifier(email, dirs.store(), store.NewMemoryDeliveryLedger(), recipients, NotifyTriggerDirect)
		first := standupMeeting()
		second := standupMeeting()
		second.UUID = "another-occurrence"

		require.NoError(t, notifier.Notify(context.Background(), models.PendingReport{Meeting: first, ProcessedPath: path}))
		require.NoError(t, notifier.Notify(context.Background(), models.PendingReport{Meeting: second, ProcessedPath: path}))
		email.AssertNumberOfCalls(t, "SendReportNotification", 2)
	})
}

func TestReportNotifier_WatchTrigger(t *testing.T) {
	t.Run("registration then arrival", func(t *testing.T) {
		dirs := newReportDirs(t)
		path := writeProcessed(t, dirs)
		email := new(mocks.MockEmailService)
		email.On("SendReportNotification", mock.Anything, matchReportEmail(path)).Return(nil).Once()

		notifier := NewReportNotifier(email, dirs.store(), store.NewMemoryDeliveryLedger(), recipients, NotifyTriggerWatch)
		require.NoError(t, notifier.Register(context.Background(), models.PendingReport{Meeting: standupMeeting(), ProcessedPath: path}))
		assert.Equal(t, 1, notifier.pendingCount())
		email.AssertNotCalled(t, "SendReportNotification", mock.Anything, mock.Anything)

		require.NoError(t, notifier.HandleReportArrival(context.Background(), path))
		assert.Equal(t, 0, notifier.pendingCount())
		email.AssertNumberOfCalls(t, "SendReportNotification", 1)

		// A second arrival of the same file (rewrite) does not resend.
		require.NoError(t, notifier.HandleReportArrival(context.Background(), path))
		email.AssertNumberOfCalls(t, "SendReportNotification", 1)
	})

	t.Run("arrival then registration", func(t *testing.T) {
		dirs := newReportDirs(t)
		path := writeProcessed(t, dirs)
		email := new(mocks.MockEmailService)
		email.On("SendReportNotification", mock.Anything, matchReportEmail(path)).Return(nil).Once()

		notifier := NewReportNotifier(email, dirs.store(), store.NewMemoryDeliveryLedger(), recipients, NotifyTriggerWatch)
		require.NoError(t, notifier.HandleReportArrival(context.Background(), path))
		email.AssertNotCalled(t, "SendReportNotification", mock.Anything, mock.Anything)

		require.NoError(t, notifier.Register(context.Background(), models.PendingReport{Meeting: standupMeeting(), ProcessedPath: path}))
		assert.Equal(t, 0, notifier.pendingCount())
		email.AssertNumberOfCalls(t, "SendReportNotification", 1)
	})

	t.Run("direct mode only logs arrivals", func(t *testing.T) {
		dirs := newReportDirs(t)
		path := writeProcessed(t, dirs)
		email := new(mocks.MockEmailService)

		notifier := NewReportNotifier(email, dirs.store(), store.NewMemoryDeliveryLedger(), recipients, NotifyTriggerDirect)
		require.NoError(t, notifier.HandleReportArrival(context.Background(), path))
		email.AssertNotCalled(t, "SendReportNotification", mock.Anything, mock.Anything)
	})

	t.Run("arrival send has its own deadline", func(t *testing.T) {
		dirs := newReportDirs(t)
		path := writeProcessed(t, dirs)
		email := new(mocks.MockEmailService)
		email.On("SendReportNotification",
			mock.MatchedBy(func(ctx context.Context) bool {
				deadline, ok := ctx.Deadline()
				return ok && ctx.Err() == nil && time.Until(deadline) <= 5*time.Second
			}),
			matchReportEmail(path),
		).Return(nil).Once()

		notifier := NewReportNotifier(email, dirs.store(), store.NewMemoryDeliveryLedger(), recipients, NotifyTriggerWatch,
			WithSendTimeout(5*time.Second))
		require.NoError(t, notifier.Register(context.Background(), models.PendingReport{Meeting: standupMeeting(), ProcessedPath: path}))

		// The watcher's context is already cancelled during shutdown.
		watchCtx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, notifier.HandleReportArrival(watchCtx, path))
		email.AssertExpectations(t)
	})

	t.Run("stale registrations expire", func(t *testing.T) {
		dirs := newReportDirs(t)
		notifier := NewReportNotifier(new(mocks.MockEmailService), dirs.store(), store.NewMemoryDeliveryLedger(), recipients, NotifyTriggerWatch)
		now := time.Date(2024, 1, 15, 16, 0, 0, 0, time.UTC)
		notifier.now = func() time.Time { return now }

		first := filepath.Join(dirs.processed, "processed_1_participants.csv")
		second := filepath.Join(dirs.processed, "processed_2_participants.csv")
		require.NoError(t, notifier.Register(context.Background(), models.PendingReport{Meeting: standupMeeting(), ProcessedPath: first}))
		require.NoError(t, notifier.Register(context.Background(), models.PendingReport{Meeting: standupMeeting(), ProcessedPath: second}))
		assert.Equal(t, 2, notifier.pendingCount())

		now = now.Add(2 * time.Hour)
		require.NoError(t, notifier.Register(context.Background(), models.PendingReport{
			Meeting:       standupMeeting(),
			ProcessedPath: filepath.Join(dirs.processed, "processed_3_participants.csv"),
		}))
		assert.Equal(t, 1, notifier.pendingCount(), "stale registrations are pruned")
	})
}
