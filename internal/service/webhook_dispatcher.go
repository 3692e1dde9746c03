// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

const (
	// DefaultPipelineTimeout bounds a single fetch and classify run.
	DefaultPipelineTimeout = 2 * time.Minute
	// DefaultNotifyTimeout bounds the asynchronous email handoff.
	DefaultNotifyTimeout = time.Minute
)

// DispatcherConfig holds the dispatcher's tunables.
type DispatcherConfig struct {
	ProcessedDir    string
	PipelineTimeout time.Duration
	NotifyTimeout   time.Duration
}

// WebhookDispatcher verifies inbound webhook deliveries and runs the
// attendance pipeline for meeting.ended events.
type WebhookDispatcher struct {
	validator  domain.WebhookValidator
	tokens     TokenSource
	fetcher    *ReportFetcher
	classifier *AttendanceClassifier
	notifier   *ReportNotifier
	ledger     domain.DeliveryLedger
	events     domain.ReportEventSender
	config     DispatcherConfig

	group singleflight.Group
	async sync.WaitGroup
	now   func() time.Time
}

// NewWebhookDispatcher creates a dispatcher. events may be nil when no
// message bus is configured.
func NewWebhookDispatcher(
	validator domain.WebhookValidator,
	tokens TokenSource,
	fetcher *ReportFetcher,
	classifier *AttendanceClassifier,
	notifier *ReportNotifier,
	ledger domain.DeliveryLedger,
	events domain.ReportEventSender,
	config DispatcherConfig,
) *WebhookDispatcher {
	if config.PipelineTimeout <= 0 {
		config.PipelineTimeout = DefaultPipelineTimeout
	}
	if config.NotifyTimeout <= 0 {
		config.NotifyTimeout = DefaultNotifyTimeout
	}
	return &WebhookDispatcher{
		validator:  validator,
		tokens:     tokens,
		fetcher:    fetcher,
		classifier: classifier,
		notifier:   notifier,
		ledger:     ledger,
		events:     events,
		config:     config,
		now:        time.Now,
	}
}

// ServiceReady checks if the dispatcher and every pipeline stage are ready.
func (d *WebhookDispatcher) ServiceReady() bool {
	return d.validator != nil &&
		d.tokens != nil &&
		d.ledger != nil &&
		d.fetcher != nil && d.fetcher.ServiceReady() &&
		d.classifier != nil && d.classifier.ServiceReady() &&
		d.notifier != nil && d.notifier.ServiceReady()
}

// Wait blocks until every asynchronous notification handoff has finished.
func (d *WebhookDispatcher) Wait() {
	d.async.Wait()
}

// Dispatch handles one webhook delivery. The returned outcome always carries a
// terminal state; the error, when set, maps to the HTTP status through
// domain.HTTPStatus.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event models.WebhookEvent) (*models.DispatchOutcome, error) {
	outcome := &models.DispatchOutcome{State: models.DispatchReceived}

	if err := d.validator.ValidateSignature(event.RawBody, event.SignatureHeader, event.Timestamp); err != nil {
		slog.WarnContext(logging.WithStage(ctx, StageVerify), "webhook signature rejected", logging.ErrKey, err)
		d.transition(ctx, outcome, models.DispatchRejected)
		return outcome, domain.NewAuthenticationError("invalid webhook signature", err)
	}
	d.transition(ctx, outcome, models.DispatchVerified)

	var envelope models.ZoomWebhookEnvelope
	if err := json.Unmarshal(event.RawBody, &envelope); err != nil {
		slog.WarnContext(ctx, "webhook body is not valid JSON", logging.ErrKey, err)
		d.transition(ctx, outcome, models.DispatchRejected)
		return outcome, domain.NewValidationError("invalid webhook payload", err)
	}
	outcome.Kind = envelope.Kind()
	ctx = logging.AppendCtx(ctx, slog.String("event", envelope.Event))

	switch outcome.Kind {
	case models.EventKindURLValidation:
		return d.answerChallenge(ctx, outcome, envelope.Payload)
	case models.EventKindMeetingEnded:
		return d.meetingEnded(ctx, outcome, envelope.Payload)
	default:
		slog.InfoContext(ctx, "ignoring webhook event")
		d.transition(ctx, outcome, models.DispatchCompleted)
		return outcome, nil
	}
}

func (d *WebhookDispatcher) answerChallenge(ctx context.Context, outcome *models.DispatchOutcome, payload json.RawMessage) (*models.DispatchOutcome, error) {
	d.transition(ctx, outcome, models.DispatchValidating)

	var validation models.ZoomURLValidationPayload
	if err := json.Unmarshal(payload, &validation); err != nil || validation.PlainToken == "" {
		slog.WarnContext(ctx, "url validation event without plainToken")
		d.transition(ctx, outcome, models.DispatchRejected)
		return outcome, domain.NewValidationError("url validation event without plainToken")
	}

	encrypted, err := d.validator.SignPlainToken(validation.PlainToken)
	if err != nil {
		slog.ErrorContext(ctx, "failed to sign plainToken", logging.ErrKey, err)
		d.transition(ctx, outcome, models.DispatchFailed)
		return outcome, domain.NewInternalError("failed to answer url validation", err)
	}

	outcome.Challenge = &models.ZoomURLValidationResponse{
		PlainToken:     validation.PlainToken,
		EncryptedToken: encrypted,
	}
	d.transition(ctx, outcome, models.DispatchCompleted)
	return outcome, nil
}

func (d *WebhookDispatcher) meetingEnded(ctx context.Context, outcome *models.DispatchOutcome, payload json.RawMessage) (*models.DispatchOutcome, error) {
	var ended models.ZoomMeetingEndedPayload
	if err := json.Unmarshal(payload, &ended); err != nil {
		slog.WarnContext(ctx, "meeting.ended payload is malformed", logging.ErrKey, err)
		d.transition(ctx, outcome, models.DispatchRejected)
		return outcome, domain.NewValidationError("malformed meeting.ended payload", err)
	}
	meeting := ended.MeetingDetails()
	if meeting.MeetingID == "" {
		d.transition(ctx, outcome, models.DispatchRejected)
		return outcome, domain.NewValidationError("meeting.ended payload has no meeting id")
	}
	if err := models.ValidateMeetingID(meeting.MeetingID); err != nil {
		slog.WarnContext(ctx, "meeting.ended payload has an unusable meeting id", logging.ErrKey, err)
		d.transition(ctx, outcome, models.DispatchRejected)
		return outcome, domain.NewValidationError("invalid meeting id", err)
	}

	ctx = logging.WithMeeting(ctx, meeting.MeetingID)
	d.transition(ctx, outcome, models.DispatchProcessing)

	// One pipeline per meeting id at a time. Followers share the leader's result.
	value, err, shared := d.group.Do(meeting.MeetingID, func() (any, error) {
		return d.runPipeline(ctx, meeting)
	})
	if shared {
		slog.DebugContext(ctx, "joined an in-flight pipeline for this meeting")
	}

	if err != nil {
		d.transition(ctx, outcome, models.DispatchFailed)
		return outcome, err
	}

	run := value.(pipelineRun)
	outcome.Duplicate = run.duplicate
	if run.result != nil {
		result := *run.result
		outcome.Result = &result
	}
	d.transition(ctx, outcome, models.DispatchCompleted)
	return outcome, nil
}

type pipelineRun struct {
	duplicate bool
	result    *models.ClassificationResult
}

// runPipeline claims the meeting occurrence, then fetches, classifies and hands
// the report off for notification. A failed run releases its claim so that a
// redelivery can try again from the start.
func (d *WebhookDispatcher) runPipeline(parent context.Context, meeting models.MeetingDetails) (pipelineRun, error) {
	// The run outlives the HTTP request of whichever delivery led it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), d.config.PipelineTimeout)
	defer cancel()

	runID := uuid.NewString()
	ctx = logging.AppendCtx(ctx, slog.String("run_id", runID))
	ctx, span := tracer.Start(ctx, "WebhookDispatcher.runPipeline")
	defer span.End()
	span.SetAttributes(
		attribute.String("meeting.id", meeting.MeetingID),
		attribute.String("pipeline.run_id", runID),
	)

	fail := func(err error) (pipelineRun, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.GetErrorType(err).String())
		slog.ErrorContext(ctx, "attendance pipeline failed",
			logging.ErrKey, err,
			logging.StageKey, domain.GetErrorType(err).String(),
			logging.PriorityCritical(),
		)
		return pipelineRun{}, err
	}

	key := pipelineKey(meeting)
	claimed, err := d.ledger.Claim(ctx, key)
	if err != nil {
		return fail(domain.NewInternalError("failed to claim meeting occurrence", err))
	}
	if !claimed {
		slog.InfoContext(ctx, "meeting occurrence already processed, skipping duplicate delivery")
		return pipelineRun{duplicate: true}, nil
	}

	release := func() {
		if err := d.ledger.Release(ctx, key); err != nil {
			slog.WarnContext(ctx, "failed to release meeting occurrence", logging.ErrKey, err)
		}
	}

	token, err := d.tokens.Token(ctx)
	if err != nil {
		release()
		return fail(err)
	}

	_, files, err := d.fetcher.FetchParticipants(ctx, meeting.MeetingID, token)
	if err != nil {
		release()
		return fail(err)
	}

	processedPath, result, err := d.classifier.Classify(ctx, files.CSVPath, d.config.ProcessedDir)
	if err != nil {
		release()
		return fail(err)
	}

	d.handOff(ctx, models.PendingReport{
		Meeting:       meeting,
		ProcessedPath: processedPath,
		Summary:       &result,
		RegisteredAt:  d.now(),
	})

	return pipelineRun{result: &result}, nil
}

// handOff notifies and publishes in the background so the webhook response
// never waits for SMTP.
func (d *WebhookDispatcher) handOff(ctx context.Context, report models.PendingReport) {
	ctx = context.WithoutCancel(ctx)

	d.async.Add(1)
	go func() {
		defer d.async.Done()

		notifyCtx, cancel := context.WithTimeout(ctx, d.config.NotifyTimeout)
		defer cancel()

		var err error
		switch d.notifier.Trigger() {
		case NotifyTriggerWatch:
			err = d.notifier.Register(notifyCtx, report)
		default:
			err = d.notifier.Notify(notifyCtx, report)
		}
		if err != nil {
			slog.ErrorContext(notifyCtx, "report notification failed", logging.ErrKey, err, logging.StageKey, StageNotify)
		}

		d.publish(notifyCtx, report)
	}()
}

func (d *WebhookDispatcher) publish(ctx context.Context, report models.PendingReport) {
	if d.events == nil || report.Summary == nil {
		return
	}
	ctx = logging.WithStage(ctx, StagePublish)

	err := d.events.SendReportProcessed(ctx, models.ReportProcessedMessage{
		MeetingID:     report.Meeting.MeetingID,
		UUID:          report.Meeting.UUID,
		Topic:         report.Meeting.Topic,
		ProcessedFile: report.ProcessedPath,
		Participants:  report.Summary.Total,
		Present:       report.Summary.Present,
		Absent:        report.Summary.Absent,
		Invalid:       report.Summary.Invalid,
		ProcessedAt:   report.RegisteredAt.UTC(),
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to publish report processed event", logging.ErrKey, err)
	}
}

func (d *WebhookDispatcher) transition(ctx context.Context, outcome *models.DispatchOutcome, next models.DispatchState) {
	slog.DebugContext(ctx, "dispatch state changed", "from", outcome.State, "to", next)
	outcome.State = next
}

func pipelineKey(meeting models.MeetingDetails) string {
	return "pipeline/" + meeting.OccurrenceKey()
}
