// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"encoding/json"
	"time"
)

// Zoom webhook event names this service reacts to.
const (
	ZoomEventURLValidation = "endpoint.url_validation"
	ZoomEventMeetingEnded  = "meeting.ended"
)

// EventKind classifies an inbound webhook event.
type EventKind int

const (
	EventKindOther EventKind = iota
	EventKindURLValidation
	EventKindMeetingEnded
)

func (k EventKind) String() string {
	switch k {
	case EventKindURLValidation:
		return "url_validation"
	case EventKindMeetingEnded:
		return "meeting_ended"
	default:
		return "other"
	}
}

// EventKindFromName maps the envelope's event string to an EventKind.
func EventKindFromName(event string) EventKind {
	switch event {
	case ZoomEventURLValidation:
		return EventKindURLValidation
	case ZoomEventMeetingEnded:
		return EventKindMeetingEnded
	default:
		return EventKindOther
	}
}

// WebhookEvent is one inbound delivery as received over HTTP. It is never persisted.
type WebhookEvent struct {
	Timestamp       string // x-zm-request-timestamp
	SignatureHeader string // x-zm-signature
	RawBody         []byte
	ReceivedAt      time.Time
}

// ZoomWebhookEnvelope is the outer shape shared by every Zoom webhook event.
type ZoomWebhookEnvelope struct {
	Event   string          `json:"event"`
	EventTS int64           `json:"event_ts"`
	Payload json.RawMessage `json:"payload"`
}

// Kind reports the classified event type of the envelope.
func (e ZoomWebhookEnvelope) Kind() EventKind {
	return EventKindFromName(e.Event)
}

// ZoomURLValidationPayload is the payload of endpoint.url_validation events.
type ZoomURLValidationPayload struct {
	PlainToken string `json:"plainToken"`
}

// ZoomURLValidationResponse answers the url_validation challenge.
type ZoomURLValidationResponse struct {
	PlainToken     string `json:"plainToken"`
	EncryptedToken string `json:"encryptedToken"`
}

// ZoomMeetingEndedPayload represents the payload for meeting.ended webhook events
type ZoomMeetingEndedPayload struct {
	AccountID string `json:"account_id"`
	Object    struct {
		UUID      string    `json:"uuid"`
		ID        MeetingID `json:"id"` // number in most deliveries, string in some
		HostID    string    `json:"host_id"`
		Topic     string    `json:"topic"`
		Type      int       `json:"type"`
		StartTime string    `json:"start_time"`
		EndTime   string    `json:"end_time"`
		Duration  int       `json:"duration"`
		Timezone  string    `json:"timezone"`
	} `json:"object"`
}

// MeetingDetails extracts the pipeline's view of the meeting. Unparseable
// timestamps are left as the zero time.
func (p ZoomMeetingEndedPayload) MeetingDetails() MeetingDetails {
	details := MeetingDetails{
		MeetingID:       p.Object.ID.String(),
		UUID:            p.Object.UUID,
		Topic:           p.Object.Topic,
		DurationMinutes: p.Object.Duration,
	}
	if t, err := time.Parse(time.RFC3339, p.Object.StartTime); err == nil {
		details.StartTime = t
	}
	if t, err := time.Parse(time.RFC3339, p.Object.EndTime); err == nil {
		details.EndTime = t
	}
	return details
}
