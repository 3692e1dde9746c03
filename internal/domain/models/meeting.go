// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// MeetingID is a Zoom meeting id. Zoom encodes it as a JSON number in most
// webhook payloads and as a string in a few, so both are accepted.
type MeetingID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *MeetingID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = MeetingID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("meeting id must be a string or number: %w", err)
	}
	*id = MeetingID(n.String())
	return nil
}

func (id MeetingID) String() string {
	return string(id)
}

// MeetingDetails is the meeting metadata carried through a pipeline run and
// rendered into the notification email.
type MeetingDetails struct {
	MeetingID       string
	UUID            string
	Topic           string
	StartTime       time.Time
	EndTime         time.Time
	DurationMinutes int
}

// OccurrenceKey identifies one occurrence of a meeting. Recurring meetings
// reuse the meeting id, so the instance UUID is preferred and the start time
// is the fallback.
func (d MeetingDetails) OccurrenceKey() string {
	if d.UUID != "" {
		return d.MeetingID + "/" + d.UUID
	}
	return d.MeetingID + "@" + d.StartTime.UTC().Format(time.RFC3339)
}
