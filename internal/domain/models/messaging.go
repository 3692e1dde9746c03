// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// NATS subjects that the attendance service sends messages about.
const (
	// ReportProcessedSubject is the subject for processed attendance report events.
	// The subject is of the form: lfx.attendance.report_processed
	ReportProcessedSubject = "lfx.attendance.report_processed"
)

// ReportProcessedMessage is published once a processed attendance report has
// been written.
type ReportProcessedMessage struct {
	MeetingID     string    `json:"meeting_id"`
	UUID          string    `json:"uuid,omitempty"`
	Topic         string    `json:"topic"`
	ProcessedFile string    `json:"processed_file"`
	Participants  int       `json:"participants"`
	Present       int       `json:"present"`
	Absent        int       `json:"absent"`
	Invalid       int       `json:"invalid"`
	ProcessedAt   time.Time `json:"processed_at"`
}
