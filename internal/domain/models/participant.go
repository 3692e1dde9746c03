// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Column names of the intermediate participants CSV.
const (
	ColumnID        = "id"
	ColumnName      = "name"
	ColumnUserEmail = "user_email"
	ColumnJoinTime  = "join_time"
	ColumnLeaveTime = "leave_time"
	ColumnDuration  = "duration"

	// ColumnStatus is appended by the classifier.
	ColumnStatus = "Status"
)

// ParticipantColumns is the fixed column order of the intermediate CSV.
var ParticipantColumns = []string{
	ColumnID,
	ColumnName,
	ColumnUserEmail,
	ColumnJoinTime,
	ColumnLeaveTime,
	ColumnDuration,
}

// ProcessedColumns is the column order of the processed CSV.
var ProcessedColumns = append(append([]string{}, ParticipantColumns...), ColumnStatus)

// AttendanceStatus is the verdict assigned to a participant.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "Present"
	AttendanceAbsent  AttendanceStatus = "Absent"
)

// ZoomReportParticipant is one element of the participants report as returned
// by the Zoom reports API. Only the fields the pipeline reads are decoded.
type ZoomReportParticipant struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UserEmail string          `json:"user_email"`
	JoinTime  string          `json:"join_time"`
	LeaveTime string          `json:"leave_time"`
	Duration  json.RawMessage `json:"duration"` // seconds
}

// DurationSeconds parses the duration field, which Zoom sends as a number.
func (p ZoomReportParticipant) DurationSeconds() (float64, error) {
	if len(p.Duration) == 0 || string(p.Duration) == "null" {
		return 0, nil
	}
	var n json.Number
	if err := json.Unmarshal(p.Duration, &n); err != nil {
		// Some payloads quote numbers.
		var s string
		if errS := json.Unmarshal(p.Duration, &s); errS != nil {
			return 0, fmt.Errorf("invalid duration %s: %w", string(p.Duration), err)
		}
		n = json.Number(s)
	}
	return n.Float64()
}

// ParticipantRecord is one row of the intermediate CSV.
type ParticipantRecord struct {
	ID              string
	Name            string
	Email           string
	JoinTime        string
	LeaveTime       string
	DurationMinutes string
}

// ParticipantRecordFromReport converts a report entry into a CSV row. Duration
// seconds become whole minutes, rounded half away from zero.
func ParticipantRecordFromReport(p ZoomReportParticipant) (ParticipantRecord, error) {
	seconds, err := p.DurationSeconds()
	if err != nil {
		return ParticipantRecord{}, err
	}
	return ParticipantRecord{
		ID:              p.ID,
		Name:            p.Name,
		Email:           p.UserEmail,
		JoinTime:        p.JoinTime,
		LeaveTime:       p.LeaveTime,
		DurationMinutes: strconv.FormatInt(int64(math.Round(seconds/60)), 10),
	}, nil
}

// Row returns the record in ParticipantColumns order.
func (r ParticipantRecord) Row() []string {
	return []string{r.ID, r.Name, r.Email, r.JoinTime, r.LeaveTime, r.DurationMinutes}
}

// ClassifiedParticipantRecord is a ParticipantRecord with its verdict.
type ClassifiedParticipantRecord struct {
	ParticipantRecord
	Status AttendanceStatus
}

// Row returns the record in ProcessedColumns order.
func (r ClassifiedParticipantRecord) Row() []string {
	return append(r.ParticipantRecord.Row(), string(r.Status))
}
