// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ProcessedFilePrefix is prepended to the intermediate CSV name to form the
// processed report name.
const ProcessedFilePrefix = "processed_"

// ValidateMeetingID checks that a meeting id can safely name report files:
// no path separators and no parent-directory references.
func ValidateMeetingID(meetingID string) error {
	switch {
	case meetingID == "":
		return errors.New("meeting id is empty")
	case strings.ContainsAny(meetingID, `/\`) || strings.ContainsRune(meetingID, filepath.Separator):
		return fmt.Errorf("meeting id %q contains a path separator", meetingID)
	case strings.Contains(meetingID, ".."):
		return fmt.Errorf("meeting id %q contains a parent directory reference", meetingID)
	}
	return nil
}

// RawParticipantsFileName returns the name of the raw JSON report.
func RawParticipantsFileName(meetingID string) string {
	return meetingID + "_participants.json"
}

// ParticipantsCSVFileName returns the name of the intermediate CSV report.
func ParticipantsCSVFileName(meetingID string) string {
	return meetingID + "_participants.csv"
}

// ProcessedFileName returns the processed report name for an intermediate CSV path.
func ProcessedFileName(csvPath string) string {
	return ProcessedFilePrefix + filepath.Base(csvPath)
}

// IsProcessedReport reports whether name looks like a processed report.
func IsProcessedReport(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, ProcessedFilePrefix) && strings.HasSuffix(base, ".csv")
}

// RawReport is the merged participants report of one meeting. Participants
// are kept verbatim so the raw file preserves every field Zoom returned.
type RawReport struct {
	MeetingID    string            `json:"meeting_id"`
	PageCount    int               `json:"page_count"`
	TotalRecords int               `json:"total_records"`
	Participants []json.RawMessage `json:"participants"`
}

// ReportFiles are the paths written by one fetch.
type ReportFiles struct {
	RawJSONPath string
	CSVPath     string
}

// ClassificationResult summarises a classifier run.
type ClassificationResult struct {
	ProcessedPath string
	Total         int
	Present       int
	Absent        int
	Invalid       int
}

// PendingReport is a classified report waiting for its notification.
type PendingReport struct {
	Meeting       MeetingDetails
	ProcessedPath string
	Summary       *ClassificationResult
	RegisteredAt  time.Time
}
