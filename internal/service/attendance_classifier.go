// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

const (
	// LateThresholdMinutes is how far after the reference start a join may be
	// and still count as on time.
	LateThresholdMinutes = 10
	// MinimumPresenceMinutes is the attended duration required to be Present.
	// It is an absolute number of minutes, not a share of the meeting length.
	MinimumPresenceMinutes = 90
)

// reportTimeLayouts are the join/leave formats accepted, tried in order.
// Layouts without a zone are read as UTC.
var reportTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
}

// ReferenceStartFunc picks the time lateness is measured from. It returns the
// reference, the index of the row it came from, and false when no join time
// can be parsed.
type ReferenceStartFunc func(joinTimes []string) (time.Time, int, bool)

// ReferenceStartFromFirstRow uses the first row's join time, falling back to
// the first join time that parses.
func ReferenceStartFromFirstRow(joinTimes []string) (time.Time, int, bool) {
	for i, value := range joinTimes {
		if t, err := parseReportTime(value); err == nil {
			return t, i, true
		}
	}
	return time.Time{}, -1, false
}

// AttendanceClassifier turns the intermediate CSV into the processed report.
type AttendanceClassifier struct {
	store          domain.ReportStore
	referenceStart ReferenceStartFunc
}

// NewAttendanceClassifier creates a classifier. A nil reference func selects
// ReferenceStartFromFirstRow.
func NewAttendanceClassifier(store domain.ReportStore, referenceStart ReferenceStartFunc) *AttendanceClassifier {
	if referenceStart == nil {
		referenceStart = ReferenceStartFromFirstRow
	}
	return &AttendanceClassifier{
		store:          store,
		referenceStart: referenceStart,
	}
}

// ServiceReady checks if the classifier has its dependencies.
func (c *AttendanceClassifier) ServiceReady() bool {
	return c.store != nil
}

// ClassifyParticipant decides a single participant's status against the
// reference start. Attended minutes come from the join and leave times; the
// duration column is carried through to the output but not consulted. The
// bool is false when the record cannot be evaluated, in which case the status
// is Absent.
func ClassifyParticipant(reference time.Time, record models.ParticipantRecord) (models.AttendanceStatus, bool) {
	join, err := parseReportTime(record.JoinTime)
	if err != nil {
		return models.AttendanceAbsent, false
	}
	leave, err := parseReportTime(record.LeaveTime)
	if err != nil {
		return models.AttendanceAbsent, false
	}

	lateMinutes := math.Round(join.Sub(reference).Minutes())
	attendedMinutes := math.Round(leave.Sub(join).Minutes())
	wasLate := lateMinutes > LateThresholdMinutes
	presentEnough := attendedMinutes >= MinimumPresenceMinutes

	if !wasLate && presentEnough {
		return models.AttendancePresent, true
	}
	return models.AttendanceAbsent, true
}

// Classify reads csvPath, classifies every row in order and writes
// outputDir/processed_<basename>. It returns the processed path and counts.
func (c *AttendanceClassifier) Classify(ctx context.Context, csvPath, outputDir string) (string, models.ClassificationResult, error) {
	ctx = logging.WithStage(ctx, StageClassify)
	ctx, span := tracer.Start(ctx, "AttendanceClassifier.Classify")
	defer span.End()

	fail := func(err error, message string) (string, models.ClassificationResult, error) {
		slog.ErrorContext(ctx, message, logging.ErrKey, err, "csv", csvPath)
		span.RecordError(err)
		span.SetStatus(codes.Error, message)
		return "", models.ClassificationResult{}, domain.NewClassificationError(message, err)
	}

	header, rows, err := c.store.ReadTable(ctx, csvPath)
	if err != nil {
		return fail(err, "failed to read participants report")
	}

	records, err := recordsFromTable(header, rows)
	if err != nil {
		return fail(err, "participants report is missing required columns")
	}

	joinTimes := make([]string, len(records))
	for i, record := range records {
		joinTimes[i] = record.JoinTime
	}

	result := models.ClassificationResult{Total: len(records)}
	reference, referenceRow, ok := c.referenceStart(joinTimes)
	switch {
	case !ok && len(records) > 0:
		slog.WarnContext(ctx, "no parseable join time, every participant is marked absent")
	case ok && referenceRow > 0:
		slog.WarnContext(ctx, "first row join time is unreadable, using a later row as reference",
			"reference_row", referenceRow+1,
			"reference_start", reference,
		)
	}

	out := make([][]string, 0, len(records))
	for i, record := range records {
		status, valid := models.AttendanceAbsent, false
		if ok {
			status, valid = ClassifyParticipant(reference, record)
		}
		if !valid {
			result.Invalid++
			slog.WarnContext(ctx, "participant row could not be evaluated, marked absent",
				"row", i+1,
				"participant_id", record.ID,
			)
		}
		if status == models.AttendancePresent {
			result.Present++
		} else {
			result.Absent++
		}
		out = append(out, models.ClassifiedParticipantRecord{ParticipantRecord: record, Status: status}.Row())
	}

	processedPath := filepath.Join(outputDir, models.ProcessedFileName(csvPath))
	if err := c.store.WriteTable(ctx, processedPath, models.ProcessedColumns, out); err != nil {
		return fail(err, "failed to write processed report")
	}
	result.ProcessedPath = processedPath

	span.SetAttributes(
		attribute.Int("attendance.total", result.Total),
		attribute.Int("attendance.present", result.Present),
		attribute.Int("attendance.absent", result.Absent),
		attribute.Int("attendance.invalid", result.Invalid),
	)
	slog.InfoContext(ctx, "attendance classified",
		"processed", processedPath,
		"total", result.Total,
		"present", result.Present,
		"absent", result.Absent,
		"invalid", result.Invalid,
	)
	return processedPath, result, nil
}

// recordsFromTable maps rows onto ParticipantRecords by header name. Header
// names are matched lower-cased and trimmed.
func recordsFromTable(header []string, rows [][]string) ([]models.ParticipantRecord, error) {
	if len(rows) == 0 {
		return []models.ParticipantRecord{}, nil
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, seen := index[key]; !seen {
			index[key] = i
		}
	}

	var missing []string
	for _, column := range []string{models.ColumnJoinTime, models.ColumnLeaveTime} {
		if _, ok := index[column]; !ok {
			missing = append(missing, column)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing columns: %s", strings.Join(missing, ", "))
	}

	field := func(row []string, column string) string {
		i, ok := index[column]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	records := make([]models.ParticipantRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, models.ParticipantRecord{
			ID:              field(row, models.ColumnID),
			Name:            field(row, models.ColumnName),
			Email:           field(row, models.ColumnUserEmail),
			JoinTime:        field(row, models.ColumnJoinTime),
			LeaveTime:       field(row, models.ColumnLeaveTime),
			DurationMinutes: field(row, models.ColumnDuration),
		})
	}
	return records, nil
}

func parseReportTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time")
	}
	var lastErr error
	for _, layout := range reportTimeLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
