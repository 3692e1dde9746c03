// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package reports persists attendance report files on the local filesystem.
package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

const tracerName = "github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/reports"

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// FileStore writes raw JSON reports and participant CSVs into fixed directories.
type FileStore struct {
	rawDir string
	csvDir string
}

var _ domain.ReportStore = (*FileStore)(nil)

// NewFileStore creates a FileStore. Call EnsureDirs before first use.
func NewFileStore(rawDir, csvDir string) *FileStore {
	return &FileStore{rawDir: rawDir, csvDir: csvDir}
}

// EnsureDirs creates every directory that does not exist yet.
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("failed to create report directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteRawReport writes the merged report with two-space indentation,
// overwriting any previous file for the meeting.
func (s *FileStore) WriteRawReport(ctx context.Context, report *models.RawReport) (string, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "reports.write_raw")
	defer span.End()

	if report.Participants == nil {
		report.Participants = []json.RawMessage{}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to encode raw report: %w", err)
	}

	path := filepath.Join(s.rawDir, models.RawParticipantsFileName(report.MeetingID))
	span.SetAttributes(attribute.String("report.path", path))
	if err := WriteFileAtomic(path, append(data, '\n')); err != nil {
		span.RecordError(err)
		return "", err
	}

	slog.DebugContext(ctx, "raw participants report written", "path", path, "participants", len(report.Participants))
	return path, nil
}

// WriteParticipantsCSV writes the intermediate CSV. The write is atomic, so on
// failure the previous file for the meeting, if any, is left untouched.
func (s *FileStore) WriteParticipantsCSV(ctx context.Context, meetingID string, records []models.ParticipantRecord) (string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "reports.write_csv")
	defer span.End()

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.Row())
	}

	path := filepath.Join(s.csvDir, models.ParticipantsCSVFileName(meetingID))
	span.SetAttributes(attribute.String("report.path", path), attribute.Int("report.rows", len(rows)))
	if err := s.WriteTable(ctx, path, models.ParticipantColumns, rows); err != nil {
		span.RecordError(err)
		return "", err
	}

	return path, nil
}

// ReadTable reads a CSV file into its header and data rows. Rows may have a
// different field count than the header.
func (s *FileStore) ReadTable(_ context.Context, path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return ReadCSV(f)
}

// ReadFile returns the contents of a report file.
func (s *FileStore) ReadFile(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// WriteTable writes header and rows to path through a temporary file in the
// same directory, so readers only ever see complete files.
func (s *FileStore) WriteTable(_ context.Context, path string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, header, rows); err != nil {
		return err
	}
	return WriteFileAtomic(path, buf.Bytes())
}

// ReadCSV parses CSV data into its header and rows.
func ReadCSV(r io.Reader) ([]string, [][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("csv has no header row: %w", err)
		}
		return nil, nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read csv row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, row)
	}

	return header, rows, nil
}

// WriteCSV encodes header and rows as CSV.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv rows: %w", err)
	}
	return nil
}

// WriteFileAtomic writes data to a hidden temporary file next to path and
// renames it into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}
