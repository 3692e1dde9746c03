// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/reports"
)

type reportDirs struct {
	raw       string
	csv       string
	processed string
}

func newReportDirs(t *testing.T) reportDirs {
	t.Helper()
	root := t.TempDir()
	dirs := reportDirs{
		raw:       filepath.Join(root, "raw"),
		csv:       filepath.Join(root, "csv"),
		processed: filepath.Join(root, "processed"),
	}
	require.NoError(t, reports.EnsureDirs(dirs.raw, dirs.csv, dirs.processed))
	return dirs
}

func (d reportDirs) store() *reports.FileStore {
	return reports.NewFileStore(d.raw, d.csv)
}

func writeCSV(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
}

func readCSV(t *testing.T, path string) ([]string, [][]string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	header, rows, err := reports.ReadCSV(f)
	require.NoError(t, err)
	return header, rows
}

func participant(id, name, email, join, leave, durationSeconds string) models.ZoomReportParticipant {
	return models.ZoomReportParticipant{
		ID:        id,
		Name:      name,
		UserEmail: email,
		JoinTime:  join,
		LeaveTime: leave,
		Duration:  json.RawMessage(durationSeconds),
	}
}

// page builds a report page whose raw entries are the JSON encoding of the participants.
func page(t *testing.T, next string, participants ...models.ZoomReportParticipant) *domain.ParticipantsReportPage {
	t.Helper()
	raw := make([][]byte, 0, len(participants))
	for _, p := range participants {
		b, err := json.Marshal(p)
		require.NoError(t, err)
		raw = append(raw, b)
	}
	return &domain.ParticipantsReportPage{
		PageCount:       1,
		PageSize:        300,
		TotalRecords:    len(participants),
		NextPageToken:   next,
		Participants:    participants,
		RawParticipants: raw,
	}
}

// standupParticipants is the two-person report of meeting 123: Ada on time for
// 95 minutes, Bob eleven minutes late.
func standupParticipants() []models.ZoomReportParticipant {
	return []models.ZoomReportParticipant{
		participant("u1", "Ada", "ada@example.com", "2024-01-15T14:00:00Z", "2024-01-15T15:35:00Z", "5700"),
		participant("u2", "Bob", "bob@example.com", "2024-01-15T14:11:00Z", "2024-01-15T15:46:00Z", "5700"),
	}
}
