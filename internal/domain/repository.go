// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"time"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// TokenStore holds the single cached provider access token.
// Implementations can be backed by process memory or a shared KV bucket.
type TokenStore interface {
	// Get returns the stored token. The bool is false when nothing is stored
	// or the stored token has expired.
	Get(ctx context.Context) (models.AccessToken, bool, error)
	Set(ctx context.Context, token models.AccessToken, ttl time.Duration) error
	Delete(ctx context.Context) error
}

// DeliveryLedger records which keys have been claimed. Claim is
// create-if-absent: it returns true only for the first caller.
type DeliveryLedger interface {
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets a claim so that a later delivery can try again.
	Release(ctx context.Context, key string) error
}

// ReportStore persists report files.
type ReportStore interface {
	// WriteRawReport writes the merged participants report as indented JSON
	// and returns its path.
	WriteRawReport(ctx context.Context, report *models.RawReport) (string, error)
	// WriteParticipantsCSV writes the intermediate CSV and returns its path.
	WriteParticipantsCSV(ctx context.Context, meetingID string, records []models.ParticipantRecord) (string, error)
	// ReadTable reads a CSV file into its header and data rows.
	ReadTable(ctx context.Context, path string) ([]string, [][]string, error)
	// ReadFile returns a report file's bytes.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// WriteTable atomically writes a CSV file.
	WriteTable(ctx context.Context, path string, header []string, rows [][]string) error
}
