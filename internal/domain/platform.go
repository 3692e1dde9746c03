// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// AccessTokenProvider obtains a fresh access token from the provider's OAuth endpoint.
type AccessTokenProvider interface {
	RequestAccessToken(ctx context.Context) (models.AccessToken, error)
}

// ParticipantsReportPage is one page of the participants report.
type ParticipantsReportPage struct {
	PageCount     int
	PageSize      int
	TotalRecords  int
	NextPageToken string
	Participants  []models.ZoomReportParticipant
	// RawParticipants holds the same entries verbatim.
	RawParticipants [][]byte
}

// ParticipantsReportClient reads the provider's participants report.
type ParticipantsReportClient interface {
	GetParticipantsReportPage(ctx context.Context, token models.AccessToken, meetingID, nextPageToken string) (*ParticipantsReportPage, error)
}

// WebhookValidator verifies inbound webhook deliveries.
type WebhookValidator interface {
	ValidateSignature(body []byte, signature, timestamp string) error
	// SignPlainToken answers the provider's URL validation challenge.
	SignPlainToken(plainToken string) (string, error)
}
