// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"
	"time"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/zoom/api"
)

// MockClient is a mock implementation of the Zoom API client for local development and tests
type MockClient struct {
	RequestAccessTokenFunc        func(ctx context.Context) (models.AccessToken, error)
	GetParticipantsReportPageFunc func(ctx context.Context, token models.AccessToken, meetingID, nextPageToken string) (*domain.ParticipantsReportPage, error)
}

// NewMockClient creates a new mock client with default implementations
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements ClientAPI interface
var _ api.ClientAPI = (*MockClient)(nil)

// RequestAccessToken mocks the OAuth token call
func (m *MockClient) RequestAccessToken(ctx context.Context) (models.AccessToken, error) {
	if m.RequestAccessTokenFunc != nil {
		return m.RequestAccessTokenFunc(ctx)
	}
	return models.AccessToken{
		Value:      "mock-access-token",
		IssuedAt:   time.Now(),
		TTLSeconds: int64(models.DefaultAccessTokenTTL / time.Second),
	}, nil
}

// GetParticipantsReportPage mocks the participants report call
func (m *MockClient) GetParticipantsReportPage(ctx context.Context, token models.AccessToken, meetingID, nextPageToken string) (*domain.ParticipantsReportPage, error) {
	if m.GetParticipantsReportPageFunc != nil {
		return m.GetParticipantsReportPageFunc(ctx, token, meetingID, nextPageToken)
	}
	// Default mock response with one on-time and one late participant
	return &domain.ParticipantsReportPage{
		PageCount:    1,
		PageSize:     api.DefaultPageSize,
		TotalRecords: 2,
		Participants: []models.ZoomReportParticipant{
			{ID: "u1", Name: "Ada", UserEmail: "ada@example.com", JoinTime: "2024-01-01T10:00:00Z", LeaveTime: "2024-01-01T11:35:00Z", Duration: []byte("5700")},
			{ID: "u2", Name: "Bob", UserEmail: "bob@example.com", JoinTime: "2024-01-01T10:11:00Z", LeaveTime: "2024-01-01T11:46:00Z", Duration: []byte("5700")},
		},
		RawParticipants: [][]byte{
			[]byte(`{"id":"u1","name":"Ada","user_email":"ada@example.com","join_time":"2024-01-01T10:00:00Z","leave_time":"2024-01-01T11:35:00Z","duration":5700}`),
			[]byte(`{"id":"u2","name":"Bob","user_email":"bob@example.com","join_time":"2024-01-01T10:11:00Z","leave_time":"2024-01-01T11:46:00Z","duration":5700}`),
		},
	}, nil
}
