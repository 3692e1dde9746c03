// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// MockAccessTokenProvider implements AccessTokenProvider for testing
type MockAccessTokenProvider struct {
	mock.Mock
}

func (m *MockAccessTokenProvider) RequestAccessToken(ctx context.Context) (models.AccessToken, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.AccessToken), args.Error(1)
}

// MockParticipantsReportClient implements ParticipantsReportClient for testing
type MockParticipantsReportClient struct {
	mock.Mock
}

func (m *MockParticipantsReportClient) GetParticipantsReportPage(ctx context.Context, token models.AccessToken, meetingID, nextPageToken string) (*domain.ParticipantsReportPage, error) {
	args := m.Called(ctx, token, meetingID, nextPageToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ParticipantsReportPage), args.Error(1)
}
