// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// MockTokenStore implements TokenStore for testing
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) Get(ctx context.Context) (models.AccessToken, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.AccessToken), args.Bool(1), args.Error(2)
}

func (m *MockTokenStore) Set(ctx context.Context, token models.AccessToken, ttl time.Duration) error {
	args := m.Called(ctx, token, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) Delete(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
