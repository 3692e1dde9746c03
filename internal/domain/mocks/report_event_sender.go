// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// MockReportEventSender implements ReportEventSender for testing
type MockReportEventSender struct {
	mock.Mock
}

func (m *MockReportEventSender) SendReportProcessed(ctx context.Context, msg models.ReportProcessedMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
