// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
)

func TestNoOpService_ImplementsInterface(t *testing.T) {
	var _ domain.EmailService = (*NoOpService)(nil)
	var _ domain.EmailService = (*SMTPService)(nil)
}

func TestNoOpService(t *testing.T) {
	service := NewNoOpService()
	assert.NotNil(t, service)

	assert.NoError(t, service.SendReportNotification(context.Background(), testNotification("a@example.com")))
	assert.NoError(t, service.SendReportNotification(context.Background(), domain.ReportNotification{}))
}
