// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// MemoryTokenStore keeps the token in process memory. Readers never observe a
// partially written token because the whole value is swapped atomically.
type MemoryTokenStore struct {
	current atomic.Pointer[models.AccessToken]
	now     func() time.Time
}

var _ domain.TokenStore = (*MemoryTokenStore)(nil)

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{now: time.Now}
}

func (s *MemoryTokenStore) Get(_ context.Context) (models.AccessToken, bool, error) {
	token := s.current.Load()
	if token == nil || token.Expired(s.now()) {
		return models.AccessToken{}, false, nil
	}
	return *token, true, nil
}

func (s *MemoryTokenStore) Set(_ context.Context, token models.AccessToken, ttl time.Duration) error {
	token.TTLSeconds = int64(ttl / time.Second)
	s.current.Store(&token)
	return nil
}

func (s *MemoryTokenStore) Delete(_ context.Context) error {
	s.current.Store(nil)
	return nil
}
