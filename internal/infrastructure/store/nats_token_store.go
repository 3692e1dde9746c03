// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"time"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

// NatsTokenStore keeps the access token in a NATS KV bucket so replicas
// share one token.
type NatsTokenStore struct {
	*NatsBaseRepository[models.AccessToken]
	key string
	now func() time.Time
}

var _ domain.TokenStore = (*NatsTokenStore)(nil)

// NewNatsTokenStore creates a token store for the given account.
func NewNatsTokenStore(kvStore INatsKeyValue, accountID string) *NatsTokenStore {
	return &NatsTokenStore{
		NatsBaseRepository: NewNatsBaseRepository[models.AccessToken](kvStore, "access token"),
		key:                NewKeyBuilder(KeyNameZoomAccount).EntityKey(KeyPrefixToken, accountID),
		now:                time.Now,
	}
}

// Get returns the stored token if it is present and not expired.
func (s *NatsTokenStore) Get(ctx context.Context) (models.AccessToken, bool, error) {
	token, err := s.NatsBaseRepository.Get(ctx, s.key)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return models.AccessToken{}, false, nil
		}
		return models.AccessToken{}, false, err
	}
	if token.Expired(s.now()) {
		return models.AccessToken{}, false, nil
	}
	return *token, true, nil
}

// Set stores the token with the given lifetime.
func (s *NatsTokenStore) Set(ctx context.Context, token models.AccessToken, ttl time.Duration) error {
	token.TTLSeconds = int64(ttl / time.Second)
	return s.NatsBaseRepository.Put(ctx, s.key, &token)
}

// Delete removes the stored token.
func (s *NatsTokenStore) Delete(ctx context.Context) error {
	return s.NatsBaseRepository.Delete(ctx, s.key)
}
