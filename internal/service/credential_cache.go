// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

// ErrNoToken is wrapped by every error returned when no access token could be obtained.
var ErrNoToken = errors.New("no access token")

// TokenSource hands out a valid provider access token.
type TokenSource interface {
	Token(ctx context.Context) (models.AccessToken, error)
}

// CredentialCache keeps the provider access token. Refreshes are serialized by
// a mutex; readers load the current token through an atomic pointer and never
// observe a half-written value.
type CredentialCache struct {
	provider domain.AccessTokenProvider
	store    domain.TokenStore

	mu      sync.Mutex
	current atomic.Pointer[models.AccessToken]
	now     func() time.Time
}

var _ TokenSource = (*CredentialCache)(nil)

// NewCredentialCache creates a cache backed by store that refreshes through provider.
func NewCredentialCache(provider domain.AccessTokenProvider, store domain.TokenStore) *CredentialCache {
	return &CredentialCache{
		provider: provider,
		store:    store,
		now:      time.Now,
	}
}

// ServiceReady checks if the cache has its dependencies.
func (c *CredentialCache) ServiceReady() bool {
	return c.provider != nil && c.store != nil
}

// Token returns the cached token while it is valid and requests a new one
// otherwise. The token endpoint is called at most once per refresh; there is
// no retry loop.
func (c *CredentialCache) Token(ctx context.Context) (models.AccessToken, error) {
	if token := c.current.Load(); token != nil && !token.Expired(c.now()) {
		return *token, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another caller may have refreshed while we waited.
	if token := c.current.Load(); token != nil && !token.Expired(c.now()) {
		return *token, nil
	}

	ctx = logging.WithStage(ctx, StageCredential)

	stored, ok, err := c.store.Get(ctx)
	if err != nil {
		slog.WarnContext(ctx, "token store read failed, requesting a new token", logging.ErrKey, err)
	} else if ok && !stored.Expired(c.now()) {
		c.current.Store(&stored)
		return stored, nil
	}

	token, err := c.provider.RequestAccessToken(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to obtain access token", logging.ErrKey, err)
		return models.AccessToken{}, domain.NewCredentialError("failed to obtain access token", ErrNoToken, err)
	}
	if token.Value == "" {
		slog.ErrorContext(ctx, "token endpoint returned an empty access token")
		return models.AccessToken{}, domain.NewCredentialError("token endpoint returned an empty access token", ErrNoToken)
	}
	if token.IssuedAt.IsZero() {
		token.IssuedAt = c.now()
	}
	if token.TTLSeconds <= 0 {
		token.TTLSeconds = int64(models.DefaultAccessTokenTTL / time.Second)
	}

	if err := c.store.Set(ctx, token, time.Duration(token.TTLSeconds)*time.Second); err != nil {
		slog.WarnContext(ctx, "failed to store access token", logging.ErrKey, err)
	}
	c.current.Store(&token)

	slog.DebugContext(ctx, "access token refreshed", "expires_at", token.ExpiresAt())
	return token, nil
}

// Invalidate forgets the cached token, locally and in the backing store.
func (c *CredentialCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current.Store(nil)
	if err := c.store.Delete(ctx); err != nil {
		return domain.NewInternalError("failed to delete access token", err)
	}
	slog.InfoContext(ctx, "access token invalidated")
	return nil
}
