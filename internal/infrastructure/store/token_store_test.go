// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain/models"
)

func TestTokenStores(t *testing.T) {
	issued := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	stores := map[string]func(now func() time.Time) domain.TokenStore{
		"memory": func(now func() time.Time) domain.TokenStore {
			s := NewMemoryTokenStore()
			s.now = now
			return s
		},
		"nats": func(now func() time.Time) domain.TokenStore {
			s := NewNatsTokenStore(newMockNatsKeyValue(), "acc-1")
			s.now = now
			return s
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := issued
			store := newStore(func() time.Time { return now })

			_, ok, err := store.Get(ctx)
			require.NoError(t, err)
			assert.False(t, ok, "empty store")

			token := models.AccessToken{Value: "abc", IssuedAt: issued}
			require.NoError(t, store.Set(ctx, token, time.Hour))

			got, ok, err := store.Get(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "abc", got.Value)
			assert.Equal(t, int64(3600), got.TTLSeconds)
			assert.True(t, got.IssuedAt.Equal(issued))

			now = issued.Add(time.Hour)
			_, ok, err = store.Get(ctx)
			require.NoError(t, err)
			assert.False(t, ok, "expired token is not returned")

			now = issued
			require.NoError(t, store.Delete(ctx))
			_, ok, err = store.Get(ctx)
			require.NoError(t, err)
			assert.False(t, ok, "deleted token is not returned")

			require.NoError(t, store.Delete(ctx), "deleting twice")
		})
	}
}

func TestNatsTokenStore_BackendError(t *testing.T) {
	kv := newMockNatsKeyValue()
	kv.getError = errors.New("nats: timeout")
	store := NewNatsTokenStore(kv, "acc-1")

	_, ok, err := store.Get(context.Background())
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestMemoryTokenStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Set(ctx, models.AccessToken{Value: "token", IssuedAt: time.Now()}, time.Hour)
		}()
		go func() {
			defer wg.Done()
			if tok, ok, _ := store.Get(ctx); ok {
				assert.Equal(t, "token", tok.Value)
			}
		}()
	}
	wg.Wait()
}

func TestDeliveryLedgers(t *testing.T) {
	ledgers := map[string]func() domain.DeliveryLedger{
		"memory": func() domain.DeliveryLedger { return NewMemoryDeliveryLedger() },
		"nats":   func() domain.DeliveryLedger { return NewNatsDeliveryLedger(newMockNatsKeyValue()) },
	}

	for name, newLedger := range ledgers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ledger := newLedger()
			key := "123/4444AAAiAAAAAiAiAiiAii=="

			first, err := ledger.Claim(ctx, key)
			require.NoError(t, err)
			assert.True(t, first)

			second, err := ledger.Claim(ctx, key)
			require.NoError(t, err)
			assert.False(t, second)

			other, err := ledger.Claim(ctx, "124@2024-01-01T10:00:00Z")
			require.NoError(t, err)
			assert.True(t, other)

			require.NoError(t, ledger.Release(ctx, key))
			again, err := ledger.Claim(ctx, key)
			require.NoError(t, err)
			assert.True(t, again)
		})
	}
}

func TestMemoryDeliveryLedger_Retention(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryDeliveryLedger()
	now := time.Date(2024, 1, 15, 16, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return now }

	for _, key := range []string{"pipeline/123/a", "notify/123/a", "pipeline/124/b"} {
		claimed, err := ledger.Claim(ctx, key)
		require.NoError(t, err)
		require.True(t, claimed)
	}
	assert.Equal(t, 3, ledger.size())

	now = now.Add(DefaultDeliveryRetention - time.Minute)
	claimed, err := ledger.Claim(ctx, "pipeline/123/a")
	require.NoError(t, err)
	assert.False(t, claimed, "claims within the retention still hold")

	now = now.Add(time.Hour)
	claimed, err = ledger.Claim(ctx, "pipeline/125/c")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, 1, ledger.size(), "expired claims are swept")

	claimed, err = ledger.Claim(ctx, "pipeline/123/a")
	require.NoError(t, err)
	assert.True(t, claimed, "an expired claim can be taken again")
}

func TestDeliveryLedgers_ConcurrentClaims(t *testing.T) {
	ledgers := map[string]domain.DeliveryLedger{
		"memory": NewMemoryDeliveryLedger(),
		"nats":   NewNatsDeliveryLedger(newMockNatsKeyValue()),
	}

	for name, ledger := range ledgers {
		t.Run(name, func(t *testing.T) {
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				wins int
			)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := ledger.Claim(context.Background(), "occurrence")
					assert.NoError(t, err)
					if ok {
						mu.Lock()
						wins++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, wins)
		})
	}
}
