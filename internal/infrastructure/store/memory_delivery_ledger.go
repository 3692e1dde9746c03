// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"sync"
	"time"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
)

// DefaultDeliveryRetention is how long a claim is remembered. The NATS
// deliveries bucket uses it as its TTL.
const DefaultDeliveryRetention = 7 * 24 * time.Hour

// sweepInterval bounds how often Claim scans for expired claims.
const sweepInterval = time.Hour

// MemoryDeliveryLedger is a process-local DeliveryLedger. Claims older than
// the retention are forgotten.
type MemoryDeliveryLedger struct {
	mu        sync.Mutex
	claimed   map[string]time.Time
	retention time.Duration
	lastSweep time.Time
	now       func() time.Time
}

var _ domain.DeliveryLedger = (*MemoryDeliveryLedger)(nil)

// NewMemoryDeliveryLedger creates an empty ledger with DefaultDeliveryRetention.
func NewMemoryDeliveryLedger() *MemoryDeliveryLedger {
	return &MemoryDeliveryLedger{
		claimed:   make(map[string]time.Time),
		retention: DefaultDeliveryRetention,
		now:       time.Now,
	}
}

// Claim records key and reports whether this call created it. An expired
// claim counts as absent.
func (l *MemoryDeliveryLedger) Claim(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	if at, ok := l.claimed[key]; ok && now.Sub(at) < l.retention {
		return false, nil
	}
	l.claimed[key] = now
	return true, nil
}

// Release removes a claim.
func (l *MemoryDeliveryLedger) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.claimed, key)
	return nil
}

// size returns the number of claims currently held.
func (l *MemoryDeliveryLedger) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.claimed)
}

func (l *MemoryDeliveryLedger) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now
	for key, at := range l.claimed {
		if now.Sub(at) >= l.retention {
			delete(l.claimed, key)
		}
	}
}
