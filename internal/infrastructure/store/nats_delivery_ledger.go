// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"time"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
)

// deliveryRecord is the value stored for a claimed key.
type deliveryRecord struct {
	Key       string    `msgpack:"key"`
	ClaimedAt time.Time `msgpack:"claimed_at"`
}

// NatsDeliveryLedger is a DeliveryLedger backed by KV create-if-absent, so a
// claim holds across replicas.
type NatsDeliveryLedger struct {
	repo *NatsBaseRepository[deliveryRecord]
	keys *KeyBuilder
}

var _ domain.DeliveryLedger = (*NatsDeliveryLedger)(nil)

// NewNatsDeliveryLedger creates a ledger over the given bucket.
func NewNatsDeliveryLedger(kvStore INatsKeyValue) *NatsDeliveryLedger {
	return &NatsDeliveryLedger{
		repo: NewNatsBaseRepository[deliveryRecord](kvStore, "delivery"),
		keys: NewKeyBuilder(""),
	}
}

// Claim records key and reports whether this call created it.
func (l *NatsDeliveryLedger) Claim(ctx context.Context, key string) (bool, error) {
	return l.repo.Create(ctx, l.keys.EntityKey(KeyPrefixDelivery, key), &deliveryRecord{
		Key:       key,
		ClaimedAt: time.Now().UTC(),
	})
}

// Release removes a claim.
func (l *NatsDeliveryLedger) Release(ctx context.Context, key string) error {
	return l.repo.Delete(ctx, l.keys.EntityKey(KeyPrefixDelivery, key))
}
