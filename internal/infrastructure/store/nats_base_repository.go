// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-attendance-service/internal/logging"
)

// NATS Key-Value store bucket names
const (
	KVStoreNameAccessTokens = "attendance-access-tokens"
	KVStoreNameDeliveries   = "attendance-deliveries"
)

// tracerName is the instrumentation name for the store package.
const tracerName = "github.com/linuxfoundation/lfx-v2-attendance-service/internal/infrastructure/store"

// INatsKeyValue is the subset of jetstream.KeyValue the stores need.
type INatsKeyValue interface {
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(context.Context, string, []byte) (uint64, error)
	Create(context.Context, string, []byte, ...jetstream.KVCreateOpt) (uint64, error)
	Delete(context.Context, string, ...jetstream.KVDeleteOpt) error
}

// NatsBaseRepository provides common NATS KV operations for msgpack encoded entities
type NatsBaseRepository[T any] struct {
	kvStore    INatsKeyValue
	entityName string // Used in error messages (e.g., "access token", "delivery")
}

// NewNatsBaseRepository creates a new base repository for NATS KV operations
func NewNatsBaseRepository[T any](kvStore INatsKeyValue, entityName string) *NatsBaseRepository[T] {
	return &NatsBaseRepository[T]{
		kvStore:    kvStore,
		entityName: entityName,
	}
}

// IsReady checks if the repository is ready for use
func (r *NatsBaseRepository[T]) IsReady() bool {
	return r.kvStore != nil
}

func (r *NatsBaseRepository[T]) startSpan(ctx context.Context, operation, key string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "nats.kv."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "nats"),
			attribute.String("db.operation", operation),
			attribute.String("db.nats.key", key),
			attribute.String("db.nats.entity", r.entityName),
		),
	)
}

func recordSpanError(span trace.Span, err error, description string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, description)
	return err
}

func (r *NatsBaseRepository[T]) unavailable() error {
	return domain.NewUnavailableError(fmt.Sprintf("%s repository is not available", r.entityName))
}

// Get retrieves and decodes an entity. A missing key is a NotFound error.
func (r *NatsBaseRepository[T]) Get(ctx context.Context, key string) (*T, error) {
	ctx, span := r.startSpan(ctx, "get", key)
	defer span.End()

	if !r.IsReady() {
		err := r.unavailable()
		return nil, recordSpanError(span, err, err.Error())
	}

	entry, err := r.kvStore.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			err = domain.NewNotFoundError(fmt.Sprintf("%s with key '%s' not found", r.entityName, key), err)
			return nil, recordSpanError(span, err, "not found")
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error getting %s from NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		err = domain.NewInternalError(fmt.Sprintf("failed to retrieve %s from store", r.entityName), err)
		return nil, recordSpanError(span, err, err.Error())
	}

	var entity T
	if err := msgpack.Unmarshal(entry.Value(), &entity); err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("error decoding %s", r.entityName), logging.ErrKey, err)
		err = domain.NewInternalError(fmt.Sprintf("failed to decode %s data", r.entityName), err)
		return nil, recordSpanError(span, err, err.Error())
	}

	span.SetStatus(codes.Ok, "")
	return &entity, nil
}

// Put stores an entity, overwriting any previous value
func (r *NatsBaseRepository[T]) Put(ctx context.Context, key string, entity *T) error {
	ctx, span := r.startSpan(ctx, "put", key)
	defer span.End()

	if !r.IsReady() {
		err := r.unavailable()
		return recordSpanError(span, err, err.Error())
	}

	data, err := msgpack.Marshal(entity)
	if err != nil {
		err = domain.NewInternalError(fmt.Sprintf("failed to encode %s", r.entityName), err)
		return recordSpanError(span, err, err.Error())
	}

	if _, err := r.kvStore.Put(ctx, key, data); err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("error putting %s in NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		err = domain.NewInternalError(fmt.Sprintf("failed to store %s", r.entityName), err)
		return recordSpanError(span, err, err.Error())
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Create stores an entity only if the key does not exist yet. It reports
// false, without error, when the key is already present.
func (r *NatsBaseRepository[T]) Create(ctx context.Context, key string, entity *T) (bool, error) {
	ctx, span := r.startSpan(ctx, "create", key)
	defer span.End()

	if !r.IsReady() {
		err := r.unavailable()
		return false, recordSpanError(span, err, err.Error())
	}

	data, err := msgpack.Marshal(entity)
	if err != nil {
		err = domain.NewInternalError(fmt.Sprintf("failed to encode %s", r.entityName), err)
		return false, recordSpanError(span, err, err.Error())
	}

	if _, err := r.kvStore.Create(ctx, key, data); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			span.SetAttributes(attribute.Bool("db.nats.key_exists", true))
			span.SetStatus(codes.Ok, "")
			return false, nil
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error creating %s in NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		err = domain.NewInternalError(fmt.Sprintf("failed to create %s in store", r.entityName), err)
		return false, recordSpanError(span, err, err.Error())
	}

	span.SetStatus(codes.Ok, "")
	return true, nil
}

// Delete removes an entity. Deleting a missing key is not an error.
func (r *NatsBaseRepository[T]) Delete(ctx context.Context, key string) error {
	ctx, span := r.startSpan(ctx, "delete", key)
	defer span.End()

	if !r.IsReady() {
		err := r.unavailable()
		return recordSpanError(span, err, err.Error())
	}

	if err := r.kvStore.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		slog.ErrorContext(ctx, fmt.Sprintf("error deleting %s from NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		err = domain.NewInternalError(fmt.Sprintf("failed to delete %s from store", r.entityName), err)
		return recordSpanError(span, err, err.Error())
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
