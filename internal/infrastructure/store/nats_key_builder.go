// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// Common key prefixes
const (
	KeyPrefixToken      = "token"
	KeyPrefixDelivery   = "delivery"
	KeyNameZoomAccount  = "zoom-account"
	keyPartSeparator    = "."
	keyLogicalSeparator = "/"
)

// KeyBuilder provides utilities for building consistent NATS KV keys
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with an optional prefix
func NewKeyBuilder(prefix string) *KeyBuilder {
	return &KeyBuilder{
		prefix: prefix,
	}
}

// EntityKey builds an encoded key for an entity (e.g., "dG9rZW4.YWNjLTE" for
// token/acc-1). The id is encoded as a single part even if it contains "/".
func (kb *KeyBuilder) EntityKey(entityType, id string) string {
	parts := []string{entityType, id}
	if kb.prefix != "" {
		parts = append([]string{kb.prefix}, parts...)
	}
	encoded := make([]string, 0, len(parts))
	for _, part := range parts {
		encoded = append(encoded, base64.RawURLEncoding.EncodeToString([]byte(part)))
	}
	return strings.Join(encoded, keyPartSeparator)
}

// EncodeKey encodes a logical "/"-separated key for NATS KV store. Every part
// is base64url encoded without padding so the result only uses characters
// NATS accepts in keys.
//
// NATS limitations: https://docs.nats.io/nats-concepts/jetstream/key-value-store#notes
func (kb *KeyBuilder) EncodeKey(key string) (string, error) {
	trimmed := strings.TrimPrefix(key, keyLogicalSeparator)
	if trimmed == "" {
		return "", nats.ErrInvalidKey
	}

	res := []string{}
	for _, part := range strings.Split(trimmed, keyLogicalSeparator) {
		res = append(res, base64.RawURLEncoding.EncodeToString([]byte(part)))
	}

	return strings.Join(res, keyPartSeparator), nil
}

// DecodeKey reverses EncodeKey.
func (kb *KeyBuilder) DecodeKey(key string) (string, error) {
	if key == "" {
		return "", nats.ErrInvalidKey
	}

	res := []string{}
	for _, part := range strings.Split(key, keyPartSeparator) {
		k, err := base64.RawURLEncoding.DecodeString(part)
		if err != nil {
			return "", fmt.Errorf("invalid key part %q: %w", part, err)
		}
		res = append(res, string(k))
	}

	return keyLogicalSeparator + strings.Join(res, keyLogicalSeparator), nil
}
