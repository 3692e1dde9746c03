// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validNatsKey mirrors the characters NATS accepts in KV keys.
var validNatsKey = regexp.MustCompile(`^[-/_=.a-zA-Z0-9]+$`)

func TestKeyBuilder_EntityKey(t *testing.T) {
	tests := []struct {
		name       string
		prefix     string
		entityType string
		id         string
		want       string
	}{
		{
			name:       "token key",
			entityType: KeyPrefixToken,
			id:         "acc-1",
			want:       "dG9rZW4.YWNjLTE",
		},
		{
			name:       "with prefix",
			prefix:     "zoom-account",
			entityType: KeyPrefixToken,
			id:         "acc-1",
			want:       "em9vbS1hY2NvdW50.dG9rZW4.YWNjLTE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewKeyBuilder(tt.prefix).EntityKey(tt.entityType, tt.id))
		})
	}
}

func TestKeyBuilder_EntityKeyIsAlwaysValid(t *testing.T) {
	kb := NewKeyBuilder("")
	ids := []string{
		"123",
		"123/4444AAAiAAAAAiAiAiiAii==",
		"123//+abc/==",
		"123@2024-01-01T10:00:00Z",
		"pipeline/name with spaces/ü",
	}

	for _, id := range ids {
		key := kb.EntityKey(KeyPrefixDelivery, id)
		assert.Regexp(t, validNatsKey, key, "id %q", id)
		assert.NotContains(t, key, "..")
	}
}

func TestKeyBuilder_EncodeDecodeKey(t *testing.T) {
	kb := NewKeyBuilder("")

	encoded, err := kb.EncodeKey("/delivery/123@2024-01-01T10:00:00Z")
	require.NoError(t, err)
	assert.Regexp(t, validNatsKey, encoded)

	decoded, err := kb.DecodeKey(encoded)
	require.NoError(t, err)
	assert.Equal(t, "/delivery/123@2024-01-01T10:00:00Z", decoded)

	_, err = kb.EncodeKey("/")
	assert.Error(t, err)

	_, err = kb.DecodeKey("not*base64")
	assert.Error(t, err)
}
