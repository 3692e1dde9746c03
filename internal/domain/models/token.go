// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// DefaultAccessTokenTTL is how long a provider access token is cached.
const DefaultAccessTokenTTL = 3600 * time.Second

// AccessToken is a bearer token for the provider API.
type AccessToken struct {
	Value      string    `json:"value" msgpack:"value"`
	IssuedAt   time.Time `json:"issued_at" msgpack:"issued_at"`
	TTLSeconds int64     `json:"ttl_seconds" msgpack:"ttl_seconds"`
}

// ExpiresAt returns the instant after which the token must not be used.
func (t AccessToken) ExpiresAt() time.Time {
	return t.IssuedAt.Add(time.Duration(t.TTLSeconds) * time.Second)
}

// Expired reports whether the token is empty or past its expiry at now.
func (t AccessToken) Expired(now time.Time) bool {
	return t.Value == "" || !now.Before(t.ExpiresAt())
}
