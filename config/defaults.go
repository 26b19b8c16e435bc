// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import "time"

const (
	// Default cache TTL in minutes.
	defaultCacheTTLMinutes = 60

	// Default idle time after which an inbound client limiter is discarded, in minutes.
	defaultLimiterExpiryMinutes = 10

	// Default key manager base timeout in milliseconds.
	defaultKeyBaseTimeoutMs = 1000
	// Default key manager max backoff time in milliseconds.
	defaultKeyMaxBackoffMs = 32000

	// Default bound on a single detect or translate call, in seconds.
	defaultCallTimeoutSeconds = 8

	// DefaultGoogleEndpoint is the Cloud Translation v2 base URL.
	DefaultGoogleEndpoint = "https://translation.googleapis.com/language/translate/v2"
)

// defaultAllergens mirrors the starter list offered to new users. All entries start disabled.
var defaultAllergens = []string{
	"Eggs",
	"Milk",
	"Peanuts",
	"Shellfish",
	"Sesame",
	"Soy",
	"Tree nuts",
	"Wheat",
}

// SetDefaults populates the configuration with default values.
func (cfg *Config) SetDefaults() {
	cfg.Basic.Host = "localhost"
	cfg.Basic.Port = "8383"

	cfg.Translation.Backend = GoogleBackend
	cfg.Translation.Endpoint = DefaultGoogleEndpoint
	cfg.Translation.KeyLoadBalancing = "round-robin"
	cfg.Translation.KeyBaseTimeout = defaultKeyBaseTimeoutMs * time.Millisecond
	cfg.Translation.KeyMaxBackoff = defaultKeyMaxBackoffMs * time.Millisecond
	cfg.Translation.CallTimeout = defaultCallTimeoutSeconds * time.Second
	cfg.Translation.RequestsPerSecond = 10
	cfg.Translation.Burst = 20
	cfg.Translation.MaxConcurrency = 4

	cfg.User.Language = "en"

	cfg.Allergens.Defaults = append([]string(nil), defaultAllergens...)

	cfg.Match.WordBoundary = false

	cfg.Limiter.Enabled = true
	cfg.Limiter.RequestsPerSecond = 5
	cfg.Limiter.Burst = 30
	cfg.Limiter.IPv4Prefix = 24
	cfg.Limiter.IPv6Prefix = 48
	cfg.Limiter.Expiry = defaultLimiterExpiryMinutes * time.Minute

	cfg.Cache.Enabled = true
	cfg.Cache.Size = 500
	cfg.Cache.TTL = defaultCacheTTLMinutes * time.Minute
	cfg.Cache.Compress = false

	cfg.Development.SaveResponses = false
	cfg.Development.ResponseSaveLocation = "/tmp/safebites/responses"

	cfg.Log.Level = "info"
	cfg.Log.Outputs = []string{"/dev/stderr"}
	cfg.Log.Format = "console"

	cfg.Internationalization.StrictMissingKeys = false
}
