// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

// validation errors.
var (
	errUnixSocketInvalidPermissions = errors.New("invalid Basic.UnixSocketPermissions value")
	errInvalidBackend               = errors.New("invalid Translation.Backend value")
	errNoAPIKeySupplied             = errors.New("no translation API key supplied. Please supply at least one key in SAFEBITES_TRANSLATION_API_KEYS")
	errInvalidEndpoint              = errors.New("invalid Translation.Endpoint")
	errInvalidKeyLoadBalancing      = errors.New("invalid Translation.KeyLoadBalancing value")
	errNonPositiveCallTimeout       = errors.New("Translation.CallTimeout must be positive")
	errInvalidRateLimit             = errors.New("Translation.RequestsPerSecond and Translation.Burst must be positive")
	errInvalidMaxConcurrency        = errors.New("Translation.MaxConcurrency must be at least 1")
	errInvalidUserLanguage          = errors.New("invalid User.Language")
	errInvalidLimiter               = errors.New("Limiter.RequestsPerSecond and Limiter.Burst must be positive when the limiter is enabled")
	errInvalidLimiterPrefix         = errors.New("Limiter.IPv4Prefix must be within 0-32 and Limiter.IPv6Prefix within 0-128")
	errInvalidCacheSize             = errors.New("Cache.Size must be positive when the cache is enabled")
)

var fileModeOctalRegexp = regexp.MustCompile(`^0?[0-7]{3}$`)

// validateAndSet validates the configuration and normalises some fields.
func (cfg *Config) validateAndSet() error {
	if cfg.Basic.UnixSocket != "" {
		switch {
		case cfg.Basic.RawUnixSocketPermissions == "":
			cfg.Basic.UnixSocketPermissions = 0o660
		case fileModeOctalRegexp.MatchString(cfg.Basic.RawUnixSocketPermissions):
			rawModeUint64, _ := strconv.ParseUint(cfg.Basic.RawUnixSocketPermissions, 8, 32)

			cfg.Basic.UnixSocketPermissions = os.FileMode(rawModeUint64)
		default:
			return errUnixSocketInvalidPermissions
		}
	}

	if cfg.Basic.Host == "" {
		cfg.Basic.Host = "localhost"
		log.Info().
			Str("host", cfg.Basic.Host).
			Msg("Binding to default host")
	}

	if cfg.Basic.Port == "" {
		cfg.Basic.Port = "8383"
		log.Info().
			Str("port", cfg.Basic.Port).
			Msg("Using default port")
	}

	switch cfg.Translation.Backend {
	case GoogleBackend:
		if len(cfg.Translation.APIKeys) == 0 {
			return errNoAPIKeySupplied
		}

		endpoint, err := url.Parse(cfg.Translation.Endpoint)
		if err != nil || endpoint.Host == "" || (endpoint.Scheme != "https" && endpoint.Scheme != "http") {
			return fmt.Errorf("%w: %q", errInvalidEndpoint, cfg.Translation.Endpoint)
		}

		cfg.Translation.Endpoint = strings.TrimSuffix(endpoint.String(), "/")
	case IdentityBackend:
		log.Warn().Msg("Identity translation backend selected; allergens are only detected in the user's language")
	default:
		return errInvalidBackend
	}

	switch cfg.Translation.KeyLoadBalancing {
	case "round-robin", "random", "least-recently-used":
		// valid
	default:
		return errInvalidKeyLoadBalancing
	}

	if cfg.Translation.CallTimeout <= 0 {
		return errNonPositiveCallTimeout
	}

	if cfg.Translation.RequestsPerSecond <= 0 || cfg.Translation.Burst <= 0 {
		return errInvalidRateLimit
	}

	if cfg.Translation.MaxConcurrency < 1 {
		return errInvalidMaxConcurrency
	}

	tag, err := language.Parse(cfg.User.Language)
	if err != nil {
		return fmt.Errorf("%w %q: %w", errInvalidUserLanguage, cfg.User.Language, err)
	}

	base, _ := tag.Base()
	cfg.User.Language = base.String()

	if cfg.Limiter.Enabled {
		if cfg.Limiter.RequestsPerSecond <= 0 || cfg.Limiter.Burst <= 0 {
			return errInvalidLimiter
		}

		if cfg.Limiter.IPv4Prefix < 0 || cfg.Limiter.IPv4Prefix > 32 ||
			cfg.Limiter.IPv6Prefix < 0 || cfg.Limiter.IPv6Prefix > 128 {
			return errInvalidLimiterPrefix
		}
	}

	if cfg.Cache.Enabled && cfg.Cache.Size <= 0 {
		return errInvalidCacheSize
	}

	return nil
}
