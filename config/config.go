// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"codeberg.org/safebites/safebites/core/idgen"
)

// Global exposes the service configuration.
var Global Config

var (
	// staticSkippedPathPrefixes are never logged by middleware.CatchError.
	staticSkippedPathPrefixes = []string{"/healthz"}

	// devSkippedPathPrefixes are additionally skipped in development.
	devSkippedPathPrefixes = []string{"/debug/"}
)

// Possible values for TranslationBackend.
const (
	GoogleBackend   TranslationBackend = "google"
	IdentityBackend TranslationBackend = "identity"
)

// TranslationBackend selects the implementation behind translate.Detector and translate.Translator.
type TranslationBackend string

// Config holds the application configuration.
type Config struct {
	Build buildInfo `yaml:"-"`

	Basic struct {
		Host string `env:"SAFEBITES_HOST,overwrite" yaml:"host"`
		Port string `env:"SAFEBITES_PORT,overwrite" yaml:"port"`

		// UnixSocket, when set, replaces the TCP listener.
		UnixSocket               string      `env:"SAFEBITES_UNIXSOCKET,overwrite" yaml:"unixSocket"`
		RawUnixSocketPermissions string      `env:"SAFEBITES_UNIXSOCKET_PERMISSIONS,overwrite" yaml:"unixSocketPermissions"`
		UnixSocketPermissions    os.FileMode `yaml:"-"`
		UnixSocketUser           string      `env:"SAFEBITES_UNIXSOCKET_USER,overwrite" yaml:"unixSocketUser"`
		UnixSocketGroup          string      `env:"SAFEBITES_UNIXSOCKET_GROUP,overwrite" yaml:"unixSocketGroup"`
	} `yaml:"basic"`

	Translation struct {
		Backend          TranslationBackend `env:"SAFEBITES_TRANSLATION_BACKEND,overwrite" yaml:"backend"`
		Endpoint         string             `env:"SAFEBITES_TRANSLATION_ENDPOINT,overwrite" yaml:"endpoint"`
		APIKeys          []string           `env:"SAFEBITES_TRANSLATION_API_KEYS" yaml:"apiKeys"`
		KeyLoadBalancing string             `env:"SAFEBITES_TRANSLATION_KEY_LOAD_BALANCING,overwrite" yaml:"keyLoadBalancing"`
		KeyBaseTimeout   time.Duration      `env:"SAFEBITES_TRANSLATION_KEY_BASE_TIMEOUT,overwrite" yaml:"keyBaseTimeout"`
		KeyMaxBackoff    time.Duration      `env:"SAFEBITES_TRANSLATION_KEY_MAX_BACKOFF,overwrite" yaml:"keyMaxBackoff"`
		// CallTimeout bounds every detect or translate call.
		CallTimeout       time.Duration `env:"SAFEBITES_TRANSLATION_CALL_TIMEOUT,overwrite" yaml:"callTimeout"`
		RequestsPerSecond float64       `env:"SAFEBITES_TRANSLATION_RPS,overwrite" yaml:"requestsPerSecond"`
		Burst             int           `env:"SAFEBITES_TRANSLATION_BURST,overwrite" yaml:"burst"`
		MaxConcurrency    int           `env:"SAFEBITES_TRANSLATION_MAX_CONCURRENCY,overwrite" yaml:"maxConcurrency"`
	} `yaml:"translation"`

	User struct {
		Language string `env:"SAFEBITES_USER_LANGUAGE,overwrite" yaml:"language"`
	} `yaml:"user"`

	Allergens struct {
		Defaults []string `env:"SAFEBITES_ALLERGEN_DEFAULTS,overwrite" yaml:"defaults"`
	} `yaml:"allergens"`

	Match struct {
		WordBoundary bool `env:"SAFEBITES_MATCH_WORD_BOUNDARY,overwrite" yaml:"wordBoundary"`
	} `yaml:"match"`

	// Limiter throttles inbound API clients per network so a single client
	// cannot exhaust the translation quota.
	Limiter struct {
		Enabled           bool          `env:"SAFEBITES_LIMITER,overwrite" yaml:"enabled"`
		RequestsPerSecond float64       `env:"SAFEBITES_LIMITER_RPS,overwrite" yaml:"requestsPerSecond"`
		Burst             int           `env:"SAFEBITES_LIMITER_BURST,overwrite" yaml:"burst"`
		IPv4Prefix        int           `env:"SAFEBITES_LIMITER_IPV4_PREFIX,overwrite" yaml:"ipv4Prefix"`
		IPv6Prefix        int           `env:"SAFEBITES_LIMITER_IPV6_PREFIX,overwrite" yaml:"ipv6Prefix"`
		Expiry            time.Duration `env:"SAFEBITES_LIMITER_EXPIRY,overwrite" yaml:"expiry"`
	} `yaml:"limiter"`

	Cache struct {
		Enabled  bool          `env:"SAFEBITES_CACHE,overwrite" yaml:"enabled"`
		Size     int           `env:"SAFEBITES_CACHE_SIZE,overwrite" yaml:"cacheSize"`
		TTL      time.Duration `env:"SAFEBITES_CACHE_TTL,overwrite" yaml:"cacheTTL"`
		Compress bool          `env:"SAFEBITES_CACHE_COMPRESS,overwrite" yaml:"compress"`
	} `yaml:"cache"`

	Instance struct {
		StartingTime string `yaml:"-"`
		InstanceID   string `yaml:"-"`
	} `yaml:"-"`

	Development struct {
		InDevelopment        bool   `env:"SAFEBITES_DEV" yaml:"inDevelopment"`
		SaveResponses        bool   `env:"SAFEBITES_SAVE_RESPONSES,overwrite" yaml:"saveResponses"`
		ResponseSaveLocation string `env:"SAFEBITES_RESPONSE_SAVE_LOCATION,overwrite" yaml:"responseSaveLocation"`
	} `yaml:"development"`

	Log struct {
		Level   string   `env:"SAFEBITES_LOG_LEVEL,overwrite" yaml:"logLevel"`
		Outputs []string `env:"SAFEBITES_LOG_OUTPUTS,overwrite" yaml:"logOutputs"`
		Format  string   `env:"SAFEBITES_LOG_FORMAT,overwrite" yaml:"logFormat"`
	} `yaml:"log"`

	Internationalization struct {
		// Strict mode for missing keys.
		//
		// When enabled, missing keys are logged (deduplicated per locale+key) and
		// visibly wrapped using markers.
		StrictMissingKeys bool `env:"SAFEBITES_STRICT_MISSING_KEYS" yaml:"strictMissingKeys"`
	} `yaml:"internationalization"`
}

// LoadConfig loads the configuration from various sources.
func (cfg *Config) LoadConfig() error {
	parsedConfigFlagValue := parseCommandLineArgs()

	// Check if the -config flag was explicitly set by the user.
	configFlagUserSet := false

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			configFlagUserSet = true
		}
	})

	var configFilePath string

	// Determine the config file path with the correct precedence:
	// 1. Command-line flag (-config)
	// 2. Environment variable (SAFEBITES_CONFIGFILE)
	// 3. Default path with fallback check
	if configFlagUserSet {
		configFilePath = parsedConfigFlagValue
	} else if envVar := os.Getenv("SAFEBITES_CONFIGFILE"); envVar != "" {
		configFilePath = envVar
	} else {
		configFilePath = parsedConfigFlagValue
		if _, err := os.Stat(configFilePath); os.IsNotExist(err) {
			ymlPath := "./config.yml"
			if _, statErr := os.Stat(ymlPath); statErr == nil {
				configFilePath = ymlPath
			}
		}
	}

	cfg.SetDefaults()

	cfg.Build.load()

	cfg.Instance.InstanceID = idgen.Make()
	cfg.Instance.StartingTime = time.Now().UTC().Format("2006-01-02 15:04")

	if err := cfg.readYAML(configFilePath); err != nil {
		return fmt.Errorf("error loading YAML config: %w", err)
	}

	if err := useDotEnv(); err != nil {
		return fmt.Errorf("error using .env file: %w", err)
	}

	if err := readEnv(cfg); err != nil {
		return fmt.Errorf("error loading environment variables: %w", err)
	}

	if err := cfg.validateAndSet(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	cfg.setupAudit()

	cfg.print()

	return nil
}

// GetDurationEncoderOption returns a YAML encoder option that marshals
// time.Duration into a human-readable string format (e.g., "30m", "1h").
func GetDurationEncoderOption() yaml.EncodeOption {
	return yaml.CustomMarshaler[time.Duration](
		func(d time.Duration) ([]byte, error) {
			return yaml.Marshal(d.String())
		},
	)
}

// ShouldSkipServerLogging reports whether requests to path are left out of the request log.
func (cfg *Config) ShouldSkipServerLogging(path string) bool {
	for _, prefix := range staticSkippedPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	if cfg.Development.InDevelopment {
		for _, prefix := range devSkippedPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				return true
			}
		}
	}

	return false
}
