// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"
)

// readYAML merges the YAML file at path into cfg on top of the defaults.
//
// A missing or empty file is skipped. Unknown keys are rejected.
func (cfg *Config) readYAML(path string) error {
	if path == "" {
		return nil
	}

	f, err := os.Open(path) // #nosec G304 -- path is the operator-supplied config file
	if errors.Is(err, os.ErrNotExist) {
		log.Info().
			Str("path", path).
			Msg("No YAML configuration file found, skipping")

		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to open configuration file %s: %w", path, err)
	}
	defer f.Close()

	err = yaml.NewDecoder(f, yaml.DisallowUnknownField()).Decode(cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML from %s: %w", path, err)
	}

	log.Info().
		Str("path", path).
		Msg("Loaded configuration file")

	return nil
}
