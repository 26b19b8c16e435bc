// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package audit

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetDefaultLogger provides an ok log output format on startup if no config is set.
func SetDefaultLogger() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// Sys returns a child of the global logger tagged with the given subsystem name.
//
// The child captures the global logger's writer at call time, so call Sys after
// configuration has been loaded.
func Sys(name string) zerolog.Logger {
	return log.With().Str("sys", name).Logger()
}
