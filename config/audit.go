// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"codeberg.org/safebites/safebites/core/audit"
)

const (
	responseDirPermissions = 0o700
	logFilePermissions     = 0o666
)

var logLevels = map[string]zerolog.Level{
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"warn":  zerolog.WarnLevel,
	"error": zerolog.ErrorLevel,
}

// setupAudit configures the global logger and response saving.
func (cfg *Config) setupAudit() {
	if cfg.Development.InDevelopment {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else if level, ok := logLevels[cfg.Log.Level]; ok {
		zerolog.SetGlobalLevel(level)
	}

	writers := []io.Writer{}

	for _, output := range cfg.Log.Outputs {
		switch output {
		case "/dev/stdout":
			writers = append(writers, ConsoleWriter(os.Stdout))
		case "/dev/stderr":
			writers = append(writers, ConsoleWriter(os.Stderr))
		default:
			file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermissions) // #nosec:G302,G304
			if err != nil {
				// Unopenable outputs are skipped; the remaining writers still apply.
				fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v\n", output, err)

				continue
			}

			if cfg.Log.Format == "json" {
				writers = append(writers, file)
			} else {
				writers = append(writers, ConsoleWriter(file))
			}
		}
	}

	if len(writers) == 0 {
		writers = append(writers, ConsoleWriter(os.Stderr))
	}

	log.Logger = log.Output(zerolog.MultiLevelWriter(writers...))

	audit.SaveResponses = cfg.Development.SaveResponses
	audit.ResponseDirectory = cfg.Development.ResponseSaveLocation

	if audit.SaveResponses {
		if err := os.MkdirAll(audit.ResponseDirectory, responseDirPermissions); err != nil {
			log.Error().
				Err(err).
				Str("path", audit.ResponseDirectory).
				Msg("Failed to create response directory, disabling response saving")

			audit.SaveResponses = false
		}
	}
}

// ConsoleWriter returns a zerolog console writer for f, coloured only when f is a terminal.
func ConsoleWriter(f *os.File) io.Writer {
	noColor := !isatty.IsTerminal(f.Fd())

	w := zerolog.ConsoleWriter{Out: f, NoColor: noColor, TimeFormat: time.DateTime}

	if !noColor {
		w.FormatPrepare = func(m map[string]any) error {
			// compact one-line form for backend call logs
			if sys, ok := m["sys"]; ok && sys == "http" {
				m["message"] = fmt.Sprintf("[%s] %v %-5s %s", m["destination"], m["status_code"], m["method"], m["url"])
				delete(m, "sys")
				delete(m, "method")
				delete(m, "status_code")
				delete(m, "url")
				delete(m, "destination")
			}

			return nil
		}
	}

	return w
}
