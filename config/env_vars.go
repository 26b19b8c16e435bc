// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// envPrefix starts every variable the service reads.
const envPrefix = "SAFEBITES_"

// configFileEnv names the config file. It is read by LoadConfig, not by an env tag.
const configFileEnv = envPrefix + "CONFIGFILE"

var (
	errNotStructPointer  = errors.New("expected a pointer to a struct")
	errUnsupportedField  = errors.New("unsupported field type")
	errMalformedEnvValue = errors.New("malformed environment value")
)

var durationType = reflect.TypeFor[time.Duration]()

// envField is one struct field bound to an environment variable.
type envField struct {
	name      string // variable name, e.g. SAFEBITES_PORT
	overwrite bool   // replace a value already set from YAML
	path      string // Go path for error messages, e.g. Basic.Port
	value     reflect.Value
}

// collectEnvFields walks v, a pointer to a struct, and returns every field
// carrying an env tag. Untagged struct fields are descended into.
func collectEnvFields(v any) ([]envField, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w, got %T", errNotStructPointer, v)
	}

	var fields []envField

	var walk func(rv reflect.Value, prefix string)

	walk = func(rv reflect.Value, prefix string) {
		rt := rv.Type()

		for i := range rt.NumField() {
			sf, fv := rt.Field(i), rv.Field(i)
			if !sf.IsExported() {
				continue
			}

			tag, ok := sf.Tag.Lookup("env")
			if !ok {
				if fv.Kind() == reflect.Struct {
					walk(fv, prefix+sf.Name+".")
				}

				continue
			}

			name, opts, _ := strings.Cut(tag, ",")

			fields = append(fields, envField{
				name:      name,
				overwrite: slices.Contains(strings.Split(opts, ","), "overwrite"),
				path:      prefix + sf.Name,
				value:     fv,
			})
		}
	}

	walk(rv.Elem(), "")

	return fields, nil
}

// readEnv copies environment variables into cfg.
//
// A variable only replaces a value already loaded from YAML when its field is
// tagged with overwrite. Unset variables leave the SetDefaults value in place.
func readEnv(cfg *Config) error {
	fields, err := collectEnvFields(cfg)
	if err != nil {
		return err
	}

	known := make(map[string]struct{}, len(fields)+1)
	known[configFileEnv] = struct{}{}

	for _, f := range fields {
		known[f.name] = struct{}{}

		raw, ok := os.LookupEnv(f.name)
		if !ok || (!f.overwrite && !f.value.IsZero()) {
			continue
		}

		if err := setFromEnv(f.value, raw); err != nil {
			return fmt.Errorf("%s (%s=%q): %w", f.path, f.name, raw, err)
		}
	}

	warnUnknownEnv(known)

	return nil
}

// setFromEnv parses raw into v according to v's type.
func setFromEnv(v reflect.Value, raw string) error {
	raw = strings.TrimSpace(raw)

	switch {
	case v.Type() == durationType:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%w: %w", errMalformedEnvValue, err)
		}

		v.SetInt(int64(d))

		return nil
	case v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.String:
		// Comma-separated lists: API keys, default allergens, log outputs.
		items := strings.Split(raw, ",")
		list := make([]string, 0, len(items))

		for _, item := range items {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}

		v.Set(reflect.ValueOf(list))

		return nil
	}

	var err error

	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		var b bool

		if b, err = strconv.ParseBool(raw); err == nil {
			v.SetBool(b)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64

		if n, err = strconv.ParseInt(raw, 10, v.Type().Bits()); err == nil {
			v.SetInt(n)
		}
	case reflect.Float32, reflect.Float64:
		var x float64

		if x, err = strconv.ParseFloat(raw, v.Type().Bits()); err == nil {
			v.SetFloat(x)
		}
	default:
		return fmt.Errorf("%w: %s", errUnsupportedField, v.Type())
	}

	if err != nil {
		return fmt.Errorf("%w: %w", errMalformedEnvValue, err)
	}

	return nil
}

// warnUnknownEnv logs SAFEBITES_ variables that no config field reads,
// which usually means a typo in a deployment.
func warnUnknownEnv(known map[string]struct{}) {
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(name, envPrefix) {
			continue
		}

		if _, ok := known[name]; !ok {
			log.Warn().
				Str("variable", name).
				Msg("Ignoring unknown environment variable")
		}
	}
}

// dotEnvDirs lists where a .env file is looked for, in order.
func dotEnvDirs() []string {
	var dirs []string

	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	} else {
		log.Warn().Err(err).Msg("Could not get current working directory")
	}

	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}

	return dirs
}

// useDotEnv loads the first .env file found in dotEnvDirs into the process
// environment. A missing file is not an error.
func useDotEnv() error {
	for _, dir := range dotEnvDirs() {
		path := filepath.Join(dir, ".env")

		loaded, err := loadDotEnv(path)
		if err != nil {
			return err
		}

		if loaded {
			return nil
		}
	}

	log.Debug().Msg("No .env file found, skipping")

	return nil
}

// loadDotEnv parses KEY=value lines from path and sets each variable that is
// not already present in the environment. Lines may start with "export ", and
// values may be wrapped in matching single or double quotes.
//
// It reports whether the file existed.
func loadDotEnv(path string) (bool, error) {
	f, err := os.Open(path) // #nosec G304 -- path is built from the working or binary directory
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(strings.TrimPrefix(line, "export "), "=")
		if !ok {
			log.Warn().
				Str("path", path).
				Int("line", lineNumber).
				Msg("Ignoring malformed line in .env file")

			continue
		}

		key = strings.TrimSpace(key)
		value = unquote(strings.TrimSpace(value))

		if _, set := os.LookupEnv(key); set {
			continue
		}

		if err := os.Setenv(key, value); err != nil {
			return true, fmt.Errorf("failed to set %s from %s: %w", key, path, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return true, fmt.Errorf("failed to read %s: %w", path, err)
	}

	log.Info().Str("path", path).Msg("Loaded environment from .env file")

	return true, nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == s[len(s)-1] && (s[0] == '"' || s[0] == '\'') {
		return s[1 : len(s)-1]
	}

	return s
}
