// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Command genconfig writes the example .env and YAML configuration files from
// the defaults in package config.
package main

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/rs/zerolog/log"

	"codeberg.org/safebites/safebites/config"
	"codeberg.org/safebites/safebites/core/audit"
)

const (
	envOutputFile  = "deploy/.env.example"
	yamlOutputFile = "deploy/config.yaml.example"
	dirPerm        = 0o755
	filePerm       = 0o644

	placeholderAPIKey = "your-translation-api-key"

	envFileHeader = `# SafeBites configuration (via environment variables)
#
# Copy this file to .env and customize the values below.
#
# This file was auto-generated using go run ./cmd/genconfig.

`
	yamlFileHeader = `# SafeBites configuration (via configuration file)
#
# Copy this file to config.yaml and customize the values below.
#
# This file was auto-generated using go run ./cmd/genconfig.
`
	proxySettingsComment = `
## Network proxy settings for the translation backend
## ref: https://pkg.go.dev/net/http#ProxyFromEnvironment
# HTTPS_PROXY=
# HTTP_PROXY=`

	apiKeysYAMLComment = `  # -- Keys for the translation backend. Several keys are rotated and
  # backed off independently when one is rejected.`
)

// skippedSections are Config fields that are not user configuration.
var skippedSections = map[string]struct{}{
	"Build":    {},
	"Instance": {},
}

func main() {
	audit.SetDefaultLogger()

	if err := os.MkdirAll("deploy", dirPerm); err != nil {
		log.Fatal().Err(err).Msg("Failed to create deploy directory")
	}

	generateEnvFile()
	generateYAMLFile()
}

// generateEnvFile generates the deploy/.env.example file.
func generateEnvFile() {
	cfg := &config.Config{}
	cfg.SetDefaults()

	var sb strings.Builder
	sb.WriteString(envFileHeader)

	val := reflect.ValueOf(*cfg)
	typ := val.Type()

	for i := range typ.NumField() {
		structField := typ.Field(i)
		structValue := val.Field(i)

		if structValue.Kind() != reflect.Struct {
			continue
		}

		if _, skip := skippedSections[structField.Name]; skip {
			continue
		}

		fmt.Fprintf(&sb, "## %s\n", structField.Name)

		innerTyp := structValue.Type()
		for j := range innerTyp.NumField() {
			field := innerTyp.Field(j)
			value := structValue.Field(j)

			tag, ok := field.Tag.Lookup("env")
			if !ok {
				continue
			}

			envVarName := strings.Split(tag, ",")[0]

			switch envVarName {
			case "SAFEBITES_TRANSLATION_API_KEYS":
				fmt.Fprintf(&sb, "%s=\"%s\"\n", envVarName, placeholderAPIKey)
			case "SAFEBITES_PORT", "SAFEBITES_HOST", "SAFEBITES_TRANSLATION_ENDPOINT":
				// Uncomment essential fields.
				fmt.Fprintf(&sb, "%s=\"%v\"\n", envVarName, value.Interface())
			default:
				// Leave slices and empty strings without a value to prompt user input.
				if value.Kind() == reflect.Slice || (value.Kind() == reflect.String && value.Len() == 0) {
					fmt.Fprintf(&sb, "# %s=\n", envVarName)
				} else {
					fmt.Fprintf(&sb, "# %s=%v\n", envVarName, value.Interface())
				}
			}
		}

		sb.WriteString("\n")
	}

	sb.WriteString(strings.TrimSpace(proxySettingsComment) + "\n\n")

	if err := os.WriteFile(envOutputFile, []byte(sb.String()), filePerm); err != nil {
		log.Fatal().Err(err).Str("path", envOutputFile).Msg("Failed to write .env.example file")
	}

	log.Info().Str("path", envOutputFile).Msg("Successfully generated .env.example")
}

// generateYAMLFile generates the deploy/config.yaml.example file.
func generateYAMLFile() {
	cfg := &config.Config{}
	cfg.SetDefaults()

	cfg.Translation.APIKeys = []string{placeholderAPIKey}

	var yamlContent strings.Builder

	encoderOpts := []yaml.EncodeOption{
		config.GetDurationEncoderOption(),
		yaml.Indent(2),
	}
	if err := yaml.NewEncoder(&yamlContent, encoderOpts...).Encode(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to marshal config to YAML")
	}

	var sb strings.Builder
	sb.WriteString(yamlFileHeader)

	for line := range strings.SplitSeq(yamlContent.String(), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		// Top-level keys (e.g., "basic:") are treated as section headers.
		if !strings.HasPrefix(line, " ") {
			fmt.Fprintf(&sb, "\n%s\n", line)

			continue
		}

		// Keep the API keys and the endpoint they belong to uncommented.
		if strings.HasPrefix(trimmed, "apiKeys:") {
			sb.WriteString(apiKeysYAMLComment + "\n")
			sb.WriteString(line + "\n")

			continue
		}

		if strings.HasPrefix(trimmed, "- "+placeholderAPIKey) || strings.HasPrefix(trimmed, "endpoint:") {
			sb.WriteString(line + "\n")

			continue
		}

		indentSize := len(line) - len(strings.TrimLeft(line, " "))
		fmt.Fprintf(&sb, "%s# %s\n", strings.Repeat(" ", indentSize), trimmed)
	}

	if err := os.WriteFile(yamlOutputFile, []byte(sb.String()), filePerm); err != nil {
		log.Fatal().Err(err).Str("path", yamlOutputFile).Msg("Failed to write config file")
	}

	log.Info().Str("path", yamlOutputFile).Msg("Successfully generated config.yaml.example")
}
