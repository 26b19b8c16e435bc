// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package i18n

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/language"

	"codeberg.org/safebites/safebites/core/audit"
	"codeberg.org/safebites/safebites/i18n/terms"
	"codeberg.org/safebites/safebites/server/assets"
)

// AllergenNamesFile is the location of the starter allergen names inside assets.FS.
const AllergenNamesFile = "i18n/terms/data/allergen_names.yaml"

var errNoAssets = errors.New("assets filesystem is not set")

var (
	// poDomain is the gettext domain to load under each locale.
	poDomain = "safebites"

	// localesByTag maps canonical BCP 47 tags, for example
	// "en", "ja", "es", to their loaded gotext.Locale.
	localesByTag map[string]*gotext.Locale

	// supportedTags holds the list of BCP 47 tags for which a locale was successfully loaded.
	supportedTags []language.Tag

	// matcher is a private [language.Matcher] derived from the loaded locales.
	matcher language.Matcher
)

// Setup initialises package i18n by loading gettext catalogues from assets.FS
// and constructing a language matcher.
//
// The expected layout is:
//
//	po/<locale>.po
//
// The <locale> filename part may use hyphens or underscores, for example "pt-BR.po" or "pt_BR.po",
// and is normalised to a canonical BCP 47 language tag for matching. The template file, "po/safebites.pot",
// is ignored. The base locale, specified by BaseLocale, is always included and acts as the default fallback.
//
// Calling Setup again replaces the previously loaded locales and matcher.
func Setup() error {
	Logger = audit.Sys("i18n")

	localesByTag = make(map[string]*gotext.Locale)
	supportedTags = nil
	matcher = nil

	if assets.FS == nil {
		return errNoAssets
	}

	entries, err := fs.ReadDir(assets.FS, "po")
	if err != nil {
		return fmt.Errorf("failed to read po directory: %w", err)
	}

	var tagsList []language.Tag

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".po") {
			continue
		}

		fileName := entry.Name()
		localeName := strings.TrimSuffix(fileName, ".po")

		// Accept both underscore and hyphen.
		t, err := language.Parse(strings.ReplaceAll(localeName, "_", "-"))
		if err != nil {
			Logger.Warn().Err(err).Str("file", fileName).Msg("Skipping invalid locale file")

			continue
		}

		canonical := t.String()

		po := gotext.NewPoFS(assets.FS)
		po.ParseFile(path.Join("po", fileName))

		loc := gotext.NewLocale("", canonical) // Base path is unused when manually adding translators.
		loc.AddTranslator(poDomain, po)

		localesByTag[canonical] = loc

		tagsList = append(tagsList, t)

		Logger.Info().
			Str("locale", canonical).
			Str("domain", poDomain).
			Msg("Loaded locale")
	}

	// baseTag is first to make it the default fallback for matching.
	all := make([]language.Tag, 0, len(tagsList)+1)

	all = append(all, baseTag)

	sort.Slice(tagsList, func(i, j int) bool { return tagsList[i].String() < tagsList[j].String() })

	for _, t := range tagsList {
		if t == baseTag {
			continue
		}

		all = append(all, t)
	}

	matcher = language.NewMatcher(all)
	supportedTags = all

	return loadAllergenNames()
}

func loadAllergenNames() error {
	file, err := assets.FS.Open(AllergenNamesFile)
	if err != nil {
		return fmt.Errorf("failed to open allergen names file: %w", err)
	}
	defer file.Close()

	var names map[string]map[string]string
	if err := yaml.NewDecoder(file).Decode(&names); err != nil {
		return fmt.Errorf("failed to decode allergen names file: %w", err)
	}

	// Install into subpackage.
	terms.SetTranslations(names)

	Logger.Info().Int("count", len(names)).Msg("Loaded allergen names")

	return nil
}
