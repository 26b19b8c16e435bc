// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

// Command i18n_extract collects every translatable message in the module
// into a gettext template.
//
// Messages are found by type, not by name: calls to the i18n Tr helpers, and
// any constant string that ends up as an i18n.MsgKey.
//
// With -check, nothing is written. The command instead fails when the
// template on disk is missing messages or lists ones no longer in use.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/tools/go/packages"
)

func main() {
	outPath := flag.String("o", "po/safebites.pot", "output file")
	check := flag.Bool("check", false, "compare against the output file instead of writing it")
	flag.Parse()

	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("failed to get working directory: %v", err)
	}

	pkgs, err := packages.Load(&packages.Config{Mode: packages.LoadAllSyntax, Tests: false}, "./...")
	if err != nil {
		log.Fatalf("failed to load packages: %v", err)
	}

	if packages.PrintErrors(pkgs) > 0 {
		log.Fatal("failed to load packages due to errors")
	}

	refs := extractRefs(pkgs, nearestGoModDir(wd), findI18nPkgPaths(pkgs))

	if *check {
		existing, err := os.ReadFile(*outPath)
		if err != nil {
			log.Fatalf("failed to read %s: %v", *outPath, err)
		}

		missing, stale := diffMsgids(refs, parseMsgids(existing))
		for _, id := range missing {
			fmt.Fprintf(os.Stderr, "missing: %q\n", id)
		}

		for _, id := range stale {
			fmt.Fprintf(os.Stderr, "stale:   %q\n", id)
		}

		if len(missing)+len(stale) > 0 {
			log.Fatalf("%s is out of date, run go run ./cmd/i18n_extract", *outPath)
		}

		return
	}

	var b bytes.Buffer
	writePOT(&b, refs, detectVersion())

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	if err := os.WriteFile(*outPath, b.Bytes(), 0o644); err != nil {
		log.Fatalf("failed to write output file %s: %v", *outPath, err)
	}

	log.Printf("wrote %d messages to %s", len(refs), *outPath)
}

// nearestGoModDir returns the closest directory at or above start containing
// go.mod, or start itself when there is none.
func nearestGoModDir(start string) string {
	dir := filepath.Clean(start)

	for {
		if fi, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil && !fi.IsDir() {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return filepath.Clean(start)
		}

		dir = parent
	}
}
