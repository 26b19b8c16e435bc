// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"bufio"
	"bytes"
	"cmp"
	"fmt"
	"io"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"
)

// writePOT writes refs as a gettext template, sorted by context, msgid and plural.
func writePOT(w io.Writer, refs map[key][]ref, version string) {
	fmt.Fprintln(w, `msgid ""`)
	fmt.Fprintln(w, `msgstr ""`)
	fmt.Fprintf(w, "\"Project-Id-Version: SafeBites %s\\n\"\n", version)
	fmt.Fprintf(w, "\"POT-Creation-Date: %s\\n\"\n", time.Now().UTC().Format("2006-01-02 15:04+0000"))
	fmt.Fprintln(w, `"Language: en\n"`)
	fmt.Fprintln(w, `"MIME-Version: 1.0\n"`)
	fmt.Fprintln(w, `"Content-Type: text/plain; charset=UTF-8\n"`)
	fmt.Fprintln(w, `"Content-Transfer-Encoding: 8bit\n"`)
	fmt.Fprintln(w, `"Plural-Forms: nplurals=2; plural=(n != 1);\n"`)

	keys := make([]key, 0, len(refs))
	for k := range refs {
		keys = append(keys, k)
	}

	slices.SortFunc(keys, func(a, b key) int {
		return cmp.Or(cmp.Compare(a.ctx, b.ctx), cmp.Compare(a.id, b.id), cmp.Compare(a.plural, b.plural))
	})

	for _, k := range keys {
		fmt.Fprintln(w)

		rs := slices.Clone(refs[k])
		slices.SortFunc(rs, func(a, b ref) int {
			return cmp.Or(cmp.Compare(a.file, b.file), cmp.Compare(a.line, b.line))
		})

		fmt.Fprint(w, "#:")

		for _, r := range slices.Compact(rs) {
			fmt.Fprintf(w, " %s:%d", r.file, r.line)
		}

		fmt.Fprintln(w)

		if k.ctx != "" {
			fmt.Fprintf(w, "msgctxt %q\n", k.ctx)
		}

		fmt.Fprintf(w, "msgid %q\n", k.id)

		if k.plural != "" {
			fmt.Fprintf(w, "msgid_plural %q\n", k.plural)
			fmt.Fprintln(w, `msgstr[0] ""`)
			fmt.Fprintln(w, `msgstr[1] ""`)
		} else {
			fmt.Fprintln(w, `msgstr ""`)
		}
	}
}

// parseMsgids returns the non-empty single-line msgids of a po or pot file.
func parseMsgids(data []byte) []string {
	var out []string

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		rest, ok := strings.CutPrefix(scanner.Text(), "msgid ")
		if !ok {
			continue
		}

		id, err := strconv.Unquote(rest)
		if err != nil || id == "" {
			continue
		}

		out = append(out, id)
	}

	return out
}

// diffMsgids compares the extracted msgids with existing ones. Both results are sorted.
func diffMsgids(refs map[key][]ref, existing []string) (missing, stale []string) {
	have := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		have[id] = struct{}{}
	}

	want := make(map[string]struct{}, len(refs))
	for k := range refs {
		want[k.id] = struct{}{}

		if _, ok := have[k.id]; !ok {
			missing = append(missing, k.id)
		}
	}

	for _, id := range existing {
		if _, ok := want[id]; !ok {
			stale = append(stale, id)
		}
	}

	slices.Sort(missing)
	slices.Sort(stale)

	return slices.Compact(missing), slices.Compact(stale)
}

// detectVersion resolves a version string using git describe, or "dev"
// outside a git checkout.
func detectVersion() string {
	out, err := exec.Command("git", "describe", "--tags", "--always", "--dirty").Output()
	if err != nil {
		return "dev"
	}

	return strings.TrimSpace(string(out))
}
