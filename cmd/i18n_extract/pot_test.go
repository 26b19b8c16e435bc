// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWritePOT(t *testing.T) {
	t.Parallel()

	refs := map[key][]ref{
		{id: "Scanning..."}: {
			{file: "server/routes/results.go", line: 20},
			{file: "server/routes/match.go", line: 9},
			{file: "server/routes/results.go", line: 20},
		},
		{id: "{{.Count}} allergen detected", plural: "{{.Count}} allergens detected"}: {
			{file: "server/routes/results.go", line: 40},
		},
		{ctx: "button", id: "Retry"}: {
			{file: "server/routes/fragments.go", line: 3},
		},
	}

	var b bytes.Buffer
	writePOT(&b, refs, "v1.2.3")

	out := b.String()

	assert.Contains(t, out, `"Project-Id-Version: SafeBites v1.2.3\n"`)
	assert.Contains(t, out, "#: server/routes/match.go:9 server/routes/results.go:20\nmsgid \"Scanning...\"\nmsgstr \"\"\n",
		"references are sorted and de-duplicated")
	assert.Contains(t, out, "msgid \"{{.Count}} allergen detected\"\nmsgid_plural \"{{.Count}} allergens detected\"\nmsgstr[0] \"\"\nmsgstr[1] \"\"\n")
	assert.Contains(t, out, "msgctxt \"button\"\nmsgid \"Retry\"\n")

	// Entries without a context sort first.
	assert.Less(t, strings.Index(out, `msgid "Scanning..."`), strings.Index(out, `msgid "Retry"`))
}

func TestParseMsgids(t *testing.T) {
	t.Parallel()

	po := []byte(`msgid ""
msgstr ""
"Language: es\n"

msgid "Fragment not found"
msgstr "Fragmento no encontrado"

msgid "{{.Count}} allergen detected"
msgid_plural "{{.Count}} allergens detected"
msgstr[0] "{{.Count}} alérgeno detectado"
`)

	assert.Equal(t, []string{"Fragment not found", "{{.Count}} allergen detected"}, parseMsgids(po))
}

func TestDiffMsgids(t *testing.T) {
	t.Parallel()

	refs := map[key][]ref{
		{id: "Page not found"}:           nil,
		{id: "Something went wrong"}:     nil,
		{ctx: "x", id: "Page not found"}: nil,
	}

	missing, stale := diffMsgids(refs, []string{"Something went wrong", "Old message"})

	assert.Equal(t, []string{"Page not found"}, missing)
	assert.Equal(t, []string{"Old message"}, stale)
}
