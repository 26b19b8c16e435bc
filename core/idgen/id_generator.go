// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package idgen

import (
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"time"
)

// Make makes a short ID with a 6 byte timestamp and 3 bytes of entropy.
func Make() string {
	entropy := [3]byte{'a', 'a', 'a'}

	_, _ = rand.Read(entropy[:])

	return maketime(time.Now()) + base64.RawURLEncoding.EncodeToString(entropy[:])
}

// Run makes an ID for one pipeline run of a fragment generation.
func Run(fragmentID string, generation uint64) string {
	return fragmentID + "#" + strconv.FormatUint(generation, 10) + "-" + Make()
}

func maketime(t time.Time) string {
	return t.Format("150405")
}
