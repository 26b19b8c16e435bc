// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package idgen

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	now := time.Now()

	assert.Equal(t, strings.ReplaceAll(now.Format("15:04:05"), ":", ""), maketime(now), "time part incorrect")
	assert.Len(t, Make(), 10)
}

func TestRun(t *testing.T) {
	t.Parallel()

	id := Run("frag-1", 7)

	assert.True(t, strings.HasPrefix(id, "frag-1#7-"), id)
}
