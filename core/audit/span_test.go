// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHumanizeSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "512", humanizeSize(512))
	assert.Equal(t, "1.50K", humanizeSize(1536))
	assert.Equal(t, "2.00M", humanizeSize(2*bytesInMB))
}

func TestSpanEndIsIdempotent(t *testing.T) {
	t.Parallel()

	span := Span{Destination: ToTranslator, Method: "GET", URL: "https://translate.example.test/detect"}

	_ = span.Begin(context.Background())

	span.End()
	first := span.Duration()

	span.End()
	assert.Equal(t, first, span.Duration())
}
