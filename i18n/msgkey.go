// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

package i18n

import "context"

// MsgKey is a source message id (msgid) string.
//
// Construct with MsgKey("No allergens found") and call Tr(ctx) to resolve
// using the current locale in ctx.
//
// MsgKey should be the original English text, not an invented key.
type MsgKey string

// Tr translates this msgid within the current locale chain.
// It is equivalent to calling [Tr] with the same msgid.
func (s MsgKey) Tr(ctx context.Context) string {
	return Tr(ctx, string(s))
}
