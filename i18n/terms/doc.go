// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package terms provides localized names for the starter allergen list, so a new
session's defaults are written in the user's own language. These are separate
from the UI message catalogues.
*/
package terms
