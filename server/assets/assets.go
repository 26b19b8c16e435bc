// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package assets provides access to the application's embedded data files:
gettext catalogues under po/ and the starter allergen names.
*/
package assets

import "io/fs"

// FS provides access to the embedded file system. main assigns it at startup;
// tests may point it at the source tree with os.DirFS.
var FS fs.FS
