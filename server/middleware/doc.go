// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package middleware provides the HTTP middleware chain for the SafeBites API.

Route definitions are centralized in router.DefineRoutes; middleware ordering
lives in router.RegisterMiddleware.
*/
package middleware
