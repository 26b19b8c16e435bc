// Copyright 2025, the SafeBites contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package limiter throttles inbound API clients.

Every request is attributed to a client network (by default a /24 for IPv4 and
a /48 for IPv6) and each network gets its own token bucket. A single client
therefore cannot exhaust the shared translation quota by flooding the API
with fragments. Proxy headers are only honoured for requests arriving from
private or loopback addresses.
*/
package limiter
