// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

/*
Package middleware provides HTTP middleware shared by the API router.

Key Components:

  - RequestID: request tracking; the id is echoed in X-Request-ID and bound
    to a request-scoped logger (zerolog.Ctx(r.Context()))
  - PrometheusMetrics: request count and duration per chi route pattern

Both are standard func(http.Handler) http.Handler middleware:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

PrometheusMetrics passes Hijack through, so it can wrap the WebSocket route.
*/
package middleware
