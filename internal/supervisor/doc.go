// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

/*
Package supervisor runs a cowatch node's long-lived services under a suture v4
supervisor tree.

	cowatch (root)
	├── transport-layer   embedded NATS broker (optional)
	├── core-layer        connection sweeper
	└── api-layer         HTTP server with the WebSocket gateway

A failing service is restarted with exponential backoff; failures decay over
FailureDecay seconds and FailureThreshold failures put the layer in backoff.
Supervisor events are logged through sutureslog on the slog bridge from
internal/logging.

Usage:

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.DefaultTreeConfig())
	tree.AddCoreService(services.NewSweeperService(connMgr))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("supervisor stopped")
	}

See the services subpackage for the wrappers.
*/
package supervisor
