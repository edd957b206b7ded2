// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

/*
Package services provides suture.Service wrappers for cowatch components.

Each wrapper translates a component lifecycle (ListenAndServe, Run, a
started broker) into suture's context-aware Serve pattern:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Returning an error asks the supervisor to restart the service with backoff.
Returning after context cancellation is a clean stop.

# Available Services

HTTPServerService wraps *http.Server. Cancellation triggers Shutdown with a
bounded timeout so in-flight upgrades finish.

SweeperService runs connection.Manager's idle and max-duration sweep. On
stop it closes every remaining connection with the shutdown reason.

EmbeddedNATSService starts an in-process NATS broker and watches it. A broker
that stops on its own is reported as a failure, so the supervisor starts a new
one and the node transports reconnect.

# Usage

	tree.AddTransportService(services.NewEmbeddedNATSService(startBroker, 10*time.Second))
	tree.AddCoreService(services.NewSweeperService(connMgr))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

All services implement fmt.Stringer so suture's event logs name them.
*/
package services
