// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/cowatch/internal/config"
	"github.com/tomtom215/cowatch/internal/logging"
	"github.com/tomtom215/cowatch/internal/supervisor"
	"github.com/tomtom215/cowatch/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config not yet available; the default logger writes JSON to stderr.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Output: os.Stderr,
	})

	logging.Info().
		Str("node_id", cfg.Node.ID).
		Bool("clustered", cfg.Cluster.Clustered()).
		Bool("embedded_nats", cfg.Cluster.EmbeddedServer).
		Str("playback_store", cfg.Playback.Store).
		Str("addr", cfg.Server.Addr()).
		Msg("Starting cowatch node")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS_ORIGINS=* accepts WebSocket upgrades from any origin; set explicit origins in production")
	}
	if len(cfg.Server.Moderators) == 0 {
		logging.Info().Msg("No MODERATORS configured; kick and settings commands are refused")
	}

	n, err := newNode(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize node")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), treeCfg)

	if cfg.Cluster.EmbeddedServer {
		tree.AddTransportService(services.NewEmbeddedNATSService(embeddedServerFactory(cfg), cfg.Server.ShutdownTimeout))
	}
	tree.AddCoreService(services.NewSweeperService(n.connections))
	tree.AddAPIService(services.NewHTTPServerService(n.server, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("Supervisor tree starting")
	err = <-tree.ServeBackground(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
	}

	if unstopped, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}

	if err := n.Close(); err != nil {
		logging.Error().Err(err).Msg("Error during node shutdown")
	}
	logging.Info().Msg("cowatch node stopped")
}
