// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/cowatch/internal/api"
	"github.com/tomtom215/cowatch/internal/cluster"
	"github.com/tomtom215/cowatch/internal/config"
	"github.com/tomtom215/cowatch/internal/connection"
	"github.com/tomtom215/cowatch/internal/hub"
	"github.com/tomtom215/cowatch/internal/logging"
	"github.com/tomtom215/cowatch/internal/playback"
	"github.com/tomtom215/cowatch/internal/supervisor/services"
	"github.com/tomtom215/cowatch/internal/transport"
	"github.com/tomtom215/cowatch/internal/websocket"
)

// node holds the components of a running node in dependency order.
type node struct {
	transport   transport.Transport
	cluster     *cluster.Manager
	connections *connection.Manager
	playback    *playback.Service
	server      *http.Server
}

// newNode builds every component from cfg. Nothing is started; long-lived
// loops run under the supervisor tree.
func newNode(cfg *config.Config) (*node, error) {
	n := &node{}

	if cfg.Cluster.Clustered() {
		natsCfg := transport.DefaultNATSConfig(cfg.Cluster.TransportURL(), cfg.Node.ID)
		natsCfg.ReconnectWait = cfg.Cluster.ReconnectWait
		natsCfg.Buffer = cfg.Cluster.SubscriptionBuffer
		tr, err := transport.NewNATSTransport(natsCfg)
		if err != nil {
			return nil, fmt.Errorf("create transport: %w", err)
		}
		n.transport = tr
	}

	clusterMgr, err := cluster.New(cluster.Options{
		NodeID:          cfg.Node.ID,
		Transport:       n.transport,
		ForwardTimeout:  cfg.Cluster.ForwardTimeout,
		DedupWindow:     cfg.Cluster.DedupWindow,
		DedupCapacity:   cfg.Cluster.DedupCapacity,
		BreakerFailures: cfg.Cluster.BreakerFailures,
		BreakerTimeout:  cfg.Cluster.BreakerTimeout,
		Hub:             hub.Options{Buffer: cfg.Cluster.SubscriptionBuffer},
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create cluster manager: %w", err), n.Close())
	}
	n.cluster = clusterMgr

	n.connections = connection.NewManager(connection.Options{
		NodeID:        cfg.Node.ID,
		MaxPerUser:    cfg.Connections.MaxPerUser,
		MaxPerRoom:    cfg.Connections.MaxPerRoom,
		MaxTotal:      cfg.Connections.MaxTotal,
		IdleTimeout:   cfg.Connections.IdleTimeout,
		MaxDuration:   cfg.Connections.MaxDuration,
		SweepInterval: cfg.Connections.SweepInterval,
	})

	store, err := openStore(cfg.Playback)
	if err != nil {
		return nil, errors.Join(err, n.Close())
	}
	n.playback = playback.NewService(store, clusterMgr)

	gateway := websocket.NewGateway(clusterMgr, n.connections, n.playback, websocket.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		InboundRate:    cfg.Connections.InboundRate,
		InboundBurst:   cfg.Connections.InboundBurst,
		Authorize:      moderatorAuthorizer(cfg.Server.Moderators),
	})

	router := api.NewRouter(api.NewHandler(clusterMgr, n.connections), gateway, api.RouterConfig{
		CORSOrigins:      cfg.Server.CORSOrigins,
		UpgradeRateLimit: cfg.Server.UpgradeRateLimit,
		HealthRateLimit:  api.DefaultRouterConfig().HealthRateLimit,
	})

	n.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return n, nil
}

// Close releases components in reverse dependency order. Connections must
// already be closed by the sweeper service.
func (n *node) Close() error {
	var errs []error
	if n.playback != nil {
		if err := n.playback.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close playback store: %w", err))
		}
	}
	if n.cluster != nil {
		if err := n.cluster.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cluster manager: %w", err))
		}
	}
	if n.transport != nil {
		if err := n.transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
	}
	return errors.Join(errs...)
}

// openStore selects the playback store named in cfg.
func openStore(cfg config.PlaybackConfig) (playback.Store, error) {
	switch cfg.Store {
	case config.StoreBadger:
		store, err := playback.OpenBadgerStore(cfg.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("open playback store: %w", err)
		}
		logging.Info().Str("path", cfg.BadgerPath).Msg("Playback state persisted in BadgerDB")
		return store, nil
	case config.StoreMemory, "":
		logging.Info().Msg("Playback state kept in memory; rooms reset on restart")
		return playback.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown playback store %q", cfg.Store)
	}
}

// moderatorAuthorizer allows privileged commands for the listed users in
// every room.
func moderatorAuthorizer(moderators []string) websocket.Authorizer {
	if len(moderators) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(moderators))
	for _, id := range moderators {
		allowed[id] = struct{}{}
	}
	return func(userID, _ string, _ websocket.Action) bool {
		_, ok := allowed[userID]
		return ok
	}
}

// embeddedServerFactory starts the in-process broker the node's transport
// dials.
func embeddedServerFactory(cfg *config.Config) services.EmbeddedServerFactory {
	return func() (services.EmbeddedServer, error) {
		srv, err := transport.NewEmbeddedServer(transport.ServerConfig{
			Name: "cowatch-" + cfg.Node.ID,
			Host: cfg.Cluster.EmbeddedHost,
			Port: cfg.Cluster.EmbeddedPort,
		})
		if err != nil {
			return nil, err
		}
		return srv, nil
	}
}
