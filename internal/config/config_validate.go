// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/cowatch/internal/logging"
)

// Playback store kinds.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateNode(); err != nil {
		return err
	}

	if err := c.validateCluster(); err != nil {
		return err
	}

	if err := c.validateConnections(); err != nil {
		return err
	}

	if err := c.validatePlayback(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateNode() error {
	if strings.TrimSpace(c.Node.ID) == "" {
		return fmt.Errorf("NODE_ID must not be blank")
	}
	if strings.ContainsAny(c.Node.ID, " .*>") {
		return fmt.Errorf("NODE_ID must not contain spaces or NATS subject tokens (. * >)")
	}
	return nil
}

// validateCluster validates transport settings. The dedup and buffer limits
// are checked even in single-node mode because the local hub uses them too.
func (c *Config) validateCluster() error {
	if c.Cluster.NATSURL != "" {
		if err := validateNATSURL(c.Cluster.NATSURL); err != nil {
			return fmt.Errorf("NATS_URL is invalid: %w", err)
		}
	}
	if c.Cluster.EmbeddedServer && (c.Cluster.EmbeddedPort < 1 || c.Cluster.EmbeddedPort > 65535) {
		return fmt.Errorf("NATS_EMBEDDED_PORT must be between 1 and 65535")
	}
	if c.Cluster.Clustered() && c.Cluster.ReconnectWait <= 0 {
		return fmt.Errorf("NATS_RECONNECT_WAIT must be positive")
	}
	if c.Cluster.ForwardTimeout <= 0 {
		return fmt.Errorf("CLUSTER_FORWARD_TIMEOUT must be positive")
	}
	if c.Cluster.DedupWindow <= 0 {
		return fmt.Errorf("CLUSTER_DEDUP_WINDOW must be positive")
	}
	if c.Cluster.DedupCapacity < 1 {
		return fmt.Errorf("CLUSTER_DEDUP_CAPACITY must be at least 1")
	}
	if c.Cluster.SubscriptionBuffer < 1 {
		return fmt.Errorf("CLUSTER_SUBSCRIPTION_BUFFER must be at least 1")
	}
	if c.Cluster.BreakerFailures < 1 {
		return fmt.Errorf("CLUSTER_BREAKER_FAILURES must be at least 1")
	}
	if c.Cluster.BreakerTimeout <= 0 {
		return fmt.Errorf("CLUSTER_BREAKER_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateConnections() error {
	cc := c.Connections
	if cc.MaxPerUser < 1 {
		return fmt.Errorf("MAX_CONNECTIONS_PER_USER must be at least 1")
	}
	if cc.MaxPerRoom < 1 {
		return fmt.Errorf("MAX_CONNECTIONS_PER_ROOM must be at least 1")
	}
	if cc.MaxTotal < 1 {
		return fmt.Errorf("MAX_CONNECTIONS_TOTAL must be at least 1")
	}
	if cc.MaxPerUser > cc.MaxTotal {
		return fmt.Errorf("MAX_CONNECTIONS_PER_USER (%d) must not exceed MAX_CONNECTIONS_TOTAL (%d)", cc.MaxPerUser, cc.MaxTotal)
	}
	if cc.MaxPerRoom > cc.MaxTotal {
		return fmt.Errorf("MAX_CONNECTIONS_PER_ROOM (%d) must not exceed MAX_CONNECTIONS_TOTAL (%d)", cc.MaxPerRoom, cc.MaxTotal)
	}
	if cc.IdleTimeout <= 0 {
		return fmt.Errorf("CONNECTION_IDLE_TIMEOUT must be positive")
	}
	if cc.MaxDuration <= 0 {
		return fmt.Errorf("CONNECTION_MAX_DURATION must be positive")
	}
	if cc.SweepInterval <= 0 {
		return fmt.Errorf("CONNECTION_SWEEP_INTERVAL must be positive")
	}
	if cc.InboundRate <= 0 {
		return fmt.Errorf("INBOUND_RATE_LIMIT must be positive")
	}
	if cc.InboundBurst < 1 {
		return fmt.Errorf("INBOUND_RATE_BURST must be at least 1")
	}
	return nil
}

func (c *Config) validatePlayback() error {
	switch c.Playback.Store {
	case StoreMemory:
		return nil
	case StoreBadger:
		if c.Playback.BadgerPath == "" {
			return fmt.Errorf("PLAYBACK_BADGER_PATH is required when PLAYBACK_STORE=badger")
		}
		return nil
	default:
		return fmt.Errorf("PLAYBACK_STORE must be one of: memory, badger, got: %q", c.Playback.Store)
	}
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.UpgradeRateLimit < 0 {
		return fmt.Errorf("UPGRADE_RATE_LIMIT must not be negative")
	}
	return nil
}

// ShouldWarnAboutCORS reports whether CORS allows any origin.
func (c *Config) ShouldWarnAboutCORS() bool {
	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// validLogFormats defines the allowed log formats
var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}
