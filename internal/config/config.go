// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Config holds all node configuration loaded from defaults, an optional YAML
// file, and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//   - Node: identity of this process in the cluster
//   - Cluster: remote transport, embedded broker, dedup window
//   - Connections: admission caps and eviction timeouts
//   - Playback: room playback state store
//   - Server: HTTP/WebSocket listener
//   - Logging: log level and output format
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Node        NodeConfig        `koanf:"node"`
	Cluster     ClusterConfig     `koanf:"cluster"`
	Connections ConnectionsConfig `koanf:"connections"`
	Playback    PlaybackConfig    `koanf:"playback"`
	Server      ServerConfig      `koanf:"server"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// NodeConfig identifies this process. The ID is stable for the process
// lifetime and is stamped on every forwarded message so echoes can be
// recognized.
//
// Environment Variables:
//   - NODE_ID: Node identifier (default: random UUID)
type NodeConfig struct {
	ID string `koanf:"id"`
}

// ClusterConfig holds cross-node transport settings.
//
// An empty NATSURL with EmbeddedServer disabled runs the node in single-node
// mode: every publish is delivered locally and nothing is forwarded.
//
// Environment Variables:
//   - NATS_URL: NATS server URL (default: empty, single-node)
//   - NATS_EMBEDDED: Start an in-process NATS server (default: false)
//   - NATS_EMBEDDED_HOST: Embedded server bind host (default: 127.0.0.1)
//   - NATS_EMBEDDED_PORT: Embedded server port (default: 4222)
//   - NATS_RECONNECT_WAIT: Delay between reconnect attempts (default: 2s)
//   - CLUSTER_FORWARD_TIMEOUT: Bound on a single forward (default: 3s)
//   - CLUSTER_DEDUP_WINDOW: Message id retention (default: 60s)
//   - CLUSTER_DEDUP_CAPACITY: Max remembered message ids (default: 10000)
//   - CLUSTER_SUBSCRIPTION_BUFFER: Per-subscription queue depth (default: 64)
//   - CLUSTER_BREAKER_FAILURES: Consecutive forward failures before the breaker opens (default: 5)
//   - CLUSTER_BREAKER_TIMEOUT: Open state duration before a probe (default: 30s)
type ClusterConfig struct {
	NATSURL            string        `koanf:"nats_url"`
	EmbeddedServer     bool          `koanf:"embedded_server"`
	EmbeddedHost       string        `koanf:"embedded_host"`
	EmbeddedPort       int           `koanf:"embedded_port"`
	ReconnectWait      time.Duration `koanf:"reconnect_wait"`
	ForwardTimeout     time.Duration `koanf:"forward_timeout"`
	DedupWindow        time.Duration `koanf:"dedup_window"`
	DedupCapacity      int           `koanf:"dedup_capacity"`
	SubscriptionBuffer int           `koanf:"subscription_buffer"`
	BreakerFailures    uint32        `koanf:"breaker_failures"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
}

// Clustered reports whether a remote transport is configured.
func (c ClusterConfig) Clustered() bool {
	return c.NATSURL != "" || c.EmbeddedServer
}

// TransportURL returns the URL the node's NATS client dials. With an embedded
// server and no explicit URL, the node connects to its own broker.
func (c ClusterConfig) TransportURL() string {
	if c.NATSURL != "" {
		return c.NATSURL
	}
	if c.EmbeddedServer {
		return fmt.Sprintf("nats://%s:%d", c.EmbeddedHost, c.EmbeddedPort)
	}
	return ""
}

// ConnectionsConfig holds admission caps and eviction timeouts. All caps are
// per node; they are not aggregated across the cluster.
//
// Environment Variables:
//   - MAX_CONNECTIONS_PER_USER (default: 5)
//   - MAX_CONNECTIONS_PER_ROOM (default: 200)
//   - MAX_CONNECTIONS_TOTAL (default: 5000)
//   - CONNECTION_IDLE_TIMEOUT (default: 5m)
//   - CONNECTION_MAX_DURATION (default: 12h)
//   - CONNECTION_SWEEP_INTERVAL (default: 30s)
//   - INBOUND_RATE_LIMIT: Messages per second per connection (default: 20)
//   - INBOUND_RATE_BURST (default: 40)
type ConnectionsConfig struct {
	MaxPerUser    int           `koanf:"max_per_user"`
	MaxPerRoom    int           `koanf:"max_per_room"`
	MaxTotal      int           `koanf:"max_total"`
	IdleTimeout   time.Duration `koanf:"idle_timeout"`
	MaxDuration   time.Duration `koanf:"max_duration"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	InboundRate   float64       `koanf:"inbound_rate"`
	InboundBurst  int           `koanf:"inbound_burst"`
}

// PlaybackConfig selects where room playback state lives.
//
// Environment Variables:
//   - PLAYBACK_STORE: memory or badger (default: memory)
//   - PLAYBACK_BADGER_PATH: BadgerDB directory (default: /data/playback)
type PlaybackConfig struct {
	Store      string `koanf:"store"`
	BadgerPath string `koanf:"badger_path"`
}

// ServerConfig holds HTTP listener settings.
//
// Environment Variables:
//   - HTTP_HOST (default: 0.0.0.0)
//   - HTTP_PORT (default: 8080)
//   - HTTP_SHUTDOWN_TIMEOUT (default: 10s)
//   - CORS_ORIGINS: Comma-separated allowed origins (default: *)
//   - UPGRADE_RATE_LIMIT: WebSocket upgrades per IP per minute (default: 60)
//   - MODERATORS: Comma-separated user ids allowed to kick and change room settings (default: none)
type ServerConfig struct {
	Host             string        `koanf:"host"`
	Port             int           `koanf:"port"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins      []string      `koanf:"cors_origins"`
	UpgradeRateLimit int           `koanf:"upgrade_rate_limit"`
	Moderators       []string      `koanf:"moderators"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load is the main entry point for configuration loading.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// ensureNodeID assigns a random node id when none was configured.
func (c *Config) ensureNodeID() {
	if c.Node.ID == "" {
		c.Node.ID = uuid.NewString()
	}
}
