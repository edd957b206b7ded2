// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// searchPaths are tried in order when CONFIG_PATH is unset or missing.
var searchPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/cowatch/config.yaml",
	"/etc/cowatch/config.yml",
}

// ConfigPathEnvVar names an explicit YAML config file.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig is the lowest layer: every field a file or env var omits.
func defaultConfig() *Config {
	return &Config{
		Node: NodeConfig{
			ID: "", // Auto-generated if empty
		},
		Cluster: ClusterConfig{
			NATSURL:            "", // Empty = single-node mode
			EmbeddedServer:     false,
			EmbeddedHost:       "127.0.0.1",
			EmbeddedPort:       4222,
			ReconnectWait:      2 * time.Second,
			ForwardTimeout:     3 * time.Second,
			DedupWindow:        60 * time.Second,
			DedupCapacity:      10000,
			SubscriptionBuffer: 64,
			BreakerFailures:    5,
			BreakerTimeout:     30 * time.Second,
		},
		Connections: ConnectionsConfig{
			MaxPerUser:    5,
			MaxPerRoom:    200,
			MaxTotal:      5000,
			IdleTimeout:   5 * time.Minute,
			MaxDuration:   12 * time.Hour,
			SweepInterval: 30 * time.Second,
			InboundRate:   20,
			InboundBurst:  40,
		},
		Playback: PlaybackConfig{
			Store:      StoreMemory,
			BadgerPath: "/data/playback",
		},
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ShutdownTimeout:  10 * time.Second,
			CORSOrigins:      []string{"*"},
			UpgradeRateLimit: 60,
			Moderators:       []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// layer is one configuration source. Later layers override earlier ones.
type layer struct {
	name     string
	provider koanf.Provider
	parser   koanf.Parser
}

// LoadWithKoanf merges built-in defaults, the optional YAML file and the
// environment, in that order, then validates the result.
func LoadWithKoanf() (*Config, error) {
	layers := []layer{{name: "defaults", provider: structs.Provider(defaultConfig(), "koanf")}}
	if path := locateConfigFile(); path != "" {
		layers = append(layers, layer{name: "file " + path, provider: file.Provider(path), parser: yaml.Parser()})
	}
	layers = append(layers, layer{name: "environment", provider: env.ProviderWithValue("", ".", envValue)})

	k := koanf.New(".")
	for _, l := range layers {
		if err := k.Load(l.provider, l.parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", l.name, err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}
	cfg.ensureNodeID()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// locateConfigFile returns CONFIG_PATH when it exists, else the first
// existing search path, else "".
func locateConfigFile() string {
	candidates := searchPaths
	if explicit := os.Getenv(ConfigPathEnvVar); explicit != "" {
		candidates = append([]string{explicit}, searchPaths...)
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// listPaths hold comma-separated lists when set from the environment.
var listPaths = map[string]bool{
	"server.cors_origins": true,
	"server.moderators":   true,
}

// envValue maps one environment variable to its config path and value.
// Unknown variables and empty lists are skipped.
func envValue(key, value string) (string, interface{}) {
	path := envTransformFunc(key)
	if path == "" || !listPaths[path] {
		return path, value
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return "", nil
	}
	return path, items
}

// envMappings is keyed by lowercased variable name.
var envMappings = map[string]string{
	"node_id": "node.id",

	"nats_url":                    "cluster.nats_url",
	"nats_embedded":               "cluster.embedded_server",
	"nats_embedded_host":          "cluster.embedded_host",
	"nats_embedded_port":          "cluster.embedded_port",
	"nats_reconnect_wait":         "cluster.reconnect_wait",
	"cluster_forward_timeout":     "cluster.forward_timeout",
	"cluster_dedup_window":        "cluster.dedup_window",
	"cluster_dedup_capacity":      "cluster.dedup_capacity",
	"cluster_subscription_buffer": "cluster.subscription_buffer",
	"cluster_breaker_failures":    "cluster.breaker_failures",
	"cluster_breaker_timeout":     "cluster.breaker_timeout",

	"max_connections_per_user":  "connections.max_per_user",
	"max_connections_per_room":  "connections.max_per_room",
	"max_connections_total":     "connections.max_total",
	"connection_idle_timeout":   "connections.idle_timeout",
	"connection_max_duration":   "connections.max_duration",
	"connection_sweep_interval": "connections.sweep_interval",
	"inbound_rate_limit":        "connections.inbound_rate",
	"inbound_rate_burst":        "connections.inbound_burst",

	"playback_store":       "playback.store",
	"playback_badger_path": "playback.badger_path",

	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"upgrade_rate_limit":    "server.upgrade_rate_limit",
	"moderators":            "server.moderators",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc returns the config path for an environment variable name,
// or "" for variables cowatch does not read.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
