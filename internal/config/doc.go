// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

/*
Package config provides centralized configuration management for cowatch nodes.

Configuration is layered with Koanf v2: struct defaults, then an optional YAML
file (CONFIG_PATH, config.yaml, /etc/cowatch/config.yaml), then environment
variables. Only environment variables with an explicit mapping are read.

# Configuration Structure

  - NodeConfig: node identity (random UUID when unset)
  - ClusterConfig: NATS URL, embedded broker, forward timeout, dedup window
  - ConnectionsConfig: per-user, per-room and node-global caps, idle and max-duration eviction
  - PlaybackConfig: memory or badger playback state store
  - ServerConfig: HTTP listener, CORS, upgrade rate limit
  - LoggingConfig: zerolog level and format

# Single-node vs clustered

An empty NATS_URL with NATS_EMBEDDED=false runs the node alone. Publishing
still reaches every local subscriber; nothing is forwarded. Setting NATS_URL
(or enabling the embedded server) turns on cross-node fan-out without any
change to callers.

# Example YAML

	node:
	  id: node-a
	cluster:
	  nats_url: nats://nats-1:4222,nats://nats-2:4222
	  forward_timeout: 3s
	connections:
	  max_per_user: 5
	  max_per_room: 200
	  max_total: 5000
	playback:
	  store: badger
	  badger_path: /data/playback

Caps are enforced per node; an N-node cluster admits up to N times max_total.
*/
package config
