// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

/*
Package websocket connects browser clients to a room over gorilla/websocket.

A Gateway handles the upgrade request. The connection is admitted against
the node's caps before the upgrade, so a rejected client gets a plain HTTP
429 (or 400 for a bad identity) instead of an upgraded socket. Once
upgraded, the client is subscribed to its room and receives:

  - welcome: connection id, node id and the current playback state
  - event: every room event published on any node
  - ack / error: replies to its own commands, matched by request_id

Each client has two goroutines:
  - readPump: reads commands, refreshes activity, applies the rate limit
  - writePump: the only writer; forwards room events and replies, pings

Commands:

	{"type":"playback","request_id":"1","data":{"expected_version":6,"op":"seek","position":42}}
	{"type":"chat","data":{"text":"hi"}}
	{"type":"kick","data":{"user_id":"guest-7"}}
	{"type":"settings","data":{"settings":{"chat":"off"}}}
	{"type":"state"}
	{"type":"ping"}

A stale playback command is answered with STALE_VERSION and the current
state. Playback events may arrive out of order when two commands race;
clients keep the highest version they have seen. Clients that only watch should send ping at least once per idle
timeout, since only inbound messages count as activity.

Close codes:

	4000 idle_timeout   4001 max_duration
	4002 kicked         4003 resync (subscription overflowed)
	1001 shutdown
*/
package websocket
