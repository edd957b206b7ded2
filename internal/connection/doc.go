// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

/*
Package connection enforces admission caps and timeouts for client
connections on one node.

A connection moves through Requesting, Admitted, Active, and finally Idle,
Expired or Closed:

	id, err := mgr.AdmitConn(userID, roomID, closer) // Requesting -> Admitted
	mgr.Touch(id)                                    // on every inbound message
	mgr.Release(id)                                  // after the client transport closed

AdmitConn checks the node-wide cap, then the per-room cap, then the per-user
cap, and returns the first one hit (ErrGlobalLimitExceeded,
ErrRoomLimitExceeded, ErrUserLimitExceeded; all wrap ErrAdmission).

Run sweeps on a fixed interval and evicts connections idle longer than
IdleTimeout or open longer than MaxDuration. Eviction always calls the
connection's Closer before removing its record.

Caps are per node and are not aggregated across the cluster; the effective
cluster-wide cap is the per-node cap times the node count.
*/
package connection
