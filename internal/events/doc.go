// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

// Package events defines room events and the envelope used to carry them
// between nodes.
//
// A RoomEvent is a tagged union: Kind selects which one payload pointer is
// set. Constructors such as NewPlaybackChanged set both consistently:
//
//	ev := events.NewPlaybackChanged("r1", events.PlaybackChanged{
//	    Position: 42.0, Speed: 1, IsPlaying: true, Version: 5,
//	})
//
// ClusterMessage adds the origin node id, a fresh message id and a timestamp.
// The message id is what receivers deduplicate on; the origin node id lets a
// node recognize its own echo. Encoding uses goccy/go-json.
package events
