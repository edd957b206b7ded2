// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package events

import "errors"

// ErrInvalidEvent is returned when a RoomEvent is missing its room or payload.
var ErrInvalidEvent = errors.New("invalid room event")

// ErrInvalidEnvelope is returned when a ClusterMessage lacks routing fields.
var ErrInvalidEnvelope = errors.New("invalid cluster message")
