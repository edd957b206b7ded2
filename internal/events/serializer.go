// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package events

import (
	"fmt"

	"github.com/goccy/go-json"
)

// MarshalClusterMessage validates and encodes an envelope for the transport.
func MarshalClusterMessage(msg *ClusterMessage) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("validate cluster message: %w", err)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal cluster message: %w", err)
	}
	return data, nil
}

// UnmarshalClusterMessage decodes and validates an envelope received from the
// transport. Any error means the message must be dropped.
func UnmarshalClusterMessage(data []byte) (*ClusterMessage, error) {
	var msg ClusterMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal cluster message: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarshalEvent encodes a RoomEvent as a client frame.
func MarshalEvent(event *RoomEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal room event: %w", err)
	}
	return data, nil
}
