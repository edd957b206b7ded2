// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is the current ClusterMessage wire version. The envelope is
// a build-local contract between nodes running the same release.
const EnvelopeVersion = 1

// ClusterMessage is the wire envelope for a RoomEvent forwarded between nodes.
// It exists only in transit and is never persisted.
type ClusterMessage struct {
	Version      int       `json:"v"`
	OriginNodeID string    `json:"origin_node_id"`
	MessageID    string    `json:"message_id"`
	Timestamp    time.Time `json:"timestamp"`
	Event        RoomEvent `json:"event"`
}

// NewClusterMessage wraps an event with the origin node and a fresh message id.
func NewClusterMessage(originNodeID string, event RoomEvent) ClusterMessage {
	return ClusterMessage{
		Version:      EnvelopeVersion,
		OriginNodeID: originNodeID,
		MessageID:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Event:        event,
	}
}

// Validate checks routing fields and the embedded event.
func (m *ClusterMessage) Validate() error {
	if m.MessageID == "" {
		return fmt.Errorf("%w: message_id is required", ErrInvalidEnvelope)
	}
	if m.OriginNodeID == "" {
		return fmt.Errorf("%w: origin_node_id is required", ErrInvalidEnvelope)
	}
	if m.Version > EnvelopeVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidEnvelope, m.Version)
	}
	return m.Event.Validate()
}
