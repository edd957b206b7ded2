// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package playback

import (
	"time"

	"github.com/tomtom215/cowatch/internal/events"
)

// State is a room's versioned playback record. Version grows by exactly one
// per accepted mutation; zero means nothing was ever applied.
type State struct {
	RoomID    string    `json:"room_id"`
	MediaID   string    `json:"media_id,omitempty"`
	Position  float64   `json:"position"`
	Speed     float64   `json:"speed"`
	IsPlaying bool      `json:"is_playing"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewState returns the initial state of a room.
func NewState(roomID string) State {
	return State{RoomID: roomID, Speed: 1}
}

// ProjectedPosition returns where playback is at now, advancing Position by
// the elapsed time scaled by Speed while playing.
func (s State) ProjectedPosition(now time.Time) float64 {
	if !s.IsPlaying || s.UpdatedAt.IsZero() {
		return s.Position
	}
	elapsed := now.Sub(s.UpdatedAt).Seconds()
	if elapsed < 0 {
		return s.Position
	}
	return s.Position + elapsed*s.Speed
}

// Event builds the playback_changed event announcing s.
func (s State) Event(changedBy string) events.RoomEvent {
	return events.NewPlaybackChanged(s.RoomID, events.PlaybackChanged{
		MediaID:   s.MediaID,
		Position:  s.Position,
		Speed:     s.Speed,
		IsPlaying: s.IsPlaying,
		Version:   s.Version,
		UpdatedAt: s.UpdatedAt,
		ChangedBy: changedBy,
	})
}
