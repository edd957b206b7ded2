// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package playback

import (
	"fmt"
	"time"

	"github.com/tomtom215/cowatch/internal/validation"
)

// Op names a playback mutation.
type Op string

// Mutation operations.
const (
	OpPlay        Op = "play"
	OpPause       Op = "pause"
	OpSeek        Op = "seek"
	OpSetSpeed    Op = "set_speed"
	OpChangeMedia Op = "change_media"
)

// Mutation is a requested change to a room's playback state.
//
// Play and Pause may carry the client's Position to anchor the state to what
// the user saw; otherwise the projected position is used.
type Mutation struct {
	Op       Op       `json:"op" validate:"required,oneof=play pause seek set_speed change_media"`
	Position *float64 `json:"position,omitempty" validate:"omitempty,gte=0,lte=604800"`
	Speed    float64  `json:"speed,omitempty" validate:"omitempty,gte=0.25,lte=4"`
	MediaID  string   `json:"media_id,omitempty" validate:"omitempty,max=256"`
	Actor    string   `json:"-"`
}

// Play resumes playback.
func Play() Mutation { return Mutation{Op: OpPlay} }

// Pause stops playback.
func Pause() Mutation { return Mutation{Op: OpPause} }

// Seek moves to position seconds.
func Seek(position float64) Mutation { return Mutation{Op: OpSeek, Position: &position} }

// SetSpeed changes the playback rate.
func SetSpeed(speed float64) Mutation { return Mutation{Op: OpSetSpeed, Speed: speed} }

// ChangeMedia switches to mediaID, paused at the start.
func ChangeMedia(mediaID string) Mutation { return Mutation{Op: OpChangeMedia, MediaID: mediaID} }

// By returns m attributed to actor.
func (m Mutation) By(actor string) Mutation {
	m.Actor = actor
	return m
}

// Validate checks field ranges and the fields each op requires.
func (m *Mutation) Validate() error {
	if verr := validation.ValidateStruct(m); verr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMutation, verr)
	}
	switch m.Op {
	case OpSeek:
		if m.Position == nil {
			return fmt.Errorf("%w: seek requires position", ErrInvalidMutation)
		}
	case OpSetSpeed:
		if m.Speed == 0 {
			return fmt.Errorf("%w: set_speed requires speed", ErrInvalidMutation)
		}
	case OpChangeMedia:
		if m.MediaID == "" {
			return fmt.Errorf("%w: change_media requires media_id", ErrInvalidMutation)
		}
	}
	return nil
}

// applyTo returns the state after m at now, with the version incremented.
func (m *Mutation) applyTo(cur State, now time.Time) State {
	next := cur
	next.Position = cur.ProjectedPosition(now)
	if m.Position != nil {
		next.Position = *m.Position
	}

	switch m.Op {
	case OpPlay:
		next.IsPlaying = true
	case OpPause:
		next.IsPlaying = false
	case OpSeek:
	case OpSetSpeed:
		next.Speed = m.Speed
	case OpChangeMedia:
		next.MediaID = m.MediaID
		next.Position = 0
		next.IsPlaying = false
	}

	next.Version = cur.Version + 1
	next.UpdatedAt = now
	return next
}
