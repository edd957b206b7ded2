// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package events

import (
	"fmt"
	"time"

	"github.com/tomtom215/cowatch/internal/validation"
)

// Kind discriminates the payload carried by a RoomEvent.
type Kind string

// Room event kinds.
const (
	KindPlaybackChanged Kind = "playback_changed"
	KindChatPosted      Kind = "chat_posted"
	KindMemberJoined    Kind = "member_joined"
	KindMemberLeft      Kind = "member_left"
	KindSettingsChanged Kind = "settings_changed"
	KindGuestKicked     Kind = "guest_kicked"
	KindMediaChanged    Kind = "media_changed"
)

// RoomEvent is a state change scoped to one room. Exactly one payload field
// is set, selected by Kind. Events are shared by reference across every
// subscriber of a room and must not be modified after construction.
type RoomEvent struct {
	Kind       Kind      `json:"kind"`
	RoomID     string    `json:"room_id"`
	OccurredAt time.Time `json:"occurred_at"`

	Playback *PlaybackChanged `json:"playback,omitempty"`
	Chat     *ChatPosted      `json:"chat,omitempty"`
	Member   *MemberChange    `json:"member,omitempty"`
	Settings *SettingsChanged `json:"settings,omitempty"`
	Kick     *GuestKicked     `json:"kick,omitempty"`
	Media    *MediaChanged    `json:"media,omitempty"`
}

// PlaybackChanged carries the full playback state after an accepted mutation,
// so a receiver can replace its view without replaying history.
type PlaybackChanged struct {
	MediaID   string    `json:"media_id,omitempty"`
	Position  float64   `json:"position"`
	Speed     float64   `json:"speed"`
	IsPlaying bool      `json:"is_playing"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	ChangedBy string    `json:"changed_by,omitempty"`
}

// ChatPosted is a chat line. MessageID lets clients drop their own optimistic echo.
type ChatPosted struct {
	MessageID string `json:"message_id" validate:"required,max=128"`
	UserID    string `json:"user_id" validate:"required,max=128"`
	Text      string `json:"text" validate:"required,max=2000"`
}

// MemberChange is the payload of MemberJoined and MemberLeft.
type MemberChange struct {
	UserID       string `json:"user_id"`
	ConnectionID string `json:"connection_id"`
	NodeID       string `json:"node_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// SettingsChanged carries the room settings that changed.
type SettingsChanged struct {
	Settings  map[string]string `json:"settings"`
	ChangedBy string            `json:"changed_by,omitempty"`
}

// GuestKicked tells every node to drop the user's connections to the room.
type GuestKicked struct {
	UserID   string `json:"user_id" validate:"required,identifier,max=128"`
	KickedBy string `json:"kicked_by,omitempty" validate:"max=128"`
	Reason   string `json:"reason,omitempty" validate:"max=256"`
}

// MediaChanged announces a new current media item.
type MediaChanged struct {
	MediaID   string `json:"media_id"`
	Title     string `json:"title,omitempty"`
	Version   uint64 `json:"version"`
	ChangedBy string `json:"changed_by,omitempty"`
}

func newEvent(kind Kind, roomID string) RoomEvent {
	return RoomEvent{Kind: kind, RoomID: roomID, OccurredAt: time.Now().UTC()}
}

// NewPlaybackChanged builds a playback_changed event.
func NewPlaybackChanged(roomID string, p PlaybackChanged) RoomEvent {
	ev := newEvent(KindPlaybackChanged, roomID)
	ev.Playback = &p
	return ev
}

// NewChatPosted builds a chat_posted event.
func NewChatPosted(roomID string, c ChatPosted) RoomEvent {
	ev := newEvent(KindChatPosted, roomID)
	ev.Chat = &c
	return ev
}

// NewMemberJoined builds a member_joined event.
func NewMemberJoined(roomID string, m MemberChange) RoomEvent {
	ev := newEvent(KindMemberJoined, roomID)
	ev.Member = &m
	return ev
}

// NewMemberLeft builds a member_left event.
func NewMemberLeft(roomID string, m MemberChange) RoomEvent {
	ev := newEvent(KindMemberLeft, roomID)
	ev.Member = &m
	return ev
}

// NewSettingsChanged builds a settings_changed event. The map is copied.
func NewSettingsChanged(roomID string, s SettingsChanged) RoomEvent {
	settings := make(map[string]string, len(s.Settings))
	for k, v := range s.Settings {
		settings[k] = v
	}
	s.Settings = settings
	ev := newEvent(KindSettingsChanged, roomID)
	ev.Settings = &s
	return ev
}

// NewGuestKicked builds a guest_kicked event.
func NewGuestKicked(roomID string, k GuestKicked) RoomEvent {
	ev := newEvent(KindGuestKicked, roomID)
	ev.Kick = &k
	return ev
}

// NewMediaChanged builds a media_changed event.
func NewMediaChanged(roomID string, m MediaChanged) RoomEvent {
	ev := newEvent(KindMediaChanged, roomID)
	ev.Media = &m
	return ev
}

// Validate checks that the event names a room, carries exactly the payload
// its kind requires, and that chat and kick payloads pass their field rules.
func (e *RoomEvent) Validate() error {
	if e.RoomID == "" {
		return fmt.Errorf("%w: room_id is required", ErrInvalidEvent)
	}

	want := e.payloadFor()
	if want == "" {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	if n := e.payloadCount(); n != 1 {
		return fmt.Errorf("%w: %s must carry exactly one payload, has %d", ErrInvalidEvent, e.Kind, n)
	}
	if !e.hasPayload(want) {
		return fmt.Errorf("%w: %s requires %s payload", ErrInvalidEvent, e.Kind, want)
	}

	var payload interface{}
	switch {
	case e.Chat != nil:
		payload = e.Chat
	case e.Kick != nil:
		payload = e.Kick
	default:
		return nil
	}
	if verr := validation.ValidateStruct(payload); verr != nil {
		return fmt.Errorf("%w: %s: %s", ErrInvalidEvent, e.Kind, verr.Error())
	}
	return nil
}

func (e *RoomEvent) payloadFor() string {
	switch e.Kind {
	case KindPlaybackChanged:
		return "playback"
	case KindChatPosted:
		return "chat"
	case KindMemberJoined, KindMemberLeft:
		return "member"
	case KindSettingsChanged:
		return "settings"
	case KindGuestKicked:
		return "kick"
	case KindMediaChanged:
		return "media"
	default:
		return ""
	}
}

func (e *RoomEvent) hasPayload(name string) bool {
	switch name {
	case "playback":
		return e.Playback != nil
	case "chat":
		return e.Chat != nil
	case "member":
		return e.Member != nil
	case "settings":
		return e.Settings != nil
	case "kick":
		return e.Kick != nil
	case "media":
		return e.Media != nil
	}
	return false
}

func (e *RoomEvent) payloadCount() int {
	n := 0
	for _, set := range []bool{
		e.Playback != nil, e.Chat != nil, e.Member != nil,
		e.Settings != nil, e.Kick != nil, e.Media != nil,
	} {
		if set {
			n++
		}
	}
	return n
}
