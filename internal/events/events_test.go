// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package events

import (
	"errors"
	"strings"
	"testing"
)

func TestRoomEventValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		event   RoomEvent
		wantErr bool
	}{
		{"playback", NewPlaybackChanged("r1", PlaybackChanged{Position: 42, Speed: 1, Version: 5}), false},
		{"chat", NewChatPosted("r1", ChatPosted{MessageID: "m1", UserID: "u1", Text: "hi"}), false},
		{"joined", NewMemberJoined("r1", MemberChange{UserID: "u1", ConnectionID: "c1"}), false},
		{"left", NewMemberLeft("r1", MemberChange{UserID: "u1", ConnectionID: "c1", Reason: "idle_timeout"}), false},
		{"settings", NewSettingsChanged("r1", SettingsChanged{Settings: map[string]string{"guests": "on"}}), false},
		{"kick", NewGuestKicked("r1", GuestKicked{UserID: "u2"}), false},
		{"media", NewMediaChanged("r1", MediaChanged{MediaID: "m9", Version: 2}), false},
		{"missing room", NewChatPosted("", ChatPosted{Text: "x"}), true},
		{"unknown kind", RoomEvent{Kind: "party", RoomID: "r1"}, true},
		{"missing payload", RoomEvent{Kind: KindChatPosted, RoomID: "r1"}, true},
		{"wrong payload", RoomEvent{Kind: KindChatPosted, RoomID: "r1", Kick: &GuestKicked{}}, true},
		{"two payloads", RoomEvent{Kind: KindChatPosted, RoomID: "r1", Chat: &ChatPosted{}, Kick: &GuestKicked{}}, true},
		{"chat without text", NewChatPosted("r1", ChatPosted{MessageID: "m1", UserID: "u1"}), true},
		{"chat too long", NewChatPosted("r1", ChatPosted{MessageID: "m1", UserID: "u1", Text: strings.Repeat("a", 2001)}), true},
		{"kick without user", NewGuestKicked("r1", GuestKicked{KickedBy: "host"}), true},
		{"kick user with subject token", NewGuestKicked("r1", GuestKicked{UserID: "u.*"}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("error %v should wrap ErrInvalidEvent", err)
			}
		})
	}
}

func TestNewSettingsChangedCopiesMap(t *testing.T) {
	t.Parallel()

	src := map[string]string{"guests": "on"}
	ev := NewSettingsChanged("r1", SettingsChanged{Settings: src})
	src["guests"] = "off"

	if ev.Settings.Settings["guests"] != "on" {
		t.Error("event must not alias the caller's map")
	}
}

func TestClusterMessageRoundTrip(t *testing.T) {
	t.Parallel()

	msg := NewClusterMessage("node-a", NewPlaybackChanged("r1", PlaybackChanged{Position: 42, Speed: 1, IsPlaying: true, Version: 5}))
	if msg.MessageID == "" {
		t.Fatal("expected a generated message id")
	}

	data, err := MarshalClusterMessage(&msg)
	if err != nil {
		t.Fatalf("MarshalClusterMessage() error = %v", err)
	}

	got, err := UnmarshalClusterMessage(data)
	if err != nil {
		t.Fatalf("UnmarshalClusterMessage() error = %v", err)
	}
	if got.MessageID != msg.MessageID || got.OriginNodeID != "node-a" {
		t.Errorf("envelope mismatch: %+v", got)
	}
	if got.Event.Kind != KindPlaybackChanged || got.Event.Playback.Version != 5 || got.Event.Playback.Position != 42 {
		t.Errorf("event mismatch: %+v", got.Event)
	}
}

func TestNewClusterMessageUniqueIDs(t *testing.T) {
	t.Parallel()

	ev := NewChatPosted("r1", ChatPosted{Text: "x"})
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewClusterMessage("n", ev).MessageID
		if seen[id] {
			t.Fatalf("duplicate message id %s", id)
		}
		seen[id] = true
	}
}

func TestUnmarshalClusterMessageRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want error
	}{
		{"garbage", `{not json`, nil},
		{"missing message id", `{"v":1,"origin_node_id":"a","event":{"kind":"chat_posted","room_id":"r1","chat":{}}}`, ErrInvalidEnvelope},
		{"missing origin", `{"v":1,"message_id":"m","event":{"kind":"chat_posted","room_id":"r1","chat":{}}}`, ErrInvalidEnvelope},
		{"future version", `{"v":99,"message_id":"m","origin_node_id":"a","event":{"kind":"chat_posted","room_id":"r1","chat":{}}}`, ErrInvalidEnvelope},
		{"bad event", `{"v":1,"message_id":"m","origin_node_id":"a","event":{"kind":"chat_posted","room_id":"r1"}}`, ErrInvalidEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := UnmarshalClusterMessage([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestMarshalClusterMessageValidates(t *testing.T) {
	t.Parallel()

	msg := NewClusterMessage("node-a", RoomEvent{Kind: KindChatPosted, RoomID: "r1"})
	if _, err := MarshalClusterMessage(&msg); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("error = %v, want ErrInvalidEvent", err)
	}
}
