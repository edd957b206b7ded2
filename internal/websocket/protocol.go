// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package websocket

import (
	"github.com/goccy/go-json"

	"github.com/tomtom215/cowatch/internal/playback"
)

// Message types sent by clients.
const (
	MessageTypePing     = "ping"
	MessageTypePlayback = "playback"
	MessageTypeChat     = "chat"
	MessageTypeKick     = "kick"
	MessageTypeSettings = "settings"
	MessageTypeState    = "state"
)

// Message types sent by the server.
const (
	MessageTypeWelcome = "welcome"
	MessageTypeEvent   = "event"
	MessageTypeAck     = "ack"
	MessageTypeError   = "error"
	MessageTypePong    = "pong"
)

// Error codes carried in error messages.
const (
	CodeBadRequest    = "BAD_REQUEST"
	CodeValidation    = "VALIDATION_ERROR"
	CodeStaleVersion  = "STALE_VERSION"
	CodeForbidden     = "FORBIDDEN"
	CodeRateLimited   = "RATE_LIMITED"
	CodeLimitExceeded = "LIMIT_EXCEEDED"
	CodeUnknownType   = "UNKNOWN_TYPE"
	CodeInternal      = "INTERNAL_ERROR"
)

// ClientMessage is a command received from a client. RequestID is echoed on
// the matching ack or error.
type ClientMessage struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Message is sent to a client.
type Message struct {
	Type      string      `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// PlaybackCommand requests a playback mutation against the version the
// client last saw.
type PlaybackCommand struct {
	ExpectedVersion uint64 `json:"expected_version"`
	playback.Mutation
}

// ChatCommand posts a chat line.
type ChatCommand struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// KickCommand removes a user from the room on every node.
type KickCommand struct {
	UserID string `json:"user_id" validate:"required,identifier,max=128"`
	Reason string `json:"reason,omitempty" validate:"max=256"`
}

// SettingsCommand changes room settings.
type SettingsCommand struct {
	Settings map[string]string `json:"settings" validate:"required,min=1,max=32,dive,keys,max=64,endkeys,max=1024"`
}

// Welcome is the first message on a new connection. Playback holds the
// projected position at send time.
type Welcome struct {
	ConnectionID string         `json:"connection_id"`
	NodeID       string         `json:"node_id"`
	RoomID       string         `json:"room_id"`
	UserID       string         `json:"user_id"`
	Playback     playback.State `json:"playback"`
}

// Ack confirms a command.
type Ack struct {
	Version   uint64 `json:"version,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

// ErrorData describes a rejected command.
type ErrorData struct {
	Code     string          `json:"code"`
	Message  string          `json:"message"`
	Playback *playback.State `json:"playback,omitempty"`
}

func errorMessage(requestID, code, message string) Message {
	return Message{
		Type:      MessageTypeError,
		RequestID: requestID,
		Data:      ErrorData{Code: code, Message: message},
	}
}
