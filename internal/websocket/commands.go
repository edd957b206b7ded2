// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package websocket

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/cowatch/internal/events"
	"github.com/tomtom215/cowatch/internal/playback"
	"github.com/tomtom215/cowatch/internal/validation"
)

// handle dispatches one client command. Every command except ping gets
// either an ack or an error carrying its request id.
func (c *Client) handle(msg *ClientMessage) {
	ctx, cancel := context.WithTimeout(c.ctx, commandTimeout)
	defer cancel()

	switch msg.Type {
	case MessageTypePing:
		c.reply(Message{Type: MessageTypePong, RequestID: msg.RequestID})
	case MessageTypeState:
		c.handleState(ctx, msg)
	case MessageTypePlayback:
		c.handlePlayback(ctx, msg)
	case MessageTypeChat:
		c.handleChat(ctx, msg)
	case MessageTypeKick:
		c.handleKick(ctx, msg)
	case MessageTypeSettings:
		c.handleSettings(ctx, msg)
	default:
		c.reply(errorMessage(msg.RequestID, CodeUnknownType, "unknown message type: "+msg.Type))
	}
}

// decode unmarshals and validates msg.Data into v, replying with an error
// and returning false on failure.
func (c *Client) decode(msg *ClientMessage, v interface{}) bool {
	if len(msg.Data) == 0 {
		c.reply(errorMessage(msg.RequestID, CodeBadRequest, "data is required"))
		return false
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		c.reply(errorMessage(msg.RequestID, CodeBadRequest, "malformed data"))
		return false
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		apiErr := verr.ToAPIError()
		c.reply(errorMessage(msg.RequestID, apiErr.Code, apiErr.Message))
		return false
	}
	return true
}

func (c *Client) handleState(ctx context.Context, msg *ClientMessage) {
	st, err := c.gw.playback.Get(ctx, c.identity.RoomID)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to load playback state")
		c.reply(errorMessage(msg.RequestID, CodeInternal, "playback state unavailable"))
		return
	}
	st.Position = st.ProjectedPosition(time.Now())
	c.reply(Message{Type: MessageTypeAck, RequestID: msg.RequestID, Data: st})
}

func (c *Client) handlePlayback(ctx context.Context, msg *ClientMessage) {
	var cmd PlaybackCommand
	if len(msg.Data) == 0 || json.Unmarshal(msg.Data, &cmd) != nil {
		c.reply(errorMessage(msg.RequestID, CodeBadRequest, "malformed playback command"))
		return
	}

	st, err := c.gw.playback.Apply(ctx, c.identity.RoomID, cmd.ExpectedVersion, cmd.Mutation.By(c.identity.UserID))
	switch {
	case err == nil:
		c.reply(Message{Type: MessageTypeAck, RequestID: msg.RequestID, Data: Ack{Version: st.Version}})
	case errors.Is(err, playback.ErrStaleVersion):
		data := ErrorData{Code: CodeStaleVersion, Message: err.Error()}
		if cur, gerr := c.gw.playback.Get(ctx, c.identity.RoomID); gerr == nil {
			data.Playback = &cur
		}
		c.reply(Message{Type: MessageTypeError, RequestID: msg.RequestID, Data: data})
	case errors.Is(err, playback.ErrInvalidMutation):
		c.reply(errorMessage(msg.RequestID, CodeValidation, err.Error()))
	default:
		c.logger.Error().Err(err).Msg("playback mutation failed")
		c.reply(errorMessage(msg.RequestID, CodeInternal, "playback update failed"))
	}
}

func (c *Client) handleChat(ctx context.Context, msg *ClientMessage) {
	var cmd ChatCommand
	if !c.decode(msg, &cmd) {
		return
	}

	messageID := uuid.NewString()
	ev := events.NewChatPosted(c.identity.RoomID, events.ChatPosted{
		MessageID: messageID,
		UserID:    c.identity.UserID,
		Text:      cmd.Text,
	})
	if !c.publishCommand(ctx, msg, ev) {
		return
	}
	c.reply(Message{Type: MessageTypeAck, RequestID: msg.RequestID, Data: Ack{MessageID: messageID}})
}

func (c *Client) handleKick(ctx context.Context, msg *ClientMessage) {
	if !c.gw.authorized(c.identity.UserID, c.identity.RoomID, ActionKick) {
		c.reply(errorMessage(msg.RequestID, CodeForbidden, "not allowed to kick"))
		return
	}
	var cmd KickCommand
	if !c.decode(msg, &cmd) {
		return
	}

	ev := events.NewGuestKicked(c.identity.RoomID, events.GuestKicked{
		UserID:   cmd.UserID,
		KickedBy: c.identity.UserID,
		Reason:   cmd.Reason,
	})
	if c.publishCommand(ctx, msg, ev) {
		c.reply(Message{Type: MessageTypeAck, RequestID: msg.RequestID})
	}
}

func (c *Client) handleSettings(ctx context.Context, msg *ClientMessage) {
	if !c.gw.authorized(c.identity.UserID, c.identity.RoomID, ActionSettings) {
		c.reply(errorMessage(msg.RequestID, CodeForbidden, "not allowed to change settings"))
		return
	}
	var cmd SettingsCommand
	if !c.decode(msg, &cmd) {
		return
	}

	ev := events.NewSettingsChanged(c.identity.RoomID, events.SettingsChanged{
		Settings:  cmd.Settings,
		ChangedBy: c.identity.UserID,
	})
	if c.publishCommand(ctx, msg, ev) {
		c.reply(Message{Type: MessageTypeAck, RequestID: msg.RequestID})
	}
}

func (c *Client) publishCommand(ctx context.Context, msg *ClientMessage, ev events.RoomEvent) bool {
	if err := c.gw.rooms.Publish(ctx, c.identity.RoomID, ev); err != nil {
		c.logger.Error().Err(err).Str("kind", string(ev.Kind)).Msg("failed to publish room event")
		c.reply(errorMessage(msg.RequestID, CodeInternal, "event not delivered"))
		return false
	}
	return true
}
