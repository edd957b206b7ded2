// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/cowatch/internal/connection"
	"github.com/tomtom215/cowatch/internal/events"
	"github.com/tomtom215/cowatch/internal/hub"
	"github.com/tomtom215/cowatch/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32
	commandTimeout = 5 * time.Second
	closeGrace     = time.Second
)

// Close reasons raised by the client itself.
const (
	reasonKicked       connection.Reason = "kicked"
	reasonResync       connection.Reason = "resync"
	reasonDisconnected connection.Reason = "disconnected"
)

// Close codes in the private-use range, one per eviction reason.
const (
	CloseIdleTimeout = 4000
	CloseMaxDuration = 4001
	CloseKicked      = 4002
	CloseResync      = 4003
)

func closeCode(reason connection.Reason) int {
	switch reason {
	case connection.ReasonIdleTimeout:
		return CloseIdleTimeout
	case connection.ReasonMaxDuration:
		return CloseMaxDuration
	case reasonKicked:
		return CloseKicked
	case reasonResync:
		return CloseResync
	case connection.ReasonShutdown:
		return websocket.CloseGoingAway
	default:
		return websocket.CloseNormalClosure
	}
}

// Client is one admitted WebSocket connection bound to a room. The read pump
// handles commands; the write pump owns every write to the socket.
type Client struct {
	id       connection.ID
	identity Identity
	gw       *Gateway
	conn     *websocket.Conn
	sub      *hub.Subscription
	send     chan Message
	limiter  *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
	mu        sync.Mutex
	reason    connection.Reason

	logger zerolog.Logger
}

func newClient(gw *Gateway, id Identity) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		identity: id,
		gw:       gw,
		send:     make(chan Message, sendBuffer),
		limiter:  gw.newLimiter(),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		logger:   gw.logger.With().Str("user_id", id.UserID).Str("room_id", id.RoomID).Logger(),
	}
}

// ID returns the connection id assigned on admission.
func (c *Client) ID() connection.ID {
	return c.id
}

// Close sends a close frame carrying reason and closes the socket, so the
// transport is down when Close returns. Only the first call has an effect.
// Before the upgrade completes it only marks the client closed.
func (c *Client) Close(reason connection.Reason) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.reason = reason
		conn := c.conn
		c.mu.Unlock()

		close(c.done)
		if conn != nil {
			closeConn(conn, reason)
		}
	})
}

// attach binds the upgraded socket. It reports false, after closing conn,
// if the client was closed during the upgrade.
func (c *Client) attach(conn *websocket.Conn) bool {
	c.mu.Lock()
	c.conn = conn
	reason := c.reason
	c.mu.Unlock()

	if reason != "" {
		closeConn(conn, reason)
		return false
	}
	return true
}

func closeConn(conn *websocket.Conn, reason connection.Reason) {
	frame := websocket.FormatCloseMessage(closeCode(reason), string(reason))
	_ = conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(closeGrace))
	_ = conn.Close()
}

func (c *Client) closeReason() connection.Reason {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reason == "" {
		return reasonDisconnected
	}
	return c.reason
}

// start subscribes before reading the playback snapshot so no event falls
// between the two; clients discard events older than the snapshot version.
func (c *Client) start() {
	c.sub = c.gw.rooms.Subscribe(c.identity.RoomID)

	ctx, cancel := context.WithTimeout(c.ctx, commandTimeout)
	st, err := c.gw.playback.Get(ctx, c.identity.RoomID)
	cancel()
	if err != nil {
		c.logger.Warn().Err(err).Msg("playback snapshot unavailable")
	}
	st.Position = st.ProjectedPosition(time.Now())

	c.reply(Message{Type: MessageTypeWelcome, Data: Welcome{
		ConnectionID: string(c.id),
		NodeID:       c.gw.rooms.NodeID(),
		RoomID:       c.identity.RoomID,
		UserID:       c.identity.UserID,
		Playback:     st,
	}})

	c.publish(events.NewMemberJoined(c.identity.RoomID, events.MemberChange{
		UserID:       c.identity.UserID,
		ConnectionID: string(c.id),
		NodeID:       c.gw.rooms.NodeID(),
	}))

	c.logger.Debug().Str("connection_id", string(c.id)).Msg("client connected")

	go c.writePump()
	go c.readPump()
}

// finish runs once the read pump exits. The transport is closed before the
// record is released.
func (c *Client) finish() {
	c.Close(reasonDisconnected)

	c.gw.rooms.Unsubscribe(c.sub)
	c.gw.conns.Release(c.id)

	reason := c.closeReason()
	c.publish(events.NewMemberLeft(c.identity.RoomID, events.MemberChange{
		UserID:       c.identity.UserID,
		ConnectionID: string(c.id),
		NodeID:       c.gw.rooms.NodeID(),
		Reason:       string(reason),
	}))
	c.cancel()

	c.logger.Debug().Str("connection_id", string(c.id)).Str("reason", string(reason)).Msg("client disconnected")
}

func (c *Client) publish(ev events.RoomEvent) {
	ctx, cancel := context.WithTimeout(c.ctx, commandTimeout)
	defer cancel()
	if err := c.gw.rooms.Publish(ctx, c.identity.RoomID, ev); err != nil {
		c.logger.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("failed to publish room event")
	}
}

// reply queues a direct message. A client that is not draining its replies
// loses them.
func (c *Client) reply(msg Message) {
	select {
	case c.send <- msg:
	default:
		metrics.WSErrors.WithLabelValues("send_full").Inc()
	}
}

// readPump reads commands until the socket fails or closes.
func (c *Client) readPump() {
	defer c.finish()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("unexpected websocket close error")
			}
			return
		}
		metrics.WSMessagesReceived.Inc()

		if err := c.gw.conns.Touch(c.id); err != nil {
			// Evicted while the frame was in flight.
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			metrics.WSErrors.WithLabelValues("decode").Inc()
			c.reply(errorMessage("", CodeBadRequest, "malformed message"))
			continue
		}
		if !c.limiter.Allow() {
			metrics.WSErrors.WithLabelValues("rate_limited").Inc()
			c.reply(errorMessage(msg.RequestID, CodeRateLimited, "too many messages"))
			continue
		}
		c.handle(&msg)
	}
}

// writePump forwards room events and replies to the socket and pings the
// client. It is the only writer.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	evs := c.sub.Events()
	for {
		select {
		case ev, ok := <-evs:
			if !ok {
				evs = nil
				if c.sub.Reason() == hub.CloseReasonOverflow {
					c.Close(reasonResync)
				} else {
					c.Close(connection.ReasonShutdown)
				}
				continue
			}
			if !c.write(Message{Type: MessageTypeEvent, Data: ev}) {
				return
			}
			if ev.Kind == events.KindGuestKicked && ev.Kick.UserID == c.identity.UserID {
				c.Close(reasonKicked)
			}

		case msg := <-c.send:
			if !c.write(msg) {
				return
			}

		case <-c.done:
			return

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error().Err(err).Str("type", msg.Type).Msg("failed to encode message")
		return true
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		metrics.WSErrors.WithLabelValues("write").Inc()
		return false
	}
	metrics.WSMessagesSent.Inc()
	return true
}

var _ connection.Closer = (*Client)(nil)
