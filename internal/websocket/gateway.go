// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/cowatch/internal/connection"
	"github.com/tomtom215/cowatch/internal/events"
	"github.com/tomtom215/cowatch/internal/hub"
	"github.com/tomtom215/cowatch/internal/logging"
	"github.com/tomtom215/cowatch/internal/middleware"
	"github.com/tomtom215/cowatch/internal/playback"
)

// UserHeader carries the authenticated user id, set by the fronting proxy.
const UserHeader = "X-User-ID"

// Rooms distributes room events. cluster.Manager implements it.
type Rooms interface {
	NodeID() string
	Subscribe(roomID string) *hub.Subscription
	Unsubscribe(sub *hub.Subscription)
	Publish(ctx context.Context, roomID string, ev events.RoomEvent) error
}

// Admission tracks live connections. connection.Manager implements it.
type Admission interface {
	AdmitConn(userID, roomID string, closer connection.Closer) (connection.ID, error)
	Release(id connection.ID) bool
	Touch(id connection.ID) error
}

// Playback reads and mutates room playback state. playback.Service
// implements it.
type Playback interface {
	Get(ctx context.Context, roomID string) (playback.State, error)
	Apply(ctx context.Context, roomID string, expectedVersion uint64, mut playback.Mutation) (playback.State, error)
}

// Action is a privileged command checked with the Authorizer.
type Action string

// Privileged actions.
const (
	ActionKick     Action = "kick"
	ActionSettings Action = "settings"
)

// Authorizer decides whether userID may perform action in roomID.
type Authorizer func(userID, roomID string, action Action) bool

// Identity is who is connecting to which room.
type Identity struct {
	UserID string
	RoomID string
}

// IdentifyFunc extracts the identity of an upgrade request.
type IdentifyFunc func(r *http.Request) Identity

// IdentifyRequest reads the room from the {roomID} route parameter and the
// user from UserHeader.
func IdentifyRequest(r *http.Request) Identity {
	return Identity{
		UserID: r.Header.Get(UserHeader),
		RoomID: chi.URLParam(r, "roomID"),
	}
}

// Options configures a Gateway.
type Options struct {
	// AllowedOrigins lists accepted Origin headers; "*" accepts any.
	AllowedOrigins []string
	// InboundRate and InboundBurst bound client messages per connection.
	InboundRate  float64
	InboundBurst int
	// Identify defaults to IdentifyRequest.
	Identify IdentifyFunc
	// Authorize gates kick and settings commands. Nil denies them.
	Authorize Authorizer
}

// Gateway upgrades HTTP requests to WebSocket clients bound to one room.
type Gateway struct {
	rooms    Rooms
	conns    Admission
	playback Playback
	opts     Options
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewGateway creates a Gateway.
func NewGateway(rooms Rooms, conns Admission, pb Playback, opts Options) *Gateway {
	if opts.InboundRate <= 0 {
		opts.InboundRate = 20
	}
	if opts.InboundBurst <= 0 {
		opts.InboundBurst = 40
	}
	if opts.Identify == nil {
		opts.Identify = IdentifyRequest
	}

	g := &Gateway{
		rooms:    rooms,
		conns:    conns,
		playback: pb,
		opts:     opts,
		logger:   logging.WithComponent("websocket"),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      g.checkOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return g
}

// ServeHTTP admits the connection, upgrades it and starts the client.
// Rejected admissions are answered before the upgrade.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := g.opts.Identify(r)

	c := newClient(g, id)
	connID, err := g.conns.AdmitConn(id.UserID, id.RoomID, c)
	if err != nil {
		g.rejectAdmission(w, id, err)
		return
	}
	c.id = connID

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.conns.Release(connID)
		g.logger.Warn().Err(err).Str("user_id", id.UserID).Str("room_id", id.RoomID).Msg("websocket upgrade failed")
		return
	}
	if !c.attach(conn) {
		g.conns.Release(connID)
		return
	}
	c.start()
	g.logger.Debug().Str("connection_id", string(connID)).Str("user_id", id.UserID).Str("room_id", id.RoomID).
		Str("request_id", middleware.GetRequestID(r.Context())).Msg("websocket connected")
}

func (g *Gateway) rejectAdmission(w http.ResponseWriter, id Identity, err error) {
	status, code := http.StatusInternalServerError, CodeInternal
	switch {
	case errors.Is(err, connection.ErrInvalidIdentity):
		status, code = http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, connection.ErrAdmission):
		status, code = http.StatusTooManyRequests, CodeLimitExceeded
	}
	g.logger.Debug().Err(err).Str("user_id", id.UserID).Str("room_id", id.RoomID).Msg("connection rejected")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorData{Code: code, Message: err.Error()})
}

// checkOrigin validates the Origin header. Browsers always send one, so a
// missing Origin is rejected.
func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		g.logger.Warn().Msg("websocket connection rejected: missing Origin header")
		return false
	}
	if len(g.opts.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range g.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	g.logger.Warn().Str("origin", origin).Msg("websocket connection rejected: origin not allowed")
	return false
}

func (g *Gateway) newLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(g.opts.InboundRate), g.opts.InboundBurst)
}

func (g *Gateway) authorized(userID, roomID string, action Action) bool {
	return g.opts.Authorize != nil && g.opts.Authorize(userID, roomID, action)
}
