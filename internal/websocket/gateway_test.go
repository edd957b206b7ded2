// Cowatch - Distributed Room Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cowatch

package websocket

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/cowatch/internal/cluster"
	"github.com/tomtom215/cowatch/internal/connection"
	"github.com/tomtom215/cowatch/internal/events"
	"github.com/tomtom215/cowatch/internal/hub"
	"github.com/tomtom215/cowatch/internal/logging"
	"github.com/tomtom215/cowatch/internal/playback"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

const testOrigin = "http://localhost"

type testEnv struct {
	server *httptest.Server
	rooms  *cluster.Manager
	conns  *connection.Manager
	svc    *playback.Service
}

func newTestEnv(t *testing.T, connOpts connection.Options, opts Options) *testEnv {
	t.Helper()

	rooms, err := cluster.New(cluster.Options{NodeID: "node-a"})
	if err != nil {
		t.Fatalf("cluster.New() error = %v", err)
	}
	connOpts.NodeID = "node-a"
	conns := connection.NewManager(connOpts)
	svc := playback.NewService(playback.NewMemoryStore(), rooms)

	r := chi.NewRouter()
	r.Method(http.MethodGet, "/ws/{roomID}", NewGateway(rooms, conns, svc, opts))
	server := httptest.NewServer(r)

	t.Cleanup(func() {
		conns.CloseAll()
		server.Close()
		_ = rooms.Close()
	})
	return &testEnv{server: server, rooms: rooms, conns: conns, svc: svc}
}

func (e *testEnv) dial(roomID, userID, origin string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/" + roomID
	header := http.Header{}
	if userID != "" {
		header.Set(UserHeader, userID)
	}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

// join dials and consumes the welcome message.
func (e *testEnv) join(t *testing.T, roomID, userID string) (*websocket.Conn, Welcome) {
	t.Helper()
	conn, resp, err := e.dial(roomID, userID, testOrigin)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial(%s, %s) error = %v", roomID, userID, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	msg := readType(t, conn, MessageTypeWelcome)
	var w Welcome
	if err := json.Unmarshal(msg.Data, &w); err != nil {
		t.Fatalf("decode welcome: %v", err)
	}
	return conn, w
}

type received struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

func readMsg(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var msg received
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

// readType skips messages until one of type typ arrives.
func readType(t *testing.T, conn *websocket.Conn, typ string) received {
	t.Helper()
	for i := 0; i < 20; i++ {
		if msg := readMsg(t, conn); msg.Type == typ {
			return msg
		}
	}
	t.Fatalf("no %s message", typ)
	return received{}
}

// readEvent skips messages until an event of kind arrives.
func readEvent(t *testing.T, conn *websocket.Conn, kind events.Kind) events.RoomEvent {
	t.Helper()
	for i := 0; i < 20; i++ {
		msg := readType(t, conn, MessageTypeEvent)
		var ev events.RoomEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if ev.Kind == kind {
			return ev
		}
	}
	t.Fatalf("no %s event", kind)
	return events.RoomEvent{}
}

func readError(t *testing.T, conn *websocket.Conn) ErrorData {
	t.Helper()
	msg := readType(t, conn, MessageTypeError)
	var data ErrorData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return data
}

// readClose reads until the server closes the socket and returns the close frame.
func readClose(t *testing.T, conn *websocket.Conn) *websocket.CloseError {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var ce *websocket.CloseError
			if !errors.As(err, &ce) {
				t.Fatalf("read error = %v, want close frame", err)
			}
			return ce
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
}

func command(typ, requestID string, data interface{}) map[string]interface{} {
	msg := map[string]interface{}{"type": typ, "request_id": requestID}
	if data != nil {
		msg["data"] = data
	}
	return msg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func nextHubEvent(t *testing.T, sub *hub.Subscription, kind events.Kind) events.RoomEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				t.Fatal("subscription closed")
			}
			if ev.Kind == kind {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s event", kind)
		}
	}
}

func TestGateway_WelcomeAndJoin(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, connection.Options{}, Options{})

	conn, w := env.join(t, "room-1", "alice")
	if w.ConnectionID == "" || w.NodeID != "node-a" || w.RoomID != "room-1" || w.UserID != "alice" {
		t.Errorf("welcome = %+v", w)
	}
	if w.Playback.Version != 0 || w.Playback.Speed != 1 {
		t.Errorf("welcome playback = %+v", w.Playback)
	}

	ev := readEvent(t, conn, events.KindMemberJoined)
	if ev.Member.UserID != "alice" || ev.Member.ConnectionID != w.ConnectionID {
		t.Errorf("member_joined = %+v", ev.Member)
	}
	if got := env.conns.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestGateway_PlaybackRoundTrip(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, connection.Options{}, Options{})

	alice, _ := env.join(t, "room-1", "alice")
	bob, _ := env.join(t, "room-1", "bob")

	send(t, alice, command(MessageTypePlayback, "r1", map[string]interface{}{
		"expected_version": 0, "op": "seek", "position": 42,
	}))

	ack := readType(t, alice, MessageTypeAck)
	var a Ack
	_ = json.Unmarshal(ack.Data, &a)
	if ack.RequestID != "r1" || a.Version != 1 {
		t.Errorf("ack = %+v (%+v)", ack, a)
	}

	ev := readEvent(t, bob, events.KindPlaybackChanged)
	if ev.Playback.Version != 1 || ev.Playback.Position != 42 || ev.Playback.ChangedBy != "alice" {
		t.Errorf("playback_changed = %+v", ev.Playback)
	}

	send(t, alice, command(MessageTypePlayback, "r2", map[string]interface{}{
		"expected_version": 0, "op": "pause",
	}))
	stale := readError(t, alice)
	if stale.Code != CodeStaleVersion || stale.Playback == nil || stale.Playback.Version != 1 {
		t.Errorf("stale error = %+v", stale)
	}
}

func TestGateway_LateJoinerSeesState(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, connection.Options{}, Options{})

	if _, err := env.svc.Apply(t.Context(), "room-1", 0, playback.ChangeMedia("ep-3")); err != nil {
		t.Fatal(err)
	}
	_, w := env.join(t, "room-1", "carol")
	if w.Playback.Version != 1 || w.Playback.MediaID != "ep-3" {
		t.Errorf("welcome playback = %+v", w.Playback)
	}
}

func TestGateway_ChatStaysInRoom(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, connection.Options{}, Options{})

	alice, _ := env.join(t, "room-1", "alice")
	bob, _ := env.join(t, "room-1", "bob")
	other := env.rooms.Subscribe("room-2")
	defer env.rooms.Unsubscribe(other)

	send(t, alice, command(MessageTypeChat, "c1", map[string]string{"text": "hello"}))

	ev := readEvent(t, bob, events.KindChatPosted)
	if ev.Chat.Text != "hello" || ev.Chat.UserID != "alice" || ev.Chat.MessageID == "" {
		t.Errorf("chat = %+v", ev.Chat)
	}
	readType(t, alice, MessageTypeAck)

	select {
	case ev := <-other.Events():
		t.Errorf("room-2 received %s", ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestGateway_AdmissionRejected(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, connection.Options{MaxPerUser: 1}, Options{})

	env.join(t, "room-1", "alice")

	conn, resp, err := env.dial("room-2", "alice", testOrigin)
	if conn != nil {
		conn.Close()
		t.Fatal("second connection should be rejected")
	}
	if !errors.Is(err, websocket.ErrBadHandshake) || resp == nil {
		t.Fatalf("dial error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
	var body ErrorData
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Code != CodeLimitExceeded || !strings.Contains(body.Message, "user") {
		t.Errorf("body = %+v", body)
	}
	if got := env.conns.Count(); got != 1 {
		t.Errorf("Count() = %d, want 1", got)
	}
}

func TestGateway_RejectsBeforeUpgrade(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, connection.Options{}, Options{AllowedOrigins: []string{"https://watch.example"}})

	tests := []struct {
		name   string
		room   string
		user   string
		origin string
		status int
	}{
		{"missing user", "room-1", "", testOrigin, http.StatusBadRequest},
		{"bad room id", "room.1", "alice", testOrigin, http.StatusBadRequest},
		{"foreign origin", "room-1", "alice", "https://evil.example", http.StatusForbidden},
		{"missing origin", "room-1", "alice", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := env.dial(tt.room, tt.user, tt.origin)
			if conn != nil {
				conn.Close()
				t.Fatal("connection should be rejected")
			}
			if resp == nil {
				t.Fatalf("dial error = %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}

	waitFor(t, "records released", func() bool { return env.conns.Count() == 0 })
}

func TestGateway_IdleEvictionClosesWithReason(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, connection.Options{IdleTimeout: time.Minute}, Options{})

	alice, w := env.join(t, "room-1", "alice")
	watcher := env.rooms.Subscribe("room-1")
	defer env.rooms.Unsubscribe(watcher)

	evicted := env.conns.Sweep(time.Now().Add(time.Hour))
	if len(evicted) != 1 || evicted[0].Reason != connection.ReasonIdleTimeout {
		t.Fatalf("Sweep() = %+v", evicted)
	}
	if got := env.conns.Count(); got != 0 {
		t.Errorf("Count() after sweep = %d, want 0", got)
	}

	ce := readClose(t, alice)
	if ce.Code != CloseIdleTimeout || ce.Text != string(connection.ReasonIdleTimeout) {
		t.Errorf("close = %d %q", ce.Code, ce.Text)
	}

	left := nextHubEvent(t, watcher, events.KindMemberLeft)
	if left.Member.ConnectionID != w.ConnectionID || left.Member.Reason != string(connection.ReasonIdleTimeout) {
		t.Errorf("member_left = %+v", left.Member)
	}
}

func TestGateway_ActivityDefersEviction(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, connection.Options{IdleTimeout: time.Minute}, Options{})

	alice, w := env.join(t, "room-1", "alice")
	send(t, alice, command(MessageTypePing, "p1", nil))
	readType(t, alice, MessageTypePong)

	rec, ok := env.conns.Get(connection.ID(w.ConnectionID))
	if !ok {
		t.Fatal("record missing")
	}
	if evicted := env.conns.Sweep(rec.LastActivityAt.Add(30 * time.Second)); len(evicted) != 0 {
		t.Errorf("active connection evicted: %+v", evicted)
	}
}

func TestGateway_DisconnectReleases(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, connection.Options{}, Options{})

	alice, w := env.join(t, "room-1", "alice")
	watcher := env.rooms.Subscribe("room-1")
	defer env.rooms.Unsubscribe(watcher)

	_ = alice.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = alice.Close()

	waitFor(t, "release", func() bool { return env.conns.Count() == 0 })
	left := nextHubEvent(t, watcher, events.KindMemberLeft)
	if left.Member.ConnectionID != w.ConnectionID || left.Member.Reason != string(reasonDisconnected) {
		t.Errorf("member_left = %+v", left.Member)
	}
}

func TestGateway_Kick(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, connection.Options{}, Options{
		Authorize: func(userID, _ string, action Action) bool {
			return userID == "host" && action == ActionKick
		},
	})

	host, _ := env.join(t, "room-1", "host")
	guest, _ := env.join(t, "room-1", "guest")

	send(t, guest, command(MessageTypeKick, "k0", map[string]string{"user_id": "host"}))
	if e := readError(t, guest); e.Code != CodeForbidden {
		t.Errorf("guest kick error = %+v", e)
	}

	send(t, host, command(MessageTypeKick, "k1", map[string]string{"user_id": "guest", "reason": "spam"}))
	readType(t, host, MessageTypeAck)

	kicked := readEvent(t, guest, events.KindGuestKicked)
	if kicked.Kick.UserID != "guest" || kicked.Kick.KickedBy != "host" {
		t.Errorf("guest_kicked = %+v", kicked.Kick)
	}
	ce := readClose(t, guest)
	if ce.Code != CloseKicked {
		t.Errorf("close code = %d, want %d", ce.Code, CloseKicked)
	}

	waitFor(t, "guest released", func() bool { return env.conns.UserCount("guest") == 0 })
	if env.conns.UserCount("host") != 1 {
		t.Error("host should stay connected")
	}
}

func TestGateway_SettingsRequireAuthorization(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, connection.Options{}, Options{
		Authorize: func(userID, _ string, action Action) bool {
			return userID == "host" && action == ActionSettings
		},
	})

	host, _ := env.join(t, "room-1", "host")
	send(t, host, command(MessageTypeSettings, "s1", map[string]interface{}{
		"settings": map[string]string{"chat": "off"},
	}))
	ev := readEvent(t, host, events.KindSettingsChanged)
	if ev.Settings.Settings["chat"] != "off" || ev.Settings.ChangedBy != "host" {
		t.Errorf("settings_changed = %+v", ev.Settings)
	}

	send(t, host, command(MessageTypeSettings, "s2", map[string]interface{}{"settings": map[string]string{}}))
	if e := readError(t, host); e.Code != CodeValidation {
		t.Errorf("empty settings error = %+v", e)
	}
}

func TestGateway_CommandErrors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, connection.Options{}, Options{})
	alice, _ := env.join(t, "room-1", "alice")

	tests := []struct {
		name string
		msg  interface{}
		code string
	}{
		{"unknown type", command("rewind", "e1", nil), CodeUnknownType},
		{"invalid seek", command(MessageTypePlayback, "e2", map[string]interface{}{"op": "seek", "position": -5}), CodeValidation},
		{"playback without data", command(MessageTypePlayback, "e3", nil), CodeBadRequest},
		{"empty chat", command(MessageTypeChat, "e4", map[string]string{"text": ""}), CodeValidation},
		{"kick without authorizer", command(MessageTypeKick, "e5", map[string]string{"user_id": "bob"}), CodeForbidden},
	}

	for _, tt := range tests {
		send(t, alice, tt.msg)
		e := readError(t, alice)
		if e.Code != tt.code {
			t.Errorf("%s: code = %s, want %s", tt.name, e.Code, tt.code)
		}
	}

	if err := alice.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	if e := readError(t, alice); e.Code != CodeBadRequest {
		t.Errorf("malformed: code = %s", e.Code)
	}
}

func TestGateway_RateLimited(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, connection.Options{}, Options{InboundRate: 0.001, InboundBurst: 1})
	alice, _ := env.join(t, "room-1", "alice")

	send(t, alice, command(MessageTypePing, "p1", nil))
	readType(t, alice, MessageTypePong)

	send(t, alice, command(MessageTypePing, "p2", nil))
	e := readError(t, alice)
	if e.Code != CodeRateLimited {
		t.Errorf("code = %s, want %s", e.Code, CodeRateLimited)
	}
}

func TestCloseCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		reason connection.Reason
		want   int
	}{
		{connection.ReasonIdleTimeout, CloseIdleTimeout},
		{connection.ReasonMaxDuration, CloseMaxDuration},
		{connection.ReasonShutdown, websocket.CloseGoingAway},
		{reasonKicked, CloseKicked},
		{reasonResync, CloseResync},
		{reasonDisconnected, websocket.CloseNormalClosure},
	}
	for _, tt := range tests {
		if got := closeCode(tt.reason); got != tt.want {
			t.Errorf("closeCode(%s) = %d, want %d", tt.reason, got, tt.want)
		}
	}
}
