package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/chakriappu140/collaborative-study-planner/internal/realtime"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
)

func upgradeHeaders() map[string]string {
	return map[string]string{
		"Connection":            "Upgrade",
		"Upgrade":               "websocket",
		"Sec-WebSocket-Version": "13",
		"Sec-WebSocket-Key":     "dGhlIHNhbXBsZSBub25jZQ==",
	}
}

func startServer(t *testing.T, app *fiber.App) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed listening: %v", err)
	}
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() {
		_ = app.ShutdownWithTimeout(2 * time.Second)
	})
	return ln.Addr().String()
}

func dial(t *testing.T, addr, query string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws"+query, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("websocket dial failed (status %d): %v", status, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("failed encoding %s payload: %v", event, err)
	}
	if err := conn.WriteJSON(realtime.Envelope{Event: event, Data: raw}); err != nil {
		t.Fatalf("failed writing %s: %v", event, err)
	}
}

// readUntil returns the first frame named event, skipping others.
func readUntil(t *testing.T, conn *websocket.Conn, event string) realtime.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var env realtime.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("failed reading while waiting for %s: %v", event, err)
		}
		if env.Event == event {
			return env
		}
	}
}

func TestRealtimeHandshake(t *testing.T) {
	env := setupTestEnv(t)
	_, token := createTestUser(t, env.store, "Socket", "ws-handshake@test.com")
	other, _ := createTestUser(t, env.store, "Other", "ws-other@test.com")

	t.Run("plain GET requires upgrade", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/ws", nil, nil)
		assertStatus(t, resp, http.StatusUpgradeRequired)
	})

	testCases := []struct {
		name            string
		query           string
		expectedMessage string
	}{
		{"invalid token", "?token=garbage", "not authorized, token failed"},
		{"user id must match token", "?token=" + token + "&userId=" + other.ID.String(), "userId does not match token"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := performRequest(t, env.app, http.MethodGet, "/ws"+tc.query, nil, upgradeHeaders())
			body := decodeJSONMap(t, resp)
			assertStatus(t, resp, http.StatusUnauthorized)
			assertEnvelopeError(t, body, tc.expectedMessage)
		})
	}
}

func TestRealtimeEndToEnd(t *testing.T) {
	env := setupTestEnv(t)
	admin, adminToken := createTestUser(t, env.store, "Admin", "ws-admin@test.com")
	member, memberToken := createTestUser(t, env.store, "Member", "ws-member@test.com")
	_, outsiderToken := createTestUser(t, env.store, "Outsider", "ws-outsider@test.com")
	group := createTestGroup(t, env.store, "Geometry", admin, member)
	groupRoom := realtime.GroupRoom(group.ID)

	addr := startServer(t, env.app)

	memberConn := dial(t, addr, "?token="+memberToken)
	waitFor(t, "member private room", func() bool { return env.hub.Members(realtime.UserRoom(member.ID)) == 1 })

	sendEvent(t, memberConn, realtime.ClientJoinGroup, group.ID.String())
	waitFor(t, "member to join the group room", func() bool { return env.hub.Members(groupRoom) == 1 })

	t.Run("mutation reaches the group room and the private room", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/groups/"+group.ID.String()+"/tasks", map[string]any{
			"title": "Prove Pythagoras",
		}, authHeaders(adminToken))
		assertStatus(t, resp, http.StatusCreated)

		frame := readUntil(t, memberConn, realtime.EventTaskCreated)
		var task struct {
			Title string `json:"title"`
		}
		if err := json.Unmarshal(frame.Data, &task); err != nil {
			t.Fatalf("failed decoding task payload: %v", err)
		}
		if task.Title != "Prove Pythagoras" {
			t.Fatalf("expected created task, got %q", task.Title)
		}

		note := readUntil(t, memberConn, realtime.EventNotificationNew)
		var notification struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(note.Data, &notification)
		if notification.Message != `A new task "Prove Pythagoras" has been created in the group.` {
			t.Fatalf("unexpected notification %q", notification.Message)
		}
	})

	t.Run("non-member join is refused", func(t *testing.T) {
		outsiderConn := dial(t, addr, "?token="+outsiderToken)
		sendEvent(t, outsiderConn, realtime.ClientJoinGroup, group.ID.String())

		readUntil(t, outsiderConn, realtime.EventError)
		if env.hub.Members(groupRoom) != 1 {
			t.Fatalf("outsider must not enter the group room")
		}
	})

	t.Run("unverified user id connects anonymously", func(t *testing.T) {
		anonConn := dial(t, addr, "?userId="+admin.ID.String())
		sendEvent(t, anonConn, realtime.ClientJoinGroup, group.ID.String())
		waitFor(t, "anonymous socket to join the group room", func() bool { return env.hub.Members(groupRoom) == 2 })

		if n := env.hub.Members(realtime.UserRoom(admin.ID)); n != 0 {
			t.Fatalf("anonymous socket must not enter the private room, got %d", n)
		}

		_ = anonConn.Close()
		waitFor(t, "anonymous socket to leave the group room", func() bool { return env.hub.Members(groupRoom) == 1 })
	})

	t.Run("whiteboard strokes skip the sender", func(t *testing.T) {
		adminConn := dial(t, addr, "?token="+adminToken)
		sendEvent(t, adminConn, realtime.ClientJoinGroup, map[string]string{"groupId": group.ID.String()})
		waitFor(t, "admin to join the group room", func() bool { return env.hub.Members(groupRoom) == 2 })

		sendEvent(t, adminConn, realtime.EventDrawing, realtime.Stroke{GroupID: group.ID.String(), X0: 1, Y0: 2, X1: 3, Y1: 4, Color: "#000"})

		frame := readUntil(t, memberConn, realtime.EventDrawing)
		var stroke realtime.Stroke
		if err := json.Unmarshal(frame.Data, &stroke); err != nil {
			t.Fatalf("failed decoding stroke: %v", err)
		}
		if stroke.X1 != 3 || stroke.Color != "#000" {
			t.Fatalf("unexpected stroke %+v", stroke)
		}

		_ = adminConn.Close()
		inactive := readUntil(t, memberConn, realtime.EventDrawingInactive)
		var payload struct {
			GroupID  string `json:"groupId"`
			SocketID string `json:"socketId"`
		}
		_ = json.Unmarshal(inactive.Data, &payload)
		if payload.GroupID != group.ID.String() || payload.SocketID == "" {
			t.Fatalf("expected cursor clear for the departed socket, got %+v", payload)
		}
		waitFor(t, "admin to leave the group room", func() bool { return env.hub.Members(groupRoom) == 1 })
	})
}
