package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/chakriappu140/collaborative-study-planner/internal/metrics"
	"github.com/chakriappu140/collaborative-study-planner/pkg/logger"
	"github.com/google/uuid"
)

// MembershipChecker decides whether an authenticated user may enter a
// group room.
type MembershipChecker interface {
	IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error)
}

type Options struct {
	SendBuffer   int
	DrawingRate  float64
	DrawingBurst int
	WriteTimeout time.Duration
}

// Manager runs the lifecycle of each connection against a shared Hub.
type Manager struct {
	hub     *Hub
	members MembershipChecker
	opts    Options
}

func NewManager(hub *Hub, members MembershipChecker, opts Options) *Manager {
	return &Manager{hub: hub, members: members, opts: opts}
}

func (m *Manager) Hub() *Hub { return m.hub }

// Serve blocks until the socket fails or ctx is cancelled. Authenticated
// connections start in their user's private room; anonymous ones only
// ever see group rooms.
func (m *Manager) Serve(ctx context.Context, socket Socket, identity *Identity) {
	client := newClient(socket, identity, m.opts)

	metrics.Connections.Inc()
	defer metrics.Connections.Dec()

	details := map[string]interface{}{"conn_id": client.id}
	if identity != nil {
		m.hub.Join(client, UserRoom(identity.UserID))
		logger.InfoWithUser(identity.UserID.String(), "realtime_connected", details)
	} else {
		logger.Info("realtime_connected", details)
	}

	go client.writePump()
	go func() {
		select {
		case <-ctx.Done():
			client.close()
		case <-client.done:
		}
	}()
	defer m.disconnect(client)

	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			return
		}
		m.dispatch(ctx, client, data)
	}
}

func (m *Manager) disconnect(c *Client) {
	rooms := m.hub.Remove(c.id)
	for _, room := range rooms {
		if groupID, ok := strings.CutPrefix(room, "group:"); ok {
			m.hub.Broadcast(room, DrawingInactive{GroupID: groupID, SocketID: c.id})
		}
	}
	c.close()
	logger.Info("realtime_disconnected", map[string]interface{}{
		"conn_id": c.id,
		"rooms":   len(rooms),
	})
}

func (m *Manager) dispatch(ctx context.Context, c *Client, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
		m.hub.SendTo(c, ErrorEvent{Message: "malformed frame"})
		return
	}

	switch env.Event {
	case ClientJoinGroup:
		m.joinGroup(ctx, c, env.Data)
	case ClientLeaveGroup:
		groupID, err := parseGroupID(env.Data)
		if err != nil {
			m.hub.SendTo(c, ErrorEvent{Message: err.Error()})
			return
		}
		m.hub.Leave(c, GroupRoom(groupID))
		logger.Info("realtime_room_left", map[string]interface{}{"conn_id": c.id, "group_id": groupID.String()})
	case EventDrawing, EventDrawingActive, EventDrawingInactive:
		m.relayDrawing(c, env)
	default:
		m.hub.SendTo(c, ErrorEvent{Message: "unknown event " + env.Event})
	}
}

func (m *Manager) joinGroup(ctx context.Context, c *Client, data json.RawMessage) {
	groupID, err := parseGroupID(data)
	if err != nil {
		m.hub.SendTo(c, ErrorEvent{Message: err.Error()})
		return
	}

	details := map[string]interface{}{"conn_id": c.id, "group_id": groupID.String()}
	if c.identity != nil && m.members != nil {
		ok, err := m.members.IsMember(ctx, groupID, c.identity.UserID)
		if err != nil {
			logger.Error("realtime_membership_check_failed", err, details)
			m.hub.SendTo(c, ErrorEvent{Message: "could not join group"})
			return
		}
		if !ok {
			logger.WarnWithUser(c.identity.UserID.String(), "realtime_join_denied", details)
			m.hub.SendTo(c, ErrorEvent{Message: "not a member of this group"})
			return
		}
	}

	m.hub.Join(c, GroupRoom(groupID))
	logger.Info("realtime_room_joined", details)
}

// relayDrawing forwards whiteboard traffic to peers in a room the sender
// has joined. Over-rate and malformed frames are dropped silently.
func (m *Manager) relayDrawing(c *Client, env Envelope) {
	if !c.allowDrawing() {
		return
	}

	var ev Event
	var rawGroupID string
	switch env.Event {
	case EventDrawing:
		var stroke Stroke
		if json.Unmarshal(env.Data, &stroke) != nil {
			return
		}
		rawGroupID = stroke.GroupID
		ev = Drawing{Stroke: stroke}
	case EventDrawingActive:
		var cursor Cursor
		if json.Unmarshal(env.Data, &cursor) != nil {
			return
		}
		cursor.SocketID = c.id
		if cursor.UserName == "" && c.identity != nil {
			cursor.UserName = c.identity.Name
		}
		rawGroupID = cursor.GroupID
		ev = DrawingActive{Cursor: cursor}
	case EventDrawingInactive:
		var body struct {
			GroupID string `json:"groupId"`
		}
		if json.Unmarshal(env.Data, &body) != nil {
			return
		}
		rawGroupID = body.GroupID
		ev = DrawingInactive{GroupID: body.GroupID, SocketID: c.id}
	}

	groupID, err := uuid.Parse(rawGroupID)
	if err != nil {
		return
	}
	room := GroupRoom(groupID)
	if !m.hub.InRoom(c.id, room) {
		return
	}
	m.hub.BroadcastExcept(room, c.id, ev)
}

var errInvalidGroupID = errors.New("invalid group id")

// parseGroupID accepts either a bare id string or {"groupId": "..."}.
func parseGroupID(data json.RawMessage) (uuid.UUID, error) {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		var body struct {
			GroupID string `json:"groupId"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return uuid.Nil, errInvalidGroupID
		}
		raw = body.GroupID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errInvalidGroupID
	}
	return id, nil
}
