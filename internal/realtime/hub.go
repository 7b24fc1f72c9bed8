// Package realtime is the room-addressed push layer: a directory of which
// connection sits in which room, the per-connection lifecycle, and the
// closed set of events pushed over it.
package realtime

import (
	"sync"

	"github.com/chakriappu140/collaborative-study-planner/internal/metrics"
	"github.com/chakriappu140/collaborative-study-planner/pkg/logger"
	"github.com/google/uuid"
)

// Conn is one live client connection as seen by the hub.
type Conn interface {
	ID() string
	// Send queues a frame and reports false if the connection cannot take it.
	Send(frame []byte) bool
}

// GroupRoom and UserRoom keep the two room kinds in separate namespaces, so
// a joinGroup request can never name someone's private room.
func GroupRoom(groupID uuid.UUID) string { return "group:" + groupID.String() }
func UserRoom(userID uuid.UUID) string   { return "user:" + userID.String() }

// Hub owns room membership. Join, Leave and Remove are its only mutators.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Conn
	conns map[string]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[string]Conn),
		conns: make(map[string]map[string]struct{}),
	}
}

func (h *Hub) Join(c Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]Conn)
		h.rooms[room] = members
	}
	members[c.ID()] = c

	joined, ok := h.conns[c.ID()]
	if !ok {
		joined = make(map[string]struct{})
		h.conns[c.ID()] = joined
	}
	joined[room] = struct{}{}
}

func (h *Hub) Leave(c Conn, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c.ID(), room)
}

// Remove drops every membership of connID and returns the rooms it was in.
func (h *Hub) Remove(connID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	joined := h.conns[connID]
	rooms := make([]string, 0, len(joined))
	for room := range joined {
		rooms = append(rooms, room)
	}
	for _, room := range rooms {
		h.leaveLocked(connID, room)
	}
	delete(h.conns, connID)
	return rooms
}

func (h *Hub) leaveLocked(connID, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if joined, ok := h.conns[connID]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(h.conns, connID)
		}
	}
}

func (h *Hub) InRoom(connID, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][connID]
	return ok
}

// Rooms lists the rooms connID is currently in.
func (h *Hub) Rooms(connID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.conns[connID]))
	for room := range h.conns[connID] {
		out = append(out, room)
	}
	return out
}

// Members returns the number of connections in room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast delivers ev to every connection in room and returns how many
// accepted it.
func (h *Hub) Broadcast(room string, ev Event) int {
	return h.BroadcastExcept(room, "", ev)
}

// BroadcastExcept is Broadcast without the connection named by skip.
func (h *Hub) BroadcastExcept(room, skip string, ev Event) int {
	frame, err := Encode(ev)
	if err != nil {
		logger.Error("realtime_encode_failed", err, map[string]interface{}{
			"event": ev.EventName(),
			"room":  room,
		})
		return 0
	}

	h.mu.RLock()
	targets := make([]Conn, 0, len(h.rooms[room]))
	for id, c := range h.rooms[room] {
		if id != skip {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	metrics.Broadcasts.WithLabelValues(ev.EventName()).Inc()

	delivered := 0
	for _, c := range targets {
		if c.Send(frame) {
			delivered++
		}
	}
	return delivered
}

// SendTo pushes ev to a single connection.
func (h *Hub) SendTo(c Conn, ev Event) bool {
	frame, err := Encode(ev)
	if err != nil {
		logger.Error("realtime_encode_failed", err, map[string]interface{}{"event": ev.EventName()})
		return false
	}
	return c.Send(frame)
}
