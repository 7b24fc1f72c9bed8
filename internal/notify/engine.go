// Package notify persists notifications and pushes them to recipients'
// private rooms. Fanout is best effort: failures are logged and reported in
// the returned Delivery, never as an error to the caller's mutation.
package notify

import (
	"context"
	"fmt"

	"github.com/chakriappu140/collaborative-study-planner/internal/metrics"
	"github.com/chakriappu140/collaborative-study-planner/internal/models"
	"github.com/chakriappu140/collaborative-study-planner/internal/realtime"
	"github.com/chakriappu140/collaborative-study-planner/internal/store"
	"github.com/chakriappu140/collaborative-study-planner/pkg/logger"
	"github.com/google/uuid"
)

// Broadcaster is the slice of the hub the engine needs.
type Broadcaster interface {
	Broadcast(room string, ev realtime.Event) int
}

// Delivery is the outcome of one fanout, separate from the mutation that
// triggered it.
type Delivery struct {
	Recipients int
	Created    int
	// Pushed counts recipients with at least one live connection.
	Pushed int
	Err    error
}

func (d Delivery) OK() bool { return d.Err == nil }

type Engine struct {
	store *store.Store
	hub   Broadcaster
}

func NewEngine(s *store.Store, hub Broadcaster) *Engine {
	return &Engine{store: s, hub: hub}
}

// NotifyGroup notifies every member of the group except the actor and any
// skipped users, typically those who get a more specific notice instead.
func (e *Engine) NotifyGroup(ctx context.Context, groupID, actorID uuid.UUID, message, link string, skip ...uuid.UUID) Delivery {
	if _, err := e.store.Groups.FindByID(ctx, groupID); err != nil {
		return e.fail(Delivery{}, metrics.StageLoadGroup, fmt.Errorf("load group %s: %w", groupID, err))
	}
	memberIDs, err := e.store.MemberIDs(ctx, groupID)
	if err != nil {
		return e.fail(Delivery{}, metrics.StageLoadGroup, fmt.Errorf("load members of %s: %w", groupID, err))
	}

	excluded := map[uuid.UUID]struct{}{actorID: {}}
	for _, id := range skip {
		excluded[id] = struct{}{}
	}
	audience := make([]uuid.UUID, 0, len(memberIDs))
	for _, id := range memberIDs {
		if _, out := excluded[id]; !out {
			audience = append(audience, id)
		}
	}
	return e.NotifyUsers(ctx, audience, message, link)
}

func (e *Engine) NotifyUser(ctx context.Context, userID uuid.UUID, message, link string) Delivery {
	return e.NotifyUsers(ctx, []uuid.UUID{userID}, message, link)
}

// NotifyUsers writes all records in one batch, then pushes each to its
// recipient's room.
func (e *Engine) NotifyUsers(ctx context.Context, userIDs []uuid.UUID, message, link string) Delivery {
	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	records := make([]models.Notification, 0, len(userIDs))
	for _, id := range userIDs {
		if _, dup := seen[id]; dup || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}
		records = append(records, models.Notification{UserID: id, Message: message, Link: link})
	}

	d := Delivery{Recipients: len(records)}
	if len(records) == 0 {
		return d
	}

	if err := e.store.Notifications.CreateMany(ctx, records); err != nil {
		return e.fail(d, metrics.StagePersist, fmt.Errorf("create notifications: %w", err))
	}
	d.Created = len(records)
	metrics.NotificationsCreated.Add(float64(d.Created))

	for i := range records {
		if e.hub.Broadcast(realtime.UserRoom(records[i].UserID), realtime.NotificationNew{Notification: &records[i]}) > 0 {
			d.Pushed++
		}
	}
	return d
}

func (e *Engine) fail(d Delivery, stage string, err error) Delivery {
	d.Err = err
	metrics.FanoutFailures.WithLabelValues(stage).Inc()
	logger.Error("notification_fanout_failed", err, map[string]interface{}{
		"stage":      stage,
		"recipients": d.Recipients,
	})
	return d
}
