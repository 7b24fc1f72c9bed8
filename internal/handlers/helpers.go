package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chakriappu140/collaborative-study-planner/internal/notify"
	"github.com/chakriappu140/collaborative-study-planner/internal/realtime"
	"github.com/chakriappu140/collaborative-study-planner/internal/services"
	"github.com/chakriappu140/collaborative-study-planner/pkg/logger"
	"github.com/chakriappu140/collaborative-study-planner/pkg/utils"
	"github.com/chakriappu140/collaborative-study-planner/pkg/validation"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Broadcaster pushes an event to every connection in a room.
type Broadcaster interface {
	Broadcast(room string, ev realtime.Event) int
}

// Notifier is the best-effort fanout step that follows a committed mutation.
type Notifier interface {
	NotifyGroup(ctx context.Context, groupID, actorID uuid.UUID, message, link string, skip ...uuid.UUID) notify.Delivery
	NotifyUser(ctx context.Context, userID uuid.UUID, message, link string) notify.Delivery
	NotifyUsers(ctx context.Context, userIDs []uuid.UUID, message, link string) notify.Delivery
}

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// normalizer is implemented by request types that clean up their input
// before validation runs.
type normalizer interface {
	normalize()
}

// bindBody parses, normalizes and validates the body, returning a
// client-facing message on failure.
func bindBody(c *fiber.Ctx, dst interface{}) string {
	if err := c.BodyParser(dst); err != nil {
		return "invalid request body"
	}
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}
	if err := validation.Struct(dst); err != nil {
		return err.Error()
	}
	return ""
}

// groupAccessError turns an AccessService failure into a response.
func groupAccessError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrGroupNotFound):
		return utils.Error(c, fiber.StatusNotFound, "group not found")
	case errors.Is(err, services.ErrNotMember):
		return utils.Error(c, fiber.StatusForbidden, "not a member of this group")
	case errors.Is(err, services.ErrNotAdmin):
		return utils.Error(c, fiber.StatusForbidden, "only the group admin can do this")
	default:
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating membership")
	}
}

func groupLink(groupID uuid.UUID) string {
	return "/groups/" + groupID.String()
}

// logDelivery records a fanout outcome next to the mutation that caused it.
// The engine already logged any failure; this ties it to the request.
func logDelivery(c *fiber.Ctx, action string, d notify.Delivery) {
	if d.OK() {
		return
	}
	details := map[string]interface{}{
		"action":     action,
		"recipients": d.Recipients,
		"created":    d.Created,
	}
	if id := logger.GetUserIDFromContext(c); id != nil {
		logger.WarnWithUser(*id, "mutation_fanout_incomplete", details)
		return
	}
	logger.Warn("mutation_fanout_incomplete", details)
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

// parseDate accepts full timestamps as well as the bare dates and
// datetime-local values browsers send.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", value)
}
