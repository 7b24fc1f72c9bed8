package handlers

import (
	"github.com/chakriappu140/collaborative-study-planner/internal/middleware"
	"github.com/chakriappu140/collaborative-study-planner/internal/store"
	"github.com/chakriappu140/collaborative-study-planner/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

type NotificationsHandler struct {
	Store *store.Store
}

func NewNotificationsHandler(s *store.Store) *NotificationsHandler {
	return &NotificationsHandler{Store: s}
}

// List returns the caller's notifications newest first. ?unread=true keeps
// only unread ones.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	limit := c.QueryInt("limit", defaultNotificationLimit)
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	limit = min(limit, maxNotificationLimit)

	where := store.Filter{"user_id": currentUser.ID}
	if c.QueryBool("unread", false) {
		where["is_read"] = false
	}

	notifications, err := h.Store.Notifications.FindMany(c.UserContext(), store.Query{
		Where: where,
		Order: "created_at DESC",
		Limit: limit,
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing notifications")
	}
	return utils.Success(c, fiber.StatusOK, notifications)
}

func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := parseUUID(c.Params("notificationId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid notification id")
	}

	ctx := c.UserContext()
	notification, err := h.Store.Notifications.FindByID(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return utils.Error(c, fiber.StatusNotFound, "notification not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading notification")
	}
	if notification.UserID != currentUser.ID {
		return utils.Error(c, fiber.StatusForbidden, "not authorized to access this notification")
	}

	if notification.IsRead {
		return utils.Success(c, fiber.StatusOK, notification)
	}
	notification, err = h.Store.Notifications.UpdateByID(ctx, id, map[string]interface{}{"is_read": true})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating notification")
	}
	return utils.Success(c, fiber.StatusOK, notification)
}

func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	result := h.Store.DB().WithContext(c.UserContext()).
		Table("notifications").
		Where("user_id = ? AND is_read = ?", currentUser.ID, false).
		Update("is_read", true)
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating notifications")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"updated": result.RowsAffected})
}

func (h *NotificationsHandler) DeleteAll(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	deleted, err := h.Store.Notifications.DeleteMany(c.UserContext(), store.Filter{"user_id": currentUser.ID})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed clearing notifications")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"deleted": deleted})
}
