package handlers

import (
	"fmt"
	"strings"

	"github.com/chakriappu140/collaborative-study-planner/internal/middleware"
	"github.com/chakriappu140/collaborative-study-planner/internal/models"
	"github.com/chakriappu140/collaborative-study-planner/internal/realtime"
	"github.com/chakriappu140/collaborative-study-planner/internal/services"
	"github.com/chakriappu140/collaborative-study-planner/internal/store"
	"github.com/chakriappu140/collaborative-study-planner/pkg/logger"
	"github.com/chakriappu140/collaborative-study-planner/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type CalendarHandler struct {
	Store    *store.Store
	Access   *services.AccessService
	Hub      Broadcaster
	Notifier Notifier
}

func NewCalendarHandler(s *store.Store, access *services.AccessService, hub Broadcaster, notifier Notifier) *CalendarHandler {
	return &CalendarHandler{Store: s, Access: access, Hub: hub, Notifier: notifier}
}

type createEventRequest struct {
	Title       string `json:"title" validate:"notblank,max=255"`
	Description string `json:"description"`
	Start       string `json:"start" validate:"required"`
	End         string `json:"end" validate:"required"`
}

type updateEventRequest struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=255"`
	Description *string `json:"description"`
	Start       *string `json:"start"`
	End         *string `json:"end"`
}

func (h *CalendarHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	ctx := c.UserContext()
	if _, err := h.Access.RequireMember(ctx, groupID, currentUser.ID); err != nil {
		return groupAccessError(c, err)
	}

	var req createEventRequest
	if msg := bindBody(c, &req); msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}

	start, err := parseDate(req.Start)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid start")
	}
	end, err := parseDate(req.End)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid end")
	}
	if end.Before(start) {
		return utils.Error(c, fiber.StatusBadRequest, "end must not be before start")
	}

	event := &models.CalendarEvent{
		GroupID:     groupID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Start:       start,
		End:         end,
	}
	if err := h.Store.Events.Create(ctx, event); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating event")
	}

	h.Hub.Broadcast(realtime.GroupRoom(groupID), realtime.CalendarEventCreated{Event: event})
	logDelivery(c, "event_create", h.Notifier.NotifyGroup(ctx, groupID, currentUser.ID,
		fmt.Sprintf("A new event %q has been scheduled in the group.", event.Title), groupLink(groupID)))

	logger.InfoWithUser(currentUser.ID.String(), "calendar_event_created", map[string]interface{}{
		"group_id": groupID.String(),
		"event_id": event.ID.String(),
	})

	return utils.Success(c, fiber.StatusCreated, event)
}

func (h *CalendarHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	ctx := c.UserContext()
	if _, err := h.Access.RequireMember(ctx, groupID, currentUser.ID); err != nil {
		return groupAccessError(c, err)
	}

	events, err := h.Store.Events.FindMany(ctx, store.Query{
		Where: store.Filter{"group_id": groupID},
		Order: "starts_at ASC",
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing events")
	}
	return utils.Success(c, fiber.StatusOK, events)
}

func (h *CalendarHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}
	eventID, err := parseUUID(c.Params("eventId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	ctx := c.UserContext()
	if _, err := h.Access.RequireMember(ctx, groupID, currentUser.ID); err != nil {
		return groupAccessError(c, err)
	}

	existing, err := h.Store.Events.FindByID(ctx, eventID)
	if err != nil || existing.GroupID != groupID {
		if err == nil || store.IsNotFound(err) {
			return utils.Error(c, fiber.StatusNotFound, "event not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading event")
	}

	var req updateEventRequest
	if msg := bindBody(c, &req); msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	start, end := existing.Start, existing.End
	if req.Start != nil {
		if start, err = parseDate(*req.Start); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid start")
		}
		updates["starts_at"] = start
	}
	if req.End != nil {
		if end, err = parseDate(*req.End); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid end")
		}
		updates["ends_at"] = end
	}
	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}
	if end.Before(start) {
		return utils.Error(c, fiber.StatusBadRequest, "end must not be before start")
	}

	event, err := h.Store.Events.UpdateByID(ctx, eventID, updates)
	if err != nil {
		if store.IsNotFound(err) {
			return utils.Error(c, fiber.StatusNotFound, "event not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating event")
	}

	h.Hub.Broadcast(realtime.GroupRoom(groupID), realtime.CalendarEventUpdated{Event: event})
	logDelivery(c, "event_update", h.Notifier.NotifyGroup(ctx, groupID, currentUser.ID,
		fmt.Sprintf("Event %q has been updated.", event.Title), groupLink(groupID)))

	logger.InfoWithUser(currentUser.ID.String(), "calendar_event_updated", map[string]interface{}{
		"group_id": groupID.String(),
		"event_id": eventID.String(),
	})

	return utils.Success(c, fiber.StatusOK, event)
}

func (h *CalendarHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}
	eventID, err := parseUUID(c.Params("eventId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	ctx := c.UserContext()
	if _, err := h.Access.RequireMember(ctx, groupID, currentUser.ID); err != nil {
		return groupAccessError(c, err)
	}

	event, err := h.Store.Events.FindByID(ctx, eventID)
	if err != nil || event.GroupID != groupID {
		if err == nil || store.IsNotFound(err) {
			return utils.Error(c, fiber.StatusNotFound, "event not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading event")
	}

	if err := h.Store.Events.DeleteByID(ctx, eventID); err != nil {
		if store.IsNotFound(err) {
			return utils.Error(c, fiber.StatusNotFound, "event not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting event")
	}

	h.Hub.Broadcast(realtime.GroupRoom(groupID), realtime.CalendarEventDeleted{EventID: eventID})
	logDelivery(c, "event_delete", h.Notifier.NotifyGroup(ctx, groupID, currentUser.ID,
		fmt.Sprintf("Event %q has been cancelled.", event.Title), groupLink(groupID)))

	logger.InfoWithUser(currentUser.ID.String(), "calendar_event_deleted", map[string]interface{}{
		"group_id": groupID.String(),
		"event_id": eventID.String(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"id": eventID, "message": "event removed"})
}
