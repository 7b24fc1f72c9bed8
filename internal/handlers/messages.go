package handlers

import (
	"strings"

	"github.com/chakriappu140/collaborative-study-planner/internal/middleware"
	"github.com/chakriappu140/collaborative-study-planner/internal/models"
	"github.com/chakriappu140/collaborative-study-planner/internal/realtime"
	"github.com/chakriappu140/collaborative-study-planner/internal/services"
	"github.com/chakriappu140/collaborative-study-planner/internal/store"
	"github.com/chakriappu140/collaborative-study-planner/pkg/logger"
	"github.com/chakriappu140/collaborative-study-planner/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const maxMessageLimit = 500

type MessagesHandler struct {
	Store    *store.Store
	Access   *services.AccessService
	Hub      Broadcaster
	Notifier Notifier
}

func NewMessagesHandler(s *store.Store, access *services.AccessService, hub Broadcaster, notifier Notifier) *MessagesHandler {
	return &MessagesHandler{Store: s, Access: access, Hub: hub, Notifier: notifier}
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"notblank,max=5000"`
	ReplyTo string `json:"replyTo"`
}

type reactionRequest struct {
	Emoji string `json:"emoji" validate:"notblank,max=32"`
}

func (h *MessagesHandler) Send(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	ctx := c.UserContext()
	group, err := h.Access.RequireMember(ctx, groupID, currentUser.ID)
	if err != nil {
		return groupAccessError(c, err)
	}

	var req sendMessageRequest
	if msg := bindBody(c, &req); msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}

	message := &models.Message{
		GroupID:  groupID,
		SenderID: currentUser.ID,
		Content:  strings.TrimSpace(req.Content),
	}
	if raw := strings.TrimSpace(req.ReplyTo); raw != "" {
		replyID, err := parseUUID(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid replyTo")
		}
		target, err := h.Store.Messages.FindByID(ctx, replyID)
		if err != nil || target.GroupID != groupID {
			if err == nil || store.IsNotFound(err) {
				return utils.Error(c, fiber.StatusBadRequest, "replied message not found in this group")
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed loading replied message")
		}
		message.ReplyToID = &replyID
	}

	if err := h.Store.Messages.Create(ctx, message); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed sending message")
	}
	message, err = h.Store.LoadMessage(ctx, message.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading message")
	}

	h.Hub.Broadcast(realtime.GroupRoom(groupID), realtime.MessageNew{Message: message})
	logDelivery(c, "message_send", h.Notifier.NotifyGroup(ctx, groupID, currentUser.ID,
		"New message from "+currentUser.Name+" in "+group.Name, groupLink(groupID)))

	logger.InfoWithUser(currentUser.ID.String(), "group_message_sent", map[string]interface{}{
		"group_id":   groupID.String(),
		"message_id": message.ID.String(),
	})

	return utils.Success(c, fiber.StatusCreated, message)
}

// List returns the group chat oldest first. ?limit keeps only the newest n.
func (h *MessagesHandler) List(c *fiber.Ctx) error {
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

	messages, err := h.Store.GroupMessages(ctx, groupID, 0)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing messages")
	}
	if limit := min(c.QueryInt("limit", 0), maxMessageLimit); limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return utils.Success(c, fiber.StatusOK, messages)
}

func (h *MessagesHandler) AddReaction(c *fiber.Ctx) error {
	return h.react(c, true)
}

func (h *MessagesHandler) RemoveReaction(c *fiber.Ctx) error {
	return h.react(c, false)
}

func (h *MessagesHandler) react(c *fiber.Ctx, add bool) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}
	messageID, err := parseUUID(c.Params("messageId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid message id")
	}

	ctx := c.UserContext()
	if _, err := h.Access.RequireMember(ctx, groupID, currentUser.ID); err != nil {
		return groupAccessError(c, err)
	}

	target, err := h.Store.Messages.FindByID(ctx, messageID)
	if err != nil || target.GroupID != groupID {
		if err == nil || store.IsNotFound(err) {
			return utils.Error(c, fiber.StatusNotFound, "message not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading message")
	}

	emoji, msg := reactionEmoji(c, add)
	if msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}
	if status, msg := applyReaction(c, h.Store, messageID, models.ReactionOnMessage, currentUser.ID, emoji, add); msg != "" {
		return utils.Error(c, status, msg)
	}

	message, err := h.Store.LoadMessage(ctx, messageID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading message")
	}

	var ev realtime.Event = realtime.MessageReactionAdded{Message: message}
	if !add {
		ev = realtime.MessageReactionRemoved{Message: message}
	}
	h.Hub.Broadcast(realtime.GroupRoom(groupID), ev)

	return utils.Success(c, fiber.StatusOK, message)
}

// reactionEmoji reads the emoji from the JSON body on add and from the
// query string on remove, since DELETE bodies are often dropped by proxies.
func reactionEmoji(c *fiber.Ctx, add bool) (string, string) {
	if !add {
		if emoji := strings.TrimSpace(c.Query("emoji")); emoji != "" {
			return emoji, ""
		}
		if len(c.Body()) == 0 {
			return "", "emoji is required"
		}
	}
	var req reactionRequest
	if msg := bindBody(c, &req); msg != "" {
		return "", msg
	}
	return strings.TrimSpace(req.Emoji), ""
}

func applyReaction(c *fiber.Ctx, s *store.Store, messageID uuid.UUID, kind models.ReactionKind, userID uuid.UUID, emoji string, add bool) (int, string) {
	ctx := c.UserContext()
	if add {
		reaction := &models.Reaction{MessageID: messageID, Kind: kind, UserID: userID, Emoji: emoji}
		if err := s.AddReaction(ctx, reaction); err != nil {
			return fiber.StatusInternalServerError, "failed adding reaction"
		}
		return 0, ""
	}
	removed, err := s.RemoveReaction(ctx, messageID, kind, userID, emoji)
	if err != nil {
		return fiber.StatusInternalServerError, "failed removing reaction"
	}
	if !removed {
		return fiber.StatusNotFound, "reaction not found"
	}
	return 0, ""
}
