package handlers

import (
	"strings"

	"github.com/chakriappu140/collaborative-study-planner/internal/middleware"
	"github.com/chakriappu140/collaborative-study-planner/internal/models"
	"github.com/chakriappu140/collaborative-study-planner/internal/realtime"
	"github.com/chakriappu140/collaborative-study-planner/internal/store"
	"github.com/chakriappu140/collaborative-study-planner/pkg/logger"
	"github.com/chakriappu140/collaborative-study-planner/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// DirectMessagesHandler serves one-to-one chat. Events go to the private
// user rooms of the participants rather than to a group room.
type DirectMessagesHandler struct {
	Store    *store.Store
	Hub      Broadcaster
	Notifier Notifier
}

func NewDirectMessagesHandler(s *store.Store, hub Broadcaster, notifier Notifier) *DirectMessagesHandler {
	return &DirectMessagesHandler{Store: s, Hub: hub, Notifier: notifier}
}

type sendDirectMessageRequest struct {
	RecipientID string `json:"recipientId" validate:"required,uuid"`
	Content     string `json:"content" validate:"notblank,max=5000"`
	ReplyTo     string `json:"replyTo"`
}

func (h *DirectMessagesHandler) Send(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req sendDirectMessageRequest
	if msg := bindBody(c, &req); msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}

	recipientID, err := parseUUID(req.RecipientID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid recipientId")
	}
	if recipientID == currentUser.ID {
		return utils.Error(c, fiber.StatusBadRequest, "cannot send a message to yourself")
	}

	ctx := c.UserContext()
	if _, err := h.Store.Users.FindByID(ctx, recipientID); err != nil {
		if store.IsNotFound(err) {
			return utils.Error(c, fiber.StatusNotFound, "recipient not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading recipient")
	}

	message := &models.DirectMessage{
		SenderID:    currentUser.ID,
		RecipientID: recipientID,
		Content:     strings.TrimSpace(req.Content),
	}
	if raw := strings.TrimSpace(req.ReplyTo); raw != "" {
		replyID, err := parseUUID(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid replyTo")
		}
		target, err := h.Store.DirectMessages.FindByID(ctx, replyID)
		if err != nil || !target.Involves(currentUser.ID) || !target.Involves(recipientID) {
			if err == nil || store.IsNotFound(err) {
				return utils.Error(c, fiber.StatusBadRequest, "replied message not found in this conversation")
			}
			return utils.Error(c, fiber.StatusInternalServerError, "failed loading replied message")
		}
		message.ReplyToID = &replyID
	}

	if err := h.Store.DirectMessages.Create(ctx, message); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed sending message")
	}
	message, err = h.Store.LoadDirectMessage(ctx, message.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading message")
	}

	h.Hub.Broadcast(realtime.UserRoom(recipientID), realtime.DirectMessageNew{Message: message})
	logDelivery(c, "direct_message_send", h.Notifier.NotifyUser(ctx, recipientID,
		"New message from "+currentUser.Name, "/messages/"+currentUser.ID.String()))

	logger.InfoWithUser(currentUser.ID.String(), "direct_message_sent", map[string]interface{}{
		"recipient_id": recipientID.String(),
		"message_id":   message.ID.String(),
	})

	return utils.Success(c, fiber.StatusCreated, message)
}

// Conversation lists both directions between the caller and :recipientId,
// oldest first.
func (h *DirectMessagesHandler) Conversation(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	otherID, err := parseUUID(c.Params("recipientId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	messages, err := h.Store.Conversation(c.UserContext(), currentUser.ID, otherID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading conversation")
	}
	return utils.Success(c, fiber.StatusOK, messages)
}

// MarkRead flags everything :senderId sent the caller as read. The sender is
// told even when nothing changed so their view settles.
func (h *DirectMessagesHandler) MarkRead(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	senderID, err := parseUUID(c.Params("senderId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid sender id")
	}

	updated, err := h.Store.MarkConversationRead(c.UserContext(), senderID, currentUser.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed marking messages read")
	}

	h.Hub.Broadcast(realtime.UserRoom(senderID), realtime.DirectMessageRead{ReaderID: currentUser.ID})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"updated": updated})
}

func (h *DirectMessagesHandler) UnreadCounts(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	counts, err := h.Store.UnreadCounts(c.UserContext(), currentUser.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting unread messages")
	}

	bySender := make(map[string]int64, len(counts))
	var total int64
	for sender, n := range counts {
		bySender[sender.String()] = n
		total += n
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"total": total, "bySender": bySender})
}

func (h *DirectMessagesHandler) AddReaction(c *fiber.Ctx) error {
	return h.react(c, true)
}

func (h *DirectMessagesHandler) RemoveReaction(c *fiber.Ctx) error {
	return h.react(c, false)
}

func (h *DirectMessagesHandler) react(c *fiber.Ctx, add bool) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	messageID, err := parseUUID(c.Params("messageId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid message id")
	}

	ctx := c.UserContext()
	target, err := h.Store.DirectMessages.FindByID(ctx, messageID)
	if err != nil {
		if store.IsNotFound(err) {
			return utils.Error(c, fiber.StatusNotFound, "message not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading message")
	}
	if !target.Involves(currentUser.ID) {
		return utils.Error(c, fiber.StatusForbidden, "not a participant in this conversation")
	}

	emoji, msg := reactionEmoji(c, add)
	if msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}
	if status, msg := applyReaction(c, h.Store, messageID, models.ReactionOnDirectMessage, currentUser.ID, emoji, add); msg != "" {
		return utils.Error(c, status, msg)
	}

	message, err := h.Store.LoadDirectMessage(ctx, messageID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading message")
	}

	var ev realtime.Event = realtime.DirectMessageReactionAdded{Message: message}
	if !add {
		ev = realtime.DirectMessageReactionRemoved{Message: message}
	}
	h.Hub.Broadcast(realtime.UserRoom(message.SenderID), ev)
	h.Hub.Broadcast(realtime.UserRoom(message.RecipientID), ev)

	return utils.Success(c, fiber.StatusOK, message)
}
