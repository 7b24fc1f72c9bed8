package handlers

import (
	"fmt"
	"strings"
	"time"

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

type GroupsHandler struct {
	Store       *store.Store
	Access      *services.AccessService
	Hub         Broadcaster
	Notifier    Notifier
	FrontendURL string
	InviteTTL   time.Duration
	now         func() time.Time
}

func NewGroupsHandler(s *store.Store, access *services.AccessService, hub Broadcaster, notifier Notifier, frontendURL string, inviteTTL time.Duration) *GroupsHandler {
	return &GroupsHandler{
		Store:       s,
		Access:      access,
		Hub:         hub,
		Notifier:    notifier,
		FrontendURL: strings.TrimRight(frontendURL, "/"),
		InviteTTL:   inviteTTL,
		now:         time.Now,
	}
}

type createGroupRequest struct {
	Name        string `json:"name" validate:"notblank,max=150"`
	Description string `json:"description" validate:"max=2000"`
}

type addMemberRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *addMemberRequest) normalize() { r.Email = normalizeEmail(r.Email) }

func (h *GroupsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createGroupRequest
	if msg := bindBody(c, &req); msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}

	group := &models.Group{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		AdminID:     currentUser.ID,
	}
	if err := h.Store.CreateGroup(c.UserContext(), group); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating group")
	}

	logger.InfoWithUser(currentUser.ID.String(), "group_created", map[string]interface{}{
		"group_id":   group.ID.String(),
		"group_name": group.Name,
	})

	return utils.Success(c, fiber.StatusCreated, group)
}

func (h *GroupsHandler) MyGroups(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groups, err := h.Store.GroupsForUser(c.UserContext(), currentUser.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing groups")
	}
	return utils.Success(c, fiber.StatusOK, groups)
}

func (h *GroupsHandler) Get(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	group, err := h.Access.RequireMember(c.UserContext(), groupID, currentUser.ID)
	if err != nil {
		return groupAccessError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, group)
}

// Delete removes the group's tasks, then its calendar events, then its
// memberships, then the group itself. The steps are independent writes: a
// failure part way leaves the earlier deletions in place. Messages and
// files are left behind.
func (h *GroupsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	ctx := c.UserContext()
	group, err := h.Access.RequireAdmin(ctx, groupID, currentUser.ID)
	if err != nil {
		return groupAccessError(c, err)
	}

	memberIDs := make([]uuid.UUID, 0, len(group.Members))
	for _, m := range group.Members {
		if m.ID != currentUser.ID {
			memberIDs = append(memberIDs, m.ID)
		}
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"tasks", func() error {
			_, err := h.Store.Tasks.DeleteMany(ctx, store.Filter{"group_id": groupID})
			return err
		}},
		{"calendar_events", func() error {
			_, err := h.Store.Events.DeleteMany(ctx, store.Filter{"group_id": groupID})
			return err
		}},
		{"memberships", func() error {
			_, err := h.Store.Members.DeleteMany(ctx, store.Filter{"group_id": groupID})
			return err
		}},
		{"group", func() error {
			return h.Store.Groups.DeleteByID(ctx, groupID)
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			logger.ErrorWithUser(currentUser.ID.String(), "group_delete_incomplete", err, map[string]interface{}{
				"group_id":    groupID.String(),
				"failed_step": step.name,
			})
			return utils.Error(c, fiber.StatusInternalServerError, "failed deleting group")
		}
	}

	h.Hub.Broadcast(realtime.GroupRoom(groupID), realtime.GroupDeleted{GroupID: groupID})

	d := h.Notifier.NotifyUsers(ctx, memberIDs, fmt.Sprintf("The group %q was deleted by its admin.", group.Name), "/dashboard")
	logDelivery(c, "group_delete", d)

	logger.InfoWithUser(currentUser.ID.String(), "group_deleted", map[string]interface{}{
		"group_id":   groupID.String(),
		"group_name": group.Name,
	})

	return utils.Message(c, fiber.StatusOK, "group deleted")
}

func (h *GroupsHandler) AddMember(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	ctx := c.UserContext()
	group, err := h.Access.RequireAdmin(ctx, groupID, currentUser.ID)
	if err != nil {
		return groupAccessError(c, err)
	}

	var req addMemberRequest
	if msg := bindBody(c, &req); msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}

	member, err := h.Store.Users.FindOne(ctx, store.Query{Where: store.Filter{"email": req.Email}})
	if err != nil {
		if store.IsNotFound(err) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed looking up user")
	}
	if group.HasMember(member.ID) {
		return utils.Error(c, fiber.StatusBadRequest, "user is already a member of this group")
	}

	if err := h.Store.AddMember(ctx, groupID, member.ID); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed adding member")
	}

	group, err = h.Store.LoadGroup(ctx, groupID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group")
	}

	h.Hub.Broadcast(realtime.GroupRoom(groupID), realtime.GroupMemberAdded{Group: group, Member: member})
	d := h.Notifier.NotifyUser(ctx, member.ID, fmt.Sprintf("You were added to the group %q.", group.Name), groupLink(groupID))
	logDelivery(c, "group_member_add", d)

	logger.InfoWithUser(currentUser.ID.String(), "group_member_added", map[string]interface{}{
		"group_id":  groupID.String(),
		"member_id": member.ID.String(),
	})

	return utils.Success(c, fiber.StatusOK, group)
}

func (h *GroupsHandler) RemoveMember(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}
	memberID, err := parseUUID(c.Params("memberId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid member id")
	}

	ctx := c.UserContext()
	group, err := h.Access.RequireAdmin(ctx, groupID, currentUser.ID)
	if err != nil {
		return groupAccessError(c, err)
	}
	if group.IsAdmin(memberID) {
		return utils.Error(c, fiber.StatusBadRequest, "the group admin cannot be removed")
	}

	removed, err := h.Store.RemoveMember(ctx, groupID, memberID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed removing member")
	}
	if !removed {
		return utils.Error(c, fiber.StatusNotFound, "member not found")
	}

	group, err = h.Store.LoadGroup(ctx, groupID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group")
	}

	h.Hub.Broadcast(realtime.GroupRoom(groupID), realtime.GroupMemberRemoved{MemberID: memberID, Group: group})
	d := h.Notifier.NotifyUser(ctx, memberID, fmt.Sprintf("You were removed from the group %q.", group.Name), "/dashboard")
	logDelivery(c, "group_member_remove", d)

	logger.InfoWithUser(currentUser.ID.String(), "group_member_removed", map[string]interface{}{
		"group_id":  groupID.String(),
		"member_id": memberID.String(),
	})

	return utils.Success(c, fiber.StatusOK, group)
}

// Invite issues a fresh single-use token, replacing any earlier one.
func (h *GroupsHandler) Invite(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}

	ctx := c.UserContext()
	if _, err := h.Access.RequireAdmin(ctx, groupID, currentUser.ID); err != nil {
		return groupAccessError(c, err)
	}

	token, err := utils.GenerateInviteToken()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating invite token")
	}
	expiresAt := h.now().Add(h.InviteTTL).UTC()

	if err := h.Store.SetInviteToken(ctx, groupID, token, expiresAt); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed saving invite token")
	}

	logger.InfoWithUser(currentUser.ID.String(), "group_invite_created", map[string]interface{}{
		"group_id":   groupID.String(),
		"expires_at": expiresAt,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"token":      token,
		"expiresAt":  expiresAt,
		"inviteLink": h.FrontendURL + "/invite/" + token,
	})
}

// Join redeems an invite token. The membership row is written before the
// token is claimed; if the claim loses (token reissued, expired or taken by a
// concurrent join) the row is removed again, so a failed join never uses up
// the token and a used token always means a member was added.
func (h *GroupsHandler) Join(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	token := strings.TrimSpace(c.Params("token"))
	ctx := c.UserContext()
	now := h.now()

	group, err := h.Store.FindGroupByInviteToken(ctx, token, now)
	if err != nil {
		if store.IsNotFound(err) {
			return utils.Error(c, fiber.StatusNotFound, "invalid or expired invite link")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed looking up invite")
	}

	isMember, err := h.Store.IsMember(ctx, group.ID, currentUser.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed validating membership")
	}
	if isMember {
		return utils.Error(c, fiber.StatusBadRequest, "you are already a member of this group")
	}

	if err := h.Store.AddMember(ctx, group.ID, currentUser.ID); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed adding member")
	}

	claimed, err := h.Store.ClaimInviteToken(ctx, group.ID, token, now)
	if err != nil || !claimed {
		if _, rmErr := h.Store.RemoveMember(ctx, group.ID, currentUser.ID); rmErr != nil {
			logger.ErrorWithUser(currentUser.ID.String(), "invite_join_rollback_failed", rmErr, map[string]interface{}{
				"group_id": group.ID.String(),
			})
		}
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed redeeming invite")
		}
		return utils.Error(c, fiber.StatusNotFound, "invalid or expired invite link")
	}

	group, err = h.Store.LoadGroup(ctx, group.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading group")
	}

	h.Hub.Broadcast(realtime.GroupRoom(group.ID), realtime.GroupMemberAdded{Group: group, Member: currentUser})
	d := h.Notifier.NotifyUser(ctx, currentUser.ID, fmt.Sprintf("You joined the group %q.", group.Name), groupLink(group.ID))
	logDelivery(c, "group_join", d)

	logger.InfoWithUser(currentUser.ID.String(), "group_joined_via_invite", map[string]interface{}{
		"group_id": group.ID.String(),
	})

	return utils.Success(c, fiber.StatusOK, group)
}
