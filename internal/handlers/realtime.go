package handlers

import (
	"context"
	"strings"

	"github.com/chakriappu140/collaborative-study-planner/internal/middleware"
	"github.com/chakriappu140/collaborative-study-planner/internal/realtime"
	"github.com/chakriappu140/collaborative-study-planner/pkg/logger"
	"github.com/chakriappu140/collaborative-study-planner/pkg/utils"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const identityLocal = "realtimeIdentity"

// RealtimeHandler upgrades /ws requests and hands the socket to the
// connection manager. ctx bounds every connection's lifetime.
type RealtimeHandler struct {
	ctx            context.Context
	Manager        *realtime.Manager
	Auth           *middleware.AuthMiddleware
	AllowLegacyUID bool
}

func NewRealtimeHandler(ctx context.Context, manager *realtime.Manager, auth *middleware.AuthMiddleware, allowLegacyUID bool) *RealtimeHandler {
	return &RealtimeHandler{ctx: ctx, Manager: manager, Auth: auth, AllowLegacyUID: allowLegacyUID}
}

// Upgrade authenticates the handshake. A `token` query parameter carries the
// JWT; a bare `userId` is only honoured when legacy mode is on and is
// otherwise ignored. An anonymous socket gets no private room but can still
// join group rooms.
func (h *RealtimeHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return utils.Error(c, fiber.StatusUpgradeRequired, "websocket upgrade required")
	}

	token := strings.TrimSpace(c.Query("token"))
	legacyID := strings.TrimSpace(c.Query("userId"))

	switch {
	case token != "":
		user, err := h.Auth.UserFromToken(c.UserContext(), token)
		if err != nil {
			logger.Warn("realtime_handshake_rejected", map[string]interface{}{
				"reason": "invalid_token",
				"ip":     c.IP(),
			})
			return utils.Error(c, fiber.StatusUnauthorized, "not authorized, token failed")
		}
		if legacyID != "" && legacyID != user.ID.String() {
			logger.WarnWithUser(user.ID.String(), "realtime_handshake_rejected", map[string]interface{}{
				"reason":  "user_id_mismatch",
				"user_id": legacyID,
			})
			return utils.Error(c, fiber.StatusUnauthorized, "userId does not match token")
		}
		c.Locals(identityLocal, &realtime.Identity{UserID: user.ID, Name: user.Name})
	case legacyID != "":
		if !h.AllowLegacyUID {
			// Unverified ids are ignored; the socket stays anonymous.
			logger.Warn("realtime_legacy_user_id_ignored", map[string]interface{}{
				"user_id": legacyID,
				"ip":      c.IP(),
			})
			break
		}
		identity, err := h.legacyIdentity(c, legacyID)
		if err != nil {
			return utils.Error(c, fiber.StatusUnauthorized, "user not found")
		}
		c.Locals(identityLocal, identity)
	}

	return c.Next()
}

func (h *RealtimeHandler) legacyIdentity(c *fiber.Ctx, raw string) (*realtime.Identity, error) {
	id, err := parseUUID(raw)
	if err != nil {
		return nil, err
	}
	user, err := h.Auth.Store.Users.FindByID(c.UserContext(), id)
	if err != nil {
		return nil, err
	}
	return &realtime.Identity{UserID: user.ID, Name: user.Name}, nil
}

// Handle serves an upgraded connection until it closes.
func (h *RealtimeHandler) Handle() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		identity, _ := conn.Locals(identityLocal).(*realtime.Identity)
		h.Manager.Serve(h.ctx, conn, identity)
	})
}
