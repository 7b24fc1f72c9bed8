package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/chakriappu140/collaborative-study-planner/internal/models"
	"github.com/chakriappu140/collaborative-study-planner/internal/store"
	"github.com/chakriappu140/collaborative-study-planner/pkg/logger"
	"github.com/chakriappu140/collaborative-study-planner/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

const currentUserKey = "currentUser"

var ErrUnknownUser = errors.New("user not found")

type AuthMiddleware struct {
	Store *store.Store
}

func NewAuthMiddleware(s *store.Store) *AuthMiddleware {
	return &AuthMiddleware{Store: s}
}

// CORS admits the configured frontend origin only.
func CORS(frontendURL string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: frontendURL,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	})
}

// UserFromToken validates a bearer token and loads its user. The realtime
// handshake shares it with RequireAuth.
func (a *AuthMiddleware) UserFromToken(ctx context.Context, token string) (*models.User, error) {
	claims, err := utils.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	user, err := a.Store.Users.FindByID(ctx, claims.UserID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrUnknownUser
		}
		return nil, err
	}
	return user, nil
}

func (a *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		logger.Warn("jwt_missing_header", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "not authorized, no token")
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	if tokenString == authHeader || tokenString == "" {
		logger.Warn("jwt_invalid_format", map[string]interface{}{
			"ip":          c.IP(),
			"path":        c.Path(),
			"auth_header": authHeader[:min(len(authHeader), 20)] + "...",
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid authorization format")
	}

	user, err := a.UserFromToken(c.UserContext(), tokenString)
	if err != nil {
		logger.Warn("jwt_validation_failed", map[string]interface{}{
			"ip":    c.IP(),
			"path":  c.Path(),
			"error": err.Error(),
		})
		if errors.Is(err, ErrUnknownUser) {
			return utils.Error(c, fiber.StatusUnauthorized, "user not found")
		}
		return utils.Error(c, fiber.StatusUnauthorized, "not authorized, token failed")
	}

	c.Locals(currentUserKey, user)
	c.Locals("userID", user.ID.String())
	return c.Next()
}

func GetCurrentUser(c *fiber.Ctx) *models.User {
	value := c.Locals(currentUserKey)
	if value == nil {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}
