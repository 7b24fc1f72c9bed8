package handlers

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/chakriappu140/collaborative-study-planner/internal/middleware"
	"github.com/chakriappu140/collaborative-study-planner/internal/models"
	"github.com/chakriappu140/collaborative-study-planner/internal/storage"
	"github.com/chakriappu140/collaborative-study-planner/internal/store"
	"github.com/chakriappu140/collaborative-study-planner/pkg/logger"
	"github.com/chakriappu140/collaborative-study-planner/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type UsersHandler struct {
	Store   *store.Store
	Storage storage.ObjectStorage
}

func NewUsersHandler(s *store.Store, objects storage.ObjectStorage) *UsersHandler {
	return &UsersHandler{Store: s, Storage: objects}
}

type registerRequest struct {
	Name     string `json:"name" validate:"notblank,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type updateProfileRequest struct {
	Name     string `json:"name" form:"name" validate:"omitempty,max=100"`
	Email    string `json:"email" form:"email" validate:"omitempty,email"`
	Password string `json:"password" form:"password" validate:"omitempty,min=6"`
}

func authResponse(user *models.User, token string) fiber.Map {
	return fiber.Map{
		"id":     user.ID,
		"name":   user.Name,
		"email":  user.Email,
		"avatar": user.AvatarURL,
		"token":  token,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *registerRequest) normalize()      { r.Email = normalizeEmail(r.Email) }
func (r *loginRequest) normalize()         { r.Email = normalizeEmail(r.Email) }
func (r *updateProfileRequest) normalize() { r.Email = normalizeEmail(r.Email) }

func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if msg := bindBody(c, &req); msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}

	email := req.Email
	ctx := c.UserContext()
	if _, err := h.Store.Users.FindOne(ctx, store.Query{Where: store.Filter{"email": email}}); err == nil {
		return utils.Error(c, fiber.StatusBadRequest, "user already exists")
	} else if !store.IsNotFound(err) {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking existing user")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed hashing password")
	}

	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
		AvatarURL:    models.DefaultAvatarURL,
	}
	if err := h.Store.Users.Create(ctx, user); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating user")
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	logger.InfoWithUser(user.ID.String(), "user_registered", map[string]interface{}{"email": user.Email})
	return utils.Success(c, fiber.StatusCreated, authResponse(user, token))
}

func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if msg := bindBody(c, &req); msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}

	user, err := h.Store.Users.FindOne(c.UserContext(), store.Query{Where: store.Filter{"email": req.Email}})
	if err != nil || !utils.CheckPassword(user.PasswordHash, req.Password) {
		logger.Warn("login_failed", map[string]interface{}{"email": req.Email, "ip": c.IP()})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid email or password")
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	logger.InfoWithUser(user.ID.String(), "user_login", nil)
	return utils.Success(c, fiber.StatusOK, authResponse(user, token))
}

// List is the directory used to pick a direct message recipient.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	users, err := h.Store.Users.FindMany(c.UserContext(), store.Query{
		Scopes: []func(*gorm.DB) *gorm.DB{func(tx *gorm.DB) *gorm.DB {
			return tx.Where("id <> ?", currentUser.ID)
		}},
		Order: "name ASC",
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing users")
	}

	out := make([]models.UserSummary, len(users))
	for i, u := range users {
		out[i] = u.Summary()
	}
	return utils.Success(c, fiber.StatusOK, out)
}

func (h *UsersHandler) Profile(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, currentUser)
}

// UpdateProfile accepts JSON or multipart; a multipart "avatar" part
// replaces the profile picture.
func (h *UsersHandler) UpdateProfile(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateProfileRequest
	if msg := bindBody(c, &req); msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}

	ctx := c.UserContext()
	updates := map[string]interface{}{}

	if name := strings.TrimSpace(req.Name); name != "" {
		updates["name"] = name
	}
	if email := req.Email; email != "" && email != currentUser.Email {
		if _, err := h.Store.Users.FindOne(ctx, store.Query{Where: store.Filter{"email": email}}); err == nil {
			return utils.Error(c, fiber.StatusBadRequest, "email already in use")
		} else if !store.IsNotFound(err) {
			return utils.Error(c, fiber.StatusInternalServerError, "failed checking email")
		}
		updates["email"] = email
	}
	if req.Password != "" {
		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed hashing password")
		}
		updates["password_hash"] = hash
	}

	if fileHeader, err := c.FormFile("avatar"); err == nil {
		if h.Storage == nil {
			return utils.Error(c, fiber.StatusServiceUnavailable, "file storage is not configured")
		}
		contentType := fileHeader.Header.Get("Content-Type")
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(fileHeader.Filename))
		}
		if !strings.HasPrefix(contentType, "image/") {
			return utils.Error(c, fiber.StatusBadRequest, "avatar must be an image")
		}

		stream, err := fileHeader.Open()
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed opening uploaded file")
		}
		defer stream.Close()

		key := storage.ObjectKey("avatars/"+currentUser.ID.String(), fileHeader.Filename)
		if err := h.Storage.Upload(ctx, key, stream, fileHeader.Size, contentType); err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed uploading avatar")
		}
		updates["avatar_url"] = h.Storage.ObjectURL(key)
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	updated, err := h.Store.Users.UpdateByID(ctx, currentUser.ID, updates)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating profile")
	}

	token, err := utils.GenerateToken(updated)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	fields := make([]string, 0, len(updates))
	for k := range updates {
		if k != "password_hash" {
			fields = append(fields, k)
		}
	}
	logger.InfoWithUser(updated.ID.String(), "profile_updated", map[string]interface{}{"fields": fields})

	return utils.Success(c, fiber.StatusOK, authResponse(updated, token))
}
