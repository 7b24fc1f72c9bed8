package handlers

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/chakriappu140/collaborative-study-planner/internal/middleware"
	"github.com/chakriappu140/collaborative-study-planner/internal/models"
	"github.com/chakriappu140/collaborative-study-planner/internal/realtime"
	"github.com/chakriappu140/collaborative-study-planner/internal/services"
	"github.com/chakriappu140/collaborative-study-planner/internal/storage"
	"github.com/chakriappu140/collaborative-study-planner/internal/store"
	"github.com/chakriappu140/collaborative-study-planner/pkg/logger"
	"github.com/chakriappu140/collaborative-study-planner/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// uploadField is the multipart field the web client posts documents under.
const uploadField = "document"

type FilesHandler struct {
	Store    *store.Store
	Storage  storage.ObjectStorage
	Access   *services.AccessService
	Hub      Broadcaster
	Notifier Notifier
}

func NewFilesHandler(s *store.Store, objects storage.ObjectStorage, access *services.AccessService, hub Broadcaster, notifier Notifier) *FilesHandler {
	return &FilesHandler{Store: s, Storage: objects, Access: access, Hub: hub, Notifier: notifier}
}

func (h *FilesHandler) Upload(c *fiber.Ctx) error {
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

	if h.Storage == nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, "file storage is not configured")
	}

	fileHeader, err := c.FormFile(uploadField)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "no file uploaded")
	}

	filename := filepath.Base(strings.TrimSpace(fileHeader.Filename))
	if filename == "" || filename == "." || filename == "/" {
		return utils.Error(c, fiber.StatusBadRequest, "invalid filename")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	stream, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed opening uploaded file")
	}
	defer stream.Close()

	key := storage.ObjectKey("groups/"+groupID.String(), filename)
	if err := h.Storage.Upload(ctx, key, stream, fileHeader.Size, contentType); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed uploading file")
	}

	entry := &models.File{
		GroupID:    groupID,
		UploaderID: currentUser.ID,
		FileName:   filename,
		ObjectKey:  key,
		URL:        h.Storage.ObjectURL(key),
		MimeType:   contentType,
		Size:       fileHeader.Size,
	}
	if err := h.Store.Files.Create(ctx, entry); err != nil {
		_ = h.Storage.Delete(ctx, key)
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating file record")
	}

	entry, err = h.Store.Files.FindByID(ctx, entry.ID, "Uploader")
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading file")
	}

	h.Hub.Broadcast(realtime.GroupRoom(groupID), realtime.FileUploaded{File: entry})
	logDelivery(c, "file_upload", h.Notifier.NotifyGroup(ctx, groupID, currentUser.ID,
		fmt.Sprintf("%s uploaded a new file in %s", currentUser.Name, group.Name), groupLink(groupID)))

	logger.InfoWithUser(currentUser.ID.String(), "file_uploaded", map[string]interface{}{
		"group_id":   groupID.String(),
		"file_id":    entry.ID.String(),
		"file_name":  filename,
		"file_size":  fileHeader.Size,
		"mime_type":  contentType,
		"object_key": key,
	})

	return utils.Success(c, fiber.StatusCreated, entry)
}

func (h *FilesHandler) List(c *fiber.Ctx) error {
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

	files, err := h.Store.Files.FindMany(ctx, store.Query{
		Where:   store.Filter{"group_id": groupID},
		Preload: []string{"Uploader"},
		Order:   "created_at DESC",
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing files")
	}
	return utils.Success(c, fiber.StatusOK, files)
}

// Delete is admin only. The stored object goes first so a failed blob
// delete leaves the record in place for a retry.
func (h *FilesHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}
	fileID, err := parseUUID(c.Params("fileId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	ctx := c.UserContext()
	group, err := h.Access.RequireAdmin(ctx, groupID, currentUser.ID)
	if err != nil {
		return groupAccessError(c, err)
	}

	file, err := h.Store.Files.FindByID(ctx, fileID)
	if err != nil || file.GroupID != groupID {
		if err == nil || store.IsNotFound(err) {
			return utils.Error(c, fiber.StatusNotFound, "file not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading file")
	}

	if h.Storage == nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, "file storage is not configured")
	}
	if err := h.Storage.Delete(ctx, file.ObjectKey); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting stored file")
	}

	if err := h.Store.Files.DeleteByID(ctx, fileID); err != nil && !store.IsNotFound(err) {
		logger.ErrorWithUser(currentUser.ID.String(), "file_record_delete_failed", err, map[string]interface{}{
			"group_id":   groupID.String(),
			"file_id":    fileID.String(),
			"object_key": file.ObjectKey,
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting file record")
	}

	h.Hub.Broadcast(realtime.GroupRoom(groupID), realtime.FileDeleted{FileID: fileID})
	logDelivery(c, "file_delete", h.Notifier.NotifyGroup(ctx, groupID, currentUser.ID,
		fmt.Sprintf("%s deleted the file %q from %s", currentUser.Name, file.FileName, group.Name), groupLink(groupID)))

	logger.InfoWithUser(currentUser.ID.String(), "file_deleted", map[string]interface{}{
		"group_id":  groupID.String(),
		"file_id":   fileID.String(),
		"file_name": file.FileName,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"id": fileID, "message": "file deleted"})
}
