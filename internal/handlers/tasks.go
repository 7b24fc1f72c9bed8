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
	"github.com/google/uuid"
)

// TasksHandler lets any member edit any task in their group, including its
// status and priority.
type TasksHandler struct {
	Store    *store.Store
	Access   *services.AccessService
	Hub      Broadcaster
	Notifier Notifier
}

func NewTasksHandler(s *store.Store, access *services.AccessService, hub Broadcaster, notifier Notifier) *TasksHandler {
	return &TasksHandler{Store: s, Access: access, Hub: hub, Notifier: notifier}
}

type createTaskRequest struct {
	Title       string `json:"title" validate:"notblank,max=255"`
	Description string `json:"description"`
	AssignedTo  string `json:"assignedTo"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	DueDate     string `json:"dueDate"`
}

type updateTaskRequest struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=255"`
	Description *string `json:"description"`
	AssignedTo  *string `json:"assignedTo"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	DueDate     *string `json:"dueDate"`
}

// taskAssignee resolves an assignee id that must belong to the group. An
// empty value means unassigned.
func taskAssignee(group *models.Group, raw string) (*uuid.UUID, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ""
	}
	id, err := parseUUID(raw)
	if err != nil {
		return nil, "assignedTo must be a valid id"
	}
	if !group.HasMember(id) {
		return nil, "assignee must be a member of this group"
	}
	return &id, ""
}

func (h *TasksHandler) Create(c *fiber.Ctx) error {
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

	var req createTaskRequest
	if msg := bindBody(c, &req); msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}

	task := &models.Task{
		GroupID:     groupID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Status:      models.TaskStatusTodo,
		Priority:    models.TaskPriorityLow,
	}
	if req.Status != "" {
		task.Status = models.TaskStatus(req.Status)
		if !task.Status.Valid() {
			return utils.Error(c, fiber.StatusBadRequest, "invalid status")
		}
	}
	if req.Priority != "" {
		task.Priority = models.TaskPriority(req.Priority)
		if !task.Priority.Valid() {
			return utils.Error(c, fiber.StatusBadRequest, "invalid priority")
		}
	}
	if req.DueDate != "" {
		due, err := parseDate(req.DueDate)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid dueDate")
		}
		task.DueDate = &due
	}
	assignee, msg := taskAssignee(group, req.AssignedTo)
	if msg != "" {
		return utils.Error(c, fiber.StatusBadRequest, msg)
	}
	task.AssignedToID = assignee

	if err := h.Store.Tasks.Create(ctx, task); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating task")
	}
	task, err = h.Store.Tasks.FindByID(ctx, task.ID, "AssignedTo")
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading task")
	}

	h.Hub.Broadcast(realtime.GroupRoom(groupID), realtime.TaskCreated{Task: task})
	link := groupLink(groupID)
	notified := h.notifyAssignee(c, task, currentUser.ID, link)
	logDelivery(c, "task_create", h.Notifier.NotifyGroup(ctx, groupID, currentUser.ID,
		fmt.Sprintf("A new task %q has been created in the group.", task.Title), link, notified...))

	logger.InfoWithUser(currentUser.ID.String(), "task_created", map[string]interface{}{
		"group_id": groupID.String(),
		"task_id":  task.ID.String(),
	})

	return utils.Success(c, fiber.StatusCreated, task)
}

func (h *TasksHandler) List(c *fiber.Ctx) error {
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

	tasks, err := h.Store.Tasks.FindMany(ctx, store.Query{
		Where:   store.Filter{"group_id": groupID},
		Preload: []string{"AssignedTo"},
		Order:   "created_at ASC",
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing tasks")
	}
	return utils.Success(c, fiber.StatusOK, tasks)
}

// Progress counts the group's tasks per status.
func (h *TasksHandler) Progress(c *fiber.Ctx) error {
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

	counts := fiber.Map{}
	var total int64
	for _, status := range models.TaskStatuses {
		n, err := h.Store.Tasks.Count(ctx, store.Query{Where: store.Filter{"group_id": groupID, "status": status}})
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed counting tasks")
		}
		counts[string(status)] = n
		total += n
	}
	counts["total"] = total

	return utils.Success(c, fiber.StatusOK, counts)
}

func (h *TasksHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}
	taskID, err := parseUUID(c.Params("taskId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid task id")
	}

	ctx := c.UserContext()
	group, err := h.Access.RequireMember(ctx, groupID, currentUser.ID)
	if err != nil {
		return groupAccessError(c, err)
	}

	existing, err := h.Store.Tasks.FindByID(ctx, taskID)
	if err != nil || existing.GroupID != groupID {
		if err == nil || store.IsNotFound(err) {
			return utils.Error(c, fiber.StatusNotFound, "task not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading task")
	}

	var req updateTaskRequest
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
	if req.Status != nil {
		status := models.TaskStatus(*req.Status)
		if !status.Valid() {
			return utils.Error(c, fiber.StatusBadRequest, "invalid status")
		}
		updates["status"] = status
	}
	if req.Priority != nil {
		priority := models.TaskPriority(*req.Priority)
		if !priority.Valid() {
			return utils.Error(c, fiber.StatusBadRequest, "invalid priority")
		}
		updates["priority"] = priority
	}
	if req.DueDate != nil {
		if strings.TrimSpace(*req.DueDate) == "" {
			updates["due_date"] = nil
		} else {
			due, err := parseDate(*req.DueDate)
			if err != nil {
				return utils.Error(c, fiber.StatusBadRequest, "invalid dueDate")
			}
			updates["due_date"] = due
		}
	}
	var newAssignee *uuid.UUID
	if req.AssignedTo != nil {
		assignee, msg := taskAssignee(group, *req.AssignedTo)
		if msg != "" {
			return utils.Error(c, fiber.StatusBadRequest, msg)
		}
		updates["assigned_to_id"] = assignee
		if assignee != nil && (existing.AssignedToID == nil || *existing.AssignedToID != *assignee) {
			newAssignee = assignee
		}
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	task, err := h.Store.Tasks.UpdateByID(ctx, taskID, updates, "AssignedTo")
	if err != nil {
		if store.IsNotFound(err) {
			return utils.Error(c, fiber.StatusNotFound, "task not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating task")
	}

	h.Hub.Broadcast(realtime.GroupRoom(groupID), realtime.TaskUpdated{Task: task})
	link := groupLink(groupID)
	var notified []uuid.UUID
	if newAssignee != nil {
		notified = h.notifyAssignee(c, task, currentUser.ID, link)
	}
	logDelivery(c, "task_update", h.Notifier.NotifyGroup(ctx, groupID, currentUser.ID,
		fmt.Sprintf("Task %q has been updated.", task.Title), link, notified...))

	logger.InfoWithUser(currentUser.ID.String(), "task_updated", map[string]interface{}{
		"group_id": groupID.String(),
		"task_id":  taskID.String(),
	})

	return utils.Success(c, fiber.StatusOK, task)
}

func (h *TasksHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	groupID, err := parseUUID(c.Params("groupId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid group id")
	}
	taskID, err := parseUUID(c.Params("taskId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid task id")
	}

	ctx := c.UserContext()
	if _, err := h.Access.RequireMember(ctx, groupID, currentUser.ID); err != nil {
		return groupAccessError(c, err)
	}

	task, err := h.Store.Tasks.FindByID(ctx, taskID)
	if err != nil || task.GroupID != groupID {
		if err == nil || store.IsNotFound(err) {
			return utils.Error(c, fiber.StatusNotFound, "task not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading task")
	}

	if err := h.Store.Tasks.DeleteByID(ctx, taskID); err != nil {
		if store.IsNotFound(err) {
			return utils.Error(c, fiber.StatusNotFound, "task not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting task")
	}

	h.Hub.Broadcast(realtime.GroupRoom(groupID), realtime.TaskDeleted{TaskID: taskID})
	logDelivery(c, "task_delete", h.Notifier.NotifyGroup(ctx, groupID, currentUser.ID,
		fmt.Sprintf("Task %q has been deleted.", task.Title), groupLink(groupID)))

	logger.InfoWithUser(currentUser.ID.String(), "task_deleted", map[string]interface{}{
		"group_id": groupID.String(),
		"task_id":  taskID.String(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"id": taskID, "message": "task removed"})
}

// notifyAssignee sends the assignment notice and returns who received it, so
// the group-wide notice can leave them out.
func (h *TasksHandler) notifyAssignee(c *fiber.Ctx, task *models.Task, actorID uuid.UUID, link string) []uuid.UUID {
	if task.AssignedToID == nil || *task.AssignedToID == actorID {
		return nil
	}
	d := h.Notifier.NotifyUser(c.UserContext(), *task.AssignedToID, fmt.Sprintf("You were assigned to task %q.", task.Title), link)
	logDelivery(c, "task_assign", d)
	return []uuid.UUID{*task.AssignedToID}
}
