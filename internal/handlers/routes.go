package handlers

import (
	"github.com/chakriappu140/collaborative-study-planner/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

// Handlers bundles everything RegisterRoutes mounts.
type Handlers struct {
	Users          *UsersHandler
	Groups         *GroupsHandler
	Tasks          *TasksHandler
	Calendar       *CalendarHandler
	Messages       *MessagesHandler
	DirectMessages *DirectMessagesHandler
	Files          *FilesHandler
	Notifications  *NotificationsHandler
	Realtime       *RealtimeHandler
}

// RegisterRoutes mounts the REST API under /api and the websocket at /ws.
func RegisterRoutes(app *fiber.App, h Handlers, auth *middleware.AuthMiddleware) {
	api := app.Group("/api")

	api.Post("/users", h.Users.Register)
	api.Post("/users/login", h.Users.Login)

	userRoutes := api.Group("/users", auth.RequireAuth)
	userRoutes.Get("/", h.Users.List)
	userRoutes.Get("/profile", h.Users.Profile)
	userRoutes.Put("/profile", h.Users.UpdateProfile)

	groupRoutes := api.Group("/groups", auth.RequireAuth)
	groupRoutes.Post("/", h.Groups.Create)
	groupRoutes.Get("/my-groups", h.Groups.MyGroups)
	groupRoutes.Post("/join/:token", h.Groups.Join)
	groupRoutes.Get("/:groupId", h.Groups.Get)
	groupRoutes.Delete("/:groupId", h.Groups.Delete)
	groupRoutes.Post("/:groupId/members", h.Groups.AddMember)
	groupRoutes.Delete("/:groupId/members/:memberId", h.Groups.RemoveMember)
	groupRoutes.Post("/:groupId/invite", h.Groups.Invite)

	groupRoutes.Post("/:groupId/tasks", h.Tasks.Create)
	groupRoutes.Get("/:groupId/tasks", h.Tasks.List)
	groupRoutes.Get("/:groupId/tasks/progress", h.Tasks.Progress)
	groupRoutes.Put("/:groupId/tasks/:taskId", h.Tasks.Update)
	groupRoutes.Delete("/:groupId/tasks/:taskId", h.Tasks.Delete)

	groupRoutes.Post("/:groupId/calendar", h.Calendar.Create)
	groupRoutes.Get("/:groupId/calendar", h.Calendar.List)
	groupRoutes.Put("/:groupId/calendar/:eventId", h.Calendar.Update)
	groupRoutes.Delete("/:groupId/calendar/:eventId", h.Calendar.Delete)

	groupRoutes.Post("/:groupId/messages", h.Messages.Send)
	groupRoutes.Get("/:groupId/messages", h.Messages.List)
	groupRoutes.Post("/:groupId/messages/:messageId/reactions", h.Messages.AddReaction)
	groupRoutes.Delete("/:groupId/messages/:messageId/reactions", h.Messages.RemoveReaction)

	groupRoutes.Post("/:groupId/files", h.Files.Upload)
	groupRoutes.Get("/:groupId/files", h.Files.List)
	groupRoutes.Delete("/:groupId/files/:fileId", h.Files.Delete)

	dmRoutes := api.Group("/messages/direct", auth.RequireAuth)
	dmRoutes.Post("/", h.DirectMessages.Send)
	dmRoutes.Get("/unread-counts", h.DirectMessages.UnreadCounts)
	dmRoutes.Put("/read/:senderId", h.DirectMessages.MarkRead)
	dmRoutes.Get("/:recipientId", h.DirectMessages.Conversation)
	dmRoutes.Post("/:messageId/reactions", h.DirectMessages.AddReaction)
	dmRoutes.Delete("/:messageId/reactions", h.DirectMessages.RemoveReaction)

	notificationRoutes := api.Group("/notifications", auth.RequireAuth)
	notificationRoutes.Get("/", h.Notifications.List)
	notificationRoutes.Put("/read-all", h.Notifications.MarkAllRead)
	notificationRoutes.Put("/:notificationId", h.Notifications.MarkRead)
	notificationRoutes.Delete("/", h.Notifications.DeleteAll)

	app.Use("/ws", h.Realtime.Upgrade)
	app.Get("/ws", h.Realtime.Handle())
}
