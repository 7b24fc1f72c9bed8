package realtime

import (
	"encoding/json"

	"github.com/chakriappu140/collaborative-study-planner/internal/models"
	"github.com/google/uuid"
)

// Server to client event names.
const (
	EventTaskCreated            = "task:created"
	EventTaskUpdated            = "task:updated"
	EventTaskDeleted            = "task:deleted"
	EventCalendarCreated        = "event:created"
	EventCalendarUpdated        = "event:updated"
	EventCalendarDeleted        = "event:deleted"
	EventMessageNew             = "message:new"
	EventMessageReactionAdded   = "message:reaction:added"
	EventMessageReactionRemoved = "message:reaction:removed"
	EventDirectMessageNew       = "dm:new"
	EventDirectMessageRead      = "dm:read"
	EventDMReactionAdded        = "dm:reaction:added"
	EventDMReactionRemoved      = "dm:reaction:removed"
	EventFileUploaded           = "file:uploaded"
	EventFileDeleted            = "file:deleted"
	EventGroupDeleted           = "group:deleted"
	EventGroupMemberAdded       = "group:member_added"
	EventGroupMemberRemoved     = "group:member_removed"
	EventNotificationNew        = "notification:new"
	EventDrawing                = "drawing"
	EventDrawingActive          = "drawing_active"
	EventDrawingInactive        = "drawing_inactive"
	EventError                  = "error"
)

// Client to server event names. Whiteboard events share the names above.
const (
	ClientJoinGroup  = "joinGroup"
	ClientLeaveGroup = "leaveGroup"
)

// Event is a closed set of server pushes: only this package can add
// variants, and each variant fixes its own payload shape.
type Event interface {
	EventName() string
	payload() interface{}
}

// Envelope is the frame shape on the wire in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Encode renders ev as a wire frame.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(outbound{Event: ev.EventName(), Data: ev.payload()})
}

type TaskCreated struct{ Task *models.Task }

func (TaskCreated) EventName() string      { return EventTaskCreated }
func (e TaskCreated) payload() interface{} { return e.Task }

type TaskUpdated struct{ Task *models.Task }

func (TaskUpdated) EventName() string      { return EventTaskUpdated }
func (e TaskUpdated) payload() interface{} { return e.Task }

type TaskDeleted struct{ TaskID uuid.UUID }

func (TaskDeleted) EventName() string      { return EventTaskDeleted }
func (e TaskDeleted) payload() interface{} { return e.TaskID.String() }

type CalendarEventCreated struct{ Event *models.CalendarEvent }

func (CalendarEventCreated) EventName() string      { return EventCalendarCreated }
func (e CalendarEventCreated) payload() interface{} { return e.Event }

type CalendarEventUpdated struct{ Event *models.CalendarEvent }

func (CalendarEventUpdated) EventName() string      { return EventCalendarUpdated }
func (e CalendarEventUpdated) payload() interface{} { return e.Event }

type CalendarEventDeleted struct{ EventID uuid.UUID }

func (CalendarEventDeleted) EventName() string      { return EventCalendarDeleted }
func (e CalendarEventDeleted) payload() interface{} { return e.EventID.String() }

type MessageNew struct{ Message *models.Message }

func (MessageNew) EventName() string      { return EventMessageNew }
func (e MessageNew) payload() interface{} { return e.Message }

type MessageReactionAdded struct{ Message *models.Message }

func (MessageReactionAdded) EventName() string      { return EventMessageReactionAdded }
func (e MessageReactionAdded) payload() interface{} { return e.Message }

type MessageReactionRemoved struct{ Message *models.Message }

func (MessageReactionRemoved) EventName() string      { return EventMessageReactionRemoved }
func (e MessageReactionRemoved) payload() interface{} { return e.Message }

type DirectMessageNew struct{ Message *models.DirectMessage }

func (DirectMessageNew) EventName() string      { return EventDirectMessageNew }
func (e DirectMessageNew) payload() interface{} { return e.Message }

// DirectMessageRead tells a sender that ReaderID has read their messages.
type DirectMessageRead struct{ ReaderID uuid.UUID }

func (DirectMessageRead) EventName() string      { return EventDirectMessageRead }
func (e DirectMessageRead) payload() interface{} { return e.ReaderID.String() }

type DirectMessageReactionAdded struct{ Message *models.DirectMessage }

func (DirectMessageReactionAdded) EventName() string      { return EventDMReactionAdded }
func (e DirectMessageReactionAdded) payload() interface{} { return e.Message }

type DirectMessageReactionRemoved struct{ Message *models.DirectMessage }

func (DirectMessageReactionRemoved) EventName() string      { return EventDMReactionRemoved }
func (e DirectMessageReactionRemoved) payload() interface{} { return e.Message }

type FileUploaded struct{ File *models.File }

func (FileUploaded) EventName() string      { return EventFileUploaded }
func (e FileUploaded) payload() interface{} { return e.File }

type FileDeleted struct{ FileID uuid.UUID }

func (FileDeleted) EventName() string      { return EventFileDeleted }
func (e FileDeleted) payload() interface{} { return e.FileID.String() }

type GroupDeleted struct{ GroupID uuid.UUID }

func (GroupDeleted) EventName() string      { return EventGroupDeleted }
func (e GroupDeleted) payload() interface{} { return e.GroupID.String() }

type GroupMemberAdded struct {
	Group  *models.Group
	Member *models.User
}

func (GroupMemberAdded) EventName() string { return EventGroupMemberAdded }
func (e GroupMemberAdded) payload() interface{} {
	return map[string]interface{}{"group": e.Group, "member": e.Member}
}

type GroupMemberRemoved struct {
	MemberID uuid.UUID
	Group    *models.Group
}

func (GroupMemberRemoved) EventName() string { return EventGroupMemberRemoved }
func (e GroupMemberRemoved) payload() interface{} {
	return map[string]interface{}{"memberId": e.MemberID.String(), "group": e.Group}
}

type NotificationNew struct{ Notification *models.Notification }

func (NotificationNew) EventName() string      { return EventNotificationNew }
func (e NotificationNew) payload() interface{} { return e.Notification }

// Stroke is one whiteboard line segment.
type Stroke struct {
	GroupID   string  `json:"groupId"`
	X0        float64 `json:"x0"`
	Y0        float64 `json:"y0"`
	X1        float64 `json:"x1"`
	Y1        float64 `json:"y1"`
	Color     string  `json:"color"`
	IsErasing bool    `json:"isErasing"`
}

// Cursor is a peer's pen position. SocketID is always set by the server.
type Cursor struct {
	GroupID  string  `json:"groupId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Color    string  `json:"color"`
	UserName string  `json:"userName"`
	SocketID string  `json:"socketId"`
}

type Drawing struct{ Stroke Stroke }

func (Drawing) EventName() string      { return EventDrawing }
func (e Drawing) payload() interface{} { return e.Stroke }

type DrawingActive struct{ Cursor Cursor }

func (DrawingActive) EventName() string      { return EventDrawingActive }
func (e DrawingActive) payload() interface{} { return e.Cursor }

type DrawingInactive struct {
	GroupID  string
	SocketID string
}

func (DrawingInactive) EventName() string { return EventDrawingInactive }
func (e DrawingInactive) payload() interface{} {
	return map[string]string{"groupId": e.GroupID, "socketId": e.SocketID}
}

// ErrorEvent goes only to the connection whose request failed.
type ErrorEvent struct{ Message string }

func (ErrorEvent) EventName() string      { return EventError }
func (e ErrorEvent) payload() interface{} { return map[string]string{"message": e.Message} }
