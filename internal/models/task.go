package models

import (
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "To Do"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusDone       TaskStatus = "Done"
)

var TaskStatuses = []TaskStatus{TaskStatusTodo, TaskStatusInProgress, TaskStatusDone}

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "Low"
	TaskPriorityMedium TaskPriority = "Medium"
	TaskPriorityHigh   TaskPriority = "High"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

type Task struct {
	BaseModel
	GroupID      uuid.UUID    `json:"groupID" gorm:"type:uuid;not null;index"`
	Title        string       `json:"title" gorm:"type:varchar(255);not null"`
	Description  string       `json:"description" gorm:"type:text"`
	AssignedToID *uuid.UUID   `json:"assignedToID,omitempty" gorm:"type:uuid;index"`
	Status       TaskStatus   `json:"status" gorm:"type:varchar(20);not null;default:'To Do'"`
	Priority     TaskPriority `json:"priority" gorm:"type:varchar(10);not null;default:'Low'"`
	DueDate      *time.Time   `json:"dueDate,omitempty"`

	AssignedTo *User `json:"assignedTo,omitempty" gorm:"foreignKey:AssignedToID"`
}
