package models

import (
	"time"

	"github.com/google/uuid"
)

// CalendarEvent handlers reject an End before Start.
type CalendarEvent struct {
	BaseModel
	GroupID     uuid.UUID `json:"groupID" gorm:"type:uuid;not null;index"`
	Title       string    `json:"title" gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:text"`
	Start       time.Time `json:"start" gorm:"column:starts_at;not null;index"`
	End         time.Time `json:"end" gorm:"column:ends_at;not null"`
}
