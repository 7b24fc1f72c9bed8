package models

import "github.com/google/uuid"

type Notification struct {
	BaseModel
	UserID  uuid.UUID `json:"userID" gorm:"type:uuid;not null;index"`
	Message string    `json:"message" gorm:"type:text;not null"`
	Link    string    `json:"link,omitempty" gorm:"type:text"`
	IsRead  bool      `json:"isRead" gorm:"not null;default:false;index"`
}
