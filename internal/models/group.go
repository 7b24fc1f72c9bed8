package models

import (
	"time"

	"github.com/google/uuid"
)

type Group struct {
	BaseModel
	Name               string     `json:"name" gorm:"type:varchar(150);not null"`
	Description        string     `json:"description" gorm:"type:text"`
	AdminID            uuid.UUID  `json:"adminID" gorm:"type:uuid;not null;index"`
	InviteToken        *string    `json:"-" gorm:"type:varchar(64);index"`
	InviteTokenExpires *time.Time `json:"-"`

	// Members is filled by the store; group_members holds the relation.
	Members []User `json:"members" gorm:"-"`
}

func (g *Group) IsAdmin(userID uuid.UUID) bool {
	return g.AdminID == userID
}

func (g *Group) HasMember(userID uuid.UUID) bool {
	for _, m := range g.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// GroupMember is one row of a group's member set. The composite key keeps
// entries unique.
type GroupMember struct {
	GroupID   uuid.UUID `json:"groupID" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `json:"userID" gorm:"type:uuid;primaryKey;index"`
	CreatedAt time.Time `json:"createdAt"`
}
