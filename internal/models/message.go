package models

import "github.com/google/uuid"

type Message struct {
	BaseModel
	GroupID   uuid.UUID  `json:"groupID" gorm:"type:uuid;not null;index"`
	SenderID  uuid.UUID  `json:"senderID" gorm:"type:uuid;not null;index"`
	Content   string     `json:"content" gorm:"type:text;not null"`
	ReplyToID *uuid.UUID `json:"replyToID,omitempty" gorm:"type:uuid"`

	Sender    User       `json:"sender" gorm:"foreignKey:SenderID"`
	ReplyTo   *Message   `json:"replyTo,omitempty" gorm:"foreignKey:ReplyToID"`
	Reactions []Reaction `json:"reactions" gorm:"foreignKey:MessageID"`
}

type DirectMessage struct {
	BaseModel
	SenderID    uuid.UUID  `json:"senderID" gorm:"type:uuid;not null;index"`
	RecipientID uuid.UUID  `json:"recipientID" gorm:"type:uuid;not null;index"`
	Content     string     `json:"content" gorm:"type:text;not null"`
	IsRead      bool       `json:"isRead" gorm:"not null;default:false;index"`
	ReplyToID   *uuid.UUID `json:"replyToID,omitempty" gorm:"type:uuid"`

	Sender    User           `json:"sender" gorm:"foreignKey:SenderID"`
	ReplyTo   *DirectMessage `json:"replyTo,omitempty" gorm:"foreignKey:ReplyToID"`
	Reactions []Reaction     `json:"reactions" gorm:"foreignKey:MessageID"`
}

// Involves reports whether userID is one of the two participants.
func (m *DirectMessage) Involves(userID uuid.UUID) bool {
	return m.SenderID == userID || m.RecipientID == userID
}

type ReactionKind string

const (
	ReactionOnMessage       ReactionKind = "group"
	ReactionOnDirectMessage ReactionKind = "direct"
)

// Reaction belongs to either a Message or a DirectMessage, told apart by Kind.
type Reaction struct {
	BaseModel
	MessageID uuid.UUID    `json:"messageID" gorm:"type:uuid;not null;uniqueIndex:idx_reaction"`
	Kind      ReactionKind `json:"-" gorm:"column:message_kind;type:varchar(10);not null;uniqueIndex:idx_reaction"`
	UserID    uuid.UUID    `json:"userID" gorm:"type:uuid;not null;uniqueIndex:idx_reaction"`
	Emoji     string       `json:"emoji" gorm:"type:varchar(32);not null;uniqueIndex:idx_reaction"`
}
