package models

import "github.com/google/uuid"

type File struct {
	BaseModel
	GroupID    uuid.UUID `json:"groupID" gorm:"type:uuid;not null;index"`
	UploaderID uuid.UUID `json:"uploaderID" gorm:"type:uuid;not null;index"`
	FileName   string    `json:"fileName" gorm:"type:varchar(255);not null"`
	ObjectKey  string    `json:"-" gorm:"type:text;not null"`
	URL        string    `json:"url" gorm:"type:text;not null"`
	MimeType   string    `json:"mimeType" gorm:"type:varchar(255)"`
	Size       int64     `json:"size" gorm:"not null;default:0"`

	Uploader User `json:"uploader" gorm:"foreignKey:UploaderID"`
}
