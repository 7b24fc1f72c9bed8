package models

const DefaultAvatarURL = "https://res.cloudinary.com/demo/image/upload/v1600000000/default_avatar.png"

type User struct {
	BaseModel
	Name         string `json:"name" gorm:"type:varchar(100);not null"`
	Email        string `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string `json:"-" gorm:"type:text;not null"`
	AvatarURL    string `json:"avatar" gorm:"type:text"`
}

// Summary is the public projection embedded in populated entities.
func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID.String(), Name: u.Name, AvatarURL: u.AvatarURL}
}

type UserSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar,omitempty"`
}
