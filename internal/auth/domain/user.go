package domain

import "time"

type User struct {
	ID        string    `json:"id" gorm:"primaryKey"` // provider subject id for google accounts
	Email     string    `json:"email" gorm:"uniqueIndex"`
	Password  string    `json:"-"` // bcrypt hash, empty for google accounts
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Provider  string    `json:"provider"` // "email" or "google"
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RefreshToken struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
