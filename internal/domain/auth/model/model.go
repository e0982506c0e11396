package model

import (
	"time"
)

type User struct {
	ID           string    `gorm:"type:uuid;primaryKey" bson:"_id" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" bson:"username" json:"username"`
	Email        string    `gorm:"uniqueIndex;not null" bson:"email" json:"email"`
	FullName     string    `gorm:"column:fullname;not null" bson:"fullname" json:"fullname"`
	PasswordHash string    `gorm:"not null" bson:"password_hash" json:"-"`
	Avatar       string    `bson:"avatar" json:"avatar"`
	CoverImage   string    `bson:"cover_image,omitempty" json:"cover_image,omitempty"`
	WatchHistory []string  `gorm:"serializer:json" bson:"watch_history" json:"watch_history"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// Identity is the part of a user that travels inside an access token.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	FullName string `json:"fullname,omitempty"`
}

func (u User) Identity() Identity {
	return Identity{
		ID:       u.ID,
		Email:    u.Email,
		Username: u.Username,
		FullName: u.FullName,
	}
}

type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	UserID          string
	RefreshTokenJTI string
}
