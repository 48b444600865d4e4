package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChatSession struct {
	Id          uuid.UUID
	UserId      uuid.UUID
	Title       string
	LastMessage *LastMessagePreview
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	DeletedAt   *time.Time
	IsDeleted   bool
}

// LastMessagePreview is the cached metadata refreshed on every append.
type LastMessagePreview struct {
	Role      string    `json:"role"`
	Chat      string    `json:"chat"`
	CreatedAt time.Time `json:"created_at"`
}
