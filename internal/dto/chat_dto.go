package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	Title string `json:"title" validate:"max=200"`
}

type CreateSessionResponse struct {
	Id    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

type SessionListItemResponse struct {
	Id           uuid.UUID       `json:"id"`
	Title        string          `json:"title"`
	MessageCount int64           `json:"message_count"`
	LastMessage  *LastMessageDTO `json:"last_message"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    *time.Time      `json:"updated_at"`
}

type LastMessageDTO struct {
	Role      string    `json:"role"`
	Chat      string    `json:"chat"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatMessageDTO struct {
	Id        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Chat      string    `json:"chat"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionDetailResponse struct {
	Id        uuid.UUID        `json:"id"`
	Title     string           `json:"title"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt *time.Time       `json:"updated_at"`
	Messages  []ChatMessageDTO `json:"messages"`
}

type RenameSessionRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

type SendChatRequest struct {
	ChatSessionId *uuid.UUID `json:"chat_session_id"`
	Chat          string     `json:"chat" validate:"required"`
}

type SendChatResponse struct {
	ChatSessionId    uuid.UUID       `json:"chat_session_id"`
	ChatSessionTitle string          `json:"title"`
	Sent             *ChatMessageDTO `json:"sent"`
	Reply            *ChatMessageDTO `json:"reply"`
}

type TruncateSessionRequest struct {
	From string `json:"from" validate:"required"`
}

type TruncateSessionResponse struct {
	DeletedCount int64 `json:"deleted_count"`
}

// FlatHistoryItemResponse serves the deprecated cross-session history
// endpoint, kept for clients that predate sessions.
type FlatHistoryItemResponse struct {
	Role      string    `json:"sender"`
	Chat      string    `json:"message"`
	CreatedAt time.Time `json:"timestamp"`
}
