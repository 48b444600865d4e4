package dto

import (
	"time"

	"github.com/google/uuid"
)

// TurnRecordedMessage is the in-process event published after a turn commits.
// The consumer refreshes cached session metadata and notifies connected
// clients from it.
type TurnRecordedMessage struct {
	ChatSessionId uuid.UUID `json:"chat_session_id"`
	UserId        uuid.UUID `json:"user_id"`
	Role          string    `json:"role"`
	Chat          string    `json:"chat"`
	CreatedAt     time.Time `json:"created_at"`
}

// TurnEventDTO is the payload pushed over the websocket.
type TurnEventDTO struct {
	ChatSessionId uuid.UUID `json:"chat_session_id"`
	Role          string    `json:"role"`
	Chat          string    `json:"chat"`
	CreatedAt     time.Time `json:"created_at"`
}
