package entity

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one utterance. ChatSessionId is nil only for legacy rows
// written before sessions existed; the repair pass attaches those on sight.
type ChatMessage struct {
	Id            uuid.UUID
	ChatSessionId *uuid.UUID
	UserId        uuid.UUID
	Role          string
	Chat          string
	CreatedAt     time.Time
	DeletedAt     *time.Time
	IsDeleted     bool
}
