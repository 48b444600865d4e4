package contract

import (
	"context"
	"time"

	"rizal-chat-be/internal/entity"
	"rizal-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatMessageRepository interface {
	Create(ctx context.Context, message *entity.ChatMessage) error
	DeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) error
	// DeleteByChatSessionIdFrom removes the contiguous suffix of a session's
	// timeline starting at the threshold and returns how many rows went.
	DeleteByChatSessionIdFrom(ctx context.Context, sessionId uuid.UUID, threshold time.Time) (int64, error)
	// AttachToSession adopts legacy rows without a session into the given one.
	AttachToSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatMessage, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
