package contract

import (
	"context"

	"rizal-chat-be/internal/entity"
	"rizal-chat-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatSessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) error
	Update(ctx context.Context, session *entity.ChatSession) error
	// UpdateLastMessage refreshes only the cached preview column, leaving
	// updated_at to GORM's autoUpdateTime bump.
	UpdateLastMessage(ctx context.Context, id uuid.UUID, preview *entity.LastMessagePreview) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
