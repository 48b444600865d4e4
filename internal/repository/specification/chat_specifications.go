package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByChatSessionID struct {
	ChatSessionID uuid.UUID
}

func (s ByChatSessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_session_id = ?", s.ChatSessionID)
}

// ExcludeID filters a message out by identity. Exclusion by text equality
// would also drop earlier messages that happen to share the same content.
type ExcludeID struct {
	ID uuid.UUID
}

func (s ExcludeID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id <> ?", s.ID)
}

// CreatedFrom selects rows with created_at at or after the threshold.
type CreatedFrom struct {
	Threshold time.Time
}

func (s CreatedFrom) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("created_at >= ?", s.Threshold)
}

// WithoutSession selects legacy messages that were written before sessions
// existed and still lack one.
type WithoutSession struct{}

func (s WithoutSession) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_session_id IS NULL")
}
