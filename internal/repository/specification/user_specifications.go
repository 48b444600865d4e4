package specification

import (
	"gorm.io/gorm"

	"github.com/google/uuid"
)

// UserOwnedBy scopes a query to one owner. Sessions and messages both carry
// a user_id column, so the same spec authorizes either.
type UserOwnedBy struct {
	UserID uuid.UUID
}

func (s UserOwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}
