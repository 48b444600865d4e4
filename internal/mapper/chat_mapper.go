package mapper

import (
	"encoding/json"
	"time"

	"rizal-chat-be/internal/entity"
	"rizal-chat-be/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatMapper struct{}

func NewChatMapper() *ChatMapper {
	return &ChatMapper{}
}

// Session Mappers

func (m *ChatMapper) ChatSessionToEntity(s *model.ChatSession) *entity.ChatSession {
	if s == nil {
		return nil
	}

	var deletedAt *time.Time
	if s.DeletedAt.Valid {
		t := s.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !s.UpdatedAt.IsZero() {
		t := s.UpdatedAt
		updatedAt = &t
	}

	return &entity.ChatSession{
		Id:          s.Id,
		UserId:      s.UserId,
		Title:       s.Title,
		LastMessage: m.LastMessageFromJSON(s.LastMessage),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   updatedAt,
		DeletedAt:   deletedAt,
		IsDeleted:   s.DeletedAt.Valid,
	}
}

func (m *ChatMapper) ChatSessionToModel(s *entity.ChatSession) *model.ChatSession {
	if s == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if s.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *s.DeletedAt, Valid: true}
	} else if s.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if s.UpdatedAt != nil {
		updatedAt = *s.UpdatedAt
	}

	return &model.ChatSession{
		Id:          s.Id,
		UserId:      s.UserId,
		Title:       s.Title,
		LastMessage: m.LastMessageToJSON(s.LastMessage),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   updatedAt,
		DeletedAt:   deletedAt,
	}
}

// LastMessageToJSON serializes the cached preview column.
func (m *ChatMapper) LastMessageToJSON(p *entity.LastMessagePreview) datatypes.JSON {
	if p == nil {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func (m *ChatMapper) LastMessageFromJSON(raw datatypes.JSON) *entity.LastMessagePreview {
	if len(raw) == 0 {
		return nil
	}
	var p entity.LastMessagePreview
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil
	}
	return &p
}

// Message Mappers

func (m *ChatMapper) ChatMessageToEntity(msg *model.ChatMessage) *entity.ChatMessage {
	if msg == nil {
		return nil
	}

	var deletedAt *time.Time
	if msg.DeletedAt.Valid {
		t := msg.DeletedAt.Time
		deletedAt = &t
	}

	return &entity.ChatMessage{
		Id:            msg.Id,
		ChatSessionId: msg.ChatSessionId,
		UserId:        msg.UserId,
		Role:          msg.Role,
		Chat:          msg.Chat,
		CreatedAt:     msg.CreatedAt,
		DeletedAt:     deletedAt,
		IsDeleted:     msg.DeletedAt.Valid,
	}
}

func (m *ChatMapper) ChatMessageToModel(msg *entity.ChatMessage) *model.ChatMessage {
	if msg == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if msg.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *msg.DeletedAt, Valid: true}
	} else if msg.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	return &model.ChatMessage{
		Id:            msg.Id,
		ChatSessionId: msg.ChatSessionId,
		UserId:        msg.UserId,
		Role:          msg.Role,
		Chat:          msg.Chat,
		CreatedAt:     msg.CreatedAt,
		DeletedAt:     deletedAt,
	}
}
