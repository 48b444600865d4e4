package history

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"rizal-chat-be/internal/constant"
	"rizal-chat-be/internal/entity"
	"rizal-chat-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubMessageRepository serves a fixed message slice through the
// specification contract the builder queries with.
type stubMessageRepository struct {
	messages []*entity.ChatMessage
}

func (r *stubMessageRepository) Create(ctx context.Context, message *entity.ChatMessage) error {
	r.messages = append(r.messages, message)
	return nil
}

func (r *stubMessageRepository) DeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) error {
	return nil
}

func (r *stubMessageRepository) DeleteByChatSessionIdFrom(ctx context.Context, sessionId uuid.UUID, threshold time.Time) (int64, error) {
	return 0, nil
}

func (r *stubMessageRepository) AttachToSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) error {
	return nil
}

func (r *stubMessageRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatMessage, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (r *stubMessageRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	var sessionID, excludeID *uuid.UUID
	limit := -1
	desc := false
	for _, spec := range specs {
		switch v := spec.(type) {
		case specification.ByChatSessionID:
			id := v.ChatSessionID
			sessionID = &id
		case specification.ExcludeID:
			id := v.ID
			excludeID = &id
		case specification.Pagination:
			limit = v.Limit
		case specification.OrderBy:
			if v.Field == "created_at" {
				desc = v.Desc
			}
		}
	}

	var result []*entity.ChatMessage
	for _, m := range r.messages {
		if sessionID != nil && (m.ChatSessionId == nil || *m.ChatSessionId != *sessionID) {
			continue
		}
		if excludeID != nil && m.Id == *excludeID {
			continue
		}
		result = append(result, m)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if desc {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit >= 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *stubMessageRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}

func seedConversation(sessionId uuid.UUID, userId uuid.UUID, turns int) []*entity.ChatMessage {
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	messages := make([]*entity.ChatMessage, 0, turns)
	for i := 0; i < turns; i++ {
		role := constant.ChatMessageRoleUser
		if i%2 == 1 {
			role = constant.ChatMessageRolePersona
		}
		id := sessionId
		messages = append(messages, &entity.ChatMessage{
			Id:            uuid.New(),
			ChatSessionId: &id,
			UserId:        userId,
			Role:          role,
			Chat:          fmt.Sprintf("turn %d", i),
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		})
	}
	return messages
}

func TestBuildWindowsToMaxPairs(t *testing.T) {
	sessionId := uuid.New()
	userId := uuid.New()
	session := &entity.ChatSession{Id: sessionId, UserId: userId}

	// 25 prior turns plus the current one; maxPairs 10 keeps the last 20.
	repo := &stubMessageRepository{messages: seedConversation(sessionId, userId, 26)}
	current := repo.messages[25]

	builder := NewBuilder(10, "system prompt")
	turns, err := builder.Build(context.Background(), repo, session, current)
	require.NoError(t, err)

	// system + 20 prior + current
	require.Len(t, turns, 22)
	assert.Equal(t, "system", turns[0].Role)
	assert.Equal(t, "system prompt", turns[0].Content)

	// The oldest retained turn is number 5 (turns 5..24 survive the window).
	assert.Equal(t, "turn 5", turns[1].Content)
	assert.Equal(t, "turn 24", turns[20].Content)
	assert.Equal(t, current.Chat, turns[21].Content)
	assert.Equal(t, "user", turns[21].Role)
}

func TestBuildMapsPersonaToAssistant(t *testing.T) {
	sessionId := uuid.New()
	userId := uuid.New()
	session := &entity.ChatSession{Id: sessionId, UserId: userId}

	repo := &stubMessageRepository{messages: seedConversation(sessionId, userId, 5)}
	current := repo.messages[4]

	builder := NewBuilder(10, "system prompt")
	turns, err := builder.Build(context.Background(), repo, session, current)
	require.NoError(t, err)

	require.Len(t, turns, 6)
	assert.Equal(t, []string{"system", "user", "assistant", "user", "assistant", "user"},
		[]string{turns[0].Role, turns[1].Role, turns[2].Role, turns[3].Role, turns[4].Role, turns[5].Role})
}

func TestBuildExcludesCurrentByIdentityNotContent(t *testing.T) {
	sessionId := uuid.New()
	userId := uuid.New()
	session := &entity.ChatSession{Id: sessionId, UserId: userId}

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	repo := &stubMessageRepository{}
	duplicateText := "the very same words"
	for i := 0; i < 2; i++ {
		id := sessionId
		repo.messages = append(repo.messages, &entity.ChatMessage{
			Id:            uuid.New(),
			ChatSessionId: &id,
			UserId:        userId,
			Role:          constant.ChatMessageRoleUser,
			Chat:          duplicateText,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		})
	}
	current := repo.messages[1]

	builder := NewBuilder(10, "system prompt")
	turns, err := builder.Build(context.Background(), repo, session, current)
	require.NoError(t, err)

	// system + the earlier duplicate + current
	require.Len(t, turns, 3)
	assert.Equal(t, duplicateText, turns[1].Content)
	assert.Equal(t, duplicateText, turns[2].Content)
}

func TestBuildFirstTurnHasNoHistory(t *testing.T) {
	sessionId := uuid.New()
	userId := uuid.New()
	session := &entity.ChatSession{Id: sessionId, UserId: userId}

	id := sessionId
	current := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: &id,
		UserId:        userId,
		Role:          constant.ChatMessageRoleUser,
		Chat:          "opening line",
		CreatedAt:     time.Now(),
	}
	repo := &stubMessageRepository{messages: []*entity.ChatMessage{current}}

	builder := NewBuilder(10, "system prompt")
	turns, err := builder.Build(context.Background(), repo, session, current)
	require.NoError(t, err)

	require.Len(t, turns, 2)
	assert.Equal(t, "system", turns[0].Role)
	assert.Equal(t, "opening line", turns[1].Content)
}
