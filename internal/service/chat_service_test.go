package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"rizal-chat-be/internal/constant"
	"rizal-chat-be/internal/dto"
	"rizal-chat-be/internal/entity"
	"rizal-chat-be/internal/pkg/apperrors"
	"rizal-chat-be/internal/repository/contract"
	"rizal-chat-be/internal/repository/memory"
	"rizal-chat-be/internal/repository/specification"
	"rizal-chat-be/internal/repository/unitofwork"
	"rizal-chat-be/pkg/chat/history"
	"rizal-chat-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- In-memory fakes ---

type fakeStore struct {
	mu       sync.Mutex
	sessions []*entity.ChatSession
	messages []*entity.ChatMessage
}

type fakeUnitOfWork struct {
	store *fakeStore
}

func (u *fakeUnitOfWork) Begin(ctx context.Context) error { return nil }
func (u *fakeUnitOfWork) Commit() error                   { return nil }
func (u *fakeUnitOfWork) Rollback() error                 { return nil }
func (u *fakeUnitOfWork) ChatSessionRepository() contract.ChatSessionRepository {
	return &fakeSessionRepository{store: u.store}
}
func (u *fakeUnitOfWork) ChatMessageRepository() contract.ChatMessageRepository {
	return &fakeMessageRepository{store: u.store}
}

type fakeFactory struct {
	store *fakeStore
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUnitOfWork{store: f.store}
}

type fakeSessionRepository struct {
	store *fakeStore
}

func (r *fakeSessionRepository) Create(ctx context.Context, session *entity.ChatSession) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	copied := *session
	r.store.sessions = append(r.store.sessions, &copied)
	return nil
}

func (r *fakeSessionRepository) Update(ctx context.Context, session *entity.ChatSession) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i, s := range r.store.sessions {
		if s.Id == session.Id {
			copied := *session
			r.store.sessions[i] = &copied
			return nil
		}
	}
	return nil
}

func (r *fakeSessionRepository) UpdateLastMessage(ctx context.Context, id uuid.UUID, preview *entity.LastMessagePreview) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, s := range r.store.sessions {
		if s.Id == id {
			s.LastMessage = preview
		}
	}
	return nil
}

func (r *fakeSessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.sessions[:0]
	for _, s := range r.store.sessions {
		if s.Id != id {
			kept = append(kept, s)
		}
	}
	r.store.sessions = kept
	return nil
}

func (r *fakeSessionRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (r *fakeSessionRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result []*entity.ChatSession
	for _, s := range r.store.sessions {
		if sessionMatches(s, specs) {
			copied := *s
			result = append(result, &copied)
		}
	}

	for _, spec := range specs {
		if order, ok := spec.(specification.OrderBy); ok {
			sortSessions(result, order)
		}
	}
	return result, nil
}

func (r *fakeSessionRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}

func sessionMatches(s *entity.ChatSession, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch v := spec.(type) {
		case specification.ByID:
			if s.Id != v.ID {
				return false
			}
		case specification.UserOwnedBy:
			if s.UserId != v.UserID {
				return false
			}
		}
	}
	return true
}

func sortSessions(items []*entity.ChatSession, order specification.OrderBy) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		var less bool
		switch order.Field {
		case "updated_at":
			at, bt := a.CreatedAt, b.CreatedAt
			if a.UpdatedAt != nil {
				at = *a.UpdatedAt
			}
			if b.UpdatedAt != nil {
				bt = *b.UpdatedAt
			}
			less = at.Before(bt)
		default:
			less = a.CreatedAt.Before(b.CreatedAt)
		}
		if order.Desc {
			return !less
		}
		return less
	})
}

type fakeMessageRepository struct {
	store *fakeStore
}

func (r *fakeMessageRepository) Create(ctx context.Context, message *entity.ChatMessage) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	copied := *message
	r.store.messages = append(r.store.messages, &copied)
	return nil
}

func (r *fakeMessageRepository) DeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.messages[:0]
	for _, m := range r.store.messages {
		if m.ChatSessionId == nil || *m.ChatSessionId != sessionId {
			kept = append(kept, m)
		}
	}
	r.store.messages = kept
	return nil
}

func (r *fakeMessageRepository) DeleteByChatSessionIdFrom(ctx context.Context, sessionId uuid.UUID, threshold time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var deleted int64
	kept := r.store.messages[:0]
	for _, m := range r.store.messages {
		if m.ChatSessionId != nil && *m.ChatSessionId == sessionId && !m.CreatedAt.Before(threshold) {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	r.store.messages = kept
	return deleted, nil
}

func (r *fakeMessageRepository) AttachToSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range r.store.messages {
		if m.UserId == userId && m.ChatSessionId == nil {
			id := sessionId
			m.ChatSessionId = &id
		}
	}
	return nil
}

func (r *fakeMessageRepository) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatMessage, error) {
	all, err := r.FindAll(ctx, specs...)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return all[0], nil
}

func (r *fakeMessageRepository) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var result []*entity.ChatMessage
	for _, m := range r.store.messages {
		if messageMatches(m, specs) {
			copied := *m
			result = append(result, &copied)
		}
	}

	var orders []specification.OrderBy
	limit := -1
	for _, spec := range specs {
		switch v := spec.(type) {
		case specification.OrderBy:
			orders = append(orders, v)
		case specification.Pagination:
			limit = v.Limit
		}
	}
	sortMessages(result, orders)
	if limit >= 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *fakeMessageRepository) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}

func messageMatches(m *entity.ChatMessage, specs []specification.Specification) bool {
	for _, spec := range specs {
		switch v := spec.(type) {
		case specification.ByChatSessionID:
			if m.ChatSessionId == nil || *m.ChatSessionId != v.ChatSessionID {
				return false
			}
		case specification.UserOwnedBy:
			if m.UserId != v.UserID {
				return false
			}
		case specification.ExcludeID:
			if m.Id == v.ID {
				return false
			}
		case specification.WithoutSession:
			if m.ChatSessionId != nil {
				return false
			}
		case specification.CreatedFrom:
			if m.CreatedAt.Before(v.Threshold) {
				return false
			}
		}
	}
	return true
}

func sortMessages(items []*entity.ChatMessage, orders []specification.OrderBy) {
	if len(orders) == 0 {
		return
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		for _, order := range orders {
			var cmp int
			switch order.Field {
			case "created_at":
				if a.CreatedAt.Before(b.CreatedAt) {
					cmp = -1
				} else if a.CreatedAt.After(b.CreatedAt) {
					cmp = 1
				}
			case "id":
				cmp = strings.Compare(a.Id.String(), b.Id.String())
			}
			if cmp == 0 {
				continue
			}
			if order.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

type fakeProvider struct {
	reply string
	err   error
	calls [][]llm.Message
}

func (f *fakeProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (string, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error {
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (p *fakePublisher) Publish(ctx context.Context, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return nil
}

func newTestService(provider *fakeProvider) (IChatService, *fakeStore, *fakePublisher) {
	store := &fakeStore{}
	publisher := &fakePublisher{}
	svc := NewChatService(
		&fakeFactory{store: store},
		provider,
		history.NewBuilder(10, "You are a helpful persona."),
		memory.NewSessionLockRegistry(),
		publisher,
		nil,
		nopLogger{},
	)
	return svc, store, publisher
}

// --- Tests ---

func TestSendChatCreatesSessionAndAutoTitle(t *testing.T) {
	provider := &fakeProvider{reply: "Kumusta! I am happy to talk with you."}
	svc, store, publisher := newTestService(provider)
	userId := uuid.New()

	longText := strings.Repeat("a", 60)
	resp, err := svc.SendChat(context.Background(), userId, &dto.SendChatRequest{Chat: longText})
	require.NoError(t, err)

	assert.Equal(t, strings.Repeat("a", 50)+"...", resp.ChatSessionTitle)
	assert.Equal(t, constant.ChatMessageRoleUser, resp.Sent.Role)
	assert.Equal(t, constant.ChatMessageRolePersona, resp.Reply.Role)
	assert.Equal(t, provider.reply, resp.Reply.Chat)

	require.Len(t, store.sessions, 1)
	assert.Equal(t, resp.ChatSessionTitle, store.sessions[0].Title)
	assert.Len(t, store.messages, 2)

	// One publication per recorded turn.
	assert.Len(t, publisher.payloads, 2)

	// A second turn must not re-derive the title.
	_, err = svc.SendChat(context.Background(), userId, &dto.SendChatRequest{
		ChatSessionId: &resp.ChatSessionId,
		Chat:          "something entirely different",
	})
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 50)+"...", store.sessions[0].Title)
}

func TestSendChatShortTitleHasNoEllipsis(t *testing.T) {
	provider := &fakeProvider{reply: "Indeed."}
	svc, store, _ := newTestService(provider)

	resp, err := svc.SendChat(context.Background(), uuid.New(), &dto.SendChatRequest{Chat: "Hello Rizal"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Rizal", resp.ChatSessionTitle)
	assert.Equal(t, "Hello Rizal", store.sessions[0].Title)
}

func TestSendChatGatewayFailureKeepsUserTurn(t *testing.T) {
	provider := &fakeProvider{err: apperrors.Gateway("upstream down", nil)}
	svc, store, _ := newTestService(provider)
	userId := uuid.New()

	_, err := svc.SendChat(context.Background(), userId, &dto.SendChatRequest{Chat: "Are you there?"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindGateway, apperrors.KindOf(err))

	// The user turn committed; no persona turn was ever written.
	require.Len(t, store.messages, 1)
	assert.Equal(t, constant.ChatMessageRoleUser, store.messages[0].Role)
}

func TestSendChatRejectsForeignSession(t *testing.T) {
	provider := &fakeProvider{reply: "reply"}
	svc, store, _ := newTestService(provider)
	owner := uuid.New()
	intruder := uuid.New()

	created, err := svc.CreateSession(context.Background(), owner, &dto.CreateSessionRequest{Title: "Private"})
	require.NoError(t, err)

	_, err = svc.SendChat(context.Background(), intruder, &dto.SendChatRequest{
		ChatSessionId: &created.Id,
		Chat:          "let me in",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.Empty(t, store.messages)
	assert.Empty(t, provider.calls)
}

func TestSendChatRejectsBlankMessage(t *testing.T) {
	svc, store, _ := newTestService(&fakeProvider{reply: "reply"})

	_, err := svc.SendChat(context.Background(), uuid.New(), &dto.SendChatRequest{Chat: "   "})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Empty(t, store.sessions)
}

func TestSendChatContextExcludesCurrentByIdentity(t *testing.T) {
	provider := &fakeProvider{reply: "first reply"}
	svc, _, _ := newTestService(provider)
	userId := uuid.New()

	resp, err := svc.SendChat(context.Background(), userId, &dto.SendChatRequest{Chat: "repeat me"})
	require.NoError(t, err)

	// Send the exact same text again. The earlier identical message must
	// survive in the submitted context.
	provider.reply = "second reply"
	_, err = svc.SendChat(context.Background(), userId, &dto.SendChatRequest{
		ChatSessionId: &resp.ChatSessionId,
		Chat:          "repeat me",
	})
	require.NoError(t, err)

	require.Len(t, provider.calls, 2)
	second := provider.calls[1]
	// system + prior user + prior persona + current user
	require.Len(t, second, 4)
	assert.Equal(t, "system", second[0].Role)
	assert.Equal(t, "repeat me", second[1].Content)
	assert.Equal(t, "assistant", second[2].Role)
	assert.Equal(t, "first reply", second[2].Content)
	assert.Equal(t, "repeat me", second[3].Content)
}

func TestSendChatAdoptsOrphanMessages(t *testing.T) {
	provider := &fakeProvider{reply: "adopted"}
	svc, store, _ := newTestService(provider)
	userId := uuid.New()

	store.messages = append(store.messages, &entity.ChatMessage{
		Id:        uuid.New(),
		UserId:    userId,
		Role:      constant.ChatMessageRoleUser,
		Chat:      "written before sessions existed",
		CreatedAt: time.Now().Add(-time.Hour),
	})

	created, err := svc.CreateSession(context.Background(), userId, &dto.CreateSessionRequest{Title: "Current"})
	require.NoError(t, err)

	_, err = svc.SendChat(context.Background(), userId, &dto.SendChatRequest{
		ChatSessionId: &created.Id,
		Chat:          "hello again",
	})
	require.NoError(t, err)

	for _, m := range store.messages {
		require.NotNil(t, m.ChatSessionId, "orphan message was not adopted")
	}
	// Repair is a one-time affair; only the one session exists.
	assert.Len(t, store.sessions, 1)
}

func TestGetFlatHistoryCreatesLegacySession(t *testing.T) {
	svc, store, _ := newTestService(&fakeProvider{})
	userId := uuid.New()

	store.messages = append(store.messages, &entity.ChatMessage{
		Id:        uuid.New(),
		UserId:    userId,
		Role:      constant.ChatMessageRoleUser,
		Chat:      "pre-session message",
		CreatedAt: time.Now().Add(-time.Hour),
	})

	items, err := svc.GetFlatHistory(context.Background(), userId)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.Len(t, store.sessions, 1)
	assert.Equal(t, constant.LegacySessionTitle, store.sessions[0].Title)
	require.NotNil(t, store.messages[0].ChatSessionId)
	assert.Equal(t, store.sessions[0].Id, *store.messages[0].ChatSessionId)

	// A second call finds nothing left to adopt.
	_, err = svc.GetFlatHistory(context.Background(), userId)
	require.NoError(t, err)
	assert.Len(t, store.sessions, 1)
}

func TestTruncateSession(t *testing.T) {
	svc, store, _ := newTestService(&fakeProvider{})
	userId := uuid.New()

	created, err := svc.CreateSession(context.Background(), userId, &dto.CreateSessionRequest{Title: "Timeline"})
	require.NoError(t, err)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		sessionId := created.Id
		store.messages = append(store.messages, &entity.ChatMessage{
			Id:            uuid.New(),
			ChatSessionId: &sessionId,
			UserId:        userId,
			Role:          constant.ChatMessageRoleUser,
			Chat:          "msg",
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		})
	}

	resp, err := svc.TruncateSession(context.Background(), userId, created.Id, base.Add(time.Minute).Format(time.RFC3339))
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.DeletedCount)
	assert.Len(t, store.messages, 1)

	// Idempotent with the same threshold.
	resp, err = svc.TruncateSession(context.Background(), userId, created.Id, base.Add(time.Minute).Format(time.RFC3339))
	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.DeletedCount)
}

func TestTruncateSessionRejectsBadTimestamp(t *testing.T) {
	svc, _, _ := newTestService(&fakeProvider{})

	_, err := svc.TruncateSession(context.Background(), uuid.New(), uuid.New(), "yesterday at noon")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestRenameSessionBlocksAutoTitle(t *testing.T) {
	provider := &fakeProvider{reply: "noted"}
	svc, store, _ := newTestService(provider)
	userId := uuid.New()

	created, err := svc.CreateSession(context.Background(), userId, &dto.CreateSessionRequest{})
	require.NoError(t, err)

	_, err = svc.RenameSession(context.Background(), userId, created.Id, &dto.RenameSessionRequest{Title: "My Chosen Title"})
	require.NoError(t, err)

	_, err = svc.SendChat(context.Background(), userId, &dto.SendChatRequest{
		ChatSessionId: &created.Id,
		Chat:          "this must not become the title",
	})
	require.NoError(t, err)
	assert.Equal(t, "My Chosen Title", store.sessions[0].Title)
}

func TestRenameSessionValidation(t *testing.T) {
	svc, _, _ := newTestService(&fakeProvider{})
	userId := uuid.New()

	created, err := svc.CreateSession(context.Background(), userId, &dto.CreateSessionRequest{})
	require.NoError(t, err)

	_, err = svc.RenameSession(context.Background(), userId, created.Id, &dto.RenameSessionRequest{Title: "  "})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = svc.RenameSession(context.Background(), uuid.New(), created.Id, &dto.RenameSessionRequest{Title: "Someone Else"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestDeleteSessionCascades(t *testing.T) {
	provider := &fakeProvider{reply: "bye"}
	svc, store, _ := newTestService(provider)
	userId := uuid.New()

	resp, err := svc.SendChat(context.Background(), userId, &dto.SendChatRequest{Chat: "to be deleted"})
	require.NoError(t, err)

	err = svc.DeleteSession(context.Background(), userId, resp.ChatSessionId)
	require.NoError(t, err)
	assert.Empty(t, store.sessions)
	assert.Empty(t, store.messages)

	_, err = svc.GetChatHistory(context.Background(), userId, resp.ChatSessionId)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestGetAllSessionsOrderAndCounts(t *testing.T) {
	provider := &fakeProvider{reply: "ok"}
	svc, _, _ := newTestService(provider)
	userId := uuid.New()

	first, err := svc.SendChat(context.Background(), userId, &dto.SendChatRequest{Chat: "first session"})
	require.NoError(t, err)
	second, err := svc.SendChat(context.Background(), userId, &dto.SendChatRequest{Chat: "second session"})
	require.NoError(t, err)

	// Another turn in the first session makes it the most recent again.
	_, err = svc.SendChat(context.Background(), userId, &dto.SendChatRequest{
		ChatSessionId: &first.ChatSessionId,
		Chat:          "follow up",
	})
	require.NoError(t, err)

	sessions, err := svc.GetAllSessions(context.Background(), userId)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, first.ChatSessionId, sessions[0].Id)
	assert.Equal(t, second.ChatSessionId, sessions[1].Id)
	assert.Equal(t, int64(4), sessions[0].MessageCount)
	assert.Equal(t, int64(2), sessions[1].MessageCount)

	// Other users never see these sessions.
	foreign, err := svc.GetAllSessions(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, foreign)
}

func TestGetChatHistoryOrdering(t *testing.T) {
	provider := &fakeProvider{reply: "reply"}
	svc, _, _ := newTestService(provider)
	userId := uuid.New()

	resp, err := svc.SendChat(context.Background(), userId, &dto.SendChatRequest{Chat: "one"})
	require.NoError(t, err)
	_, err = svc.SendChat(context.Background(), userId, &dto.SendChatRequest{
		ChatSessionId: &resp.ChatSessionId,
		Chat:          "two",
	})
	require.NoError(t, err)

	detail, err := svc.GetChatHistory(context.Background(), userId, resp.ChatSessionId)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 4)
	assert.Equal(t, "one", detail.Messages[0].Chat)
	assert.Equal(t, constant.ChatMessageRolePersona, detail.Messages[1].Role)
	assert.Equal(t, "two", detail.Messages[2].Chat)
	for i := 1; i < len(detail.Messages); i++ {
		assert.False(t, detail.Messages[i].CreatedAt.Before(detail.Messages[i-1].CreatedAt))
	}
}
