package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"rizal-chat-be/internal/constant"
	"rizal-chat-be/internal/dto"
	"rizal-chat-be/internal/entity"
	"rizal-chat-be/internal/pkg/apperrors"
	"rizal-chat-be/internal/pkg/logger"
	"rizal-chat-be/internal/repository/memory"
	"rizal-chat-be/internal/repository/specification"
	"rizal-chat-be/internal/repository/unitofwork"
	"rizal-chat-be/pkg/chat/history"
	"rizal-chat-be/pkg/events"
	"rizal-chat-be/pkg/llm"
	pktNats "rizal-chat-be/pkg/nats"

	"github.com/google/uuid"
)

// IChatService is the session lifecycle boundary. Everything below it is
// translated into the apperrors taxonomy before returning.
type IChatService interface {
	CreateSession(ctx context.Context, userId uuid.UUID, request *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	GetAllSessions(ctx context.Context, userId uuid.UUID) ([]*dto.SessionListItemResponse, error)
	GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.SessionDetailResponse, error)
	SendChat(ctx context.Context, userId uuid.UUID, request *dto.SendChatRequest) (*dto.SendChatResponse, error)
	RenameSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, request *dto.RenameSessionRequest) (*dto.SessionListItemResponse, error)
	TruncateSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, from string) (*dto.TruncateSessionResponse, error)
	DeleteSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) error
	GetFlatHistory(ctx context.Context, userId uuid.UUID) ([]*dto.FlatHistoryItemResponse, error)
}

type chatService struct {
	uowFactory     unitofwork.RepositoryFactory
	provider       llm.CompletionProvider
	contextBuilder *history.Builder
	locks          *memory.SessionLockRegistry
	publisher      IPublisherService
	eventPublisher *pktNats.Publisher
	logger         logger.ILogger
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	provider llm.CompletionProvider,
	contextBuilder *history.Builder,
	locks *memory.SessionLockRegistry,
	publisher IPublisherService,
	eventPublisher *pktNats.Publisher,
	sysLogger logger.ILogger,
) IChatService {
	return &chatService{
		uowFactory:     uowFactory,
		provider:       provider,
		contextBuilder: contextBuilder,
		locks:          locks,
		publisher:      publisher,
		eventPublisher: eventPublisher,
		logger:         sysLogger,
	}
}

// CreateSession creates a new chat session
func (cs *chatService) CreateSession(ctx context.Context, userId uuid.UUID, request *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	session := entity.ChatSession{
		Id:        uuid.New(),
		UserId:    userId,
		Title:     strings.TrimSpace(request.Title),
		CreatedAt: time.Now(),
	}

	if err := uow.ChatSessionRepository().Create(ctx, &session); err != nil {
		return nil, apperrors.Internal("create session", err)
	}

	return &dto.CreateSessionResponse{Id: session.Id, Title: session.Title}, nil
}

// GetAllSessions lists the owner's sessions, most recently updated first.
func (cs *chatService) GetAllSessions(ctx context.Context, userId uuid.UUID) ([]*dto.SessionListItemResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	sessions, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "updated_at", Desc: true},
	)
	if err != nil {
		return nil, apperrors.Internal("list sessions", err)
	}

	response := make([]*dto.SessionListItemResponse, 0, len(sessions))
	for _, s := range sessions {
		count, err := uow.ChatMessageRepository().Count(ctx,
			specification.ByChatSessionID{ChatSessionID: s.Id},
		)
		if err != nil {
			return nil, apperrors.Internal("count session messages", err)
		}

		var lastMessage *dto.LastMessageDTO
		if s.LastMessage != nil {
			lastMessage = &dto.LastMessageDTO{
				Role:      s.LastMessage.Role,
				Chat:      s.LastMessage.Chat,
				CreatedAt: s.LastMessage.CreatedAt,
			}
		}

		response = append(response, &dto.SessionListItemResponse{
			Id:           s.Id,
			Title:        s.Title,
			MessageCount: count,
			LastMessage:  lastMessage,
			CreatedAt:    s.CreatedAt,
			UpdatedAt:    s.UpdatedAt,
		})
	}

	return response, nil
}

// GetChatHistory returns a session with its full ordered message list.
func (cs *chatService) GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.SessionDetailResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	session, err := cs.verifySession(ctx, uow, userId, sessionId)
	if err != nil {
		return nil, err
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: false},
		specification.OrderBy{Field: "id", Desc: false},
	)
	if err != nil {
		return nil, apperrors.Internal("load session messages", err)
	}

	items := make([]dto.ChatMessageDTO, 0, len(messages))
	for _, msg := range messages {
		items = append(items, dto.ChatMessageDTO{
			Id:        msg.Id,
			Role:      msg.Role,
			Chat:      msg.Chat,
			CreatedAt: msg.CreatedAt,
		})
	}

	return &dto.SessionDetailResponse{
		Id:        session.Id,
		Title:     session.Title,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		Messages:  items,
	}, nil
}

// SendChat records a user turn, asks the persona for a reply, and records
// the reply. A gateway failure after the user turn committed is a failed
// turn, not a corrupted session: the user message stays, no persona message
// is written.
func (cs *chatService) SendChat(ctx context.Context, userId uuid.UUID, request *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	text := strings.TrimSpace(request.Chat)
	if text == "" {
		return nil, apperrors.Validation("message text is required")
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	session, err := cs.resolveSession(ctx, uow, userId, request.ChatSessionId)
	if err != nil {
		return nil, err
	}

	if err := cs.repairOrphanMessages(ctx, uow, userId); err != nil {
		return nil, err
	}

	userMessage, err := cs.recordTurn(ctx, uow, session, userId, constant.ChatMessageRoleUser, text)
	if err != nil {
		return nil, err
	}

	turns, err := cs.contextBuilder.Build(ctx, uow.ChatMessageRepository(), session, userMessage)
	if err != nil {
		return nil, apperrors.Internal("assemble context", err)
	}

	reply, err := cs.provider.Chat(ctx, turns)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindInternal {
			err = apperrors.Gateway("completion failed", err)
		}
		return nil, err
	}

	personaMessage, err := cs.recordTurn(ctx, uow, session, userId, constant.ChatMessageRolePersona, reply)
	if err != nil {
		return nil, err
	}

	return &dto.SendChatResponse{
		ChatSessionId:    session.Id,
		ChatSessionTitle: session.Title,
		Sent: &dto.ChatMessageDTO{
			Id:        userMessage.Id,
			Role:      userMessage.Role,
			Chat:      userMessage.Chat,
			CreatedAt: userMessage.CreatedAt,
		},
		Reply: &dto.ChatMessageDTO{
			Id:        personaMessage.Id,
			Role:      personaMessage.Role,
			Chat:      personaMessage.Chat,
			CreatedAt: personaMessage.CreatedAt,
		},
	}, nil
}

// RenameSession sets an explicit title. Explicit titles are never
// overwritten by auto-derivation afterwards.
func (cs *chatService) RenameSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, request *dto.RenameSessionRequest) (*dto.SessionListItemResponse, error) {
	title := strings.TrimSpace(request.Title)
	if title == "" {
		return nil, apperrors.Validation("title is required")
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	session, err := cs.verifySession(ctx, uow, userId, sessionId)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session.Title = title
	session.UpdatedAt = &now
	if err := uow.ChatSessionRepository().Update(ctx, session); err != nil {
		return nil, apperrors.Internal("rename session", err)
	}

	return &dto.SessionListItemResponse{
		Id:        session.Id,
		Title:     session.Title,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}, nil
}

// TruncateSession deletes the session's timeline from the given instant
// onward. Destructive and irreversible; calling it again with the same
// threshold is a no-op.
func (cs *chatService) TruncateSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, from string) (*dto.TruncateSessionResponse, error) {
	threshold, err := time.Parse(time.RFC3339, from)
	if err != nil {
		return nil, apperrors.Validation("invalid truncation timestamp, expected RFC 3339")
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	session, err := cs.verifySession(ctx, uow, userId, sessionId)
	if err != nil {
		return nil, err
	}

	deleted, err := uow.ChatMessageRepository().DeleteByChatSessionIdFrom(ctx, session.Id, threshold)
	if err != nil {
		return nil, apperrors.Internal("truncate session", err)
	}

	cs.touchSession(ctx, uow, session)

	return &dto.TruncateSessionResponse{DeletedCount: deleted}, nil
}

// DeleteSession removes a session and cascades to all its messages.
func (cs *chatService) DeleteSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	session, err := cs.verifySession(ctx, uow, userId, sessionId)
	if err != nil {
		return err
	}

	if err := uow.Begin(ctx); err != nil {
		return apperrors.Internal("begin delete", err)
	}
	defer uow.Rollback()

	if err := uow.ChatSessionRepository().Delete(ctx, session.Id); err != nil {
		return apperrors.Internal("delete session", err)
	}
	if err := uow.ChatMessageRepository().DeleteByChatSessionId(ctx, session.Id); err != nil {
		return apperrors.Internal("delete session messages", err)
	}

	if err := uow.Commit(); err != nil {
		return apperrors.Internal("commit delete", err)
	}

	cs.locks.Delete(session.Id.String())
	return nil
}

// GetFlatHistory serves the deprecated cross-session history listing. It is
// the one surface legacy clients still hit, so it also adopts any sessionless
// messages they left behind.
func (cs *chatService) GetFlatHistory(ctx context.Context, userId uuid.UUID) ([]*dto.FlatHistoryItemResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	if err := cs.repairOrphanMessages(ctx, uow, userId); err != nil {
		return nil, err
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: false},
		specification.OrderBy{Field: "id", Desc: false},
	)
	if err != nil {
		return nil, apperrors.Internal("load flat history", err)
	}

	response := make([]*dto.FlatHistoryItemResponse, 0, len(messages))
	for _, msg := range messages {
		response = append(response, &dto.FlatHistoryItemResponse{
			Role:      msg.Role,
			Chat:      msg.Chat,
			CreatedAt: msg.CreatedAt,
		})
	}

	return response, nil
}

// resolveSession makes session creation an explicit step: an id is
// fetched-and-authorized, no id means a fresh session for the owner.
func (cs *chatService) resolveSession(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, sessionId *uuid.UUID) (*entity.ChatSession, error) {
	if sessionId != nil {
		return cs.verifySession(ctx, uow, userId, *sessionId)
	}

	session := entity.ChatSession{
		Id:        uuid.New(),
		UserId:    userId,
		CreatedAt: time.Now(),
	}
	if err := uow.ChatSessionRepository().Create(ctx, &session); err != nil {
		return nil, apperrors.Internal("create session", err)
	}
	return &session, nil
}

// verifySession validates session ownership. An id alone never authorizes.
func (cs *chatService) verifySession(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID, sessionId uuid.UUID) (*entity.ChatSession, error) {
	session, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return nil, apperrors.Internal("load session", err)
	}
	if session == nil {
		return nil, apperrors.NotFound("session not found or access denied")
	}
	return session, nil
}

// repairOrphanMessages adopts legacy messages without a session into the
// owner's most recent session, creating a single recovery session when the
// owner has none. Running it again finds nothing to adopt.
func (cs *chatService) repairOrphanMessages(ctx context.Context, uow unitofwork.UnitOfWork, userId uuid.UUID) error {
	orphans, err := uow.ChatMessageRepository().Count(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.WithoutSession{},
	)
	if err != nil {
		return apperrors.Internal("count orphan messages", err)
	}
	if orphans == 0 {
		return nil
	}

	target, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return apperrors.Internal("find session for orphan repair", err)
	}

	if target == nil {
		target = &entity.ChatSession{
			Id:        uuid.New(),
			UserId:    userId,
			Title:     constant.LegacySessionTitle,
			CreatedAt: time.Now(),
		}
		if err := uow.ChatSessionRepository().Create(ctx, target); err != nil {
			return apperrors.Internal("create legacy session", err)
		}
	}

	if err := uow.ChatMessageRepository().AttachToSession(ctx, userId, target.Id); err != nil {
		return apperrors.Internal("attach orphan messages", err)
	}

	cs.logger.Info("ChatService", "Adopted orphan messages", map[string]interface{}{
		"user_id":    userId,
		"session_id": target.Id,
		"count":      orphans,
	})
	return nil
}

// recordTurn appends one utterance under the session's append lock, then
// runs the best-effort side effects: auto-titling, recency touch, event
// publication. Side-effect failures are logged and never undo the append.
func (cs *chatService) recordTurn(ctx context.Context, uow unitofwork.UnitOfWork, session *entity.ChatSession, userId uuid.UUID, role string, text string) (*entity.ChatMessage, error) {
	if !constant.IsValidRole(role) {
		return nil, apperrors.Validation("unknown sender role")
	}

	var msg *entity.ChatMessage
	err := cs.locks.WithAppend(session.Id.String(), func(now time.Time) error {
		sessionId := session.Id
		m := entity.ChatMessage{
			Id:            uuid.New(),
			ChatSessionId: &sessionId,
			UserId:        userId,
			Role:          role,
			Chat:          text,
			CreatedAt:     now,
		}
		if err := uow.ChatMessageRepository().Create(ctx, &m); err != nil {
			return err
		}
		msg = &m
		return nil
	})
	if err != nil {
		return nil, apperrors.Internal("append message", err)
	}

	if role == constant.ChatMessageRoleUser && session.Title == "" {
		session.Title = deriveTitle(text)
	}
	cs.touchSession(ctx, uow, session)
	cs.publishTurnRecorded(ctx, session, msg)

	return msg, nil
}

// touchSession bumps recency (and persists any title change). Best-effort.
func (cs *chatService) touchSession(ctx context.Context, uow unitofwork.UnitOfWork, session *entity.ChatSession) {
	now := time.Now()
	session.UpdatedAt = &now
	if err := uow.ChatSessionRepository().Update(ctx, session); err != nil {
		cs.logger.Warn("ChatService", "Failed to touch session", map[string]interface{}{
			"session_id": session.Id,
			"error":      err.Error(),
		})
	}
}

func (cs *chatService) publishTurnRecorded(ctx context.Context, session *entity.ChatSession, msg *entity.ChatMessage) {
	payload, err := json.Marshal(dto.TurnRecordedMessage{
		ChatSessionId: session.Id,
		UserId:        msg.UserId,
		Role:          msg.Role,
		Chat:          msg.Chat,
		CreatedAt:     msg.CreatedAt,
	})
	if err != nil {
		return
	}

	if cs.publisher != nil {
		if err := cs.publisher.Publish(ctx, payload); err != nil {
			cs.logger.Warn("ChatService", "Failed to publish turn event", map[string]interface{}{
				"session_id": session.Id,
				"error":      err.Error(),
			})
		}
	}

	if cs.eventPublisher != nil {
		evt := events.BaseEvent{
			Type: "TURN_RECORDED",
			Data: map[string]interface{}{
				"chat_session_id": session.Id,
				"user_id":         msg.UserId,
				"role":            msg.Role,
			},
			OccurredAt: msg.CreatedAt,
		}
		if err := cs.eventPublisher.Publish(ctx, evt); err != nil {
			cs.logger.Warn("ChatService", "Failed to publish NATS event", map[string]interface{}{
				"session_id": session.Id,
				"error":      err.Error(),
			})
		}
	}
}

// deriveTitle builds the auto-title from the first user message: the first
// 50 characters, with an ellipsis marker when truncation occurred.
func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= constant.SessionTitleMaxLen {
		return text
	}
	return string(runes[:constant.SessionTitleMaxLen]) + constant.SessionTitleEllipsis
}
