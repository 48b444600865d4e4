package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"rizal-chat-be/internal/constant"
	"rizal-chat-be/internal/entity"
	"rizal-chat-be/internal/repository/specification"
	"rizal-chat-be/internal/repository/unitofwork"
	"rizal-chat-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormConnection(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	// Verify Wiring
	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(context.Background())

	assert.NotNil(t, uow.ChatSessionRepository())
	assert.NotNil(t, uow.ChatMessageRepository())

	// Basic Ping
	sqlDB, _ := gormDB.DB()
	err = sqlDB.Ping()
	assert.NoError(t, err)
	t.Log("Successfully connected to DB and initialized UnitOfWork Factory")

	ctx := context.Background()
	userId := uuid.New()

	t.Run("Session And Message Round Trip", func(t *testing.T) {
		session := &entity.ChatSession{
			Id:        uuid.New(),
			UserId:    userId,
			Title:     "Integration Session",
			CreatedAt: time.Now(),
		}
		require.NoError(t, uow.ChatSessionRepository().Create(ctx, session))
		defer func() {
			_ = uow.ChatMessageRepository().DeleteByChatSessionId(ctx, session.Id)
			_ = uow.ChatSessionRepository().Delete(ctx, session.Id)
		}()

		sessionId := session.Id
		message := &entity.ChatMessage{
			Id:            uuid.New(),
			ChatSessionId: &sessionId,
			UserId:        userId,
			Role:          constant.ChatMessageRoleUser,
			Chat:          "integration test message",
			CreatedAt:     time.Now(),
		}
		require.NoError(t, uow.ChatMessageRepository().Create(ctx, message))

		found, err := uow.ChatSessionRepository().FindOne(ctx,
			specification.ByID{ID: session.Id},
			specification.UserOwnedBy{UserID: userId},
		)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "Integration Session", found.Title)

		count, err := uow.ChatMessageRepository().Count(ctx,
			specification.ByChatSessionID{ChatSessionID: session.Id},
		)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("Last Message Preview Column", func(t *testing.T) {
		session := &entity.ChatSession{
			Id:        uuid.New(),
			UserId:    userId,
			Title:     "Preview Session",
			CreatedAt: time.Now(),
		}
		require.NoError(t, uow.ChatSessionRepository().Create(ctx, session))
		defer func() {
			_ = uow.ChatSessionRepository().Delete(ctx, session.Id)
		}()

		preview := &entity.LastMessagePreview{
			Role:      constant.ChatMessageRolePersona,
			Chat:      "a cached preview",
			CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		}
		require.NoError(t, uow.ChatSessionRepository().UpdateLastMessage(ctx, session.Id, preview))

		found, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: session.Id})
		require.NoError(t, err)
		require.NotNil(t, found)
		require.NotNil(t, found.LastMessage)
		assert.Equal(t, "a cached preview", found.LastMessage.Chat)
	})

	t.Run("Truncate Deletes Suffix", func(t *testing.T) {
		session := &entity.ChatSession{
			Id:        uuid.New(),
			UserId:    userId,
			Title:     "Truncate Session",
			CreatedAt: time.Now(),
		}
		require.NoError(t, uow.ChatSessionRepository().Create(ctx, session))
		defer func() {
			_ = uow.ChatMessageRepository().DeleteByChatSessionId(ctx, session.Id)
			_ = uow.ChatSessionRepository().Delete(ctx, session.Id)
		}()

		base := time.Now().Add(-time.Hour)
		sessionId := session.Id
		for i := 0; i < 3; i++ {
			require.NoError(t, uow.ChatMessageRepository().Create(ctx, &entity.ChatMessage{
				Id:            uuid.New(),
				ChatSessionId: &sessionId,
				UserId:        userId,
				Role:          constant.ChatMessageRoleUser,
				Chat:          "msg",
				CreatedAt:     base.Add(time.Duration(i) * time.Minute),
			}))
		}

		deleted, err := uow.ChatMessageRepository().DeleteByChatSessionIdFrom(ctx, session.Id, base.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, int64(2), deleted)

		count, err := uow.ChatMessageRepository().Count(ctx,
			specification.ByChatSessionID{ChatSessionID: session.Id},
		)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}
