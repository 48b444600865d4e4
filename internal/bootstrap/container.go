package bootstrap

import (
	"context"
	"log"

	"rizal-chat-be/internal/config"
	"rizal-chat-be/internal/constant"
	"rizal-chat-be/internal/controller"
	"rizal-chat-be/internal/pkg/logger"
	"rizal-chat-be/internal/repository/memory"
	"rizal-chat-be/internal/repository/unitofwork"
	"rizal-chat-be/internal/service"
	"rizal-chat-be/internal/websocket"
	"rizal-chat-be/pkg/chat/history"
	"rizal-chat-be/pkg/llm/factory"

	pktNats "rizal-chat-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController controller.IChatController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	WebSocketHub *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Completion Gateway
	provider, err := factory.NewCompletionProvider(
		cfg.Gateway.Provider,
		cfg.Gateway.Model,
		cfg.Gateway.OpenRouterKey,
		cfg.Gateway.OllamaBaseURL,
		cfg.Gateway.Referer,
		cfg.Gateway.Title,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize completion provider: %v", err)
	}
	log.Printf("[INFO] Using completion provider: %s (%s)", cfg.Gateway.Provider, cfg.Gateway.Model)

	// 3.5 Infrastructure
	// NATS mirror for external consumers, best-effort
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis for cross-instance websocket fan-out, best-effort
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
		rdb = nil
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/ws.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 4. Services
	publisherService := service.NewPublisherService(cfg.Chat.TurnTopicName, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Chat.TurnTopicName,
		uowFactory,
		wsHub,
	)

	contextBuilder := history.NewBuilder(cfg.Chat.MaxPairs, constant.PersonaSystemPrompt)
	sessionLocks := memory.NewSessionLockRegistry()

	chatService := service.NewChatService(
		uowFactory,
		provider,
		contextBuilder,
		sessionLocks,
		publisherService,
		natsPub,
		sysLogger,
	)

	// 5. Controllers
	return &Container{
		ChatController:  controller.NewChatController(chatService, wsHub),
		ConsumerService: consumerService,
		WebSocketHub:    wsHub,
	}
}
