package service

import (
	"context"
	"encoding/json"
	"log"

	"rizal-chat-be/internal/constant"
	"rizal-chat-be/internal/dto"
	"rizal-chat-be/internal/entity"
	"rizal-chat-be/internal/repository/unitofwork"
	"rizal-chat-be/internal/websocket"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService refreshes cached session metadata off the request path.
// The last-message preview is derived data; losing one update is harmless
// because the next turn rewrites it.
type consumerService struct {
	pubSub     *gochannel.GoChannel
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	hub        *websocket.Hub
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	hub *websocket.Hub,
) IConsumerService {
	return &consumerService{
		pubSub:     pubSub,
		topicName:  topicName,
		uowFactory: uowFactory,
		hub:        hub,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.TurnRecordedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal turn event: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	preview := payload.Chat
	if runes := []rune(preview); len(runes) > constant.LastMessagePreviewMaxLen {
		preview = string(runes[:constant.LastMessagePreviewMaxLen]) + constant.SessionTitleEllipsis
	}

	err := uow.ChatSessionRepository().UpdateLastMessage(ctx, payload.ChatSessionId, &entity.LastMessagePreview{
		Role:      payload.Role,
		Chat:      preview,
		CreatedAt: payload.CreatedAt,
	})
	if err != nil {
		log.Printf("[ERROR] Failed to refresh last message for session %s: %v", payload.ChatSessionId, err)
		msg.Nack() // Nack for retriable errors
		return
	}

	if cs.hub != nil {
		cs.hub.SendTurnEvent(payload.UserId, dto.TurnEventDTO{
			ChatSessionId: payload.ChatSessionId,
			Role:          payload.Role,
			Chat:          payload.Chat,
			CreatedAt:     payload.CreatedAt,
		})
	}

	msg.Ack()
}
