package history

import (
	"context"

	"rizal-chat-be/internal/constant"
	"rizal-chat-be/internal/entity"
	"rizal-chat-be/internal/repository/contract"
	"rizal-chat-be/internal/repository/specification"

	"rizal-chat-be/pkg/llm"
)

// Builder assembles the bounded context window submitted for completion.
// It is a pure read-then-transform component: no retained state between
// calls and no knowledge of the gateway's transport.
type Builder struct {
	maxPairs     int
	systemPrompt string
}

func NewBuilder(maxPairs int, systemPrompt string) *Builder {
	return &Builder{
		maxPairs:     maxPairs,
		systemPrompt: systemPrompt,
	}
}

// Build returns the ordered turn list for one completion call: one system
// turn, up to 2*maxPairs prior turns in chronological order, and the current
// user message last. The current message is excluded from the history fetch
// by id, never by text, so earlier messages with identical content survive.
func (b *Builder) Build(ctx context.Context, messages contract.ChatMessageRepository, session *entity.ChatSession, current *entity.ChatMessage) ([]llm.Message, error) {
	prior, err := messages.FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: session.Id},
		specification.ExcludeID{ID: current.Id},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.OrderBy{Field: "id", Desc: true},
		specification.Pagination{Limit: 2 * b.maxPairs},
	)
	if err != nil {
		return nil, err
	}

	turns := make([]llm.Message, 0, len(prior)+2)
	turns = append(turns, llm.Message{
		Role:    "system",
		Content: b.systemPrompt,
	})

	// prior is newest-first; walk it backwards to restore chronology.
	for i := len(prior) - 1; i >= 0; i-- {
		msg := prior[i]
		role := "user"
		if msg.Role == constant.ChatMessageRolePersona {
			role = "assistant"
		}
		turns = append(turns, llm.Message{
			Role:    role,
			Content: msg.Chat,
		})
	}

	turns = append(turns, llm.Message{
		Role:    "user",
		Content: current.Chat,
	})

	return turns, nil
}
