package llm

import (
	"context"
)

// Message is one role-tagged turn in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// CompletionProvider is the contract for any completion backend. The chat
// service only depends on this, so tests substitute a fake without touching
// storage logic.
type CompletionProvider interface {
	// Chat sends an ordered turn list to the model and returns the reply
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)
}
