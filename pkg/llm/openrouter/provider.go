package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"rizal-chat-be/internal/pkg/apperrors"
	"rizal-chat-be/pkg/llm"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

type OpenRouterProvider struct {
	BaseURL   string
	APIKey    string
	ModelName string
	Referer   string
	Title     string
	Client    *http.Client
}

// Ensure OpenRouterProvider implements CompletionProvider
var _ llm.CompletionProvider = &OpenRouterProvider{}

func NewOpenRouterProvider(apiKey, modelName, referer, title string) *OpenRouterProvider {
	return &OpenRouterProvider{
		BaseURL:   defaultBaseURL,
		APIKey:    apiKey,
		ModelName: modelName,
		Referer:   referer,
		Title:     title,
		Client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// --- Request/Response structs (Internal to this package) ---

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// --- Interface Implementation ---

func (o *OpenRouterProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	// Misconfiguration is detected before any network attempt so operators
	// can tell it apart from a degraded service.
	if o.APIKey == "" {
		return "", apperrors.Configuration("openrouter api key is not configured")
	}

	options := &llm.Options{}
	for _, opt := range opts {
		opt(options)
	}

	model := o.ModelName
	if options.Model != "" {
		model = options.Model
	}

	messages := make([]chatMessage, len(history))
	for i, msg := range history {
		messages[i] = chatMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	payloadBytes, err := json.Marshal(chatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		return "", apperrors.Gateway("marshal request", err)
	}

	url := o.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return "", apperrors.Gateway("create request", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", o.Referer)
	req.Header.Set("X-Title", o.Title)

	resp, err := o.Client.Do(req)
	if err != nil {
		return "", apperrors.Gateway("openrouter request failed", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.Gateway("read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.Gateway(
			fmt.Sprintf("openrouter error: status %d", resp.StatusCode),
			fmt.Errorf("body: %s", string(bodyBytes)),
		)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(bodyBytes, &completion); err != nil {
		return "", apperrors.Gateway("unmarshal response", err)
	}
	if len(completion.Choices) == 0 || completion.Choices[0].Message.Content == "" {
		return "", apperrors.Gateway("openrouter returned an empty completion", nil)
	}

	return completion.Choices[0].Message.Content, nil
}
