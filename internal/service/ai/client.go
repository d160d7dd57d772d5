package ai

import (
	"context"
	"errors"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ismail-jr/studymate-backend/internal/config"
	"github.com/ismail-jr/studymate-backend/internal/model/chat"
)

// CompletionError wraps any failure of one completion round trip: transport
// errors, non-2xx statuses, or a response without choices. The session treats
// every CompletionError as recoverable.
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion: %v", e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// Client sends bounded conversation windows to the remote model. One request
// per call, no retries; retry policy belongs to the caller.
type Client struct {
	api *openai.Client
	cfg config.AIConfig
}

// NewClient builds a completion client for the configured endpoint.
func NewClient(cfg config.AIConfig) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		api: openai.NewClientWithConfig(clientConfig),
		cfg: cfg,
	}
}

// Complete sends the window, trimmed to the configured most-recent turns and
// prefixed with the assistant persona, and returns the generated text.
func (c *Client) Complete(ctx context.Context, window []chat.Turn) (string, error) {
	window = trimWindow(window, c.cfg.HistoryLimit)

	messages := make([]openai.ChatCompletionMessage, 0, len(window)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, turn := range window {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.cfg.Model,
		Messages:  messages,
		MaxTokens: c.cfg.MaxTokens,
	})
	if err != nil {
		return "", &CompletionError{Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &CompletionError{Err: errors.New("response contained no choices")}
	}

	reply := resp.Choices[0].Message.Content
	log.Printf("[ai] completion ok, window=%d reply_len=%d", len(window), len(reply))
	return reply, nil
}

// trimWindow keeps the most recent limit turns.
func trimWindow(window []chat.Turn, limit int) []chat.Turn {
	if limit <= 0 || len(window) <= limit {
		return window
	}
	return window[len(window)-limit:]
}
