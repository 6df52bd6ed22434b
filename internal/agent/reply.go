package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"voiceagent-platform/internal/config"
)

// ErrReplyUnavailable wraps any reply-generator failure. The turn flow treats
// it as a signal to fall back to deterministic replies, never as a turn error.
var ErrReplyUnavailable = errors.New("agent: reply generator unavailable")

// Message is one prior turn handed to the generator as context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ReplyGenerator produces the next assistant utterance. Implementations are
// opaque: prompt and transcript in, text out, error on any failure.
type ReplyGenerator interface {
	Reply(ctx context.Context, system string, messages []Message) (string, error)
}

// OpenAIGenerator calls the chat-completions API over plain HTTP. No SDK, by
// the same reasoning the TwiML builder avoids the provider SDK.
type OpenAIGenerator struct {
	client  *http.Client
	apiKey  string
	model   string
	baseURL string
}

func NewOpenAIGenerator(cfg config.OpenAIConfig) *OpenAIGenerator {
	return &OpenAIGenerator{
		client:  &http.Client{Timeout: cfg.Timeout},
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (g *OpenAIGenerator) Reply(ctx context.Context, system string, messages []Message) (string, error) {
	if g.apiKey == "" {
		return "", fmt.Errorf("%w: no api key configured", ErrReplyUnavailable)
	}

	payload := chatRequest{
		Model:       g.model,
		Messages:    append([]Message{{Role: "system", Content: system}}, messages...),
		Temperature: 0.7,
		MaxTokens:   100,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrReplyUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrReplyUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrReplyUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrReplyUnavailable, resp.StatusCode, snippet)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrReplyUnavailable, err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: empty completion", ErrReplyUnavailable)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
