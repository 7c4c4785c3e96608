package prospect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hazyhaar/prospect/horosafe"
	"github.com/hazyhaar/prospect/prospect/internal/pipeline"
)

// PainPointExtractor derives pain-point text from normalized page content.
type PainPointExtractor = pipeline.PainPointExtractor

// Placeholder always returns PlaceholderPainPoints.
type Placeholder = pipeline.Placeholder

const painPointPrompt = `You analyse industry articles for a B2B sales team.
List the concrete business pain points the text describes, one per line,
each starting with "- ". If there are none, answer "none".`

const maxLLMResponse = 1 << 20

// ChatExtractor asks a chat completions deployment for the pain points of
// a text.
type ChatExtractor struct {
	cfg    LLMConfig
	client *http.Client
	logger *slog.Logger
}

// NewChatExtractor returns an extractor for cfg. Endpoint, APIKey and Model
// are required.
func NewChatExtractor(cfg LLMConfig, logger *slog.Logger) (*ChatExtractor, error) {
	cfg.defaults()
	if cfg.Endpoint == "" || cfg.APIKey == "" || cfg.Model == "" {
		return nil, fmt.Errorf("%w: llm endpoint, api key and model are required", ErrInvalidInput)
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("%w: llm endpoint: %v", ErrInvalidInput, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatExtractor{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Extract implements PainPointExtractor.
func (c *ChatExtractor) Extract(ctx context.Context, text string) (string, error) {
	if r := []rune(text); len(r) > c.cfg.MaxInputChars {
		text = string(r[:c.cfg.MaxInputChars])
	}
	body, err := json.Marshal(chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: painPointPrompt},
			{Role: "user", Content: text},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.completionsURL(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: post: %w", err)
	}
	defer resp.Body.Close()

	data, err := horosafe.LimitedReadAll(resp.Body, maxLLMResponse)
	if err != nil {
		return "", fmt.Errorf("llm: read: %w", err)
	}
	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("llm: decode (http %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("llm: http %d: %s", resp.StatusCode, msg)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("llm: empty response")
	}
	answer := strings.TrimSpace(out.Choices[0].Message.Content)
	if answer == "" {
		return "", errors.New("llm: empty answer")
	}
	c.logger.Debug("llm: pain points extracted", "chars", len(answer))
	return answer, nil
}

func (c *ChatExtractor) completionsURL() string {
	return strings.TrimRight(c.cfg.Endpoint, "/") +
		"/openai/deployments/" + url.PathEscape(c.cfg.Model) +
		"/chat/completions?api-version=" + url.QueryEscape(c.cfg.APIVersion)
}
