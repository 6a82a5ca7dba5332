package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"propertyleads/internal/config"
	"propertyleads/internal/model"
)

// OpenAIModel handles OpenAI-compatible chat completion APIs
type OpenAIModel struct {
	config     *config.OpenAIConfig
	httpClient *http.Client
	extraBody  map[string]any
	logger     *slog.Logger
}

// NewOpenAIModel creates a new OpenAI-compatible client
func NewOpenAIModel(cfg *config.OpenAIConfig, logger *slog.Logger) *OpenAIModel {
	if logger == nil {
		logger = slog.Default()
	}

	var extraBody map[string]any
	if cfg.ChatExtraBody != "" {
		if err := json.Unmarshal([]byte(cfg.ChatExtraBody), &extraBody); err != nil {
			logger.Warn("ignoring OPENAI_CHAT_EXTRA_BODY", "error", err)
			extraBody = nil
		}
	}

	return &OpenAIModel{
		config:    cfg,
		extraBody: extraBody,
		logger:    logger,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}
}

// ChatCompletionRequest represents a chat completion request
type ChatCompletionRequest struct {
	Model       string         `json:"model"`
	Messages    []ChatMessage  `json:"messages"`
	Temperature float64        `json:"temperature,omitempty"`
	TopP        float64        `json:"top_p,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	ExtraBody   map[string]any `json:"extra_body,omitempty"`
}

// ChatMessage represents a single message in the conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionResponse represents the API response
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int         `json:"index"`
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate sends system instructions, history and the new message in one completion
func (c *OpenAIModel) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	messages := make([]ChatMessage, 0, len(req.History)+2)
	if req.SystemInstructions != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: req.SystemInstructions})
	}
	for _, t := range req.History {
		messages = append(messages, ChatMessage{Role: model.NormalizeRole(t.Role), Content: t.Content})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: req.Message})

	resp, err := c.ChatCompletion(ctx, ChatCompletionRequest{Model: req.Model, Messages: messages})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("chat completion returned no content")
	}
	return resp.Choices[0].Message.Content, nil
}

// Invalidate is a no-op: requests carry their instructions every time
func (c *OpenAIModel) Invalidate(ctx context.Context, modelName, systemInstructions string) error {
	return nil
}

// ChatCompletion performs a chat completion request
func (c *OpenAIModel) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if !c.config.Enabled {
		return nil, fmt.Errorf("OpenAI API is not enabled (missing API key)")
	}

	// Use configured model if not specified
	if req.Model == "" {
		req.Model = c.config.ChatModel
	}

	// Apply default parameters from config
	if req.Temperature == 0 && c.config.ChatTemperature > 0 {
		req.Temperature = c.config.ChatTemperature
	}
	if req.TopP == 0 && c.config.ChatTopP > 0 {
		req.TopP = c.config.ChatTopP
	}
	if req.MaxTokens == 0 && c.config.ChatMaxTokens > 0 {
		req.MaxTokens = c.config.ChatMaxTokens
	}
	if req.ExtraBody == nil {
		req.ExtraBody = c.extraBody
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(c.config.APIBase, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.config.APIKey))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncateBody(body, 200))
	}

	var result ChatCompletionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	c.logger.Debug("chat completion", "model", result.Model, "total_tokens", result.Usage.TotalTokens)
	return &result, nil
}

func truncateBody(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}

var _ LanguageModel = (*OpenAIModel)(nil)
