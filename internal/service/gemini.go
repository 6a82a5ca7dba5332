package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"propertyleads/internal/config"
	"propertyleads/internal/model"
)

const geminiCacheDisplayName = "property-assistant-instructions"

// GeminiModel talks to Google Gemini. With a context cache configured, the system
// instructions are uploaded once as provider cached content and reused.
type GeminiModel struct {
	client       *genai.Client
	cache        ContextCache
	defaultModel string
	ttl          time.Duration
	logger       *slog.Logger
}

// NewGeminiModel creates a Gemini client. cache may be NoopContextCache.
func NewGeminiModel(ctx context.Context, cfg *config.GeminiConfig, cache ContextCache, logger *slog.Logger) (*GeminiModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is not configured")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	if cache == nil {
		cache = NoopContextCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiModel{
		client:       client,
		cache:        cache,
		defaultModel: cfg.Model,
		ttl:          time.Duration(cfg.CacheTTLMinutes) * time.Minute,
		logger:       logger,
	}, nil
}

// Close releases the underlying client
func (g *GeminiModel) Close() error {
	return g.client.Close()
}

// Generate sends the history and new message as a chat session
func (g *GeminiModel) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = g.defaultModel
	}

	cachedName, err := g.cache.GetOrCreate(ctx, Fingerprint(modelName, req.SystemInstructions), func(ctx context.Context) (string, error) {
		return g.createCachedContent(ctx, modelName, req.SystemInstructions)
	})
	if err != nil {
		g.logger.Warn("model context cache unavailable, calling uncached", "model", modelName, "error", err)
		cachedName = ""
	}

	m := g.client.GenerativeModel(modelName)
	if cachedName != "" {
		m.CachedContentName = cachedName
	} else if req.SystemInstructions != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemInstructions)}}
	}

	history, message := buildGeminiHistory(req.History, req.Message)
	cs := m.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(message))
	if err != nil {
		if cachedName != "" && isCachedContentError(err) {
			return "", fmt.Errorf("%w: %v", ErrContextExpired, err)
		}
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini generate: empty response")
	}
	return text, nil
}

// Invalidate forgets the cached context for (modelName, systemInstructions) and
// deletes it on the provider side
func (g *GeminiModel) Invalidate(ctx context.Context, modelName, systemInstructions string) error {
	if modelName == "" {
		modelName = g.defaultModel
	}
	name, err := g.cache.Invalidate(ctx, Fingerprint(modelName, systemInstructions))
	if err != nil {
		return err
	}
	if name == "" {
		return nil
	}
	if err := g.client.DeleteCachedContent(ctx, name); err != nil {
		g.logger.Warn("cached content delete skipped", "name", name, "error", err)
	}
	return nil
}

func (g *GeminiModel) createCachedContent(ctx context.Context, modelName, instructions string) (string, error) {
	cc, err := g.client.CreateCachedContent(ctx, &genai.CachedContent{
		Model:             modelName,
		DisplayName:       geminiCacheDisplayName,
		SystemInstruction: &genai.Content{Parts: []genai.Part{genai.Text(instructions)}},
		Expiration:        genai.ExpireTimeOrTTL{TTL: g.ttl},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create cached content: %w", err)
	}
	g.logger.Info("model context cached", "model", modelName, "name", cc.Name, "ttl", g.ttl)
	return cc.Name, nil
}

// buildGeminiHistory converts stored turns into Gemini chat contents. Gemini
// wants the history to start with the user and alternate roles, so leading
// assistant turns are dropped and consecutive turns of one role are merged.
// Trailing user turns are folded into the outgoing message.
func buildGeminiHistory(turns []model.Turn, message string) ([]*genai.Content, string) {
	var history []*genai.Content
	var lastRole string

	for _, t := range turns {
		role := "user"
		if model.NormalizeRole(t.Role) == model.RoleAssistant {
			role = "model"
		}
		if len(history) == 0 && role == "model" {
			continue
		}
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		if role == lastRole {
			history[len(history)-1].Parts = append(history[len(history)-1].Parts, genai.Text(t.Content))
			continue
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(t.Content)}})
		lastRole = role
	}

	if n := len(history); n > 0 && history[n-1].Role == "user" {
		var parts []string
		for _, p := range history[n-1].Parts {
			if txt, ok := p.(genai.Text); ok {
				parts = append(parts, string(txt))
			}
		}
		message = strings.Join(append(parts, message), "\n")
		history = history[:n-1]
	}

	return history, message
}

// isCachedContentError reports whether a failure looks like the cached content
// expired or vanished on the provider side
func isCachedContentError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, k := range []string{"expired", "not found", "invalid", "404", "cached"} {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

var _ LanguageModel = (*GeminiModel)(nil)
