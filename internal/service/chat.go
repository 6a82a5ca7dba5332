package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"propertyleads/internal/model"
)

// MaxThreadIDLength matches the storage column for thread ids
const MaxThreadIDLength = 100

// DegradedReply is shown when the language model cannot answer
const DegradedReply = "Sorry, I'm having trouble answering right now. Please try again in a moment."

// AssistantSource supplies the current assistant instructions
type AssistantSource interface {
	Assistant(ctx context.Context) (*model.AssistantSettings, error)
}

// ChatOptions bounds the conversation pipeline
type ChatOptions struct {
	// MaxContextMessages is the number of prior turns sent with each new message
	MaxContextMessages int
	// StoredTurnLimit bounds how many stored turns are loaded per request
	StoredTurnLimit int
	ModelTimeout    time.Duration
}

// ChatService runs one conversation turn: history, model call, interpretation,
// search, lead capture and persistence.
//
// Two concurrent requests on the same thread are not serialized; both read the
// same history and their turns interleave in storage.
type ChatService struct {
	turns       TurnStore
	llm         LanguageModel
	assistant   AssistantSource
	interpreter *Interpreter
	resolver    *FilterResolver
	capture     *LeadCapture
	opts        ChatOptions
	logger      *slog.Logger
}

// NewChatService creates the conversation orchestrator
func NewChatService(
	turns TurnStore,
	llm LanguageModel,
	assistant AssistantSource,
	interpreter *Interpreter,
	resolver *FilterResolver,
	capture *LeadCapture,
	opts ChatOptions,
	logger *slog.Logger,
) *ChatService {
	if opts.MaxContextMessages <= 0 {
		opts.MaxContextMessages = 8
	}
	if opts.StoredTurnLimit <= 0 {
		opts.StoredTurnLimit = 50
	}
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		turns:       turns,
		llm:         llm,
		assistant:   assistant,
		interpreter: interpreter,
		resolver:    resolver,
		capture:     capture,
		opts:        opts,
		logger:      logger,
	}
}

// Respond handles one inbound user message
func (s *ChatService) Respond(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	threadID := strings.TrimSpace(req.ThreadID)
	if threadID == "" {
		threadID = uuid.NewString()
	}
	if utf8.RuneCountInString(threadID) > MaxThreadIDLength {
		return nil, fmt.Errorf("%w: threadId longer than %d characters", ErrInvalidInput, MaxThreadIDLength)
	}

	conversation, err := s.loadConversation(ctx, threadID, req.Messages)
	if err != nil {
		return nil, err
	}
	conversation = append(conversation, model.Turn{Role: model.RoleUser, Content: query})

	window := conversation
	if len(window) > s.opts.MaxContextMessages+1 {
		window = window[len(window)-(s.opts.MaxContextMessages+1):]
	}

	settings, err := s.assistant.Assistant(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := s.generate(ctx, GenerateRequest{
		SystemInstructions: settings.Prompt(),
		Model:              settings.Model,
		History:            window[:len(window)-1],
		Message:            query,
	})
	if err != nil {
		s.logger.Error("language model failed", "thread_id", threadID, "error", err)
		return &model.ChatResponse{
			Question: DegradedReply,
			Listings: []model.Property{},
			ThreadID: threadID,
		}, nil
	}

	interp := s.interpreter.Interpret(raw)

	criteria := s.resolver.Resolve(ctx, interp.Criteria, conversation)
	result, err := s.resolver.Search(ctx, criteria)
	if err != nil {
		return nil, err
	}

	candidate := interp.Lead
	if candidate == nil {
		candidate = FallbackCandidate(conversation)
	}
	// Turns are written before the lead. A failed capture only loses the lead for
	// this turn; a later capture on the thread upserts into the same row.
	err = s.turns.AppendTurns(ctx, threadID, []model.Turn{
		{Role: model.RoleUser, Content: query},
		{Role: model.RoleAssistant, Content: interp.Message},
	})
	if err != nil {
		return nil, err
	}

	leadID, err := s.capture.Capture(ctx, candidate, threadID, interp.Message, conversation)
	if err != nil {
		s.logger.Error("lead capture failed", "thread_id", threadID, "error", err)
		leadID = ""
	}

	resp := &model.ChatResponse{
		Question:          interp.Message,
		Listings:          result.Listings,
		FilterCriteria:    criteria,
		FilterDescription: result.Description,
		ThreadID:          threadID,
	}
	if leadID != "" {
		info := *candidate
		info.LeadID = leadID
		resp.LeadInfo = &info
		resp.LeadID = &leadID
	}

	s.logger.Info("chat turn",
		"thread_id", threadID,
		"filter", result.Description,
		"listings", len(result.Listings),
		"lead_id", leadID,
	)
	return resp, nil
}

// loadConversation returns the stored turns of the thread, or the client's
// copy when nothing is stored yet. Assistant turns are reduced to display text.
func (s *ChatService) loadConversation(ctx context.Context, threadID string, messages []model.ChatMessage) ([]model.Turn, error) {
	stored, err := s.turns.LoadTurns(ctx, threadID, s.opts.StoredTurnLimit)
	if err != nil {
		return nil, err
	}

	conversation := stored
	if len(conversation) == 0 {
		for _, m := range messages {
			if strings.TrimSpace(m.Content) == "" {
				continue
			}
			conversation = append(conversation, model.Turn{Role: model.NormalizeRole(m.Role), Content: m.Content})
		}
	}

	out := make([]model.Turn, 0, len(conversation)+1)
	for _, t := range conversation {
		t.Role = model.NormalizeRole(t.Role)
		if t.Role == model.RoleAssistant {
			t.Content = s.interpreter.CleanMessage(t.Content)
		}
		out = append(out, t)
	}
	return out, nil
}

// generate calls the model with a per-call timeout. An expired provider context
// or a timeout is retried exactly once after dropping the cached context.
func (s *ChatService) generate(ctx context.Context, req GenerateRequest) (string, error) {
	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.opts.ModelTimeout)
		raw, err := s.llm.Generate(callCtx, req)
		cancel()
		if err == nil {
			return raw, nil
		}

		retryable := errors.Is(err, ErrContextExpired) || errors.Is(err, context.DeadlineExceeded)
		if attempt > 0 || !retryable || ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", ErrAssistantUnavailable, err)
		}

		s.logger.Warn("retrying model call with a fresh context", "error", err)
		if ierr := s.llm.Invalidate(ctx, req.Model, req.SystemInstructions); ierr != nil {
			s.logger.Warn("failed to invalidate model context", "error", ierr)
		}
	}
}
