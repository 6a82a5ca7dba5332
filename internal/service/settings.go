package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"propertyleads/internal/model"
)

// DefaultSystemInstructions is the built-in assistant persona
const DefaultSystemInstructions = `You are the AI assistant of Lahore Property Guide, helping buyers find plots, houses and flats in Lahore.

Keep every reply short: one or two sentences, no lists, no headings, no advice.
Reply in the language the user writes in (English, Urdu or Roman Urdu).`

// DefaultConversationInstructions is the built-in conversation flow
const DefaultConversationInstructions = `Ask exactly one question at a time, in this order:
  1. What are you looking for? (plot / house / flat)
  2. What is your budget? (lac / crore)
  3. Which location? (DHA, Bahria Town, Gulberg ...)
  4. Your name?
  5. Your WhatsApp number?
Once the user has told you an area, type or budget, end your reply with
FILTER_CRITERIA:{"area":"DHA","type":"plot","budget_max_lac":500}
Once you have both a name and a phone number, end your reply with
LEAD_COLLECTED:{"name":"...","phone":"...","budget":"...","interest":"..."}
Write plain text. Do not use code fences.`

var assistantKeys = []string{
	model.SettingSystemInstructions,
	model.SettingConversationInstructions,
	model.SettingAssistantModel,
}

// SettingsService reads and writes the admin-tunable settings. Nothing is cached:
// every read goes to the store so edits apply to the next request.
type SettingsService struct {
	store        SettingsStore
	defaultModel string
	logger       *slog.Logger
}

// NewSettingsService creates a settings service
func NewSettingsService(store SettingsStore, defaultModel string, logger *slog.Logger) *SettingsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsService{
		store:        store,
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// LeadExpiry returns the current claim window. A missing or unusable stored
// value falls back to the default.
func (s *SettingsService) LeadExpiry(ctx context.Context) (time.Duration, error) {
	minutes, err := s.leadExpireMinutes(ctx)
	if err != nil {
		return 0, err
	}
	return time.Duration(minutes) * time.Minute, nil
}

// GetLeadExpiry returns the admin view of the claim window
func (s *SettingsService) GetLeadExpiry(ctx context.Context) (*model.LeadExpirySetting, error) {
	minutes, err := s.leadExpireMinutes(ctx)
	if err != nil {
		return nil, err
	}
	return &model.LeadExpirySetting{LeadExpireMinutes: minutes}, nil
}

// SetLeadExpiry stores a new claim window in minutes
func (s *SettingsService) SetLeadExpiry(ctx context.Context, minutes int) (*model.LeadExpirySetting, error) {
	if minutes < model.MinLeadExpireMinutes || minutes > model.MaxLeadExpireMinutes {
		return nil, fmt.Errorf("%w: leadExpireMinutes must be between %d and %d",
			ErrInvalidSetting, model.MinLeadExpireMinutes, model.MaxLeadExpireMinutes)
	}
	if err := s.store.SetSettings(ctx, map[string]string{model.SettingLeadExpireMinutes: strconv.Itoa(minutes)}); err != nil {
		return nil, err
	}
	s.logger.Info("lead expiry updated", "minutes", minutes)
	return &model.LeadExpirySetting{LeadExpireMinutes: minutes}, nil
}

func (s *SettingsService) leadExpireMinutes(ctx context.Context) (int, error) {
	rows, err := s.store.GetSettings(ctx, model.SettingLeadExpireMinutes)
	if err != nil {
		return 0, err
	}
	row, ok := rows[model.SettingLeadExpireMinutes]
	if !ok {
		return model.DefaultLeadExpireMinutes, nil
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(row.Value))
	if err != nil || minutes < model.MinLeadExpireMinutes || minutes > model.MaxLeadExpireMinutes {
		s.logger.Warn("ignoring stored lead expiry", "value", row.Value)
		return model.DefaultLeadExpireMinutes, nil
	}
	return minutes, nil
}

// Assistant returns the effective assistant instructions, filling defaults for unset keys
func (s *SettingsService) Assistant(ctx context.Context) (*model.AssistantSettings, error) {
	rows, err := s.store.GetSettings(ctx, assistantKeys...)
	if err != nil {
		return nil, err
	}

	out := &model.AssistantSettings{
		SystemInstructions:       DefaultSystemInstructions,
		ConversationInstructions: DefaultConversationInstructions,
		Model:                    s.defaultModel,
	}
	var latest time.Time
	apply := func(key string, dst *string) {
		row, ok := rows[key]
		if !ok || strings.TrimSpace(row.Value) == "" {
			return
		}
		*dst = row.Value
		if row.UpdatedAt.After(latest) {
			latest = row.UpdatedAt
		}
	}
	apply(model.SettingSystemInstructions, &out.SystemInstructions)
	apply(model.SettingConversationInstructions, &out.ConversationInstructions)
	apply(model.SettingAssistantModel, &out.Model)
	if !latest.IsZero() {
		out.UpdatedAt = &latest
	}
	return out, nil
}

// UpdateAssistant applies a partial update. A blank value restores that field's default.
func (s *SettingsService) UpdateAssistant(ctx context.Context, update model.AssistantSettingsUpdate) (*model.AssistantSettings, error) {
	set := map[string]string{}
	var clear []string

	stage := func(key string, v *string) {
		if v == nil {
			return
		}
		if strings.TrimSpace(*v) == "" {
			clear = append(clear, key)
			return
		}
		set[key] = strings.TrimSpace(*v)
	}
	stage(model.SettingSystemInstructions, update.SystemInstructions)
	stage(model.SettingConversationInstructions, update.ConversationInstructions)
	stage(model.SettingAssistantModel, update.Model)

	if len(set) == 0 && len(clear) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	if err := s.store.SetSettings(ctx, set); err != nil {
		return nil, err
	}
	if len(clear) > 0 {
		if err := s.store.DeleteSettings(ctx, clear...); err != nil {
			return nil, err
		}
	}

	s.logger.Info("assistant settings updated", "updated", len(set), "reset", len(clear))
	return s.Assistant(ctx)
}

// ResetAssistant drops every stored assistant override
func (s *SettingsService) ResetAssistant(ctx context.Context) (*model.AssistantSettings, error) {
	if err := s.store.DeleteSettings(ctx, assistantKeys...); err != nil {
		return nil, err
	}
	s.logger.Info("assistant settings reset to defaults")
	return s.Assistant(ctx)
}
