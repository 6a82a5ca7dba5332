package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"propertyleads/internal/model"
)

func TestSettingsService_LeadExpiry(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		stored string
		want   time.Duration
	}{
		{"unset uses default", "", 5 * time.Minute},
		{"stored value", "12", 12 * time.Minute},
		{"garbage uses default", "soon", 5 * time.Minute},
		{"out of range uses default", "600", 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			if tt.stored != "" {
				_ = store.SetSettings(ctx, map[string]string{model.SettingLeadExpireMinutes: tt.stored})
			}
			s := NewSettingsService(store, "gemini-1.5-flash", nil)

			got, err := s.LeadExpiry(ctx)
			if err != nil {
				t.Fatalf("LeadExpiry() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("LeadExpiry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSettingsService_SetLeadExpiry(t *testing.T) {
	ctx := context.Background()

	for _, minutes := range []int{0, -3, 61} {
		store := newMemStore()
		s := NewSettingsService(store, "", nil)
		if _, err := s.SetLeadExpiry(ctx, minutes); !errors.Is(err, ErrInvalidSetting) {
			t.Errorf("SetLeadExpiry(%d) error = %v, want ErrInvalidSetting", minutes, err)
		}
		if len(store.settings) != 0 {
			t.Errorf("SetLeadExpiry(%d) wrote a setting", minutes)
		}
	}

	store := newMemStore()
	s := NewSettingsService(store, "", nil)
	for _, minutes := range []int{1, 60} {
		if _, err := s.SetLeadExpiry(ctx, minutes); err != nil {
			t.Fatalf("SetLeadExpiry(%d) error = %v", minutes, err)
		}
		got, _ := s.GetLeadExpiry(ctx)
		if got.LeadExpireMinutes != minutes {
			t.Errorf("GetLeadExpiry() = %d, want %d", got.LeadExpireMinutes, minutes)
		}
	}
}

func TestSettingsService_Assistant(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := NewSettingsService(store, "gemini-1.5-flash", nil)

	got, err := s.Assistant(ctx)
	if err != nil {
		t.Fatalf("Assistant() error = %v", err)
	}
	if got.SystemInstructions != DefaultSystemInstructions || got.Model != "gemini-1.5-flash" || got.UpdatedAt != nil {
		t.Errorf("unexpected defaults %+v", got)
	}

	persona := "You are a terse broker."
	got, err = s.UpdateAssistant(ctx, model.AssistantSettingsUpdate{SystemInstructions: &persona})
	if err != nil {
		t.Fatalf("UpdateAssistant() error = %v", err)
	}
	if got.SystemInstructions != persona || got.ConversationInstructions != DefaultConversationInstructions {
		t.Errorf("partial update not applied: %+v", got)
	}
	if got.Prompt() != persona+"\n\n"+DefaultConversationInstructions {
		t.Errorf("Prompt() = %q", got.Prompt())
	}
	if got.UpdatedAt == nil {
		t.Error("UpdatedAt should be set once a value is stored")
	}

	blank := " "
	got, _ = s.UpdateAssistant(ctx, model.AssistantSettingsUpdate{SystemInstructions: &blank})
	if got.SystemInstructions != DefaultSystemInstructions {
		t.Errorf("blank value should restore the default, got %q", got.SystemInstructions)
	}

	if _, err := s.UpdateAssistant(ctx, model.AssistantSettingsUpdate{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty update error = %v, want ErrInvalidInput", err)
	}

	modelName := "gemini-2.0-flash"
	_, _ = s.UpdateAssistant(ctx, model.AssistantSettingsUpdate{Model: &modelName, SystemInstructions: &persona})
	got, err = s.ResetAssistant(ctx)
	if err != nil {
		t.Fatalf("ResetAssistant() error = %v", err)
	}
	if got.Model != "gemini-1.5-flash" || got.SystemInstructions != DefaultSystemInstructions {
		t.Errorf("reset did not restore defaults: %+v", got)
	}
}
