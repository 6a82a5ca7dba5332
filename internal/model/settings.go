package model

import "time"

// Setting keys
const (
	SettingLeadExpireMinutes        = "lead_expire_minutes"
	SettingSystemInstructions       = "assistant_system_instructions"
	SettingConversationInstructions = "assistant_conversation_instructions"
	SettingAssistantModel           = "assistant_model"
)

// Lead expiry bounds in minutes
const (
	DefaultLeadExpireMinutes = 5
	MinLeadExpireMinutes     = 1
	MaxLeadExpireMinutes     = 60
)

// LeadExpirySetting is the admin view of the claim window
type LeadExpirySetting struct {
	LeadExpireMinutes int `json:"leadExpireMinutes"`
}

// AssistantSettings are the admin-editable model instructions
type AssistantSettings struct {
	SystemInstructions       string     `json:"systemInstructions"`
	ConversationInstructions string     `json:"conversationInstructions"`
	Model                    string     `json:"model"`
	UpdatedAt                *time.Time `json:"updatedAt,omitempty"`
}

// Prompt joins the persona and conversation-flow instructions
func (s AssistantSettings) Prompt() string {
	if s.ConversationInstructions == "" {
		return s.SystemInstructions
	}
	if s.SystemInstructions == "" {
		return s.ConversationInstructions
	}
	return s.SystemInstructions + "\n\n" + s.ConversationInstructions
}

// AssistantSettingsUpdate is a partial update; nil fields are left unchanged
type AssistantSettingsUpdate struct {
	SystemInstructions       *string `json:"systemInstructions"`
	ConversationInstructions *string `json:"conversationInstructions"`
	Model                    *string `json:"model"`
}

// Setting is one key/value row of admin settings
type Setting struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}
