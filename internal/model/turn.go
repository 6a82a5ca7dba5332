package model

import (
	"strings"
	"time"
)

// Turn roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one stored message of a conversation thread
type Turn struct {
	ID        int64     `json:"-" db:"id"`
	ThreadID  string    `json:"-" db:"thread_id"`
	Role      string    `json:"role" db:"role"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"-" db:"created_at"`
}

// NormalizeRole maps client and provider role names onto user/assistant
func NormalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "assistant", "model", "bot", "ai":
		return RoleAssistant
	default:
		return RoleUser
	}
}
