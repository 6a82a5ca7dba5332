package service

import "errors"

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidStatus  = errors.New("invalid status")
	ErrInvalidSetting = errors.New("invalid setting")
	ErrLeadNotFound   = errors.New("lead not found")
	ErrAgentNotFound  = errors.New("agent not found")
	ErrAgentSuspended = errors.New("agent is suspended")
	ErrLeadExpired    = errors.New("lead expired")
	ErrConflict       = errors.New("lead was modified concurrently")

	// ErrContextExpired signals that the model's primed context is gone and the
	// call may succeed once the local cache entry is dropped.
	ErrContextExpired = errors.New("model context expired")

	// ErrAssistantUnavailable is returned when the language model cannot answer
	ErrAssistantUnavailable = errors.New("assistant unavailable")
)
