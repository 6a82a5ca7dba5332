package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"propertyleads/internal/model"
)

// GenerateRequest is one call to the language model
type GenerateRequest struct {
	SystemInstructions string
	Model              string
	// History holds the prior turns, oldest first, without the new message
	History []model.Turn
	Message string
}

// LanguageModel is the narrow prompt-in, text-out boundary to a chat model.
// Generate may fail with ErrContextExpired when a primed provider context has
// gone away; Invalidate drops it so the next call starts fresh.
type LanguageModel interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
	Invalidate(ctx context.Context, modelName, systemInstructions string) error
}

// Fingerprint identifies a (model, instructions) pair for the context cache
func Fingerprint(modelName, systemInstructions string) string {
	sum := sha256.Sum256([]byte(modelName + "\x00" + systemInstructions))
	return hex.EncodeToString(sum[:])
}
