package handler

import (
	"context"
	"log/slog"
	"net/http"

	"propertyleads/internal/model"

	"github.com/gin-gonic/gin"
)

// ChatResponder answers one conversation turn
type ChatResponder interface {
	Respond(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error)
}

// ChatHandler handles the public conversation endpoint
type ChatHandler struct {
	chat   ChatResponder
	logger *slog.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat ChatResponder, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: loggerOrDefault(logger)}
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	resp, err := h.chat.Respond(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
