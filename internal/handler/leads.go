package handler

import (
	"context"
	"log/slog"
	"net/http"

	"propertyleads/internal/model"

	"github.com/gin-gonic/gin"
)

// LeadCreator records leads submitted through the public form
type LeadCreator interface {
	CreatePublicLead(ctx context.Context, req model.PublicLeadRequest) (*model.Lead, error)
}

// LeadHandler handles the public lead form
type LeadHandler struct {
	leads  LeadCreator
	logger *slog.Logger
}

// NewLeadHandler creates a new lead handler
func NewLeadHandler(leads LeadCreator, logger *slog.Logger) *LeadHandler {
	return &LeadHandler{leads: leads, logger: loggerOrDefault(logger)}
}

// Create handles POST /api/v1/leads
func (h *LeadHandler) Create(c *gin.Context) {
	var req model.PublicLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Phone is required"})
		return
	}

	lead, err := h.leads.CreatePublicLead(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": lead.ID})
}
