package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"propertyleads/internal/events"
	"propertyleads/internal/model"
	"propertyleads/internal/service"

	"github.com/gin-gonic/gin"
)

// LeadAdmin is the lead workflow available to administrators
type LeadAdmin interface {
	GetLead(ctx context.Context, leadID string) (*model.Lead, error)
	Reroute(ctx context.Context, leadID string, agentID int64) (*model.Lead, error)
}

// SettingsAdmin manages runtime settings
type SettingsAdmin interface {
	GetLeadExpiry(ctx context.Context) (*model.LeadExpirySetting, error)
	SetLeadExpiry(ctx context.Context, minutes int) (*model.LeadExpirySetting, error)
	Assistant(ctx context.Context) (*model.AssistantSettings, error)
	UpdateAssistant(ctx context.Context, update model.AssistantSettingsUpdate) (*model.AssistantSettings, error)
	ResetAssistant(ctx context.Context) (*model.AssistantSettings, error)
}

// AdminHandler handles administrator endpoints. Routes must sit behind
// RequireRole(secret, RoleAdmin).
type AdminHandler struct {
	leads    LeadAdmin
	settings SettingsAdmin
	feed     FeedServer
	logger   *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(leads LeadAdmin, settings SettingsAdmin, feed FeedServer, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{leads: leads, settings: settings, feed: feed, logger: loggerOrDefault(logger)}
}

// GetLead handles GET /api/v1/admin/leads/:id
func (h *AdminHandler) GetLead(c *gin.Context) {
	lead, err := h.leads.GetLead(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// Reroute handles POST /api/v1/admin/leads/:id/reroute
func (h *AdminHandler) Reroute(c *gin.Context) {
	var req model.RerouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agentId required"})
		return
	}

	lead, err := h.leads.Reroute(c.Request.Context(), c.Param("id"), req.AgentID)
	switch {
	case errors.Is(err, service.ErrAgentNotFound):
		// the caller is authenticated; the target agent is what is missing
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	case errors.Is(err, service.ErrAgentSuspended):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Agent is suspended"})
		return
	case err != nil:
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"lead": gin.H{
			"id":              lead.ID,
			"assignedAgentId": lead.AssignedAgentID,
			"assignedAt":      lead.AssignedAt,
			"status":          lead.Status,
		},
	})
}

// GetLeadExpiry handles GET /api/v1/admin/settings/lead-expiry
func (h *AdminHandler) GetLeadExpiry(c *gin.Context) {
	setting, err := h.settings.GetLeadExpiry(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, setting)
}

// SetLeadExpiry handles PUT /api/v1/admin/settings/lead-expiry
func (h *AdminHandler) SetLeadExpiry(c *gin.Context) {
	var req model.LeadExpirySetting
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "leadExpireMinutes must be an integer"})
		return
	}

	setting, err := h.settings.SetLeadExpiry(c.Request.Context(), req.LeadExpireMinutes)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, setting)
}

// GetAssistant handles GET /api/v1/admin/assistant
func (h *AdminHandler) GetAssistant(c *gin.Context) {
	settings, err := h.settings.Assistant(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateAssistant handles PUT /api/v1/admin/assistant
func (h *AdminHandler) UpdateAssistant(c *gin.Context) {
	var req model.AssistantSettingsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	settings, err := h.settings.UpdateAssistant(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// ResetAssistant handles POST /api/v1/admin/assistant/reset
func (h *AdminHandler) ResetAssistant(c *gin.Context) {
	settings, err := h.settings.ResetAssistant(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// Feed handles GET /api/v1/admin/feed
func (h *AdminHandler) Feed(c *gin.Context) {
	h.feed.Serve(c.Writer, c.Request, events.AllAgents)
}
