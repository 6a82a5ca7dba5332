package handler

import (
	"context"
	"log/slog"
	"net/http"

	"propertyleads/internal/model"

	"github.com/gin-gonic/gin"
)

// AgentLeads is the lead workflow available to an authenticated agent
type AgentLeads interface {
	AuthorizeAgent(ctx context.Context, agentID int64) (*model.Agent, error)
	ListForAgent(ctx context.Context, agentID int64, status string) ([]model.AgentLead, error)
	Accept(ctx context.Context, agentID int64, leadID string) (*model.Lead, error)
	Reject(ctx context.Context, agentID int64, leadID string) (*model.Lead, error)
	UpdateStatus(ctx context.Context, agentID int64, leadID, status string) (*model.Lead, error)
}

// FeedServer streams lead events over a websocket
type FeedServer interface {
	Serve(w http.ResponseWriter, r *http.Request, agentID int64)
}

// PartnerHandler handles agent endpoints. Routes must sit behind
// RequireRole(secret, RolePartner).
type PartnerHandler struct {
	leads  AgentLeads
	feed   FeedServer
	logger *slog.Logger
}

// NewPartnerHandler creates a new partner handler
func NewPartnerHandler(leads AgentLeads, feed FeedServer, logger *slog.Logger) *PartnerHandler {
	return &PartnerHandler{leads: leads, feed: feed, logger: loggerOrDefault(logger)}
}

// ListLeads handles GET /api/v1/partner/leads
func (h *PartnerHandler) ListLeads(c *gin.Context) {
	agentID, ok := h.agent(c)
	if !ok {
		return
	}

	leads, err := h.leads.ListForAgent(c.Request.Context(), agentID, c.Query("status"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"leads": leads})
}

// Accept handles POST /api/v1/partner/leads/:id/accept
func (h *PartnerHandler) Accept(c *gin.Context) {
	agentID, ok := h.agent(c)
	if !ok {
		return
	}

	lead, err := h.leads.Accept(c.Request.Context(), agentID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "lead": gin.H{"id": lead.ID, "status": lead.Status}})
}

// Reject handles POST /api/v1/partner/leads/:id/reject
func (h *PartnerHandler) Reject(c *gin.Context) {
	agentID, ok := h.agent(c)
	if !ok {
		return
	}

	if _, err := h.leads.Reject(c.Request.Context(), agentID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Lead rejected"})
}

// UpdateStatus handles PATCH /api/v1/partner/leads/:id
func (h *PartnerHandler) UpdateStatus(c *gin.Context) {
	agentID, ok := h.agent(c)
	if !ok {
		return
	}

	var req model.StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	lead, err := h.leads.UpdateStatus(c.Request.Context(), agentID, c.Param("id"), req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "lead": gin.H{"id": lead.ID, "status": lead.Status}})
}

// Feed handles GET /api/v1/partner/feed
func (h *PartnerHandler) Feed(c *gin.Context) {
	agentID, ok := h.agent(c)
	if !ok {
		return
	}
	h.feed.Serve(c.Writer, c.Request, agentID)
}

// agent resolves the token subject to an active agent, writing the error
// response when it cannot
func (h *PartnerHandler) agent(c *gin.Context) (int64, bool) {
	agentID, ok := subjectID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
		return 0, false
	}
	if _, err := h.leads.AuthorizeAgent(c.Request.Context(), agentID); err != nil {
		respondError(c, h.logger, err)
		return 0, false
	}
	return agentID, true
}
