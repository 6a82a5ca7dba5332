package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// BuildInfo is reported by /health and /version
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// RouterConfig wires handlers into the HTTP surface
type RouterConfig struct {
	Build          BuildInfo
	AllowedOrigins []string
	JWTSecret      string
	// HealthCheck, when set, must pass for /health to report healthy
	HealthCheck func(ctx context.Context) error

	Chat    *ChatHandler
	Leads   *LeadHandler
	Partner *PartnerHandler
	Admin   *AdminHandler
}

// NewRouter builds the gin engine with every route registered
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		if cfg.HealthCheck != nil {
			if err := cfg.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"service":    "property-leads",
			"version":    cfg.Build.Version,
			"build_time": cfg.Build.BuildTime,
			"git_commit": cfg.Build.GitCommit,
		})
	})

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    cfg.Build.Version,
			"build_time": cfg.Build.BuildTime,
			"git_commit": cfg.Build.GitCommit,
		})
	})

	apiV1 := router.Group("/api/v1")
	{
		// Public endpoints
		apiV1.POST("/chat", cfg.Chat.Chat)
		apiV1.POST("/leads", cfg.Leads.Create)

		partner := apiV1.Group("/partner", RequireRole(cfg.JWTSecret, RolePartner))
		partner.GET("/leads", cfg.Partner.ListLeads)
		partner.POST("/leads/:id/accept", cfg.Partner.Accept)
		partner.POST("/leads/:id/reject", cfg.Partner.Reject)
		partner.PATCH("/leads/:id", cfg.Partner.UpdateStatus)
		partner.GET("/feed", cfg.Partner.Feed)

		admin := apiV1.Group("/admin", RequireRole(cfg.JWTSecret, RoleAdmin))
		admin.GET("/leads/:id", cfg.Admin.GetLead)
		admin.POST("/leads/:id/reroute", cfg.Admin.Reroute)
		admin.GET("/settings/lead-expiry", cfg.Admin.GetLeadExpiry)
		admin.PUT("/settings/lead-expiry", cfg.Admin.SetLeadExpiry)
		admin.GET("/assistant", cfg.Admin.GetAssistant)
		admin.PUT("/assistant", cfg.Admin.UpdateAssistant)
		admin.POST("/assistant/reset", cfg.Admin.ResetAssistant)
		admin.GET("/feed", cfg.Admin.Feed)
	}

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
