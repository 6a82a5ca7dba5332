package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"propertyleads/internal/config"
	"propertyleads/internal/events"
	"propertyleads/internal/handler"
	"propertyleads/internal/model"
	"propertyleads/internal/repository"
	"propertyleads/internal/service"

	"github.com/gin-gonic/gin"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Print version info
	log.Printf("Property Leads")
	log.Printf("Version: %s", Version)
	log.Printf("Build Time: %s", BuildTime)
	log.Printf("Git Commit: %s", GitCommit)
	log.Println("")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	repo, err := repository.NewPostgresRepository(
		cfg.GetPostgreSQLDSN(),
		cfg.PostgreSQL.MaxConnections,
		cfg.PostgreSQL.MaxIdleConnections,
	)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	log.Println("✅ Connected to PostgreSQL database")

	if cfg.PostgreSQL.BootstrapSchema {
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to bootstrap schema: %v", err)
		}
		log.Println("✅ Schema ensured")
	}

	// Language model
	llm, closeLLM, err := newLanguageModel(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize language model: %v", err)
	}
	defer closeLLM()

	// Lead event sinks
	hub := events.NewHub(logger)
	defer hub.Close()
	publishers := events.Multi{hub}
	if cfg.AMQP.URL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(ctx, events.AMQPOptions{
			URL:           cfg.AMQP.URL,
			Exchange:      cfg.AMQP.Exchange,
			RetryAttempts: cfg.AMQP.RetryAttempts,
			Delay:         time.Second,
			Logger:        logger,
		})
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer amqpPublisher.Close()
		publishers = append(publishers, amqpPublisher)
		log.Printf("✅ Publishing lead events to exchange %s", cfg.AMQP.Exchange)
	} else {
		log.Println("⚠️  AMQP_URL not set - lead events go to the websocket feed only")
	}

	// Sinks are fed from a background queue so lead writes never wait on them
	bus := events.NewAsync(publishers, 1024, 10*time.Second, logger)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := bus.Close(drainCtx); err != nil {
			log.Printf("Event queue not drained: %v", err)
		}
	}()

	// Initialize services
	settingsService := service.NewSettingsService(repo, defaultModelName(cfg), logger)
	capture := service.NewLeadCapture(repo, bus, logger)
	resolver := service.NewFilterResolver(repo, defaultCriteria(cfg.Chat), cfg.Chat.ListingLimit, logger)
	chatService := service.NewChatService(
		repo,
		llm,
		settingsService,
		service.NewInterpreter(),
		resolver,
		capture,
		service.ChatOptions{
			MaxContextMessages: cfg.Chat.MaxContextMessages,
			StoredTurnLimit:    cfg.Chat.StoredTurnLimit,
			ModelTimeout:       time.Duration(cfg.Chat.ModelTimeoutSeconds) * time.Second,
		},
		logger,
	)
	assignments := service.NewAssignmentService(repo, repo, settingsService, bus, logger)

	if cfg.Assignment.SweepIntervalSeconds > 0 {
		go assignments.RunSweeper(ctx, time.Duration(cfg.Assignment.SweepIntervalSeconds)*time.Second)
		log.Printf("✅ Lead expiry sweeper every %ds", cfg.Assignment.SweepIntervalSeconds)
	}

	log.Println("✅ Services initialized")

	router := handler.NewRouter(handler.RouterConfig{
		Build:          handler.BuildInfo{Version: Version, BuildTime: BuildTime, GitCommit: GitCommit},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		JWTSecret:      cfg.Auth.JWTSecret,
		HealthCheck:    repo.Ping,
		Chat:           handler.NewChatHandler(chatService, logger),
		Leads:          handler.NewLeadHandler(capture, logger),
		Partner:        handler.NewPartnerHandler(assignments, hub, logger),
		Admin:          handler.NewAdminHandler(assignments, settingsService, hub, logger),
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}
	log.Printf("🚀 Starting server on %s", addr)
	log.Printf("📝 API: http://localhost:%d/api/v1", cfg.Server.Port)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	log.Println("🛑 Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	log.Println("✅ Server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// newLanguageModel builds the configured provider and returns its cleanup
func newLanguageModel(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.LanguageModel, func(), error) {
	switch cfg.LLM.Provider {
	case "openai":
		if !cfg.OpenAI.Enabled {
			return nil, nil, fmt.Errorf("OPENAI_API_KEY is required for LLM_PROVIDER=openai")
		}
		log.Printf("✅ OpenAI client initialized")
		log.Printf("   - API Base: %s", cfg.OpenAI.APIBase)
		log.Printf("   - Chat model: %s", cfg.OpenAI.ChatModel)
		log.Printf("   - Chat Temperature: %.2f", cfg.OpenAI.ChatTemperature)
		log.Printf("   - Chat MaxTokens: %d", cfg.OpenAI.ChatMaxTokens)
		return service.NewOpenAIModel(&cfg.OpenAI, logger), func() {}, nil
	default:
		if !cfg.Gemini.Enabled {
			return nil, nil, fmt.Errorf("GEMINI_API_KEY is required for LLM_PROVIDER=gemini")
		}

		var cache service.ContextCache = service.NoopContextCache{}
		closeCache := func() {}
		refresh := time.Duration(cfg.Gemini.CacheRefreshMinutes) * time.Minute
		if cfg.Gemini.CacheEnabled {
			switch cfg.Gemini.CacheStore {
			case "redis":
				client, err := service.NewRedisClient(ctx, cfg.Redis.URL)
				if err != nil {
					return nil, nil, err
				}
				cache = service.NewRedisContextCache(client, refresh)
				closeCache = func() { client.Close() }
			default:
				cache = service.NewMemoryContextCache(refresh)
			}
		}

		gm, err := service.NewGeminiModel(ctx, &cfg.Gemini, cache, logger)
		if err != nil {
			closeCache()
			return nil, nil, err
		}
		log.Printf("✅ Gemini client initialized")
		log.Printf("   - Model: %s", cfg.Gemini.Model)
		log.Printf("   - Context cache: %t (%s)", cfg.Gemini.CacheEnabled, cfg.Gemini.CacheStore)
		return gm, func() {
			gm.Close()
			closeCache()
		}, nil
	}
}

func defaultModelName(cfg *config.Config) string {
	if cfg.LLM.Provider == "openai" {
		return cfg.OpenAI.ChatModel
	}
	return cfg.Gemini.Model
}

func defaultCriteria(cfg config.ChatConfig) model.FilterCriteria {
	f := model.FilterCriteria{Area: cfg.DefaultArea, Type: cfg.DefaultType}
	if cfg.DefaultBudgetLac > 0 {
		budget := cfg.DefaultBudgetLac
		f.BudgetMaxLac = &budget
	}
	return f
}
