package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Logging    LoggingConfig
	Chat       ChatConfig
	LLM        LLMConfig
	Gemini     GeminiConfig
	OpenAI     OpenAIConfig
	Redis      RedisConfig
	AMQP       AMQPConfig
	Auth       AuthConfig
	Assignment AssignmentConfig
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, preferred when set
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
	BootstrapSchema    bool
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins []string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// ChatConfig holds the conversation pipeline knobs
type ChatConfig struct {
	MaxContextMessages  int
	StoredTurnLimit     int
	ListingLimit        int
	ModelTimeoutSeconds int
	DefaultArea         string
	DefaultType         string
	DefaultBudgetLac    float64
}

// LLMConfig selects the language model provider
type LLMConfig struct {
	Provider string // gemini | openai
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey              string
	Model               string
	CacheEnabled        bool
	CacheStore          string // memory | redis
	CacheTTLMinutes     int
	CacheRefreshMinutes int
	Enabled             bool
}

// OpenAIConfig holds OpenAI-compatible API configuration
type OpenAIConfig struct {
	APIKey          string
	APIBase         string
	ChatModel       string
	ChatTemperature float64
	ChatTopP        float64
	ChatMaxTokens   int
	ChatExtraBody   string // JSON string for extra_body
	Timeout         int
	Enabled         bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL string
}

// AMQPConfig holds the lead event bus configuration
type AMQPConfig struct {
	URL           string
	Exchange      string
	RetryAttempts int
}

// AssignmentConfig holds lead assignment housekeeping settings
type AssignmentConfig struct {
	// SweepIntervalSeconds enables a background expiry sweep; 0 (default) leaves
	// sweeping to agent listings so a late accept still reports the expiry
	SweepIntervalSeconds int
}

// AuthConfig holds token verification configuration
type AuthConfig struct {
	JWTSecret string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("POSTGRESQL_URI", getEnv("PG_DSN", ""))),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "property_leads"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
			BootstrapSchema:    getEnvAsBool("PG_BOOTSTRAP_SCHEMA", false),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Chat: ChatConfig{
			MaxContextMessages:  getEnvAsInt("CHAT_MAX_CONTEXT_MESSAGES", 8),
			StoredTurnLimit:     getEnvAsInt("CHAT_STORED_TURN_LIMIT", 50),
			ListingLimit:        getEnvAsInt("CHAT_LISTING_LIMIT", 20),
			ModelTimeoutSeconds: getEnvAsInt("CHAT_MODEL_TIMEOUT", 30),
			DefaultArea:         getEnv("CHAT_DEFAULT_AREA", ""),
			DefaultType:         getEnv("CHAT_DEFAULT_TYPE", ""),
			DefaultBudgetLac:    getEnvAsFloat("CHAT_DEFAULT_BUDGET_LAC", 0),
		},
		LLM: LLMConfig{
			Provider: strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		},
		Gemini: GeminiConfig{
			APIKey:              getEnv("GEMINI_API_KEY", ""),
			Model:               getEnv("GEMINI_MODEL_NAME", "gemini-1.5-flash"),
			CacheEnabled:        getEnvAsBool("ENABLE_CONTEXT_CACHE", true),
			CacheStore:          strings.ToLower(getEnv("GEMINI_CACHE_STORE", "memory")),
			CacheTTLMinutes:     getEnvAsInt("GEMINI_CACHE_TTL_MINUTES", 60),
			CacheRefreshMinutes: getEnvAsInt("GEMINI_CACHE_REFRESH_MINUTES", 55),
			Enabled:             getEnv("GEMINI_API_KEY", "") != "",
		},
		OpenAI: OpenAIConfig{
			APIKey:          getEnv("OPENAI_API_KEY", ""),
			APIBase:         getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
			ChatModel:       getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			ChatTemperature: getEnvAsFloat("OPENAI_CHAT_TEMPERATURE", 0.4),
			ChatTopP:        getEnvAsFloat("OPENAI_CHAT_TOP_P", 0.9),
			ChatMaxTokens:   getEnvAsInt("OPENAI_CHAT_MAX_TOKENS", 1024),
			ChatExtraBody:   getEnv("OPENAI_CHAT_EXTRA_BODY", ""),
			Timeout:         getEnvAsInt("OPENAI_TIMEOUT", 30),
			Enabled:         getEnv("OPENAI_API_KEY", "") != "",
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		AMQP: AMQPConfig{
			URL:           getEnv("AMQP_URL", ""),
			Exchange:      getEnv("AMQP_EXCHANGE", "leads"),
			RetryAttempts: getEnvAsInt("AMQP_RETRY_ATTEMPTS", 5),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Assignment: AssignmentConfig{
			SweepIntervalSeconds: getEnvAsInt("LEAD_SWEEP_INTERVAL_SECONDS", 0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unsupported LLM_PROVIDER %q (want gemini or openai)", c.LLM.Provider)
	}
	switch c.Gemini.CacheStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported GEMINI_CACHE_STORE %q (want memory or redis)", c.Gemini.CacheStore)
	}
	if c.Gemini.CacheStore == "redis" && c.Gemini.CacheEnabled && c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required when GEMINI_CACHE_STORE=redis")
	}
	if c.Chat.MaxContextMessages <= 0 || c.Chat.ListingLimit <= 0 || c.Chat.StoredTurnLimit <= 0 {
		return fmt.Errorf("chat limits must be positive")
	}
	if c.Assignment.SweepIntervalSeconds < 0 {
		return fmt.Errorf("LEAD_SWEEP_INTERVAL_SECONDS must not be negative")
	}
	return nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Warning: Invalid float value for %s, using default %f", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch valueStr {
	case "":
		return defaultValue
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
