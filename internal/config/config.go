// Package config provides application configuration.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
)

// Reasoning backends.
const (
	BackendArk  = "ark"
	BackendGrpc = "grpc"
)

// Guardrail backends.
const (
	GuardrailReasoning = "reasoning"
	GuardrailKeyword   = "keyword"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	FrontendURL    string
	AllowedOrigins []string
	DBPath         string
	SeedDemoData   bool

	Reasoning ReasoningConfig
	Guardrail GuardrailConfig
	Turn      TurnConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig

	MaxRequestBodyBytes int64
	ConversationLog     ConversationLogConfig
}

// ReasoningConfig selects and configures the reasoning capability.
type ReasoningConfig struct {
	Backend string
	Addr    string
	Timeout time.Duration
	Ark     ArkConfig
}

// ArkConfig configures the in-process chat model.
type ArkConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
}

// NewArkChatModel builds the in-process chat model.
func (c ReasoningConfig) NewArkChatModel(ctx context.Context) (*ark.ChatModel, error) {
	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   c.Ark.BaseURL,
		Region:    c.Ark.Region,
		APIKey:    c.Ark.APIKey,
		AccessKey: c.Ark.AccessKey,
		SecretKey: c.Ark.SecretKey,
		Model:     c.Ark.Model,
	})
}

// GuardrailConfig selects the guardrail checker and report mode.
type GuardrailConfig struct {
	Backend    string
	ReportMode string
}

// TurnConfig controls per-conversation turn execution.
type TurnConfig struct {
	LockMode           string
	LockTimeout        time.Duration
	MaxReasoningRounds int
}

// CacheConfig controls the conversation cache maintenance worker.
type CacheConfig struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

// RateLimitConfig controls per-client request throttling.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	frontendURL := getEnv("FRONTEND_URL", "")
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    frontendURL,
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", frontendURL)),
		DBPath:         getEnv("DB_PATH", "./data/skydesk.db"),
		SeedDemoData:   getEnvBool("SEED_DEMO_DATA", false),
		Reasoning: ReasoningConfig{
			Backend: strings.ToLower(getEnv("REASONING_BACKEND", BackendArk)),
			Addr:    getEnv("REASONING_ADDR", "localhost:50051"),
			Timeout: getEnvDuration("REASONING_TIMEOUT", 60*time.Second),
			Ark: ArkConfig{
				APIKey:    getEnv("ARK_API_KEY", ""),
				AccessKey: getEnv("ARK_ACCESS_KEY", ""),
				SecretKey: getEnv("ARK_SECRET_KEY", ""),
				Model:     getEnv("ARK_MODEL", ""),
				BaseURL:   getEnv("ARK_BASE_URL", ""),
				Region:    getEnv("ARK_REGION", ""),
			},
		},
		Guardrail: GuardrailConfig{
			Backend:    strings.ToLower(getEnv("GUARDRAIL_BACKEND", GuardrailReasoning)),
			ReportMode: getEnv("GUARDRAIL_REPORT_MODE", "assume"),
		},
		Turn: TurnConfig{
			LockMode:           getEnv("TURN_LOCK_MODE", "queue"),
			LockTimeout:        getEnvDuration("TURN_LOCK_TIMEOUT", 2*time.Minute),
			MaxReasoningRounds: getEnvInt("MAX_REASONING_ROUNDS", 4),
		},
		Cache: CacheConfig{
			IdleTTL:       getEnvDuration("CACHE_IDLE_TTL", 30*time.Minute),
			SweepInterval: getEnvDuration("CACHE_SWEEP_INTERVAL", time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 30),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		MaxRequestBodyBytes: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 64*1024)),
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}

	switch c.Reasoning.Backend {
	case BackendArk:
		if c.Reasoning.Ark.Model == "" {
			return fmt.Errorf("ARK_MODEL is required for the ark reasoning backend")
		}
		if c.Reasoning.Ark.APIKey == "" && (c.Reasoning.Ark.AccessKey == "" || c.Reasoning.Ark.SecretKey == "") {
			return fmt.Errorf("ARK_API_KEY or ARK_ACCESS_KEY and ARK_SECRET_KEY are required for the ark reasoning backend")
		}
	case BackendGrpc:
		if c.Reasoning.Addr == "" {
			return fmt.Errorf("REASONING_ADDR is required for the grpc reasoning backend")
		}
	default:
		return fmt.Errorf("REASONING_BACKEND must be %q or %q, got %q", BackendArk, BackendGrpc, c.Reasoning.Backend)
	}
	if c.Reasoning.Timeout <= 0 {
		return fmt.Errorf("REASONING_TIMEOUT must be > 0")
	}

	switch c.Guardrail.Backend {
	case GuardrailReasoning, GuardrailKeyword:
	default:
		return fmt.Errorf("GUARDRAIL_BACKEND must be %q or %q, got %q", GuardrailReasoning, GuardrailKeyword, c.Guardrail.Backend)
	}
	switch strings.ToLower(c.Guardrail.ReportMode) {
	case "assume", "evaluate":
	default:
		return fmt.Errorf("GUARDRAIL_REPORT_MODE must be assume or evaluate, got %q", c.Guardrail.ReportMode)
	}

	switch strings.ToLower(c.Turn.LockMode) {
	case "queue", "reject":
	default:
		return fmt.Errorf("TURN_LOCK_MODE must be queue or reject, got %q", c.Turn.LockMode)
	}
	if c.Turn.MaxReasoningRounds <= 0 {
		return fmt.Errorf("MAX_REASONING_ROUNDS must be > 0")
	}

	if c.Cache.SweepInterval <= 0 || c.Cache.IdleTTL <= 0 {
		return fmt.Errorf("CACHE_IDLE_TTL and CACHE_SWEEP_INTERVAL must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 || c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}

	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// Origins returns the CORS origins, allowing everything in development.
func (c *Config) Origins() []string {
	if len(c.AllowedOrigins) > 0 {
		return c.AllowedOrigins
	}
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
