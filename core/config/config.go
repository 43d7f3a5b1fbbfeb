package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	OTel     OTelConfig
	Platform PlatformConfig
	Redis    RedisConfig
	Session  SessionConfig
	LLM      LLMConfig
	DevAPI   DevAPIConfig
	Env      string
	Port     string
	NodeID   int64
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
	SampleRatio    float64
}

// PlatformConfig points at the agent platform REST API.
type PlatformConfig struct {
	BaseURL    string
	APIToken   string
	Timeout    time.Duration
	MaxRetries int
}

type RedisConfig struct {
	URL          string
	StreamPrefix string // per-agent session event streams
	StreamMaxLen int64
	CachePrefix  string
	CacheTTL     time.Duration
}

type SessionConfig struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
	AgentID       string // default agent for the terminal client
	LogFile       string // terminal client log destination
}

type LLMConfig struct {
	Provider  string // "openai" or "anthropic"
	APIKey    string
	BaseURL   string // Optional: for custom endpoints
	Model     string
	MaxTokens int
}

// DevAPIConfig seeds the in-memory platform used for local development.
type DevAPIConfig struct {
	SeedAgentID   string
	SeedAgentName string
	SystemPrompt  string
}

type ServiceType string

const (
	ServiceTypeGateway ServiceType = "gateway"
	ServiceTypeChat    ServiceType = "chat"
	ServiceTypeDevAPI  ServiceType = "devapi"
)

// Load loads configuration from environment variables.
// In development, it loads from service-specific .env files:
//   - .env.gateway for the session gateway
//   - .env.chat for the terminal client
//   - .env.devapi for the local platform API
//
// Falls back to .env if service-specific file doesn't exist.
func Load(serviceType ServiceType) (Config, error) {
	if getEnv("AGENTDESK_ENV", "development") == "development" {
		// Try service-specific env file first, fall back to .env
		envFile := fmt.Sprintf(".env.%s", serviceType)
		if err := godotenv.Load(envFile); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	cfg := Config{
		Env:    getEnv("AGENTDESK_ENV", "development"),
		Port:   getEnv("PORT", defaultPort(serviceType)),
		NodeID: int64(getEnvInt("NODE_ID", 1)),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "agentdesk-"+string(serviceType)),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			SampleRatio:    getEnvFloat("OTEL_TRACES_SAMPLER_RATIO", 1),
		},
		Platform: PlatformConfig{
			BaseURL:    getEnv("PLATFORM_API_URL", "http://localhost:8090"),
			APIToken:   getEnv("PLATFORM_API_TOKEN", ""),
			Timeout:    getEnvDuration("PLATFORM_API_TIMEOUT", 60*time.Second),
			MaxRetries: getEnvInt("PLATFORM_API_MAX_RETRIES", 2),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			StreamPrefix: getEnv("REDIS_STREAM_PREFIX", "chat-events"),
			StreamMaxLen: int64(getEnvInt("REDIS_STREAM_MAXLEN", 1000)),
			CachePrefix:  getEnv("REDIS_CACHE_PREFIX", "conversations"),
			CacheTTL:     getEnvDuration("REDIS_CACHE_TTL", 2*time.Minute),
		},
		Session: SessionConfig{
			IdleTTL:       getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
			SweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", time.Minute),
			AgentID:       getEnv("AGENT_ID", ""),
			LogFile:       getEnv("AGENTCHAT_LOG_FILE", "agentchat.log"),
		},
		LLM: LLMConfig{
			Provider:  getEnv("LLM_PROVIDER", "openai"),
			APIKey:    getEnv("LLM_API_KEY", ""),
			BaseURL:   getEnv("LLM_BASE_URL", ""),
			Model:     getEnv("LLM_MODEL", ""),
			MaxTokens: getEnvInt("LLM_MAX_TOKENS", 1024),
		},
		DevAPI: DevAPIConfig{
			SeedAgentID:   getEnv("DEVAPI_SEED_AGENT_ID", "agent-1"),
			SeedAgentName: getEnv("DEVAPI_SEED_AGENT_NAME", "Helpful Assistant"),
			SystemPrompt:  getEnv("DEVAPI_SYSTEM_PROMPT", "You are a helpful AI assistant."),
		},
	}

	if err := cfg.validate(serviceType); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate(serviceType ServiceType) error {
	switch serviceType {
	case ServiceTypeGateway, ServiceTypeChat:
		if c.Platform.BaseURL == "" {
			return fmt.Errorf("PLATFORM_API_URL is required")
		}
	}
	if serviceType == ServiceTypeChat && c.Session.AgentID == "" {
		return fmt.Errorf("AGENT_ID is required")
	}
	if c.OTel.SampleRatio < 0 || c.OTel.SampleRatio > 1 {
		return fmt.Errorf("OTEL_TRACES_SAMPLER_RATIO must be within [0, 1]")
	}
	return nil
}

func defaultPort(serviceType ServiceType) string {
	if serviceType == ServiceTypeDevAPI {
		return "8090"
	}
	return "8080"
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

func (c LLMConfig) Enabled() bool {
	return c.APIKey != "" && (c.Provider == "openai" || c.Provider == "anthropic")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
