package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every runtime setting of the service.
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Store  StoreConfig
	Auth   AuthConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		AI:     ai,
		Store:  StoreConfig{Path: getEnvOrDefault("STUDYMATE_DB", "data/studymate.db")},
		Auth:   auth,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" as-is.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the remote completion endpoint.
type AIConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	MaxTokens     int
	HistoryLimit  int
	FallbackReply string
}

// Enabled reports whether completion credentials were provided.
func (c AIConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

func loadAIConfig() (AIConfig, error) {
	maxTokens, err := parseOptionalIntEnv("OPENROUTER_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}
	tokens := 700
	if maxTokens != nil {
		if *maxTokens < 1 {
			return AIConfig{}, fmt.Errorf("OPENROUTER_MAX_TOKENS must be positive, got %d", *maxTokens)
		}
		tokens = *maxTokens
	}

	historyLimit, err := parseOptionalIntEnv("CHAT_HISTORY_LIMIT")
	if err != nil {
		return AIConfig{}, err
	}
	history := 20
	if historyLimit != nil {
		if *historyLimit < 1 {
			history = 1
		} else {
			history = *historyLimit
		}
	}

	return AIConfig{
		APIKey:        strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		BaseURL:       getEnvOrDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		Model:         getEnvOrDefault("OPENROUTER_MODEL", "openai/gpt-3.5-turbo-0125"),
		MaxTokens:     tokens,
		HistoryLimit:  history,
		FallbackReply: getEnvOrDefault("CHAT_FALLBACK_REPLY", "Something went wrong. Please try again."),
	}, nil
}

// StoreConfig describes the SQLite database location.
type StoreConfig struct {
	Path string
}

// AuthConfig describes session-token issuance.
type AuthConfig struct {
	TokenTTL time.Duration
}

func loadAuthConfig() (AuthConfig, error) {
	ttlSeconds, err := parseOptionalIntEnv("AUTH_TOKEN_TTL")
	if err != nil {
		return AuthConfig{}, err
	}

	ttl := 24 * time.Hour
	if ttlSeconds != nil {
		if *ttlSeconds < 1 {
			return AuthConfig{}, fmt.Errorf("AUTH_TOKEN_TTL must be positive, got %d", *ttlSeconds)
		}
		ttl = time.Duration(*ttlSeconds) * time.Second
	}

	return AuthConfig{TokenTTL: ttl}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
