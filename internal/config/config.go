package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration values loaded from environment variables.
type Config struct {
	HTTPPort    string
	DatabaseURL string
	AutoMigrate bool

	RedisURL          string // optional; empty disables the grounding cache
	GroundingCacheTTL time.Duration

	OpenAIAPIKey          string
	OpenAIBaseURL         string
	OpenAIModel           string
	GenerationTimeout     time.Duration
	GenerationMaxTokens   int
	GenerationTemperature float64
	MaxPromptChars        int

	GroundingMaxRecords int
	GroundingMaxChars   int
	MaxMessageChars     int

	NLURulesPath    string
	DefaultLanguage string

	CORSAllowedOrigins []string
	ExposeErrorDetails bool

	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file (useful for development)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Could not load .env file. Using environment variables only.", err)
	}

	cfg := &Config{
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		AutoMigrate: getBool("AUTO_MIGRATE", true),

		RedisURL:          getEnv("REDIS_URL", ""),
		GroundingCacheTTL: getDuration("GROUNDING_CACHE_TTL", 10*time.Minute),

		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:         getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GenerationTimeout:     getDuration("GENERATION_TIMEOUT", 15*time.Second),
		GenerationMaxTokens:   getInt("GENERATION_MAX_TOKENS", 500),
		GenerationTemperature: getFloat("GENERATION_TEMPERATURE", 0.3),
		MaxPromptChars:        getInt("MAX_PROMPT_CHARS", 4000),

		GroundingMaxRecords: getInt("GROUNDING_MAX_RECORDS", 3),
		GroundingMaxChars:   getInt("GROUNDING_MAX_CHARS", 1500),
		MaxMessageChars:     getInt("MAX_MESSAGE_CHARS", 2000),

		NLURulesPath:    getEnv("NLU_RULES_PATH", ""),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "tr"),

		CORSAllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		ExposeErrorDetails: getBool("EXPOSE_ERROR_DETAILS", false),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is not set")
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY is not set; generation will fall back to templates.")
	}
	// The grounding block can never hold more than three records.
	if cfg.GroundingMaxRecords <= 0 || cfg.GroundingMaxRecords > 3 {
		log.Printf("Warning: GROUNDING_MAX_RECORDS=%d out of range 1-3, using 3", cfg.GroundingMaxRecords)
		cfg.GroundingMaxRecords = 3
	}

	log.Printf("Loaded config: Port=%s, DB_URL=***, Redis=%t, Model=%s, LogLevel=%s",
		cfg.HTTPPort, cfg.RedisURL != "", cfg.OpenAIModel, cfg.LogLevel)

	return cfg, nil
}

// RequestTimeout bounds one HTTP request: the generation timeout plus 15s.
func (c *Config) RequestTimeout() time.Duration {
	gen := c.GenerationTimeout
	if gen <= 0 {
		gen = 15 * time.Second
	}
	return gen + 15*time.Second
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("Warning: Invalid %s '%s', using default %d. Error: %v", key, raw, fallback, err)
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		log.Printf("Warning: Invalid %s '%s', using default %g. Error: %v", key, raw, fallback, err)
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		log.Printf("Warning: Invalid %s '%s', using default %t. Error: %v", key, raw, fallback, err)
		return fallback
	}
	return v
}

// getDuration accepts Go durations ("15s") or a bare number of seconds.
func getDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	raw = strings.TrimSpace(raw)
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: Invalid %s '%s', using default %s. Error: %v", key, raw, fallback, err)
		return fallback
	}
	return v
}

func getList(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
