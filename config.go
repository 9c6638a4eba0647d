package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default council configuration. Overridable via environment (see LoadConfig).
var defaultCouncilModels = []string{
	"openai/gpt-5.1",
	"google/gemini-3-pro-preview",
	"anthropic/claude-sonnet-4.5",
	"x-ai/grok-4",
}

const (
	defaultChairmanModel = "google/gemini-3-pro-preview"
	defaultTitleModel    = "google/gemini-2.5-flash"
	defaultAPIURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultDataDir       = "data/conversations"
	defaultListenAddr    = ":8001"

	defaultQueryTimeout = 120 * time.Second
	defaultTitleTimeout = 30 * time.Second
	defaultFetchTimeout = 30 * time.Second
	defaultPageCacheTTL = 5 * time.Minute

	// Maximum allowed request body size (1MB)
	defaultMaxRequestBody int64 = 1 << 20
)

// Config carries everything the deliberation core and the HTTP layer need.
// It is built once at startup and passed explicitly; nothing in the core
// reads the environment after this point.
type Config struct {
	// OpenRouter settings
	APIKey string
	APIURL string

	// Council composition
	CouncilModels []string
	ChairmanModel string
	TitleModel    string

	// Timeouts
	QueryTimeout time.Duration
	TitleTimeout time.Duration
	FetchTimeout time.Duration

	// Storage
	DataDir string

	// HTTP layer
	ListenAddr         string
	CORSAllowedOrigins []string
	MaxRequestBodySize int64
	AuthEnabled        bool
	APIKeys            []string

	// Page fetch cache
	PageCacheTTL time.Duration

	// Logging
	LogFile     string
	Development bool
}

// LoadConfig loads configuration from the environment, reading a .env file
// first if one is present in the current or parent directory.
// OPENROUTER_API_KEY is the only required setting.
func LoadConfig() (*Config, error) {
	loadDotEnv()

	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY environment variable is required")
	}

	cfg := &Config{
		APIKey:             apiKey,
		APIURL:             envOr("OPENROUTER_API_URL", defaultAPIURL),
		CouncilModels:      envList("COUNCIL_MODELS", defaultCouncilModels),
		ChairmanModel:      envOr("CHAIRMAN_MODEL", defaultChairmanModel),
		TitleModel:         envOr("TITLE_MODEL", defaultTitleModel),
		QueryTimeout:       envDuration("MODEL_QUERY_TIMEOUT", defaultQueryTimeout),
		TitleTimeout:       envDuration("TITLE_GEN_TIMEOUT", defaultTitleTimeout),
		FetchTimeout:       envDuration("FETCH_URL_TIMEOUT", defaultFetchTimeout),
		DataDir:            envOr("DATA_DIR", defaultDataDir),
		ListenAddr:         envOr("LISTEN_ADDR", defaultListenAddr),
		CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS", nil),
		MaxRequestBodySize: defaultMaxRequestBody,
		AuthEnabled:        envBool("API_AUTH_ENABLED", false),
		APIKeys:            envList("API_KEYS", nil),
		PageCacheTTL:       envDuration("PAGE_CACHE_TTL", defaultPageCacheTTL),
		LogFile:            os.Getenv("LOG_FILE"),
		Development:        envOr("APP_ENV", "development") != "production",
	}

	if len(cfg.CouncilModels) == 0 {
		return nil, fmt.Errorf("COUNCIL_MODELS must name at least one model")
	}
	if cfg.AuthEnabled && len(cfg.APIKeys) == 0 {
		return nil, fmt.Errorf("API_AUTH_ENABLED is set but API_KEYS is empty")
	}

	return cfg, nil
}

// loadDotEnv tries .env in the current directory, then the parent.
// Missing files are fine; real environment variables win either way.
func loadDotEnv() {
	for _, envPath := range []string{".env", "../.env"} {
		absPath, err := filepath.Abs(envPath)
		if err != nil {
			continue
		}
		if _, err := os.Stat(absPath); err == nil {
			if godotenv.Load(absPath) == nil {
				return
			}
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
