package common

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	OCR      OCRConfig      `koanf:"ocr"`
	LLM      LLMConfig      `koanf:"llm"`
	Auth     AuthConfig     `koanf:"auth"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host      string `koanf:"host"`
	Port      int    `koanf:"port"`
	GRPCAddr  string `koanf:"grpc_addr"`
	UploadDir string `koanf:"upload_dir"`
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `koanf:"dsn"`
	MaxConns         int32         `koanf:"max_conns"`
	MinConns         int32         `koanf:"min_conns"`
	MaxConnLifetime  time.Duration `koanf:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `koanf:"max_conn_idle_time"`
	DialTimeout      time.Duration `koanf:"dial_timeout"`
	StatementTimeout time.Duration `koanf:"statement_timeout"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract   string `koanf:"tesseract"`
	Pdftotext   string `koanf:"pdftotext"`
	TessdataDir string `koanf:"tessdata_dir"`
	Language    string `koanf:"language"`
}

// LLMConfig holds model provider configuration
type LLMConfig struct {
	Provider        string        `koanf:"provider"` // gemini | openai
	GeminiAPIKey    string        `koanf:"gemini_api_key"`
	OpenAIAPIKey    string        `koanf:"openai_api_key"`
	BaseURL         string        `koanf:"base_url"`
	Model           string        `koanf:"model"`
	Temperature     float32       `koanf:"temperature"`
	TopP            float32       `koanf:"top_p"`
	TopK            int           `koanf:"top_k"`
	MaxOutputTokens int           `koanf:"max_output_tokens"`
	Timeout         time.Duration `koanf:"timeout"`
	RateLimit       float64       `koanf:"rate_limit"` // requests per second, 0 = unlimited
	Burst           int           `koanf:"burst"`
}

// APIKey returns the key for the configured provider.
func (c LLMConfig) APIKey() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIAPIKey
	}
	return c.GeminiAPIKey
}

// AuthConfig holds token and password hashing settings
type AuthConfig struct {
	JWTSecret  string        `koanf:"jwt_secret"`
	TokenTTL   time.Duration `koanf:"token_ttl"`
	BcryptCost int           `koanf:"bcrypt_cost"`
}

// PipelineConfig bounds per-request fan-out
type PipelineConfig struct {
	MaxConcurrency int `koanf:"max_concurrency"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // text | json
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

var defaults = map[string]any{
	"server.port":                 3001,
	"server.upload_dir":           "./uploads",
	"database.dsn":                "file:reckon.db?_pragma=busy_timeout(5000)",
	"database.max_conns":          20,
	"database.min_conns":          2,
	"database.max_conn_lifetime":  "30m",
	"database.max_conn_idle_time": "5m",
	"database.dial_timeout":       "3s",
	"ocr.tesseract":               "tesseract",
	"ocr.pdftotext":               "pdftotext",
	"ocr.language":                "eng",
	"llm.provider":                ProviderGemini,
	"llm.temperature":             0.7,
	"llm.top_p":                   0.8,
	"llm.top_k":                   40,
	"llm.max_output_tokens":       2048,
	"llm.timeout":                 "45s",
	"llm.burst":                   1,
	"auth.token_ttl":              "24h",
	"auth.bcrypt_cost":            10,
	"pipeline.max_concurrency":    4,
	"log.level":                   "info",
	"log.format":                  "text",
}

// envKeys maps the environment variables the service honours to config keys.
var envKeys = map[string]string{
	"HOST":                     "server.host",
	"PORT":                     "server.port",
	"GRPC_ADDR":                "server.grpc_addr",
	"UPLOAD_DIR":               "server.upload_dir",
	"DB_URL":                   "database.dsn",
	"DB_MAX_CONNS":             "database.max_conns",
	"DB_MIN_CONNS":             "database.min_conns",
	"DB_MAX_CONN_LIFETIME":     "database.max_conn_lifetime",
	"DB_MAX_CONN_IDLE_TIME":    "database.max_conn_idle_time",
	"DB_DIAL_TIMEOUT":          "database.dial_timeout",
	"DB_STATEMENT_TIMEOUT":     "database.statement_timeout",
	"TESSERACT_BIN":            "ocr.tesseract",
	"PDFTOTEXT_BIN":            "ocr.pdftotext",
	"TESSDATA_PREFIX":          "ocr.tessdata_dir",
	"OCR_LANG":                 "ocr.language",
	"LLM_PROVIDER":             "llm.provider",
	"GEMINI_API_KEY":           "llm.gemini_api_key",
	"OPENAI_API_KEY":           "llm.openai_api_key",
	"LLM_BASE_URL":             "llm.base_url",
	"LLM_MODEL":                "llm.model",
	"LLM_TEMPERATURE":          "llm.temperature",
	"LLM_TOP_P":                "llm.top_p",
	"LLM_TOP_K":                "llm.top_k",
	"LLM_MAX_OUTPUT_TOKENS":    "llm.max_output_tokens",
	"LLM_TIMEOUT":              "llm.timeout",
	"LLM_RATE_LIMIT":           "llm.rate_limit",
	"LLM_BURST":                "llm.burst",
	"JWT_SECRET":               "auth.jwt_secret",
	"JWT_TTL":                  "auth.token_ttl",
	"BCRYPT_COST":              "auth.bcrypt_cost",
	"PIPELINE_MAX_CONCURRENCY": "pipeline.max_concurrency",
	"LOG_LEVEL":                "log.level",
	"LOG_FORMAT":               "log.format",
}

// LoadConfig loads configuration from defaults, an optional YAML file, then environment variables.
// An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("set default %s: %w", key, err)
		}
	}

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		// unknown variables map to "" and are skipped
		return envKeys[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	return &cfg, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case ProviderGemini:
		if c.LLM.GeminiAPIKey == "" {
			return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required", ErrInvalidInput)
		}
	case ProviderOpenAI:
		if c.LLM.OpenAIAPIKey == "" {
			return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
		}
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown LLM_PROVIDER %q", c.LLM.Provider), ErrInvalidInput)
	}
	if c.Auth.JWTSecret == "" {
		return NewAppError("CONFIG_ERROR", "JWT_SECRET is required", ErrInvalidInput)
	}
	if c.Pipeline.MaxConcurrency <= 0 {
		return NewAppError("CONFIG_ERROR", "PIPELINE_MAX_CONCURRENCY must be positive", ErrInvalidInput)
	}
	if c.Server.Port <= 0 {
		return NewAppError("CONFIG_ERROR", "PORT must be positive", ErrInvalidInput)
	}
	return nil
}
