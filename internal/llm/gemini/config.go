package gemini

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/reckon/internal/llm"
)

// Config for the Gemini generateContent client.
type Config struct {
	APIKey          string
	BaseURL         string // default https://generativelanguage.googleapis.com/v1beta
	Model           string // default gemini-1.5-flash
	Temperature     float32
	TopP            float32
	TopK            int
	MaxOutputTokens int
	Timeout         time.Duration // http client timeout, default 45s
	RateLimit       float64       // requests per second; 0 disables pacing
	Burst           int
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: llm.NewLimiter(cfg.RateLimit, cfg.Burst),
		logger:  logger,
	}
}
