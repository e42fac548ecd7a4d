// Package app wires configuration into the running collaborators shared by
// the server and the CLI.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/reckon/internal/auth"
	"github.com/joseph-ayodele/reckon/internal/common"
	"github.com/joseph-ayodele/reckon/internal/export"
	"github.com/joseph-ayodele/reckon/internal/extract"
	"github.com/joseph-ayodele/reckon/internal/llm"
	"github.com/joseph-ayodele/reckon/internal/llm/gemini"
	"github.com/joseph-ayodele/reckon/internal/llm/openai"
	"github.com/joseph-ayodele/reckon/internal/metrics"
	"github.com/joseph-ayodele/reckon/internal/ocr"
	"github.com/joseph-ayodele/reckon/internal/pipeline"
	"github.com/joseph-ayodele/reckon/internal/repository"
)

// App holds every long-lived component built from one Config.
type App struct {
	Config    *common.Config
	Logger    *slog.Logger
	DB        *repository.DB
	Users     repository.UserRepository
	Analyses  repository.AnalysisRepository
	Auth      *auth.Service
	Export    *export.Service
	Metrics   *metrics.Metrics
	Gateway   llm.Gateway
	Processor *pipeline.Processor
}

// NewLogger builds the slog logger selected by the log config.
func NewLogger(cfg common.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewGateway returns the model gateway for the configured provider,
// instrumented with obs when it is non-nil.
func NewGateway(cfg common.LLMConfig, obs llm.GatewayObserver, logger *slog.Logger) (llm.Gateway, error) {
	var g llm.Gateway
	switch cfg.Provider {
	case common.ProviderGemini, "":
		g = gemini.NewClient(gemini.Config{
			APIKey:          cfg.GeminiAPIKey,
			BaseURL:         cfg.BaseURL,
			Model:           cfg.Model,
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
			TopK:            cfg.TopK,
			MaxOutputTokens: cfg.MaxOutputTokens,
			Timeout:         cfg.Timeout,
			RateLimit:       cfg.RateLimit,
			Burst:           cfg.Burst,
		}, logger)
	case common.ProviderOpenAI:
		g = openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxOutputTokens,
			Timeout:     cfg.Timeout,
			RateLimit:   cfg.RateLimit,
			Burst:       cfg.Burst,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	provider := cfg.Provider
	if provider == "" {
		provider = common.ProviderGemini
	}
	return llm.Instrument(g, provider, obs), nil
}

// Build opens the database, applies migrations and assembles the pipeline.
// Close must be called when done.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	m := metrics.New()
	gateway, err := NewGateway(cfg.LLM, m, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	users := repository.NewUserRepository(db, logger)
	analyses := repository.NewAnalysisRepository(db, logger)

	extractor := ocr.NewExtractor(ocr.Config{
		Pdftotext:   cfg.OCR.Pdftotext,
		Tesseract:   cfg.OCR.Tesseract,
		Language:    cfg.OCR.Language,
		TessdataDir: cfg.OCR.TessdataDir,
	}, logger)

	proc := pipeline.NewProcessor(extract.NewOCRAdapter(extractor, logger), gateway, logger,
		pipeline.WithConcurrency(cfg.Pipeline.MaxConcurrency),
		pipeline.WithRecorder(analyses),
		pipeline.WithObserver(m),
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Users:    users,
		Analyses: analyses,
		Auth: auth.NewService(users, auth.Config{
			JWTSecret:  cfg.Auth.JWTSecret,
			TokenTTL:   cfg.Auth.TokenTTL,
			BcryptCost: cfg.Auth.BcryptCost,
		}, logger),
		Export:    export.NewService(analyses, logger),
		Metrics:   m,
		Gateway:   gateway,
		Processor: proc,
	}, nil
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
