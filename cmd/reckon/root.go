package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/reckon/internal/app"
	"github.com/joseph-ayodele/reckon/internal/common"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
}

var rootCmd = &cobra.Command{
	Use:   "reckon",
	Short: "Analyze medical documents and symptom reports",
	Long: `reckon extracts text from lab reports and prescriptions, asks the
configured model for a structured reading and prints it as JSON.

Configuration comes from an optional YAML file (--config or $RECKON_CONFIG)
and the same environment variables the server reads (DB_URL, GEMINI_API_KEY, ...).`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.configPath, "config", os.Getenv("RECKON_CONFIG"), "Path to YAML config file")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(analysesCmd)
	rootCmd.Version = version
}

// loadConfig reads the config and checks what the command needs.
func loadConfig(needModel bool) (*common.Config, error) {
	cfg, err := common.LoadConfig(rootFlags.configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Database.DSN == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "DB_URL is required", common.ErrInvalidInput)
	}
	if needModel && cfg.LLM.APIKey() == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "an API key for LLM_PROVIDER "+cfg.LLM.Provider+" is required", common.ErrInvalidInput)
	}
	if cfg.Pipeline.MaxConcurrency <= 0 {
		cfg.Pipeline.MaxConcurrency = 1
	}
	return cfg, nil
}

// openApp logs to stderr so stdout carries only results.
func openApp(cmd *cobra.Command, needModel bool) (*app.App, error) {
	cfg, err := loadConfig(needModel)
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg.Log, cmd.ErrOrStderr())
	return app.Build(cmd.Context(), cfg, logger)
}

// errUnitsFailed makes the exit status non-zero after results were printed.
var errUnitsFailed = errors.New("one or more units failed")

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
