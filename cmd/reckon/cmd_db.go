package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/reckon/internal/app"
	"github.com/joseph-ayodele/reckon/internal/repository"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database maintenance",
}

var dbHealthFlags struct {
	timeout time.Duration
}

var dbHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Ping the database configured by DB_URL",
	Args:  cobra.NoArgs,
	RunE:  runDBHealth,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the tables if they do not exist",
	Args:  cobra.NoArgs,
	RunE:  runDBMigrate,
}

func init() {
	dbHealthCmd.Flags().DurationVar(&dbHealthFlags.timeout, "timeout", 2*time.Second, "Ping timeout")
	dbCmd.AddCommand(dbHealthCmd)
	dbCmd.AddCommand(dbMigrateCmd)
}

func openDB(cmd *cobra.Command) (*repository.DB, error) {
	cfg, err := loadConfig(false)
	if err != nil {
		return nil, err
	}
	logger := app.NewLogger(cfg.Log, cmd.ErrOrStderr())
	return repository.Open(cmd.Context(), repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
}

func runDBHealth(cmd *cobra.Command, _ []string) error {
	db, err := openDB(cmd)
	if err != nil {
		return fmt.Errorf("opening DB: %w", err)
	}
	defer db.Close()

	start := time.Now()
	if err := db.HealthCheck(cmd.Context(), dbHealthFlags.timeout); err != nil {
		return fmt.Errorf("DB health: FAIL (%w)", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "DB health: OK (%s, %s)\n", db.Dialect(), time.Since(start).Round(time.Millisecond))
	return nil
}

func runDBMigrate(cmd *cobra.Command, _ []string) error {
	db, err := openDB(cmd)
	if err != nil {
		return fmt.Errorf("opening DB: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}
