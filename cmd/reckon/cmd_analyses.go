package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var analysesCmd = &cobra.Command{
	Use:   "analyses",
	Short: "Inspect stored analyses",
}

var analysesExportFlags struct {
	user   string
	output string
}

var analysesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a user's analyses to an XLSX workbook",
	Args:  cobra.NoArgs,
	RunE:  runAnalysesExport,
}

func init() {
	f := analysesExportCmd.Flags()
	f.StringVar(&analysesExportFlags.user, "user", "", "User id (required)")
	f.StringVarP(&analysesExportFlags.output, "output", "o", "analyses.xlsx", "Output file")
	_ = analysesExportCmd.MarkFlagRequired("user")
	analysesCmd.AddCommand(analysesExportCmd)
}

func runAnalysesExport(cmd *cobra.Command, _ []string) error {
	userID, err := uuid.Parse(analysesExportFlags.user)
	if err != nil {
		return fmt.Errorf("invalid --user: %w", err)
	}

	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := a.Export.ExportAnalysesXLSX(cmd.Context(), userID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(analysesExportFlags.output, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", analysesExportFlags.output, len(data))
	return nil
}
