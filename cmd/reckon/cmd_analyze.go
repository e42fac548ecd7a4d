package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/reckon/internal/common"
	"github.com/joseph-ayodele/reckon/internal/entity"
	"github.com/joseph-ayodele/reckon/internal/ingest"
	"github.com/joseph-ayodele/reckon/internal/pipeline"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one analysis flow and print the result",
}

var analyzeDocumentFlags struct {
	skipHidden bool
}

var analyzeDocumentCmd = &cobra.Command{
	Use:   "document <file|dir>...",
	Short: "Analyze lab reports or prescriptions (PDF, JPG, PNG)",
	Long: `Extract text from each file, ask the model for a structured reading and
print one result per file. Directories are scanned recursively for
supported files. A file that fails does not stop the others.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyzeDocument,
}

var analyzeSymptomsFlags struct {
	symptoms    string
	age         string
	gender      string
	conditions  []string
	medications []string
}

var analyzeSymptomsCmd = &cobra.Command{
	Use:   "symptoms",
	Short: "Assess a free-text symptom description",
	Example: `  reckon analyze symptoms --symptoms "fever and sore throat for two days" \
      --age 34 --gender female --condition asthma --medication salbutamol`,
	Args: cobra.NoArgs,
	RunE: runAnalyzeSymptoms,
}

func init() {
	f := analyzeDocumentCmd.Flags()
	f.BoolVar(&analyzeDocumentFlags.skipHidden, "skip-hidden", true, "Ignore dot files and dot directories when scanning")

	s := analyzeSymptomsCmd.Flags()
	s.StringVar(&analyzeSymptomsFlags.symptoms, "symptoms", "", "Symptom description (use - to read stdin)")
	s.StringVar(&analyzeSymptomsFlags.age, "age", "", "Patient age")
	s.StringVar(&analyzeSymptomsFlags.gender, "gender", "", "Patient gender")
	s.StringSliceVar(&analyzeSymptomsFlags.conditions, "condition", nil, "Existing condition (repeatable)")
	s.StringSliceVar(&analyzeSymptomsFlags.medications, "medication", nil, "Current medication (repeatable)")

	analyzeCmd.AddCommand(analyzeDocumentCmd)
	analyzeCmd.AddCommand(analyzeSymptomsCmd)
}

type documentResult struct {
	Filename  string                   `json:"filename"`
	FilePath  string                   `json:"filePath"`
	Analysis  *entity.DocumentAnalysis `json:"analysis,omitempty"`
	Error     string                   `json:"error,omitempty"`
	ErrorKind string                   `json:"errorKind,omitempty"`
}

func documentResults(artifacts []entity.Artifact, outs []pipeline.Outcome[entity.DocumentAnalysis]) []documentResult {
	results := make([]documentResult, len(outs))
	for i, o := range outs {
		r := documentResult{Filename: artifacts[i].Filename, FilePath: artifacts[i].Path}
		if o.OK() {
			analysis := o.Result
			r.Analysis = &analysis
		} else {
			r.Error = o.Err.Error()
			r.ErrorKind = common.ErrorKind(o.Err)
		}
		results[i] = r
	}
	return results
}

// documentSlot is one unit in command-line order: either an artifact to
// analyze or a file rejected before analysis.
type documentSlot struct {
	artifact entity.Artifact
	rejected *documentResult
}

// collectDocuments expands directories in place and keeps unsupported files
// as failures so every argument shows up in the output, in order.
func collectDocuments(args []string, skipHidden bool) ([]documentSlot, error) {
	var slots []documentSlot
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			found, _, err := ingest.ScanDirectory(arg, skipHidden)
			if err != nil {
				return nil, fmt.Errorf("scan %s: %w", arg, err)
			}
			for _, a := range found {
				slots = append(slots, documentSlot{artifact: a})
			}
			continue
		}
		a, err := ingest.ArtifactFromPath(arg)
		if err != nil {
			slots = append(slots, documentSlot{rejected: &documentResult{
				Filename:  info.Name(),
				FilePath:  arg,
				Error:     err.Error(),
				ErrorKind: common.ErrorKind(err),
			}})
			continue
		}
		slots = append(slots, documentSlot{artifact: a})
	}
	return slots, nil
}

// pending returns the artifacts that still need analysis, in slot order.
func pending(slots []documentSlot) []entity.Artifact {
	var artifacts []entity.Artifact
	for _, sl := range slots {
		if sl.rejected == nil {
			artifacts = append(artifacts, sl.artifact)
		}
	}
	return artifacts
}

// mergeResults interleaves processor outcomes, which follow pending order,
// back into the slots.
func mergeResults(slots []documentSlot, analyzed []documentResult) []documentResult {
	results := make([]documentResult, 0, len(slots))
	next := 0
	for _, sl := range slots {
		if sl.rejected != nil {
			results = append(results, *sl.rejected)
			continue
		}
		results = append(results, analyzed[next])
		next++
	}
	return results
}

func runAnalyzeDocument(cmd *cobra.Command, args []string) error {
	slots, err := collectDocuments(args, analyzeDocumentFlags.skipHidden)
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		return fmt.Errorf("no PDF, JPG or PNG files found in %s", strings.Join(args, ", "))
	}

	var analyzed []documentResult
	if artifacts := pending(slots); len(artifacts) > 0 {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		outs, err := a.Processor.AnalyzeDocuments(cmd.Context(), artifacts)
		if err != nil {
			return err
		}
		analyzed = documentResults(artifacts, outs)
	}
	results := mergeResults(slots, analyzed)

	if err := writeJSON(cmd.OutOrStdout(), map[string]any{"results": results}); err != nil {
		return err
	}
	for _, r := range results {
		if r.Error != "" {
			return errUnitsFailed
		}
	}
	return nil
}

func runAnalyzeSymptoms(cmd *cobra.Command, _ []string) error {
	symptoms := analyzeSymptomsFlags.symptoms
	if symptoms == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}
		symptoms = string(b)
	}
	if strings.TrimSpace(symptoms) == "" {
		return fmt.Errorf("--symptoms is required: %w", common.ErrEmptyInput)
	}

	a, err := openApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	o := a.Processor.AnalyzeSymptoms(cmd.Context(), entity.SymptomSubmission{
		Symptoms: symptoms,
		UserInfo: entity.PatientContext{
			Age:                entity.Age(strings.TrimSpace(analyzeSymptomsFlags.age)),
			Gender:             strings.TrimSpace(analyzeSymptomsFlags.gender),
			ExistingConditions: analyzeSymptomsFlags.conditions,
			Medications:        analyzeSymptomsFlags.medications,
		},
	})
	if !o.OK() {
		_ = writeJSON(cmd.OutOrStdout(), map[string]any{
			"success":   false,
			"error":     o.Err.Error(),
			"errorKind": common.ErrorKind(o.Err),
		})
		return errUnitsFailed
	}
	return writeJSON(cmd.OutOrStdout(), map[string]any{"success": true, "analysis": o.Result})
}
