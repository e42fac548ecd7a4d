package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/reckon/internal/common"
	"github.com/joseph-ayodele/reckon/internal/entity"
	"github.com/joseph-ayodele/reckon/internal/pipeline"
)

// run executes the root command with fresh flag state.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootFlags.configPath = ""
	analyzeDocumentFlags.skipHidden = true
	analyzeSymptomsFlags.symptoms = ""
	analyzeSymptomsFlags.age = ""
	analyzeSymptomsFlags.gender = ""
	analyzeSymptomsFlags.conditions = nil
	analyzeSymptomsFlags.medications = nil
	dbHealthFlags.timeout = 2 * time.Second

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func useTempDB(t *testing.T) {
	t.Helper()
	t.Setenv("DB_URL", "file:"+filepath.Join(t.TempDir(), "cli.db"))
	t.Setenv("LOG_LEVEL", "error")
}

func fakeGemini(t *testing.T, text string) {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": text}}},
			"finishReason": "STOP",
		}},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("LLM_BASE_URL", srv.URL)
	t.Setenv("LLM_MODEL", "gemini-test")
}

func TestDBHealth(t *testing.T) {
	useTempDB(t)
	out, err := run(t, "db", "health")
	require.NoError(t, err)
	assert.Contains(t, out, "DB health: OK (sqlite")

	out, err = run(t, "db", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")
}

func TestDBHealth_MissingDSN(t *testing.T) {
	t.Setenv("DB_URL", "")
	require.NoError(t, os.Unsetenv("DB_URL"))
	dir := t.TempDir()
	cfg := filepath.Join(dir, "reckon.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("database:\n  dsn: \"\"\n"), 0o644))

	_, err := run(t, "--config", cfg, "db", "health")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestAnalyzeSymptoms(t *testing.T) {
	useTempDB(t)
	fakeGemini(t, `{"symptomSummary":"Fever and sore throat","possibleCauses":["Viral pharyngitis"],"recommendedActions":{"urgencyLevel":"moderate"},"followUpNeeded":true}`)

	out, err := run(t, "analyze", "symptoms", "--symptoms", "fever and sore throat", "--age", "34", "--condition", "asthma")
	require.NoError(t, err)

	var got struct {
		Success  bool `json:"success"`
		Analysis struct {
			SymptomSummary     string   `json:"symptomSummary"`
			PossibleCauses     []string `json:"possibleCauses"`
			RecommendedActions struct {
				UrgencyLevel string `json:"urgencyLevel"`
			} `json:"recommendedActions"`
		} `json:"analysis"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Success)
	assert.Equal(t, "Fever and sore throat", got.Analysis.SymptomSummary)
	assert.Equal(t, []string{"Viral pharyngitis"}, got.Analysis.PossibleCauses)
	assert.Equal(t, "Medium", got.Analysis.RecommendedActions.UrgencyLevel)
}

func TestAnalyzeSymptoms_Unparsable(t *testing.T) {
	useTempDB(t)
	fakeGemini(t, "I cannot help with that.")

	out, err := run(t, "analyze", "symptoms", "--symptoms", "headache")
	require.ErrorIs(t, err, errUnitsFailed)
	assert.Contains(t, out, `"success": false`)
	assert.Contains(t, out, `"errorKind": "UnparsableResponse"`)
}

func TestAnalyzeSymptoms_Empty(t *testing.T) {
	useTempDB(t)
	_, err := run(t, "analyze", "symptoms", "--symptoms", "   ")
	assert.ErrorIs(t, err, common.ErrEmptyInput)
}

func TestAnalyzeDocument_UnsupportedOnly(t *testing.T) {
	useTempDB(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	out, err := run(t, "analyze", "document", path)
	require.ErrorIs(t, err, errUnitsFailed)
	assert.Contains(t, out, `"filename": "notes.txt"`)
	assert.Contains(t, out, `"errorKind": "UnsupportedMediaType"`)
}

func TestAnalyzeDocument_EmptyDir(t *testing.T) {
	_, err := run(t, "analyze", "document", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no PDF, JPG or PNG files found")
}

func TestAnalysesExport(t *testing.T) {
	useTempDB(t)
	out := filepath.Join(t.TempDir(), "a.xlsx")

	_, err := run(t, "analyses", "export", "--user", "not-a-uuid", "-o", out)
	require.Error(t, err)

	stdout, err := run(t, "analyses", "export", "--user", "5f0c8e0e-0000-4000-8000-000000000001", "-o", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote "+out)
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestMergeResults_KeepsArgumentOrder(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "a_notes.txt")
	scan := filepath.Join(dir, "b_scan.pdf")
	photo := filepath.Join(dir, "c_photo.png")
	for _, p := range []string{notes, scan, photo} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	slots, err := collectDocuments([]string{notes, scan, photo}, true)
	require.NoError(t, err)
	require.Len(t, slots, 3)

	artifacts := pending(slots)
	require.Len(t, artifacts, 2)
	assert.Equal(t, "b_scan.pdf", artifacts[0].Filename)

	analyzed := documentResults(artifacts, []pipeline.Outcome[entity.DocumentAnalysis]{
		{UnitID: "b_scan.pdf", Result: entity.DocumentAnalysis{Summary: "ok"}},
		{UnitID: "c_photo.png", Err: common.ErrExtractionFailed},
	})
	results := mergeResults(slots, analyzed)

	var names []string
	for _, r := range results {
		names = append(names, r.Filename)
	}
	assert.Equal(t, []string{"a_notes.txt", "b_scan.pdf", "c_photo.png"}, names)
	assert.Equal(t, "UnsupportedMediaType", results[0].ErrorKind)
	require.NotNil(t, results[1].Analysis)
	assert.Equal(t, "ok", results[1].Analysis.Summary)
	assert.Equal(t, "ExtractionFailed", results[2].ErrorKind)
}

func TestAnalyzeDocument_MixedOrder(t *testing.T) {
	useTempDB(t)
	fakeGemini(t, `{"summary":"ok"}`)
	t.Setenv("PDFTOTEXT_BIN", filepath.Join(t.TempDir(), "missing-pdftotext"))

	dir := t.TempDir()
	notes := filepath.Join(dir, "a_notes.txt")
	scan := filepath.Join(dir, "b_scan.pdf")
	require.NoError(t, os.WriteFile(notes, []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(scan, []byte("%PDF-1.4"), 0o644))

	out, err := run(t, "analyze", "document", notes, scan)
	require.ErrorIs(t, err, errUnitsFailed)

	var got struct {
		Results []documentResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Results, 2)
	assert.Equal(t, "a_notes.txt", got.Results[0].Filename)
	assert.Equal(t, "UnsupportedMediaType", got.Results[0].ErrorKind)
	assert.Equal(t, "b_scan.pdf", got.Results[1].Filename)
	assert.NotEmpty(t, got.Results[1].Error)
}
