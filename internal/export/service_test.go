package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/reckon/constants"
	"github.com/joseph-ayodele/reckon/internal/entity"
)

type stubAnalyses struct {
	recs  []entity.AnalysisRecord
	err   error
	limit int
}

func (s *stubAnalyses) Record(context.Context, entity.AnalysisRecord) error { return nil }

func (s *stubAnalyses) ListByUser(_ context.Context, _ uuid.UUID, limit int) ([]entity.AnalysisRecord, error) {
	s.limit = limit
	return s.recs, s.err
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func readRows(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestExportAnalysesXLSX(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	repo := &stubAnalyses{recs: []entity.AnalysisRecord{
		{
			ID: uuid.New(), Flow: constants.FlowDocument, Source: "cbc.pdf",
			Status: constants.AnalysisStatusOK, CreatedAt: created,
			Result: mustJSON(t, entity.DocumentAnalysis{
				Type:       constants.LabReport,
				Summary:    "Mild anemia.",
				LabResults: []entity.LabResult{{Test: "Hemoglobin", Value: "10.9", Status: "L"}},
			}),
		},
		{
			ID: uuid.New(), Flow: constants.FlowSymptom, Source: "symptoms",
			Status: constants.AnalysisStatusOK, CreatedAt: created,
			Result: mustJSON(t, entity.SymptomAnalysis{
				SymptomSummary: "Headache and fever.",
				RecommendedActions: entity.RecommendedActions{
					UrgencyLevel: constants.UrgencyHigh,
					DoctorVisit:  entity.DoctorVisit{Required: true, Urgency: "within 24 hours"},
				},
			}),
		},
		{
			ID: uuid.New(), Flow: constants.FlowDocument, Source: "scan.png",
			Status: constants.AnalysisStatusError, CreatedAt: created,
			ErrorKind: "GatewayUnavailable", ErrorMessage: "model gateway unavailable: timeout",
		},
	}}

	data, err := NewService(repo, nil).ExportAnalysesXLSX(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, maxRows, repo.limit)

	rows := readRows(t, data)
	require.Len(t, rows, 4)
	assert.Equal(t, "Created At", rows[0][0])
	assert.Equal(t, "Error Message", rows[0][8])

	assert.Equal(t, []string{"2025-03-01T09:30:00Z", "document", "cbc.pdf", "ok", "lab_report",
		"Mild anemia.", "1 lab results, 0 medications"}, rows[1])
	assert.Equal(t, "High", rows[2][4])
	assert.Equal(t, "doctor visit: within 24 hours", rows[2][6])
	assert.Equal(t, "error", rows[3][3])
	assert.Equal(t, "GatewayUnavailable", rows[3][7])
}

func TestExportAnalysesXLSX_Empty(t *testing.T) {
	data, err := NewService(&stubAnalyses{}, nil).ExportAnalysesXLSX(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Len(t, readRows(t, data), 1)
}

func TestExportAnalysesXLSX_RepositoryError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewService(&stubAnalyses{err: boom}, nil).ExportAnalysesXLSX(context.Background(), uuid.New())
	assert.ErrorIs(t, err, boom)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "é…", truncate("ééé", 2))
}
