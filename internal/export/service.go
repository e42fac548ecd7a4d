package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/reckon/constants"
	"github.com/joseph-ayodele/reckon/internal/entity"
	"github.com/joseph-ayodele/reckon/internal/repository"
)

const sheet = "Analyses"

// maxRows bounds a single export.
const maxRows = 5000

// Service turns a user's stored analyses into XLSX bytes.
type Service struct {
	analyses repository.AnalysisRepository
	logger   *slog.Logger
}

func NewService(analyses repository.AnalysisRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{analyses: analyses, logger: logger}
}

// ExportAnalysesXLSX returns a workbook with one row per stored analysis,
// newest first.
func (s *Service) ExportAnalysesXLSX(ctx context.Context, userID uuid.UUID) ([]byte, error) {
	start := time.Now()

	recs, err := s.analyses.ListByUser(ctx, userID, maxRows)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{
		"Created At",
		"Flow",
		"Source",
		"Status",
		"Type / Urgency",
		"Summary",
		"Details",
		"Error Kind",
		"Error Message",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, style)
	}

	for i, r := range recs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		sum := summarize(r)
		write(1, r.CreatedAt.UTC().Format(time.RFC3339))
		write(2, string(r.Flow))
		write(3, r.Source)
		write(4, string(r.Status))
		write(5, sum.label)
		write(6, truncate(sum.summary, 500))
		write(7, sum.details)
		write(8, r.ErrorKind)
		write(9, truncate(r.ErrorMessage, 200))
	}

	_ = f.SetColWidth(sheet, "A", "A", 22)
	_ = f.SetColWidth(sheet, "B", "D", 12)
	_ = f.SetColWidth(sheet, "E", "E", 16)
	_ = f.SetColWidth(sheet, "F", "F", 60)
	_ = f.SetColWidth(sheet, "G", "G", 40)
	_ = f.SetColWidth(sheet, "H", "H", 20)
	_ = f.SetColWidth(sheet, "I", "I", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"user_id", userID.String(),
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

type rowSummary struct {
	label   string
	summary string
	details string
}

// summarize pulls the human-facing fields out of a stored result.
func summarize(r entity.AnalysisRecord) rowSummary {
	if r.Status != constants.AnalysisStatusOK || len(r.Result) == 0 {
		return rowSummary{}
	}
	switch r.Flow {
	case constants.FlowDocument:
		var doc entity.DocumentAnalysis
		if err := json.Unmarshal(r.Result, &doc); err != nil {
			return rowSummary{}
		}
		return rowSummary{
			label:   string(doc.Type),
			summary: doc.Summary,
			details: fmt.Sprintf("%d lab results, %d medications", len(doc.LabResults), len(doc.Medications)),
		}
	case constants.FlowSymptom:
		var sym entity.SymptomAnalysis
		if err := json.Unmarshal(r.Result, &sym); err != nil {
			return rowSummary{}
		}
		details := "no doctor visit required"
		if sym.RecommendedActions.DoctorVisit.Required {
			details = "doctor visit: " + sym.RecommendedActions.DoctorVisit.Urgency
		}
		return rowSummary{
			label:   string(sym.RecommendedActions.UrgencyLevel),
			summary: sym.SymptomSummary,
			details: details,
		}
	}
	return rowSummary{}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
