package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/reckon/internal/entity"
	"github.com/joseph-ayodele/reckon/internal/ocr"
)

type OCRAdapter struct {
	e      *ocr.Extractor
	logger *slog.Logger
}

func NewOCRAdapter(e *ocr.Extractor, logger *slog.Logger) *OCRAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRAdapter{e: e, logger: logger}
}

func (a *OCRAdapter) Extract(ctx context.Context, artifact entity.Artifact) (entity.ExtractedText, error) {
	r, err := a.e.Extract(ctx, artifact.Path, artifact.MediaType)
	if err != nil {
		return entity.ExtractedText{}, err
	}
	for _, w := range r.Warnings {
		a.logger.Warn("extract.warning", "filename", artifact.Filename, "warning", w)
	}
	return entity.ExtractedText{Text: r.Text, Source: r.Source}, nil
}
