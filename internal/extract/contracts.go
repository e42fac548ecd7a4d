package extract

import (
	"context"

	"github.com/joseph-ayodele/reckon/internal/entity"
)

// TextExtractor is stage 1 of the document flow: artifact -> text.
// Implementations fail with common.ErrUnsupportedMediaType or
// common.ErrExtractionFailed; empty text is a valid result.
type TextExtractor interface {
	Extract(ctx context.Context, artifact entity.Artifact) (entity.ExtractedText, error)
}

// Func adapts a function to TextExtractor.
type Func func(ctx context.Context, artifact entity.Artifact) (entity.ExtractedText, error)

func (f Func) Extract(ctx context.Context, artifact entity.Artifact) (entity.ExtractedText, error) {
	return f(ctx, artifact)
}
