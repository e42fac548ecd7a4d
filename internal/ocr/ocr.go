package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/reckon/constants"
	"github.com/joseph-ayodele/reckon/internal/common"
)

type Config struct {
	Pdftotext   string // binary name or absolute path; if empty -> "pdftotext"
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Language    string // default "eng"
	TessdataDir string
}

type ExtractionResult struct {
	Text     string
	Pages    int
	Source   constants.SourceKind
	Method   string // "pdf-text" | "image-ocr"
	Language string
	Duration time.Duration
	Warnings []string
}

// Extractor turns a stored artifact into plain text. It only reads the artifact.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner replaces the command runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(e *Extractor) { e.runner = r }
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	e := &Extractor{cfg: cfg, logger: logger}
	e.runner = execRunner{logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract dispatches on the declared media type. Media types outside the
// allow-list fail with ErrUnsupportedMediaType before any command runs.
func (e *Extractor) Extract(ctx context.Context, path, mediaType string) (ExtractionResult, error) {
	start := time.Now()
	mt := constants.NormalizeMediaType(mediaType)
	if !constants.IsAllowedMediaType(mt) {
		e.logger.Warn("ocr.unsupported", "path", path, "media_type", mediaType)
		return ExtractionResult{}, common.KindError(common.ErrUnsupportedMediaType, fmt.Errorf("%q", mediaType))
	}
	if _, err := os.Stat(path); err != nil {
		return ExtractionResult{}, common.KindError(common.ErrExtractionFailed, err)
	}

	e.logger.Debug("ocr.start", "path", path, "media_type", mt)
	var (
		res ExtractionResult
		err error
	)
	switch constants.SourceKindForMediaType(mt) {
	case constants.SourcePDF:
		res, err = e.extractPDF(ctx, path)
	default:
		res, err = e.extractImage(ctx, path)
	}
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Error("ocr.failed", "path", path, "method", res.Method, "error", err)
		return res, common.KindError(common.ErrExtractionFailed, err)
	}
	e.logger.Info("ocr.done",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{Source: constants.SourcePDF, Method: "pdf-text"}
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		res.Warnings = stderrWarning(errb)
		return res, fmt.Errorf("pdftotext: %w", err)
	}
	raw := string(out)
	// pdftotext separates pages with a form feed
	res.Pages = 1 + countFormFeeds(raw)
	res.Text = Normalize(raw)
	if res.Text == "" {
		// scanned PDF without a text layer; the empty text is forwarded as-is
		res.Warnings = append(res.Warnings, "pdf has no text layer")
	}
	return res, nil
}

func (e *Extractor) extractImage(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{Source: constants.SourceImage, Method: "image-ocr", Language: e.cfg.Language, Pages: 1}
	args := []string{path, "stdout", "-l", e.cfg.Language}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		res.Warnings = stderrWarning(errb)
		return res, fmt.Errorf("tesseract: %w", err)
	}
	res.Text = Normalize(string(out))
	return res, nil
}

func stderrWarning(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	return []string{truncate(string(b), 1<<10)}
}
