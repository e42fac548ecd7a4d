package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/reckon/constants"
	"github.com/joseph-ayodele/reckon/internal/common"
	"github.com/joseph-ayodele/reckon/internal/entity"
	"github.com/joseph-ayodele/reckon/internal/extract"
	"github.com/joseph-ayodele/reckon/internal/llm"
)

// SymptomUnitID identifies the single unit of a symptom submission.
const SymptomUnitID = "symptoms"

// Outcome is the per-unit result: either Result or Err is meaningful.
type Outcome[T any] struct {
	UnitID string
	Result T
	Err    error
}

func (o Outcome[T]) OK() bool { return o.Err == nil }

// Recorder persists outcomes. Failures are logged and never change the outcome.
type Recorder interface {
	Record(ctx context.Context, rec entity.AnalysisRecord) error
}

// Observer receives one observation per finished unit.
type Observer interface {
	ObserveUnit(flow constants.Flow, outcome string, elapsed time.Duration)
}

// Processor drives extraction, prompt building, the gateway call and
// normalization for every unit. Units share nothing and never cancel each other.
type Processor struct {
	extractor extract.TextExtractor
	gateway   llm.Gateway
	logger    *slog.Logger
	limit     int
	recorder  Recorder
	observer  Observer
}

type Option func(*Processor)

// WithConcurrency caps how many units run at once. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.limit = n
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(p *Processor) { p.recorder = r }
}

func WithObserver(o Observer) Option {
	return func(p *Processor) { p.observer = o }
}

func NewProcessor(extractor extract.TextExtractor, gateway llm.Gateway, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		extractor: extractor,
		gateway:   gateway,
		logger:    logger,
		limit:     4,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// AnalyzeDocuments returns one outcome per artifact in input order. The only
// error is common.ErrNoUnits for an empty input.
func (p *Processor) AnalyzeDocuments(ctx context.Context, artifacts []entity.Artifact) ([]Outcome[entity.DocumentAnalysis], error) {
	if len(artifacts) == 0 {
		return nil, common.ErrNoUnits
	}
	ctx, cancel := unitContext(ctx)
	defer cancel()

	start := time.Now()
	out := make([]Outcome[entity.DocumentAnalysis], len(artifacts))
	var g errgroup.Group
	g.SetLimit(p.limit)
	for i, a := range artifacts {
		i, a := i, a
		g.Go(func() error {
			out[i] = p.runDocument(ctx, a)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range out {
		if !o.OK() {
			failed++
		}
	}
	p.logger.Info("pipeline.documents.done",
		"units", len(out),
		"failed", failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// AnalyzeSymptoms runs the text-only pipeline for one submission.
func (p *Processor) AnalyzeSymptoms(ctx context.Context, sub entity.SymptomSubmission) Outcome[entity.SymptomAnalysis] {
	ctx, cancel := unitContext(ctx)
	defer cancel()
	return p.runSymptom(ctx, sub)
}

// unitContext detaches units from caller cancellation so a started unit runs
// to completion when the caller goes away. An explicit deadline still bounds it.
func unitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	detached := context.WithoutCancel(ctx)
	if !ok {
		return detached, func() {}
	}
	return context.WithDeadline(detached, deadline)
}

func (p *Processor) runDocument(ctx context.Context, a entity.Artifact) (o Outcome[entity.DocumentAnalysis]) {
	o.UnitID = a.Filename
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.Result = entity.DocumentAnalysis{}
			o.Err = fmt.Errorf("%w: panic in unit %q: %v", common.ErrInternal, a.Filename, r)
		}
		p.finish(ctx, constants.FlowDocument, o.UnitID, o.Result, o.Err, start)
	}()

	text, err := p.extractor.Extract(ctx, a)
	if err != nil {
		o.Err = err
		return o
	}
	raw, err := p.gateway.Generate(ctx, llm.BuildDocumentPrompt(text))
	if err != nil {
		o.Err = err
		return o
	}
	o.Result, o.Err = llm.NormalizeDocument(raw)
	if o.Err != nil {
		p.logParseFailure(o.UnitID, raw, o.Err)
	}
	return o
}

func (p *Processor) runSymptom(ctx context.Context, sub entity.SymptomSubmission) (o Outcome[entity.SymptomAnalysis]) {
	o.UnitID = SymptomUnitID
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.Result = entity.SymptomAnalysis{}
			o.Err = fmt.Errorf("%w: panic in symptom unit: %v", common.ErrInternal, r)
		}
		p.finish(ctx, constants.FlowSymptom, o.UnitID, o.Result, o.Err, start)
	}()

	prompt, err := llm.BuildSymptomPrompt(sub.Symptoms, sub.UserInfo)
	if err != nil {
		o.Err = err
		return o
	}
	raw, err := p.gateway.Generate(ctx, prompt)
	if err != nil {
		o.Err = err
		return o
	}
	o.Result, o.Err = llm.NormalizeSymptom(raw)
	if o.Err != nil {
		p.logParseFailure(o.UnitID, raw, o.Err)
	}
	return o
}

func (p *Processor) logParseFailure(unitID, raw string, err error) {
	p.logger.Warn("pipeline.unit.normalize_failed", "unit", unitID, "kind", common.ErrorKind(err), "raw", clip(raw, 2<<10))
}

// clip shortens s to at most max bytes without splitting a rune.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}

func (p *Processor) finish(ctx context.Context, flow constants.Flow, unitID string, result any, err error, start time.Time) {
	elapsed := time.Since(start)
	outcome := "ok"
	if err != nil {
		outcome = common.ErrorKind(err)
		p.logger.Error("pipeline.unit.failed",
			"flow", flow,
			"unit", unitID,
			"kind", outcome,
			"error", err,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	} else {
		p.logger.Info("pipeline.unit.ok",
			"flow", flow,
			"unit", unitID,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}
	if p.observer != nil {
		p.observer.ObserveUnit(flow, outcome, elapsed)
	}
	if p.recorder != nil {
		p.record(ctx, flow, unitID, result, err)
	}
}

func (p *Processor) record(ctx context.Context, flow constants.Flow, unitID string, result any, err error) {
	rec := entity.AnalysisRecord{
		Flow:   flow,
		Source: unitID,
		Status: constants.AnalysisStatusOK,
	}
	if id, perr := uuid.Parse(common.UserIDFromContext(ctx)); perr == nil {
		rec.UserID = &id
	}
	if err != nil {
		rec.Status = constants.AnalysisStatusError
		rec.ErrorKind = common.ErrorKind(err)
		rec.ErrorMessage = err.Error()
	} else if b, merr := json.Marshal(result); merr == nil {
		rec.Result = b
	}
	// the unit's deadline may be spent; the outcome is still stored
	if rerr := p.recorder.Record(context.WithoutCancel(ctx), rec); rerr != nil {
		p.logger.Warn("pipeline.record.failed", "flow", flow, "unit", unitID, "error", rerr)
	}
}
