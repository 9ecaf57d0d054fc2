package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/charlie-sans/netprop/internal/document"
	"github.com/charlie-sans/netprop/internal/infrastructure/logging"
	"github.com/charlie-sans/netprop/internal/infrastructure/monitoring"
	"github.com/charlie-sans/netprop/internal/infrastructure/tracing"
	"github.com/charlie-sans/netprop/internal/shared/id"
)

// Loader supplies documents by name.
type Loader interface {
	Load(ctx context.Context, name string) (*document.Document, error)
}

// Config holds pipeline settings.
type Config struct {
	Delimiters     Delimiters
	Policy         Policy
	RequestTimeout time.Duration
	Sanitize       bool
}

// Pipeline renders documents. It holds only immutable settings and
// goroutine-safe collaborators, so one Pipeline serves concurrent requests.
type Pipeline struct {
	loader         Loader
	engine         Engine
	delimiters     Delimiters
	composer       *Composer
	requestTimeout time.Duration

	broadcaster Broadcaster
	logger      *logging.Logger
	metrics     *monitoring.Metrics
	tracer      *tracing.Tracer
}

// NewPipeline creates a pipeline. Zero-value delimiters and policy fall
// back to the defaults.
func NewPipeline(loader Loader, engine Engine, cfg Config, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.Delimiters.Open == "" || cfg.Delimiters.Close == "" {
		cfg.Delimiters = DefaultDelimiters()
	}

	var opts []ComposerOption
	if cfg.Sanitize {
		opts = append(opts, WithSanitizer(bluemonday.UGCPolicy()))
	}

	return &Pipeline{
		loader:         loader,
		engine:         engine,
		delimiters:     cfg.Delimiters,
		composer:       NewComposer(cfg.Policy, opts...),
		requestTimeout: cfg.RequestTimeout,
		logger:         logger.Named("render"),
	}
}

// WithMetrics attaches a metrics collector.
func (p *Pipeline) WithMetrics(m *monitoring.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// WithTracer attaches a tracer; renders and blocks become spans.
func (p *Pipeline) WithTracer(t *tracing.Tracer) *Pipeline {
	p.tracer = t
	return p
}

// WithBroadcaster exposes the broadcast capability to scripts.
func (p *Pipeline) WithBroadcaster(b Broadcaster) *Pipeline {
	p.broadcaster = b
	return p
}

// Render runs the full pipeline for the named document.
func (p *Pipeline) Render(ctx context.Context, name string) *Result {
	start := time.Now()
	res := &Result{
		RenderID:    id.NewRenderID(),
		Document:    name,
		ContentType: ContentTypeHTML,
		Stage:       StageLoading,
	}

	if p.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.requestTimeout)
		defer cancel()
	}

	span, ctx := p.startSpan(ctx, "render")
	if span != nil {
		span.SetTag("document", name)
		span.SetTag("render_id", res.RenderID.String())
	}
	defer p.finish(res, span, start)

	doc, err := p.loader.Load(ctx, name)
	if err != nil {
		switch {
		case errors.Is(err, document.ErrNotFound):
			p.fail(res, StatusNotFound, err)
		case ctx.Err() != nil:
			p.fail(res, StatusTimeout, err)
		default:
			p.fail(res, StatusInternal, fmt.Errorf("load: %w", err))
		}
		return res
	}

	res.Stage = StageExtracting
	extraction := Extract(doc.Content, p.delimiters)
	res.Blocks = len(extraction.Blocks)
	res.Malformed = extraction.Malformed

	rc := NewContext(res.RenderID, name, extraction.Residual, p.logger)
	if extraction.Malformed != nil {
		rc.Logger().Warn("Unterminated script block left in markup",
			zap.Int("offset", extraction.Malformed.Offset),
			zap.String("tag", extraction.Malformed.Tag),
		)
		if p.metrics != nil {
			p.metrics.IncMalformedBlocks()
		}
	}

	var bridgeOpts []BridgeOption
	if p.broadcaster != nil {
		bridgeOpts = append(bridgeOpts, WithBroadcaster(p.broadcaster))
	}
	bridge := NewBridge(rc, bridgeOpts...)

	res.Stage = StageExecuting
	for _, block := range extraction.Blocks {
		if err := ctx.Err(); err != nil {
			res.Failures = rc.Failures()
			p.fail(res, StatusTimeout, fmt.Errorf("aborted before block %d: %w", block.Index, err))
			return res
		}
		p.executeBlock(ctx, rc, bridge, block)
	}
	res.Failures = rc.Failures()

	res.Stage = StageComposing
	body, err := p.composer.Compose(rc)
	if err != nil {
		p.fail(res, StatusInternal, fmt.Errorf("compose: %w", err))
		return res
	}

	res.Stage = StageDone
	res.Status = StatusSuccess
	res.Body = body
	return res
}

// executeBlock runs one block, confining any failure to it.
func (p *Pipeline) executeBlock(ctx context.Context, rc *Context, bridge *Bridge, block Block) {
	timer := monitoring.NewTimer()
	span, ctx := p.startSpan(ctx, "block")
	if span != nil {
		span.SetTag("block", fmt.Sprint(block.Index))
	}

	err := p.safeExecute(ctx, block.Code, bridge)

	outcome := "ok"
	if err != nil {
		execErr := asExecutionError(block.Index, err)
		rc.recordFailure(execErr)
		outcome = string(execErr.Kind)

		rc.Logger().Warn("Script block failed",
			logging.Block(block.Index),
			zap.String("kind", string(execErr.Kind)),
			zap.Error(execErr.Err),
		)
		if span != nil {
			span.SetError(execErr)
		}
	}

	if p.metrics != nil {
		p.metrics.RecordBlock(outcome, timer.Elapsed())
	}
	if span != nil {
		span.Finish()
		p.tracer.Submit(span)
	}
}

func (p *Pipeline) safeExecute(ctx context.Context, code string, bridge *Bridge) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewExecutionError(KindPanic, fmt.Errorf("%v", r))
		}
	}()
	return p.engine.Execute(ctx, code, bridge)
}

func (p *Pipeline) fail(res *Result, status Status, err error) {
	res.Status = status
	res.Err = err
	res.Body = ""
}

func (p *Pipeline) startSpan(ctx context.Context, name string) (*tracing.Span, context.Context) {
	if p.tracer == nil {
		return nil, ctx
	}
	return p.tracer.StartSpan(ctx, name)
}

func (p *Pipeline) finish(res *Result, span *tracing.Span, start time.Time) {
	res.Duration = time.Since(start)

	fields := []zap.Field{
		logging.RenderID(res.RenderID),
		logging.Document(res.Document),
		zap.String("status", res.Status.String()),
		zap.String("stage", res.Stage.String()),
		zap.Int("blocks", res.Blocks),
		zap.Int("failed_blocks", len(res.Failures)),
		logging.Duration(res.Duration),
	}

	switch res.Status {
	case StatusSuccess:
		p.logger.Debug("Render complete", fields...)
	case StatusNotFound:
		p.logger.Info("Document not found", fields...)
	default:
		p.logger.Error("Render failed", append(fields, zap.Error(res.Err))...)
	}

	if p.metrics != nil {
		p.metrics.RecordRender(res.Status.String(), res.Duration, len(res.Failures))
	}
	if span != nil {
		if res.Err != nil {
			span.SetError(res.Err)
		}
		span.SetTag("status", res.Status.String())
		span.Finish()
		p.tracer.Submit(span)
	}
}
