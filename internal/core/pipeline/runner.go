package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/entity"
)

const tracerName = "github.com/joseph-ayodele/docpipe/internal/core/pipeline"

// Transform maps one input record to its replacement. Returning a record with
// a nil Binary keeps the input's attachments; a non-nil map replaces them.
type Transform func(ctx context.Context, rec entity.Record) (entity.Record, error)

// Options controls how a batch is run.
type Options struct {
	// ContinueOnFail turns a failing record into an error outcome instead of
	// aborting the batch.
	ContinueOnFail bool
	// Concurrency > 1 processes records on a worker pool; output order is unchanged.
	Concurrency int
	// Stage names the batch in logs and spans.
	Stage  string
	Logger *slog.Logger
}

// AbortError is returned when a record fails and ContinueOnFail is off.
// Its message is the cause's message unchanged.
type AbortError struct {
	Index int
	Err   error
}

func (e *AbortError) Error() string { return e.Err.Error() }

func (e *AbortError) Unwrap() error { return e.Err }

// Run applies transform to every record of batch. On success the i-th outcome
// always belongs to batch[i]. On abort no outcomes are returned.
func Run(ctx context.Context, batch []entity.Record, transform Transform, opts Options) ([]entity.Outcome, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(batch) == 0 {
		return []entity.Outcome{}, nil
	}

	start := time.Now()
	r := &runner{transform: transform, opts: opts, logger: logger}

	var (
		out []entity.Outcome
		err error
	)
	if opts.Concurrency > 1 && len(batch) > 1 {
		out, err = r.parallel(ctx, batch)
	} else {
		out, err = r.sequential(ctx, batch)
	}
	if err != nil {
		logger.Error("pipeline.run.aborted",
			"stage", opts.Stage,
			"run_id", common.RunIDFromContext(ctx),
			"records", len(batch),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	failed := 0
	for _, o := range out {
		if !o.Success {
			failed++
		}
	}
	logger.Info("pipeline.run.ok",
		"stage", opts.Stage,
		"run_id", common.RunIDFromContext(ctx),
		"records", len(out),
		"failed", failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

type runner struct {
	transform Transform
	opts      Options
	logger    *slog.Logger
}

func (r *runner) sequential(ctx context.Context, batch []entity.Record) ([]entity.Outcome, error) {
	out := make([]entity.Outcome, len(batch))
	for i, rec := range batch {
		if err := ctx.Err(); err != nil {
			return nil, &AbortError{Index: i, Err: err}
		}
		o, err := r.apply(ctx, i, rec)
		if err != nil {
			return nil, &AbortError{Index: i, Err: err}
		}
		out[i] = o
	}
	return out, nil
}

// parallel mirrors sequential but hands indices to a fixed worker pool.
// The first failure cancels the remaining work; in-flight records finish.
func (r *runner) parallel(ctx context.Context, batch []entity.Record) ([]entity.Outcome, error) {
	n := len(batch)
	workers := min(r.opts.Concurrency, n)
	out := make([]entity.Outcome, n)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan int)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr *AbortError
	)
	fail := func(idx int, err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil || idx < firstErr.Index {
			firstErr = &AbortError{Index: idx, Err: err}
		}
		cancel()
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				if runCtx.Err() != nil {
					continue
				}
				// transforms see the caller's context so in-flight work is not interrupted by a sibling's failure
				o, err := r.apply(ctx, idx, batch[idx])
				if err != nil {
					fail(idx, err)
					continue
				}
				out[idx] = o
			}
		}()
	}

send:
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			fail(i, err)
			break
		}
		select {
		case <-runCtx.Done():
			break send
		case work <- i:
		}
	}
	close(work)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// apply runs one record and converts a failure according to ContinueOnFail.
// It only returns an error when the batch must abort.
func (r *runner) apply(ctx context.Context, idx int, rec entity.Record) (entity.Outcome, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.record",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("stage", r.opts.Stage),
			attribute.Int("index", idx),
		),
	)
	defer span.End()

	next, err := r.transform(ctx, rec)
	if err != nil {
		span.SetAttributes(attribute.Bool("success", false))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		if !r.opts.ContinueOnFail {
			return entity.Outcome{}, err
		}
		r.logger.Warn("pipeline.record.failed",
			"stage", r.opts.Stage,
			"index", idx,
			"code", common.CodeOf(err),
			"error", err,
		)
		return entity.Failed(err), nil
	}

	span.SetAttributes(attribute.Bool("success", true))
	bin := next.Binary
	if bin == nil {
		bin = rec.Binary
	}
	return entity.Succeeded(next.Fields, bin), nil
}

// Describe is a short human-readable summary used by callers when logging outcomes.
func Describe(out []entity.Outcome) string {
	ok := 0
	for _, o := range out {
		if o.Success {
			ok++
		}
	}
	return fmt.Sprintf("%d/%d succeeded", ok, len(out))
}
