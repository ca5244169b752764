package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docpipe/constants"
	"github.com/joseph-ayodele/docpipe/internal/common"
	corepipe "github.com/joseph-ayodele/docpipe/internal/core/pipeline"
	"github.com/joseph-ayodele/docpipe/internal/entity"
)

// Stage is one pipeline phase applied record by record.
type Stage interface {
	Name() string
	Transform(ctx context.Context, rec entity.Record) (entity.Record, error)
}

// Ledger records stage runs. Failures to record are logged, never fatal.
type Ledger interface {
	StartRun(ctx context.Context, stage string, total int) (uuid.UUID, error)
	RecordOutcome(ctx context.Context, runID uuid.UUID, index int, o entity.Outcome) error
	FinishRun(ctx context.Context, runID uuid.UUID, succeeded, failed int, abortErr error) error
}

// StageReport summarizes one stage over a batch.
type StageReport struct {
	Stage     string `json:"stage"`
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Aborted   bool   `json:"aborted,omitempty"`
	RunID     string `json:"runId,omitempty"`
}

// Processor chains stages over a batch. A record that fails in one stage keeps
// its error outcome and is not handed to later stages.
type Processor struct {
	Logger  *slog.Logger
	Stages  []Stage
	Options corepipe.Options
	Ledger  Ledger
}

func NewProcessor(logger *slog.Logger, opts corepipe.Options, ledger Ledger, stages ...Stage) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	opts.Logger = logger
	return &Processor{Logger: logger, Stages: stages, Options: opts, Ledger: ledger}
}

// Process runs every stage in order. On abort it returns the reports gathered
// so far and an error whose AbortError index refers to the original batch.
func (p *Processor) Process(ctx context.Context, batch []entity.Record) ([]entity.Outcome, []StageReport, error) {
	ctx, runID := common.EnsureRunID(ctx)
	start := time.Now()

	final := make([]entity.Outcome, len(batch))
	live := make([]int, len(batch))
	inputs := make([]entity.Record, len(batch))
	for i := range batch {
		live[i] = i
		inputs[i] = batch[i]
	}

	reports := make([]StageReport, 0, len(p.Stages))
	for _, st := range p.Stages {
		if len(live) == 0 {
			reports = append(reports, StageReport{Stage: st.Name()})
			continue
		}
		sctx := common.WithStage(ctx, st.Name())
		opts := p.Options
		opts.Stage = st.Name()

		ledgerID := p.startRun(sctx, st.Name(), len(inputs))
		out, err := corepipe.Run(sctx, inputs, st.Transform, opts)
		report := StageReport{Stage: st.Name(), Total: len(inputs)}
		if ledgerID != uuid.Nil {
			report.RunID = ledgerID.String()
		}

		if err != nil {
			report.Aborted = true
			reports = append(reports, report)
			p.finishRun(sctx, ledgerID, 0, 0, err)

			var abort *corepipe.AbortError
			if errors.As(err, &abort) {
				err = &corepipe.AbortError{Index: live[abort.Index], Err: abort.Err}
			}
			p.Logger.Error("processor.stage.aborted", "run_id", runID, "stage", st.Name(), "error", err)
			return nil, reports, err
		}

		nextLive := make([]int, 0, len(out))
		nextInputs := make([]entity.Record, 0, len(out))
		for j, o := range out {
			idx := live[j]
			final[idx] = o
			p.recordOutcome(sctx, ledgerID, idx, o)
			if o.Success {
				report.Succeeded++
				nextLive = append(nextLive, idx)
				nextInputs = append(nextInputs, o.Record())
			} else {
				report.Failed++
			}
		}
		p.finishRun(sctx, ledgerID, report.Succeeded, report.Failed, nil)
		reports = append(reports, report)
		p.Logger.Info("processor.stage.ok",
			"run_id", runID,
			"stage", st.Name(),
			"summary", corepipe.Describe(out),
		)
		live, inputs = nextLive, nextInputs
	}

	p.Logger.Info("processor.batch.ok",
		"run_id", runID,
		"records", len(batch),
		"stages", len(p.Stages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return final, reports, nil
}

// ProcessFile runs a single PDF path through every stage.
func (p *Processor) ProcessFile(ctx context.Context, path string) (entity.Outcome, error) {
	out, _, err := p.Process(ctx, []entity.Record{entity.NewRecord(entity.Fields{constants.FieldFilePath: path})})
	if err != nil {
		return entity.Outcome{}, err
	}
	return out[0], nil
}

func (p *Processor) startRun(ctx context.Context, stage string, total int) uuid.UUID {
	if p.Ledger == nil {
		return uuid.Nil
	}
	id, err := p.Ledger.StartRun(ctx, stage, total)
	if err != nil {
		p.Logger.Warn("processor.ledger.start_failed", "stage", stage, "error", err)
		return uuid.Nil
	}
	return id
}

func (p *Processor) recordOutcome(ctx context.Context, runID uuid.UUID, idx int, o entity.Outcome) {
	if p.Ledger == nil || runID == uuid.Nil {
		return
	}
	if err := p.Ledger.RecordOutcome(ctx, runID, idx, o); err != nil {
		p.Logger.Warn("processor.ledger.outcome_failed", "ledger_run_id", runID, "index", idx, "error", err)
	}
}

func (p *Processor) finishRun(ctx context.Context, runID uuid.UUID, succeeded, failed int, abortErr error) {
	if p.Ledger == nil || runID == uuid.Nil {
		return
	}
	if err := p.Ledger.FinishRun(ctx, runID, succeeded, failed, abortErr); err != nil {
		p.Logger.Warn("processor.ledger.finish_failed", "ledger_run_id", runID, "error", err)
	}
}
