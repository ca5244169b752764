package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/docpipe/constants"
	"github.com/joseph-ayodele/docpipe/internal/entity"
)

type RunRepository interface {
	StartRun(ctx context.Context, stage string, total int) (uuid.UUID, error)
	RecordOutcome(ctx context.Context, runID uuid.UUID, index int, o entity.Outcome) error
	FinishRun(ctx context.Context, runID uuid.UUID, succeeded, failed int, abortErr error) error
	ListRuns(ctx context.Context, limit int) ([]*entity.Run, error)
	ListOutcomes(ctx context.Context, runID uuid.UUID) ([]entity.Outcome, error)
}

type runRepository struct {
	db     *DB
	logger *slog.Logger
	now    func() time.Time
}

func NewRunRepository(db *DB, logger *slog.Logger) RunRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &runRepository{db: db, logger: logger, now: time.Now}
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (r *runRepository) timestamp() string {
	return r.now().UTC().Format(timeLayout)
}

func (r *runRepository) StartRun(ctx context.Context, stage string, total int) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.db.sql.ExecContext(ctx, r.db.rebind(
		`INSERT INTO pipeline_run (id, stage, status, total, started_at) VALUES (?, ?, ?, ?, ?)`),
		id.String(), stage, string(constants.RunStatusRunning), total, r.timestamp())
	if err != nil {
		r.logger.Error("pipeline_run start failed", "stage", stage, "error", err)
		return uuid.Nil, fmt.Errorf("start run: %w", err)
	}
	r.logger.Debug("pipeline_run started", "ledger_run_id", id, "stage", stage, "total", total)
	return id, nil
}

func (r *runRepository) RecordOutcome(ctx context.Context, runID uuid.UUID, index int, o entity.Outcome) error {
	var fields, errMsg sql.NullString
	success := 0
	if o.Success {
		success = 1
		b, err := entity.MarshalIndent(o.Fields)
		if err != nil {
			return fmt.Errorf("encode fields: %w", err)
		}
		fields = sql.NullString{String: string(b), Valid: true}
	} else {
		errMsg = sql.NullString{String: o.Error, Valid: true}
	}
	_, err := r.db.sql.ExecContext(ctx, r.db.rebind(
		`INSERT INTO record_outcome (run_id, idx, success, error, fields) VALUES (?, ?, ?, ?, ?)`),
		runID.String(), index, success, errMsg, fields)
	if err != nil {
		r.logger.Error("record_outcome insert failed", "ledger_run_id", runID, "index", index, "error", err)
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

func (r *runRepository) FinishRun(ctx context.Context, runID uuid.UUID, succeeded, failed int, abortErr error) error {
	status := constants.RunStatusCompleted
	var errMsg sql.NullString
	if abortErr != nil {
		status = constants.RunStatusAborted
		errMsg = sql.NullString{String: abortErr.Error(), Valid: true}
	}
	res, err := r.db.sql.ExecContext(ctx, r.db.rebind(
		`UPDATE pipeline_run SET status = ?, succeeded = ?, failed = ?, error = ?, finished_at = ? WHERE id = ?`),
		string(status), succeeded, failed, errMsg, r.timestamp(), runID.String())
	if err != nil {
		r.logger.Error("pipeline_run finish failed", "ledger_run_id", runID, "error", err)
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: run %s not found", runID)
	}
	r.logger.Debug("pipeline_run finished", "ledger_run_id", runID, "status", status)
	return nil
}

func (r *runRepository) ListRuns(ctx context.Context, limit int) ([]*entity.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.sql.QueryContext(ctx, r.db.rebind(
		`SELECT id, stage, status, total, succeeded, failed, error, started_at, finished_at
		 FROM pipeline_run ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		r.logger.Error("failed to list runs", "error", err)
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*entity.Run
	for rows.Next() {
		var (
			id, started      string
			errMsg, finished sql.NullString
			run              entity.Run
		)
		if err := rows.Scan(&id, &run.Stage, &run.Status, &run.Total, &run.Succeeded, &run.Failed, &errMsg, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse run id: %w", err)
		}
		if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if finished.Valid {
			t, err := time.Parse(timeLayout, finished.String)
			if err != nil {
				return nil, fmt.Errorf("parse finished_at: %w", err)
			}
			run.FinishedAt = &t
		}
		if errMsg.Valid {
			run.Error = &errMsg.String
		}
		out = append(out, &run)
	}
	return out, rows.Err()
}

func (r *runRepository) ListOutcomes(ctx context.Context, runID uuid.UUID) ([]entity.Outcome, error) {
	rows, err := r.db.sql.QueryContext(ctx, r.db.rebind(
		`SELECT success, error, fields FROM record_outcome WHERE run_id = ? ORDER BY idx`), runID.String())
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var out []entity.Outcome
	for rows.Next() {
		var (
			success       int
			errMsg, field sql.NullString
		)
		if err := rows.Scan(&success, &errMsg, &field); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		if success == 0 {
			out = append(out, entity.Outcome{Error: errMsg.String})
			continue
		}
		var fields entity.Fields
		if field.Valid {
			if err := json.Unmarshal([]byte(field.String), &fields); err != nil {
				return nil, fmt.Errorf("decode fields: %w", err)
			}
		}
		out = append(out, entity.Succeeded(fields, nil))
	}
	return out, rows.Err()
}
