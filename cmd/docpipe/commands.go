package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/joseph-ayodele/docpipe/internal/async"
	"github.com/joseph-ayodele/docpipe/internal/common"
	"github.com/joseph-ayodele/docpipe/internal/core/extract"
	"github.com/joseph-ayodele/docpipe/internal/entity"
	"github.com/joseph-ayodele/docpipe/internal/ingest"
	"github.com/joseph-ayodele/docpipe/internal/pipeline"
	"github.com/joseph-ayodele/docpipe/internal/repository"
)

// resultPrinter writes one JSON line per finished job. Queue workers call it
// concurrently.
func resultPrinter(w io.Writer, logger *slog.Logger) async.ResultFunc {
	var mu sync.Mutex
	out := json.NewEncoder(w)
	return func(job async.Job, o entity.Outcome, err error) {
		if err != nil {
			o = entity.Failed(err)
		}
		mu.Lock()
		defer mu.Unlock()
		if err := out.Encode(map[string]any{"path": job.Path, "outcome": o}); err != nil {
			logger.Warn("write result failed", "path", job.Path, "error", err)
		}
	}
}

type runResult struct {
	Stages   []pipeline.StageReport `json:"stages"`
	Outcomes []entity.Outcome       `json:"outcomes"`
	Error    string                 `json:"error,omitempty"`
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run PDFs through text extraction, field parsing, summarization and the file sink",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "directory scanned recursively for PDFs"},
			&cli.StringSliceFlag{Name: "file", Aliases: []string{"f"}, Usage: "PDF file (repeatable)"},
			&cli.BoolFlag{Name: "include-hidden", Usage: "descend into hidden directories when scanning"},
			&cli.BoolFlag{Name: "continue-on-fail", EnvVars: []string{"CONTINUE_ON_FAIL"}},
			&cli.IntFlag{Name: "concurrency", EnvVars: []string{"CONCURRENCY"}},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c, true)
			if err != nil {
				return err
			}
			defer e.close()
			if c.IsSet("continue-on-fail") {
				e.cfg.Runner.ContinueOnFail = c.Bool("continue-on-fail")
			}
			if c.IsSet("concurrency") {
				e.cfg.Runner.Concurrency = c.Int("concurrency")
			}

			batch := ingest.FileRecords(c.StringSlice("file")...)
			if dir := c.String("dir"); dir != "" {
				scanned, _, err := ingest.ScanDirectory(dir, !c.Bool("include-hidden"), e.logger)
				if err != nil {
					return err
				}
				batch = append(batch, scanned...)
			}
			if len(batch) == 0 {
				return common.MissingInputErrorf("no input: pass --dir or --file")
			}

			proc, err := e.processor()
			if err != nil {
				return err
			}
			outcomes, reports, runErr := proc.Process(c.Context, batch)
			res := runResult{Stages: reports, Outcomes: outcomes}
			if res.Outcomes == nil {
				res.Outcomes = []entity.Outcome{}
			}
			if runErr != nil {
				res.Error = runErr.Error()
			}
			if err := writeJSON(c.App.Writer, res); err != nil {
				return err
			}
			return runErr
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "process PDFs as they appear under a directory",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "dir", Required: true, Usage: "directory to watch (repeatable)"},
			&cli.BoolFlag{Name: "initial-scan", Usage: "also process PDFs already present"},
			&cli.DurationFlag{Name: "debounce", Value: 500 * time.Millisecond},
			&cli.IntFlag{Name: "workers", EnvVars: []string{"WATCH_WORKERS"}},
			&cli.DurationFlag{Name: "job-timeout", EnvVars: []string{"WATCH_JOB_TIMEOUT"}},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c, true)
			if err != nil {
				return err
			}
			defer e.close()
			if c.IsSet("workers") {
				e.cfg.Runner.Workers = c.Int("workers")
			}
			if c.IsSet("job-timeout") {
				e.cfg.Runner.JobTimeout = c.Duration("job-timeout")
			}

			proc, err := e.processor()
			if err != nil {
				return err
			}
			events, errs, err := ingest.StartWatcher(c.Context, ingest.WatchConfig{
				Roots:       c.StringSlice("dir"),
				InitialScan: c.Bool("initial-scan"),
				SkipHidden:  true,
				Debounce:    c.Duration("debounce"),
				Logger:      e.logger,
			})
			if err != nil {
				return err
			}

			queue := async.NewProcessorQueue(proc, e.logger,
				async.WithWorkers(e.cfg.Runner.Workers),
				async.WithProcessTimeout(e.cfg.Runner.JobTimeout),
				async.WithResultFunc(resultPrinter(c.App.Writer, e.logger)),
			)
			defer func() {
				ctx, cancel := contextWithTimeout(e.cfg.Runner.JobTimeout)
				defer cancel()
				queue.Shutdown(ctx)
			}()

			for {
				select {
				case path, ok := <-events:
					if !ok {
						return nil
					}
					if err := queue.Enqueue(c.Context, async.NewJob(path)); err != nil && c.Context.Err() == nil {
						e.logger.Warn("enqueue failed", "path", path, "error", err)
					}
				case err, ok := <-errs:
					if ok {
						e.logger.Warn("watch error", "error", err)
					}
				case <-c.Context.Done():
					e.logger.Info("stopping watcher")
					return nil
				}
			}
		},
	}
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "apply an extraction rule set to a text file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rules", Usage: "rule set as JSON; defaults to EXTRACTION_RULES or the built-in rules"},
			&cli.StringFlag{Name: "rules-file", Usage: "rule set file (.json, .yaml)"},
			&cli.StringFlag{Name: "text-file", Required: true, Usage: "text to extract from, - for stdin"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := newLogger(c.App.ErrWriter, cfg.Log)

			if v := c.String("rules-file"); v != "" {
				cfg.Extract.RulesFile = v
			}
			payload, err := cfg.RulesJSON()
			if err != nil {
				return err
			}
			if v := c.String("rules"); v != "" {
				payload = v
			}
			rules, err := extract.ParseRuleSet(payload)
			if err != nil {
				return err
			}

			text, err := readText(c.App.Reader, c.String("text-file"))
			if err != nil {
				return err
			}
			fields, meta := extract.NewEngine(logger).Apply(text, rules)
			return writeJSON(c.App.Writer, map[string]any{
				"fields":             map[string]any(fields),
				"extractionMetadata": meta.Map(),
			})
		},
	}
}

func runsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "list recent stage runs from the ledger",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20},
			&cli.StringFlag{Name: "id", Usage: "show record outcomes for one run"},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c, true)
			if err != nil {
				return err
			}
			defer e.close()
			if e.db == nil {
				return common.ConfigurationErrorf("LEDGER_DSN is not set")
			}
			repo := repository.NewRunRepository(e.db, e.logger)
			if id := c.String("id"); id != "" {
				runID, err := parseRunID(id)
				if err != nil {
					return err
				}
				outcomes, err := repo.ListOutcomes(c.Context, runID)
				if err != nil {
					return err
				}
				return writeJSON(c.App.Writer, outcomes)
			}
			runs, err := repo.ListRuns(c.Context, c.Int("limit"))
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, runs)
		},
	}
}

func dbhealthCommand() *cli.Command {
	return &cli.Command{
		Name:  "dbhealth",
		Usage: "ping the run ledger database",
		Action: func(c *cli.Context) error {
			e, err := setup(c, true)
			if err != nil {
				return err
			}
			defer e.close()
			if e.db == nil {
				return common.ConfigurationErrorf("LEDGER_DSN is not set")
			}
			if err := healthCheck(c.Context, e.db, e.logger); err != nil {
				return fmt.Errorf("ledger health: FAIL (%w)", err)
			}
			_, err = fmt.Fprintln(c.App.Writer, "ledger health: OK")
			return err
		},
	}
}

func readText(stdin io.Reader, path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", common.IOErrorf("read text %s: %w", path, err)
	}
	return string(b), nil
}

func writeJSON(w io.Writer, v any) error {
	b, err := entity.MarshalIndent(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
