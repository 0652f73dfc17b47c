// Package refiner executes candidate SQL and picks the statement whose
// results most candidates agree on.
package refiner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sqlquorum/sqlquorum/internal/database"
	"github.com/sqlquorum/sqlquorum/internal/observability"
	"github.com/sqlquorum/sqlquorum/internal/pipeline"
	"github.com/sqlquorum/sqlquorum/internal/query"
	"github.com/sqlquorum/sqlquorum/internal/schema"
)

type Config struct {
	// RowLimit caps the rows fetched per candidate.
	RowLimit int
	// CompareRows is how many leading rows take part in the vote.
	CompareRows int
	// ExecTimeout bounds each candidate; zero disables the bound.
	ExecTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.RowLimit <= 0 {
		c.RowLimit = 50
	}
	if c.CompareRows <= 0 {
		c.CompareRows = 3
	}
	return c
}

type Refiner struct {
	opener database.Opener
	cfg    Config
	logger *slog.Logger
}

func New(opener database.Opener, cfg Config, logger *slog.Logger) *Refiner {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Refiner{opener: opener, cfg: cfg.withDefaults(), logger: logger}
}

func (r *Refiner) Name() string { return "refiner" }

// Process executes every candidate against the run's database and sets the
// final SQL to the vote winner, or to pipeline.RejectedSQL when no candidate
// executed.
func (r *Refiner) Process(ctx context.Context, state *pipeline.State) (pipeline.Update, error) {
	logger := r.logger.With(slog.String("run_id", state.RunID), slog.String("db_id", state.DBID))
	if len(state.Candidates) == 0 {
		rejected := pipeline.RejectedSQL
		logger.WarnContext(ctx, "no candidates to refine")
		return pipeline.Update{Outcomes: []pipeline.Outcome{}, FinalSQL: &rejected}, nil
	}

	if err := ctx.Err(); err != nil {
		return pipeline.Update{}, err
	}
	handle, err := r.opener.Open(ctx, state.DBID)
	if err != nil {
		if ctx.Err() != nil {
			return pipeline.Update{}, ctx.Err()
		}
		return pipeline.Update{}, fmt.Errorf("%w: %w", schema.ErrSchemaUnavailable, err)
	}
	defer func() { _ = handle.Close() }()

	outcomes := r.Execute(ctx, query.NewSQLEngine(handle.DB), state.Candidates)
	if err := ctx.Err(); err != nil {
		return pipeline.Update{}, err
	}

	final, votes, ok := Vote(outcomes, r.cfg.CompareRows)
	if !ok {
		final = pipeline.RejectedSQL
		logger.WarnContext(ctx, "every candidate failed to execute", slog.Int("candidates", len(outcomes)))
	} else {
		observability.ObserveWinningGroup(votes)
		logger.InfoContext(ctx, "candidate selected",
			slog.Int("votes", votes),
			slog.Int("candidates", len(outcomes)),
		)
	}
	return pipeline.Update{Outcomes: outcomes, FinalSQL: &final}, nil
}

// Execute runs each candidate in order. Failures are recorded on the outcome
// and never stop the remaining candidates.
func (r *Refiner) Execute(ctx context.Context, engine query.Engine, candidates []string) []pipeline.Outcome {
	outcomes := make([]pipeline.Outcome, 0, len(candidates))
	for _, candidate := range candidates {
		sqlText := query.StripTrailingSemicolons(candidate)
		outcome := pipeline.Outcome{SQL: sqlText}

		execCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.cfg.ExecTimeout > 0 {
			execCtx, cancel = context.WithTimeout(ctx, r.cfg.ExecTimeout)
		}
		start := time.Now()
		result, err := engine.Execute(execCtx, query.Request{SQL: sqlText, RowLimit: r.cfg.RowLimit})
		cancel()
		if err != nil {
			outcome.Elapsed = time.Since(start)
			outcome.Err = err.Error()
			observability.IncrementCandidateExecutionFailure()
			r.logger.DebugContext(ctx, "candidate failed", slog.String("sql", sqlText), slog.String("error", err.Error()))
		} else {
			outcome.Rows = result.Rows
			outcome.Elapsed = result.Duration
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}
