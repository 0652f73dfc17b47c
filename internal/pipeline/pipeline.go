// Package pipeline runs the ordered synthesis stages over one typed state.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sqlquorum/sqlquorum/internal/observability"
	"github.com/sqlquorum/sqlquorum/internal/schema"
)

// RejectedSQL is the final SQL of a run in which no candidate executed.
const RejectedSQL = "No valid SQL queries were generated.REJECTED"

type Input struct {
	Question string
	Hint     string
	DBID     string
	// Schema optionally replaces the introspected table -> columns mapping
	// shown to the selector.
	Schema map[string][]string
}

// Outcome is the execution result of one candidate.
type Outcome struct {
	SQL     string        `json:"sql"`
	Rows    [][]any       `json:"rows,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Err     string        `json:"error,omitempty"`
}

func (o Outcome) Succeeded() bool {
	return o.Err == ""
}

// State is owned by a single run and only changed through stage updates.
type State struct {
	RunID          string
	Question       string
	Hint           string
	DBID           string
	ProvidedSchema map[string][]string

	Graph      *schema.Graph
	Selection  schema.Selection
	Candidates []string
	Outcomes   []Outcome
	FinalSQL   string
}

// Rejected reports whether the run ended without an executable candidate.
func (s *State) Rejected() bool {
	return s.FinalSQL == RejectedSQL
}

// WorkingSchema is the schema shown to the model: the caller's schema when
// one was given, otherwise the introspected one.
func (s *State) WorkingSchema() map[string][]string {
	if len(s.ProvidedSchema) > 0 {
		return s.ProvidedSchema
	}
	if s.Graph == nil {
		return map[string][]string{}
	}
	return s.Graph.Columns()
}

// Update carries a stage's output. Nil fields are left untouched; a non-nil
// empty value replaces the current one.
type Update struct {
	Graph      *schema.Graph
	Selection  schema.Selection
	Candidates []string
	Outcomes   []Outcome
	FinalSQL   *string
}

func (s *State) apply(u Update) {
	if u.Graph != nil {
		s.Graph = u.Graph
	}
	if u.Selection != nil {
		s.Selection = u.Selection
	}
	if u.Candidates != nil {
		s.Candidates = u.Candidates
	}
	if u.Outcomes != nil {
		s.Outcomes = u.Outcomes
	}
	if u.FinalSQL != nil {
		s.FinalSQL = *u.FinalSQL
	}
}

// Stage is one step of the pipeline. Process must treat the state as read-only.
type Stage interface {
	Name() string
	Process(ctx context.Context, state *State) (Update, error)
}

type Executor struct {
	stages []Stage
	logger *slog.Logger
}

func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Executor{logger: logger}
}

func (e *Executor) AddStage(stage Stage) {
	e.stages = append(e.stages, stage)
}

func (e *Executor) StageNames() []string {
	names := make([]string, 0, len(e.stages))
	for _, stage := range e.stages {
		names = append(names, stage.Name())
	}
	return names
}

// Run executes the stages in registration order. The first stage error is
// returned unchanged and no later stage runs. Cancellation is checked before
// each stage. The returned state holds whatever was merged so far.
func (e *Executor) Run(ctx context.Context, in Input) (*State, error) {
	state := &State{
		RunID:          uuid.NewString(),
		Question:       in.Question,
		Hint:           in.Hint,
		DBID:           in.DBID,
		ProvidedSchema: in.Schema,
	}
	logger := e.logger.With(slog.String("run_id", state.RunID), slog.String("db_id", in.DBID))

	for _, stage := range e.stages {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		start := time.Now()
		logger.DebugContext(ctx, "stage started", slog.String("stage", stage.Name()))
		update, err := stage.Process(ctx, state)
		elapsed := time.Since(start)
		observability.ObserveStage(stage.Name(), elapsed, err)
		if err != nil {
			logger.WarnContext(ctx, "stage failed",
				slog.String("stage", stage.Name()),
				slog.Duration("duration", elapsed),
				slog.String("error", err.Error()),
			)
			return state, err
		}
		state.apply(update)
		logger.InfoContext(ctx, "stage finished",
			slog.String("stage", stage.Name()),
			slog.Duration("duration", elapsed),
		)
	}
	return state, nil
}

// Results exposes the intermediate results of a run for verbose output.
func (s *State) Results() map[string]any {
	out := map[string]any{
		"run_id":             s.RunID,
		"db_schema":          s.WorkingSchema(),
		"selected_tables":    s.Selection,
		"sql_candidates":     s.Candidates,
		"execution_outcomes": s.Outcomes,
		"final_sql":          s.FinalSQL,
	}
	if s.Graph != nil {
		out["primary_keys"] = s.Graph.PrimaryKeys
		out["foreign_keys"] = s.Graph.JoinConditions(nil)
	}
	return out
}

func (s *State) String() string {
	return fmt.Sprintf("run %s db=%s candidates=%d final=%q", s.RunID, s.DBID, len(s.Candidates), s.FinalSQL)
}
