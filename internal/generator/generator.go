// Package generator produces candidate SQL statements through independent
// step-by-step reasoning episodes.
package generator

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sqlquorum/sqlquorum/internal/describe"
	"github.com/sqlquorum/sqlquorum/internal/llm"
	"github.com/sqlquorum/sqlquorum/internal/observability"
	"github.com/sqlquorum/sqlquorum/internal/pipeline"
	"github.com/sqlquorum/sqlquorum/internal/schema"
)

type Config struct {
	Candidates  int
	MaxSteps    int
	Concurrency int
	Temperature float64
	// MaxTokens bounds each completion; zero leaves it to the provider.
	MaxTokens   int
	JSONMode    bool
	Retry       llm.RetryPolicy
	PreferExact bool
}

func (c Config) withDefaults() Config {
	if c.Candidates <= 0 {
		c.Candidates = 3
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = 10
	}
	if c.Concurrency <= 0 {
		c.Concurrency = c.Candidates
	}
	if c.Retry.Attempts <= 0 {
		c.Retry.Attempts = 3
	}
	return c
}

type Generator struct {
	model        llm.ChatModel
	descriptions describe.Store
	cfg          Config
	logger       *slog.Logger
}

func New(model llm.ChatModel, descriptions describe.Store, cfg Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	if descriptions == nil {
		descriptions = describe.NoopStore{}
	}
	return &Generator{model: model, descriptions: descriptions, cfg: cfg.withDefaults(), logger: logger}
}

func (g *Generator) Name() string { return "candidate_generator" }

// Process runs Candidates episodes and keeps the ones that yield SQL, in
// slot order. An empty selection widens the focus to the whole schema.
func (g *Generator) Process(ctx context.Context, state *pipeline.State) (pipeline.Update, error) {
	logger := g.logger.With(slog.String("run_id", state.RunID), slog.String("db_id", state.DBID))
	focus := state.Selection
	if len(focus) == 0 {
		focus = schema.Selection(state.WorkingSchema())
	}
	in := promptInput{
		Question:     state.Question,
		Hint:         state.Hint,
		Focus:        focus,
		Descriptions: describe.ForSchema(ctx, g.descriptions, logger, state.DBID, focus, g.cfg.PreferExact),
		PrimaryKeys:  map[string][]string{},
	}
	if state.Graph != nil {
		in.PrimaryKeys = state.Graph.PrimaryKeysFor(state.Selection)
		in.Joins = state.Graph.JoinConditions(state.Selection)
	}
	prompt, err := buildPrompt(in)
	if err != nil {
		return pipeline.Update{}, err
	}

	slots := make([]string, g.cfg.Candidates)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.cfg.Concurrency)
	for i := range slots {
		group.Go(func() error {
			raw, err := g.Reason(groupCtx, prompt)
			if err != nil {
				return err
			}
			sql, ok := NormalizeSQL(raw)
			if !ok {
				logger.WarnContext(ctx, "reasoning episode produced no sql", slog.Int("slot", i))
				return nil
			}
			slots[i] = sql
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return pipeline.Update{}, err
	}

	candidates := make([]string, 0, len(slots))
	for _, sql := range slots {
		if sql != "" {
			candidates = append(candidates, sql)
		}
	}
	observability.ObserveCandidates(len(candidates))
	logger.InfoContext(ctx, "candidates generated",
		slog.Int("requested", g.cfg.Candidates),
		slog.Int("produced", len(candidates)),
	)
	return pipeline.Update{Candidates: candidates}, nil
}

// Reason runs one episode of at most MaxSteps step calls plus one forced
// final call. It returns "FINAL SQL: <sql>" when the model gave a query and
// the last step's content otherwise.
func (g *Generator) Reason(ctx context.Context, prompt string) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: prompt},
		{Role: llm.RoleAssistant, Content: primingReply},
	}
	for i := 0; i < g.cfg.MaxSteps; i++ {
		step, err := g.callStructured(ctx, messages, false)
		if err != nil {
			return "", err
		}
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: transcript(step)})
		if final, ok := step.(Final); ok {
			if final.SQL != "" {
				return FinalSQLMarker + " " + final.SQL, nil
			}
			break
		}
	}

	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: finalRequest})
	step, err := g.callStructured(ctx, messages, true)
	if err != nil {
		return "", err
	}
	final := step.(Final)
	if final.SQL != "" {
		return FinalSQLMarker + " " + final.SQL, nil
	}
	return final.Content, nil
}

// callStructured asks for one step, retrying malformed output and transport
// errors. Malformed output on every attempt yields an Error step; a transport
// error on the last attempt is returned as llm.ErrModelUnavailable.
func (g *Generator) callStructured(ctx context.Context, messages []llm.Message, final bool) (Step, error) {
	schemaJSON, purpose := stepSchema, "step"
	if final {
		schemaJSON, purpose = finalSchema, "final"
	}
	req := llm.ChatRequest{
		Messages:    llm.WithSchema(messages, schemaJSON),
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
		JSON:        g.cfg.JSONMode,
	}

	attempts := g.cfg.Retry.Attempts
	var lastErr error
	transportFailure := false
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := g.model.Complete(ctx, req)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			lastErr, transportFailure = err, true
			observability.ObserveLLMCall("generate_"+purpose, "error")
		default:
			step, parseErr := parseStep(out, final)
			if parseErr == nil {
				observability.ObserveLLMCall("generate_"+purpose, "ok")
				return step, nil
			}
			lastErr, transportFailure = parseErr, false
			observability.ObserveLLMCall("generate_"+purpose, "malformed")
		}
		g.logger.WarnContext(ctx, "reasoning step failed",
			slog.String("purpose", purpose),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.String("error", lastErr.Error()),
		)
		if attempt < attempts {
			if err := g.cfg.Retry.Wait(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}

	if transportFailure {
		return nil, fmt.Errorf("%w: %w", llm.ErrModelUnavailable, lastErr)
	}
	what := "step"
	if final {
		what = "final answer"
	}
	return Final{
		Title:   "Error",
		Content: fmt.Sprintf("Failed to generate %s after %d attempts. Error: %v", what, attempts, lastErr),
	}, nil
}
