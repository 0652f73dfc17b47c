package nl2sql

import (
	"log/slog"

	"github.com/sqlquorum/sqlquorum/internal/config"
	"github.com/sqlquorum/sqlquorum/internal/database"
	"github.com/sqlquorum/sqlquorum/internal/describe"
	"github.com/sqlquorum/sqlquorum/internal/generator"
	"github.com/sqlquorum/sqlquorum/internal/llm"
	"github.com/sqlquorum/sqlquorum/internal/pipeline"
	"github.com/sqlquorum/sqlquorum/internal/refiner"
	"github.com/sqlquorum/sqlquorum/internal/schema"
	"github.com/sqlquorum/sqlquorum/internal/selector"
)

type Deps struct {
	Schema       schema.Source
	Opener       database.Opener
	Model        llm.ChatModel
	Descriptions describe.Store
	Logger       *slog.Logger
}

// NewPipeline registers schema resolution, table selection, candidate
// generation and refinement, in that order.
func NewPipeline(deps Deps, cfg config.Config) *pipeline.Executor {
	retry := llm.RetryPolicy{Attempts: cfg.AI.MaxAttempts, Backoff: cfg.AI.RetryBackoff}

	executor := pipeline.NewExecutor(deps.Logger)
	executor.AddStage(pipeline.SchemaStage{Source: deps.Schema})
	executor.AddStage(selector.New(deps.Model, deps.Descriptions, selector.Config{
		Temperature: cfg.AI.SelectorTemperature,
		MaxTokens:   cfg.AI.MaxTokens,
		JSONMode:    cfg.AI.JSONMode,
		Retry:       retry,
		PreferExact: cfg.Describe.PreferExact,
	}, deps.Logger))
	executor.AddStage(generator.New(deps.Model, deps.Descriptions, generator.Config{
		Candidates:  cfg.Generator.Candidates,
		MaxSteps:    cfg.Generator.MaxSteps,
		Concurrency: cfg.Generator.Concurrency,
		Temperature: cfg.AI.GeneratorTemperature,
		MaxTokens:   cfg.AI.MaxTokens,
		JSONMode:    cfg.AI.JSONMode,
		Retry:       retry,
		PreferExact: cfg.Describe.PreferExact,
	}, deps.Logger))
	executor.AddStage(refiner.New(deps.Opener, refiner.Config{
		RowLimit:    cfg.Refiner.RowLimit,
		CompareRows: cfg.Refiner.CompareRows,
		ExecTimeout: cfg.Refiner.ExecTimeout,
	}, deps.Logger))
	return executor
}
