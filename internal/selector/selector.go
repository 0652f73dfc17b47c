// Package selector narrows the full schema to the tables and columns relevant
// to a question.
package selector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sqlquorum/sqlquorum/internal/describe"
	"github.com/sqlquorum/sqlquorum/internal/jsonx"
	"github.com/sqlquorum/sqlquorum/internal/llm"
	"github.com/sqlquorum/sqlquorum/internal/observability"
	"github.com/sqlquorum/sqlquorum/internal/pipeline"
	"github.com/sqlquorum/sqlquorum/internal/schema"
)

type Config struct {
	Temperature float64
	MaxTokens   int
	JSONMode    bool
	Retry       llm.RetryPolicy
	PreferExact bool
}

type Selector struct {
	model        llm.ChatModel
	descriptions describe.Store
	cfg          Config
	logger       *slog.Logger
}

func New(model llm.ChatModel, descriptions describe.Store, cfg Config, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	if descriptions == nil {
		descriptions = describe.NoopStore{}
	}
	return &Selector{model: model, descriptions: descriptions, cfg: cfg, logger: logger}
}

func (s *Selector) Name() string { return "table_selector" }

// Process makes one model call. Output that cannot be parsed becomes an empty
// selection; hint names are then enforced on whatever was selected.
func (s *Selector) Process(ctx context.Context, state *pipeline.State) (pipeline.Update, error) {
	logger := s.logger.With(slog.String("run_id", state.RunID), slog.String("db_id", state.DBID))
	working := state.WorkingSchema()
	descs := describe.ForSchema(ctx, s.descriptions, logger, state.DBID, working, s.cfg.PreferExact)

	prompt, err := buildPrompt(state.Question, state.Hint, working, descs)
	if err != nil {
		return pipeline.Update{}, err
	}
	out, err := llm.CompleteWithRetry(ctx, s.model, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		JSON:        s.cfg.JSONMode,
	}, s.cfg.Retry, logger)
	if err != nil {
		observability.ObserveLLMCall("select", "error")
		return pipeline.Update{}, err
	}
	observability.ObserveLLMCall("select", "ok")

	selection, err := ParseSelection(out)
	if err != nil {
		observability.IncrementSelectionFallback()
		logger.WarnContext(ctx, "table selection unparseable, continuing with empty selection",
			slog.String("error", err.Error()),
		)
		selection = schema.Selection{}
	}
	selection = EnforceHint(selection, state.Hint, working)
	logger.InfoContext(ctx, "tables selected", slog.Any("tables", selection.Tables()))
	return pipeline.Update{Selection: selection}, nil
}

// ParseSelection recovers a table -> columns object from model output. A
// string value becomes a one-column list; other non-list values are dropped.
func ParseSelection(text string) (schema.Selection, error) {
	var raw map[string]any
	if err := jsonx.Decode(text, &raw); err != nil {
		return nil, err
	}
	out := make(schema.Selection, len(raw))
	for table, value := range raw {
		switch typed := value.(type) {
		case string:
			out[table] = []string{typed}
		case []any:
			columns := make([]string, 0, len(typed))
			for _, item := range typed {
				if column, ok := item.(string); ok {
					columns = append(columns, column)
				}
			}
			out[table] = columns
		}
	}
	return out, nil
}

// EnforceHint adds every schema table or column that the hint names exactly
// (case-sensitive, bounded by non-identifier characters) and the selection
// lacks. A hinted table is added with all its columns. A hinted column is
// added to each selected table that has it, or else to the first table in
// name order that has it.
func EnforceHint(selection schema.Selection, hint string, working map[string][]string) schema.Selection {
	out := selection.Clone()
	if strings.TrimSpace(hint) == "" {
		return out
	}
	tables := make([]string, 0, len(working))
	for table := range working {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		if _, ok := out[table]; !ok && mentions(hint, table) {
			out[table] = append([]string(nil), working[table]...)
		}
	}

	seen := map[string]bool{}
	for _, table := range tables {
		for _, column := range working[table] {
			if seen[column] || !mentions(hint, column) {
				continue
			}
			seen[column] = true
			placed := false
			for _, owner := range tables {
				if _, selected := out[owner]; !selected || !contains(working[owner], column) {
					continue
				}
				placed = true
				if !contains(out[owner], column) {
					out[owner] = append(out[owner], column)
				}
			}
			if !placed {
				out[table] = append(out[table], column)
			}
		}
	}
	return out
}

func mentions(text, name string) bool {
	if name == "" {
		return false
	}
	for offset := 0; offset < len(text); {
		idx := strings.Index(text[offset:], name)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(name)
		if (start == 0 || !isIdentByte(text[start-1])) && (end == len(text) || !isIdentByte(text[end])) {
			return true
		}
		offset = start + 1
	}
	return false
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func buildPrompt(question, hint string, working map[string][]string, descs describe.Descriptions) (string, error) {
	schemaJSON, err := json.MarshalIndent(working, "", "    ")
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	descJSON, err := json.MarshalIndent(descs, "", "    ")
	if err != nil {
		return "", fmt.Errorf("marshal descriptions: %w", err)
	}
	return fmt.Sprintf(userPromptTemplate, question, hint, schemaJSON, descJSON, hint), nil
}
