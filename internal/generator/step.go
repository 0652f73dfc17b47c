package generator

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sqlquorum/sqlquorum/internal/jsonx"
)

const (
	actionContinue = "continue"
	actionFinal    = "final_answer"
)

// Step is one turn of a reasoning episode: either Continuing or Final.
type Step interface {
	isStep()
}

type Continuing struct {
	Title   string
	Content string
}

// Final ends the episode. SQL is empty when the model answered without a
// query.
type Final struct {
	Title   string
	Content string
	SQL     string
}

func (Continuing) isStep() {}
func (Final) isStep()      {}

var errMalformedStep = errors.New("malformed reasoning step")

type wireStep struct {
	Title      *string `json:"title"`
	Content    *string `json:"content"`
	NextAction string  `json:"next_action,omitempty"`
	FinalSQL   *string `json:"final_sql,omitempty"`
}

const stepSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "content": {"type": "string"},
    "next_action": {"type": "string", "enum": ["continue", "final_answer"]},
    "final_sql": {"type": "string"}
  },
  "required": ["title", "content", "next_action"]
}`

const finalSchema = `{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "content": {"type": "string"},
    "final_sql": {"type": "string"}
  },
  "required": ["title", "content"]
}`

// parseStep validates model output against the step schema. When final is
// set the output is the forced final answer and next_action is not required.
func parseStep(text string, final bool) (Step, error) {
	var wire wireStep
	if err := jsonx.Decode(text, &wire); err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedStep, err)
	}
	if wire.Title == nil || wire.Content == nil {
		return nil, fmt.Errorf("%w: title and content are required", errMalformedStep)
	}
	sql := ""
	if wire.FinalSQL != nil {
		sql = *wire.FinalSQL
	}
	if final {
		return Final{Title: *wire.Title, Content: *wire.Content, SQL: sql}, nil
	}
	switch wire.NextAction {
	case actionContinue:
		return Continuing{Title: *wire.Title, Content: *wire.Content}, nil
	case actionFinal:
		return Final{Title: *wire.Title, Content: *wire.Content, SQL: sql}, nil
	default:
		return nil, fmt.Errorf("%w: next_action %q", errMalformedStep, wire.NextAction)
	}
}

// transcript renders a step the way it is replayed to the model.
func transcript(step Step) string {
	wire := wireStep{}
	switch s := step.(type) {
	case Continuing:
		wire = wireStep{Title: &s.Title, Content: &s.Content, NextAction: actionContinue}
	case Final:
		wire = wireStep{Title: &s.Title, Content: &s.Content, NextAction: actionFinal}
		if s.SQL != "" {
			wire.FinalSQL = &s.SQL
		}
	}
	raw, _ := json.Marshal(wire)
	return string(raw)
}
