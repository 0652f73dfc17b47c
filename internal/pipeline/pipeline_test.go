package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/sqlquorum/sqlquorum/internal/schema"
)

type recordingStage struct {
	name   string
	log    *[]string
	update Update
	err    error
	check  func(*State)
}

func (r recordingStage) Name() string { return r.name }

func (r recordingStage) Process(_ context.Context, state *State) (Update, error) {
	*r.log = append(*r.log, r.name)
	if r.check != nil {
		r.check(state)
	}
	return r.update, r.err
}

func TestRunExecutesStagesInOrderAndMergesUpdates(t *testing.T) {
	var log []string
	final := "SELECT 1;"
	exec := NewExecutor(nil)
	exec.AddStage(recordingStage{name: "a", log: &log, update: Update{Selection: schema.Selection{"t": {"c"}}}})
	exec.AddStage(recordingStage{name: "b", log: &log, update: Update{Candidates: []string{final}}, check: func(s *State) {
		if len(s.Selection["t"]) != 1 {
			t.Errorf("stage b saw selection %v", s.Selection)
		}
	}})
	exec.AddStage(recordingStage{name: "c", log: &log, update: Update{FinalSQL: &final}})

	state, err := exec.Run(context.Background(), Input{Question: "q", DBID: "club"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !reflect.DeepEqual(log, []string{"a", "b", "c"}) {
		t.Fatalf("order = %v", log)
	}
	if state.FinalSQL != final || len(state.Candidates) != 1 || state.RunID == "" {
		t.Fatalf("state = %s", state)
	}
	if !reflect.DeepEqual(exec.StageNames(), []string{"a", "b", "c"}) {
		t.Fatalf("StageNames() = %v", exec.StageNames())
	}
}

func TestUpdateNilLeavesValueEmptyReplaces(t *testing.T) {
	var log []string
	exec := NewExecutor(nil)
	exec.AddStage(recordingStage{name: "set", log: &log, update: Update{Selection: schema.Selection{"t": {"c"}}, Candidates: []string{"x;"}}})
	exec.AddStage(recordingStage{name: "noop", log: &log})
	exec.AddStage(recordingStage{name: "clear", log: &log, update: Update{Selection: schema.Selection{}}})

	state, err := exec.Run(context.Background(), Input{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.Selection == nil || len(state.Selection) != 0 {
		t.Fatalf("Selection = %#v, want empty non-nil", state.Selection)
	}
	if len(state.Candidates) != 1 {
		t.Fatalf("Candidates = %v, want untouched", state.Candidates)
	}
}

var errBoom = errors.New("boom")

func TestRunStopsAtFirstErrorAndPreservesIt(t *testing.T) {
	var log []string
	exec := NewExecutor(nil)
	exec.AddStage(recordingStage{name: "a", log: &log, err: fmt.Errorf("wrapped: %w", errBoom)})
	exec.AddStage(recordingStage{name: "b", log: &log})

	_, err := exec.Run(context.Background(), Input{})
	if !errors.Is(err, errBoom) {
		t.Fatalf("Run() error = %v, want errBoom", err)
	}
	if !reflect.DeepEqual(log, []string{"a"}) {
		t.Fatalf("stages run = %v", log)
	}
}

type cancellingStage struct {
	cancel context.CancelFunc
	log    *[]string
}

func (cancellingStage) Name() string { return "cancel" }

func (c cancellingStage) Process(context.Context, *State) (Update, error) {
	*c.log = append(*c.log, "cancel")
	c.cancel()
	return Update{}, nil
}

func TestRunChecksCancellationBetweenStages(t *testing.T) {
	var log []string
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec := NewExecutor(nil)
	exec.AddStage(cancellingStage{cancel: cancel, log: &log})
	exec.AddStage(recordingStage{name: "after", log: &log})

	_, err := exec.Run(ctx, Input{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if !reflect.DeepEqual(log, []string{"cancel"}) {
		t.Fatalf("stages run = %v", log)
	}
}

type fakeSource struct {
	graph *schema.Graph
	err   error
}

func (f fakeSource) Resolve(context.Context, string) (*schema.Graph, error) {
	return f.graph, f.err
}

func TestSchemaStageAndResults(t *testing.T) {
	g := &schema.Graph{
		Tables:      []schema.Table{{Name: "member", Columns: []string{"member_id"}}, {Name: "major", Columns: []string{"major_id"}}},
		PrimaryKeys: map[string][]string{"member": {"member_id"}},
		ForeignKeys: []schema.ForeignKey{{Table: "member", Column: "member_id", RefTable: "major", RefColumn: "major_id"}},
	}
	exec := NewExecutor(nil)
	exec.AddStage(SchemaStage{Source: fakeSource{graph: g}})
	state, err := exec.Run(context.Background(), Input{DBID: "club"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	results := state.Results()
	for _, key := range []string{"db_schema", "primary_keys", "foreign_keys", "selected_tables", "sql_candidates", "execution_outcomes", "final_sql"} {
		if _, ok := results[key]; !ok {
			t.Fatalf("Results() missing %q", key)
		}
	}
	if !reflect.DeepEqual(results["foreign_keys"], []string{`member."member_id"=major."major_id"`}) {
		t.Fatalf("foreign_keys = %v", results["foreign_keys"])
	}

	exec = NewExecutor(nil)
	exec.AddStage(SchemaStage{Source: fakeSource{err: schema.ErrSchemaUnavailable}})
	if _, err := exec.Run(context.Background(), Input{DBID: "club"}); !errors.Is(err, schema.ErrSchemaUnavailable) {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestWorkingSchemaPrefersProvided(t *testing.T) {
	state := &State{
		ProvidedSchema: map[string][]string{"custom": {"a"}},
		Graph:          &schema.Graph{Tables: []schema.Table{{Name: "member", Columns: []string{"member_id"}}}},
	}
	if _, ok := state.WorkingSchema()["custom"]; !ok {
		t.Fatalf("WorkingSchema() = %v", state.WorkingSchema())
	}
	state.ProvidedSchema = nil
	if _, ok := state.WorkingSchema()["member"]; !ok {
		t.Fatalf("WorkingSchema() = %v", state.WorkingSchema())
	}
	if (&State{FinalSQL: RejectedSQL}).Rejected() != true {
		t.Fatal("Rejected() = false")
	}
}
