package pipeline

import (
	"context"

	"github.com/sqlquorum/sqlquorum/internal/schema"
)

// SchemaStage resolves the key graph of the run's database.
type SchemaStage struct {
	Source schema.Source
}

func (SchemaStage) Name() string { return "schema" }

func (s SchemaStage) Process(ctx context.Context, state *State) (Update, error) {
	g, err := s.Source.Resolve(ctx, state.DBID)
	if err != nil {
		return Update{}, err
	}
	return Update{Graph: g}, nil
}
