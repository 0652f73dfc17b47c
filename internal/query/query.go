package query

import (
	"context"
	"time"
)

type Request struct {
	SQL string
	// RowLimit stops scanning after that many rows; 0 reads everything.
	RowLimit int
}

type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}
