// Package nl2sql is the invocation surface of the synthesis pipeline.
package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sqlquorum/sqlquorum/internal/llm"
	"github.com/sqlquorum/sqlquorum/internal/observability"
	"github.com/sqlquorum/sqlquorum/internal/pipeline"
	"github.com/sqlquorum/sqlquorum/internal/schema"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Kind classifies an error response.
type Kind string

const (
	KindInvalidRequest    Kind = "invalid_request"
	KindRejected          Kind = "rejected"
	KindSchemaUnavailable Kind = "schema_unavailable"
	KindModelUnavailable  Kind = "model_unavailable"
	KindCanceled          Kind = "canceled"
	KindInternal          Kind = "internal"
)

const rejectedMessage = "unable to generate a valid SQL query"

type Request struct {
	Question string              `json:"question"`
	Hint     string              `json:"hint,omitempty"`
	DBName   string              `json:"db_id"`
	DBSchema map[string][]string `json:"db_schema,omitempty"`
	Verbose  bool                `json:"verbose,omitempty"`
}

type Response struct {
	RunID   string         `json:"run_id,omitempty"`
	SQL     string         `json:"sql"`
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Kind    Kind           `json:"error_kind,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Generator is implemented by Service.
type Generator interface {
	GenerateSQL(ctx context.Context, req Request) Response
}

type Service struct {
	executor *pipeline.Executor
	logger   *slog.Logger
}

func NewService(executor *pipeline.Executor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Service{executor: executor, logger: logger}
}

// GenerateSQL runs the pipeline once. Every outcome, including a panic in a
// stage, is reported as a Response.
func (s *Service) GenerateSQL(ctx context.Context, req Request) (resp Response) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.ErrorContext(ctx, "pipeline panicked", slog.String("panic", fmt.Sprint(recovered)))
			resp = Response{RunID: resp.RunID, Status: StatusError, Message: "internal error", Kind: KindInternal}
		}
		observability.ObservePipelineRun(runStatus(resp))
	}()

	if strings.TrimSpace(req.Question) == "" {
		return errorResponse("", KindInvalidRequest, "question is required")
	}
	if strings.TrimSpace(req.DBName) == "" {
		return errorResponse("", KindInvalidRequest, "db_id is required")
	}

	state, err := s.executor.Run(ctx, pipeline.Input{
		Question: req.Question,
		Hint:     req.Hint,
		DBID:     req.DBName,
		Schema:   req.DBSchema,
	})
	runID := ""
	if state != nil {
		runID = state.RunID
	}
	if err != nil {
		kind := Classify(err)
		s.logger.WarnContext(ctx, "pipeline run failed",
			slog.String("run_id", runID),
			slog.String("db_id", req.DBName),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		resp = errorResponse(runID, kind, err.Error())
		if req.Verbose && state != nil {
			resp.Details = state.Results()
		}
		return resp
	}

	if state.Rejected() {
		resp = Response{RunID: runID, SQL: state.FinalSQL, Status: StatusError, Message: rejectedMessage, Kind: KindRejected}
	} else {
		resp = Response{RunID: runID, SQL: state.FinalSQL, Status: StatusSuccess, Message: "SQL query generated"}
	}
	if req.Verbose {
		resp.Details = state.Results()
	}
	return resp
}

// Classify maps a run-aborting error to a Kind.
func Classify(err error) Kind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, schema.ErrSchemaUnavailable):
		return KindSchemaUnavailable
	case errors.Is(err, llm.ErrModelUnavailable):
		return KindModelUnavailable
	default:
		return KindInternal
	}
}

func errorResponse(runID string, kind Kind, message string) Response {
	return Response{RunID: runID, Status: StatusError, Message: message, Kind: kind}
}

func runStatus(resp Response) string {
	if resp.Status == StatusSuccess {
		return StatusSuccess
	}
	return string(resp.Kind)
}
