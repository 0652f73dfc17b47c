package api

import (
	"errors"
	"net/http"

	"github.com/sqlquorum/sqlquorum/internal/schema"
	"github.com/sqlquorum/sqlquorum/internal/storage"
)

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema resolution is not configured", false, nil)
		return
	}
	dbID := r.PathValue("db")
	if err := storage.ValidateDatabaseID(dbID); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_DB_ID", err.Error(), false, nil)
		return
	}

	graph, err := deps.Schema.Resolve(r.Context(), dbID)
	if err != nil {
		status, retryable := http.StatusInternalServerError, false
		if errors.Is(err, schema.ErrSchemaUnavailable) {
			status, retryable = http.StatusServiceUnavailable, true
		}
		writeError(r.Context(), w, status, "SCHEMA_UNAVAILABLE", "failed to resolve database schema", retryable, map[string]any{"db_id": dbID, "details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"db_id":             graph.DBID,
		"tables":            graph.Tables,
		"primary_keys":      graph.PrimaryKeys,
		"foreign_keys":      graph.ForeignKeys,
		"join_conditions":   graph.JoinConditions(nil),
		"validation_errors": validationErrors(graph),
	})
}

func validationErrors(graph *schema.Graph) []string {
	err := graph.Validate()
	if err == nil {
		return []string{}
	}
	var out []string
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
