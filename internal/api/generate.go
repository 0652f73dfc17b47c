package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sqlquorum/sqlquorum/internal/nl2sql"
)

func handleGenerate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Generator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "GENERATE_NOT_CONFIGURED", "sql generation is not configured", false, nil)
		return
	}

	var req nl2sql.Request
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid generate request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "question is required", false, nil)
		return
	}
	if strings.TrimSpace(req.DBName) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_REQUEST", "db_id is required", false, nil)
		return
	}

	resp := deps.Generator.GenerateSQL(r.Context(), req)
	writeJSON(w, statusForResponse(resp), resp)
}

// statusForResponse keeps rejection at 200: the run completed and the
// response body says no query qualified.
func statusForResponse(resp nl2sql.Response) int {
	if resp.Status == nl2sql.StatusSuccess {
		return http.StatusOK
	}
	switch resp.Kind {
	case nl2sql.KindRejected:
		return http.StatusOK
	case nl2sql.KindInvalidRequest:
		return http.StatusBadRequest
	case nl2sql.KindSchemaUnavailable:
		return http.StatusServiceUnavailable
	case nl2sql.KindModelUnavailable:
		return http.StatusBadGateway
	case nl2sql.KindCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
