package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/simonvc/confutil/internal/confutil"
	"github.com/simonvc/confutil/internal/orm"
	"github.com/simonvc/confutil/internal/plan"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func mapError(err error) int {
	switch {
	case errors.Is(err, confutil.ErrNoRecords),
		errors.Is(err, orm.ErrUnknownModel),
		errors.Is(err, orm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, confutil.ErrTooManyRecords):
		return http.StatusConflict
	case errors.Is(err, orm.ErrInvalidDomain),
		errors.Is(err, orm.ErrUnknownField),
		errors.Is(err, orm.ErrUnknownMethod),
		errors.Is(err, orm.ErrInvalidValue),
		errors.Is(err, orm.ErrMissingRequired),
		errors.Is(err, confutil.ErrUnknownCategory),
		errors.Is(err, confutil.ErrUnknownSettingsModel),
		errors.Is(err, plan.ErrInvalidPlan):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes the request body keeping numbers exact.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}
