package server

import (
	"net/http"

	"github.com/simonvc/confutil/internal/plan"
)

const maxPlanBytes = 1 << 20

type planErrorResponse struct {
	Error  string       `json:"error"`
	Report *plan.Report `json:"report,omitempty"`
}

// applyPlan runs a YAML plan. A failing step still returns the report of
// the steps that ran before it.
func (s *Server) applyPlan(w http.ResponseWriter, r *http.Request) {
	p, err := plan.Parse(http.MaxBytesReader(w, r.Body, maxPlanBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runner := plan.NewRunner(s.reg, s.env, plan.WithLogger(s.requestLog(r)), plan.WithClock(s.now))
	report, err := runner.Run(r.Context(), p)
	if err != nil {
		writeJSON(w, mapError(err), planErrorResponse{Error: err.Error(), Report: report})
		return
	}
	writeJSON(w, http.StatusOK, report)
}
