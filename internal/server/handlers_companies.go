package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/simonvc/confutil/internal/accountsetup"
	"github.com/simonvc/confutil/internal/orm"
)

func (s *Server) accountSetup(r *http.Request) *accountsetup.Setup {
	return accountsetup.New(s.reg, s.env, accountsetup.WithLogger(s.requestLog(r)), accountsetup.WithClock(s.now))
}

func (s *Server) unconfiguredCompanies(w http.ResponseWriter, r *http.Request) {
	ids, err := s.accountSetup(r).UnconfiguredCompanyIDs(r.Context())
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	if ids == nil {
		ids = []orm.ID{}
	}
	writeJSON(w, http.StatusOK, ids)
}

type setupAccountsRequest struct {
	// ChartTemplate is an XMLID or a numeric id.
	ChartTemplate string `json:"chart_template"`
	CodeDigits    int    `json:"code_digits,omitempty"`
}

// SetupResult tells whether a chart was installed.
type SetupResult struct {
	CompanyID orm.ID `json:"company_id"`
	Installed bool   `json:"installed"`
}

const defaultChartTemplate = "l10n_ifrs.chart_template_ifrs"

func (s *Server) setupAccounts(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	company, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid company id: "+idStr)
		return
	}
	companies, err := s.reg.Model("res.company")
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	if _, err := orm.ReadOne(r.Context(), companies, s.env.Clone(), company, "name"); err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}

	var req setupAccountsRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.ChartTemplate == "" {
		req.ChartTemplate = defaultChartTemplate
	}

	chart, err := strconv.ParseInt(req.ChartTemplate, 10, 64)
	if err != nil {
		if chart, err = s.configurator(r).XMLIDID(r.Context(), req.ChartTemplate); err != nil {
			writeError(w, mapError(err), err.Error())
			return
		}
	}

	installed, err := s.accountSetup(r).SetupCompanyAccounts(r.Context(), company, chart, req.CodeDigits)
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	status := http.StatusOK
	if installed {
		status = http.StatusCreated
	}
	writeJSON(w, status, SetupResult{CompanyID: company, Installed: installed})
}
