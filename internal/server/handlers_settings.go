package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/simonvc/confutil/internal/confutil"
	"github.com/simonvc/confutil/internal/orm"
)

func (s *Server) listSettingsModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, confutil.SettingsModels)
}

// settingsScope picks the scope of a settings request. Accounting settings
// always belong to a company; the other wizards are global unless a company
// is given.
func settingsScope(model confutil.SettingsModel, company *orm.ID) (confutil.Scope, error) {
	if company != nil {
		return confutil.ForCompany(*company), nil
	}
	if model == confutil.AccountSettings {
		return confutil.Scope{}, fmt.Errorf("%w: %s needs a company", orm.ErrInvalidValue, model)
	}
	return confutil.Global(), nil
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	model, err := confutil.ParseSettingsModel(chi.URLParam(r, "model"))
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	var company *orm.ID
	if raw := r.URL.Query().Get("company"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid company: "+raw)
			return
		}
		company = &id
	}
	scope, err := settingsScope(model, company)
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}

	rec, found, err := s.configurator(r).Settings.Current(r.Context(), model, scope)
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no %s record for %s", model, scope))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type applySettingsRequest struct {
	Company *orm.ID    `json:"company,omitempty"`
	Values  orm.Values `json:"values"`
}

// SettingsResult reports which settings record an apply touched.
type SettingsResult struct {
	Model string `json:"model"`
	ID    orm.ID `json:"id"`
	Scope string `json:"scope"`
}

func (s *Server) applySettings(w http.ResponseWriter, r *http.Request) {
	model, err := confutil.ParseSettingsModel(chi.URLParam(r, "model"))
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	var req applySettingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	scope, err := settingsScope(model, req.Company)
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}

	id, err := s.configurator(r).Settings.Apply(r.Context(), model, scope, orm.NormalizeValues(req.Values))
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, SettingsResult{Model: string(model), ID: id, Scope: scope.String()})
}
