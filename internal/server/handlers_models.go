package server

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/simonvc/confutil/internal/orm"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	names := s.reg.Models()
	sort.Strings(names)
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) modelFields(w http.ResponseWriter, r *http.Request) {
	m, err := s.reg.Model(chi.URLParam(r, "model"))
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	fields, err := m.FieldsGet(r.Context(), s.env.Clone())
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

type searchRequest struct {
	Domain orm.Domain `json:"domain"`
	Fields []string   `json:"fields,omitempty"`
}

type searchResponse struct {
	IDs     []orm.ID     `json:"ids"`
	Records []orm.Values `json:"records"`
}

func (s *Server) searchRecords(w http.ResponseWriter, r *http.Request) {
	m, err := s.reg.Model(chi.URLParam(r, "model"))
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	ids, err := m.Search(r.Context(), s.env.Clone(), req.Domain)
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	resp := searchResponse{IDs: ids, Records: []orm.Values{}}
	if resp.IDs == nil {
		resp.IDs = []orm.ID{}
	}
	if len(ids) > 0 {
		rows, err := m.Read(r.Context(), s.env.Clone(), ids, req.Fields...)
		if err != nil {
			writeError(w, mapError(err), err.Error())
			return
		}
		resp.Records = rows
	}
	writeJSON(w, http.StatusOK, resp)
}

type lookupRequest struct {
	Domain   orm.Domain `json:"domain"`
	Optional bool       `json:"optional,omitempty"`
}

// LookupResult is the answer to a unique lookup. ID is zero when an
// optional lookup found nothing.
type LookupResult struct {
	Model string `json:"model"`
	ID    orm.ID `json:"id,omitempty"`
	Found bool   `json:"found"`
}

// lookupRecord requires exactly one match, or at most one when optional.
func (s *Server) lookupRecord(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")
	var req lookupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	match, err := s.configurator(r).Find(r.Context(), model, req.Domain)
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	var (
		id    orm.ID
		found bool
	)
	if req.Optional {
		id, found, err = match.Optional()
	} else {
		id, err = match.Unique()
		found = err == nil
	}
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, LookupResult{Model: model, ID: id, Found: found})
}

func (s *Server) resolveXMLID(w http.ResponseWriter, r *http.Request) {
	ref, err := s.configurator(r).XMLID(r.Context(), chi.URLParam(r, "xmlid"))
	if err != nil {
		writeError(w, mapError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ref)
}
