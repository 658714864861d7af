package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/confutil/internal/addons"
	"github.com/simonvc/confutil/internal/orm"
	"github.com/simonvc/confutil/internal/plan"
	"github.com/simonvc/confutil/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, addons.Install(context.Background(), st, orm.NewEnv(orm.SuperuserID)))
	clock := func() time.Time { return time.Date(2032, time.February, 1, 0, 0, 0, 0, time.UTC) }
	return New(st, ":0", WithClock(clock)), st
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestModels(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/v1/models", "")
	require.Equal(t, http.StatusOK, rec.Code)
	names := decode[[]string](t, rec)
	assert.Contains(t, names, "account.tax")
	assert.Contains(t, names, "account.config.settings")
	assert.IsIncreasing(t, names)

	rec = do(t, s, http.MethodGet, "/api/v1/models/res.users/fields", "")
	require.Equal(t, http.StatusOK, rec.Code)
	fields := decode[map[string]orm.Field](t, rec)
	assert.Equal(t, orm.TypeMany2many, fields["groups_id"].Type)

	rec = do(t, s, http.MethodGet, "/api/v1/models/no.such.model/fields", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearch(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/models/res.groups/search", `{"domain":[["name","=","Manager"]],"fields":["name"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[searchResponse](t, rec)
	assert.Len(t, resp.IDs, 3)
	require.Len(t, resp.Records, 3)
	assert.Equal(t, "Manager", resp.Records[0]["name"])

	rec = do(t, s, http.MethodPost, "/api/v1/models/res.groups/search", `{"domain":[["name","=","Nobody"]]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ids":[],"records":[]}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/v1/models/res.groups/search", `{"domain":[["name","like"]]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/models/res.groups/search", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLookup(t *testing.T) {
	s, _ := newTestServer(t)
	path := "/api/v1/models/res.groups/lookup"

	rec := do(t, s, http.MethodPost, path, `{"domain":[["name","=","Accountant"]]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[LookupResult](t, rec)
	assert.True(t, res.Found)
	assert.NotZero(t, res.ID)
	assert.Equal(t, "res.groups", res.Model)

	rec = do(t, s, http.MethodPost, path, `{"domain":[["name","=","Manager"]]}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "res.groups")

	rec = do(t, s, http.MethodPost, path, `{"domain":[["name","=","Nobody"]]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, path, `{"domain":[["name","=","Nobody"]],"optional":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[LookupResult](t, rec).Found)

	rec = do(t, s, http.MethodPost, path, `{"domain":[["name","=","Manager"]],"optional":true}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestXMLID(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/v1/xmlid/base.main_company", "")
	require.Equal(t, http.StatusOK, rec.Code)
	ref := decode[orm.Ref](t, rec)
	assert.Equal(t, "res.company", ref.Model)

	rec = do(t, s, http.MethodGet, "/api/v1/xmlid/base.nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/xmlid/nodot", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettings(t *testing.T) {
	s, st := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/v1/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[[]string](t, rec), "sale.config.settings")

	rec = do(t, s, http.MethodGet, "/api/v1/settings/sale.config.settings", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for range 2 {
		rec = do(t, s, http.MethodPut, "/api/v1/settings/sale.config.settings", `{"values":{"group_sale_pricelist":true}}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		res := decode[SettingsResult](t, rec)
		assert.Equal(t, "global", res.Scope)
	}
	n, err := st.Count(context.Background(), "sale.config.settings")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec = do(t, s, http.MethodGet, "/api/v1/settings/sale.config.settings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]any](t, rec)["group_sale_pricelist"])

	rec = do(t, s, http.MethodPut, "/api/v1/settings/account.config.settings", `{"company":1,"values":{"decimal_precision":4}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "company 1", decode[SettingsResult](t, rec).Scope)

	rec = do(t, s, http.MethodGet, "/api/v1/settings/account.config.settings?company=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, decode[map[string]any](t, rec)["decimal_precision"])

	rec = do(t, s, http.MethodPut, "/api/v1/settings/account.config.settings", `{"values":{"decimal_precision":4}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPut, "/api/v1/settings/res.partner", `{"values":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/settings/account.config.settings?company=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetupAccounts(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/v1/companies/unconfigured", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []orm.ID{1}, decode[[]orm.ID](t, rec))

	rec = do(t, s, http.MethodPost, "/api/v1/companies/1/setup-accounts", `{"code_digits":6}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, decode[SetupResult](t, rec).Installed)

	rec = do(t, s, http.MethodPost, "/api/v1/companies/1/setup-accounts", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decode[SetupResult](t, rec).Installed)

	rec = do(t, s, http.MethodGet, "/api/v1/companies/unconfigured", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/v1/models/account.fiscalyear/lookup", `{"domain":[["code","=","FY2032"]]}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/companies/abc/setup-accounts", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, s, http.MethodPost, "/api/v1/companies/99/setup-accounts", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, s, http.MethodPost, "/api/v1/companies/1/setup-accounts", `{"chart_template":"l10n_ifrs.missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplyPlan(t *testing.T) {
	s, _ := newTestServer(t)

	doc := strings.Join([]string{
		"company: base.main_company",
		"steps:",
		"  - setup_accounts: {chart_template: l10n_ifrs.chart_template_ifrs}",
		"  - default_taxes: {sale: ST1, purchase: PT1}",
	}, "\n")
	rec := do(t, s, http.MethodPost, "/api/v1/plans", doc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[plan.Report](t, rec)
	assert.Len(t, report.Steps, 2)
	assert.NotEmpty(t, report.RunID)

	rec = do(t, s, http.MethodPost, "/api/v1/plans", "company: 1\nsteps: []\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	failing := "company: 1\nsteps:\n  - default_taxes: {sale: ST1, purchase: PT1}\n  - default_taxes: {sale: XX9, purchase: PT1}\n"
	rec = do(t, s, http.MethodPost, "/api/v1/plans", failing)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode[planErrorResponse](t, rec)
	assert.Contains(t, resp.Error, "step 2 (default_taxes)")
	require.NotNil(t, resp.Report)
	assert.Len(t, resp.Report.Steps, 1)
}

func TestMapError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, mapError(io.ErrUnexpectedEOF))
	assert.Equal(t, http.StatusBadRequest, mapError(plan.ErrInvalidPlan))
	assert.Equal(t, http.StatusNotFound, mapError(orm.ErrRecordNotFound))
}
