package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/simonvc/confutil/internal/orm"
	"github.com/simonvc/confutil/internal/plan"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
	body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server: an unknown
// model, record or XMLID, or a unique lookup that matched nothing.
func IsNotFound(err error) bool { return hasStatus(err, http.StatusNotFound) }

// IsConflict reports whether err is a 409 from the server, which a lookup
// matching several records returns.
func IsConflict(err error) bool { return hasStatus(err, http.StatusConflict) }

func hasStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// Health checks if the server is reachable and healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

func (c *Client) Models(ctx context.Context) ([]string, error) {
	var result []string
	if err := c.get(ctx, "/api/v1/models", &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) Fields(ctx context.Context, model string) (map[string]orm.Field, error) {
	var result map[string]orm.Field
	if err := c.get(ctx, "/api/v1/models/"+url.PathEscape(model)+"/fields", &result); err != nil {
		return nil, err
	}
	return result, nil
}

type SearchResult struct {
	IDs     []orm.ID     `json:"ids"`
	Records []orm.Values `json:"records"`
}

// Search returns the matching ids and reads fields (all when none are
// named) of each match.
func (c *Client) Search(ctx context.Context, model string, domain orm.Domain, fields ...string) (*SearchResult, error) {
	body := map[string]any{"domain": nonNil(domain), "fields": fields}
	var result SearchResult
	if err := c.post(ctx, "/api/v1/models/"+url.PathEscape(model)+"/search", body, &result); err != nil {
		return nil, err
	}
	for i, rec := range result.Records {
		result.Records[i] = orm.NormalizeValues(rec)
	}
	return &result, nil
}

type lookupResult struct {
	Model string `json:"model"`
	ID    orm.ID `json:"id"`
	Found bool   `json:"found"`
}

// Lookup returns the single record matching domain. No match is a 404 and
// several a 409.
func (c *Client) Lookup(ctx context.Context, model string, domain orm.Domain) (orm.ID, error) {
	var result lookupResult
	body := map[string]any{"domain": nonNil(domain)}
	if err := c.post(ctx, "/api/v1/models/"+url.PathEscape(model)+"/lookup", body, &result); err != nil {
		return 0, err
	}
	return result.ID, nil
}

// MaybeLookup is Lookup where no match is reported as false.
func (c *Client) MaybeLookup(ctx context.Context, model string, domain orm.Domain) (orm.ID, bool, error) {
	var result lookupResult
	body := map[string]any{"domain": nonNil(domain), "optional": true}
	if err := c.post(ctx, "/api/v1/models/"+url.PathEscape(model)+"/lookup", body, &result); err != nil {
		return 0, false, err
	}
	return result.ID, result.Found, nil
}

func (c *Client) XMLID(ctx context.Context, xmlid string) (orm.Ref, error) {
	var result orm.Ref
	if err := c.get(ctx, "/api/v1/xmlid/"+url.PathEscape(xmlid), &result); err != nil {
		return orm.Ref{}, err
	}
	return result, nil
}

func (c *Client) SettingsModels(ctx context.Context) ([]string, error) {
	var result []string
	if err := c.get(ctx, "/api/v1/settings", &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Settings reads the current settings record. company may be zero for the
// global record.
func (c *Client) Settings(ctx context.Context, model string, company orm.ID) (orm.Values, error) {
	path := "/api/v1/settings/" + url.PathEscape(model)
	if company != 0 {
		path += "?company=" + strconv.FormatInt(company, 10)
	}
	var result orm.Values
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return orm.NormalizeValues(result), nil
}

type SettingsResult struct {
	Model string `json:"model"`
	ID    orm.ID `json:"id"`
	Scope string `json:"scope"`
}

// ApplySettings upserts values into the settings record of model and
// executes it. company may be zero for the global record.
func (c *Client) ApplySettings(ctx context.Context, model string, company orm.ID, values orm.Values) (*SettingsResult, error) {
	body := map[string]any{"values": values}
	if company != 0 {
		body["company"] = company
	}
	var result SettingsResult
	if err := c.put(ctx, "/api/v1/settings/"+url.PathEscape(model), body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) UnconfiguredCompanies(ctx context.Context) ([]orm.ID, error) {
	var result []orm.ID
	if err := c.get(ctx, "/api/v1/companies/unconfigured", &result); err != nil {
		return nil, err
	}
	return result, nil
}

// SetupAccounts installs a chart template (XMLID or id, empty for the
// default) into the company. It reports whether anything was installed.
func (c *Client) SetupAccounts(ctx context.Context, company orm.ID, chartTemplate string, codeDigits int) (bool, error) {
	body := map[string]any{"chart_template": chartTemplate, "code_digits": codeDigits}
	var result struct {
		Installed bool `json:"installed"`
	}
	path := "/api/v1/companies/" + strconv.FormatInt(company, 10) + "/setup-accounts"
	if err := c.post(ctx, path, body, &result); err != nil {
		return false, err
	}
	return result.Installed, nil
}

// ApplyPlan sends a YAML plan to the server. When a step fails the partial
// report is returned along with the error.
func (c *Client) ApplyPlan(ctx context.Context, doc []byte) (*plan.Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/plans", bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/yaml")

	var report plan.Report
	if err := c.doRequest(req, &report); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			var partial struct {
				Report *plan.Report `json:"report"`
			}
			if json.Unmarshal(apiErr.body, &partial) == nil && partial.Report != nil {
				return partial.Report, err
			}
		}
		return nil, err
	}
	return &report, nil
}

func nonNil(d orm.Domain) orm.Domain {
	if d == nil {
		return orm.Domain{}
	}
	return d
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.doRequest(req, result)
}

func (c *Client) put(ctx context.Context, path string, body any, result any) error {
	return c.send(ctx, http.MethodPut, path, body, result)
}

func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	return c.send(ctx, http.MethodPost, path, body, result)
}

func (c *Client) send(ctx context.Context, method, path string, body any, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doRequest(req, result)
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) doRequest(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(bodyBytes), body: bodyBytes}
		var msg apiError
		if json.Unmarshal(bodyBytes, &msg) == nil && msg.Error != "" {
			apiErr.Message = msg.Error
		}
		return apiErr
	}

	if result != nil {
		dec := json.NewDecoder(bytes.NewReader(bodyBytes))
		dec.UseNumber()
		if err := dec.Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
