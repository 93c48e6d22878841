//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dataguard/internal/export"
	purgememory "dataguard/internal/purge/providers/memory"
	id "dataguard/pkg/domain"
)

// TestContext holds state between test steps
type TestContext struct {
	BaseURL          string
	HTTPClient       *http.Client
	LastResponse     *http.Response
	LastResponseBody []byte
	TenantID         string
	RequestID        string

	app *app
}

// NewTestContext creates a new test context
func NewTestContext(a *app) *TestContext {
	return &TestContext{
		BaseURL:    a.server.URL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		app:        a,
	}
}

// POST makes a POST request and stores the response
func (tc *TestContext) POST(path string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	return tc.do(http.MethodPost, path, bytes.NewReader(data))
}

// GET makes a GET request and stores the response
func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil)
}

func (tc *TestContext) do(method, path string, body io.Reader) error {
	req, err := http.NewRequestWithContext(context.Background(), method, tc.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Admin-Token", adminToken)
	req.Header.Set("X-Admin-Actor-ID", "e2e-operator")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := tc.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}

	tc.LastResponse = resp
	tc.LastResponseBody, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	return nil
}

// TenantPath prefixes path with the scenario tenant's routes.
func (tc *TestContext) TenantPath(path string) string {
	return "/v1/tenants/" + tc.TenantID + path
}

// GetResponseField extracts a field from the JSON response
func (tc *TestContext) GetResponseField(field string) (interface{}, error) {
	var data map[string]interface{}
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	value, ok := data[field]
	if !ok {
		return nil, fmt.Errorf("field %s not found in response", field)
	}

	return value, nil
}

// ResponseContains checks if the response body contains a field or text
func (tc *TestContext) ResponseContains(text string) bool {
	if strings.Contains(string(tc.LastResponseBody), text) {
		return true
	}

	var data map[string]interface{}
	if err := json.Unmarshal(tc.LastResponseBody, &data); err == nil {
		if _, ok := data[text]; ok {
			return true
		}
	}

	return false
}

// PutRecord stores a personal-data record for subject in the named provider.
func (tc *TestContext) PutRecord(recordType, recordID, subject string) error {
	p, ok := tc.app.providers[recordType]
	if !ok {
		return fmt.Errorf("no provider for record type %q", recordType)
	}
	tenantID, err := id.ParseTenantID(tc.TenantID)
	if err != nil {
		return err
	}
	p.Put(purgememory.Record{
		TenantID:     tenantID,
		ID:           recordID,
		Subject:      subject,
		LastActivity: time.Now().UTC(),
		Fields:       map[string]string{"email": subject},
	})
	return nil
}

// Bundle loads an export bundle by the reference a completed request carries.
func (tc *TestContext) Bundle(ref string) (*export.Bundle, error) {
	body, err := tc.app.bundles.Get(context.Background(), ref)
	if err != nil {
		return nil, fmt.Errorf("load bundle %s: %w", ref, err)
	}
	var b export.Bundle
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, fmt.Errorf("decode bundle %s: %w", ref, err)
	}
	return &b, nil
}

// Getter methods for step package interfaces

func (tc *TestContext) GetRequestID() string {
	return tc.RequestID
}

func (tc *TestContext) SetRequestID(requestID string) {
	tc.RequestID = requestID
}

func (tc *TestContext) GetLastResponseStatus() int {
	if tc.LastResponse == nil {
		return 0
	}
	return tc.LastResponse.StatusCode
}

func (tc *TestContext) GetLastResponseBody() []byte {
	return tc.LastResponseBody
}
