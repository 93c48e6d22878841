//go:build e2e

package consent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string) error
	TenantPath(path string) string
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
}

// RegisterSteps registers consent-related step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &consentSteps{tc: tc}

	// Consent ledger steps
	ctx.Step(`^I grant "([^"]*)" consent for "([^"]*)" via "([^"]*)"$`, steps.grant)
	ctx.Step(`^I revoke "([^"]*)" consent for "([^"]*)" via "([^"]*)"$`, steps.revoke)
	ctx.Step(`^I check "([^"]*)" consent for "([^"]*)"$`, steps.checkStatus)
	ctx.Step(`^I list the consent history of "([^"]*)"$`, steps.listHistory)

	// Consent assertion steps
	ctx.Step(`^the consent status should be "([^"]*)"$`, steps.statusShouldBe)
	ctx.Step(`^the history should hold (\d+) decisions, newest "([^"]*)"$`, steps.historyShouldHold)
}

type consentSteps struct {
	tc TestContext
}

func (s *consentSteps) grant(ctx context.Context, purpose, subject, source string) error {
	return s.record(purpose, subject, source, true)
}

func (s *consentSteps) revoke(ctx context.Context, purpose, subject, source string) error {
	return s.record(purpose, subject, source, false)
}

func (s *consentSteps) record(purpose, subject, source string, granted bool) error {
	return s.tc.POST(s.tc.TenantPath("/consents"), map[string]interface{}{
		"subject": subject,
		"purpose": purpose,
		"granted": granted,
		"source":  source,
	})
}

func (s *consentSteps) checkStatus(ctx context.Context, purpose, subject string) error {
	q := url.Values{"subject": {subject}, "purpose": {purpose}}
	return s.tc.GET(s.tc.TenantPath("/consents/status?" + q.Encode()))
}

func (s *consentSteps) listHistory(ctx context.Context, subject string) error {
	q := url.Values{"subject": {subject}}
	return s.tc.GET(s.tc.TenantPath("/consents?" + q.Encode()))
}

func (s *consentSteps) statusShouldBe(ctx context.Context, expected string) error {
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &resp); err != nil {
		return fmt.Errorf("failed to parse status response: %w", err)
	}
	if resp.Status != expected {
		return fmt.Errorf("expected consent status %s but got %s", expected, resp.Status)
	}
	return nil
}

func (s *consentSteps) historyShouldHold(ctx context.Context, count int, newest string) error {
	var resp struct {
		Records []struct {
			Granted bool `json:"granted"`
		} `json:"records"`
	}
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &resp); err != nil {
		return fmt.Errorf("failed to parse history response: %w", err)
	}
	if len(resp.Records) != count {
		return fmt.Errorf("expected %d decisions but got %d", count, len(resp.Records))
	}
	if count == 0 {
		return nil
	}
	got := "revoked"
	if resp.Records[0].Granted {
		got = "granted"
	}
	if got != newest {
		return fmt.Errorf("expected newest decision %s but got %s", newest, got)
	}
	return nil
}
