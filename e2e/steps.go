//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cucumber/godog"

	"dataguard/e2e/steps/consent"
	"dataguard/e2e/steps/dsr"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Background steps
	ctx.Step(`^dataguard is running$`, tc.dataguardIsRunning)
	ctx.Step(`^a tenant "([^"]*)" on the "([^"]*)" plan$`, tc.registerTenant)
	ctx.Step(`^the subject "([^"]*)" has a "([^"]*)" record "([^"]*)"$`, tc.subjectHasRecord)

	// Request steps
	ctx.Step(`^I GET "([^"]*)" without the admin token$`, tc.getWithoutToken)

	// Assertion steps
	ctx.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.responseShouldContain)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, tc.responseFieldShouldEqual)

	consent.RegisterSteps(ctx, tc)
	dsr.RegisterSteps(ctx, tc)
}

func (tc *TestContext) dataguardIsRunning(ctx context.Context) error {
	if err := tc.GET("/health/live"); err != nil {
		return err
	}
	return tc.responseStatusShouldBe(ctx, 200)
}

func (tc *TestContext) registerTenant(ctx context.Context, name, tier string) error {
	if err := tc.POST("/v1/tenants", map[string]interface{}{"name": name, "plan_tier": tier}); err != nil {
		return err
	}
	if err := tc.responseStatusShouldBe(ctx, 201); err != nil {
		return err
	}
	tenantID, err := tc.GetResponseField("id")
	if err != nil {
		return err
	}
	tc.TenantID = tenantID.(string)
	return nil
}

func (tc *TestContext) subjectHasRecord(ctx context.Context, subject, recordType, recordID string) error {
	return tc.PutRecord(recordType, recordID, subject)
}

func (tc *TestContext) getWithoutToken(ctx context.Context, path string) error {
	resp, err := tc.HTTPClient.Get(tc.BaseURL + path)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()
	tc.LastResponse = resp
	tc.LastResponseBody = nil
	return nil
}

func (tc *TestContext) responseStatusShouldBe(ctx context.Context, expectedStatus int) error {
	if tc.LastResponse.StatusCode != expectedStatus {
		return fmt.Errorf("expected status %d but got %d\nResponse: %s", expectedStatus, tc.LastResponse.StatusCode, string(tc.LastResponseBody))
	}
	return nil
}

func (tc *TestContext) responseShouldContain(ctx context.Context, field string) error {
	if !tc.ResponseContains(field) {
		return fmt.Errorf("response does not contain field: %s\nResponse: %s", field, string(tc.LastResponseBody))
	}
	return nil
}

func (tc *TestContext) responseFieldShouldEqual(ctx context.Context, field, expectedValue string) error {
	var data map[string]interface{}
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	actualValue, ok := data[field]
	if !ok {
		return fmt.Errorf("field %s not found in response", field)
	}

	if fmt.Sprint(actualValue) != expectedValue {
		return fmt.Errorf("field %s: expected %s but got %v", field, expectedValue, actualValue)
	}
	return nil
}
