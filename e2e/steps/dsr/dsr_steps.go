//go:build e2e

package dsr

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cucumber/godog"

	"dataguard/internal/export"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body interface{}) error
	GET(path string) error
	TenantPath(path string) string
	GetRequestID() string
	SetRequestID(requestID string)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	Bundle(ref string) (*export.Bundle, error)
}

// RegisterSteps registers data-subject request step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &dsrSteps{tc: tc}

	// Lifecycle steps
	ctx.Step(`^I file an? "([^"]*)" request for "([^"]*)"$`, steps.file)
	ctx.Step(`^I move the request to review$`, steps.review)
	ctx.Step(`^I approve the request$`, steps.approve)
	ctx.Step(`^I reject the request$`, steps.reject)
	ctx.Step(`^I process the request$`, steps.process)
	ctx.Step(`^I fetch the request$`, steps.fetch)
	ctx.Step(`^an approved "([^"]*)" request for "([^"]*)" has been processed$`, steps.fileAndProcess)

	// Request assertion steps
	ctx.Step(`^the request status should be "([^"]*)"$`, steps.statusShouldBe)
	ctx.Step(`^the erasure should have removed (\d+) records?$`, steps.erasureRemoved)
	ctx.Step(`^the export bundle should hold (\d+) records?$`, steps.bundleShouldHold)
}

type dsrSteps struct {
	tc TestContext
}

type requestView struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result *struct {
		BundleRef string `json:"bundle_ref"`
		Purge     *struct {
			Succeeded int `json:"succeeded"`
			NotFound  int `json:"not_found"`
			Failed    int `json:"failed"`
		} `json:"purge"`
	} `json:"result"`
}

func (s *dsrSteps) file(ctx context.Context, kind, subject string) error {
	err := s.tc.POST(s.tc.TenantPath("/dsr"), map[string]interface{}{
		"kind":              kind,
		"requester_contact": subject,
		"subject_id":        subject,
	})
	if err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 201 {
		return fmt.Errorf("expected 201 on submit but got %d: %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	view, err := s.view()
	if err != nil {
		return err
	}
	s.tc.SetRequestID(view.ID)
	return nil
}

func (s *dsrSteps) review(ctx context.Context) error {
	return s.tc.POST(s.path("/review"), map[string]interface{}{})
}

func (s *dsrSteps) approve(ctx context.Context) error {
	return s.tc.POST(s.path("/decision"), map[string]interface{}{"approve": true})
}

func (s *dsrSteps) reject(ctx context.Context) error {
	return s.tc.POST(s.path("/decision"), map[string]interface{}{"approve": false})
}

func (s *dsrSteps) process(ctx context.Context) error {
	return s.tc.POST(s.path("/process"), map[string]interface{}{})
}

func (s *dsrSteps) fetch(ctx context.Context) error {
	return s.tc.GET(s.path(""))
}

func (s *dsrSteps) fileAndProcess(ctx context.Context, kind, subject string) error {
	if err := s.file(ctx, kind, subject); err != nil {
		return err
	}
	for _, step := range []func(context.Context) error{s.review, s.approve, s.process} {
		if err := step(ctx); err != nil {
			return err
		}
		if s.tc.GetLastResponseStatus() != 200 {
			return fmt.Errorf("request transition answered %d: %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
		}
	}
	return s.statusShouldBe(ctx, "COMPLETED")
}

func (s *dsrSteps) statusShouldBe(ctx context.Context, expected string) error {
	view, err := s.view()
	if err != nil {
		return err
	}
	if view.Status != expected {
		return fmt.Errorf("expected request status %s but got %s", expected, view.Status)
	}
	return nil
}

func (s *dsrSteps) erasureRemoved(ctx context.Context, count int) error {
	view, err := s.view()
	if err != nil {
		return err
	}
	if view.Result == nil || view.Result.Purge == nil {
		return fmt.Errorf("request carries no purge result: %s", s.tc.GetLastResponseBody())
	}
	if view.Result.Purge.Succeeded != count || view.Result.Purge.Failed != 0 {
		return fmt.Errorf("expected %d removed and none failed, got %+v", count, *view.Result.Purge)
	}
	return nil
}

func (s *dsrSteps) bundleShouldHold(ctx context.Context, count int) error {
	view, err := s.view()
	if err != nil {
		return err
	}
	if view.Result == nil || view.Result.BundleRef == "" {
		return fmt.Errorf("request carries no bundle: %s", s.tc.GetLastResponseBody())
	}
	bundle, err := s.tc.Bundle(view.Result.BundleRef)
	if err != nil {
		return err
	}
	if len(bundle.Records) != count {
		return fmt.Errorf("expected %d records in bundle but got %d", count, len(bundle.Records))
	}
	return nil
}

func (s *dsrSteps) path(suffix string) string {
	return s.tc.TenantPath("/dsr/" + s.tc.GetRequestID() + suffix)
}

func (s *dsrSteps) view() (*requestView, error) {
	var v requestView
	if err := json.Unmarshal(s.tc.GetLastResponseBody(), &v); err != nil {
		return nil, fmt.Errorf("failed to parse request response: %w", err)
	}
	return &v, nil
}
