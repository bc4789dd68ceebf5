package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cucumber/godog"

	"github.com/fleetguard/fleetguard/pkg/audit"
	"github.com/fleetguard/fleetguard/pkg/identity"
)

// StepsContext holds state shared between the steps of a scenario
type StepsContext struct {
	tc            *TestContext
	response      *http.Response
	responseBody  []byte
	actor         string
	mfa           bool
	approvalID    string
	approvalToken string
	useToken      bool
}

// NewStepsContext creates a new steps context
func NewStepsContext(tc *TestContext) *StepsContext {
	return &StepsContext{tc: tc}
}

// RegisterSteps registers all step definitions
func (s *StepsContext) RegisterSteps(sc *godog.ScenarioContext) {
	// Background steps
	sc.Step(`^a fleetguard server is running$`, s.aFleetguardServerIsRunning)
	sc.Step(`^actor "([^"]*)" has role "([^"]*)"$`, s.actorHasRole)

	// Identity steps
	sc.Step(`^I am "([^"]*)"$`, s.iAm)
	sc.Step(`^I am "([^"]*)" with verified MFA$`, s.iAmWithVerifiedMFA)
	sc.Step(`^I use the approval token$`, s.iUseTheApprovalToken)

	// Request steps
	sc.Step(`^I send a "([^"]*)" request to "([^"]*)"$`, s.iSendARequestTo)
	sc.Step(`^I send a "([^"]*)" request to "([^"]*)" with body:$`, s.iSendARequestToWithBody)
	sc.Step(`^I request approval for "([^"]*)"$`, s.iRequestApprovalFor)
	sc.Step(`^"([^"]*)" approves the request$`, s.approvesTheRequest)

	// Response steps
	sc.Step(`^the response status should be (\d+)$`, s.theResponseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, s.theResponseFieldShouldBe)
	sc.Step(`^the response body should contain "([^"]*)"$`, s.theResponseBodyShouldContain)

	// Audit steps
	sc.Step(`^the audit log should contain "([^"]*)" by "([^"]*)" with outcome "([^"]*)"$`, s.theAuditLogShouldContain)
	sc.Step(`^the database should reject (updating|deleting) audit entries$`, s.theDatabaseShouldRejectAuditMutation)

	sc.After(func(ctx context.Context, scenario *godog.Scenario, err error) (context.Context, error) {
		*s = StepsContext{tc: s.tc}
		return ctx, nil
	})
}

// Background steps

func (s *StepsContext) aFleetguardServerIsRunning() error {
	// Server is already running via TestContext
	return nil
}

func (s *StepsContext) actorHasRole(actorID, role string) error {
	ctx := context.Background()
	has, err := s.tc.Services.Roles.HasRole(ctx, actorID, role)
	if err != nil || has {
		return err
	}
	return s.tc.Services.Roles.Assign(ctx, actorID, role, audit.SystemActor)
}

// Identity steps

func (s *StepsContext) iAm(actorID string) error {
	s.actor = actorID
	s.mfa = false
	return nil
}

func (s *StepsContext) iAmWithVerifiedMFA(actorID string) error {
	s.actor = actorID
	s.mfa = true
	return nil
}

func (s *StepsContext) iUseTheApprovalToken() error {
	if s.approvalToken == "" {
		return fmt.Errorf("no approval token has been issued")
	}
	s.useToken = true
	return nil
}

// Request steps

func (s *StepsContext) do(method, path, actor string, mfa bool, body string) error {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, s.tc.ServerURL+path, reader)
	if err != nil {
		return err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != "" {
		req.Header.Set(identity.HeaderActorID, actor)
	}
	if mfa {
		req.Header.Set(identity.HeaderMFAVerified, "true")
	}
	if s.useToken {
		req.Header.Set(identity.HeaderApprovalToken, s.approvalToken)
	}

	s.response, err = s.tc.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	s.responseBody, err = io.ReadAll(s.response.Body)
	_ = s.response.Body.Close()
	return err
}

func (s *StepsContext) iSendARequestTo(method, path string) error {
	return s.do(method, path, s.actor, s.mfa, "")
}

func (s *StepsContext) iSendARequestToWithBody(method, path string, body *godog.DocString) error {
	return s.do(method, path, s.actor, s.mfa, body.Content)
}

func (s *StepsContext) iRequestApprovalFor(key string) error {
	body := fmt.Sprintf(`{"permission_key":%q,"reason":"integration test"}`, key)
	if err := s.do("POST", "/approvals", s.actor, s.mfa, body); err != nil {
		return err
	}
	if s.response.StatusCode != http.StatusCreated && s.response.StatusCode != http.StatusOK {
		return fmt.Errorf("approval request failed with %d: %s", s.response.StatusCode, s.responseBody)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(s.responseBody, &created); err != nil {
		return err
	}
	s.approvalID = created.ID
	return nil
}

func (s *StepsContext) approvesTheRequest(approver string) error {
	if s.approvalID == "" {
		return fmt.Errorf("no approval has been requested")
	}
	if err := s.do("POST", "/approvals/"+s.approvalID+"/approve", approver, true, `{"notes":"ok"}`); err != nil {
		return err
	}
	if s.response.StatusCode != http.StatusOK {
		return fmt.Errorf("approval failed with %d: %s", s.response.StatusCode, s.responseBody)
	}
	var approved struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(s.responseBody, &approved); err != nil {
		return err
	}
	s.approvalToken = approved.Token
	return nil
}

// Response steps

func (s *StepsContext) theResponseStatusShouldBe(status int) error {
	if s.response == nil {
		return fmt.Errorf("no request has been sent")
	}
	if s.response.StatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, s.response.StatusCode, s.responseBody)
	}
	return nil
}

func (s *StepsContext) theResponseFieldShouldBe(field, expected string) error {
	var body map[string]interface{}
	if err := json.Unmarshal(s.responseBody, &body); err != nil {
		return fmt.Errorf("response is not a JSON object: %w", err)
	}
	value, ok := body[field]
	if !ok {
		return fmt.Errorf("response has no field %q: %s", field, s.responseBody)
	}
	if actual := fmt.Sprintf("%v", value); actual != expected {
		return fmt.Errorf("expected %s to be %q, got %q", field, expected, actual)
	}
	return nil
}

func (s *StepsContext) theResponseBodyShouldContain(text string) error {
	if !strings.Contains(string(s.responseBody), text) {
		return fmt.Errorf("expected response to contain %q, got %s", text, s.responseBody)
	}
	return nil
}

// Audit steps

func (s *StepsContext) theAuditLogShouldContain(key, actor, outcome string) error {
	entries, _, err := s.tc.Services.Ledger.Query(context.Background(), audit.Filter{
		Actor:  actor,
		Search: key,
		Limit:  100,
	})
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.PermissionKey == key && e.Outcome == outcome {
			return nil
		}
	}
	return fmt.Errorf("no %s entry for %s by %s among %d entries", outcome, key, actor, len(entries))
}

func (s *StepsContext) theDatabaseShouldRejectAuditMutation(op string) error {
	statement := `UPDATE audit_log_entries SET details = 'tampered'`
	if op == "deleting" {
		statement = `DELETE FROM audit_log_entries`
	}
	if _, err := s.tc.RawDB.Exec(statement); err == nil {
		return fmt.Errorf("expected %s audit entries to fail", op)
	}
	return nil
}
