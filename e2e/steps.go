package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"

	"voxid/internal/seeder"
)

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Background steps
	ctx.Step(`^the voice service is running$`, tc.voiceServiceIsRunning)

	// Voice steps
	ctx.Step(`^"([^"]*)" enrolls with recording "([^"]*)"$`, tc.enroll)
	ctx.Step(`^an unknown identity enrolls with recording "([^"]*)"$`, tc.enrollUnknown)
	ctx.Step(`^I log in with recording "([^"]*)"$`, tc.login)
	ctx.Step(`^I log in with recording "([^"]*)" and email "([^"]*)"$`, tc.loginWithEmail)
	ctx.Step(`^I save the session tokens$`, tc.saveSessionTokens)

	// Session steps
	ctx.Step(`^I request my profile$`, tc.requestProfile)
	ctx.Step(`^I request my profile without authorization$`, tc.requestProfileWithoutAuth)
	ctx.Step(`^I refresh the session$`, tc.refreshSession)
	ctx.Step(`^I log out$`, tc.logout)
	ctx.Step(`^I delete my account$`, tc.deleteAccount)

	// Assertion steps
	ctx.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.responseShouldContain)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, tc.responseFieldShouldEqual)
	ctx.Step(`^the response field "user_id" should be the id of "([^"]*)"$`, tc.responseUserShouldBe)
	ctx.Step(`^the candidates should include "([^"]*)" and "([^"]*)"$`, tc.candidatesShouldInclude)
}

func (tc *TestContext) voiceServiceIsRunning(ctx context.Context) error {
	if err := tc.Request(http.MethodGet, "/health/live", nil); err != nil {
		return err
	}
	return tc.responseStatusShouldBe(ctx, http.StatusOK)
}

func (tc *TestContext) enroll(ctx context.Context, email, recording string) error {
	return tc.Upload("/voice/enroll", recording, map[string]string{
		"user_id": seeder.SeedID(email).String(),
	})
}

func (tc *TestContext) enrollUnknown(ctx context.Context, recording string) error {
	return tc.enroll(ctx, "nobody-seeded-this@example.com", recording)
}

func (tc *TestContext) login(ctx context.Context, recording string) error {
	return tc.Upload("/voice/login", recording, nil)
}

func (tc *TestContext) loginWithEmail(ctx context.Context, recording, email string) error {
	return tc.Upload("/voice/login", recording, map[string]string{"email": email})
}

func (tc *TestContext) saveSessionTokens(ctx context.Context) error {
	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		UserID       string `json:"user_id"`
	}
	if err := json.Unmarshal(tc.LastResponseBody, &body); err != nil {
		return fmt.Errorf("failed to parse login response: %w", err)
	}
	if body.AccessToken == "" || body.RefreshToken == "" {
		return fmt.Errorf("login response carries no tokens: %s", string(tc.LastResponseBody))
	}
	tc.AccessToken = body.AccessToken
	tc.RefreshToken = body.RefreshToken
	tc.IdentityID = body.UserID
	return nil
}

func (tc *TestContext) requestProfile(ctx context.Context) error {
	return tc.Request(http.MethodGet, "/me", tc.BearerHeader())
}

func (tc *TestContext) requestProfileWithoutAuth(ctx context.Context) error {
	return tc.Request(http.MethodGet, "/me", nil)
}

func (tc *TestContext) refreshSession(ctx context.Context) error {
	return tc.POST("/auth/refresh", map[string]string{"refresh_token": tc.RefreshToken}, nil)
}

func (tc *TestContext) logout(ctx context.Context) error {
	return tc.Request(http.MethodPost, "/auth/logout", tc.BearerHeader())
}

func (tc *TestContext) deleteAccount(ctx context.Context) error {
	return tc.Request(http.MethodDelete, "/me", tc.BearerHeader())
}

func (tc *TestContext) responseStatusShouldBe(ctx context.Context, expectedStatus int) error {
	if got := tc.GetLastResponseStatus(); got != expectedStatus {
		return fmt.Errorf("expected status %d but got %d", expectedStatus, got)
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
	actualValue, err := tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(actualValue) != expectedValue {
		return fmt.Errorf("field %s: expected %s but got %v", field, expectedValue, actualValue)
	}
	return nil
}

func (tc *TestContext) responseUserShouldBe(ctx context.Context, email string) error {
	return tc.responseFieldShouldEqual(ctx, "user_id", seeder.SeedID(email).String())
}

func (tc *TestContext) candidatesShouldInclude(ctx context.Context, first, second string) error {
	var body struct {
		Candidates []string `json:"candidates"`
	}
	if err := json.Unmarshal(tc.LastResponseBody, &body); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	want := map[string]bool{
		seeder.SeedID(first).String():  false,
		seeder.SeedID(second).String(): false,
	}
	for _, c := range body.Candidates {
		if _, ok := want[c]; ok {
			want[c] = true
		}
	}
	for idStr, seen := range want {
		if !seen {
			return fmt.Errorf("candidate %s missing from %v", idStr, body.Candidates)
		}
	}
	return nil
}
