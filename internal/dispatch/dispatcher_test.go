package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ElohimLOJ/ai-activity-tracker/internal/capability"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/config"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/domain"
)

type fakeRunner struct {
	invocations []Invocation
	err         error
}

func (f *fakeRunner) Run(_ context.Context, inv Invocation) error {
	f.invocations = append(f.invocations, inv)
	return f.err
}

func testRouter() Router {
	return NewRouter(map[string]config.Route{
		"claude": {Agent: "claude", Session: "ai-tracker-claude"},
	}, "ai-tracker")
}

func TestDispatchBuildsDirective(t *testing.T) {
	runner := &fakeRunner{}
	d := &Dispatcher{
		Runner:          runner,
		Router:          testRouter(),
		Cleanup:         "keep",
		CallbackBaseURL: "http://127.0.0.1:8080/api",
	}
	act := domain.Activity{
		ID:          "a1",
		Title:       "Summarize report",
		Description: "open in chrome and screenshot",
		Project:     "research",
		AITool:      "claude",
	}
	res := d.Dispatch(context.Background(), act, capability.Infer(act.Description))
	if res.Err != nil {
		t.Fatalf("dispatch: %v", res.Err)
	}
	if res.Label != "claude@ai-tracker-claude" {
		t.Errorf("label = %q", res.Label)
	}
	if len(runner.invocations) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(runner.invocations))
	}
	inv := runner.invocations[0]
	if inv.AgentID != "claude" || inv.Session != "ai-tracker-claude" || inv.Cleanup != "keep" {
		t.Errorf("unexpected invocation: %+v", inv)
	}
	for _, want := range []string{
		"Task: Summarize report",
		"Project: research",
		"Activity-ID: a1",
		"Browser: chrome",
		"Capabilities: screenshot",
		"http://127.0.0.1:8080/api/activities/a1/complete",
	} {
		if !strings.Contains(inv.Directive, want) {
			t.Errorf("directive missing %q:\n%s", want, inv.Directive)
		}
	}
}

func TestDispatchDefaultSessionFallback(t *testing.T) {
	runner := &fakeRunner{}
	d := &Dispatcher{Runner: runner, Router: testRouter()}
	res := d.Dispatch(context.Background(), domain.Activity{ID: "a2", Title: "t", AITool: "unknown-tool"}, capability.Profile{Browser: capability.BrowserNone})
	if res.Err != nil {
		t.Fatalf("dispatch: %v", res.Err)
	}
	if res.Label != "ai-tracker" {
		t.Errorf("label = %q, want default session", res.Label)
	}
	inv := runner.invocations[0]
	if inv.AgentID != "" || inv.Session != "ai-tracker" {
		t.Errorf("expected default session, got %+v", inv)
	}
}

func TestDispatchRejection(t *testing.T) {
	runner := &fakeRunner{err: errors.New("agent unavailable")}
	d := &Dispatcher{Runner: runner, Router: testRouter()}
	res := d.Dispatch(context.Background(), domain.Activity{ID: "a3", Title: "t"}, capability.Profile{})
	if res.Err == nil {
		t.Fatalf("expected rejection error")
	}
}

func TestCallbackTokenRoundTrip(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	token, err := SignCallbackToken("s3cret", "a1", now)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := VerifyCallbackToken("s3cret", token, "a1"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := VerifyCallbackToken("s3cret", token, "a2"); err == nil {
		t.Errorf("expected scope mismatch error")
	}
	if err := VerifyCallbackToken("other", token, "a1"); err == nil {
		t.Errorf("expected signature error")
	}
}

func TestDirectiveCarriesSignedCallback(t *testing.T) {
	runner := &fakeRunner{}
	d := &Dispatcher{
		Runner:          runner,
		Router:          testRouter(),
		CallbackBaseURL: "http://127.0.0.1:8080/api",
		CallbackSecret:  "s3cret",
	}
	d.Dispatch(context.Background(), domain.Activity{ID: "a1", Title: "t"}, capability.Profile{})
	directive := runner.invocations[0].Directive
	idx := strings.Index(directive, "?token=")
	if idx < 0 {
		t.Fatalf("directive missing token:\n%s", directive)
	}
	token := directive[idx+len("?token="):]
	token = strings.TrimSpace(strings.SplitN(token, "\n", 2)[0])
	if err := VerifyCallbackToken("s3cret", token, "a1"); err != nil {
		t.Fatalf("embedded token invalid: %v", err)
	}
}
