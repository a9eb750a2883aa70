// Package dispatch hands activities off to an external agent.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ElohimLOJ/ai-activity-tracker/internal/capability"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/config"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Invocation is the contract handed to the external agent: an immediate
// accept/reject call, never awaited for task completion.
type Invocation struct {
	Directive string
	AgentID   string
	Session   string
	Cleanup   string
}

// Runner performs the out-of-process agent invocation.
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// Result reports whether the agent accepted the hand-off. Acceptance does not
// imply completion; the agent reports that through the completion callback.
type Result struct {
	Label string
	Err   error
}

type Dispatcher struct {
	Runner          Runner
	Router          Router
	Cleanup         string
	Timeout         time.Duration
	CallbackBaseURL string
	CallbackSecret  string
	Now             func() time.Time
}

// FromConfig builds a Dispatcher wired to the exec runner.
func FromConfig(cfg *config.Config) *Dispatcher {
	d := &Dispatcher{
		Runner:          ExecRunner{Command: cfg.Dispatch.Command},
		Router:          NewRouter(cfg.Dispatch.Routes, cfg.Dispatch.DefaultSession),
		Cleanup:         cfg.Dispatch.CleanupPolicy,
		CallbackBaseURL: cfg.Dispatch.CallbackBaseURL,
		CallbackSecret:  cfg.Dispatch.CallbackSecret,
	}
	if cfg.Dispatch.TimeoutSeconds > 0 {
		d.Timeout = time.Duration(cfg.Dispatch.TimeoutSeconds) * time.Second
	}
	return d
}

// Dispatch builds the execution directive and invokes the agent. The context
// bounds the invocation; it is the only cancellation mechanism.
func (d *Dispatcher) Dispatch(ctx context.Context, act domain.Activity, profile capability.Profile) Result {
	target := d.Router.Resolve(act.AITool)
	inv := Invocation{
		Directive: d.buildDirective(act, profile),
		AgentID:   target.Agent,
		Session:   target.Session,
		Cleanup:   d.Cleanup,
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := d.Runner.Run(ctx, inv); err != nil {
		return Result{Label: target.Label(), Err: err}
	}
	return Result{Label: target.Label()}
}

func (d *Dispatcher) buildDirective(act domain.Activity, profile capability.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", act.Title)
	if act.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", act.Description)
	}
	if act.Project != "" {
		fmt.Fprintf(&b, "Project: %s\n", act.Project)
	}
	fmt.Fprintf(&b, "Activity-ID: %s\n", act.ID)
	if profile.Browser != capability.BrowserNone {
		fmt.Fprintf(&b, "Browser: %s\n", profile.Browser)
	}
	if flags := profile.Flags(); len(flags) > 0 {
		fmt.Fprintf(&b, "Capabilities: %s\n", strings.Join(flags, ", "))
	}
	if url := d.callbackURL(act.ID); url != "" {
		fmt.Fprintf(&b, "When finished, POST the result to %s\n", url)
		b.WriteString(`Payload: {"outcome": "success|partial|failed", "outcome_notes": "<summary>"}` + "\n")
	}
	return b.String()
}

func (d *Dispatcher) callbackURL(activityID string) string {
	if d.CallbackBaseURL == "" {
		return ""
	}
	base := strings.TrimRight(d.CallbackBaseURL, "/")
	url := fmt.Sprintf("%s/activities/%s/complete", base, activityID)
	if d.CallbackSecret == "" {
		return url
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	token, err := SignCallbackToken(d.CallbackSecret, activityID, now())
	if err != nil {
		return url
	}
	return url + "?token=" + token
}
