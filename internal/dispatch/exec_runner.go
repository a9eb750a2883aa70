package dispatch

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ExecRunner invokes the agent CLI out of process. The CLI returns as soon as
// it has accepted or rejected the task; a non-zero exit is a rejection.
type ExecRunner struct {
	Command string
}

func (r ExecRunner) Run(ctx context.Context, inv Invocation) error {
	if r.Command == "" {
		return fmt.Errorf("agent command not configured")
	}
	args := []string{"agent"}
	if inv.AgentID != "" {
		args = append(args, "--agent", inv.AgentID)
	}
	if inv.Session != "" {
		args = append(args, "--session", inv.Session)
	}
	if inv.Cleanup != "" {
		args = append(args, "--cleanup", inv.Cleanup)
	}
	args = append(args, "--message", inv.Directive)

	cmd := exec.CommandContext(ctx, r.Command, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %s", err, msg)
		}
		return err
	}
	return nil
}
