package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ExecSender sends messages through an external messenger CLI, e.g.
// `clawdbot message send --channel telegram --message <text>`.
type ExecSender struct {
	Command string
}

func (s ExecSender) Send(ctx context.Context, channel, text string) error {
	if s.Command == "" {
		return fmt.Errorf("messenger command not configured")
	}
	args := []string{"message", "send"}
	if channel != "" {
		args = append(args, "--channel", channel)
	}
	args = append(args, "--message", text)

	cmd := exec.CommandContext(ctx, s.Command, args...)
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
