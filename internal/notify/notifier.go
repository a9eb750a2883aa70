// Package notify delivers best-effort status messages to a chat channel.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/ElohimLOJ/ai-activity-tracker/internal/domain"
)

const (
	defaultTimeout = 10 * time.Second
	maxDescription = 120
)

// Sender delivers a text message to a channel. An empty channel means the
// receiver's default destination.
type Sender interface {
	Send(ctx context.Context, channel, text string) error
}

// Notifier formats and delivers activity events. Delivery is bounded-time and
// failures are logged, never returned; callers fire it from detached tasks.
type Notifier struct {
	Sender  Sender
	Channel string
	Timeout time.Duration

	mu      sync.Mutex
	enabled bool
}

func New(sender Sender, channel string, enabled bool) *Notifier {
	return &Notifier{
		Sender:  sender,
		Channel: channel,
		Timeout: defaultTimeout,
		enabled: enabled,
	}
}

// SetEnabled toggles delivery for subsequent events. Last writer wins.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	n.enabled = enabled
	n.mu.Unlock()
}

func (n *Notifier) Enabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enabled
}

// Notify builds and delivers a message for an event. On primary delivery
// failure it makes one fallback attempt with a simplified message and no
// channel targeting.
func (n *Notifier) Notify(label string, act *domain.Activity) {
	if n == nil || n.Sender == nil || !n.Enabled() {
		return
	}
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := n.Sender.Send(ctx, n.Channel, formatMessage(label, act)); err != nil {
		log.Printf("notify: deliver %q failed: %v", label, err)
		if fbErr := n.Sender.Send(ctx, "", formatFallback(label, act)); fbErr != nil {
			log.Printf("notify: fallback for %q failed: %v", label, fbErr)
		}
	}
}

func formatMessage(label string, act *domain.Activity) string {
	var b strings.Builder
	b.WriteString(label)
	if act == nil {
		return b.String()
	}
	fmt.Fprintf(&b, "\n%s", act.Title)
	if act.AITool != "" {
		fmt.Fprintf(&b, "\nTool: %s", act.AITool)
	}
	if act.Project != "" {
		fmt.Fprintf(&b, "\nProject: %s", act.Project)
	}
	if act.Description != "" {
		fmt.Fprintf(&b, "\n%s", truncate(act.Description, maxDescription))
	}
	fmt.Fprintf(&b, "\nStatus: %s", domain.HumanStatus(act.Status))
	if act.Outcome != nil {
		fmt.Fprintf(&b, "\nOutcome: %s (iteration %d)", *act.Outcome, act.IterationCount)
	}
	return b.String()
}

func formatFallback(label string, act *domain.Activity) string {
	if act == nil {
		return label
	}
	return fmt.Sprintf("%s: %s", label, act.Title)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
