package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/ElohimLOJ/ai-activity-tracker/internal/domain"
)

type fakeSender struct {
	mu    sync.Mutex
	calls []sentMessage
	fail  int
}

type sentMessage struct {
	Channel string
	Text    string
}

func (f *fakeSender) Send(_ context.Context, channel, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sentMessage{channel, text})
	if f.fail > 0 {
		f.fail--
		return errors.New("channel unreachable")
	}
	return nil
}

func (f *fakeSender) sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.calls...)
}

func sampleActivity() *domain.Activity {
	outcome := domain.OutcomePartial
	return &domain.Activity{
		ID:             "a1",
		Title:          "Summarize report",
		AITool:         "claude",
		Project:        "research",
		Description:    "open in chrome and screenshot",
		Status:         domain.StatusInProgress,
		Outcome:        &outcome,
		IterationCount: 2,
	}
}

func TestNotifyFormatsMessage(t *testing.T) {
	sender := &fakeSender{}
	n := New(sender, "telegram", true)
	n.Notify("To Do → In Progress", sampleActivity())

	calls := sender.sent()
	if len(calls) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(calls))
	}
	if calls[0].Channel != "telegram" {
		t.Errorf("channel = %q", calls[0].Channel)
	}
	msg := calls[0].Text
	for _, want := range []string{"To Do → In Progress", "Summarize report", "Tool: claude", "Project: research", "Status: In Progress", "Outcome: partial (iteration 2)"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}

func TestNotifyTruncatesDescription(t *testing.T) {
	sender := &fakeSender{}
	n := New(sender, "telegram", true)
	act := sampleActivity()
	act.Description = strings.Repeat("x", 500)
	n.Notify("New Activity", act)

	msg := sender.sent()[0].Text
	if !strings.Contains(msg, strings.Repeat("x", maxDescription)+"...") {
		t.Errorf("expected truncated description with ellipsis:\n%s", msg)
	}
	if strings.Contains(msg, strings.Repeat("x", maxDescription+1)) {
		t.Errorf("description not truncated")
	}
}

func TestNotifyDisabled(t *testing.T) {
	sender := &fakeSender{}
	n := New(sender, "telegram", false)
	n.Notify("New Activity", sampleActivity())
	if len(sender.sent()) != 0 {
		t.Fatalf("expected no deliveries while disabled")
	}
	n.SetEnabled(true)
	n.Notify("New Activity", sampleActivity())
	if len(sender.sent()) != 1 {
		t.Fatalf("expected delivery after enable")
	}
}

func TestNotifyFallbackOnFailure(t *testing.T) {
	sender := &fakeSender{fail: 1}
	n := New(sender, "telegram", true)
	n.Notify("Done", sampleActivity())

	calls := sender.sent()
	if len(calls) != 2 {
		t.Fatalf("expected primary + fallback, got %d", len(calls))
	}
	if calls[1].Channel != "" {
		t.Errorf("fallback should not target a channel, got %q", calls[1].Channel)
	}
	if calls[1].Text != "Done: Summarize report" {
		t.Errorf("fallback text = %q", calls[1].Text)
	}
}

func TestNotifySwallowsTotalFailure(t *testing.T) {
	sender := &fakeSender{fail: 2}
	n := New(sender, "telegram", true)
	// Must not panic or surface anything.
	n.Notify("Done", sampleActivity())
	if len(sender.sent()) != 2 {
		t.Fatalf("expected exactly one fallback attempt")
	}
}

func TestNotifyNilReceiverSafe(t *testing.T) {
	var n *Notifier
	n.Notify("Done", sampleActivity())
}
