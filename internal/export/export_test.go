package export

import (
	"strings"
	"testing"

	"github.com/ElohimLOJ/ai-activity-tracker/internal/domain"
)

func sampleActivities() []domain.Activity {
	success := domain.OutcomeSuccess
	completed := "2024-06-01T12:00:00Z"
	return []domain.Activity{
		{ID: "a1", Title: "Summarize, with commas", Status: domain.StatusDone, TimeSpent: 3600,
			IterationCount: 2, Outcome: &success, CompletedAt: &completed, Project: "research"},
		{ID: "a2", Title: "Pending work", Status: domain.StatusTodo, IterationCount: 1},
	}
}

func TestCSV(t *testing.T) {
	var b strings.Builder
	if err := CSV(&b, sampleActivities()); err != nil {
		t.Fatalf("csv: %v", err)
	}
	out := b.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,title,") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], `"Summarize, with commas"`) {
		t.Errorf("comma title not quoted: %q", lines[1])
	}
}

func TestCalendar(t *testing.T) {
	var b strings.Builder
	Calendar(&b, sampleActivities())
	out := b.String()
	if strings.Count(out, "BEGIN:VEVENT") != 1 {
		t.Errorf("expected one event for the completed activity:\n%s", out)
	}
	for _, want := range []string{"BEGIN:VCALENDAR", "UID:a1@ai-activity-tracker", "DTEND:20240601T120000Z", "DTSTART:20240601T110000Z", "SUMMARY:Summarize\\, with commas"} {
		if !strings.Contains(out, want) {
			t.Errorf("calendar missing %q:\n%s", want, out)
		}
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleActivities())
	if s.Counts[domain.StatusDone] != 1 || s.Counts[domain.StatusTodo] != 1 {
		t.Errorf("counts = %v", s.Counts)
	}
	if s.TotalTimeSpent != 3600 {
		t.Errorf("total time = %d", s.TotalTimeSpent)
	}
	if s.Outcomes[domain.OutcomeSuccess] != 1 {
		t.Errorf("outcomes = %v", s.Outcomes)
	}
	if s.TotalIterations != 3 {
		t.Errorf("iterations = %d", s.TotalIterations)
	}
}

func TestReport(t *testing.T) {
	var b strings.Builder
	Report(&b, sampleActivities())
	out := b.String()
	for _, want := range []string{"AI Activity Report", "To Do (1)", "Done (1)", "Pending work", "Total activities: 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}
