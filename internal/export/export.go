// Package export renders read-only views over the activity board.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ElohimLOJ/ai-activity-tracker/internal/domain"
)

// Summary backs the dashboard endpoint.
type Summary struct {
	Counts          map[string]int `json:"counts"`
	TotalTimeSpent  int            `json:"total_time_spent"`
	Outcomes        map[string]int `json:"outcomes"`
	TotalActivities int            `json:"total_activities"`
	TotalIterations int            `json:"total_iterations"`
}

func Summarize(acts []domain.Activity) Summary {
	s := Summary{
		Counts:   map[string]int{domain.StatusTodo: 0, domain.StatusInProgress: 0, domain.StatusDone: 0},
		Outcomes: map[string]int{},
	}
	for _, a := range acts {
		s.Counts[a.Status]++
		s.TotalTimeSpent += a.TimeSpent
		s.TotalActivities++
		s.TotalIterations += a.IterationCount
		if a.Outcome != nil {
			s.Outcomes[*a.Outcome]++
		}
	}
	return s
}

// CSV writes all activities as comma-separated rows with a header line.
func CSV(w io.Writer, acts []domain.Activity) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "title", "description", "ai_tool", "project", "status", "position",
		"time_spent", "outcome", "outcome_notes", "failure_reason", "iteration_count",
		"created_at", "updated_at", "completed_at"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, a := range acts {
		row := []string{
			a.ID, a.Title, a.Description, a.AITool, a.Project, a.Status,
			strconv.Itoa(a.Position), strconv.Itoa(a.TimeSpent),
			deref(a.Outcome), a.OutcomeNotes, a.FailureReason,
			strconv.Itoa(a.IterationCount), a.CreatedAt, a.UpdatedAt, deref(a.CompletedAt),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Report writes a plaintext board report grouped by status column.
func Report(w io.Writer, acts []domain.Activity) {
	fmt.Fprintln(w, "AI Activity Report")
	fmt.Fprintln(w, "==================")
	for _, status := range []string{domain.StatusTodo, domain.StatusInProgress, domain.StatusDone} {
		var rows []domain.Activity
		for _, a := range acts {
			if a.Status == status {
				rows = append(rows, a)
			}
		}
		fmt.Fprintf(w, "\n%s (%d)\n", domain.HumanStatus(status), len(rows))
		if len(rows) == 0 {
			continue
		}
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.AppendHeader(table.Row{"Title", "Tool", "Project", "Time", "Iter", "Outcome"})
		for _, a := range rows {
			t.AppendRow(table.Row{a.Title, a.AITool, a.Project, formatDuration(a.TimeSpent), a.IterationCount, deref(a.Outcome)})
		}
		t.Render()
	}
	s := Summarize(acts)
	fmt.Fprintf(w, "\nTotal activities: %d, total time: %s\n", s.TotalActivities, formatDuration(s.TotalTimeSpent))
}

// Calendar writes an ICS feed with one event per completed activity.
func Calendar(w io.Writer, acts []domain.Activity) {
	fmt.Fprint(w, "BEGIN:VCALENDAR\r\n")
	fmt.Fprint(w, "VERSION:2.0\r\n")
	fmt.Fprint(w, "PRODID:-//ai-activity-tracker//EN\r\n")
	for _, a := range acts {
		if a.CompletedAt == nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, *a.CompletedAt)
		if err != nil {
			continue
		}
		start := end.Add(-time.Duration(a.TimeSpent) * time.Second)
		uid := a.CalendarEventID
		if uid == "" {
			uid = a.ID + "@ai-activity-tracker"
		}
		fmt.Fprint(w, "BEGIN:VEVENT\r\n")
		fmt.Fprintf(w, "UID:%s\r\n", uid)
		fmt.Fprintf(w, "DTSTAMP:%s\r\n", end.UTC().Format("20060102T150405Z"))
		fmt.Fprintf(w, "DTSTART:%s\r\n", start.UTC().Format("20060102T150405Z"))
		fmt.Fprintf(w, "DTEND:%s\r\n", end.UTC().Format("20060102T150405Z"))
		fmt.Fprintf(w, "SUMMARY:%s\r\n", escapeICS(a.Title))
		if a.Project != "" {
			fmt.Fprintf(w, "CATEGORIES:%s\r\n", escapeICS(a.Project))
		}
		if a.Description != "" {
			fmt.Fprintf(w, "DESCRIPTION:%s\r\n", escapeICS(a.Description))
		}
		fmt.Fprint(w, "END:VEVENT\r\n")
	}
	fmt.Fprint(w, "END:VCALENDAR\r\n")
}

func escapeICS(s string) string {
	r := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n")
	return r.Replace(s)
}

func formatDuration(seconds int) string {
	d := time.Duration(seconds) * time.Second
	return d.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
