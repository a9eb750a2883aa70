package domain

// Board statuses. Position orders activities within a status column.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in-progress"
	StatusDone       = "done"
)

// Outcomes recorded on completion or dispatch failure.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

type Activity struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	AITool          string  `json:"ai_tool,omitempty"`
	Project         string  `json:"project,omitempty"`
	Status          string  `json:"status" enum:"todo,in-progress,done"`
	Position        int     `json:"position"`
	TimeSpent       int     `json:"time_spent"`
	TimeStarted     *string `json:"time_started,omitempty" format:"date-time"`
	Outcome         *string `json:"outcome,omitempty" enum:"success,partial,failed"`
	OutcomeNotes    string  `json:"outcome_notes,omitempty"`
	FailureReason   string  `json:"failure_reason,omitempty"`
	IterationCount  int     `json:"iteration_count"`
	DispatchedTo    string  `json:"dispatched_to,omitempty"`
	CalendarEventID string  `json:"calendar_event_id,omitempty"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
	CompletedAt     *string `json:"completed_at,omitempty" format:"date-time"`
}

// ActivityEvent is one row of the status-change audit log.
type ActivityEvent struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	ActivityID string `json:"activity_id"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status"`
	Label      string `json:"label"`
}

func ValidStatus(s string) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

func ValidOutcome(s string) bool {
	switch s {
	case OutcomeSuccess, OutcomePartial, OutcomeFailed:
		return true
	}
	return false
}

// HumanStatus renders a status for display, e.g. "in-progress" -> "In Progress".
func HumanStatus(s string) string {
	switch s {
	case StatusTodo:
		return "To Do"
	case StatusInProgress:
		return "In Progress"
	case StatusDone:
		return "Done"
	}
	return s
}
