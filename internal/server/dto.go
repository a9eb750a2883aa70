package server

import "github.com/ElohimLOJ/ai-activity-tracker/internal/engine"

// Request payloads

type CreateActivityRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	AITool      string `json:"ai_tool,omitempty"`
	Project     string `json:"project,omitempty"`
	Status      string `json:"status,omitempty" enum:"todo,in-progress,done"`
	Position    int    `json:"position,omitempty"`
}

type UpdateActivityRequest struct {
	Title           *string `json:"title,omitempty"`
	Description     *string `json:"description,omitempty"`
	AITool          *string `json:"ai_tool,omitempty"`
	Project         *string `json:"project,omitempty"`
	Status          *string `json:"status,omitempty" enum:"todo,in-progress,done"`
	Position        *int    `json:"position,omitempty"`
	CalendarEventID *string `json:"calendar_event_id,omitempty"`
}

type ReorderRequest struct {
	Items []engine.ReorderItem `json:"items"`
}

type CompleteRequest struct {
	Outcome      string `json:"outcome,omitempty" enum:"success,partial,failed"`
	OutcomeNotes string `json:"outcome_notes,omitempty"`
}

type NotificationsRequest struct {
	Enabled bool `json:"enabled"`
}

// Response payloads

type NotificationsResponse struct {
	Enabled bool `json:"enabled"`
}

type ReorderResponse struct {
	Success bool `json:"success"`
}
