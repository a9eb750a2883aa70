package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/ElohimLOJ/ai-activity-tracker/internal/dispatch"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/domain"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/engine"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/export"
	"github.com/ElohimLOJ/ai-activity-tracker/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"activity not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the tracker API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("AI Activity Tracker API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerActivities(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerDashboard(group, cfg.Engine)
	registerNotifications(group, cfg.Engine)
	registerExports(router, basePath, cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "required") || strings.Contains(lowered, "already running"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	case strings.Contains(lowered, "token"):
		return newAPIError(http.StatusUnauthorized, "unauthorized", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

type activityPath struct {
	ID string `path:"id"`
}

func registerActivities(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activities",
		Method:      http.MethodGet,
		Path:        "/activities",
		Summary:     "List activities in board order",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Activity `json:"body"`
	}, error) {
		items, err := e.Repo.GetAll(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Activity{}
		}
		return &struct {
			Body []domain.Activity `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-activity",
		Method:        http.MethodPost,
		Path:          "/activities",
		Summary:       "Create activity",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateActivityRequest `json:"body"`
	}) (*struct {
		Body domain.Activity `json:"body"`
	}, error) {
		a, err := e.CreateActivity(ctx, engine.CreateOptions{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			AITool:      input.Body.AITool,
			Project:     input.Body.Project,
			Status:      input.Body.Status,
			Position:    input.Body.Position,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Activity `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-activity",
		Method:      http.MethodGet,
		Path:        "/activities/{id}",
		Summary:     "Get activity",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *activityPath) (*struct {
		Body domain.Activity `json:"body"`
	}, error) {
		a, err := e.Repo.Get(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Activity `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-activity",
		Method:      http.MethodPut,
		Path:        "/activities/{id}",
		Summary:     "Update activity fields",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body UpdateActivityRequest `json:"body"`
	}) (*struct {
		Body domain.Activity `json:"body"`
	}, error) {
		a, err := e.UpdateActivity(ctx, input.ID, engine.UpdateOptions{
			Title:           input.Body.Title,
			Description:     input.Body.Description,
			AITool:          input.Body.AITool,
			Project:         input.Body.Project,
			Status:          input.Body.Status,
			Position:        input.Body.Position,
			CalendarEventID: input.Body.CalendarEventID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Activity `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-activity",
		Method:        http.MethodDelete,
		Path:          "/activities/{id}",
		Summary:       "Delete activity",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *activityPath) (*struct{}, error) {
		if err := e.DeleteActivity(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reorder-activities",
		Method:      http.MethodPost,
		Path:        "/activities/reorder",
		Summary:     "Apply board placements",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body ReorderRequest `json:"body"`
	}) (*struct {
		Body ReorderResponse `json:"body"`
	}, error) {
		if err := e.Reorder(ctx, input.Body.Items); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ReorderResponse `json:"body"`
		}{Body: ReorderResponse{Success: true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-timer",
		Method:      http.MethodPost,
		Path:        "/activities/{id}/timer/start",
		Summary:     "Start the activity timer",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *activityPath) (*struct {
		Body domain.Activity `json:"body"`
	}, error) {
		a, err := e.StartTimer(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Activity `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stop-timer",
		Method:      http.MethodPost,
		Path:        "/activities/{id}/timer/stop",
		Summary:     "Stop the activity timer",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *activityPath) (*struct {
		Body domain.Activity `json:"body"`
	}, error) {
		a, err := e.StopTimer(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Activity `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "increment-iteration",
		Method:      http.MethodPost,
		Path:        "/activities/{id}/iterate",
		Summary:     "Increment the iteration counter",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *activityPath) (*struct {
		Body domain.Activity `json:"body"`
	}, error) {
		a, err := e.IncrementIteration(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Activity `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "execute-activity",
		Method:      http.MethodPost,
		Path:        "/activities/{id}/execute",
		Summary:     "Hand the activity to the agent",
		Description: "Re-triggers dispatch regardless of current status. The dispatch itself runs detached; this returns as soon as it is queued.",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *activityPath) (*struct {
		Body domain.Activity `json:"body"`
	}, error) {
		a, err := e.Execute(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Activity `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "retry-activity",
		Method:      http.MethodPost,
		Path:        "/activities/{id}/retry",
		Summary:     "Reset and re-dispatch the activity",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *activityPath) (*struct {
		Body domain.Activity `json:"body"`
	}, error) {
		a, err := e.Retry(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Activity `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-activity",
		Method:      http.MethodPost,
		Path:        "/activities/{id}/complete",
		Summary:     "Completion callback from the agent",
		Description: "Idempotent-tolerant: repeating a payload leaves the record unchanged, but a different outcome overwrites the previous one (last write wins).",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID    string          `path:"id"`
		Token string          `query:"token"`
		Body  CompleteRequest `json:"body"`
	}) (*struct {
		Body domain.Activity `json:"body"`
	}, error) {
		if secret := callbackSecret(e); secret != "" {
			if input.Token == "" {
				return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "callback token required", nil)
			}
			if err := dispatch.VerifyCallbackToken(secret, input.Token, input.ID); err != nil {
				return nil, newAPIError(http.StatusUnauthorized, "unauthorized", err.Error(), nil)
			}
		}
		a, err := e.Complete(ctx, input.ID, input.Body.Outcome, input.Body.OutcomeNotes)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Activity `json:"body"`
		}{Body: a}, nil
	})
}

func callbackSecret(e engine.Engine) string {
	if e.Config == nil {
		return ""
	}
	return e.Config.Dispatch.CallbackSecret
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-activity-events",
		Method:      http.MethodGet,
		Path:        "/activities/{id}/events",
		Summary:     "Status-change log, newest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID    string `path:"id"`
		Limit int    `query:"limit"`
	}) (*struct {
		Body []domain.ActivityEvent `json:"body"`
	}, error) {
		if _, err := e.Repo.Get(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		evts, err := e.Repo.ListEvents(ctx, input.ID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		if evts == nil {
			evts = []domain.ActivityEvent{}
		}
		return &struct {
			Body []domain.ActivityEvent `json:"body"`
		}{Body: evts}, nil
	})
}

func registerDashboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "Board summary",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body export.Summary `json:"body"`
	}, error) {
		items, err := e.Repo.GetAll(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body export.Summary `json:"body"`
		}{Body: export.Summarize(items)}, nil
	})
}

func registerNotifications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "Notification switch state",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body NotificationsResponse `json:"body"`
	}, error) {
		enabled := false
		if e.Notifier != nil {
			enabled = e.Notifier.Enabled()
		}
		return &struct {
			Body NotificationsResponse `json:"body"`
		}{Body: NotificationsResponse{Enabled: enabled}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-notifications",
		Method:      http.MethodPost,
		Path:        "/notifications",
		Summary:     "Toggle notifications",
		Description: "Takes effect for subsequent events only.",
	}, func(ctx context.Context, input *struct {
		Body NotificationsRequest `json:"body"`
	}) (*struct {
		Body NotificationsResponse `json:"body"`
	}, error) {
		if e.Notifier != nil {
			e.Notifier.SetEnabled(input.Body.Enabled)
		}
		return &struct {
			Body NotificationsResponse `json:"body"`
		}{Body: NotificationsResponse{Enabled: input.Body.Enabled}}, nil
	})
}

// registerExports serves the non-JSON derived views straight from chi.
func registerExports(r chi.Router, basePath string, e engine.Engine) {
	serve := func(contentType string, render func(w http.ResponseWriter, acts []domain.Activity)) http.HandlerFunc {
		return func(w http.ResponseWriter, req *http.Request) {
			items, err := e.Repo.GetAll(req.Context())
			if err != nil {
				http.Error(w, fmt.Sprintf("export: %v", err), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", contentType)
			render(w, items)
		}
	}
	r.Get(basePath+"/export/csv", serve("text/csv", func(w http.ResponseWriter, acts []domain.Activity) {
		w.Header().Set("Content-Disposition", `attachment; filename="activities.csv"`)
		_ = export.CSV(w, acts)
	}))
	r.Get(basePath+"/export/report", serve("text/plain; charset=utf-8", func(w http.ResponseWriter, acts []domain.Activity) {
		export.Report(w, acts)
	}))
	r.Get(basePath+"/export/calendar", serve("text/calendar", func(w http.ResponseWriter, acts []domain.Activity) {
		export.Calendar(w, acts)
	}))
}
