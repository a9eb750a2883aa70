package dispatch

import (
	"strings"

	"github.com/ElohimLOJ/ai-activity-tracker/internal/config"
)

// Target identifies where a directive goes.
type Target struct {
	Agent   string
	Session string
}

// Label is the dispatch label recorded on the activity, e.g. "claude@ai-tracker-claude".
func (t Target) Label() string {
	if t.Agent == "" {
		return t.Session
	}
	return t.Agent + "@" + t.Session
}

// Router maps ai_tool names to agent targets with a default-session fallback.
type Router struct {
	routes         map[string]config.Route
	defaultSession string
}

func NewRouter(routes map[string]config.Route, defaultSession string) Router {
	normalized := make(map[string]config.Route, len(routes))
	for tool, route := range routes {
		normalized[strings.ToLower(strings.TrimSpace(tool))] = route
	}
	return Router{routes: normalized, defaultSession: defaultSession}
}

// Resolve returns the target for a tool name. Unknown or absent tools fall
// back to the default session with no agent pinning.
func (r Router) Resolve(tool string) Target {
	key := strings.ToLower(strings.TrimSpace(tool))
	if route, ok := r.routes[key]; ok && key != "" {
		session := route.Session
		if session == "" {
			session = r.defaultSession
		}
		return Target{Agent: route.Agent, Session: session}
	}
	return Target{Session: r.defaultSession}
}
