package types

// SessionStatus is the observable state of a session's conversation loop.
type SessionStatus string

const (
	StatusIdle         SessionStatus = "idle"
	StatusThinking     SessionStatus = "thinking"
	StatusResponding   SessionStatus = "responding"
	StatusToolDispatch SessionStatus = "tool_dispatch"
	StatusError        SessionStatus = "error"
)

// Correlation carries the external identity a session is persisted under.
// A session with an empty WidgetID is ephemeral: it is never hydrated from
// or written to the persistence gateway.
type Correlation struct {
	WidgetID    string `json:"widgetID,omitempty"`
	WorkspaceID string `json:"workspaceID,omitempty"`
}

// SessionInfo is a snapshot row returned by the registry's List.
type SessionInfo struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Status       SessionStatus `json:"status"`
	MessageCount int           `json:"messageCount"`
}
