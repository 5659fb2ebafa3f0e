package models

import "time"

// LogLevel is the severity of a diagnostic log entry
type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

// LogContext identifies where an entry was produced
type LogContext struct {
	URL   string `json:"url"`
	Agent string `json:"agent"`
}

// LogEntry is one diagnostic event kept in the local log buffer
type LogEntry struct {
	ID         string     `json:"id"`
	Timestamp  time.Time  `json:"timestamp"`
	Level      LogLevel   `json:"level"`
	Component  string     `json:"component"`
	Message    string     `json:"message"`
	Data       any        `json:"data,omitempty"`
	ErrorStack string     `json:"error_stack,omitempty"`
	Context    LogContext `json:"context"`
}

// EscalationPayload is the body POSTed to the backend log sink
type EscalationPayload struct {
	Level      LogLevel `json:"level"`
	Component  string   `json:"component"`
	Message    string   `json:"message"`
	ErrorStack *string  `json:"error_stack"`
	URL        string   `json:"url"`
}

// Payload converts the entry to the backend wire format
func (e LogEntry) Payload() EscalationPayload {
	p := EscalationPayload{
		Level:     e.Level,
		Component: e.Component,
		Message:   e.Message,
		URL:       e.Context.URL,
	}
	if e.ErrorStack != "" {
		stack := e.ErrorStack
		p.ErrorStack = &stack
	}
	return p
}
