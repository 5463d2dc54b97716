// Package report records the outcome of flow runs as report.json.
package report

import "time"

// Version is the report schema version.
const Version = "1.0.0"

// Status is the execution status of a run, flow or command.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped
}

// Index is the top-level report document.
type Index struct {
	Version   string     `json:"version"`
	RunID     string     `json:"runId"`
	Status    Status     `json:"status"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Device    Device     `json:"device"`
	Summary   Summary    `json:"summary"`
	Flows     []Flow     `json:"flows"`
}

// Device identifies the device the run targeted.
type Device struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// Summary counts flows by status.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Flow is the outcome of one flow.
type Flow struct {
	Name       string    `json:"name"`
	SourceFile string    `json:"sourceFile"`
	Status     Status    `json:"status"`
	Duration   int64     `json:"duration"` // ms
	Error      *Error    `json:"error,omitempty"`
	Commands   []Command `json:"commands"`
}

// Command is the outcome of one step.
type Command struct {
	Index       int       `json:"index"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Duration    int64     `json:"duration"` // ms
	Error       *Error    `json:"error,omitempty"`
	SubCommands []Command `json:"subCommands,omitempty"`
}

// Error describes a failure. Category is one of the error categories of
// the UI object layer (search, operation, transport) or "script".
type Error struct {
	Message  string `json:"message"`
	Category string `json:"category,omitempty"`
}
