// Package report writes the JSON report of a test run.
//
// Layout:
//   - report.json: the index, rewritten on every status change
//   - assets/<test-id>/: per-test artifacts such as failure screenshots
//
// The index is the single source of truth. Consumers poll report.json and
// compare updateSeq to detect changes.
package report

import (
	"errors"
	"time"

	"github.com/devicelab-dev/basil/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped:
		return true
	}
	return false
}

// FromCore converts a core test status.
func FromCore(s core.Status) Status {
	switch s {
	case core.StatusRunning:
		return StatusRunning
	case core.StatusPassed:
		return StatusPassed
	case core.StatusFailed:
		return StatusFailed
	case core.StatusErrored:
		return StatusErrored
	case core.StatusSkipped:
		return StatusSkipped
	}
	return StatusPending
}

// Index is the report file.
type Index struct {
	Version     string      `json:"version"`
	RunID       string      `json:"runId"`
	UpdateSeq   uint64      `json:"updateSeq"`
	Status      Status      `json:"status"`
	StartTime   time.Time   `json:"startTime"`
	EndTime     *time.Time  `json:"endTime,omitempty"`
	LastUpdated time.Time   `json:"lastUpdated"`
	Browser     Browser     `json:"browser"`
	Basil       RunnerInfo  `json:"basil"`
	Summary     Summary     `json:"summary"`
	Tests       []TestEntry `json:"tests"`
}

// Browser describes what the tests ran against.
type Browser struct {
	Type     string   `json:"type"`
	Driver   string   `json:"driver"` // standard, remote, session-reusable-remote
	Sessions []string `json:"sessions,omitempty"`
}

// RunnerInfo contains basil information.
type RunnerInfo struct {
	Version string `json:"version"`
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
	Pending int `json:"pending"`
}

// TestEntry is the index entry of one test.
type TestEntry struct {
	Index       int        `json:"index"` // Original position
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Worker      int        `json:"worker"`
	Status      Status     `json:"status"`
	UpdateSeq   uint64     `json:"updateSeq"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Duration    *int64     `json:"duration,omitempty"` // milliseconds
	Waited      *int64     `json:"waited,omitempty"`   // milliseconds spent in waits
	Error       *Error     `json:"error,omitempty"`
	Screenshot  string     `json:"screenshot,omitempty"` // relative to the report dir
	Log         []string   `json:"log,omitempty"`
}

// Error contains error details.
type Error struct {
	Type    string `json:"type"` // element, validation, timeout, session, script, assertion, unknown
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// NewError describes err for the report.
func NewError(err error) *Error {
	if err == nil {
		return nil
	}
	e := &Error{Type: "unknown", Message: err.Error()}
	if c := core.CategoryOf(err); c != core.ErrCategoryNone {
		e.Type = c.String()
	}
	var ee *core.ExecutionError
	if errors.As(err, &ee) {
		e.Code = ee.Code
	}
	return e
}

// TestUpdate contains the fields to update in index for a test.
type TestUpdate struct {
	Status     Status
	Worker     int
	StartTime  *time.Time
	EndTime    *time.Time
	Duration   *int64
	Waited     *int64
	Error      *Error
	Screenshot string
	Log        []string
}
