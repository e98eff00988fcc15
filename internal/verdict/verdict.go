// Package verdict parses the JSON an execution script writes to stdout
// into the judge's result sum type, and defines the job-level result
// the runner assembles per runtime node.
package verdict

import (
	"encoding/json"
	"fmt"
)

// Status is the outcome a Displayable result carries.
type Status string

const (
	StatusAC  Status = "AC"
	StatusWA  Status = "WA"
	StatusTLE Status = "TLE"
	StatusMLE Status = "MLE"
	StatusOLE Status = "OLE"
	StatusRE  Status = "RE"
	StatusCE  Status = "CE"
)

// ContinueStatus tells the runner whether to schedule this node's
// dependents (Continue) or abort the rest of the DAG downstream of it
// (Stop).
type ContinueStatus string

const (
	Continue ContinueStatus = "Continue"
	Stop     ContinueStatus = "Stop"
)

// Displayable is a frontend-visible per-testcase or phase result.
type Displayable struct {
	Status         Status         `json:"status"`
	TimeMs         float64        `json:"time"`
	MemoryKiB      float64        `json:"memory"`
	Score          int64          `json:"score"`
	Message        *string        `json:"message"`
	ContinueStatus ContinueStatus `json:"continue_status"`
}

// Hidden is a result that carries no displayable fields, used for
// validation or bookkeeping phases the frontend never shows.
type Hidden struct {
	ContinueStatus ContinueStatus `json:"continue_status"`
}

// ExecutionResult is the sum type an execution script's stdout decodes
// into: either a Displayable or a Hidden result, each carrying its own
// ContinueStatus.
type ExecutionResult interface {
	isExecutionResult()
	Continue() ContinueStatus
}

func (Displayable) isExecutionResult()         {}
func (d Displayable) Continue() ContinueStatus { return d.ContinueStatus }

func (Hidden) isExecutionResult()          {}
func (h Hidden) Continue() ContinueStatus { return h.ContinueStatus }

// wireResult mirrors Rust's externally tagged
// enum encoding: {"Displayable": {...}} or {"Hidden": {...}}.
type wireResult struct {
	Displayable *Displayable `json:"Displayable,omitempty"`
	Hidden      *Hidden      `json:"Hidden,omitempty"`
}

// ParseError is returned by Parse.
type ParseError struct {
	Reason string
	Cause  error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("verdict: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("verdict: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// NonZeroExitCode reports a script that exited with a non-zero status;
// its stdout, if any, is not considered a verdict.
type NonZeroExitCode struct {
	ExitCode int
}

func (e *NonZeroExitCode) Error() string {
	return fmt.Sprintf("verdict: non-zero exit code %d", e.ExitCode)
}

// Parse decodes an execution script's output into an ExecutionResult.
// If exitCode is non-zero, *NonZeroExitCode is returned without
// inspecting stdout. Otherwise stdout is JSON-decoded into the
// Displayable/Hidden sum type; any decode failure, including a result
// that names neither tag, yields *ParseError.
func Parse(stdout string, exitCode int) (ExecutionResult, error) {
	if exitCode != 0 {
		return nil, &NonZeroExitCode{ExitCode: exitCode}
	}

	var w wireResult
	if err := json.Unmarshal([]byte(stdout), &w); err != nil {
		return nil, &ParseError{Reason: "invalid json", Cause: err}
	}

	switch {
	case w.Displayable != nil:
		return *w.Displayable, nil
	case w.Hidden != nil:
		return *w.Hidden, nil
	default:
		return nil, &ParseError{Reason: "neither Displayable nor Hidden tag present"}
	}
}

// JobResult is the per-runtime-node result the runner assembles: either
// an ExecutionResult or EarlyExit for nodes an upstream Stop prevented
// from ever running.
type JobResult interface {
	isJobResult()
}

// ExecutionJobResult wraps a node's parsed ExecutionResult.
type ExecutionJobResult struct {
	Result ExecutionResult
}

func (ExecutionJobResult) isJobResult() {}

// EarlyExit marks a node that was never run.
type EarlyExit struct{}

func (EarlyExit) isJobResult() {}
