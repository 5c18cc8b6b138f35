package session

import (
	"fmt"
	"time"

	"github.com/jonathan/resume-tailor/internal/types"
)

// FailureKind classifies why an attempt did not complete. It is recorded in
// the trace entry written for the failure.
type FailureKind string

const (
	FailureDispatch     FailureKind = "dispatch"
	FailureTransient    FailureKind = "transient"
	FailureTerminal     FailureKind = "terminal"
	FailureTimeoutStall FailureKind = "timeout_stall"
	FailureCrash        FailureKind = "crash"
)

// ValidationError indicates a create request was rejected
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// DispatchError indicates the dispatch substrate refused or could not take
// the session. The session is FAILED when this is returned from Create.
type DispatchError struct {
	Message string
	Cause   error
}

func (e *DispatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DispatchError) Unwrap() error {
	return e.Cause
}

// TransientPipelineError is a failed attempt that may succeed on retry
type TransientPipelineError struct {
	Stage string
	Cause error
}

func (e *TransientPipelineError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Stage, e.Cause)
}

func (e *TransientPipelineError) Unwrap() error {
	return e.Cause
}

// TerminalPipelineError is a failed attempt that retrying cannot fix
type TerminalPipelineError struct {
	Stage string
	Cause error
}

func (e *TerminalPipelineError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Cause)
}

func (e *TerminalPipelineError) Unwrap() error {
	return e.Cause
}

// TimeoutStall reports a session that sat in a non-terminal state too long
type TimeoutStall struct {
	Status types.Status
	Idle   time.Duration
}

func (e *TimeoutStall) Error() string {
	return fmt.Sprintf("session stalled in %s for %s", e.Status, e.Idle.Round(time.Second))
}

// CrashError wraps a panic recovered while running the pipeline
type CrashError struct {
	Value any
	Stack string
}

func (e *CrashError) Error() string {
	return fmt.Sprintf("unexpected error: %v", e.Value)
}
