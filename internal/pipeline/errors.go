package pipeline

import "fmt"

// StageError reports the pipeline stage that failed and whether retrying the
// whole run could succeed
type StageError struct {
	Stage     string
	Retryable bool
	Cause     error
}

func (e *StageError) Error() string {
	kind := "terminal"
	if e.Retryable {
		kind = "transient"
	}
	return fmt.Sprintf("%s stage failed (%s): %v", e.Stage, kind, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}
