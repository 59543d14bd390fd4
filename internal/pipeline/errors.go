package pipeline

import (
	"errors"
	"fmt"
)

// ErrNoCapability is returned when a stage has an empty capability set.
var ErrNoCapability = errors.New("no capability available")

// ValidationError reports missing or invalid run pre-conditions. It is fatal:
// no stage runs when it is raised at Init.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// StageExecutionError reports a capability that failed after exhausting its
// retries. It carries the last attempt's error.
type StageExecutionError struct {
	Capability string
	Attempts   int
	Err        error
}

func (e *StageExecutionError) Error() string {
	return fmt.Sprintf("capability %s failed after %d attempts: %v", e.Capability, e.Attempts, e.Err)
}

func (e *StageExecutionError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a datastore write failure. Non-fatal unless it is
// the initial query-creation write, which leaves the run without an identity.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
