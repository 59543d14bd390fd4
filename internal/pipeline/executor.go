package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// StageExecutor runs one pipeline stage through a selected capability. It is
// a pure adapter: selection, bounded retry with a fixed delay, and output
// normalization. Logging and persistence belong to the orchestrator.
type StageExecutor struct {
	retryDelay time.Duration
}

// NewStageExecutor creates an executor with the given fixed retry delay.
func NewStageExecutor(retryDelay time.Duration) *StageExecutor {
	return &StageExecutor{retryDelay: retryDelay}
}

// Execute selects a capability from the set, invokes it with input, retrying
// up to retries additional attempts on error, and normalizes the result to a
// canonical string encoding. After exhausting retries it returns a
// StageExecutionError carrying the last error.
func (e *StageExecutor) Execute(ctx context.Context, caps Set, input string, sel Selector, retries int) (string, error) {
	capability, err := caps.Select(sel)
	if err != nil {
		return "", err
	}

	if retries < 0 {
		retries = 0
	}
	attempts := retries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := capability.Execute(ctx, input)
		if err == nil {
			return normalize(out), nil
		}
		lastErr = err

		if attempt < attempts {
			select {
			case <-ctx.Done():
				return "", &StageExecutionError{Capability: capability.Name(), Attempts: attempt, Err: ctx.Err()}
			case <-time.After(e.retryDelay):
			}
		}
	}

	return "", &StageExecutionError{Capability: capability.Name(), Attempts: attempts, Err: lastErr}
}

// normalize guarantees every stage output is representable as a string
// regardless of the capability's native return type: strings pass through,
// anything else is serialized, and values that cannot be serialized fall back
// to their formatted representation.
func normalize(out any) string {
	switch v := out.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
