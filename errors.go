package compactor

import (
	"errors"
	"fmt"
)

// Sentinel errors reported by the engine.
var (
	// ErrInvalidConfig marks a configuration that failed validation.
	ErrInvalidConfig = errors.New("invalid compaction configuration")

	// ErrSummarizationFailed marks a failed summarization call.
	ErrSummarizationFailed = errors.New("summarization failed")

	// ErrTokenCountingFailed marks a failed token-counting call.
	ErrTokenCountingFailed = errors.New("token counting failed")

	// ErrSettingsStore marks a failed settings load or save.
	ErrSettingsStore = errors.New("settings store operation failed")
)

// EngineError wraps a failure with the engine operation it occurred in, plus
// optional key-value context for debugging.
type EngineError struct {
	Op      string
	Err     error
	Context map[string]any
}

func (e *EngineError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("compaction %s failed", e.Op)
	}
	return fmt.Sprintf("compaction %s failed: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError wraps err as a failure of the named operation.
func NewEngineError(op string, err error) *EngineError {
	return &EngineError{Op: op, Err: err}
}

// WithContext attaches a key-value pair and returns the error for chaining.
func (e *EngineError) WithContext(key string, value any) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WrapError wraps non-nil errors in an EngineError; nil passes through.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewEngineError(op, err)
}
