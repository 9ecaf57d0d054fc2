package render

import (
	"context"
	"errors"
	"fmt"
)

// Engine executes one script block against a bridge. Implementations must
// not retain any state (compiled code, globals, bindings) once Execute
// returns, and should return an *ExecutionError on failure.
type Engine interface {
	Execute(ctx context.Context, code string, bridge *Bridge) error
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, code string, bridge *Bridge) error

// Execute calls f.
func (f EngineFunc) Execute(ctx context.Context, code string, bridge *Bridge) error {
	return f(ctx, code, bridge)
}

// ErrorKind classifies a block failure.
type ErrorKind string

const (
	KindSyntax    ErrorKind = "syntax"
	KindException ErrorKind = "exception"
	KindTimeout   ErrorKind = "timeout"
	KindCancelled ErrorKind = "cancelled"
	KindPanic     ErrorKind = "panic"
	KindUnknown   ErrorKind = "error"
)

// ExecutionError is a failure confined to one script block.
type ExecutionError struct {
	Index int
	Kind  ErrorKind
	Err   error
}

// NewExecutionError creates an execution error for an unnumbered block;
// the pipeline fills in Index.
func NewExecutionError(kind ErrorKind, err error) *ExecutionError {
	return &ExecutionError{Index: -1, Kind: kind, Err: err}
}

// Error formats the failure with its block index when known.
func (e *ExecutionError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("block %d: %s: %v", e.Index, e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// asExecutionError numbers err for block index, wrapping foreign errors.
func asExecutionError(index int, err error) *ExecutionError {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		numbered := *execErr
		numbered.Index = index
		return &numbered
	}
	kind := KindUnknown
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.Canceled):
		kind = KindCancelled
	}
	return &ExecutionError{Index: index, Kind: kind, Err: err}
}
