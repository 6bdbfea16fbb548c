// Package logging provides panic recovery with stack trace logging.
package logging

import (
	"fmt"
	"runtime/debug"
)

// RecoveryHandler converts panics into errors with stack trace logging.
// The orchestrator and batch coordinator use it so that an unexpected
// fault never escapes to a caller as a raw panic.
type RecoveryHandler struct {
	logger  *Logger
	OnPanic func(err any, stack string)
}

// NewRecoveryHandler creates a recovery handler for a component
func NewRecoveryHandler(component string) *RecoveryHandler {
	return &RecoveryHandler{
		logger: New(component),
	}
}

// WrapError executes fn with panic recovery, returning error on panic
func (r *RecoveryHandler) WrapError(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			stack := string(debug.Stack())
			err = r.handlePanic(rec, stack)
		}
	}()
	return fn()
}

// Wrap executes fn with panic recovery
func (r *RecoveryHandler) Wrap(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			stack := string(debug.Stack())
			r.handlePanic(rec, stack)
		}
	}()
	fn()
}

// handlePanic logs the panic and calls the custom handler
func (r *RecoveryHandler) handlePanic(rec any, stack string) error {
	errMsg := fmt.Sprintf("panic in %s: %v", r.logger.component, rec)

	r.logger.emit(Event{
		Timestamp: nowRFC3339(),
		Level:     LevelError,
		Component: r.logger.component,
		Event:     "panic_recovered",
		Error:     fmt.Sprintf("%v", rec),
		Extra: map[string]any{
			"stack":     stack,
			"recovered": true,
		},
	})

	if r.OnPanic != nil {
		r.OnPanic(rec, stack)
	}

	return fmt.Errorf("%s", errMsg)
}

// SafeGo launches a goroutine with panic recovery
func SafeGo(component string, fn func()) {
	go func() {
		NewRecoveryHandler(component).Wrap(fn)
	}()
}
