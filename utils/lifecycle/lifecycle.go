// Package lifecycle runs start-once / close-once state machines for pipeline parts
// and the Step loop that drives a main loop on its own goroutine.
package lifecycle

import (
	"errors"
	"fmt"
)

// Instance is anything with a single teardown and a printable name for logs.
type Instance interface {
	Close_()
	String() string
}

// AsyncInstance is an Instance driven by repeated Step calls until Step returns an error.
// Returning *BreakError ends the loop without it being reported as a failure.
type AsyncInstance interface {
	Instance
	Step(stopChan <-chan struct{}) error
}

type Manager[T Instance] interface {
	Start(func(T) error) error
	Close()
	Closed() bool
}

type AsyncManager[T AsyncInstance] interface {
	Manager[T]
	Done() <-chan struct{}
	Err() error
}

type BreakError struct{}

func (*BreakError) Error() string {
	return "break"
}

type StartedAlreadyError struct{}

func (*StartedAlreadyError) Error() string {
	return "started already"
}

type StartedAfterCloseError struct{}

func (*StartedAfterCloseError) Error() string {
	return "start after close"
}

// PanicError carries a value recovered from a panicking Step.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("recovered panic: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error itself.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func isBreak(err error) bool {
	var brk *BreakError
	return errors.As(err, &brk)
}
