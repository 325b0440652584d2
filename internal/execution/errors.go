package execution

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoCode is returned when a request carries no code. Nothing is spawned.
var ErrNoCode = errors.New("No code provided")

// TimeoutError reports that the code exceeded its time budget.
type TimeoutError struct{}

func (e *TimeoutError) Error() string {
	return "Code execution timed out"
}

// LaunchError reports that the interpreter could not be started.
type LaunchError struct {
	Err error
}

func (e *LaunchError) Error() string {
	return e.Err.Error()
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// CanceledError reports that the caller went away before the code finished.
type CanceledError struct{}

func (e *CanceledError) Error() string {
	return "Code execution canceled"
}

// UnexpectedError wraps any other internal fault, including recovered panics.
type UnexpectedError struct {
	Value any
}

func (e *UnexpectedError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

func (e *UnexpectedError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// StatusFor maps an Execute error to an HTTP status code. Every failure is
// the caller's problem as far as the response goes: a timed out or broken
// execution is reported, never retried.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return http.StatusBadRequest
}
