package pseudomotor

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is the kind of error returned when geometry
	// parameters are malformed or degenerate at construction
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrConfiguration is the kind of error returned when a safety check
	// is enabled but the configuration it relies on (axis limits) is missing
	ErrConfiguration = errors.New("configuration error")

	// ErrPositionValidation is the kind of error returned when a current
	// position is unreadable or unsafe to compute from
	ErrPositionValidation = errors.New("position validation error")

	// ErrCalculation is the kind of error returned when a transform cannot
	// produce a result
	ErrCalculation = errors.New("calculation error")
)

// Error is returned by every controller in this package.  Kind is one of
// the Err* sentinels above; errors.Is matches on both Kind and Err.
type Error struct {
	// Kind is the category of failure
	Kind error

	// Op is the operation that failed, e.g. "TripodTable.CalcAllPhysical"
	Op string

	// Msg is a human readable description
	Msg string

	// Err is the underlying cause, if any
	Err error
}

func (e *Error) Error() string {
	s := e.Kind.Error()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func invalidConfig(op, format string, args ...interface{}) error {
	return &Error{Kind: ErrInvalidConfiguration, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func calcError(op string, cause error, format string, args ...interface{}) error {
	return &Error{Kind: ErrCalculation, Op: op, Msg: fmt.Sprintf(format, args...), Err: cause}
}
