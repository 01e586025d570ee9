// Package simerr defines the error taxonomy shared by the simulator
// packages. Errors carry a Kind so that callers can branch with errors.Is
// against the sentinel values without matching on message text.
package simerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind int

// The error kinds.
const (
	KindUnknown Kind = iota
	KindConfiguration
	KindShape
	KindState
	KindArithmetic
	KindDecode
	KindResourceExhaustion
	KindBackpressure
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindConfiguration:      "configuration",
	KindShape:              "shape",
	KindState:              "state",
	KindArithmetic:         "arithmetic",
	KindDecode:             "decode",
	KindResourceExhaustion: "resource exhaustion",
	KindBackpressure:       "backpressure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrConfiguration      = &Error{Kind: KindConfiguration}
	ErrShape              = &Error{Kind: KindShape}
	ErrState              = &Error{Kind: KindState}
	ErrArithmetic         = &Error{Kind: KindArithmetic}
	ErrDecode             = &Error{Kind: KindDecode}
	ErrResourceExhaustion = &Error{Kind: KindResourceExhaustion}
	ErrBackpressure       = &Error{Kind: KindBackpressure}
)

// Error is a classified simulator error.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// New creates an error of the given kind. Op names the failing operation,
// for example "matrix.LoadWeights".
func New(kind Kind, op string, format string, args ...any) *Error {
	return &Error{
		Kind: kind,
		Op:   op,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Wrap classifies an existing error.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}

	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}

	if e.Op == "" {
		return fmt.Sprintf("%s error: %s", e.Kind, msg)
	}

	return fmt.Sprintf("%s: %s error: %s", e.Op, e.Kind, msg)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindUnknown
}

// IsRetryable reports whether the operation may succeed if tried again
// later. Only backpressure is retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBackpressure)
}
