package observation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind categorises failures raised by the runtime.
type ErrorKind int

const (
	// NonObservableProperty is raised when an observer cannot be created,
	// e.g. for a non-configurable property or a frozen object.
	NonObservableProperty ErrorKind = iota + 1
	// InvalidBindingTarget is raised in strict mode when an expression
	// dereferences a nil base.
	InvalidBindingTarget
	// SubscriberThrew wraps an error or panic coming out of a change handler.
	SubscriberThrew
)

func (k ErrorKind) String() string {
	switch k {
	case NonObservableProperty:
		return "non-observable property"
	case InvalidBindingTarget:
		return "invalid binding target"
	case SubscriberThrew:
		return "subscriber threw"
	default:
		return "unknown"
	}
}

// Error is the structured error returned by the observation runtime.
type Error struct {
	Kind  ErrorKind
	Key   string
	Cause error
}

var (
	ErrNonObservableProperty = &Error{Kind: NonObservableProperty}
	ErrInvalidBindingTarget  = &Error{Kind: InvalidBindingTarget}
	ErrSubscriberThrew       = &Error{Kind: SubscriberThrew}
)

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("observation: ")
	sb.WriteString(e.Kind.String())
	if e.Key != "" {
		sb.WriteString(fmt.Sprintf(" %q", e.Key))
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on kind, and on key when the target carries one.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && (t.Key == "" || t.Key == e.Key)
}

func nonObservable(key, reason string) error {
	return &Error{Kind: NonObservableProperty, Key: key, Cause: errors.New(reason)}
}

// DiagnosticKind names a non-error event reported through OnDiagnosticFunc.
type DiagnosticKind int

const (
	// DirtyCheckFallbackUsed reports that a property could only be observed
	// by polling.
	DirtyCheckFallbackUsed DiagnosticKind = iota + 1
)

func (k DiagnosticKind) String() string {
	switch k {
	case DirtyCheckFallbackUsed:
		return "dirty check fallback used"
	default:
		return "unknown"
	}
}

type Diagnostic struct {
	Kind   DiagnosticKind
	Target any
	Key    string
}
