package ferror

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Location is one (file, line) annotation in the error's callstack, in the
// order it was appended (outermost call last).
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// FlowError is the error type that crosses component boundaries. It carries
// a Kind, a human message, an optional wrapped cause, a stack trace taken
// in New/Wrap, and a location chain that At extends as the error bubbles
// up.
type FlowError struct {
	kind    Kind
	message string
	cause   error
	stack   error // github.com/pkg/errors stack-tracer, captured in New and Wrap
	chain   []Location
}

// New creates a FlowError of the given kind with a formatted message and
// an empty location chain, capturing a stack trace of the call site.
func New(kind Kind, format string, args ...any) *FlowError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	e := &FlowError{kind: kind, message: msg}
	e.stack = errors.WithStack(errors.New(msg))
	return e
}

// Wrap annotates an existing error with a Kind and captures the call site.
// A *FlowError is returned as a re-kinded copy (message prefixed, cause and
// location chain kept); any other error is kept as the new error's cause.
func Wrap(cause error, kind Kind, format string, args ...any) *FlowError {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	if fe, ok := cause.(*FlowError); ok {
		// Re-kind an existing FlowError without losing its chain.
		clone := *fe
		clone.kind = kind
		clone.message = msg + ": " + fe.message
		clone.stack = errors.WithStack(errors.WithMessage(fe.stack, msg))
		return &clone
	}
	return &FlowError{
		kind:    kind,
		message: msg,
		cause:   cause,
		stack:   errors.WithStack(errors.Wrap(cause, msg)),
	}
}

// At appends the caller's (file, line) to the error's location chain. Every
// component boundary that re-surfaces an error should call At so the JSON
// output carries the full callstack, as required by spec C13.
func (e *FlowError) At(file string, line int) *FlowError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.chain = append(append([]Location{}, e.chain...), Location{File: file, Line: line})
	return &clone
}

func (e *FlowError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.message, e.cause.Error())
	}
	return e.message
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *FlowError) Unwrap() error { return e.cause }

// Kind returns the error's category.
func (e *FlowError) Kind() Kind { return e.kind }

// Chain returns the accumulated (file, line) annotations, outermost last.
func (e *FlowError) Chain() []Location { return e.chain }

// jsonError is the wire shape surfaced to hosts.
type jsonError struct {
	Kind     string     `json:"kind"`
	Message  string     `json:"message"`
	Location []Location `json:"location_stack"`
}

// MarshalJSON renders the structured error surface required by spec §7.
func (e *FlowError) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonError{
		Kind:     e.kind.String(),
		Message:  e.Error(),
		Location: e.chain,
	})
}

// Is supports errors.Is comparisons against a bare Kind wrapped in a
// FlowError (e.g. errors.Is(err, ferror.New(KindIO, ""))).
func (e *FlowError) Is(target error) bool {
	other, ok := target.(*FlowError)
	if !ok {
		return false
	}
	return e.kind == other.kind
}

// KindOf extracts the Kind from err if it is (or wraps) a *FlowError,
// otherwise returns KindInternal.
func KindOf(err error) Kind {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.kind
	}
	return KindInternal
}
