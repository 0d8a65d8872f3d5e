package depgraph

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrMalformedDocument = errors.New("malformed document")
	ErrInvalidInput      = errors.New("invalid input")
	ErrGraphUnavailable  = errors.New("graph unavailable")
	ErrIdentityConflict  = errors.New("identity conflict")
)

// Error carries a kind, the failing operation and an optional cause.
type Error struct {
	Kind error
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Malformed builds an ErrMalformedDocument error.
func Malformed(op, format string, args ...any) error {
	return &Error{Kind: ErrMalformedDocument, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// InvalidInput builds an ErrInvalidInput error.
func InvalidInput(op, format string, args ...any) error {
	return &Error{Kind: ErrInvalidInput, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Unavailable wraps a store failure as ErrGraphUnavailable. It returns nil
// for a nil cause and leaves errors that already carry the kind untouched.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrGraphUnavailable) {
		return err
	}
	return &Error{Kind: ErrGraphUnavailable, Op: op, Err: err}
}

// Conflict builds an ErrIdentityConflict diagnostic.
func Conflict(op string, groups int) error {
	return &Error{Kind: ErrIdentityConflict, Op: op, Msg: fmt.Sprintf("%d duplicate group(s) remain", groups)}
}

// KindOf returns the short kind name used in API responses.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrMalformedDocument):
		return "malformed_document"
	case errors.Is(err, ErrGraphUnavailable):
		return "graph_unavailable"
	case errors.Is(err, ErrIdentityConflict):
		return "identity_conflict"
	default:
		return "internal"
	}
}
