// Package goarchiveerr defines the typed error kinds the storage core can
// raise, grounded on the sibling warehouse package's one-struct-per-kind
// idiom (see warehouse/errors.go).
package goarchiveerr

import "fmt"

// Kind classifies an Error into one of the categories the core
// distinguishes between for propagation policy.
type Kind int

const (
	// InvalidParameter covers a nil world, zero entity, size mismatch
	// against a registered component, or an operation on a non-component
	// id.
	InvalidParameter Kind = iota
	// InvalidComponent covers reading data from an id with no column in
	// the current table.
	InvalidComponent
	// InconsistentComponentAction covers installing lifecycle hooks that
	// disagree with a previously installed set.
	InconsistentComponentAction
	// InvalidOperation covers an operation not legal in the current world
	// state (e.g. some ops while an iteration is in progress).
	InvalidOperation
	// OutOfMemory covers allocator failure from the host.
	OutOfMemory
	// InternalError covers an invariant violation that should be
	// unreachable.
	InternalError
)

func (k Kind) String() string {
	switch k {
	case InvalidParameter:
		return "InvalidParameter"
	case InvalidComponent:
		return "InvalidComponent"
	case InconsistentComponentAction:
		return "InconsistentComponentAction"
	case InvalidOperation:
		return "InvalidOperation"
	case OutOfMemory:
		return "OutOfMemory"
	case InternalError:
		return "InternalError"
	default:
		return "UnknownError"
	}
}

// Error is the core's single error type; Kind classifies it. The root
// package returns every Kind to its caller as an ordinary error.
type Error struct {
	Kind      Kind
	Message   string
	Entity    uint64
	Component uint64
}

func (e *Error) Error() string {
	if e.Entity == 0 && e.Component == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s (entity=%d component=%d)", e.Kind, e.Message, e.Entity, e.Component)
}

// Is supports errors.Is comparisons against a bare Kind-tagged Error
// (two *Error values are equivalent if their Kinds match).
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithEntity returns a copy of the error annotated with an entity id.
func (e *Error) WithEntity(entity uint64) *Error {
	c := *e
	c.Entity = entity
	return &c
}

// WithComponent returns a copy of the error annotated with a component id.
func (e *Error) WithComponent(component uint64) *Error {
	c := *e
	c.Component = component
	return &c
}
