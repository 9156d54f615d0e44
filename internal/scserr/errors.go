// Package scserr defines the error kinds surfaced to the operator by every
// layer of scs (store, model, composer, auditor). Each kind maps to a short
// message and an exit code in cmd/scs; nothing outside this package should
// need to type-assert on anything but Kind.
package scserr

import "fmt"

// Kind identifies one of the error categories from the error handling design.
type Kind int

const (
	NotRoot Kind = iota
	Uninitialized
	Busy
	NotOnYourBranch
	DuplicateKey
	UnknownEntity
	InvalidInput
	ConflictOnMerge
	PatchFailed
	UndefinedVariable
	TransportFailed
)

func (k Kind) String() string {
	switch k {
	case NotRoot:
		return "NotRoot"
	case Uninitialized:
		return "Uninitialized"
	case Busy:
		return "Busy"
	case NotOnYourBranch:
		return "NotOnYourBranch"
	case DuplicateKey:
		return "DuplicateKey"
	case UnknownEntity:
		return "UnknownEntity"
	case InvalidInput:
		return "InvalidInput"
	case ConflictOnMerge:
		return "ConflictOnMerge"
	case PatchFailed:
		return "PatchFailed"
	case UndefinedVariable:
		return "UndefinedVariable"
	case TransportFailed:
		return "TransportFailed"
	}
	return "Unknown"
}

// Error wraps an underlying cause with a Kind the CLI layer can switch on.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no underlying cause.
func New(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around an underlying cause.
func Wrap(k Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else false.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind, true
	}
	return 0, false
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// ExitCode maps a Kind to the process exit status from the error design.
func ExitCode(k Kind) int {
	return 1
}
