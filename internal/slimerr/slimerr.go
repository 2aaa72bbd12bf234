// Package slimerr defines the small error taxonomy shared by manifest,
// sign, storage, and engine. It exists so that every layer reports failures
// the same way instead of each defining its own sentinel type.
package slimerr

import "fmt"

// Kind classifies a failure without requiring callers to match on string
// messages.
type Kind int

const (
	// KindEngine wraps a short, stable message — a trap, a malformed
	// manifest field, an out-of-bounds flash access, and so on.
	KindEngine Kind = iota
	// KindModuleNotFound means the requested module id has no bytes or
	// handle anywhere in the pipeline.
	KindModuleNotFound
	// KindEntryNotFound means the module was loaded but the named export
	// does not exist. An export with the wrong signature is reported by
	// the engines as a KindEngine error instead.
	KindEntryNotFound
	// KindUnsupported means the operation is not implemented by the
	// current configuration (e.g. a build without the requested engine).
	KindUnsupported
)

// Error is the concrete error type returned by every fallible operation in
// this module. Msg is a short static string; Error never allocates beyond
// building the formatted string.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindModuleNotFound:
		return "module not found"
	case KindEntryNotFound:
		return "entry not found"
	case KindUnsupported:
		return "operation not supported"
	default:
		return e.Msg
	}
}

// Engine builds a KindEngine error carrying msg verbatim.
func Engine(msg string) error { return &Error{Kind: KindEngine, Msg: msg} }

// ModuleNotFound is the shared "module not found" error value's constructor.
func ModuleNotFound() error { return &Error{Kind: KindModuleNotFound} }

// EntryNotFound is the shared "entry not found" error value's constructor.
func EntryNotFound() error { return &Error{Kind: KindEntryNotFound} }

// Unsupported is the shared "operation not supported" error value's constructor.
func Unsupported() error { return &Error{Kind: KindUnsupported} }

// Is allows errors.Is(err, slimerr.ModuleNotFound()) style comparisons by
// kind. For KindEngine the Msg must match as well: two Engine errors with
// different messages are the same kind but do not match each other.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != other.Kind {
		return false
	}
	if e.Kind == KindEngine {
		return e.Msg == other.Msg
	}
	return true
}

// Wrap annotates err with additional static context without discarding the
// original for errors.As/errors.Is, mirroring the teacher's fmt.Errorf("%w")
// idiom at the I/O boundaries (flash files, CLIs).
func Wrap(context string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
