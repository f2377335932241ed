// Package xerrors defines the error taxonomy shared by every package in this
// module: config, shard, distance, centroid, seed, and lloyd all raise one of
// these six kinds instead of bare fmt.Errorf, so callers can dispatch on Kind
// instead of string-matching messages. internal/gpu returns plain errors; its
// callers in centroid and distance wrap them as AcceleratorError.
package xerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the six error categories a caller may want to branch on.
type Kind int

const (
	// ConfigError marks an invalid k, unknown format, or unknown
	// distance/seeder key.
	ConfigError Kind = iota
	// IoError marks a missing path, permission failure, or truncated shard.
	IoError
	// FormatError marks an unrecognized extension or a corrupt file.
	FormatError
	// AcceleratorError marks a missing device, kernel build failure, or
	// device OOM. Carries an optional build log.
	AcceleratorError
	// ShapeError marks a column-count mismatch or a non-finite value where
	// one isn't tolerated.
	ShapeError
	// InternalInvariantError marks a violation of one of the data-model or
	// component invariants.
	InternalInvariantError
)

func (k Kind) String() string {
	switch k {
	case ConfigError:
		return "ConfigError"
	case IoError:
		return "IoError"
	case FormatError:
		return "FormatError"
	case AcceleratorError:
		return "AcceleratorError"
	case ShapeError:
		return "ShapeError"
	case InternalInvariantError:
		return "InternalInvariantError"
	default:
		return "UnknownError"
	}
}

// Error is a taxonomy-tagged error. BuildLog is populated only for
// AcceleratorError raised by a kernel compile failure (spec §4.C, §7).
type Error struct {
	Kind     Kind
	Msg      string
	BuildLog string
	Cause    error
}

func (e *Error) Error() string {
	if e.BuildLog != "" {
		return fmt.Sprintf("%s: %s\nbuild log:\n%s", e.Kind, e.Msg, e.BuildLog)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, xerrors.New(xerrors.IoError, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds a bare taxonomy error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap attaches kind/msg to a lower-level cause, preserving it for
// errors.Unwrap/errors.As chains. The cause is given a stack trace via
// github.com/pkg/errors so a logged IoError/AcceleratorError points back to
// where the underlying failure actually occurred, not just where it was
// reclassified.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: errors.WithStack(cause)}
}

// WithBuildLog attaches an accelerator kernel build log to an
// AcceleratorError.
func WithBuildLog(msg, log string) *Error {
	return &Error{Kind: AcceleratorError, Msg: msg, BuildLog: log}
}
