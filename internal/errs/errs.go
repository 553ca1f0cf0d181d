package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIncomplete marks a resolution attempt that referenced an entity not yet
// registered. The attempt is retryable: callers park the work and try again
// after more documents have been processed.
var ErrIncomplete = errors.New("referenced entity not yet registered")

// Incompletef wraps ErrIncomplete with a formatted description of the missing
// reference.
func Incompletef(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrIncomplete)...)
}

// IsIncomplete reports whether err is a retryable deferral rather than a
// declaration error.
func IsIncomplete(err error) bool {
	return errors.Is(err, ErrIncomplete)
}

// BuildError is a fatal declaration error. It carries enough context to point
// at the offending document and identifier.
type BuildError struct {
	// Resource is the document the error originated from.
	Resource string
	// Activity describes what the builder was doing, e.g. "processing mapper_resultMap[userMap]".
	Activity string
	// Object is the offending identifier, if known.
	Object string
	// Err is the underlying cause.
	Err error
}

func (e *BuildError) Error() string {
	var sb strings.Builder
	sb.WriteString("build error")
	if e.Resource != "" {
		sb.WriteString(" in ")
		sb.WriteString(e.Resource)
	}
	if e.Activity != "" {
		sb.WriteString(" while ")
		sb.WriteString(e.Activity)
	}
	if e.Object != "" {
		fmt.Fprintf(&sb, " (object %q)", e.Object)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Err.Error())
	return sb.String()
}

func (e *BuildError) Unwrap() error { return e.Err }

// Buildf creates a fatal BuildError with document context.
func Buildf(resource, activity, object, format string, args ...any) error {
	return &BuildError{
		Resource: resource,
		Activity: activity,
		Object:   object,
		Err:      fmt.Errorf(format, args...),
	}
}

// Wrap attaches document context to an existing error. Retryable errors pass
// through untouched so deferral signals are never converted into fatal ones.
func Wrap(err error, resource, activity, object string) error {
	if err == nil || IsIncomplete(err) {
		return err
	}
	var be *BuildError
	if errors.As(err, &be) {
		return err
	}
	return &BuildError{Resource: resource, Activity: activity, Object: object, Err: err}
}
