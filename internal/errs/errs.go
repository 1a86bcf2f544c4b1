// Package errs holds the error taxonomy shared by the selection, command and
// spacing packages. Callers wrap these sentinels with context via
// fmt.Errorf("...: %w", ...) and match them with errors.Is.
package errs

import (
	"errors"
	"io/fs"
	"os"
)

// Construction-time errors: raised while building selectors, commands, pages
// or break maps, before any score is touched.
var (
	// ErrInvalidParameter marks a malformed selector or command parameter.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrLayout marks an inconsistent page/system declaration.
	ErrLayout = errors.New("invalid layout")
)

// Resolution-time errors: raised when a selector or command runs against a
// concrete score.
var (
	// ErrIndexOutOfRange marks an indexed accessor past either end.
	ErrIndexOutOfRange = errors.New("selection index out of bounds")
	// ErrInsufficientValues marks an exact value-cycling command whose value
	// count differs from its selection size.
	ErrInsufficientValues = errors.New("insufficient values for selection size")
	// ErrMeasureOverrun marks a measure number past the rendered measure count.
	ErrMeasureOverrun = errors.New("measure number beyond score end")
	// ErrPartAssignment marks a voice that does not permit a part assignment.
	ErrPartAssignment = errors.New("invalid part assignment")
	// ErrPrecondition marks inputs that violate a documented precondition.
	ErrPrecondition = errors.New("precondition violated")
)

// Kind is the closed classification of errors used for exit codes.
type Kind string

const (
	KindUnknown    Kind = "unknown"
	KindValidation Kind = "validation"
	KindResolution Kind = "resolution"
	KindIO         Kind = "io"
)

// Classify maps any wrapped error onto its Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	switch {
	case errors.Is(err, ErrInvalidParameter), errors.Is(err, ErrLayout):
		return KindValidation
	case errors.Is(err, ErrIndexOutOfRange),
		errors.Is(err, ErrInsufficientValues),
		errors.Is(err, ErrMeasureOverrun),
		errors.Is(err, ErrPartAssignment),
		errors.Is(err, ErrPrecondition):
		return KindResolution
	}
	var perr *os.PathError
	if errors.As(err, &perr) || errors.Is(err, fs.ErrNotExist) {
		return KindIO
	}
	return KindUnknown
}

// ExitCode returns the process exit status for an error kind.
func ExitCode(kind Kind) int {
	switch kind {
	case KindValidation:
		return 2
	case KindResolution:
		return 3
	case KindIO:
		return 4
	default:
		return 1
	}
}
