package artifact

import (
	"errors"
	"fmt"
)

// Kind classifies validation failures. Validation failures are caused by the
// template author and are reported as a single message without diagnostics.
type Kind int

const (
	KindPropertyConflict Kind = iota + 1
	KindOutsideProjectDirectory
	KindUnsupportedItemType
	KindMissingTargetProject
	KindDefaultOutputMisuse
	KindInvalidEncoding
)

// String returns the name of the kind
func (k Kind) String() string {
	switch k {
	case KindPropertyConflict:
		return "PropertyConflict"
	case KindOutsideProjectDirectory:
		return "OutsideProjectDirectory"
	case KindUnsupportedItemType:
		return "UnsupportedItemType"
	case KindMissingTargetProject:
		return "MissingTargetProject"
	case KindDefaultOutputMisuse:
		return "DefaultOutputMisuse"
	case KindInvalidEncoding:
		return "InvalidEncoding"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is. They match any ValidationError of the same kind.
var (
	ErrPropertyConflict        = &ValidationError{Kind: KindPropertyConflict}
	ErrOutsideProjectDirectory = &ValidationError{Kind: KindOutsideProjectDirectory}
	ErrUnsupportedItemType     = &ValidationError{Kind: KindUnsupportedItemType}
	ErrMissingTargetProject    = &ValidationError{Kind: KindMissingTargetProject}
	ErrDefaultOutputMisuse     = &ValidationError{Kind: KindDefaultOutputMisuse}
	ErrInvalidEncoding         = &ValidationError{Kind: KindInvalidEncoding}
)

// ValidationError is a business-rule failure attributed to one artifact.
type ValidationError struct {
	Kind    Kind
	Path    string // artifact path, may be empty for the default output
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Message
}

// Is matches sentinels by kind.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// PropertyConflictError is returned when two writes to the same artifact
// disagree about one of its properties.
type PropertyConflictError struct {
	Property string
	Value    string
	Previous string
	Path     string
}

func (e *PropertyConflictError) Error() string {
	return fmt.Sprintf("%s property of output %q is set to %q but was previously set to %q",
		e.Property, e.Path, e.Value, e.Previous)
}

// Is matches ErrPropertyConflict.
func (e *PropertyConflictError) Is(target error) bool {
	return target == error(ErrPropertyConflict)
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(kind Kind, path, format string, args ...any) *ValidationError {
	return &ValidationError{
		Kind:    kind,
		Path:    path,
		Message: fmt.Sprintf(format, args...),
	}
}

// IsValidation reports whether err is caused by invalid output properties
// rather than by an operational failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	var pc *PropertyConflictError
	return errors.As(err, &pc)
}
