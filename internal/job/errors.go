package job

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDecode matches any error returned for bytes that are not a
	// well-formed descriptor object.
	ErrDecode = errors.New("job: malformed descriptor")
	// ErrValidation matches any error returned for a structurally valid
	// descriptor that is missing required data.
	ErrValidation = errors.New("job: invalid descriptor")
)

// DecodeError reports that raw bytes could not be decoded.
type DecodeError struct {
	Kind Kind // empty when the tag itself could not be read
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("job: cannot decode descriptor: %v", e.Err)
	}
	return fmt.Sprintf("job: cannot decode %s descriptor: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() []error { return []error{ErrDecode, e.Err} }

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Kind   Kind
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("job: %s descriptor is missing required fields: %s", e.Kind, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
