package shared

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is; every DomainError carries one.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Malformed input: bad scenario files, empty names, ranks off the ladder.
	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")

	// Declined rules: the request was well-formed but the current state
	// does not allow it.
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrForbidden        = errors.New("forbidden")
)

// DomainError ties an error kind to the package and operation that raised it.
type DomainError struct {
	Domain  string // "mentorship", "ladder", "assembly"
	Op      string // "Promote", "Assign", "Exchange"
	Kind    error
	Message string
	Err     error // cause, when the failure came from below
}

func (e *DomainError) Error() string {
	s := fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *DomainError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError is NewDomainError with a cause.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsAlreadyExists(err error) bool { return errors.Is(err, ErrAlreadyExists) }

// IsValidation covers every malformed-input kind.
func IsValidation(err error) bool {
	for _, kind := range []error{ErrValidation, ErrInvalidInput, ErrEmptyValue, ErrValueOutOfRange} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// IsSoftFailure reports a declined rule: a DomainError with no cause that is
// not a validation failure. State is left untouched and the run continues.
func IsSoftFailure(err error) bool {
	var de *DomainError
	return errors.As(err, &de) && de.Err == nil && !IsValidation(err)
}
