package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Matching(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapError("mentorship", "Assign", ErrNotFound, "unknown practitioner", cause)

	assert.Equal(t, "mentorship.Assign: unknown practitioner: disk full", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsAlreadyExists(err))
}

func TestIsSoftFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"declined rule", NewDomainError("mentorship", "Promote", ErrStateTransition, "not qualified"), true},
		{"forbidden", NewDomainError("mentorship", "Assign", ErrForbidden, "rank too low"), true},
		{"validation", NewDomainError("ladder", "New", ErrEmptyValue, "empty rank name"), false},
		{"has cause", WrapError("mentorship", "Assign", ErrInvalidState, "store", errors.New("io")), false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSoftFailure(tt.err))
		})
	}
}

func TestIsValidation(t *testing.T) {
	assert.True(t, IsValidation(NewDomainError("assembly", "Exchange", ErrValueOutOfRange, "bad index")))
	assert.False(t, IsValidation(NewDomainError("assembly", "Exchange", ErrNotFound, "missing")))
}
