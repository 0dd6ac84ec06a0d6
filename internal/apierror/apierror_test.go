package apierror

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAPIErrorMessage(t *testing.T) {
	err := NewAPIError(ErrNotFound, "unknown parser: kasikorn", nil)
	assert.Equal(t, "NOT_FOUND: unknown parser: kasikorn", err.Error())
}

func TestCodeOf(t *testing.T) {
	err := NewAPIError(ErrValidation, "input is not a PDF document", nil)
	assert.Equal(t, ErrValidation, CodeOf(err))
	assert.Equal(t, ErrInternal, CodeOf(errors.New("plain")))
}

func TestCodeOfWrapped(t *testing.T) {
	err := NewAPIError(ErrDependencyUnavailable, "rate lookup failed", nil)
	wrapped := errors.Wrap(err, "scoring candidate cand_1")
	assert.Equal(t, ErrDependencyUnavailable, CodeOf(wrapped))
	assert.True(t, Is(wrapped, ErrDependencyUnavailable))
	assert.False(t, Is(wrapped, ErrNotFound))
}
