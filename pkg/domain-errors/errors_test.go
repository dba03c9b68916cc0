package domainerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeNotFound, "audit not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("matches wrapped code", func(t *testing.T) {
		inner := New(CodeInvariantViolation, "title cannot be blank")
		err := Wrap(inner, CodeValidation, "invalid control")
		assert.True(t, HasCode(err, CodeValidation))
		assert.True(t, HasCode(err, CodeInvariantViolation))
		assert.Equal(t, CodeValidation, CodeOf(err))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})

	t.Run("wrap keeps cause for errors.Is", func(t *testing.T) {
		cause := errors.New("db down")
		err := Wrap(cause, CodeInternal, "failed to load audit")
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "failed to load audit: db down", err.Error())
		assert.Equal(t, "failed to load audit", MessageOf(err))
	})

	t.Run("wrap of nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
	})
}
