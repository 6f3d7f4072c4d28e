package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	t.Run("plain errors default to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})

	t.Run("outermost code wins", func(t *testing.T) {
		inner := New(CodeNotFound, "missing")
		outer := Wrap(inner, CodeConflict, "outer")
		assert.Equal(t, CodeConflict, CodeOf(outer))
		assert.True(t, HasCode(outer, CodeConflict))
	})

	t.Run("code survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("context: %w", New(CodeValidation, "bad"))
		assert.True(t, HasCode(err, CodeValidation))
	})
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, CodeInternal, "nothing"))

	cause := errors.New("dial tcp: refused")
	err := Wrap(cause, CodeUnavailable, "registry unavailable")
	assert.True(t, Is(err, cause))
	assert.Equal(t, "registry unavailable: dial tcp: refused", err.Error())
	assert.Equal(t, "registry unavailable", Message(err))
}
