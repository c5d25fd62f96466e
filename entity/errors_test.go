package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIs(t *testing.T) {
	t.Run("sentinel matches itself", func(t *testing.T) {
		assert.True(t, errors.Is(ErrCodeTaken, ErrCodeTaken))
	})

	t.Run("sentinel does not match other conflict", func(t *testing.T) {
		assert.False(t, errors.Is(ErrPhoneTaken, ErrCodeTaken))
		assert.False(t, errors.Is(E(KindConflict, "some other conflict"), ErrCodeTaken))
	})

	t.Run("empty message matches any error of the kind", func(t *testing.T) {
		assert.True(t, errors.Is(ErrCodeTaken, E(KindConflict, "")))
		assert.True(t, errors.Is(Ef(KindNotFound, "account %d", 7), E(KindNotFound, "")))
		assert.False(t, errors.Is(ErrCodeTaken, E(KindNotFound, "")))
	})

	t.Run("wrapped sentinel still matches", func(t *testing.T) {
		wrapped := fmt.Errorf("inserting account: %w", ErrCodeTaken)
		assert.True(t, errors.Is(wrapped, ErrCodeTaken))
	})
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConflict, KindOf(ErrEdgeExists))
	assert.Equal(t, KindValidation, KindOf(WrapE(KindValidation, "bad input", errors.New("field"))))

	// Untyped errors are treated as store trouble.
	assert.Equal(t, KindStoreUnavailable, KindOf(errors.New("connection reset")))
}

func TestIsKind(t *testing.T) {
	assert.True(t, IsKind(ErrAdminExists, KindConflict))
	assert.False(t, IsKind(ErrAdminExists, KindNotFound))
	assert.False(t, IsKind(nil, KindConflict))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := WrapE(KindStoreUnavailable, "find account", cause)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "find account")
	assert.Contains(t, err.Error(), "socket closed")
}
