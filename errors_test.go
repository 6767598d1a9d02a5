package grafo_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/grafo"
	"github.com/syssam/grafo/store"
)

func TestTypeMismatchError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := grafo.NewTypeMismatchError("title", "string", "int")
		assert.Equal(t, `grafo: attribute "title" expects string, got int`, err.Error())
	})

	t.Run("IsTypeMismatch", func(t *testing.T) {
		err := grafo.NewTypeMismatchError("season", "int", "bool")
		assert.True(t, grafo.IsTypeMismatch(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, grafo.IsTypeMismatch(wrapped))

		// Non-matching error
		assert.False(t, grafo.IsTypeMismatch(errors.New("other error")))
		assert.False(t, grafo.IsTypeMismatch(nil))
	})
}

func TestDetachedError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := grafo.NewDetachedError("Series", "")
		assert.Equal(t, "grafo: Series is detached", err.Error())

		err = grafo.NewDetachedError("Series", "n7")
		assert.Equal(t, "grafo: Series (handle=n7) is detached", err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := grafo.NewDetachedError("Episode", "n3")
		assert.True(t, errors.Is(err, grafo.ErrDetached))
	})

	t.Run("IsDetached", func(t *testing.T) {
		err := grafo.NewDetachedError("Episode", "n3")
		assert.True(t, grafo.IsDetached(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, grafo.IsDetached(wrapped))

		// Sentinel error
		assert.True(t, grafo.IsDetached(grafo.ErrDetached))

		// Non-matching error
		assert.False(t, grafo.IsDetached(errors.New("other error")))
		assert.False(t, grafo.IsDetached(nil))
	})

	t.Run("Handle", func(t *testing.T) {
		err := grafo.NewDetachedError("Episode", "n3")
		assert.Equal(t, store.Handle("n3"), err.Handle())
	})
}

func TestCommitError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := grafo.NewCommitError("Series", "create", store.ErrUnavailable)
		assert.Equal(t, "grafo: commit: create Series: store: backend unavailable", err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		err := grafo.NewCommitError("Series", "link", store.ErrTimeout)
		assert.True(t, errors.Is(err, grafo.ErrStoreTimeout))

		ref := store.NewReferentialError("n1", 2)
		err = grafo.NewCommitError("Episode", "delete", ref)
		assert.True(t, grafo.IsReferential(err))
	})

	t.Run("IsCommitError", func(t *testing.T) {
		err := grafo.NewCommitError("Series", "update", errors.New("boom"))
		assert.True(t, grafo.IsCommitError(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, grafo.IsCommitError(wrapped))

		// Non-matching error
		assert.False(t, grafo.IsCommitError(errors.New("other error")))
		assert.False(t, grafo.IsCommitError(nil))
	})
}

func TestNotFoundAliases(t *testing.T) {
	err := store.NewNotFoundError("node", "n9")
	assert.True(t, grafo.IsNotFound(err))
	assert.True(t, errors.Is(err, grafo.ErrNotFound))
}
