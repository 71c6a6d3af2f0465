package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvariant(t *testing.T) {
	require.NoError(t, Invariant(nil))

	err := errors.New("index out of range")
	if debugAssertions {
		assert.PanicsWithError(t, err.Error(), func() { _ = Invariant(err) })
		return
	}
	assert.Same(t, err, Invariant(err))
}
