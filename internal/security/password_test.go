package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	t.Run("Should verify the password it hashed", func(t *testing.T) {
		hash, err := hasher.Hash("Correct1pass")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$2a$"))

		ok, err := hasher.Verify("Correct1pass", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Should report a mismatch without an error", func(t *testing.T) {
		hash, err := hasher.Hash("Correct1pass")
		require.NoError(t, err)

		ok, err := hasher.Verify("wrong", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Should salt every hash", func(t *testing.T) {
		a, err := hasher.Hash("Same1pass")
		require.NoError(t, err)
		b, err := hasher.Hash("Same1pass")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("Should return an error for a malformed hash", func(t *testing.T) {
		ok, err := hasher.Verify("x", "not-a-hash")
		assert.Error(t, err)
		assert.False(t, ok)
	})

	t.Run("Should fall back to the default cost", func(t *testing.T) {
		assert.Equal(t, DefaultCost, NewPasswordHasher(99).Cost())
		assert.Equal(t, bcrypt.MinCost, hasher.Cost())
	})
}
