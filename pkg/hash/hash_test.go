package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_ProducesVerifiableHash(t *testing.T) {
	t.Parallel()

	h, err := HashPassword("Secret123!")
	require.NoError(t, err)
	require.NotEmpty(t, h)
	assert.NotEqual(t, "Secret123!", h)

	assert.True(t, CheckPassword(h, "Secret123!"))
}

func TestCheckPassword_WrongPassword(t *testing.T) {
	t.Parallel()

	h, err := HashPassword("Secret123!")
	require.NoError(t, err)

	assert.False(t, CheckPassword(h, "secret123!"))
	assert.False(t, CheckPassword(h, ""))
}

func TestCheckPassword_GarbageHash(t *testing.T) {
	t.Parallel()

	assert.False(t, CheckPassword("not-a-bcrypt-hash", "Secret123!"))
}

func TestHashPassword_SaltedHashesDiffer(t *testing.T) {
	t.Parallel()

	h1, err := HashPassword("Secret123!")
	require.NoError(t, err)
	h2, err := HashPassword("Secret123!")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}
