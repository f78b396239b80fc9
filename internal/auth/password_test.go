package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cheapParams = &Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func TestCreateAndCompare(t *testing.T) {
	hash, err := CreateHash("hunter2", cheapParams)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := ComparePasswordAndHash("hunter2", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ComparePasswordAndHash("hunter3", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := CreateHash("hunter2", cheapParams)
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salts differ")
}

func TestDecodeHashErrors(t *testing.T) {
	_, err := ComparePasswordAndHash("x", "not-a-hash")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = ComparePasswordAndHash("x", "$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$a2V5")
	assert.ErrorIs(t, err, ErrIncompatibleVersion)

	_, err = ComparePasswordAndHash("x", "$argon2id$v=19$m=1024,t=1,p=1$!!$a2V5")
	assert.ErrorIs(t, err, ErrInvalidHash)

	_, err = ComparePasswordAndHash("x", "$bcrypt$v=19$m=1024,t=1,p=1$c2FsdA$a2V5")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestDecodeHashRoundTripsParams(t *testing.T) {
	hash, err := CreateHash("pw", cheapParams)
	require.NoError(t, err)
	p, salt, key, err := DecodeHash(hash)
	require.NoError(t, err)
	assert.Equal(t, *cheapParams, *p)
	assert.Len(t, salt, 8)
	assert.Len(t, key, 16)
}

func TestDefaultParallelismIsPositive(t *testing.T) {
	assert.GreaterOrEqual(t, DefaultParams.Parallelism, uint8(1))
}
