package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("unit-secret"))
	token, expireAt, err := Generate(opts, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.True(t, expireAt.After(time.Now()))

	sub, err := Verify(opts, token)
	require.NoError(t, err)
	require.Equal(t, "alice", sub)
}

func TestVerifyWrongSecret(t *testing.T) {
	token, _, err := Generate(DefaultOptions([]byte("secret-a")), "alice")
	require.NoError(t, err)

	_, err = Verify(DefaultOptions([]byte("secret-b")), token)
	require.Error(t, err)
}

func TestVerifyExpiredToken(t *testing.T) {
	opts := DefaultOptions([]byte("unit-secret"))
	opts.TTL = -time.Minute
	token, _, err := Generate(opts, "alice")
	require.NoError(t, err)

	_, err = Verify(opts, token)
	require.Error(t, err)
}

func TestVerifyGarbage(t *testing.T) {
	_, err := Verify(DefaultOptions([]byte("unit-secret")), "not-a-jwt")
	require.Error(t, err)
}

func TestUnsupportedAlg(t *testing.T) {
	opts := Options{Secret: []byte("s"), Alg: "RS256"}
	_, _, err := Generate(opts, "alice")
	require.Error(t, err)
}

func TestAlgVariants(t *testing.T) {
	for _, alg := range []string{"HS256", "HS384", "HS512", "hs256", ""} {
		opts := Options{Secret: []byte("s"), Alg: alg, TTL: time.Minute}
		token, _, err := Generate(opts, "bob")
		require.NoError(t, err, alg)
		sub, err := Verify(opts, token)
		require.NoError(t, err, alg)
		require.Equal(t, "bob", sub)
	}
}
