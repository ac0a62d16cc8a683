package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	keyA = "0123456789abcdef0123456789abcdef"
	keyB = "fedcba9876543210fedcba9876543210"
)

func TestSealOpenRoundTrip(t *testing.T) {
	box := New(keyA)
	sealed, err := box.Seal("binance:main", "s3cret")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "s3cret")

	plain, err := box.Open("binance:main", sealed)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", plain)
}

func TestOpenRejectsWrongScope(t *testing.T) {
	box := New(keyA)
	sealed, err := box.Seal("binance:main", "s3cret")
	require.NoError(t, err)

	_, err = box.Open("binance:other", sealed)
	assert.ErrorIs(t, err, ErrUndecoded)
}

func TestOpenWithPreviousKeyAfterRotation(t *testing.T) {
	old := New(keyA)
	sealed, err := old.Seal("alpaca:1", "pw")
	require.NoError(t, err)

	rotated := New(keyB, keyA)
	plain, err := rotated.Open("alpaca:1", sealed)
	require.NoError(t, err)
	assert.Equal(t, "pw", plain)

	resealed, changed, err := rotated.Reseal("alpaca:1", sealed)
	require.NoError(t, err)
	assert.True(t, changed)

	_, err = old.Open("alpaca:1", resealed)
	assert.ErrorIs(t, err, ErrUndecoded)
	plain, err = New(keyB).Open("alpaca:1", resealed)
	require.NoError(t, err)
	assert.Equal(t, "pw", plain)
}

func TestPlaintextPassthrough(t *testing.T) {
	plain, err := New().Open("x", "legacy-secret")
	require.NoError(t, err)
	assert.Equal(t, "legacy-secret", plain)

	_, err = New().Seal("x", "v")
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestShortKeyIgnored(t *testing.T) {
	assert.False(t, New("short").Enabled())
	assert.True(t, New(keyA).Enabled())
}
