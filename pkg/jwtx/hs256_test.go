package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestHS256RoundTrip(t *testing.T) {
	t.Parallel()

	h, err := NewHS256(testSecret, "aegis-test")
	require.NoError(t, err)

	claims := NewClaims("user-1", "tenant-1", []string{"admin"}, []string{"mfa:manage"}, "aegis-test", time.Minute, time.Now())
	token, err := h.Sign(claims)
	require.NoError(t, err)

	got, err := h.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, "tenant-1", got.TenantID)
	require.Equal(t, []string{"admin"}, got.Roles)
	require.NoError(t, got.ValidateExpiry())
}

func TestHS256RejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := NewHS256([]byte("short"), "aegis-test")
	require.Error(t, err)
}

func TestHS256RejectsTamperedToken(t *testing.T) {
	t.Parallel()

	h, err := NewHS256(testSecret, "aegis-test")
	require.NoError(t, err)

	other, err := NewHS256([]byte("ffffffffffffffffffffffffffffffff"), "aegis-test")
	require.NoError(t, err)

	claims := NewClaims("user-1", "tenant-1", nil, nil, "aegis-test", time.Minute, time.Now())
	token, err := other.Sign(claims)
	require.NoError(t, err)

	_, err = h.Verify(token)
	require.ErrorIs(t, err, ErrInvalidSig)
}

func TestHS256RejectsExpired(t *testing.T) {
	t.Parallel()

	h, err := NewHS256(testSecret, "aegis-test")
	require.NoError(t, err)

	claims := NewClaims("user-1", "tenant-1", nil, nil, "aegis-test", time.Minute, time.Now().Add(-time.Hour))
	token, err := h.Sign(claims)
	require.NoError(t, err)

	_, err = h.Verify(token)
	require.ErrorIs(t, err, ErrExpired)
}

func TestHS256RejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	minter, err := NewHS256(testSecret, "")
	require.NoError(t, err)
	verifier, err := NewHS256(testSecret, "aegis-prod")
	require.NoError(t, err)

	claims := NewClaims("user-1", "tenant-1", nil, nil, "someone-else", time.Minute, time.Now())
	token, err := minter.Sign(claims)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, ErrIssuer)
}
