package cryptox_test

import (
	"testing"

	"github.com/aussiebroadwan/dashcore/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	s, err := cryptox.NewSealer([]byte("storage-secret"), "session")
	require.NoError(t, err)

	plain := []byte(`{"token":"tok-1"}`)

	sealed1, err := s.Seal(plain)
	require.NoError(t, err)
	sealed2, err := s.Seal(plain)
	require.NoError(t, err)
	require.NotEqual(t, sealed1, sealed2, "nonce is random per call")
	require.NotContains(t, string(sealed1), "tok-1")

	for _, sealed := range [][]byte{sealed1, sealed2} {
		got, err := s.Open(sealed)
		require.NoError(t, err)
		require.Equal(t, plain, got)
	}
}

func TestOpenRejectsForeignData(t *testing.T) {
	s, err := cryptox.NewSealer([]byte("storage-secret"), "session")
	require.NoError(t, err)

	other, err := cryptox.NewSealer([]byte("another-secret"), "session")
	require.NoError(t, err)
	relabeled, err := cryptox.NewSealer([]byte("storage-secret"), "other")
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("payload"))
	require.NoError(t, err)

	_, err = other.Open(sealed)
	require.Error(t, err)
	_, err = relabeled.Open(sealed)
	require.Error(t, err)

	tampered := append([]byte(nil), sealed...)
	tampered[len(tampered)-1] ^= 0xff
	_, err = s.Open(tampered)
	require.Error(t, err)

	_, err = s.Open([]byte("short"))
	require.ErrorIs(t, err, cryptox.ErrCiphertextTooShort)
}

func TestNewSealerRequiresSecret(t *testing.T) {
	_, err := cryptox.NewSealer(nil, "session")
	require.ErrorIs(t, err, cryptox.ErrEmptySecret)
}

func TestFingerprintToken(t *testing.T) {
	a := cryptox.FingerprintToken("tok-1")
	require.Len(t, a, 12)
	require.Equal(t, a, cryptox.FingerprintToken("tok-1"))
	require.NotEqual(t, a, cryptox.FingerprintToken("tok-2"))
	require.Empty(t, cryptox.FingerprintToken(""))
}
