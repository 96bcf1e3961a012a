package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyPairEncodeDecodeRoundTrip(t *testing.T) {
	key, err := GenerateKeyPair()
	require.NoError(t, err)

	pub, err := DecodePublicKey(EncodePublicKey(&key.PublicKey))
	require.NoError(t, err)
	require.Zero(t, pub.X.Cmp(key.X))
	require.Zero(t, pub.Y.Cmp(key.Y))

	priv, err := DecodePrivateKey(EncodePrivateKey(key))
	require.NoError(t, err)
	require.Zero(t, priv.D.Cmp(key.D))
}

func TestDecodePublicKeyRejectsGarbage(t *testing.T) {
	_, err := DecodePublicKey("not base64 at all!!!")
	require.Error(t, err)

	// Valid base64 but not a curve point.
	_, err = DecodePublicKey("AAAA")
	require.Error(t, err)
}

func TestSharedSecretAgreement(t *testing.T) {
	server, err := GenerateKeyPair()
	require.NoError(t, err)
	device, err := GenerateKeyPair()
	require.NoError(t, err)

	s1, err := SharedSecret(server, &device.PublicKey)
	require.NoError(t, err)
	s2, err := SharedSecret(device, &server.PublicKey)
	require.NoError(t, err)

	require.Equal(t, s1, s2)
	require.Len(t, s1, 32)
}

func TestSignVerifyData(t *testing.T) {
	key, err := GenerateKeyPair()
	require.NoError(t, err)

	sig, err := SignData(key, []byte("payload"))
	require.NoError(t, err)
	require.True(t, VerifyData(&key.PublicKey, []byte("payload"), sig))
	require.False(t, VerifyData(&key.PublicKey, []byte("tampered"), sig))

	other, err := GenerateKeyPair()
	require.NoError(t, err)
	require.False(t, VerifyData(&other.PublicKey, []byte("payload"), sig))
}
