package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestECIESRoundTrip(t *testing.T) {
	recipient, err := GenerateKeyPair()
	require.NoError(t, err)

	plaintext := []byte("device public key bytes")
	sharedInfo := []byte("application secret")

	env, err := ECIESEncrypt(&recipient.PublicKey, plaintext, sharedInfo)
	require.NoError(t, err)

	decrypted, err := ECIESDecrypt(recipient, env, sharedInfo)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestECIESRejectsTamperedMAC(t *testing.T) {
	recipient, err := GenerateKeyPair()
	require.NoError(t, err)

	env, err := ECIESEncrypt(&recipient.PublicKey, []byte("payload"), []byte("info"))
	require.NoError(t, err)

	env.MAC[0] ^= 0xFF
	_, err = ECIESDecrypt(recipient, env, []byte("info"))
	require.Error(t, err)
}

func TestECIESRejectsWrongSharedInfo(t *testing.T) {
	recipient, err := GenerateKeyPair()
	require.NoError(t, err)

	env, err := ECIESEncrypt(&recipient.PublicKey, []byte("payload"), []byte("info"))
	require.NoError(t, err)

	_, err = ECIESDecrypt(recipient, env, []byte("other"))
	require.Error(t, err)
}

func TestECIESSessionSealOpen(t *testing.T) {
	recipient, err := GenerateKeyPair()
	require.NoError(t, err)

	env, clientSession, err := ECIESEncryptSession(&recipient.PublicKey, []byte("request"), []byte("info"))
	require.NoError(t, err)

	plain, serverSession, err := ECIESDecryptSession(recipient, env, []byte("info"))
	require.NoError(t, err)
	require.Equal(t, []byte("request"), plain)

	ciphertext, mac, err := serverSession.Seal([]byte("response"), []byte("info"))
	require.NoError(t, err)

	opened, err := clientSession.Open(ciphertext, mac, []byte("info"))
	require.NoError(t, err)
	require.Equal(t, []byte("response"), opened)

	_, err = clientSession.Open(ciphertext, mac, []byte("wrong"))
	require.Error(t, err)
}
