package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Domain-separation labels for keys derived from the activation master
// secret. Changing any label is a protocol break.
const (
	infoTransport          = "powerauth/transport"
	infoSignPossession     = "powerauth/signature-possession"
	infoSignKnowledge      = "powerauth/signature-knowledge"
	infoSignBiometry       = "powerauth/signature-biometry"
	infoToken              = "powerauth/token"
	infoVault              = "powerauth/vault"
	infoSignatureComponent = "powerauth/signature-component/%d"
)

// DeriveKey derives keyLen bytes from a secret using HKDF-SHA256 with the
// given salt and context info.
func DeriveKey(secret, salt []byte, info string, keyLen int) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, []byte(info))
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key %q: %w", info, err)
	}
	return key, nil
}

// ActivationKeys is the full set of keys derived from one activation's
// master secret.
type ActivationKeys struct {
	Transport           []byte // 16 bytes, AES-128 for status blobs
	SignaturePossession []byte // 32 bytes
	SignatureKnowledge  []byte // 32 bytes
	SignatureBiometry   []byte // 32 bytes
	Token               []byte // 32 bytes
	Vault               []byte // 16 bytes, AES-128 vault encryption key
}

// DeriveActivationKeys expands the ECDH master secret into the per-purpose
// key set.
func DeriveActivationKeys(masterSecret []byte) (*ActivationKeys, error) {
	keys := &ActivationKeys{}
	for _, d := range []struct {
		dst  *[]byte
		info string
		size int
	}{
		{&keys.Transport, infoTransport, 16},
		{&keys.SignaturePossession, infoSignPossession, 32},
		{&keys.SignatureKnowledge, infoSignKnowledge, 32},
		{&keys.SignatureBiometry, infoSignBiometry, 32},
		{&keys.Token, infoToken, 32},
		{&keys.Vault, infoVault, 16},
	} {
		key, err := DeriveKey(masterSecret, nil, d.info, d.size)
		if err != nil {
			return nil, err
		}
		*d.dst = key
	}
	return keys, nil
}

// HMACSign computes an HMAC-SHA256 tag.
func HMACSign(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// HMACVerify verifies an HMAC-SHA256 tag in constant time.
func HMACVerify(key, data, tag []byte) bool {
	return hmac.Equal(tag, HMACSign(key, data))
}

// GenerateRandomBytes returns n cryptographically secure random bytes.
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
