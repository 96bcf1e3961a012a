// Package keyatrest encrypts server private keys before they reach the
// database. The per-row secret is derived from the master database
// encryption key and the row's (user ID, activation ID) pair, so a leaked
// dump is useless without the master key and ciphertexts cannot be moved
// between rows.
package keyatrest

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/saalistaja/powerauth-server/internal/crypto"
	"github.com/saalistaja/powerauth-server/internal/model"
)

// ErrInvalidCiphertext is returned when a stored value cannot be decoded
// or fails decryption, typically because of a wrong master key.
var ErrInvalidCiphertext = errors.New("keyatrest: invalid ciphertext")

const rowKeyLength = 16

// Codec encrypts and decrypts stored server private keys. An empty master
// key selects the identity codec at write time; the decoder always honors
// the per-row encryption mode, so rotation stays additive.
type Codec struct {
	masterKey []byte
}

// New creates a codec. masterKey may be empty to disable encryption for
// newly written rows.
func New(masterKey []byte) *Codec {
	return &Codec{masterKey: masterKey}
}

// Encrypt encodes a raw server private key for storage and reports the
// mode it chose.
func (c *Codec) Encrypt(privateKey []byte, userID, activationID string) (string, model.EncryptionMode, error) {
	if len(c.masterKey) == 0 {
		return base64.StdEncoding.EncodeToString(privateKey), model.EncryptionNone, nil
	}
	secret := c.rowKey(userID, activationID)
	iv := make([]byte, 16)
	if _, err := rand.Read(iv); err != nil {
		return "", 0, fmt.Errorf("keyatrest: generate iv: %w", err)
	}
	ciphertext, err := crypto.AESCBCEncrypt(secret, iv, privateKey)
	if err != nil {
		return "", 0, fmt.Errorf("keyatrest: encrypt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(append(iv, ciphertext...)), model.EncryptionAESHMAC, nil
}

// Decrypt decodes a stored server private key according to its row mode.
func (c *Codec) Decrypt(stored string, mode model.EncryptionMode, userID, activationID string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	switch mode {
	case model.EncryptionNone:
		return raw, nil
	case model.EncryptionAESHMAC:
		if len(c.masterKey) == 0 {
			return nil, fmt.Errorf("keyatrest: row is encrypted but no master key is configured")
		}
		if len(raw) < 32 {
			return nil, ErrInvalidCiphertext
		}
		secret := c.rowKey(userID, activationID)
		plain, err := crypto.AESCBCDecrypt(secret, raw[:16], raw[16:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
		}
		return plain, nil
	}
	return nil, fmt.Errorf("keyatrest: unknown encryption mode %d", mode)
}

func (c *Codec) rowKey(userID, activationID string) []byte {
	tag := crypto.HMACSign(c.masterKey, []byte(userID+activationID))
	return tag[:rowKeyLength]
}
