package crypto

import (
	"crypto/ecdsa"
	"fmt"
)

// ECIES labels. The encryption, MAC and IV keys are all derived from the
// ephemeral ECDH shared secret.
const (
	infoECIESEnc = "powerauth/ecies-enc"
	infoECIESMac = "powerauth/ecies-mac"
	infoECIESIV  = "powerauth/ecies-iv"
)

// ECIESEnvelope is the wire form of an ECIES-encrypted payload.
type ECIESEnvelope struct {
	EphemeralPublicKey []byte
	EncryptedData      []byte
	MAC                []byte
}

// ECIESEncrypt encrypts plaintext to the recipient public key. sharedInfo
// binds the envelope to a caller-chosen context (the application secret
// during activation) and is mixed into the MAC.
func ECIESEncrypt(recipient *ecdsa.PublicKey, plaintext, sharedInfo []byte) (*ECIESEnvelope, error) {
	env, _, err := ECIESEncryptSession(recipient, plaintext, sharedInfo)
	return env, err
}

// ECIESEncryptSession is ECIESEncrypt but additionally returns the
// session so the sender can open the encrypted response.
func ECIESEncryptSession(recipient *ecdsa.PublicKey, plaintext, sharedInfo []byte) (*ECIESEnvelope, *ECIESSession, error) {
	eph, err := GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}
	shared, err := SharedSecret(eph, recipient)
	if err != nil {
		return nil, nil, err
	}
	kEnc, kMac, iv, err := eciesKeys(shared)
	if err != nil {
		return nil, nil, err
	}
	ciphertext, err := AESCBCEncrypt(kEnc, iv, plaintext)
	if err != nil {
		return nil, nil, err
	}
	mac := HMACSign(kMac, append(append([]byte{}, ciphertext...), sharedInfo...))
	env := &ECIESEnvelope{
		EphemeralPublicKey: []byte(EncodePublicKey(&eph.PublicKey)),
		EncryptedData:      ciphertext,
		MAC:                mac,
	}
	return env, &ECIESSession{kEnc: kEnc, kMac: kMac, iv: iv}, nil
}

// ECIESSession holds the derived envelope keys so a response can be
// encrypted under the same shared secret the request arrived with.
type ECIESSession struct {
	kEnc []byte
	kMac []byte
	iv   []byte
}

// Seal encrypts a response payload under the session keys. The returned
// MAC covers ciphertext and sharedInfo.
func (s *ECIESSession) Seal(plaintext, sharedInfo []byte) (ciphertext, mac []byte, err error) {
	ciphertext, err = AESCBCEncrypt(s.kEnc, s.iv, plaintext)
	if err != nil {
		return nil, nil, err
	}
	mac = HMACSign(s.kMac, append(append([]byte{}, ciphertext...), sharedInfo...))
	return ciphertext, mac, nil
}

// Open decrypts a response payload under the session keys, verifying the
// MAC first. The client-side counterpart of Seal.
func (s *ECIESSession) Open(ciphertext, mac, sharedInfo []byte) ([]byte, error) {
	if !HMACVerify(s.kMac, append(append([]byte{}, ciphertext...), sharedInfo...), mac) {
		return nil, fmt.Errorf("ecies mac mismatch")
	}
	return AESCBCDecrypt(s.kEnc, s.iv, ciphertext)
}

// ECIESDecrypt opens an envelope with the recipient private key. The MAC
// is checked before any decryption output is returned.
func ECIESDecrypt(recipient *ecdsa.PrivateKey, env *ECIESEnvelope, sharedInfo []byte) ([]byte, error) {
	plain, _, err := ECIESDecryptSession(recipient, env, sharedInfo)
	return plain, err
}

// ECIESDecryptSession is ECIESDecrypt but additionally returns the
// session for encrypting a response.
func ECIESDecryptSession(recipient *ecdsa.PrivateKey, env *ECIESEnvelope, sharedInfo []byte) ([]byte, *ECIESSession, error) {
	ephPub, err := DecodePublicKey(string(env.EphemeralPublicKey))
	if err != nil {
		return nil, nil, fmt.Errorf("ecies ephemeral key: %w", err)
	}
	shared, err := SharedSecret(recipient, ephPub)
	if err != nil {
		return nil, nil, err
	}
	kEnc, kMac, iv, err := eciesKeys(shared)
	if err != nil {
		return nil, nil, err
	}
	if !HMACVerify(kMac, append(append([]byte{}, env.EncryptedData...), sharedInfo...), env.MAC) {
		return nil, nil, fmt.Errorf("ecies mac mismatch")
	}
	plain, err := AESCBCDecrypt(kEnc, iv, env.EncryptedData)
	if err != nil {
		return nil, nil, fmt.Errorf("ecies decrypt: %w", err)
	}
	return plain, &ECIESSession{kEnc: kEnc, kMac: kMac, iv: iv}, nil
}

func eciesKeys(shared []byte) (kEnc, kMac, iv []byte, err error) {
	if kEnc, err = DeriveKey(shared, nil, infoECIESEnc, 16); err != nil {
		return
	}
	if kMac, err = DeriveKey(shared, nil, infoECIESMac, 32); err != nil {
		return
	}
	iv, err = DeriveKey(shared, nil, infoECIESIV, 16)
	return
}
