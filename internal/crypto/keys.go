// Package crypto implements the PowerAuth cryptographic primitives: P-256
// key handling, ECDH key agreement, key derivation, activation codes,
// request signatures and status blobs.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
)

// Curve is the only curve the protocol uses.
var Curve = elliptic.P256()

// GenerateKeyPair generates a fresh EC P-256 key pair.
func GenerateKeyPair() (*ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(Curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	return key, nil
}

// EncodePublicKey serializes a public key as an uncompressed point,
// base64-encoded.
func EncodePublicKey(pub *ecdsa.PublicKey) string {
	return base64.StdEncoding.EncodeToString(elliptic.Marshal(Curve, pub.X, pub.Y))
}

// DecodePublicKey parses a base64 uncompressed point and validates it is
// on the curve.
func DecodePublicKey(encoded string) (*ecdsa.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	x, y := elliptic.Unmarshal(Curve, raw)
	if x == nil {
		return nil, fmt.Errorf("decode public key: not a valid P-256 point")
	}
	return &ecdsa.PublicKey{Curve: Curve, X: x, Y: y}, nil
}

// EncodePrivateKey serializes the private scalar as 32 big-endian bytes,
// base64-encoded.
func EncodePrivateKey(priv *ecdsa.PrivateKey) string {
	return base64.StdEncoding.EncodeToString(PrivateKeyBytes(priv))
}

// PrivateKeyBytes returns the raw 32-byte scalar.
func PrivateKeyBytes(priv *ecdsa.PrivateKey) []byte {
	return leftPad(priv.D.Bytes(), 32)
}

// DecodePrivateKey rebuilds a private key from its base64 raw scalar.
func DecodePrivateKey(encoded string) (*ecdsa.PrivateKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	return PrivateKeyFromBytes(raw)
}

// PrivateKeyFromBytes rebuilds a private key from a raw scalar.
func PrivateKeyFromBytes(raw []byte) (*ecdsa.PrivateKey, error) {
	d := new(big.Int).SetBytes(raw)
	if d.Sign() <= 0 || d.Cmp(Curve.Params().N) >= 0 {
		return nil, fmt.Errorf("private key scalar out of range")
	}
	priv := &ecdsa.PrivateKey{D: d}
	priv.Curve = Curve
	priv.X, priv.Y = Curve.ScalarBaseMult(leftPad(raw, 32))
	return priv, nil
}

// SharedSecret computes the ECDH shared secret between a private and a
// public key: the X coordinate of the scalar product, 32 bytes.
func SharedSecret(priv *ecdsa.PrivateKey, pub *ecdsa.PublicKey) ([]byte, error) {
	if !Curve.IsOnCurve(pub.X, pub.Y) {
		return nil, fmt.Errorf("public key not on curve")
	}
	x, _ := Curve.ScalarMult(pub.X, pub.Y, priv.D.Bytes())
	if x.Sign() == 0 {
		return nil, fmt.Errorf("degenerate shared secret")
	}
	return leftPad(x.Bytes(), 32), nil
}

// SignData computes an ECDSA signature over SHA-256 of data, DER-encoded.
func SignData(priv *ecdsa.PrivateKey, data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign data: %w", err)
	}
	return sig, nil
}

// VerifyData verifies a DER-encoded ECDSA signature over SHA-256 of data.
func VerifyData(pub *ecdsa.PublicKey, data, signature []byte) bool {
	digest := sha256.Sum256(data)
	return ecdsa.VerifyASN1(pub, digest[:], signature)
}

func leftPad(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out[size-len(b):], b)
	return out
}
