package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"
	"math/big"
)

const fingerprintMod = 100000000

// ComputeFingerprint derives the 8-digit device public key fingerprint
// displayed on both sides during activation: the SHA-256 of
// (device X || activation ID || server X) taken modulo 10^8.
func ComputeFingerprint(devicePub *ecdsa.PublicKey, activationID string, serverPub *ecdsa.PublicKey) string {
	h := sha256.New()
	h.Write(leftPad(devicePub.X.Bytes(), 32))
	h.Write([]byte(activationID))
	h.Write(leftPad(serverPub.X.Bytes(), 32))
	digest := h.Sum(nil)
	v := new(big.Int).Mod(new(big.Int).SetBytes(digest), big.NewInt(fingerprintMod))
	return fmt.Sprintf("%08d", v)
}
