package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pukDigits     = 10
	pukHashIters  = 10000
	pukHashLength = 32
)

// GenerateRecoveryCode generates a recovery code. Same alphabet and
// checksum as activation codes.
func GenerateRecoveryCode() (string, error) {
	return GenerateActivationCode()
}

// ValidateRecoveryCode checks shape and checksum of a recovery code.
func ValidateRecoveryCode(code string) bool {
	return ValidateActivationCode(code)
}

// GeneratePUK generates a 10-digit recovery PUK.
func GeneratePUK() (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(pukDigits), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate puk: %w", err)
	}
	return fmt.Sprintf("%0*d", pukDigits, n), nil
}

// HashPUK derives the stored hash of a PUK, salted by its recovery code so
// equal PUKs under different codes hash differently.
func HashPUK(puk, recoveryCode string) string {
	h := pbkdf2.Key([]byte(puk), []byte(recoveryCode), pukHashIters, pukHashLength, sha256.New)
	return hex.EncodeToString(h)
}

// VerifyPUK checks a candidate PUK against a stored hash in constant time.
func VerifyPUK(puk, recoveryCode, storedHex string) bool {
	stored, err := hex.DecodeString(storedHex)
	if err != nil {
		return false
	}
	computed := pbkdf2.Key([]byte(puk), []byte(recoveryCode), pukHashIters, pukHashLength, sha256.New)
	return subtle.ConstantTimeCompare(computed, stored) == 1
}
