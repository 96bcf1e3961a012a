package crypto

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"strings"
)

// SignatureComponentLength is the number of decimal digits per factor
// component of an online signature.
const SignatureComponentLength = 8

const signatureDecimalMod = 100000000

// CombineFactorKeys aggregates the per-factor signature keys of a
// multi-factor signature. Keys must be equal length; order does not matter.
func CombineFactorKeys(keys [][]byte) ([]byte, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("no factor keys")
	}
	combined := make([]byte, len(keys[0]))
	copy(combined, keys[0])
	for _, k := range keys[1:] {
		if len(k) != len(combined) {
			return nil, fmt.Errorf("factor key length mismatch")
		}
		for i := range combined {
			combined[i] ^= k[i]
		}
	}
	return combined, nil
}

// ComputeSignature computes the online request signature: one 8-digit
// decimal component per factor, joined by dashes. Each component is the
// truncated HMAC-SHA256 of (data || counter || application secret) under a
// component key derived from the combined factor key.
func ComputeSignature(combinedKey []byte, components int, data []byte, counter uint64, appSecret []byte) (string, error) {
	if components < 1 || components > 3 {
		return "", fmt.Errorf("invalid component count %d", components)
	}
	ctr := CounterBytes(counter)
	msg := make([]byte, 0, len(data)+len(ctr)+len(appSecret))
	msg = append(msg, data...)
	msg = append(msg, ctr...)
	msg = append(msg, appSecret...)

	parts := make([]string, components)
	for i := 0; i < components; i++ {
		key, err := DeriveKey(combinedKey, ctr, fmt.Sprintf(infoSignatureComponent, i+1), 32)
		if err != nil {
			return "", err
		}
		tag := HMACSign(key, msg)
		v := binary.BigEndian.Uint32(tag[:4]) % signatureDecimalMod
		parts[i] = fmt.Sprintf("%08d", v)
	}
	return strings.Join(parts, "-"), nil
}

// SignatureEqual compares two signature strings in constant time.
func SignatureEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// CounterBytes renders a counter as 8 big-endian bytes.
func CounterBytes(counter uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, counter)
	return b
}
