package crypto

import (
	"crypto/rand"
	"fmt"
)

// StatusBlobLength is the size of the encrypted activation status blob.
const StatusBlobLength = 16

// StatusBlob is the plaintext content of an activation status blob. The
// remaining ten bytes of the block are random padding.
type StatusBlob struct {
	Status            byte
	CurrentVersion    byte
	UpgradeVersion    byte
	FailedAttempts    byte
	MaxFailedAttempts byte
	CounterLow        byte
}

// EncodeStatusBlob encrypts a status blob under the activation transport
// key. The IV is derived from the activation counter so the device can
// reproduce it without extra round trips.
func EncodeStatusBlob(b StatusBlob, transportKey []byte, counter uint64) ([]byte, error) {
	plain := make([]byte, StatusBlobLength)
	plain[0] = b.Status
	plain[1] = b.CurrentVersion
	plain[2] = b.UpgradeVersion
	plain[3] = b.FailedAttempts
	plain[4] = b.MaxFailedAttempts
	plain[5] = b.CounterLow
	if _, err := rand.Read(plain[6:]); err != nil {
		return nil, fmt.Errorf("status blob padding: %w", err)
	}
	iv, err := statusBlobIV(transportKey, counter)
	if err != nil {
		return nil, err
	}
	return aesCBCRaw(transportKey, iv, plain, true)
}

// DecodeStatusBlob decrypts a status blob under the activation transport
// key and counter.
func DecodeStatusBlob(blob, transportKey []byte, counter uint64) (StatusBlob, error) {
	if len(blob) != StatusBlobLength {
		return StatusBlob{}, fmt.Errorf("status blob length %d, want %d", len(blob), StatusBlobLength)
	}
	iv, err := statusBlobIV(transportKey, counter)
	if err != nil {
		return StatusBlob{}, err
	}
	plain, err := aesCBCRaw(transportKey, iv, blob, false)
	if err != nil {
		return StatusBlob{}, err
	}
	return StatusBlob{
		Status:            plain[0],
		CurrentVersion:    plain[1],
		UpgradeVersion:    plain[2],
		FailedAttempts:    plain[3],
		MaxFailedAttempts: plain[4],
		CounterLow:        plain[5],
	}, nil
}

// RandomStatusBlob returns an unkeyed random blob, served for activations
// that have no transport key yet and for unknown activation IDs.
func RandomStatusBlob() ([]byte, error) {
	b := make([]byte, StatusBlobLength)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("random status blob: %w", err)
	}
	return b, nil
}

func statusBlobIV(transportKey []byte, counter uint64) ([]byte, error) {
	tag := HMACSign(transportKey, append([]byte("status-blob-iv"), CounterBytes(counter)...))
	return tag[:16], nil
}
