package crypto

import (
	"bytes"
	"testing"
)

func TestStatusBlobRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef")
	blob := StatusBlob{
		Status:            3,
		CurrentVersion:    3,
		UpgradeVersion:    3,
		FailedAttempts:    1,
		MaxFailedAttempts: 5,
		CounterLow:        42,
	}
	encrypted, err := EncodeStatusBlob(blob, key, 42)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(encrypted) != StatusBlobLength {
		t.Fatalf("blob length = %d, want %d", len(encrypted), StatusBlobLength)
	}
	decoded, err := DecodeStatusBlob(encrypted, key, 42)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != blob {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, blob)
	}
}

func TestStatusBlobCounterBindsIV(t *testing.T) {
	key := []byte("0123456789abcdef")
	blob := StatusBlob{Status: 3, CurrentVersion: 3, UpgradeVersion: 3}
	encrypted, err := EncodeStatusBlob(blob, key, 1)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeStatusBlob(encrypted, key, 2)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded == blob {
		t.Fatal("decoding under the wrong counter must not reproduce the fields")
	}
}

func TestRandomStatusBlobsDiffer(t *testing.T) {
	b1, err := RandomStatusBlob()
	if err != nil {
		t.Fatalf("random blob: %v", err)
	}
	b2, err := RandomStatusBlob()
	if err != nil {
		t.Fatalf("random blob: %v", err)
	}
	if len(b1) != StatusBlobLength || len(b2) != StatusBlobLength {
		t.Fatal("blobs must be 16 bytes")
	}
	if bytes.Equal(b1, b2) {
		t.Fatal("two random blobs matched; RNG is broken")
	}
}

func TestDecodeStatusBlobRejectsWrongLength(t *testing.T) {
	if _, err := DecodeStatusBlob(make([]byte, 15), []byte("0123456789abcdef"), 0); err == nil {
		t.Fatal("expected length error")
	}
}
