package crypto

import (
	"regexp"
	"testing"
)

func TestComputeFingerprint(t *testing.T) {
	server, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	device, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	fp := ComputeFingerprint(&device.PublicKey, "activation-1", &server.PublicKey)
	if !regexp.MustCompile(`^\d{8}$`).MatchString(fp) {
		t.Fatalf("fingerprint %q is not 8 decimal digits", fp)
	}

	if again := ComputeFingerprint(&device.PublicKey, "activation-1", &server.PublicKey); again != fp {
		t.Fatal("fingerprint must be deterministic")
	}
	if other := ComputeFingerprint(&device.PublicKey, "activation-2", &server.PublicKey); other == fp {
		t.Fatal("fingerprint must depend on the activation ID")
	}
}
