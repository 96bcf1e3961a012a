package crypto

import (
	"testing"
)

func TestGeneratePUKShape(t *testing.T) {
	for i := 0; i < 20; i++ {
		puk, err := GeneratePUK()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(puk) != 10 {
			t.Fatalf("puk length = %d, want 10 (%s)", len(puk), puk)
		}
		for _, c := range puk {
			if c < '0' || c > '9' {
				t.Fatalf("puk contains non-digit %q", c)
			}
		}
	}
}

func TestHashAndVerifyPUK(t *testing.T) {
	code, err := GenerateRecoveryCode()
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	puk, err := GeneratePUK()
	if err != nil {
		t.Fatalf("generate puk: %v", err)
	}

	hash := HashPUK(puk, code)
	if !VerifyPUK(puk, code, hash) {
		t.Fatal("correct puk must verify")
	}
	if VerifyPUK("0000000000", code, hash) && puk != "0000000000" {
		t.Fatal("wrong puk must not verify")
	}
	if VerifyPUK(puk, code, "zz") {
		t.Fatal("undecodable hash must not verify")
	}

	// Same PUK under a different code hashes differently.
	otherCode, err := GenerateRecoveryCode()
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	if HashPUK(puk, otherCode) == hash {
		t.Fatal("hash must be salted by the recovery code")
	}
}
