package crypto

import (
	"strings"
	"testing"
)

func TestCRC16KnownVector(t *testing.T) {
	// CRC-16/ARC check value for "123456789".
	if got := crc16([]byte("123456789")); got != 0xBB3D {
		t.Fatalf("crc16 = %#x, want 0xBB3D", got)
	}
}

func TestGenerateActivationCodeShape(t *testing.T) {
	code, err := GenerateActivationCode()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	groups := strings.Split(code, "-")
	if len(groups) != 4 {
		t.Fatalf("expected 4 groups, got %d (%s)", len(groups), code)
	}
	for _, g := range groups {
		if len(g) != 5 {
			t.Fatalf("expected 5-char groups, got %q", g)
		}
		for i := 0; i < len(g); i++ {
			if !strings.ContainsRune(codeAlphabet, rune(g[i])) {
				t.Fatalf("character %q outside alphabet", g[i])
			}
		}
	}
}

func TestGenerateActivationCodeValidates(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateActivationCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !ValidateActivationCode(code) {
			t.Fatalf("freshly generated code failed validation: %s", code)
		}
	}
}

func TestValidateActivationCodeRejectsCorruption(t *testing.T) {
	code, err := GenerateActivationCode()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// Flip the last character to any other alphabet symbol.
	last := code[len(code)-1]
	var replacement byte
	for i := 0; i < len(codeAlphabet); i++ {
		if codeAlphabet[i] != last {
			replacement = codeAlphabet[i]
			break
		}
	}
	corrupted := code[:len(code)-1] + string(replacement)
	if ValidateActivationCode(corrupted) {
		t.Fatalf("corrupted code passed validation: %s", corrupted)
	}
}

func TestValidateActivationCodeRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"ABCDE",
		"ABCDE-ABCDE-ABCDE",
		"ABCDE-ABCDE-ABCDE-ABCD",
		"ABCDE-ABCDE-ABCDE-ABC01", // 0 and 1 outside alphabet
		"abcde-abcde-abcde-abcde", // lower case outside alphabet
	}
	for _, c := range cases {
		if ValidateActivationCode(c) {
			t.Errorf("expected %q to be rejected", c)
		}
	}
}

func TestCodeRoundTrip(t *testing.T) {
	random := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	code := encodeCode(random)
	raw, ok := decodeCode(code)
	if !ok {
		t.Fatalf("decode failed for %s", code)
	}
	for i, b := range random {
		if raw[i] != b {
			t.Fatalf("byte %d: got %d, want %d", i, raw[i], b)
		}
	}
	if !ValidateActivationCode(code) {
		t.Fatalf("encoded code failed validation: %s", code)
	}
}
