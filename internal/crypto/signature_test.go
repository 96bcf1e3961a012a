package crypto

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

var signatureShape = regexp.MustCompile(`^\d{8}(-\d{8}){0,2}$`)

func TestComputeSignatureShape(t *testing.T) {
	key := make([]byte, 32)
	for components := 1; components <= 3; components++ {
		sig, err := ComputeSignature(key, components, []byte("data"), 7, []byte("secret"))
		require.NoError(t, err)
		require.Regexp(t, signatureShape, sig)
		require.Len(t, sig, components*SignatureComponentLength+(components-1))
	}
}

func TestComputeSignatureDeterministic(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	s1, err := ComputeSignature(key, 2, []byte("data"), 5, []byte("secret"))
	require.NoError(t, err)
	s2, err := ComputeSignature(key, 2, []byte("data"), 5, []byte("secret"))
	require.NoError(t, err)
	require.Equal(t, s1, s2)
}

func TestComputeSignatureVariesWithInputs(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	base, err := ComputeSignature(key, 1, []byte("data"), 5, []byte("secret"))
	require.NoError(t, err)

	otherCounter, _ := ComputeSignature(key, 1, []byte("data"), 6, []byte("secret"))
	require.NotEqual(t, base, otherCounter)

	otherData, _ := ComputeSignature(key, 1, []byte("DATA"), 5, []byte("secret"))
	require.NotEqual(t, base, otherData)

	otherSecret, _ := ComputeSignature(key, 1, []byte("data"), 5, []byte("SECRET"))
	require.NotEqual(t, base, otherSecret)
}

func TestComputeSignatureRejectsBadComponentCount(t *testing.T) {
	_, err := ComputeSignature(make([]byte, 32), 0, nil, 0, nil)
	require.Error(t, err)
	_, err = ComputeSignature(make([]byte, 32), 4, nil, 0, nil)
	require.Error(t, err)
}

func TestCombineFactorKeys(t *testing.T) {
	a := []byte{0x0F, 0xF0}
	b := []byte{0xFF, 0x00}
	combined, err := CombineFactorKeys([][]byte{a, b})
	require.NoError(t, err)
	require.Equal(t, []byte{0xF0, 0xF0}, combined)

	// Single key passes through.
	single, err := CombineFactorKeys([][]byte{a})
	require.NoError(t, err)
	require.Equal(t, a, single)

	_, err = CombineFactorKeys(nil)
	require.Error(t, err)
	_, err = CombineFactorKeys([][]byte{a, []byte{1}})
	require.Error(t, err)
}

func TestSignatureEqual(t *testing.T) {
	require.True(t, SignatureEqual("12345678", "12345678"))
	require.False(t, SignatureEqual("12345678", "12345679"))
	require.False(t, SignatureEqual("12345678", "1234567"))
}
