package bignum

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeRoundtrip(t *testing.T) {
	values := []string{
		"0",
		"1",
		"127",
		"128",
		"255",
		"256",
		"319",
		"65521",
		"-1",
		"-127",
		"-128",
		"-65536",
		"340282366920938463463374607431768211455",
		"-340282366920938463463374607431768211456",
	}

	for _, dec := range values {
		n := FromDecimal(dec)
		require.True(t, n.IsValid(), dec)

		enc := n.Serialize()
		back := FromBytes(enc)
		require.True(t, back.IsValid(), dec)
		assert.Equal(t, 0, n.Cmp(back), dec)

		// canonical encodings re-encode to themselves
		assert.True(t, bytes.Equal(enc, back.Serialize()), dec)
	}
}

func TestSerializeKnownEncodings(t *testing.T) {
	// zero is the empty string
	assert.Empty(t, FromInt64(0).Serialize())

	// 0x13f little-endian
	assert.Equal(t, []byte{0x3f, 0x01}, FromInt64(319).Serialize())

	// byte-aligned magnitude gains a zero sign byte
	assert.Equal(t, []byte{0x80, 0x00}, FromInt64(128).Serialize())
	assert.Equal(t, []byte{0xff, 0x00}, FromInt64(255).Serialize())

	// sign bit in the top bit of the last byte
	assert.Equal(t, []byte{0x81}, FromInt64(-1).Serialize())
	assert.Equal(t, []byte{0x80, 0x80}, FromInt64(-128).Serialize())
}

func TestFromBytesRejectsNegativeZero(t *testing.T) {
	// sign bit set but no corresponding magnitude bit
	n := FromBytes([]byte{0x00, 0x80})
	assert.False(t, n.IsValid())

	// sign bit set over a clear msb in the low byte
	n = FromBytes([]byte{0x80})
	assert.False(t, n.IsValid())
	assert.Equal(t, 0, n.CmpInt64(0))
}

func TestFromBytesNegative(t *testing.T) {
	// 0x3f 0x81: stripping the sign bit leaves magnitude 0x13f
	n := FromBytes([]byte{0x3f, 0x81})
	require.True(t, n.IsValid())
	assert.Equal(t, 0, n.CmpInt64(-319))
	assert.True(t, n.Sign())
}

func TestFromDecimalInvalid(t *testing.T) {
	assert.False(t, FromDecimal("").IsValid())
	assert.False(t, FromDecimal("12a3").IsValid())
	assert.True(t, FromDecimal("-42").IsValid())
}

func TestCmpSignAware(t *testing.T) {
	assert.Equal(t, -1, FromInt64(-5).Cmp(FromInt64(3)))
	assert.Equal(t, 1, FromInt64(3).Cmp(FromInt64(-5)))
	assert.Equal(t, -1, FromInt64(-5).CmpInt64(-4))
}

func TestModNonNegative(t *testing.T) {
	n := FromInt64(-7)
	m := n.Mod(FromInt64(3))
	assert.Equal(t, 0, m.CmpInt64(2))

	assert.Equal(t, 0, FromInt64(319).Mod(FromInt64(11)).CmpInt64(0))
}

func TestBits(t *testing.T) {
	assert.Equal(t, 1, FromInt64(0).Bits())
	assert.Equal(t, 1, FromInt64(1).Bits())
	assert.Equal(t, 9, FromInt64(319).Bits())
	assert.Equal(t, 16, FromInt64(65521).Bits())

	v := new(big.Int).Lsh(big.NewInt(1), 159)
	assert.Equal(t, 160, FromBig(v).Bits())
}

func TestDecUnprintable(t *testing.T) {
	huge := new(big.Int).Exp(big.NewInt(10), big.NewInt(1500), nil)
	assert.Equal(t, "unprintable number", FromBig(huge).Dec())
	assert.Equal(t, "319", FromInt64(319).Dec())
}
