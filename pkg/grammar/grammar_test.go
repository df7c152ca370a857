/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: grammar_test.go
Description: Tests for the grammar model: discriminator normalization and
formatting, primitive classification, and endian resolution.
*/

package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNormalizeDiscriminator tests canonical hex literal forms
func TestNormalizeDiscriminator(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"0x65", "0x65"},
		{"0x0065", "0x65"},
		{"0xff", "0xFF"},
		{"0x4e54", "0x4E54"},
		{"0xA", "0x0A"},
		{"0X1a2b3", "0x01A2B3"},
	}

	for _, tc := range cases {
		got, err := NormalizeDiscriminator(tc.in)
		require.NoError(t, err, "literal %q", tc.in)
		assert.Equal(t, tc.expected, got, "literal %q", tc.in)
	}
}

// TestNormalizeDiscriminatorIdempotent tests that normalization is stable
func TestNormalizeDiscriminatorIdempotent(t *testing.T) {
	for _, literal := range []string{"0x65", "0xDEAD", "0x0001", "0xabcdef"} {
		once, err := NormalizeDiscriminator(literal)
		require.NoError(t, err)
		twice, err := NormalizeDiscriminator(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

// TestNormalizeDiscriminatorRejects tests malformed literals
func TestNormalizeDiscriminatorRejects(t *testing.T) {
	for _, literal := range []string{"", "65", "0x", "0xZZ", "hello", "#0x65"} {
		_, err := NormalizeDiscriminator(literal)
		assert.Error(t, err, "literal %q should be rejected", literal)
	}
}

// TestFormatDiscriminator tests width matching the field byte size
func TestFormatDiscriminator(t *testing.T) {
	assert.Equal(t, "0x65", FormatDiscriminator(0x65, 1))
	assert.Equal(t, "0x0065", FormatDiscriminator(0x65, 2))
	assert.Equal(t, "0x00000065", FormatDiscriminator(0x65, 4))
	assert.Equal(t, "0x4E54", FormatDiscriminator(0x4E54, 2))
}

// TestIsPrimitive tests primitive classification
func TestIsPrimitive(t *testing.T) {
	assert.True(t, IsPrimitive("u8"))
	assert.True(t, IsPrimitive("u16"))
	assert.True(t, IsPrimitive("u32"))
	assert.True(t, IsPrimitive("bytes"))
	assert.False(t, IsPrimitive("Header"))
	assert.False(t, IsPrimitive(""))
}

// TestPrimitiveSize tests fixed integer sizes
func TestPrimitiveSize(t *testing.T) {
	assert.Equal(t, int64(1), PrimitiveSize("u8"))
	assert.Equal(t, int64(2), PrimitiveSize("u16"))
	assert.Equal(t, int64(4), PrimitiveSize("u32"))
	assert.Equal(t, int64(0), PrimitiveSize("bytes"))
}

// TestEffectiveEndian tests the field-over-default precedence
func TestEffectiveEndian(t *testing.T) {
	g := &Grammar{Endian: EndianLittle}

	endian, ok := g.EffectiveEndian(&FieldDef{Type: TypeU16})
	require.True(t, ok)
	assert.Equal(t, EndianLittle, endian)

	endian, ok = g.EffectiveEndian(&FieldDef{Type: TypeU16, Endian: EndianBig})
	require.True(t, ok)
	assert.Equal(t, EndianBig, endian)

	bare := &Grammar{}
	_, ok = bare.EffectiveEndian(&FieldDef{Type: TypeU32})
	assert.False(t, ok)
}
