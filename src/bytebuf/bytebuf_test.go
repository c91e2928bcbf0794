/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package bytebuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadWriteRoundTrip(t *testing.T) {
	w := NewEmpty(16)
	w.WriteU1(0xAB)
	w.WriteU2(0x1234)
	w.WriteU4(0xDEADBEEF)

	r := New(w.Bytes())
	u1, err := r.ReadU1()
	assert.NoError(t, err)
	assert.Equal(t, uint8(0xAB), u1)

	u2, err := r.ReadU2()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x1234), u2)

	u4, err := r.ReadU4()
	assert.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), u4)
}

func TestSkipPastEndIsTruncated(t *testing.T) {
	r := New([]byte{1, 2, 3})
	err := r.Skip(10)
	assert.Error(t, err)
}

func TestReadU2PastEndIsTruncated(t *testing.T) {
	r := New([]byte{1})
	_, err := r.ReadU2()
	assert.Error(t, err)
}

// modifiedUtf8Cases holds the code points testable property 9 from
// spec.md requires: the empty string, an ASCII letter, and the boundary
// code points of each modified-UTF-8 encoding width, expressed as escapes
// to keep this source file plain ASCII.
func modifiedUtf8Cases() []string {
	return []string{
		"",
		"a",
		"\x00",
		"\x7f",
		"\U00000080",
		"\U000007ff",
		"\U00000800",
		"\U0000ffff",
		"\U0001f600",
	}
}

// TestModifiedUtf8RoundTrip is testable property 9 from spec.md: every one
// of these code points must survive an encode/decode round trip unchanged.
func TestModifiedUtf8RoundTrip(t *testing.T) {
	for _, s := range modifiedUtf8Cases() {
		encoded := EncodeModifiedUtf8(s)
		decoded, err := DecodeModifiedUtf8(encoded)
		assert.NoError(t, err)
		assert.Equal(t, s, decoded)
	}
}

func TestDecodeModifiedUtf8RejectsLiteralNul(t *testing.T) {
	_, err := DecodeModifiedUtf8([]byte{0x00})
	assert.Error(t, err)
}

func TestDecodeModifiedUtf8RejectsTruncatedSequence(t *testing.T) {
	_, err := DecodeModifiedUtf8([]byte{0xC0})
	assert.Error(t, err)
}

func TestEncodeNulUsesTwoByteForm(t *testing.T) {
	encoded := EncodeModifiedUtf8("\x00")
	assert.Equal(t, []byte{0xC0, 0x80}, encoded)
}
