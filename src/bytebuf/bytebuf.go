/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package bytebuf implements a big-endian reader/writer over a growable byte
// buffer (spec §4.1), with separate read and write cursors and the JVM's
// modified-UTF-8 codec. It is grounded on the byte/offset bookkeeping teacher
// does throughout classloader.go's constant-pool decode loop, generalized
// into a reusable cursor type instead of inline index variables.
package bytebuf

import (
	"github.com/cojen/boxtin/src/boxerr"
)

// ByteBuf is a growable byte buffer with independent read and write cursors.
// It is not safe for concurrent use; callers that need a fresh buffer per
// goroutine should construct one each (mirrors spec §5: "a single
// ClassFileProcessor is owned exclusively by its caller").
type ByteBuf struct {
	buf  []byte
	rpos int
	wpos int
}

// New wraps an existing byte slice for reading; the write cursor starts
// at len(data) so further Write* calls append.
func New(data []byte) *ByteBuf {
	return &ByteBuf{buf: data, wpos: len(data)}
}

// NewEmpty returns an empty buffer pre-sized to cap bytes, ready for writing.
func NewEmpty(capHint int) *ByteBuf {
	return &ByteBuf{buf: make([]byte, 0, capHint)}
}

// Len returns the number of valid bytes currently held.
func (b *ByteBuf) Len() int { return len(b.buf) }

// Bytes returns the borrowed slice [0, Len()) — callers must not retain it
// across further writes, since growth may reallocate.
func (b *ByteBuf) Bytes() []byte { return b.buf }

// ReadPos / WritePos expose the current cursors (used by the rewriter to
// record Replacement.originalOffset).
func (b *ByteBuf) ReadPos() int  { return b.rpos }
func (b *ByteBuf) WritePos() int { return b.wpos }

// SeekRead repositions the read cursor absolutely.
func (b *ByteBuf) SeekRead(pos int) { b.rpos = pos }

// Remaining reports how many unread bytes are left.
func (b *ByteBuf) Remaining() int { return len(b.buf) - b.rpos }

func (b *ByteBuf) ensureReadable(n int) error {
	if b.rpos+n > len(b.buf) {
		return boxerr.Wrapf(boxerr.ClassFormat, "truncated: need %d bytes at offset %d, have %d", n, b.rpos, len(b.buf))
	}
	return nil
}

// Skip advances the read cursor by n bytes, failing with ClassFormat
// (Truncated, per spec) when that would read past the end.
func (b *ByteBuf) Skip(n int) error {
	if err := b.ensureReadable(n); err != nil {
		return err
	}
	b.rpos += n
	return nil
}

// ReadU1 reads an unsigned 8-bit value.
func (b *ByteBuf) ReadU1() (uint8, error) {
	if err := b.ensureReadable(1); err != nil {
		return 0, err
	}
	v := b.buf[b.rpos]
	b.rpos++
	return v, nil
}

// ReadU2 reads an unsigned big-endian 16-bit value.
func (b *ByteBuf) ReadU2() (uint16, error) {
	if err := b.ensureReadable(2); err != nil {
		return 0, err
	}
	v := uint16(b.buf[b.rpos])<<8 | uint16(b.buf[b.rpos+1])
	b.rpos += 2
	return v, nil
}

// ReadU4 reads an unsigned big-endian 32-bit value.
func (b *ByteBuf) ReadU4() (uint32, error) {
	if err := b.ensureReadable(4); err != nil {
		return 0, err
	}
	v := uint32(b.buf[b.rpos])<<24 | uint32(b.buf[b.rpos+1])<<16 |
		uint32(b.buf[b.rpos+2])<<8 | uint32(b.buf[b.rpos+3])
	b.rpos += 4
	return v, nil
}

// ReadS4 reads a signed big-endian 32-bit value (same bits as ReadU4).
func (b *ByteBuf) ReadS4() (int32, error) {
	v, err := b.ReadU4()
	return int32(v), err
}

// ReadBytes reads n raw bytes, returning a copy.
func (b *ByteBuf) ReadBytes(n int) ([]byte, error) {
	if err := b.ensureReadable(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b.buf[b.rpos:b.rpos+n])
	b.rpos += n
	return out, nil
}

// ReadUtfModified reads len bytes and decodes them as modified UTF-8
// (identical to the JVM variant: ASCII is one byte, U+0000 and
// U+0080..U+07FF are two bytes, the rest of the BMP is three bytes, and
// supplementary characters are encoded as a surrogate pair of three-byte
// sequences). Returns MalformedUtf for anything else.
func (b *ByteBuf) ReadUtfModified(length int) (string, error) {
	raw, err := b.ReadBytes(length)
	if err != nil {
		return "", err
	}
	return DecodeModifiedUtf8(raw)
}

// --- writing ---

func (b *ByteBuf) grow(n int) {
	need := b.wpos + n
	if need <= cap(b.buf) {
		if need > len(b.buf) {
			b.buf = b.buf[:need]
		}
		return
	}
	newCap := cap(b.buf)
	if newCap == 0 {
		newCap = 16
	}
	for newCap < need {
		newCap *= 2
	}
	newBuf := make([]byte, need, newCap)
	copy(newBuf, b.buf)
	b.buf = newBuf
}

// WriteU1 appends an unsigned byte at the write cursor.
func (b *ByteBuf) WriteU1(v uint8) {
	b.grow(1)
	b.buf[b.wpos] = v
	b.wpos++
}

// WriteU2 appends a big-endian 16-bit value.
func (b *ByteBuf) WriteU2(v uint16) {
	b.grow(2)
	b.buf[b.wpos] = byte(v >> 8)
	b.buf[b.wpos+1] = byte(v)
	b.wpos += 2
}

// WriteU4 appends a big-endian 32-bit value.
func (b *ByteBuf) WriteU4(v uint32) {
	b.grow(4)
	b.buf[b.wpos] = byte(v >> 24)
	b.buf[b.wpos+1] = byte(v >> 16)
	b.buf[b.wpos+2] = byte(v >> 8)
	b.buf[b.wpos+3] = byte(v)
	b.wpos += 4
}

// WriteBytes appends raw bytes verbatim.
func (b *ByteBuf) WriteBytes(data []byte) {
	b.grow(len(data))
	copy(b.buf[b.wpos:], data)
	b.wpos += len(data)
}

// WriteUtfModified encodes s as modified UTF-8 and appends it (without a
// leading length prefix — callers that need the CONSTANT_Utf8 framing write
// the U2 length themselves via EncodedUtf8Len + WriteU2).
func (b *ByteBuf) WriteUtfModified(s string) {
	b.WriteBytes(EncodeModifiedUtf8(s))
}
