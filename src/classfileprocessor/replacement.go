/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classfileprocessor

import "github.com/cojen/boxtin/src/boxerr"

// Replacement is one spliced-in edit to the original classfile bytes (spec
// §4.7): bytes [Offset, Offset+OrigLen) of the original buffer are dropped
// and Data is emitted in their place. A Replacement with OrigLen 0 is a pure
// insertion (used for the appended proxy methods, which have no original
// bytes to displace).
type Replacement struct {
	Offset  int
	OrigLen int
	Data    []byte
}

// Growth is how many bytes this edit adds (or removes, if negative) relative
// to the original buffer.
func (r Replacement) Growth() int { return len(r.Data) - r.OrigLen }

// emitter streams dst, an original buffer, through a strictly-increasing
// sequence of Replacements (spec §4.7's "emit" step and spec §5's "applied
// in strictly increasing original-offset order").
type emitter struct {
	original []byte
	cursor   int
}

func newEmitter(original []byte) *emitter {
	return &emitter{original: original}
}

// apply copies original[cursor:r.Offset) verbatim into dst, then appends
// r.Data in place of original[r.Offset : r.Offset+r.OrigLen), and fails
// ClassFormat if r is out of order or overlaps the previous edit — spec §5:
// "the emitter asserts monotonic progress and fails ClassFormat if
// violated."
func (e *emitter) apply(dst *[]byte, r Replacement) error {
	if r.Offset < e.cursor {
		return boxerr.Wrapf(boxerr.ClassFormat, "replacement at %d overlaps previous edit ending at %d", r.Offset, e.cursor)
	}
	*dst = append(*dst, e.original[e.cursor:r.Offset]...)
	*dst = append(*dst, r.Data...)
	e.cursor = r.Offset + r.OrigLen
	return nil
}

// finish appends whatever remains of the original buffer after the last
// edit.
func (e *emitter) finish(dst *[]byte) {
	*dst = append(*dst, e.original[e.cursor:]...)
}
