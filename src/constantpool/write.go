/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package constantpool

import (
	"math"

	"github.com/cojen/boxtin/src/bytebuf"
)

// Growth reports how many entries have been appended beyond the pool's
// originally decoded size (a Long/Double tombstone counts as one of them),
// the figure ClassFileProcessor logs at the end of a transformation run.
func (p *Pool) Growth() int {
	return len(p.entries) - int(p.originalCount)
}

// WriteTo serializes constant_pool_count followed by every entry, in the
// same wire shape Decode reads, onto w. Index 0 and tombstone slots left by
// a Long/Double are skipped, matching how the JVM itself leaves that index
// unused rather than writing a placeholder tag.
func (p *Pool) WriteTo(w *bytebuf.ByteBuf) {
	w.WriteU2(uint16(len(p.entries)))
	for i := uint16(1); i < uint16(len(p.entries)); i++ {
		e := p.entries[i]
		if e.Tag == 0 {
			continue // tombstone half of a preceding Long/Double
		}
		writeEntry(w, e)
		if e.Tag.isWide() {
			i++
		}
	}
}

func writeEntry(w *bytebuf.ByteBuf, e Entry) {
	w.WriteU1(byte(e.Tag))
	switch e.Tag {
	case TagUtf8:
		w.WriteU2(uint16(len(bytebuf.EncodeModifiedUtf8(e.Utf8))))
		w.WriteUtfModified(e.Utf8)
	case TagInteger:
		w.WriteU4(uint32(e.Int32))
	case TagFloat:
		w.WriteU4(math.Float32bits(e.Float32))
	case TagLong:
		v := uint64(e.Int64)
		w.WriteU4(uint32(v >> 32))
		w.WriteU4(uint32(v))
	case TagDouble:
		v := math.Float64bits(e.Float64)
		w.WriteU4(uint32(v >> 32))
		w.WriteU4(uint32(v))
	case TagClass, TagString, TagMethodType, TagModule, TagPackage:
		w.WriteU2(e.Index1)
	case TagNameAndType, TagFieldref, TagMethodref, TagInterfaceMethodref, TagDynamic, TagInvokeDynamic:
		w.WriteU2(e.Index1)
		w.WriteU2(e.Index2)
	case TagMethodHandle:
		w.WriteU1(byte(e.RefKind))
		w.WriteU2(e.Index1)
	}
}
