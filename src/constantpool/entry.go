/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package constantpool

import (
	"math"

	"github.com/cojen/boxtin/src/boxerr"
	"github.com/cojen/boxtin/src/bytebuf"
)

// Entry is one constant-pool slot. Its field interpretation depends on Tag,
// mirroring JVMS table 4.4-A; teacher keeps six parallel CpEntry shapes
// switched on an Type byte (CPutils.go FetchCPentry) — this flattens that
// into a single struct so a slot can be indexed, copied and compared without
// a type switch at every use site.
type Entry struct {
	Tag Tag

	// Utf8.
	Utf8 string

	// Integer / Float raw bits.
	Int32   int32
	Float32 float32

	// Long / Double. A wide entry occupies this index and the next, per
	// JVMS 4.4.5: the following slot is a tombstone (Tag == 0).
	Int64   int64
	Float64 float64

	// Class/String/MethodType/Module/Package: single index.
	// NameAndType: Index1 = name_index, Index2 = descriptor_index.
	// Fieldref/Methodref/InterfaceMethodref: Index1 = class_index,
	//   Index2 = name_and_type_index.
	// MethodHandle: Index1 = reference_index, RefKind = kind.
	// Dynamic/InvokeDynamic: Index1 = bootstrap_method_attr_index,
	//   Index2 = name_and_type_index.
	Index1 uint16
	Index2 uint16

	RefKind ReferenceKind
}

// Pool is a decoded, indexable constant pool plus the bookkeeping Extend
// needs to append new entries without duplicating ones that already exist.
// Per spec §4.2 it is constructed once from a classfile's bytes and then
// mutated in place as the transformer appends synthesized entries.
type Pool struct {
	// entries[0] is unused (constant_pool_count convention: valid indices
	// run 1..count-1). A Long/Double at index i leaves entries[i+1] as a
	// Tag-0 tombstone, matching the gap the JVM spec itself mandates.
	entries []Entry

	// originalCount is constant_pool_count as decoded, before any Add*
	// appends; Growth() reports against this baseline.
	originalCount uint16

	utf8ByValue     map[string]uint16
	classByName     map[string]uint16
	natByKey        map[string]uint16
	fieldrefByKey   map[string]uint16
	methodrefByKey  map[string]uint16
	imethodrefByKey map[string]uint16
	stringByValue   map[string]uint16
	longByValue     map[int64]uint16
	doubleByValue   map[float64]uint16

	// syntheticSeq counts the names AddUniqueMethod has allocated; the
	// names themselves come from random digits, not from this counter.
	syntheticSeq int

	// mutated is set by SetMethodHandleRef: an in-place edit to an existing
	// entry that changes WriteTo's output without changing Growth() (§4.10
	// patches a MethodHandle entry's target, it never appends one), so the
	// emitter needs a signal distinct from Growth to know the pool section
	// must be re-serialized.
	mutated bool
}

// Decode reads a constant_pool_count u2 followed by that many (minus one)
// entries off buf, per JVMS 4.1. It is grounded on teacher's classloader.go
// constant-pool decode loop (the same u2-count, tag-dispatch, wide-entry
// double-slot pattern), generalized to build Pool's single Entry slice
// instead of six parallel arrays.
func Decode(buf *bytebuf.ByteBuf) (*Pool, error) {
	count, err := buf.ReadU2()
	if err != nil {
		return nil, boxerr.Wrapf(boxerr.ClassFormat, "reading constant_pool_count: %v", err)
	}
	p := &Pool{entries: make([]Entry, count), originalCount: count}

	for i := uint16(1); i < count; i++ {
		tagByte, err := buf.ReadU1()
		if err != nil {
			return nil, boxerr.Wrapf(boxerr.ClassFormat, "reading tag at cp[%d]: %v", i, err)
		}
		tag := Tag(tagByte)
		entry, err := decodeEntry(buf, tag, i)
		if err != nil {
			return nil, err
		}
		p.entries[i] = entry
		if tag.isWide() {
			i++ // leave entries[i] as the zero-value tombstone
		}
	}
	return p, nil
}

func decodeEntry(buf *bytebuf.ByteBuf, tag Tag, index uint16) (Entry, error) {
	switch tag {
	case TagUtf8:
		length, err := buf.ReadU2()
		if err != nil {
			return Entry{}, boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] Utf8 length: %v", index, err)
		}
		s, err := buf.ReadUtfModified(int(length))
		if err != nil {
			return Entry{}, boxerr.Wrapf(boxerr.MalformedUtf, "cp[%d] Utf8 bytes: %v", index, err)
		}
		return Entry{Tag: tag, Utf8: s}, nil

	case TagInteger:
		v, err := buf.ReadS4()
		if err != nil {
			return Entry{}, boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] Integer: %v", index, err)
		}
		return Entry{Tag: tag, Int32: v}, nil

	case TagFloat:
		v, err := buf.ReadU4()
		if err != nil {
			return Entry{}, boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] Float: %v", index, err)
		}
		return Entry{Tag: tag, Float32: math.Float32frombits(uint32(v))}, nil

	case TagLong:
		hi, err := buf.ReadU4()
		if err != nil {
			return Entry{}, boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] Long high: %v", index, err)
		}
		lo, err := buf.ReadU4()
		if err != nil {
			return Entry{}, boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] Long low: %v", index, err)
		}
		return Entry{Tag: tag, Int64: int64(uint64(hi)<<32 | uint64(lo))}, nil

	case TagDouble:
		hi, err := buf.ReadU4()
		if err != nil {
			return Entry{}, boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] Double high: %v", index, err)
		}
		lo, err := buf.ReadU4()
		if err != nil {
			return Entry{}, boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] Double low: %v", index, err)
		}
		return Entry{Tag: tag, Float64: math.Float64frombits(uint64(hi)<<32 | uint64(lo))}, nil

	case TagClass, TagString, TagMethodType, TagModule, TagPackage:
		idx, err := buf.ReadU2()
		if err != nil {
			return Entry{}, boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] %s index: %v", index, tag, err)
		}
		return Entry{Tag: tag, Index1: idx}, nil

	case TagNameAndType, TagFieldref, TagMethodref, TagInterfaceMethodref, TagDynamic, TagInvokeDynamic:
		i1, err := buf.ReadU2()
		if err != nil {
			return Entry{}, boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] %s index1: %v", index, tag, err)
		}
		i2, err := buf.ReadU2()
		if err != nil {
			return Entry{}, boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] %s index2: %v", index, tag, err)
		}
		return Entry{Tag: tag, Index1: i1, Index2: i2}, nil

	case TagMethodHandle:
		kind, err := buf.ReadU1()
		if err != nil {
			return Entry{}, boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] MethodHandle kind: %v", index, err)
		}
		refIdx, err := buf.ReadU2()
		if err != nil {
			return Entry{}, boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] MethodHandle reference_index: %v", index, err)
		}
		return Entry{Tag: tag, RefKind: ReferenceKind(kind), Index1: refIdx}, nil

	default:
		return Entry{}, boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] unknown tag %d", index, tagByteOf(tag))
	}
}

func tagByteOf(t Tag) byte { return byte(t) }

// Count returns constant_pool_count (one past the highest valid index).
func (p *Pool) Count() uint16 { return uint16(len(p.entries)) }

// At returns the raw entry at index, or ok=false for an out-of-range or
// tombstone slot.
func (p *Pool) At(index uint16) (Entry, bool) {
	if index == 0 || int(index) >= len(p.entries) {
		return Entry{}, false
	}
	e := p.entries[index]
	if e.Tag == 0 {
		return Entry{}, false
	}
	return e, true
}

// MethodHandleAt returns the reference kind and referenced-entry index of
// the CONSTANT_MethodHandle at index, tag-checked.
func (p *Pool) MethodHandleAt(index uint16) (ReferenceKind, uint16, error) {
	e, ok := p.At(index)
	if !ok || e.Tag != TagMethodHandle {
		return 0, 0, boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] is not a MethodHandle", index)
	}
	return e.RefKind, e.Index1, nil
}

// SetMethodHandleRef patches the CONSTANT_MethodHandle at index to kind/
// refIndex in place (spec §4.10: "rewrite the MethodHandle to reference
// that proxy"). This never appends an entry — Growth() stays unaffected —
// so it marks the pool Mutated instead, the emitter's other signal that
// WriteTo's output no longer matches the bytes originally decoded.
func (p *Pool) SetMethodHandleRef(index uint16, kind ReferenceKind, refIndex uint16) error {
	e, ok := p.At(index)
	if !ok || e.Tag != TagMethodHandle {
		return boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] is not a MethodHandle", index)
	}
	e.RefKind = kind
	e.Index1 = refIndex
	p.entries[index] = e
	p.mutated = true
	return nil
}

// Mutated reports whether any existing entry was edited in place via
// SetMethodHandleRef since Decode.
func (p *Pool) Mutated() bool {
	return p.mutated
}

// Utf8At returns the UTF8 string at index, tag-checked.
func (p *Pool) Utf8At(index uint16) (string, error) {
	e, ok := p.At(index)
	if !ok || e.Tag != TagUtf8 {
		return "", boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] is not a Utf8", index)
	}
	return e.Utf8, nil
}

// ClassNameAt resolves a CONSTANT_Class entry to its binary class name.
func (p *Pool) ClassNameAt(index uint16) (string, error) {
	e, ok := p.At(index)
	if !ok || e.Tag != TagClass {
		return "", boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] is not a Class", index)
	}
	return p.Utf8At(e.Index1)
}

// NameAndTypeAt resolves a CONSTANT_NameAndType entry to its (name,
// descriptor) pair.
func (p *Pool) NameAndTypeAt(index uint16) (name, descriptor string, err error) {
	e, ok := p.At(index)
	if !ok || e.Tag != TagNameAndType {
		return "", "", boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] is not a NameAndType", index)
	}
	name, err = p.Utf8At(e.Index1)
	if err != nil {
		return "", "", err
	}
	descriptor, err = p.Utf8At(e.Index2)
	if err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// StringAt resolves a CONSTANT_String entry to its backing UTF8 text.
func (p *Pool) StringAt(index uint16) (string, error) {
	e, ok := p.At(index)
	if !ok || e.Tag != TagString {
		return "", boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] is not a String", index)
	}
	return p.Utf8At(e.Index1)
}
