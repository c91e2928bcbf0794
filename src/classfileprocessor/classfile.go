/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package classfileprocessor implements ClassFileProcessor (spec §4.7),
// CodeRewriter (§4.8), ProxySynthesizer (§4.9), and the MethodHandle-constant
// rewriting §4.10 describes: the component that actually takes a class's raw
// bytes plus a Checker-shaped policy decision source and produces either
// the unmodified bytes (nothing to check) or a transformed classfile with
// the target-side prologue and/or caller-side proxy rewriting spliced in.
// It is grounded on the decode-then-patch shape of teacher's own
// classloader.go (header decode, constant pool, method table) and
// CPutils.go (method descriptor / constant accessors), adapted from
// "parse a class to run it" into "parse a class, synthesize edits, re-emit
// it" — the Replacement-splicing emit loop has no teacher analogue and is
// grounded instead on spec §4.7's own step list.
package classfileprocessor

import (
	"github.com/cojen/boxtin/src/bytebuf"
	"github.com/cojen/boxtin/src/constantpool"
)

// classFile is the decoded shape of one classfile: just enough structure to
// walk its methods and splice edits into its Code attributes. Field
// declarations, most method/class-level attributes (everything but Code),
// and the interface table are never deeply parsed — they are skipped and
// copied through to the output verbatim by the emitter's default pass-
// through of ranges with no Replacement.
type classFile struct {
	minor, major uint16
	pool         *constantpool.Pool
	poolStartOffset, poolEndOffset int // span of the original constant_pool section, replaced wholesale if Pool grows

	accessFlags            uint16
	thisClass, superClass  uint16
	thisClassName          string
	interfacesOffset       int
	interfacesEndOffset    int
	fieldsEndOffset        int
	methods                []methodInfo
	methodCountOffset      int // offset of the method_count u2 (patched after appending proxies)
	methodsEndOffset       int // offset right after the last method_info (where new methods are inserted)
}

// methodInfo is one decoded method_info structure.
type methodInfo struct {
	startOffset     int // offset of access_flags u2
	accessFlags     uint16
	nameIndex       uint16
	descriptorIndex uint16
	name            string
	descriptor      string
	code            *codeAttr // nil if this method has no Code attribute (abstract/native)
	endOffset       int       // offset right after this method_info (attributes included)
}

const (
	accSynthetic = 0x1000
	accStatic    = 0x0008
	accPrivate   = 0x0002
)

// decodeClassFile reads a full classfile from buf, per JVMS §4.1, stopping
// short of deep-parsing anything Transform never needs to touch.
func decodeClassFile(buf *bytebuf.ByteBuf) (*classFile, error) {
	if err := expectMagic(buf); err != nil {
		return nil, err
	}
	minor, err := buf.ReadU2()
	if err != nil {
		return nil, err
	}
	major, err := buf.ReadU2()
	if err != nil {
		return nil, err
	}
	poolStart := buf.ReadPos()
	pool, err := constantpool.Decode(buf)
	if err != nil {
		return nil, err
	}
	poolEnd := buf.ReadPos()
	accessFlags, err := buf.ReadU2()
	if err != nil {
		return nil, err
	}
	thisClass, err := buf.ReadU2()
	if err != nil {
		return nil, err
	}
	superClass, err := buf.ReadU2()
	if err != nil {
		return nil, err
	}
	thisClassName, err := pool.ClassNameAt(thisClass)
	if err != nil {
		return nil, err
	}

	cf := &classFile{
		minor: minor, major: major, pool: pool,
		poolStartOffset: poolStart, poolEndOffset: poolEnd,
		accessFlags: accessFlags, thisClass: thisClass, superClass: superClass,
		thisClassName: thisClassName,
	}

	cf.interfacesOffset = buf.ReadPos()
	ifaceCount, err := buf.ReadU2()
	if err != nil {
		return nil, err
	}
	if err := buf.Skip(int(ifaceCount) * 2); err != nil {
		return nil, err
	}
	cf.interfacesEndOffset = buf.ReadPos()

	if err := skipFields(buf); err != nil {
		return nil, err
	}
	cf.fieldsEndOffset = buf.ReadPos()

	cf.methodCountOffset = buf.ReadPos()
	methodCount, err := buf.ReadU2()
	if err != nil {
		return nil, err
	}
	cf.methods = make([]methodInfo, 0, methodCount)
	for i := uint16(0); i < methodCount; i++ {
		m, err := decodeMethod(buf, pool)
		if err != nil {
			return nil, err
		}
		cf.methods = append(cf.methods, m)
	}
	cf.methodsEndOffset = buf.ReadPos()

	return cf, nil
}

func expectMagic(buf *bytebuf.ByteBuf) error {
	magic, err := buf.ReadU4()
	if err != nil {
		return err
	}
	if magic != 0xCAFEBABE {
		return classFormatf("bad magic %#08x", magic)
	}
	return nil
}

// skipFields reads past the field_info table without retaining anything:
// ClassFileProcessor never checks or rewrites field declarations, only
// field *accesses* inside method bodies (spec §4.7: "fields are never
// individually transformable, only their accessors are").
func skipFields(buf *bytebuf.ByteBuf) error {
	count, err := buf.ReadU2()
	if err != nil {
		return err
	}
	for i := uint16(0); i < count; i++ {
		if err := buf.Skip(6); err != nil { // access_flags, name_index, descriptor_index
			return err
		}
		if err := skipAttributes(buf); err != nil {
			return err
		}
	}
	return nil
}

// skipAttributes reads past an attributes_count-prefixed attribute table
// without interpreting any of it.
func skipAttributes(buf *bytebuf.ByteBuf) error {
	count, err := buf.ReadU2()
	if err != nil {
		return err
	}
	for i := uint16(0); i < count; i++ {
		if _, _, err := skipOneAttribute(buf); err != nil {
			return err
		}
	}
	return nil
}

func skipOneAttribute(buf *bytebuf.ByteBuf) (nameIndex uint16, length uint32, err error) {
	nameIndex, err = buf.ReadU2()
	if err != nil {
		return
	}
	length, err = buf.ReadU4()
	if err != nil {
		return
	}
	err = buf.Skip(int(length))
	return
}

func decodeMethod(buf *bytebuf.ByteBuf, pool *constantpool.Pool) (methodInfo, error) {
	start := buf.ReadPos()
	accessFlags, err := buf.ReadU2()
	if err != nil {
		return methodInfo{}, err
	}
	nameIndex, err := buf.ReadU2()
	if err != nil {
		return methodInfo{}, err
	}
	descriptorIndex, err := buf.ReadU2()
	if err != nil {
		return methodInfo{}, err
	}
	name, err := pool.Utf8At(nameIndex)
	if err != nil {
		return methodInfo{}, err
	}
	descriptor, err := pool.Utf8At(descriptorIndex)
	if err != nil {
		return methodInfo{}, err
	}

	m := methodInfo{
		startOffset: start, accessFlags: accessFlags,
		nameIndex: nameIndex, descriptorIndex: descriptorIndex,
		name: name, descriptor: descriptor,
	}

	attrCount, err := buf.ReadU2()
	if err != nil {
		return methodInfo{}, err
	}
	for i := uint16(0); i < attrCount; i++ {
		attrNameIndex, attrOffset, length, err := peekAttributeHeader(buf)
		if err != nil {
			return methodInfo{}, err
		}
		attrName, err := pool.Utf8At(attrNameIndex)
		if err != nil {
			return methodInfo{}, err
		}
		if attrName == "Code" && m.code == nil {
			code, err := decodeCodeAttr(buf, attrNameIndex, attrOffset, length, pool)
			if err != nil {
				return methodInfo{}, err
			}
			m.code = code
		} else {
			if err := buf.Skip(int(length)); err != nil {
				return methodInfo{}, err
			}
		}
	}
	m.endOffset = buf.ReadPos()
	return m, nil
}

// peekAttributeHeader reads an attribute's name_index/length header,
// leaving the read cursor positioned at the start of its body.
func peekAttributeHeader(buf *bytebuf.ByteBuf) (nameIndex uint16, bodyOffset int, length uint32, err error) {
	nameIndex, err = buf.ReadU2()
	if err != nil {
		return
	}
	length, err = buf.ReadU4()
	if err != nil {
		return
	}
	bodyOffset = buf.ReadPos()
	return
}

func classFormatf(format string, args ...any) error {
	return boxerrf(format, args...)
}
