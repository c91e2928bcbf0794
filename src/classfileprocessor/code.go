/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classfileprocessor

import (
	"github.com/cojen/boxtin/src/bytebuf"
	"github.com/cojen/boxtin/src/constantpool"
)

// exceptionRow is one exception_table entry of a Code attribute.
type exceptionRow struct {
	startPC, endPC, handlerPC, catchType uint16
}

// lineNumberRow is one LineNumberTable entry.
type lineNumberRow struct {
	startPC, lineNumber uint16
}

// localVarRow is one LocalVariableTable/LocalVariableTypeTable entry; both
// attributes share this exact shape (the last u2 is a descriptor index for
// one, a signature index for the other — irrelevant to the fixups this
// package performs on it).
type localVarRow struct {
	startPC, length, nameIndex, typeIndex, index uint16
}

// stackMapFrame is one StackMapTable entry, decoded just enough to touch
// the first frame's offset_delta per spec §4.8.3; everything after the
// offset encoding is kept as an opaque, re-emitted-verbatim byte blob.
type stackMapFrame struct {
	tag            byte
	explicitOffset bool // true once promoted to an extended form with a u2 offset_delta
	offsetDelta    uint16
	afterOffset    []byte
}

// codeAttr is a decoded Code attribute (JVMS §4.7.3).
type codeAttr struct {
	attrHeaderOffset int    // offset of this attribute's name_index, in the original classfile
	origAttrLen      int    // 6 (header) + original attribute_length, the span a full-attribute Replacement displaces
	nameIndex        uint16 // the Code attribute's own name_index (reused verbatim on re-emission)

	maxStack, maxLocals uint16
	code                []byte
	exceptionTable      []exceptionRow

	lineNumberTables      [][]lineNumberRow // one per LineNumberTable sub-attribute (rare to have >1, but legal)
	localVariableTables   [][]localVarRow
	localVarTypeTables    [][]localVarRow
	stackMapTable         []stackMapFrame // nil if the method has no StackMapTable
	hasStackMapTable      bool
	otherAttrs            []rawAttr // anything this package doesn't specifically fix up, copied through unchanged
}

// rawAttr is a Code sub-attribute this package has no reason to interpret
// (e.g. RuntimeVisibleTypeAnnotations): kept verbatim, name_index included,
// so re-emission reproduces it byte-for-byte.
type rawAttr struct {
	nameIndex uint16
	data      []byte
}

func decodeCodeAttr(buf *bytebuf.ByteBuf, nameIndex uint16, bodyOffset int, length uint32, pool *constantpool.Pool) (*codeAttr, error) {
	buf.SeekRead(bodyOffset)
	maxStack, err := buf.ReadU2()
	if err != nil {
		return nil, err
	}
	maxLocals, err := buf.ReadU2()
	if err != nil {
		return nil, err
	}
	codeLength, err := buf.ReadU4()
	if err != nil {
		return nil, err
	}
	code, err := buf.ReadBytes(int(codeLength))
	if err != nil {
		return nil, err
	}
	excCount, err := buf.ReadU2()
	if err != nil {
		return nil, err
	}
	exceptionTable := make([]exceptionRow, excCount)
	for i := range exceptionTable {
		startPC, err := buf.ReadU2()
		if err != nil {
			return nil, err
		}
		endPC, err := buf.ReadU2()
		if err != nil {
			return nil, err
		}
		handlerPC, err := buf.ReadU2()
		if err != nil {
			return nil, err
		}
		catchType, err := buf.ReadU2()
		if err != nil {
			return nil, err
		}
		exceptionTable[i] = exceptionRow{startPC, endPC, handlerPC, catchType}
	}

	ca := &codeAttr{
		attrHeaderOffset: bodyOffset - 6, origAttrLen: 6 + int(length), nameIndex: nameIndex,
		maxStack: maxStack, maxLocals: maxLocals,
		code: code, exceptionTable: exceptionTable,
	}

	attrCount, err := buf.ReadU2()
	if err != nil {
		return nil, err
	}
	for i := uint16(0); i < attrCount; i++ {
		nameIndex, attrBody, attrLen, err := peekAttributeHeader(buf)
		if err != nil {
			return nil, err
		}
		name, err := pool.Utf8At(nameIndex)
		if err != nil {
			return nil, err
		}
		switch name {
		case "LineNumberTable":
			rows, err := decodeLineNumberTable(buf)
			if err != nil {
				return nil, err
			}
			ca.lineNumberTables = append(ca.lineNumberTables, rows)
		case "LocalVariableTable":
			rows, err := decodeLocalVarTable(buf)
			if err != nil {
				return nil, err
			}
			ca.localVariableTables = append(ca.localVariableTables, rows)
		case "LocalVariableTypeTable":
			rows, err := decodeLocalVarTable(buf)
			if err != nil {
				return nil, err
			}
			ca.localVarTypeTables = append(ca.localVarTypeTables, rows)
		case "StackMapTable":
			frames, err := decodeStackMapTable(buf)
			if err != nil {
				return nil, err
			}
			ca.stackMapTable = frames
			ca.hasStackMapTable = true
		default:
			raw, err := buf.ReadBytes(int(attrLen))
			if err != nil {
				return nil, err
			}
			ca.otherAttrs = append(ca.otherAttrs, rawAttr{nameIndex: nameIndex, data: raw})
		}
		_ = attrBody
	}
	return ca, nil
}

func decodeLineNumberTable(buf *bytebuf.ByteBuf) ([]lineNumberRow, error) {
	count, err := buf.ReadU2()
	if err != nil {
		return nil, err
	}
	rows := make([]lineNumberRow, count)
	for i := range rows {
		startPC, err := buf.ReadU2()
		if err != nil {
			return nil, err
		}
		lineNumber, err := buf.ReadU2()
		if err != nil {
			return nil, err
		}
		rows[i] = lineNumberRow{startPC, lineNumber}
	}
	return rows, nil
}

func decodeLocalVarTable(buf *bytebuf.ByteBuf) ([]localVarRow, error) {
	count, err := buf.ReadU2()
	if err != nil {
		return nil, err
	}
	rows := make([]localVarRow, count)
	for i := range rows {
		startPC, err := buf.ReadU2()
		if err != nil {
			return nil, err
		}
		length, err := buf.ReadU2()
		if err != nil {
			return nil, err
		}
		nameIndex, err := buf.ReadU2()
		if err != nil {
			return nil, err
		}
		typeIndex, err := buf.ReadU2()
		if err != nil {
			return nil, err
		}
		index, err := buf.ReadU2()
		if err != nil {
			return nil, err
		}
		rows[i] = localVarRow{startPC, length, nameIndex, typeIndex, index}
	}
	return rows, nil
}

func decodeStackMapTable(buf *bytebuf.ByteBuf) ([]stackMapFrame, error) {
	count, err := buf.ReadU2()
	if err != nil {
		return nil, err
	}
	frames := make([]stackMapFrame, count)
	for i := range frames {
		f, err := decodeStackMapFrame(buf)
		if err != nil {
			return nil, err
		}
		frames[i] = f
	}
	return frames, nil
}

func decodeStackMapFrame(buf *bytebuf.ByteBuf) (stackMapFrame, error) {
	tag, err := buf.ReadU1()
	if err != nil {
		return stackMapFrame{}, err
	}
	switch {
	case tag <= 63: // same_frame
		return stackMapFrame{tag: tag, offsetDelta: uint16(tag)}, nil
	case tag <= 127: // same_locals_1_stack_item_frame
		info, err := readVerificationTypeInfo(buf)
		if err != nil {
			return stackMapFrame{}, err
		}
		return stackMapFrame{tag: tag, offsetDelta: uint16(tag) - 64, afterOffset: info}, nil
	case tag < 247: // unused/reserved
		return stackMapFrame{}, classFormatf("unused StackMapTable frame tag %d", tag)
	case tag == 247: // same_locals_1_stack_item_frame_extended
		offsetDelta, err := buf.ReadU2()
		if err != nil {
			return stackMapFrame{}, err
		}
		info, err := readVerificationTypeInfo(buf)
		if err != nil {
			return stackMapFrame{}, err
		}
		return stackMapFrame{tag: tag, explicitOffset: true, offsetDelta: offsetDelta, afterOffset: info}, nil
	case tag <= 250: // chop_frame
		offsetDelta, err := buf.ReadU2()
		if err != nil {
			return stackMapFrame{}, err
		}
		return stackMapFrame{tag: tag, explicitOffset: true, offsetDelta: offsetDelta}, nil
	case tag == 251: // same_frame_extended
		offsetDelta, err := buf.ReadU2()
		if err != nil {
			return stackMapFrame{}, err
		}
		return stackMapFrame{tag: tag, explicitOffset: true, offsetDelta: offsetDelta}, nil
	case tag <= 254: // append_frame
		offsetDelta, err := buf.ReadU2()
		if err != nil {
			return stackMapFrame{}, err
		}
		info, err := readNVerificationTypeInfos(buf, int(tag)-251)
		if err != nil {
			return stackMapFrame{}, err
		}
		return stackMapFrame{tag: tag, explicitOffset: true, offsetDelta: offsetDelta, afterOffset: info}, nil
	default: // 255: full_frame
		offsetDelta, err := buf.ReadU2()
		if err != nil {
			return stackMapFrame{}, err
		}
		numLocals, err := buf.ReadU2()
		if err != nil {
			return stackMapFrame{}, err
		}
		localsRaw, err := readNVerificationTypeInfos(buf, int(numLocals))
		if err != nil {
			return stackMapFrame{}, err
		}
		numStack, err := buf.ReadU2()
		if err != nil {
			return stackMapFrame{}, err
		}
		stackRaw, err := readNVerificationTypeInfos(buf, int(numStack))
		if err != nil {
			return stackMapFrame{}, err
		}
		after := make([]byte, 0, 4+len(localsRaw)+len(stackRaw))
		after = appendU2(after, numLocals)
		after = append(after, localsRaw...)
		after = appendU2(after, numStack)
		after = append(after, stackRaw...)
		return stackMapFrame{tag: tag, explicitOffset: true, offsetDelta: offsetDelta, afterOffset: after}, nil
	}
}

// readVerificationTypeInfo reads one verification_type_info structure
// (JVMS §4.7.4) and returns its raw encoded bytes.
func readVerificationTypeInfo(buf *bytebuf.ByteBuf) ([]byte, error) {
	tag, err := buf.ReadU1()
	if err != nil {
		return nil, err
	}
	switch tag {
	case 7, 8: // Object_variable_info, Uninitialized_variable_info: tag + u2
		rest, err := buf.ReadBytes(2)
		if err != nil {
			return nil, err
		}
		return append([]byte{tag}, rest...), nil
	default: // Top/Integer/Float/Double/Long/Null/UninitializedThis: tag only
		return []byte{tag}, nil
	}
}

func readNVerificationTypeInfos(buf *bytebuf.ByteBuf, n int) ([]byte, error) {
	var out []byte
	for i := 0; i < n; i++ {
		info, err := readVerificationTypeInfo(buf)
		if err != nil {
			return nil, err
		}
		out = append(out, info...)
	}
	return out, nil
}

func appendU2(dst []byte, v uint16) []byte {
	return append(dst, byte(v>>8), byte(v))
}

func appendU4(dst []byte, v uint32) []byte {
	return append(dst, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// encodeCodeAttr serializes ca back into a full attribute_info block
// (name_index, attribute_length, body), reflecting whatever edits
// CodeRewriter has applied to its code/exceptionTable/stackMapTable fields.
// Sub-attributes this package never interprets (otherAttrs) are re-emitted
// byte-for-byte from their captured raw form.
func encodeCodeAttr(ca *codeAttr, pool *constantpool.Pool) ([]byte, error) {
	var body []byte
	body = appendU2(body, ca.maxStack)
	body = appendU2(body, ca.maxLocals)
	body = appendU4(body, uint32(len(ca.code)))
	body = append(body, ca.code...)

	body = appendU2(body, uint16(len(ca.exceptionTable)))
	for _, row := range ca.exceptionTable {
		body = appendU2(body, row.startPC)
		body = appendU2(body, row.endPC)
		body = appendU2(body, row.handlerPC)
		body = appendU2(body, row.catchType)
	}

	subAttrCount := len(ca.lineNumberTables) + len(ca.localVariableTables) +
		len(ca.localVarTypeTables) + len(ca.otherAttrs)
	if ca.hasStackMapTable {
		subAttrCount++
	}
	body = appendU2(body, uint16(subAttrCount))

	for _, rows := range ca.lineNumberTables {
		nameIdx := pool.AddUtf8("LineNumberTable")
		var sub []byte
		sub = appendU2(sub, uint16(len(rows)))
		for _, r := range rows {
			sub = appendU2(sub, r.startPC)
			sub = appendU2(sub, r.lineNumber)
		}
		body = appendU2(body, nameIdx)
		body = appendU4(body, uint32(len(sub)))
		body = append(body, sub...)
	}
	for _, rows := range ca.localVariableTables {
		body = appendLocalVarSubAttr(body, pool, "LocalVariableTable", rows)
	}
	for _, rows := range ca.localVarTypeTables {
		body = appendLocalVarSubAttr(body, pool, "LocalVariableTypeTable", rows)
	}
	if ca.hasStackMapTable {
		nameIdx := pool.AddUtf8("StackMapTable")
		var sub []byte
		sub = appendU2(sub, uint16(len(ca.stackMapTable)))
		for i := range ca.stackMapTable {
			frame, err := encodeStackMapFrame(&ca.stackMapTable[i])
			if err != nil {
				return nil, err
			}
			sub = append(sub, frame...)
		}
		body = appendU2(body, nameIdx)
		body = appendU4(body, uint32(len(sub)))
		body = append(body, sub...)
	}
	for _, raw := range ca.otherAttrs {
		body = appendU2(body, raw.nameIndex)
		body = appendU4(body, uint32(len(raw.data)))
		body = append(body, raw.data...)
	}

	var out []byte
	out = appendU2(out, ca.nameIndex)
	out = appendU4(out, uint32(len(body)))
	out = append(out, body...)
	return out, nil
}

func appendLocalVarSubAttr(dst []byte, pool *constantpool.Pool, attrName string, rows []localVarRow) []byte {
	nameIdx := pool.AddUtf8(attrName)
	var sub []byte
	sub = appendU2(sub, uint16(len(rows)))
	for _, r := range rows {
		sub = appendU2(sub, r.startPC)
		sub = appendU2(sub, r.length)
		sub = appendU2(sub, r.nameIndex)
		sub = appendU2(sub, r.typeIndex)
		sub = appendU2(sub, r.index)
	}
	dst = appendU2(dst, nameIdx)
	dst = appendU4(dst, uint32(len(sub)))
	return append(dst, sub...)
}

// encodeStackMapFrame serializes f, re-deriving the implicit tag from
// offsetDelta for the compact forms (same_frame/same_locals_1_stack_item_frame)
// and erroring if a compact frame's offset has grown past what its tag can
// represent without having been promoted first (promoteFirstFrame's job).
func encodeStackMapFrame(f *stackMapFrame) ([]byte, error) {
	if !f.explicitOffset {
		if f.offsetDelta <= 63 && f.tag <= 63 {
			return append([]byte{byte(f.offsetDelta)}, f.afterOffset...), nil
		}
		if f.offsetDelta <= 63 && f.tag >= 64 && f.tag <= 127 {
			return append([]byte{byte(64 + f.offsetDelta)}, f.afterOffset...), nil
		}
		return nil, classFormatf("stack map frame offset %d overflowed its compact tag %d without promotion", f.offsetDelta, f.tag)
	}
	out := []byte{f.tag}
	out = appendU2(out, f.offsetDelta)
	out = append(out, f.afterOffset...)
	return out, nil
}

// promoteFirstFrame widens frame's encoding to an explicit-offset form if
// necessary so it can represent newOffsetDelta (spec §4.8.3: "StackMapTable
// first-frame tag promotion"). Only ever called on stackMapTable[0], since
// every later frame's offset_delta is already relative to the previous
// frame and is unaffected by bytes inserted before the method's first
// instruction. Returns the number of bytes this promotion grows the
// attribute by (0 if no promotion was needed).
func promoteFirstFrame(f *stackMapFrame, newOffsetDelta uint16) int {
	if f.explicitOffset {
		f.offsetDelta = newOffsetDelta
		return 0
	}
	if newOffsetDelta <= 63 && f.tag <= 63 {
		f.offsetDelta = newOffsetDelta
		return 0
	}
	if newOffsetDelta <= 63 && f.tag >= 64 && f.tag <= 127 {
		f.offsetDelta = newOffsetDelta
		return 0
	}
	// Promote: same_frame -> same_frame_extended (251); same_locals_1_stack_item_frame
	// -> same_locals_1_stack_item_frame_extended (247). Both add a u2
	// offset_delta field where none existed before (growth +2); the tag
	// byte itself is unchanged in size.
	if f.tag <= 63 {
		f.tag = 251
	} else {
		f.tag = 247
	}
	f.explicitOffset = true
	f.offsetDelta = newOffsetDelta
	return 2
}
