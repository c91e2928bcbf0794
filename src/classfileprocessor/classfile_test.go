/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classfileprocessor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cojen/boxtin/src/bytebuf"
)

// buildMinimalClass hand-encodes a.B with super java/lang/Object, no
// interfaces, no fields, and one method "run" "()V" whose Code attribute is
// a single RETURN instruction (max_stack=0, max_locals=1, no exceptions, no
// attributes).
func buildMinimalClass(t *testing.T) []byte {
	t.Helper()
	w := bytebuf.NewEmpty(256)
	w.WriteU4(0xCAFEBABE)
	w.WriteU2(0)
	w.WriteU2(61)

	// [1] Utf8 "a/B" [2] Class->1 [3] Utf8 "java/lang/Object" [4] Class->3
	// [5] Utf8 "run" [6] Utf8 "()V" [7] Utf8 "Code"
	w.WriteU2(8)
	writeUtf8(w, "a/B")
	writeClass(w, 1)
	writeUtf8(w, "java/lang/Object")
	writeClass(w, 3)
	writeUtf8(w, "run")
	writeUtf8(w, "()V")
	writeUtf8(w, "Code")

	w.WriteU2(0x0021) // access_flags
	w.WriteU2(2)       // this_class
	w.WriteU2(4)       // super_class

	w.WriteU2(0) // interfaces_count
	w.WriteU2(0) // fields_count

	w.WriteU2(1) // methods_count
	w.WriteU2(0x0001) // ACC_PUBLIC
	w.WriteU2(5)       // name "run"
	w.WriteU2(6)       // descriptor "()V"
	w.WriteU2(1)       // attributes_count
	// Code attribute
	w.WriteU2(7) // name "Code"
	codeBody := bytebuf.NewEmpty(16)
	codeBody.WriteU2(0) // max_stack
	codeBody.WriteU2(1) // max_locals
	codeBody.WriteU4(1) // code_length
	codeBody.WriteU1(0xB1) // RETURN
	codeBody.WriteU2(0)    // exception_table_length
	codeBody.WriteU2(0)    // attributes_count
	w.WriteU4(uint32(len(codeBody.Bytes())))
	w.WriteBytes(codeBody.Bytes())

	w.WriteU2(0) // class attributes_count

	return w.Bytes()
}

func writeUtf8(w *bytebuf.ByteBuf, s string) {
	w.WriteU1(1)
	w.WriteU2(uint16(len(bytebuf.EncodeModifiedUtf8(s))))
	w.WriteUtfModified(s)
}

func writeClass(w *bytebuf.ByteBuf, nameIdx uint16) {
	w.WriteU1(7)
	w.WriteU2(nameIdx)
}

func TestDecodeClassFileHeaderAndMethod(t *testing.T) {
	cf, err := decodeClassFile(bytebuf.New(buildMinimalClass(t)))
	require.NoError(t, err)
	assert.Equal(t, "a/B", cf.thisClassName)
	require.Len(t, cf.methods, 1)
	m := cf.methods[0]
	assert.Equal(t, "run", m.name)
	assert.Equal(t, "()V", m.descriptor)
	require.NotNil(t, m.code)
	assert.Equal(t, uint16(1), m.code.maxLocals)
}

func TestDecodeClassFileRejectsBadMagic(t *testing.T) {
	data := buildMinimalClass(t)
	data[0] = 0
	_, err := decodeClassFile(bytebuf.New(data))
	assert.Error(t, err)
}
