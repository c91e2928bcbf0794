/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package constantpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cojen/boxtin/src/bytebuf"
	"github.com/cojen/boxtin/src/memberref"
	"github.com/cojen/boxtin/src/opcodes"
)

// buildSamplePool hand-encodes a 5-entry constant pool:
//
//	[1] Utf8    "java/lang/Object"
//	[2] Class   -> [1]
//	[3] Utf8    "toString"
//	[4] Utf8    "()Ljava/lang/String;"
//	[5] NameAndType -> [3],[4]
func buildSamplePool(t *testing.T) []byte {
	t.Helper()
	w := bytebuf.NewEmpty(64)
	w.WriteU2(6) // constant_pool_count (entries 1..5)

	w.WriteU1(byte(TagUtf8))
	w.WriteU2(uint16(len(bytebuf.EncodeModifiedUtf8("java/lang/Object"))))
	w.WriteUtfModified("java/lang/Object")

	w.WriteU1(byte(TagClass))
	w.WriteU2(1)

	w.WriteU1(byte(TagUtf8))
	w.WriteU2(uint16(len(bytebuf.EncodeModifiedUtf8("toString"))))
	w.WriteUtfModified("toString")

	w.WriteU1(byte(TagUtf8))
	w.WriteU2(uint16(len(bytebuf.EncodeModifiedUtf8("()Ljava/lang/String;"))))
	w.WriteUtfModified("()Ljava/lang/String;")

	w.WriteU1(byte(TagNameAndType))
	w.WriteU2(3)
	w.WriteU2(4)

	return w.Bytes()
}

func TestDecodeAndAccessors(t *testing.T) {
	p, err := Decode(bytebuf.New(buildSamplePool(t)))
	require.NoError(t, err)
	assert.Equal(t, uint16(6), p.Count())

	name, err := p.ClassNameAt(2)
	require.NoError(t, err)
	assert.Equal(t, "java/lang/Object", name)

	methodName, descriptor, err := p.NameAndTypeAt(5)
	require.NoError(t, err)
	assert.Equal(t, "toString", methodName)
	assert.Equal(t, "()Ljava/lang/String;", descriptor)
}

func TestUtf8AtRejectsWrongTag(t *testing.T) {
	p, err := Decode(bytebuf.New(buildSamplePool(t)))
	require.NoError(t, err)
	_, err = p.Utf8At(2) // index 2 is a Class, not a Utf8
	assert.Error(t, err)
}

func minimalPool(t *testing.T) *Pool {
	t.Helper()
	w := bytebuf.NewEmpty(8)
	w.WriteU2(1) // count=1: no entries, only the unused index 0
	p, err := Decode(bytebuf.New(w.Bytes()))
	require.NoError(t, err)
	return p
}

func TestAddUtf8Dedup(t *testing.T) {
	p := minimalPool(t)
	i1 := p.AddUtf8("hello")
	i2 := p.AddUtf8("hello")
	assert.Equal(t, i1, i2)

	i3 := p.AddUtf8("world")
	assert.NotEqual(t, i1, i3)
}

func TestAddClassDedup(t *testing.T) {
	p := minimalPool(t)
	i1 := p.AddClass("java/lang/String")
	i2 := p.AddClass("java/lang/String")
	assert.Equal(t, i1, i2)

	name, err := p.ClassNameAt(i1)
	require.NoError(t, err)
	assert.Equal(t, "java/lang/String", name)
}

func TestAddMethodRefDedup(t *testing.T) {
	p := minimalPool(t)
	i1 := p.AddMethodRef("java/lang/System", "exit", "(I)V")
	i2 := p.AddMethodRef("java/lang/System", "exit", "(I)V")
	assert.Equal(t, i1, i2)

	i3 := p.AddMethodRef("java/lang/System", "exit", "(I)I")
	assert.NotEqual(t, i1, i3)

	ref, err := p.MethodRefAt(i1)
	require.NoError(t, err)
	assert.Equal(t, "java/lang/System", ref.OwnerClass())
	assert.Equal(t, "exit", ref.Name())
	assert.Equal(t, "(I)V", ref.Descriptor())
}

func TestExtendDeduplicatesPreexistingEntries(t *testing.T) {
	p, err := Decode(bytebuf.New(buildSamplePool(t)))
	require.NoError(t, err)

	// "java/lang/Object" already exists at index 1/2; AddClass must reuse it.
	idx := p.AddClass("java/lang/Object")
	assert.Equal(t, uint16(2), idx)
}

func TestAddLongAndDoubleLeaveTombstone(t *testing.T) {
	p := minimalPool(t)
	before := p.Count()
	idx := p.AddLong(123456789012345)
	assert.Equal(t, before, idx)
	assert.Equal(t, before+2, p.Count()) // entry + tombstone

	_, ok := p.At(idx + 1)
	assert.False(t, ok, "the slot after a wide entry must be unaddressable")

	idx2 := p.AddDouble(3.25)
	assert.NotEqual(t, idx, idx2)
}

func TestGrowthCountsAppendedEntries(t *testing.T) {
	p, err := Decode(bytebuf.New(buildSamplePool(t)))
	require.NoError(t, err)
	assert.Equal(t, 0, p.Growth())

	p.AddUtf8("brand-new")
	assert.Equal(t, 1, p.Growth())
}

func TestWriteToRoundTrip(t *testing.T) {
	original := buildSamplePool(t)
	p, err := Decode(bytebuf.New(original))
	require.NoError(t, err)

	out := bytebuf.NewEmpty(len(original))
	p.WriteTo(out)

	reDecoded, err := Decode(bytebuf.New(out.Bytes()))
	require.NoError(t, err)
	name, err := reDecoded.ClassNameAt(2)
	require.NoError(t, err)
	assert.Equal(t, "java/lang/Object", name)
}

func TestAddWithStaticSignaturePrependsReceiver(t *testing.T) {
	p := minimalPool(t)
	ref := memberref.New("java/util/List", "add", "(Ljava/lang/Object;)Z")
	idx := p.AddWithStaticSignature(opcodes.KindInvokeInterface, ref)

	got, err := p.MethodRefAt(idx)
	require.NoError(t, err)
	assert.Equal(t, "(Ljava/util/List;Ljava/lang/Object;)Z", got.Descriptor())
}

func TestAddUniqueMethodAvoidsTakenNames(t *testing.T) {
	p := minimalPool(t)
	taken := map[string]bool{}

	name1, nameIdx1, descIdx1 := p.AddUniqueMethod("()V", func(n string) bool { return taken[n] })
	taken[name1] = true
	name2, nameIdx2, _ := p.AddUniqueMethod("()V", func(n string) bool { return taken[n] })

	assert.NotEqual(t, name1, name2)
	assert.NotEqual(t, nameIdx1, nameIdx2)
	assert.NotEqual(t, uint16(0), descIdx1)
	assert.True(t, len(name1) > 1 && name1[0] == '$')
}
