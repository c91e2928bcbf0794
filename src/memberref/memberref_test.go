/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package memberref

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cojen/boxtin/src/opcodes"
)

func TestPackageAndPlainClass(t *testing.T) {
	m := New("java/lang/System", "exit", "(I)V")
	assert.Equal(t, "java/lang", m.Package())
	assert.Equal(t, "System", m.PlainClass())
}

func TestPackageForUnnamedPackageClass(t *testing.T) {
	m := New("Foo", "bar", "()V")
	assert.Equal(t, "", m.Package())
	assert.Equal(t, "Foo", m.PlainClass())
}

func TestIsConstructor(t *testing.T) {
	assert.True(t, New("java/lang/Object", "<init>", "()V").IsConstructor())
	assert.False(t, New("java/lang/Object", "toString", "()Ljava/lang/String;").IsConstructor())
}

func TestEncodeFullAndEqualsFull(t *testing.T) {
	m := New("java/lang/System", "exit", "(I)V")
	encoded := m.EncodeFull()
	assert.True(t, m.EqualsFull(encoded))

	other := New("java/lang/System", "exit", "(I)I")
	assert.False(t, other.EqualsFull(encoded))
}

func TestCompatibleMethodDescriptorInstanceInvoke(t *testing.T) {
	m := New("java/util/List", "add", "(Ljava/lang/Object;)Z")
	got := m.CompatibleMethodDescriptor(opcodes.KindInvokeInterface)
	assert.Equal(t, "(Ljava/util/List;Ljava/lang/Object;)Z", got)
}

func TestCompatibleMethodDescriptorStaticInvokeUnchanged(t *testing.T) {
	m := New("java/lang/System", "exit", "(I)V")
	got := m.CompatibleMethodDescriptor(opcodes.KindInvokeStatic)
	assert.Equal(t, "(I)V", got)
}

func TestCompatibleMethodDescriptorFieldAccess(t *testing.T) {
	m := New("java/lang/System", "out", "Ljava/io/PrintStream;")
	assert.Equal(t, "()Ljava/io/PrintStream;", m.CompatibleMethodDescriptor(opcodes.KindGetStatic))
	assert.Equal(t, "(Ljava/io/PrintStream;)V", m.CompatibleMethodDescriptor(opcodes.KindPutStatic))

	f := New("some/Holder", "value", "I")
	assert.Equal(t, "(Lsome/Holder;)I", f.CompatibleMethodDescriptor(opcodes.KindGetField))
	assert.Equal(t, "(Lsome/Holder;I)V", f.CompatibleMethodDescriptor(opcodes.KindPutField))
}

func TestParseMethodDescriptor(t *testing.T) {
	params, ret := ParseMethodDescriptor("(IJLjava/lang/String;[D)Z")
	assert.Equal(t, []byte{'I', 'L', 'A', 'A'}, []byte{params[0].Kind, params[1].Kind, params[2].Kind, params[3].Kind})
	assert.Equal(t, byte('I'), ret) // Z (boolean) widens to int category
}

func TestParseMethodDescriptorVoidNoArgs(t *testing.T) {
	params, ret := ParseMethodDescriptor("()V")
	assert.Empty(t, params)
	assert.Equal(t, byte('V'), ret)
}
