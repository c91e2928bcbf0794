/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package memberref implements MemberRef (spec §4.3): a semantic triple of
// (owner-class binary name, member name, descriptor) backed by a shared
// byte buffer, with the package/plain-class slicing, the descriptor
// synthesis used by proxy generation, and the cache-key encoding the
// Checker relies on. It generalizes the owner/name/type triples teacher
// threads through CPutils.go's GetMethInfoFromCPmethref (three separate
// strings pulled out of the constant pool) into one addressable value.
package memberref

import (
	"strings"

	"github.com/cojen/boxtin/src/opcodes"
)

// MemberRef identifies a target: the class that declares it, its name, and
// its descriptor. Per spec, it is a "zero-copy, mutable view into a byte
// buffer" — here realized as a single backing byte slice sliced three ways,
// so a MemberRef built directly off constant-pool UTF8 bytes never copies.
type MemberRef struct {
	backing []byte
	ownerOff, ownerLen int
	nameOff, nameLen   int
	descOff, descLen   int
}

// New builds a MemberRef that owns a private copy of owner/name/desc,
// concatenated into one backing array. Most callers that already have the
// three strings (e.g. from a decoded MethodRef) use this; FromBacking is
// for the zero-copy case.
func New(owner, name, descriptor string) MemberRef {
	backing := make([]byte, 0, len(owner)+len(name)+len(descriptor))
	backing = append(backing, owner...)
	ownerLen := len(owner)
	backing = append(backing, name...)
	nameLen := len(name)
	backing = append(backing, descriptor...)
	descLen := len(descriptor)
	return MemberRef{
		backing:  backing,
		ownerOff: 0, ownerLen: ownerLen,
		nameOff: ownerLen, nameLen: nameLen,
		descOff: ownerLen + nameLen, descLen: descLen,
	}
}

// FromBacking builds a MemberRef as a view into an existing buffer at the
// given offsets, without copying — the zero-copy path spec §4.3 calls for
// when the triple is sliced directly out of constant-pool UTF8 bytes.
func FromBacking(backing []byte, ownerOff, ownerLen, nameOff, nameLen, descOff, descLen int) MemberRef {
	return MemberRef{
		backing:  backing,
		ownerOff: ownerOff, ownerLen: ownerLen,
		nameOff: nameOff, nameLen: nameLen,
		descOff: descOff, descLen: descLen,
	}
}

// OwnerClass returns the binary class name (e.g. "java/lang/System").
func (m MemberRef) OwnerClass() string {
	return string(m.backing[m.ownerOff : m.ownerOff+m.ownerLen])
}

// Name returns the member name, e.g. "exit" or "<init>".
func (m MemberRef) Name() string {
	return string(m.backing[m.nameOff : m.nameOff+m.nameLen])
}

// Descriptor returns the field or method descriptor.
func (m MemberRef) Descriptor() string {
	return string(m.backing[m.descOff : m.descOff+m.descLen])
}

// Package returns the owner class's package: the owner-class slice up to
// (not including) the last '/'. A class in the unnamed package returns "".
func (m MemberRef) Package() string {
	owner := m.OwnerClass()
	if i := strings.LastIndexByte(owner, '/'); i >= 0 {
		return owner[:i]
	}
	return ""
}

// PlainClass returns the owner class's simple name: everything after the
// last '/'.
func (m MemberRef) PlainClass() string {
	owner := m.OwnerClass()
	if i := strings.LastIndexByte(owner, '/'); i >= 0 {
		return owner[i+1:]
	}
	return owner
}

// IsConstructor reports whether this ref names "<init>".
func (m MemberRef) IsConstructor() bool {
	return m.Name() == "<init>"
}

// EncodeFull concatenates owner ';' name ';' descriptor into a single byte
// array, the cache key spec §4.3/§4.6 uses for Checker's four result caches
// so a lookup never needs to reallocate three separate strings.
func (m MemberRef) EncodeFull() []byte {
	owner, name, desc := m.OwnerClass(), m.Name(), m.Descriptor()
	out := make([]byte, 0, len(owner)+len(name)+len(desc)+2)
	out = append(out, owner...)
	out = append(out, ';')
	out = append(out, name...)
	out = append(out, ';')
	out = append(out, desc...)
	return out
}

// EqualsFull compares against a previously produced EncodeFull() result
// without reallocating this ref's own encoding.
func (m MemberRef) EqualsFull(encoded []byte) bool {
	owner, name, desc := m.OwnerClass(), m.Name(), m.Descriptor()
	need := len(owner) + 1 + len(name) + 1 + len(desc)
	if len(encoded) != need {
		return false
	}
	i := 0
	if string(encoded[i:i+len(owner)]) != owner {
		return false
	}
	i += len(owner)
	if encoded[i] != ';' {
		return false
	}
	i++
	if string(encoded[i:i+len(name)]) != name {
		return false
	}
	i += len(name)
	if encoded[i] != ';' {
		return false
	}
	i++
	return string(encoded[i:]) == desc
}

// FullHash is a cheap, non-cryptographic hash of EncodeFull(), for callers
// that want a sharded cache key without holding the whole byte slice.
func (m MemberRef) FullHash() uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for _, b := range m.EncodeFull() {
		h ^= uint64(b)
		h *= prime64
	}
	return h
}

// WithOwner returns a copy of this MemberRef naming a different owner
// class but the same name/descriptor — used by Checker's supertype walk
// (spec §4.6: "recurse with the owner class replaced by the supertype's
// name, same (name, desc)").
func (m MemberRef) WithOwner(owner string) MemberRef {
	return New(owner, m.Name(), m.Descriptor())
}

// CompatibleMethodDescriptor synthesizes a descriptor that mirrors the
// operand-stack effect of the given opcode kind against this member (spec
// §4.3): INVOKEVIRTUAL/SPECIAL/INTERFACE produce "(L<owner>;<args>)<ret>"
// (receiver prepended), INVOKESTATIC returns the descriptor unchanged,
// PUTSTATIC/PUTFIELD produce a setter shape, and GETSTATIC/GETFIELD a
// getter shape.
func (m MemberRef) CompatibleMethodDescriptor(kind opcodes.Kind) string {
	switch kind {
	case opcodes.KindInvokeStatic:
		return m.Descriptor()
	case opcodes.KindInvokeVirtual, opcodes.KindInvokeSpecial, opcodes.KindInvokeInterface:
		return prependReceiver(m.OwnerClass(), m.Descriptor())
	case opcodes.KindGetStatic:
		return "()" + m.Descriptor()
	case opcodes.KindGetField:
		return "(L" + m.OwnerClass() + ";)" + m.Descriptor()
	case opcodes.KindPutStatic:
		return "(" + m.Descriptor() + ")V"
	case opcodes.KindPutField:
		return "(L" + m.OwnerClass() + ";" + m.Descriptor() + ")V"
	}
	return m.Descriptor()
}

// prependReceiver inserts "L<owner>;" as the first parameter of a method
// descriptor "(args)ret", producing "(L<owner>;args)ret".
func prependReceiver(owner, descriptor string) string {
	if len(descriptor) == 0 || descriptor[0] != '(' {
		return descriptor
	}
	return "(L" + owner + ";" + descriptor[1:]
}
