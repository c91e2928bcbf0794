/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package constantpool

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/cojen/boxtin/src/memberref"
	"github.com/cojen/boxtin/src/opcodes"
)

// AddWithStaticSignature adds (reusing if present) a Methodref or
// InterfaceMethodref entry naming ref's owner and name but with the
// static-compatible descriptor CompatibleMethodDescriptor synthesizes for
// op — the shape CodeRewriter needs at a caller site once it rewrites an
// instance invoke into an invokestatic against a same-named proxy (spec
// §4.8.3: "the replacement invoke's descriptor is the receiver-prepended
// one, not the original"). Field-access kinds synthesize the matching
// Methodref shape too, since a proxied field access is always rewritten as
// a call to a generated accessor method, never left as a direct field
// instruction.
func (p *Pool) AddWithStaticSignature(op opcodes.Kind, ref memberref.MemberRef) uint16 {
	descriptor := ref.CompatibleMethodDescriptor(op)
	if op == opcodes.KindInvokeInterface {
		return p.AddInterfaceMethodRef(ref.OwnerClass(), ref.Name(), descriptor)
	}
	return p.AddMethodRef(ref.OwnerClass(), ref.Name(), descriptor)
}

// AddUniqueMethod allocates a synthetic method name of the form "$" followed
// by decimal digits — "$" is not a legal leading character a Java compiler
// ever emits for a method name, so it can never collide with a real method,
// only with another synthetic name this same transformer generated. taken
// reports whether a candidate name is already in use on the target class
// (declared or previously synthesized); AddUniqueMethod widens the digit
// count and reseeds until taken says no, then interns the name and
// descriptor as Utf8 entries and returns the name plus both indices.
//
// The seed comes from a random UUID rather than a counter, per spec §4.9's
// requirement that synthetic names not be predictable from the class being
// transformed: a fixed counter starting at "$0" would let an attacker who
// can submit a crafted class pre-declare the name a future transformation
// will pick.
func (p *Pool) AddUniqueMethod(descriptor string, taken func(name string) bool) (name string, nameIndex, descIndex uint16) {
	digits := 4
	for attempt := 0; attempt < 64; attempt++ {
		candidate := "$" + randomDigits(digits)
		if !taken(candidate) {
			name = candidate
			break
		}
		// widen every 8 failed attempts so pathological collision rates
		// (tests exercising this deliberately) still terminate quickly.
		if attempt > 0 && attempt%8 == 0 {
			digits++
		}
	}
	if name == "" {
		// taken() rejected every candidate across all attempts; fall back
		// to a wide enough name that collision is astronomically unlikely.
		name = "$" + randomDigits(digits+8)
	}
	nameIndex = p.AddUtf8(name)
	descIndex = p.AddUtf8(descriptor)
	p.syntheticSeq++
	return name, nameIndex, descIndex
}

// randomDigits returns n decimal digits derived from a fresh random UUID.
func randomDigits(n int) string {
	id := uuid.New()
	// Fold the 128 random bits down to a decimal string by treating the
	// first 8 bytes as an unsigned integer; %d then truncated/padded to n
	// digits gives a uniformly-distributed digit string without pulling in
	// a bignum dependency for 128-bit math.
	var v uint64
	for _, b := range id[:8] {
		v = v<<8 | uint64(b)
	}
	s := strconv.FormatUint(v, 10)
	if len(s) >= n {
		return s[len(s)-n:]
	}
	for len(s) < n {
		s = "0" + s
	}
	return s
}
