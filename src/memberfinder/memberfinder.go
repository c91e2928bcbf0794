/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package memberfinder implements MemberFinder (spec §4.5): an immutable
// index of the public/protected members a class declares (not inherited),
// keyed by (name, descriptor), plus the one descriptor-agnostic exception
// the spec carves out for MethodHandle/VarHandle's signature-polymorphic
// methods. It is grounded on the declared-member bookkeeping teacher's
// ParsedClass keeps in classloader.go (a flat slice of fields/methods
// populated once at class-parse time and never mutated afterward).
package memberfinder

import (
	"strings"

	"github.com/cojen/boxtin/src/memberref"
)

// Member is one public or protected field or method declared directly on a
// class (constructors included, named "<init>").
type Member struct {
	Name       string
	Descriptor string
}

// signaturePolymorphicOwners are the two JVM types whose declared methods
// can be signature-polymorphic, per spec §4.5.
var signaturePolymorphicOwners = map[string]bool{
	"java/lang/invoke/MethodHandle": true,
	"java/lang/invoke/VarHandle":    true,
}

// Finder is the immutable per-class member index.
type Finder struct {
	owner string
	exact map[string]bool // key: name + ";" + descriptor
	// polymorphic holds the names (e.g. "invokeExact", "invoke", "get",
	// "set", ...) declared with a single variadic-Object-array parameter,
	// for which HasMember must match any caller descriptor except
	// invokeWithArguments (spec §4.5: "excluding invokeWithArguments,
	// which is treated normally").
	polymorphic map[string]bool
}

// New builds a Finder for owner from its declared public/protected members.
// Callers are expected to have already filtered to public/protected
// visibility (spec §4.5: "every public or protected member"); Finder itself
// does not see access flags.
func New(owner string, declared []Member) *Finder {
	f := &Finder{
		owner: owner,
		exact: make(map[string]bool, len(declared)),
	}
	polymorphicOwner := signaturePolymorphicOwners[owner]
	for _, m := range declared {
		if polymorphicOwner && m.Name != "invokeWithArguments" && isVariadicObjectArray(m.Descriptor) {
			if f.polymorphic == nil {
				f.polymorphic = make(map[string]bool)
			}
			f.polymorphic[m.Name] = true
			continue
		}
		f.exact[m.Name+";"+m.Descriptor] = true
	}
	return f
}

// isVariadicObjectArray reports whether descriptor declares exactly one
// parameter, of type Object[], per spec §4.5's "methods whose only declared
// parameter is a variadic array".
func isVariadicObjectArray(descriptor string) bool {
	params, _ := memberref.ParseMethodDescriptor(descriptor)
	if len(params) != 1 {
		return false
	}
	return strings.HasPrefix(descriptor, "([Ljava/lang/Object;)")
}

// HasMember reports whether owner declares (name, descriptor): an exact
// match, or — for a signature-polymorphic name on MethodHandle/VarHandle —
// a match against any descriptor at all.
func (f *Finder) HasMember(name, descriptor string) bool {
	if f == nil {
		return false
	}
	if f.exact[name+";"+descriptor] {
		return true
	}
	return f.polymorphic[name]
}

// HasAnyOverload reports whether owner declares any member named name,
// under any descriptor — used by RulesBuilder.Validate for whole-method
// rules that don't narrow to one overload.
func (f *Finder) HasAnyOverload(name string) bool {
	if f == nil {
		return false
	}
	if f.polymorphic[name] {
		return true
	}
	prefix := name + ";"
	for key := range f.exact {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// Owner returns the binary class name this Finder was built for.
func (f *Finder) Owner() string { return f.owner }
