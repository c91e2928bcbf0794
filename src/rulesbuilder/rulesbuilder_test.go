/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package rulesbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cojen/boxtin/src/rules"
)

func TestFluentChainBuildsExpectedDecisions(t *testing.T) {
	b := New().AllowAll()
	b.ForPackage("java/lang/invoke").
		ForClass("MethodHandles").
		DenyMethod("lookup", rules.DenyTarget, rules.DenyActionThrow, "java/lang/SecurityException")

	r := b.Build()
	assert.Equal(t, rules.Allowed, r.Lookup("java/util", "List", "add", "(Ljava/lang/Object;)Z"))
	got := r.Lookup("java/lang/invoke", "MethodHandles", "lookup", "()Ljava/lang/invoke/MethodHandles$Lookup;")
	assert.False(t, got.IsAllow())
	assert.Equal(t, rules.DenyTarget, got.Kind)
	assert.Equal(t, "java/lang/SecurityException", got.ExceptionName)
}

func TestAllowVariantNarrowsADeniedMethod(t *testing.T) {
	b := New().AllowAll()
	b.ForPackage("java/lang").
		ForClass("Runtime").
		DenyMethod("exec", rules.DenyCaller, rules.DenyActionThrow, "java/lang/SecurityException").
		AllowVariant("exec", "(Ljava/lang/String;)Ljava/lang/Process;")

	r := b.Build()
	assert.True(t, r.Lookup("java/lang", "Runtime", "exec", "(Ljava/lang/String;)Ljava/lang/Process;").IsAllow())
	got := r.Lookup("java/lang", "Runtime", "exec", "([Ljava/lang/String;)Ljava/lang/Process;")
	assert.False(t, got.IsAllow())
	assert.Equal(t, rules.DenyCaller, got.Kind)
}

func TestConstructorDenyAlwaysEnforcesAtTarget(t *testing.T) {
	b := New().AllowAll()
	b.ForPackage("java/lang").
		ForClass("Runtime").
		DenyMethod("<init>", rules.DenyCaller, rules.DenyActionThrow, "java/lang/SecurityException")

	r := b.Build()
	got := r.Lookup("java/lang", "Runtime", "<init>", "()V")
	assert.Equal(t, rules.DenyTarget, got.Kind)
}

type fakeLookup struct {
	known map[string]bool
}

func (f fakeLookup) HasMember(owner, name, descriptor string) bool {
	return f.known[owner+"#"+name+"#"+descriptor] || (descriptor == "" && f.known[owner+"#"+name+"#any"])
}

func TestValidateReportsUnknownMember(t *testing.T) {
	b := New().AllowAll()
	b.ForPackage("java/lang").
		ForClass("Runtime").
		DenyMethod("exec", rules.DenyTarget, rules.DenyActionThrow, "java/lang/SecurityException")

	lookup := fakeLookup{known: map[string]bool{}}
	errs := b.Validate(lookup)
	require.Len(t, errs, 1)
}

func TestValidatePassesForKnownMember(t *testing.T) {
	b := New().AllowAll()
	b.ForPackage("java/lang").
		ForClass("Runtime").
		DenyMethod("exec", rules.DenyTarget, rules.DenyActionThrow, "java/lang/SecurityException")

	lookup := fakeLookup{known: map[string]bool{"java/lang/Runtime#exec#any": true}}
	errs := b.Validate(lookup)
	assert.Empty(t, errs)
}
