/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupFallsBackToModuleDefault(t *testing.T) {
	b := NewBuilder()
	b.SetDefault(Decision{Kind: Allow})
	r := b.Build()

	got := r.Lookup("java/lang", "System", "exit", "(I)V")
	assert.Equal(t, Decision{Kind: Allow}, got)
}

func TestNilRulesDeniesEverything(t *testing.T) {
	var r *Rules
	got := r.Lookup("a", "B", "c", "()V")
	assert.False(t, got.IsAllow())
	assert.Equal(t, DenyTarget, got.Kind)
}

func TestPackageDefaultOverridesModuleDefault(t *testing.T) {
	b := NewBuilder()
	b.SetDefault(Decision{Kind: Allow})
	b.SetPackageDefault("java/lang/invoke", Decision{Kind: DenyTarget, Action: DenyActionThrow, ExceptionName: "java/lang/SecurityException"})
	r := b.Build()

	assert.Equal(t, Decision{Kind: Allow}, r.Lookup("java/util", "List", "add", "(Ljava/lang/Object;)Z"))
	assert.Equal(t, Decision{Kind: DenyTarget, Action: DenyActionThrow, ExceptionName: "java/lang/SecurityException"},
		r.Lookup("java/lang/invoke", "MethodHandles", "lookup", "()Ljava/lang/invoke/MethodHandles$Lookup;"))
}

func TestDescriptorOverrideNarrowsMethodDefault(t *testing.T) {
	b := NewBuilder()
	b.SetDefault(Decision{Kind: Allow})
	b.SetMethodDefault("java/lang", "Runtime", "exec", Decision{Kind: DenyCaller, Action: DenyActionThrow, ExceptionName: "java/lang/SecurityException"})
	b.SetDescriptor("java/lang", "Runtime", "exec", "(Ljava/lang/String;)Ljava/lang/Process;", Decision{Kind: Allow})
	r := b.Build()

	assert.Equal(t, Decision{Kind: Allow}, r.Lookup("java/lang", "Runtime", "exec", "(Ljava/lang/String;)Ljava/lang/Process;"))
	assert.Equal(t, Decision{Kind: DenyCaller, Action: DenyActionThrow, ExceptionName: "java/lang/SecurityException"},
		r.Lookup("java/lang", "Runtime", "exec", "([Ljava/lang/String;)Ljava/lang/Process;"))
}

func TestClassDefaultInheritsFromPackage(t *testing.T) {
	b := NewBuilder()
	b.SetDefault(Decision{Kind: Allow})
	b.SetPackageDefault("java/io", Decision{Kind: DenyTarget, Action: DenyActionSkip})
	b.SetClassDefault("java/io", "FileOutputStream", Decision{Kind: Allow})
	r := b.Build()

	assert.Equal(t, Decision{Kind: DenyTarget, Action: DenyActionSkip}, r.Lookup("java/io", "FileInputStream", "read", "()I"))
	assert.Equal(t, Decision{Kind: Allow}, r.Lookup("java/io", "FileOutputStream", "write", "(I)V"))
}

func TestRedundantDescriptorIsPrunedByBuild(t *testing.T) {
	b := NewBuilder()
	b.SetDefault(Decision{Kind: Allow})
	b.SetMethodDefault("p", "C", "m", Decision{Kind: Allow})
	b.SetDescriptor("p", "C", "m", "()V", Decision{Kind: Allow}) // same as method default: prunable
	r := b.Build()

	// Build drops the explicit-but-redundant descriptor entry, and both
	// descriptors still resolve the same way.
	assert.Empty(t, r.packages["p"].classes["C"].methods["m"].descriptors)
	assert.Equal(t, Decision{Kind: Allow}, r.Lookup("p", "C", "m", "()V"))
	assert.Equal(t, Decision{Kind: Allow}, r.Lookup("p", "C", "m", "(I)V"))
}

func TestDefaultAccessor(t *testing.T) {
	b := NewBuilder()
	b.SetDefault(Decision{Kind: DenyTarget, Action: DenyActionThrow, ExceptionName: "java/lang/SecurityException"})
	r := b.Build()
	assert.Equal(t, "java/lang/SecurityException", r.Default().ExceptionName)
}

func TestConstructorLookupCoercesDenyCallerToDenyTarget(t *testing.T) {
	b := NewBuilder()
	b.SetDefault(Decision{Kind: Allow})
	// Bypass rulesbuilder's own ClassBuilder coercion entirely, simulating a
	// DSL or other low-level write path that sets DenyCaller directly on
	// "<init>" — Lookup must still never hand back DenyCaller for a
	// constructor (spec §4.8.2).
	b.SetMethodDefault("p", "C", "<init>", Decision{Kind: DenyCaller, Action: DenyActionThrow, ExceptionName: "java/lang/SecurityException"})
	r := b.Build()

	got := r.Lookup("p", "C", "<init>", "()V")
	assert.Equal(t, DenyTarget, got.Kind)
	assert.Equal(t, "java/lang/SecurityException", got.ExceptionName)
}

func TestConstructorDescriptorOnlyFallsBackToConstructorsDefault(t *testing.T) {
	b := NewBuilder()
	b.SetDefault(Decision{Kind: Allow})
	b.SetConstructorsDefault("p", "C", Decision{Kind: DenyTarget, Action: DenyActionThrow, ExceptionName: "java/lang/SecurityException"})
	// A descriptor-level rule on "<init>" with SetMethodDefault never called
	// for it: the method scope exists but carries no default of its own, so
	// Lookup must fall back to constructorsDefault, not the class's ordinary
	// methodsDefault (which here is still the Allow module default).
	b.SetDescriptor("p", "C", "<init>", "(I)V", Decision{Kind: Allow})
	r := b.Build()

	assert.Equal(t, Decision{Kind: Allow}, r.Lookup("p", "C", "<init>", "(I)V"))
	got := r.Lookup("p", "C", "<init>", "(Ljava/lang/String;)V")
	assert.Equal(t, DenyTarget, got.Kind)
	assert.Equal(t, "java/lang/SecurityException", got.ExceptionName)
}

func TestDenyCallerIsDistinctFromDenyTarget(t *testing.T) {
	b := NewBuilder()
	b.SetDefault(Decision{Kind: Allow})
	b.SetClassDefault("p", "C", Decision{Kind: DenyCaller, Action: DenyActionThrow, ExceptionName: "java/lang/SecurityException"})
	r := b.Build()

	got := r.Lookup("p", "C", "m", "()V")
	assert.Equal(t, DenyCaller, got.Kind)
	assert.NotEqual(t, DenyTarget, got.Kind)
}
