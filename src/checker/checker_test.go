/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package checker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cojen/boxtin/src/agent"
	"github.com/cojen/boxtin/src/memberfinder"
	"github.com/cojen/boxtin/src/memberref"
	"github.com/cojen/boxtin/src/rules"
	"github.com/cojen/boxtin/src/rulesbuilder"
)

func classGraph(summaries map[string]agent.ClassSummary) agent.SupertypeLookup {
	return func(name string) (agent.ClassSummary, bool) {
		s, ok := summaries[name]
		return s, ok
	}
}

func TestSameModuleFastPathAllowsWithoutConsultingRules(t *testing.T) {
	rb := rulesbuilder.New().DenyAll(rules.DenyTarget, rules.DenyActionThrow, "java/lang/SecurityException")
	r := rb.Build()

	graph := classGraph(map[string]agent.ClassSummary{
		"app/Widget": {Module: "app.module"},
	})
	c := New("app.module", r, graph)

	ref := memberref.New("app/Widget", "doStuff", "()V")
	got := c.IsMethodAllowed(ref)
	assert.True(t, got.IsAllow())
}

func TestUnresolvedClassIsDeniedUncached(t *testing.T) {
	r := rulesbuilder.New().AllowAll().Build()
	graph := classGraph(map[string]agent.ClassSummary{})
	c := New("caller.module", r, graph)

	ref := memberref.New("missing/Class", "m", "()V")
	got := c.IsMethodAllowed(ref)
	assert.False(t, got.IsAllow())
}

func TestDeclaredOnlyChecksExactOwner(t *testing.T) {
	rb := rulesbuilder.New().AllowAll()
	rb.ForPackage("java/lang").ForClass("Runtime").
		DenyMethod("exec", rules.DenyTarget, rules.DenyActionThrow, "java/lang/SecurityException")
	r := rb.Build()

	runtimeFinder := memberfinder.New("java/lang/Runtime", []memberfinder.Member{
		{Name: "exec", Descriptor: "(Ljava/lang/String;)Ljava/lang/Process;"},
	})
	graph := classGraph(map[string]agent.ClassSummary{
		"java/lang/Runtime": {Module: "java.base", Declared: runtimeFinder},
	})
	c := New("app.module", r, graph)

	ref := memberref.New("java/lang/Runtime", "exec", "(Ljava/lang/String;)Ljava/lang/Process;")
	got := c.IsMethodAllowed(ref)
	assert.False(t, got.IsAllow())
	assert.Equal(t, "java/lang/SecurityException", got.ExceptionName)
}

func TestVirtualWalkFindsAllowOnAncestor(t *testing.T) {
	rb := rulesbuilder.New().DenyAll(rules.DenyTarget, rules.DenyActionThrow, "java/lang/SecurityException")
	rb.ForPackage("app").ForClass("Base").
		AllowMethod("greet")
	r := rb.Build()

	baseFinder := memberfinder.New("app/Base", []memberfinder.Member{
		{Name: "greet", Descriptor: "()V"},
	})
	subFinder := memberfinder.New("app/Sub", nil)

	graph := classGraph(map[string]agent.ClassSummary{
		"app/Sub":  {Module: "java.base", SuperName: "app/Base", Declared: subFinder},
		"app/Base": {Module: "java.base", Declared: baseFinder},
	})
	c := New("caller.module", r, graph)

	ref := memberref.New("app/Sub", "greet", "()V")
	got := c.IsVirtualMethodAllowed(ref)
	assert.True(t, got.IsAllow())
}

func TestVirtualWalkChecksInterfacesAfterSuperclass(t *testing.T) {
	rb := rulesbuilder.New().DenyAll(rules.DenyTarget, rules.DenyActionThrow, "java/lang/SecurityException")
	rb.ForPackage("app").ForClass("Flyable").
		AllowMethod("fly")
	r := rb.Build()

	flyableFinder := memberfinder.New("app/Flyable", []memberfinder.Member{
		{Name: "fly", Descriptor: "()V"},
	})
	birdFinder := memberfinder.New("app/Bird", nil)

	graph := classGraph(map[string]agent.ClassSummary{
		"app/Bird":     {Module: "java.base", InterfaceNames: []string{"app/Flyable"}, Declared: birdFinder},
		"app/Flyable":  {Module: "java.base", Declared: flyableFinder},
	})
	c := New("caller.module", r, graph)

	ref := memberref.New("app/Bird", "fly", "()V")
	got := c.IsVirtualMethodAllowed(ref)
	assert.True(t, got.IsAllow())
}

func TestVirtualWalkDeniesWhenNoAncestorAllows(t *testing.T) {
	rb := rulesbuilder.New().AllowAll()
	rb.ForPackage("app").ForClass("Base").
		DenyMethod("danger", rules.DenyTarget, rules.DenyActionThrow, "java/lang/SecurityException")
	r := rb.Build()

	baseFinder := memberfinder.New("app/Base", []memberfinder.Member{
		{Name: "danger", Descriptor: "()V"},
	})
	subFinder := memberfinder.New("app/Sub", nil)

	graph := classGraph(map[string]agent.ClassSummary{
		"app/Sub":  {Module: "java.base", SuperName: "app/Base", Declared: subFinder},
		"app/Base": {Module: "java.base", Declared: baseFinder},
	})
	c := New("caller.module", r, graph)

	ref := memberref.New("app/Sub", "danger", "()V")
	got := c.IsVirtualMethodAllowed(ref)
	assert.False(t, got.IsAllow())
}

func TestVirtualWalkAlwaysAllowsJavaLangObjectMethods(t *testing.T) {
	rb := rulesbuilder.New().DenyAll(rules.DenyTarget, rules.DenyActionThrow, "java/lang/SecurityException")
	r := rb.Build()

	subFinder := memberfinder.New("app/Sub", nil)
	graph := classGraph(map[string]agent.ClassSummary{
		// java/lang/Object is deliberately absent: it is a JDK bootstrap
		// class that is essentially never on a user classpath, so the walk
		// must allow toString et al. without ever resolving it.
		"app/Sub": {Module: "java.base", SuperName: "java/lang/Object", Declared: subFinder},
	})
	c := New("caller.module", r, graph)

	ref := memberref.New("app/Sub", "toString", "()Ljava/lang/String;")
	got := c.IsVirtualMethodAllowed(ref)
	assert.True(t, got.IsAllow())
}

func TestVirtualWalkAllowsObjectMethodsViaResolvedEmptySuperName(t *testing.T) {
	rb := rulesbuilder.New().DenyAll(rules.DenyTarget, rules.DenyActionThrow, "java/lang/SecurityException")
	r := rb.Build()

	subFinder := memberfinder.New("app/Sub", nil)
	objectFinder := memberfinder.New("java/lang/Object", nil)
	graph := classGraph(map[string]agent.ClassSummary{
		"app/Sub":          {Module: "java.base", SuperName: "java/lang/Object", Declared: subFinder},
		"java/lang/Object": {Module: "java.base", SuperName: "", Declared: objectFinder},
	})
	c := New("caller.module", r, graph)

	ref := memberref.New("app/Sub", "hashCode", "()I")
	got := c.IsVirtualMethodAllowed(ref)
	assert.True(t, got.IsAllow())
}

func TestDecisionIsCachedAcrossRepeatedCalls(t *testing.T) {
	rb := rulesbuilder.New().AllowAll()
	r := rb.Build()

	calls := 0
	finder := memberfinder.New("app/Widget", []memberfinder.Member{{Name: "m", Descriptor: "()V"}})
	graph := agent.SupertypeLookup(func(name string) (agent.ClassSummary, bool) {
		calls++
		return agent.ClassSummary{Module: "java.base", Declared: finder}, true
	})
	c := New("caller.module", r, graph)

	ref := memberref.New("app/Widget", "m", "()V")
	first := c.IsMethodAllowed(ref)
	callsAfterFirst := calls
	second := c.IsMethodAllowed(ref)
	// The second call still consults supertypes once (for the same-module
	// fast path and class resolution check) but resolves the decision
	// itself from cache rather than recomputing via resolveDeclaredOnly,
	// which would consult supertypes a second time.
	assert.Equal(t, first, second)
	assert.Equal(t, callsAfterFirst+1, calls)
}
