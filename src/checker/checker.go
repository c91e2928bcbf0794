/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package checker implements Checker (spec §4.6): the per-caller-module
// policy evaluator that CodeRewriter and the agent's runtime check callback
// both consult to turn a MemberRef into a rules.Decision. It combines three
// already-built pieces — memberfinder (what a class actually declares),
// rules (what the policy says once you know where a member is declared),
// and agent.SupertypeLookup (the external "what does this class extend"
// seam) — into the same-module-fast-path, declared-here-or-walk-ancestors
// algorithm spec §4.6 describes. It is grounded on the virtual-dispatch
// method resolution teacher's own JVM walks in jvm/run.go (supertype chain,
// then interfaces, in declaration order, first hit wins), repurposed here to
// resolve a policy decision instead of a method body.
package checker

import (
	"sync"

	"github.com/cojen/boxtin/src/agent"
	"github.com/cojen/boxtin/src/memberref"
	"github.com/cojen/boxtin/src/rules"
)

// deniedUnresolved is returned whenever a class in the walk cannot be
// resolved at all — spec §4.6: "a class that cannot be found is denied,
// and the result is never cached" (the answer may change once the class
// becomes resolvable).
var deniedUnresolved = rules.Decision{Kind: rules.DenyTarget}

// javaLangObject is where every supertype walk ends. A virtual call whose
// walk reaches it without any ancestor declaring the member (toString/
// hashCode/equals/etc. inherited unchanged) is allowed regardless of policy,
// since java.lang.Object is a JDK bootstrap class essentially never present
// in a SupertypeLookup built from a user's own classpath (spec.md's
// invariant that Object's own methods are exempt from denyAll); a deny found
// on a declaring ancestor still stands. agent.ClassSummary.SuperName is "" only
// for Object itself (classgraph's decode sets it only when super_class is
// 0, which JVMS reserves for Object), so either signal — the literal name,
// or an ancestor resolving with an empty SuperName — means "this is Object".
const javaLangObject = "java/lang/Object"

// Checker evaluates access decisions on behalf of one caller module. A host
// agent constructs one Checker per distinct caller module it ever sees
// (spec §4.6); the Rules tree and SupertypeLookup are shared process-wide
// state handed in by reference. SupertypeLookup's ClassSummary already
// carries each class's own memberfinder.Finder (built and cached by the
// agent side), so Checker itself never touches memberfinder.Cache directly.
type Checker struct {
	callerModule string
	rules        *rules.Rules
	supertypes   agent.SupertypeLookup

	constructors sync.Map // key: string(MemberRef.EncodeFull()) -> rules.Decision
	methods      sync.Map
	virtuals     sync.Map
	fields       sync.Map
}

// New returns a Checker enforcing rules on behalf of callerModule.
func New(callerModule string, policy *rules.Rules, supertypes agent.SupertypeLookup) *Checker {
	return &Checker{
		callerModule: callerModule,
		rules:        policy,
		supertypes:   supertypes,
	}
}

// IsConstructorAllowed decides whether ref's constructor (ref.Name() must be
// "<init>") may be invoked. Constructors are never subject to the
// inheritance walk — only the exact declaring class's own rule applies,
// since a constructor is never inherited or overridden.
func (c *Checker) IsConstructorAllowed(ref memberref.MemberRef) rules.Decision {
	return c.checkCached(&c.constructors, ref, c.resolveDeclaredOnly)
}

// IsMethodAllowed decides whether a non-virtual method invocation (static,
// private, or an invokespecial super call) is allowed. Like constructors,
// only the named owner class's own declaration is consulted.
func (c *Checker) IsMethodAllowed(ref memberref.MemberRef) rules.Decision {
	return c.checkCached(&c.methods, ref, c.resolveDeclaredOnly)
}

// IsFieldAllowed decides whether a field get/put is allowed. Fields, like
// non-virtual methods, are resolved only against their declaring class.
func (c *Checker) IsFieldAllowed(ref memberref.MemberRef) rules.Decision {
	return c.checkCached(&c.fields, ref, c.resolveDeclaredOnly)
}

// IsVirtualMethodAllowed decides whether an invokevirtual/invokeinterface
// call is allowed. Because the statically-named owner need not be the class
// that actually declares the method (it may be inherited), this walks the
// supertype chain — superclass first, then declared interfaces in order —
// looking for the first class that declares the member, per spec §4.6's
// "first-allow-wins": any declaring ancestor that allows makes the call
// allowed overall, since virtual dispatch might invoke that ancestor's own
// (unoverridden) implementation at runtime.
func (c *Checker) IsVirtualMethodAllowed(ref memberref.MemberRef) rules.Decision {
	return c.checkCached(&c.virtuals, ref, c.resolveVirtual)
}

// checkCached applies the same-module fast path and cache lookup common to
// all four checks, delegating the actual policy resolution to resolve.
func (c *Checker) checkCached(cache *sync.Map, ref memberref.MemberRef, resolve func(memberref.MemberRef) rules.Decision) rules.Decision {
	summary, ok := c.supertypes(ref.OwnerClass())
	if !ok {
		return deniedUnresolved
	}
	if summary.Module == c.callerModule {
		// Same-module fast path (spec §4.6): a module's own code is never
		// checked against itself, and this is deliberately not cached —
		// it is already cheaper than a cache lookup.
		return rules.Allowed
	}

	key := string(ref.EncodeFull())
	if v, ok := cache.Load(key); ok {
		return v.(rules.Decision)
	}
	decision := resolve(ref)
	// Races between concurrent callers computing the same key are
	// harmless (spec §5: "duplicate computation is acceptable"); last
	// store wins and both computed the same answer. An unresolved deny is
	// not stored, so a class that becomes resolvable later is re-checked.
	if decision != deniedUnresolved {
		cache.Store(key, decision)
	}
	return decision
}

// resolveDeclaredOnly looks up the policy decision at ref's exact owner
// class, with no inheritance walk: used for constructors, non-virtual
// methods, and fields.
func (c *Checker) resolveDeclaredOnly(ref memberref.MemberRef) rules.Decision {
	summary, ok := c.supertypes(ref.OwnerClass())
	if !ok {
		return deniedUnresolved
	}
	if summary.Declared == nil || !summary.Declared.HasMember(ref.Name(), ref.Descriptor()) {
		return deniedUnresolved
	}
	return c.rules.Lookup(ref.Package(), ref.PlainClass(), ref.Name(), ref.Descriptor())
}

// resolveVirtual implements the supertype-chain walk described on
// IsVirtualMethodAllowed's doc comment.
func (c *Checker) resolveVirtual(ref memberref.MemberRef) rules.Decision {
	visited := make(map[string]bool)
	queue := []string{ref.OwnerClass()}

	var lastDeny rules.Decision
	foundAnyDeclaration := false
	reachedObject := false

	for len(queue) > 0 {
		owner := queue[0]
		queue = queue[1:]
		if visited[owner] {
			continue
		}
		visited[owner] = true

		if owner == javaLangObject {
			reachedObject = true
			continue
		}

		summary, ok := c.supertypes(owner)
		if !ok {
			// An unresolvable ancestor doesn't doom the whole walk (the
			// member might still be found, and allowed, elsewhere in the
			// hierarchy); it simply contributes nothing. Object itself is
			// the common case of this — see javaLangObject above — but by
			// the time we'd reach it unresolved under any other name, the
			// walk still has nothing useful to conclude from it.
			continue
		}
		if summary.Declared != nil && summary.Declared.HasMember(ref.Name(), ref.Descriptor()) {
			atOwner := ref.WithOwner(owner)
			d := c.rules.Lookup(atOwner.Package(), atOwner.PlainClass(), ref.Name(), ref.Descriptor())
			if d.IsAllow() {
				return d
			}
			lastDeny = d
			foundAnyDeclaration = true
		}
		if summary.SuperName != "" {
			queue = append(queue, summary.SuperName)
		} else {
			// classgraph only ever decodes an empty SuperName for
			// java/lang/Object (super_class == 0 per JVMS); route back
			// through the explicit sentinel above rather than duplicating
			// its handling here.
			queue = append(queue, javaLangObject)
		}
		queue = append(queue, summary.InterfaceNames...)
	}

	if foundAnyDeclaration {
		return lastDeny
	}
	if reachedObject {
		return rules.Allowed
	}
	return deniedUnresolved
}
