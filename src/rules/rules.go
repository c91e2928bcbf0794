/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package rules is the read-only side of the policy tree (spec §4.4):
// Rules, organized package -> class -> method -> descriptor, resolving a
// lookup down to a Decision with ordinary default-inheritance semantics (an
// unset child falls back to its enclosing scope's default). The write side
// that builds a Rules value lives in rulesbuilder; this package never
// mutates one once built, matching how Checker expects to hold a Rules
// reference for the lifetime of a class loader. It is grounded on the
// Classloader's read-only, build-once-use-forever MethAreaTable teacher
// keeps in classloader.go: a big nested map populated once at startup and
// only ever looked up afterward.
package rules

// DenyAction is what happens when a Decision denies access, per spec §4.4's
// DenyAction variants. Custom and Checked (method-handle-backed policies)
// are not modeled here: CodeRewriter only ever synthesizes the handful of
// bytecode shapes below, and a method-handle indirection would need the
// Decision tree itself to carry a MemberRef-shaped handle descriptor plus a
// CodeRewriter template for invoking it — DESIGN.md records this as a
// deliberate narrowing, not an oversight.
type DenyAction int

const (
	// DenyActionThrow replaces the access with throwing the configured
	// exception class (spec's Standard/Exception(class, message)).
	DenyActionThrow DenyAction = iota
	// DenyActionSkip replaces an invoke with a no-op (popping arguments,
	// pushing a default return value) instead of throwing (spec's Empty).
	DenyActionSkip
	// DenyActionValue replaces an invoke's result with a fixed constant
	// instead of actually invoking anything (spec's Value(const)).
	DenyActionValue
)

// Kind is which of the three Decision shapes spec §4.4 describes applies:
// Allow, or a deny enforced at the target (the callee checks its own
// caller) versus at the caller (the call site itself is rewritten). The
// distinction matters downstream: CodeRewriter's target-side prologue
// (§4.8.1) only ever fires for DenyTarget, and its caller-side rewrite
// (§4.8.2) only ever fires for DenyCaller.
type Kind int

const (
	Allow Kind = iota
	DenyTarget
	DenyCaller
)

// Decision is the resolved policy for one (package, class, method,
// descriptor) coordinate: Allow, or a deny at a particular enforcement
// point, carrying the action to take and (when Action is DenyActionThrow)
// the exception class to throw, or (when DenyActionValue) the constant to
// substitute.
type Decision struct {
	Kind          Kind
	Action        DenyAction
	ExceptionName string // binary class name, e.g. "java/lang/SecurityException"
	Value         int32  // meaningful only when Action is DenyActionValue
}

// IsAllow reports whether d permits the access outright.
func (d Decision) IsAllow() bool { return d.Kind == Allow }

// Allowed is the zero-friction Allow decision most lookups resolve to.
var Allowed = Decision{Kind: Allow}

// descriptorScope holds the decision for one exact descriptor plus whether
// it was ever explicitly set (distinguishing "not mentioned, inherit" from
// "explicitly allowed", which matters once rulesbuilder's reduction pass
// decides whether a child can be dropped).
type descriptorScope struct {
	decision Decision
	set      bool
}

// methodScope holds one method name's default decision plus any
// descriptor-specific overrides (spec §4.4: "a rule may narrow to one
// overload by descriptor").
type methodScope struct {
	deflt       Decision
	defaultSet  bool
	descriptors map[string]descriptorScope
}

// classScope holds one class's default decision plus any method-specific
// overrides. Per spec §4.4, a class carries two separate defaults —
// methodsDefault and constructorsDefault — since a class's blanket method
// policy ("deny every method unless named otherwise") very often should not
// extend to "<init>", whose caller-side rewriting is constrained (spec
// §4.8.2) in a way ordinary methods are not.
type classScope struct {
	deflt                Decision // methodsDefault
	defaultSet           bool
	constructorsDeflt    Decision
	constructorsDefaultSet bool
	methods              map[string]methodScope
}

// packageScope holds one package's default decision plus any
// class-specific overrides.
type packageScope struct {
	deflt      Decision
	defaultSet bool
	classes    map[string]classScope
}

// Rules is the fully-resolved, immutable policy tree. A nil *Rules denies
// everything (spec §4.4's fail-secure default: "absent any applicable rule,
// access is denied"), and so does one built from an empty Builder, whose
// module default starts as deny. A Rules literal made without a Builder has
// the zero Decision, Allow, as its default.
type Rules struct {
	deflt    Decision
	packages map[string]packageScope
}

// Lookup resolves (pkg, class, method, descriptor) to a Decision, walking
// from the most specific scope (exact descriptor) up to the module-wide
// default, per spec §4.4's inheritance rule: a scope with no explicit
// setting for the requested key inherits its enclosing scope's default.
func (r *Rules) Lookup(pkg, class, method, descriptor string) Decision {
	d := r.lookup(pkg, class, method, descriptor)
	if method == "<init>" {
		return constructorSafe(d)
	}
	return d
}

func (r *Rules) lookup(pkg, class, method, descriptor string) Decision {
	if r == nil {
		return Decision{Kind: DenyTarget}
	}
	pkgScope, ok := r.packages[pkg]
	if !ok {
		return r.deflt
	}
	clsScope, ok := pkgScope.classes[class]
	if !ok {
		return orDefault(pkgScope.defaultSet, pkgScope.deflt, r.deflt)
	}
	pkgOrModuleDefault := orDefault(pkgScope.defaultSet, pkgScope.deflt, r.deflt)
	classMethodsDefault := orDefault(clsScope.defaultSet, clsScope.deflt, pkgOrModuleDefault)
	constructorsDefault := orDefault(clsScope.constructorsDefaultSet, clsScope.constructorsDeflt, classMethodsDefault)
	methScope, ok := clsScope.methods[method]
	if !ok {
		if method == "<init>" {
			return constructorsDefault
		}
		return classMethodsDefault
	}
	// A method scope for "<init>" can exist with no default of its own set
	// (e.g. only a descriptor-level rule was ever configured, with
	// SetMethodDefault never called) — its enclosing fallback is still the
	// class's constructorsDefault, not its ordinary methodsDefault.
	outerDefault := classMethodsDefault
	if method == "<init>" {
		outerDefault = constructorsDefault
	}
	enclosingDefault := orDefault(methScope.defaultSet, methScope.deflt, outerDefault)
	if descScope, ok := methScope.descriptors[descriptor]; ok && descScope.set {
		return descScope.decision
	}
	return enclosingDefault
}

func orDefault(set bool, own, fallback Decision) Decision {
	if set {
		return own
	}
	return fallback
}

// constructorSafe coerces a DenyCaller decision to DenyTarget for "<init>".
// Spec §4.8.2: a constructor deny is never rewritten caller-side, since an
// invokespecial on an uninitialized reference cannot be replaced with an
// invokestatic proxy. Lookup enforces this as a structural invariant of
// every Decision it returns for a constructor, regardless of which builder
// or DSL path configured the underlying rule.
func constructorSafe(d Decision) Decision {
	if d.Kind == DenyCaller {
		d.Kind = DenyTarget
	}
	return d
}

// Default returns the module-wide fallback decision (spec §4.4's top of the
// tree), used by RulesBuilder's reduction pass to decide whether a
// package-level default can itself be dropped as redundant.
func (r *Rules) Default() Decision {
	if r == nil {
		return Decision{Kind: DenyTarget}
	}
	return r.deflt
}
