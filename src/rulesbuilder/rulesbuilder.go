/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package rulesbuilder is the write side of the policy tree spec §4.4
// describes: a fluent builder that compiles down to rules.Builder, plus (as
// a supplemented feature, spec.md having described the DSL only at its
// contract) a small textual syntax to print and re-parse a Rules tree
// without recompiling Go. It is grounded on the fluent chain idiom teacher
// uses for flaggy's own builder-style flag registration (cmd/boxtinctl), and
// on the lazydocker config loader's "read text, populate a struct, validate
// referenced resources" shape for Validate and Parse.
package rulesbuilder

import (
	"github.com/cojen/boxtin/src/rules"

	"github.com/samber/lo"
)

// ClassLookup is the seam Validate uses to confirm a rule names a member
// that actually exists on the referenced class — the same kind of external
// lookup boundary spec §9 leaves to the embedding agent rather than to the
// core. memberfinder.Cache satisfies this interface.
type ClassLookup interface {
	HasMember(owner, name, descriptor string) bool
}

// Builder is the root of the fluent rule-construction chain.
type Builder struct {
	inner   *rules.Builder
	members []memberKey
}

// New returns an empty Builder. Its module-wide default denies everything
// until AllowAll or DenyAll names otherwise, mirroring how a nil *Rules
// resolves every lookup.
func New() *Builder {
	return &Builder{inner: rules.NewBuilder()}
}

// AllowAll sets the module-wide default to Allow.
func (b *Builder) AllowAll() *Builder {
	b.inner.SetDefault(rules.Allowed)
	return b
}

// DenyAll sets the module-wide default to deny, enforced at kind (target or
// caller), with the given action.
func (b *Builder) DenyAll(kind rules.Kind, action rules.DenyAction, exceptionName string) *Builder {
	b.inner.SetDefault(rules.Decision{Kind: kind, Action: action, ExceptionName: exceptionName})
	return b
}

// ForPackage begins a package-scoped chain.
func (b *Builder) ForPackage(pkg string) *PackageBuilder {
	return &PackageBuilder{root: b, pkg: pkg}
}

// Build freezes the chain into an immutable Rules tree.
func (b *Builder) Build() *rules.Rules {
	return b.inner.Build()
}

// Validate walks every rule this Builder has accumulated and confirms (via
// lookup) that each named class member actually exists, returning
// boxerr.UnknownMember-wrapped errors (spec §9: "a rule naming a
// non-existent member should fail fast rather than silently never
// matching"). It is a separate pass from Build so a caller can choose to
// validate against a live classloader only when one is available (e.g. a
// standalone `boxtinctl` invocation with no classloader at all still gets a
// usable Rules via Build, just without this check).
func (b *Builder) Validate(lookup ClassLookup) []error {
	// AllowVariant/DenyVariant and AllowMethod/DenyMethod on the same method
	// name both append a memberKey, so a class scoped heavily by overload
	// (common for the MethodHandles/Lookup family this DSL targets) can carry
	// many duplicate keys by the time Validate runs; checking each only once
	// is a plain reduction, not a control-flow change, so it is delegated to
	// lo.UniqBy rather than hand-rolled with a seen-set map.
	unique := lo.UniqBy(b.members, func(m memberKey) memberKey { return m })

	var errs []error
	for _, m := range unique {
		if !lookup.HasMember(m.owner, m.name, m.descriptor) {
			errs = append(errs, unknownMemberError(m.owner, m.name, m.descriptor))
		}
	}
	return errs
}

// PackageBuilder is a package-scoped link in the fluent chain.
type PackageBuilder struct {
	root *Builder
	pkg  string
}

// AllowAll sets pkg's default to Allow.
func (p *PackageBuilder) AllowAll() *PackageBuilder {
	p.root.inner.SetPackageDefault(p.pkg, rules.Allowed)
	return p
}

// DenyAll sets pkg's default to deny, enforced at kind, with the given
// action.
func (p *PackageBuilder) DenyAll(kind rules.Kind, action rules.DenyAction, exceptionName string) *PackageBuilder {
	p.root.inner.SetPackageDefault(p.pkg, rules.Decision{Kind: kind, Action: action, ExceptionName: exceptionName})
	return p
}

// ForClass continues the chain into a class within this package.
func (p *PackageBuilder) ForClass(class string) *ClassBuilder {
	return &ClassBuilder{root: p.root, pkg: p.pkg, class: class}
}

// Done returns to the root Builder to start a sibling package scope.
func (p *PackageBuilder) Done() *Builder { return p.root }

// ClassBuilder is a class-scoped link in the fluent chain.
type ClassBuilder struct {
	root  *Builder
	pkg   string
	class string
}

// AllowAll sets this class's default to Allow.
func (c *ClassBuilder) AllowAll() *ClassBuilder {
	c.root.inner.SetClassDefault(c.pkg, c.class, rules.Allowed)
	return c
}

// DenyAll sets this class's default to deny, enforced at kind, with the
// given action.
func (c *ClassBuilder) DenyAll(kind rules.Kind, action rules.DenyAction, exceptionName string) *ClassBuilder {
	c.root.inner.SetClassDefault(c.pkg, c.class, rules.Decision{Kind: kind, Action: action, ExceptionName: exceptionName})
	return c
}

// AllowConstructors sets this class's constructor default to Allow,
// independent of its ordinary-method default (spec §4.4's
// constructorsDefault).
func (c *ClassBuilder) AllowConstructors() *ClassBuilder {
	c.root.inner.SetConstructorsDefault(c.pkg, c.class, rules.Allowed)
	return c
}

// DenyConstructors sets this class's constructor default to deny, always
// enforced at rules.DenyTarget (it takes no kind), since invokespecial on an
// uninitialized reference can never be rewritten caller-side.
func (c *ClassBuilder) DenyConstructors(action rules.DenyAction, exceptionName string) *ClassBuilder {
	c.root.inner.SetConstructorsDefault(c.pkg, c.class, rules.Decision{Kind: rules.DenyTarget, Action: action, ExceptionName: exceptionName})
	return c
}

// AllowMethod sets one method name's default to Allow across every overload.
func (c *ClassBuilder) AllowMethod(name string) *ClassBuilder {
	c.root.inner.SetMethodDefault(c.pkg, c.class, name, rules.Allowed)
	c.root.trackMember(c.pkg, c.class, name, "")
	return c
}

// DenyMethod sets one method name's default to deny, enforced at kind,
// across every overload. Constructors ("<init>") can only be enforced
// target-side: spec §4.8.2 excludes them from caller-side rewriting because
// an invokespecial on an uninitialized reference cannot be replaced with an
// invokestatic proxy.
func (c *ClassBuilder) DenyMethod(name string, kind rules.Kind, action rules.DenyAction, exceptionName string) *ClassBuilder {
	if name == "<init>" {
		kind = rules.DenyTarget
	}
	c.root.inner.SetMethodDefault(c.pkg, c.class, name, rules.Decision{Kind: kind, Action: action, ExceptionName: exceptionName})
	c.root.trackMember(c.pkg, c.class, name, "")
	return c
}

// AllowVariant narrows one overload (by exact descriptor) to Allow.
func (c *ClassBuilder) AllowVariant(name, descriptor string) *ClassBuilder {
	c.root.inner.SetDescriptor(c.pkg, c.class, name, descriptor, rules.Allowed)
	c.root.trackMember(c.pkg, c.class, name, descriptor)
	return c
}

// DenyVariant narrows one overload (by exact descriptor) to deny, enforced
// at kind. See DenyMethod's constructor caveat.
func (c *ClassBuilder) DenyVariant(name, descriptor string, kind rules.Kind, action rules.DenyAction, exceptionName string) *ClassBuilder {
	if name == "<init>" {
		kind = rules.DenyTarget
	}
	c.root.inner.SetDescriptor(c.pkg, c.class, name, descriptor, rules.Decision{Kind: kind, Action: action, ExceptionName: exceptionName})
	c.root.trackMember(c.pkg, c.class, name, descriptor)
	return c
}

// ForClass returns to the enclosing package to start a sibling class scope.
func (c *ClassBuilder) ForClass(class string) *ClassBuilder {
	return &ClassBuilder{root: c.root, pkg: c.pkg, class: class}
}

// Done returns to the root Builder.
func (c *ClassBuilder) Done() *Builder { return c.root }

type memberKey struct {
	owner, name, descriptor string
}

func (b *Builder) trackMember(pkg, class, name, descriptor string) {
	owner := pkg + "/" + class
	if pkg == "" {
		owner = class
	}
	b.members = append(b.members, memberKey{owner: owner, name: name, descriptor: descriptor})
}
