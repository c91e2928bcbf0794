/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package rules

// Builder assembles a Rules tree one scope at a time. It is the narrow,
// mechanical layer rulesbuilder's fluent API and DSL parser both compile
// down to; Builder itself knows nothing about fluent chaining or textual
// syntax, only how to set a decision at a coordinate and freeze the result.
type Builder struct {
	deflt      Decision
	defaultSet bool
	packages   map[string]*packageBuilder
}

type packageBuilder struct {
	deflt      Decision
	defaultSet bool
	classes    map[string]*classBuilder
}

type classBuilder struct {
	deflt                  Decision
	defaultSet             bool
	constructorsDeflt      Decision
	constructorsDefaultSet bool
	methods                map[string]*methodBuilder
}

type methodBuilder struct {
	deflt       Decision
	defaultSet  bool
	descriptors map[string]Decision
}

// NewBuilder returns an empty Builder. Its module-wide default is deny,
// matching how a nil *Rules resolves every lookup.
func NewBuilder() *Builder {
	return &Builder{deflt: Decision{Kind: DenyTarget}}
}

// SetDefault sets the module-wide fallback decision.
func (b *Builder) SetDefault(d Decision) {
	b.deflt = d
	b.defaultSet = true
}

func (b *Builder) pkg(name string) *packageBuilder {
	if b.packages == nil {
		b.packages = make(map[string]*packageBuilder)
	}
	p, ok := b.packages[name]
	if !ok {
		p = &packageBuilder{}
		b.packages[name] = p
	}
	return p
}

// SetPackageDefault sets pkg's default decision, applying to every class in
// it that has no more specific rule.
func (b *Builder) SetPackageDefault(pkg string, d Decision) {
	p := b.pkg(pkg)
	p.deflt = d
	p.defaultSet = true
}

func (p *packageBuilder) class(name string) *classBuilder {
	if p.classes == nil {
		p.classes = make(map[string]*classBuilder)
	}
	c, ok := p.classes[name]
	if !ok {
		c = &classBuilder{}
		p.classes[name] = c
	}
	return c
}

// SetClassDefault sets class's default decision for ordinary methods within
// pkg. Constructors are governed separately by SetConstructorsDefault.
func (b *Builder) SetClassDefault(pkg, class string, d Decision) {
	c := b.pkg(pkg).class(class)
	c.deflt = d
	c.defaultSet = true
}

// SetConstructorsDefault sets class's default decision for "<init>" methods
// specifically, independent of its ordinary-method default (spec §4.4's
// constructorsDefault).
func (b *Builder) SetConstructorsDefault(pkg, class string, d Decision) {
	c := b.pkg(pkg).class(class)
	c.constructorsDeflt = d
	c.constructorsDefaultSet = true
}

func (c *classBuilder) method(name string) *methodBuilder {
	if c.methods == nil {
		c.methods = make(map[string]*methodBuilder)
	}
	m, ok := c.methods[name]
	if !ok {
		m = &methodBuilder{}
		c.methods[name] = m
	}
	return m
}

// SetMethodDefault sets method's default decision within pkg.class,
// applying to every descriptor overload that has no narrower rule.
func (b *Builder) SetMethodDefault(pkg, class, method string, d Decision) {
	m := b.pkg(pkg).class(class).method(method)
	m.deflt = d
	m.defaultSet = true
}

// SetDescriptor narrows a rule to one exact overload of pkg.class.method.
func (b *Builder) SetDescriptor(pkg, class, method, descriptor string, d Decision) {
	m := b.pkg(pkg).class(class).method(method)
	if m.descriptors == nil {
		m.descriptors = make(map[string]Decision)
	}
	m.descriptors[descriptor] = d
}

// Build freezes the accumulated scopes into an immutable Rules tree, per
// spec §9's resolved open question: redundant scopes (a child whose default
// exactly matches its already-resolved enclosing default) are dropped here
// rather than at lookup time, so every live Lookup call walks a tree with no
// dead weight. The reduction is post-order: children are resolved against
// their own already-reduced enclosing default before a parent decides
// whether it, in turn, is reducible.
func (b *Builder) Build() *Rules {
	r := &Rules{deflt: b.deflt}
	if len(b.packages) == 0 {
		return r
	}
	r.packages = make(map[string]packageScope)
	for pkgName, p := range b.packages {
		ps := reducePackage(p, r.deflt)
		r.packages[pkgName] = ps
	}
	return r
}

func reducePackage(p *packageBuilder, moduleDefault Decision) packageScope {
	ps := packageScope{deflt: p.deflt, defaultSet: p.defaultSet}
	effectiveDefault := moduleDefault
	if p.defaultSet {
		effectiveDefault = p.deflt
	}
	if len(p.classes) > 0 {
		ps.classes = make(map[string]classScope)
		for name, c := range p.classes {
			ps.classes[name] = reduceClass(c, effectiveDefault)
		}
	}
	// A package default identical to the module default carries no new
	// information, but is kept set so Lookup's explicit/inherit
	// distinction for a *child's* reduction stays correct; only scopes
	// with zero children and a redundant default are pruned entirely.
	if p.defaultSet && decisionsEqual(p.deflt, moduleDefault) && len(ps.classes) == 0 {
		ps.defaultSet = false
	}
	return ps
}

func reduceClass(c *classBuilder, pkgDefault Decision) classScope {
	cs := classScope{
		deflt:                  c.deflt,
		defaultSet:             c.defaultSet,
		constructorsDeflt:      c.constructorsDeflt,
		constructorsDefaultSet: c.constructorsDefaultSet,
	}
	effectiveDefault := pkgDefault
	if c.defaultSet {
		effectiveDefault = c.deflt
	}
	// "<init>" inherits from constructorsDefault, never from the class's
	// ordinary methodsDefault (spec §4.4) — reduceMethod must prune a
	// constructor's redundant descriptor rules against that baseline, not
	// against effectiveDefault, or a rule that is only redundant with
	// methodsDefault gets dropped even though it differs from
	// constructorsDefault.
	constructorsEffectiveDefault := effectiveDefault
	if c.constructorsDefaultSet {
		constructorsEffectiveDefault = c.constructorsDeflt
	}
	if len(c.methods) > 0 {
		cs.methods = make(map[string]methodScope)
		for name, m := range c.methods {
			def := effectiveDefault
			if name == "<init>" {
				def = constructorsEffectiveDefault
			}
			cs.methods[name] = reduceMethod(m, def)
		}
	}
	if c.defaultSet && decisionsEqual(c.deflt, pkgDefault) && len(cs.methods) == 0 {
		cs.defaultSet = false
	}
	if c.constructorsDefaultSet && decisionsEqual(c.constructorsDeflt, effectiveDefault) {
		cs.constructorsDefaultSet = false
	}
	return cs
}

func reduceMethod(m *methodBuilder, classDefault Decision) methodScope {
	ms := methodScope{deflt: m.deflt, defaultSet: m.defaultSet}
	effectiveDefault := classDefault
	if m.defaultSet {
		effectiveDefault = m.deflt
	}
	if len(m.descriptors) > 0 {
		ms.descriptors = make(map[string]descriptorScope)
		for descriptor, d := range m.descriptors {
			if decisionsEqual(d, effectiveDefault) {
				continue // redundant with the method's own (possibly inherited) default
			}
			ms.descriptors[descriptor] = descriptorScope{decision: d, set: true}
		}
	}
	if m.defaultSet && decisionsEqual(m.deflt, classDefault) && len(ms.descriptors) == 0 {
		ms.defaultSet = false
	}
	return ms
}

func decisionsEqual(a, b Decision) bool {
	return a.Kind == b.Kind && a.Action == b.Action && a.ExceptionName == b.ExceptionName && a.Value == b.Value
}
