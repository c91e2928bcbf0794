/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package rulesbuilder

// This file supplements spec.md, which describes the Rules tree only at its
// contract ("packages contain classes contain methods contain descriptor
// overrides") and leaves any serialized form unspecified. A transformer that
// ships as a library still needs an operator-editable policy file — the
// spec's own §4.4 wording ("a rule may narrow to one overload by
// descriptor") reads naturally as a small declarative grammar, so this adds
// one: brace-nested scopes with `allow`/`deny` statements, loosely in the
// shape of teacher's own classfile-adjacent declarative source (JVM
// descriptors appear verbatim, reusing the exact strings MemberRef already
// works with, rather than inventing a friendlier type syntax).
//
// Grammar (informal; whitespace-delimited tokens, no statement terminator —
// a method descriptor's own embedded ';' characters would collide with one):
//
//	ruleset     := defaultStmt? packageBlock*
//	defaultStmt := "allow" | denyStmt
//	packageBlock := "package" packageName "{" defaultStmt? classBlock* "}"
//	classBlock  := "class" className "{" defaultStmt? methodBlock* "}"
//	methodBlock := "method" methodName "{" defaultStmt? variantStmt* "}"
//	variantStmt := descriptor ("allow" | denyStmt)
//	denyStmt    := "deny" ("target" | "caller") ("throw" exceptionClassName | "skip" | "value" intLiteral)
//
// "target"/"caller" picks which of spec §4.4's two deny shapes applies
// (DenyTarget vs DenyCaller); a rule on a constructor always enforces at
// target regardless of which keyword is written, since invokespecial on an
// uninitialized reference cannot be rewritten caller-side (spec §4.8.2).
//
// Example:
//
//	deny caller skip
//	package java/lang/invoke {
//	    class MethodHandles {
//	        method lookup {
//	            deny target throw java/lang/SecurityException
//	        }
//	    }
//	}

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cojen/boxtin/src/rules"
)

// Print renders snapshot's rules back into the DSL text form, siblings
// sorted for a stable, diffable output.
func Print(snapshot *Snapshot) string {
	var sb strings.Builder
	writeDefaultStmt(&sb, 0, snapshot.Default)
	pkgNames := sortedKeys(snapshot.Packages)
	for _, pkg := range pkgNames {
		p := snapshot.Packages[pkg]
		fmt.Fprintf(&sb, "package %s {\n", pkg)
		writeDefaultStmt(&sb, 1, p.Default)
		classNames := sortedKeys(p.Classes)
		for _, class := range classNames {
			c := p.Classes[class]
			fmt.Fprintf(&sb, "\tclass %s {\n", class)
			writeDefaultStmt(&sb, 2, c.Default)
			methodNames := sortedKeys(c.Methods)
			for _, method := range methodNames {
				m := c.Methods[method]
				fmt.Fprintf(&sb, "\t\tmethod %s {\n", method)
				writeDefaultStmt(&sb, 3, m.Default)
				descriptors := make([]string, 0, len(m.Variants))
				for d := range m.Variants {
					descriptors = append(descriptors, d)
				}
				sort.Strings(descriptors)
				for _, d := range descriptors {
					fmt.Fprintf(&sb, "\t\t\t%s %s\n", d, decisionStmt(m.Variants[d]))
				}
				sb.WriteString("\t\t}\n")
			}
			sb.WriteString("\t}\n")
		}
		sb.WriteString("}\n")
	}
	return sb.String()
}

func writeDefaultStmt(sb *strings.Builder, depth int, d *rules.Decision) {
	if d == nil {
		return
	}
	sb.WriteString(strings.Repeat("\t", depth))
	sb.WriteString(decisionStmt(*d))
	sb.WriteString("\n")
}

func decisionStmt(d rules.Decision) string {
	if d.IsAllow() {
		return "allow"
	}
	point := "target"
	if d.Kind == rules.DenyCaller {
		point = "caller"
	}
	switch d.Action {
	case rules.DenyActionSkip:
		return "deny " + point + " skip"
	case rules.DenyActionValue:
		return fmt.Sprintf("deny %s value %d", point, d.Value)
	default:
		return "deny " + point + " throw " + d.ExceptionName
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot is a plain-data mirror of a Builder's accumulated rules, the
// shape Print walks and Parse produces. A Builder is a write-only fluent
// chain by design (it cannot be inspected mid-build, matching rules.Builder
// underneath it); Snapshot is the bridge that lets Print/Parse exist without
// exposing rules.Builder's private tree to this package's callers.
type Snapshot struct {
	Default  *rules.Decision
	Packages map[string]*PackageSnapshot
}

type PackageSnapshot struct {
	Default *rules.Decision
	Classes map[string]*ClassSnapshot
}

type ClassSnapshot struct {
	Default *rules.Decision
	Methods map[string]*MethodSnapshot
}

type MethodSnapshot struct {
	Default  *rules.Decision
	Variants map[string]rules.Decision
}

// NewSnapshot returns an empty Snapshot. Snapshot has no exported builder
// methods: Parse fills one through the unexported pkg/class/method helpers
// below, and other callers fill its exported maps directly.
func NewSnapshot() *Snapshot {
	return &Snapshot{Packages: make(map[string]*PackageSnapshot)}
}

func (s *Snapshot) pkg(name string) *PackageSnapshot {
	p, ok := s.Packages[name]
	if !ok {
		p = &PackageSnapshot{Classes: make(map[string]*ClassSnapshot)}
		s.Packages[name] = p
	}
	return p
}

func (p *PackageSnapshot) class(name string) *ClassSnapshot {
	c, ok := p.Classes[name]
	if !ok {
		c = &ClassSnapshot{Methods: make(map[string]*MethodSnapshot)}
		p.Classes[name] = c
	}
	return c
}

func (c *ClassSnapshot) method(name string) *MethodSnapshot {
	m, ok := c.Methods[name]
	if !ok {
		m = &MethodSnapshot{Variants: make(map[string]rules.Decision)}
		c.Methods[name] = m
	}
	return m
}

// Parse reads the DSL text form and returns both a Builder (ready for
// Build()/Validate()) and the Snapshot Parse assembled along the way, so a
// round trip through Print produces identical text.
func Parse(text string) (*Builder, *Snapshot, error) {
	toks := tokenize(text)
	p := &parser{toks: toks}
	b := New()
	snap := NewSnapshot()

	if d, ok, err := p.maybeDefaultStmt(); err != nil {
		return nil, nil, err
	} else if ok {
		b.inner.SetDefault(d)
		snap.Default = &d
	}

	for !p.atEnd() {
		if err := p.expectKeyword("package"); err != nil {
			return nil, nil, err
		}
		pkgName, err := p.expectIdent()
		if err != nil {
			return nil, nil, err
		}
		if err := p.expectPunct("{"); err != nil {
			return nil, nil, err
		}
		pkgSnap := snap.pkg(pkgName)
		if d, ok, err := p.maybeDefaultStmt(); err != nil {
			return nil, nil, err
		} else if ok {
			b.inner.SetPackageDefault(pkgName, d)
			pkgSnap.Default = &d
		}
		for p.peekKeyword("class") {
			if err := p.parseClass(b, pkgSnap, pkgName); err != nil {
				return nil, nil, err
			}
		}
		if err := p.expectPunct("}"); err != nil {
			return nil, nil, err
		}
	}
	return b, snap, nil
}

func (p *parser) parseClass(b *Builder, pkgSnap *PackageSnapshot, pkgName string) error {
	if err := p.expectKeyword("class"); err != nil {
		return err
	}
	className, err := p.expectIdent()
	if err != nil {
		return err
	}
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	classSnap := pkgSnap.class(className)
	if d, ok, err := p.maybeDefaultStmt(); err != nil {
		return err
	} else if ok {
		b.inner.SetClassDefault(pkgName, className, d)
		classSnap.Default = &d
	}
	for p.peekKeyword("method") {
		if err := p.parseMethod(b, classSnap, pkgName, className); err != nil {
			return err
		}
	}
	return p.expectPunct("}")
}

func (p *parser) parseMethod(b *Builder, classSnap *ClassSnapshot, pkgName, className string) error {
	if err := p.expectKeyword("method"); err != nil {
		return err
	}
	methodName, err := p.expectIdent()
	if err != nil {
		return err
	}
	if err := p.expectPunct("{"); err != nil {
		return err
	}
	methodSnap := classSnap.method(methodName)
	if d, ok, err := p.maybeDefaultStmt(); err != nil {
		return err
	} else if ok {
		b.inner.SetMethodDefault(pkgName, className, methodName, d)
		methodSnap.Default = &d
	}
	for !p.peekPunct("}") {
		descriptor, err := p.expectIdent()
		if err != nil {
			return err
		}
		d, err := p.expectDecision()
		if err != nil {
			return err
		}
		b.inner.SetDescriptor(pkgName, className, methodName, descriptor, d)
		methodSnap.Variants[descriptor] = d
	}
	return p.expectPunct("}")
}
