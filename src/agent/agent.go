/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package agent holds the contracts the core hands off to its host
// runtime (spec §4.11, §6's "Agent entry", §5's "Global mutable state"):
// ClassSummary (the testable stand-in for "load a class and ask about its
// shape" spec §9 calls for — "arrange the Checker to take a lookup function
// name -> ClassSummary... so the core is testable without a JVM"), and the
// Controller/Walker seams a real java.lang.instrument agent implements.
// None of this package binds to an actual JVM or instrumentation API — spec
// §4.11 is explicit that hidden-class interception "is only relevant to the
// external agent", and premain/Instrumentation have no Go equivalent to
// bind to at all. It is grounded on teacher's own Controller-shaped
// boundary: classloader.go's Init() accepting a bootstrap/trusted
// distinction from its caller rather than deciding trust itself.
package agent

import "github.com/cojen/boxtin/src/memberfinder"

// ClassSummary is everything the Checker's inheritance walk needs to know
// about a class without loading it through a real JVM: its module
// identity, its direct supertypes, and its declared members (spec §9).
type ClassSummary struct {
	Module         string
	SuperName      string // "" for java/lang/Object; classgraph gives interfaces "java/lang/Object"
	InterfaceNames []string
	Declared       *memberfinder.Finder
}

// SupertypeLookup resolves a binary class name to its ClassSummary. The
// Checker is parameterized over this function rather than a concrete
// classloader so that it can be exercised with synthetic class graphs in
// tests (spec §9's resolved open question).
type SupertypeLookup func(name string) (ClassSummary, bool)

// Walker is the runtime's caller-class accessor, invoked from the
// target-side prologue CodeRewriter emits (spec §4.8.1: "a static field
// providing caller-class access"). The core only ever references Walker's
// well-known owner/method names when synthesizing bytecode; it never calls
// this interface directly.
type Walker interface {
	// GetCallerClass returns the class of the method that invoked the
	// currently-executing checked member, skipping any of the core's own
	// synthesized proxy frames.
	GetCallerClass() (binaryName string)
}

// Controller is the pluggable policy source a host agent constructs from
// agentArgs (spec §6: "ControllerClassName[=ControllerArgs]"). It owns the
// Rules tree(s) the core consults and is the process-wide singleton spec
// §5 describes ("exactly one process-wide registry: the active Controller
// plus its caches... re-installation must fail with a security error").
type Controller interface {
	// Check is the external check callback the target-side prologue
	// calls into: (callerClass, thisClass, name, descriptor) -> nil if
	// allowed, or the binary name of the exception class to throw. name
	// is the checked method's own name ("<init>" for a constructor); the
	// prologue CodeRewriter emits always passes it.
	Check(callerClass, thisClass, name, descriptor string) (deniedException string)
}
