/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package memberfinder

import "sync"

// Loader resolves a binary class name to a freshly-built Finder, the
// classloader-side collaborator Cache calls on a miss.
type Loader interface {
	LoadMemberFinder(owner string) (*Finder, bool)
}

// Cache is the process-wide Class -> MemberFinder index spec §4.5 calls for
// ("member finders are process-cached behind a softly-referenced Class ->
// MemberFinder map"). Go has no soft references; sync.Map is the documented
// stdlib stand-in (DESIGN.md records the justification) — entries are
// cheap to rebuild from Loader on a miss, so an unbounded process-lifetime
// cache without eviction is an acceptable approximation of "softly
// referenced, re-derived if collected", matching spec §5's "a lost cache
// entry is re-derived."
type Cache struct {
	loader Loader
	finders sync.Map // owner string -> *Finder
}

// NewCache returns a Cache backed by loader.
func NewCache(loader Loader) *Cache {
	return &Cache{loader: loader}
}

// Get returns the Finder for owner, populating it from the Loader on a
// cache miss. ok is false only when the Loader itself could not resolve
// owner (e.g. the class isn't loaded) — spec §4.6 treats that as a deny,
// uncached.
func (c *Cache) Get(owner string) (*Finder, bool) {
	if v, ok := c.finders.Load(owner); ok {
		return v.(*Finder), true
	}
	f, ok := c.loader.LoadMemberFinder(owner)
	if !ok {
		return nil, false
	}
	// LoadOrStore so two concurrent misses for the same owner converge on
	// one winner; the loser's freshly-built Finder is simply discarded,
	// matching spec §5's "duplicate computation is acceptable."
	actual, _ := c.finders.LoadOrStore(owner, f)
	return actual.(*Finder), true
}

// HasMember implements rulesbuilder.ClassLookup: an empty descriptor means
// "any overload of this name", per that interface's documented contract.
func (c *Cache) HasMember(owner, name, descriptor string) bool {
	f, ok := c.Get(owner)
	if !ok {
		return false
	}
	if descriptor == "" {
		return f.HasAnyOverload(name)
	}
	return f.HasMember(name, descriptor)
}
