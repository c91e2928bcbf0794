/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package classgraph builds an agent.SupertypeLookup from a directory of
// real .class files on disk: the standalone substitute a batch CLI needs in
// place of the live JVM classloader spec §9 assumes a host agent supplies.
// It decodes just the header shape Checker's inheritance walk needs (super
// class, declared interfaces, public/protected members) and nothing else —
// Code attributes, most other attributes, and private/package members are
// never read. It is grounded on classloader.go's own directory walk
// (walk/LoadBaseClasses: filepath.WalkDir over a root, loading every
// ".class"-suffixed file, discarding per-file errors since a given class may
// never end up needed), adapted from "load classes to run them" into "index
// classes to answer policy questions about them".
package classgraph

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cojen/boxtin/src/agent"
	"github.com/cojen/boxtin/src/boxerr"
	"github.com/cojen/boxtin/src/bytebuf"
	"github.com/cojen/boxtin/src/constantpool"
	"github.com/cojen/boxtin/src/memberfinder"

	"github.com/sirupsen/logrus"
)

func classFormatf(format string, args ...interface{}) error {
	return boxerr.Wrapf(boxerr.ClassFormat, format, args...)
}

const (
	accPublic    = 0x0001
	accProtected = 0x0004
)

// Graph is a module-scoped index of ClassSummary built from one classpath
// root. Every class it loads is reported under the same module name, since
// a flat directory of .class files carries no JPMS module-info of its own;
// a real host agent's classloader would instead report each class's actual
// module membership.
type Graph struct {
	module string
	log    *logrus.Entry

	mu        sync.RWMutex
	summaries map[string]agent.ClassSummary
}

// New returns an empty Graph whose classes are all reported under module.
func New(module string, log *logrus.Entry) *Graph {
	return &Graph{module: module, log: log, summaries: make(map[string]agent.ClassSummary)}
}

// Load walks root recursively, decoding every ".class" file it finds and
// adding it to the graph. A file that fails to decode is logged and
// skipped rather than aborting the whole walk — mirroring classloader.go's
// walk, which discards a single bad class rather than failing the scan
// (spec has nothing to say about a classpath scan; this is pure CLI
// ambient infrastructure, not a core behavior).
func (g *Graph) Load(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".class") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			g.log.WithError(err).WithField("path", path).Warn("classgraph: skipping unreadable class file")
			return nil
		}
		summary, name, err := decodeSummary(data, g.module)
		if err != nil {
			g.log.WithError(err).WithField("path", path).Warn("classgraph: skipping malformed class file")
			return nil
		}
		g.mu.Lock()
		g.summaries[name] = summary
		g.mu.Unlock()
		return nil
	})
}

// Lookup satisfies agent.SupertypeLookup.
func (g *Graph) Lookup(name string) (agent.ClassSummary, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.summaries[name]
	return s, ok
}

// LoadMemberFinder satisfies memberfinder.Loader, so a Graph can also back a
// memberfinder.Cache for rulesbuilder.Builder.Validate — the same decoded
// Finder a ClassSummary already carries, just reached through the other
// collaborator interface the write side of the policy tree expects.
func (g *Graph) LoadMemberFinder(owner string) (*memberfinder.Finder, bool) {
	summary, ok := g.Lookup(owner)
	if !ok {
		return nil, false
	}
	return summary.Declared, true
}

// decodeSummary reads enough of a classfile to build its ClassSummary:
// super_class, interfaces, and every public/protected field and method
// name+descriptor (spec §4.5: "every public or protected member").
func decodeSummary(data []byte, module string) (agent.ClassSummary, string, error) {
	buf := bytebuf.New(data)
	if err := expectMagic(buf); err != nil {
		return agent.ClassSummary{}, "", err
	}
	if err := buf.Skip(4); err != nil { // minor_version, major_version
		return agent.ClassSummary{}, "", err
	}
	pool, err := constantpool.Decode(buf)
	if err != nil {
		return agent.ClassSummary{}, "", err
	}
	if err := buf.Skip(2); err != nil { // access_flags
		return agent.ClassSummary{}, "", err
	}
	thisClassIdx, err := buf.ReadU2()
	if err != nil {
		return agent.ClassSummary{}, "", err
	}
	superClassIdx, err := buf.ReadU2()
	if err != nil {
		return agent.ClassSummary{}, "", err
	}
	thisName, err := pool.ClassNameAt(thisClassIdx)
	if err != nil {
		return agent.ClassSummary{}, "", err
	}
	var superName string
	if superClassIdx != 0 {
		superName, err = pool.ClassNameAt(superClassIdx)
		if err != nil {
			return agent.ClassSummary{}, "", err
		}
	}

	interfaceNames, err := decodeInterfaces(buf, pool)
	if err != nil {
		return agent.ClassSummary{}, "", err
	}

	var declared []memberfinder.Member
	fieldMembers, err := decodeFields(buf, pool)
	if err != nil {
		return agent.ClassSummary{}, "", err
	}
	declared = append(declared, fieldMembers...)

	methodMembers, err := decodeMethods(buf, pool)
	if err != nil {
		return agent.ClassSummary{}, "", err
	}
	declared = append(declared, methodMembers...)

	summary := agent.ClassSummary{
		Module:         module,
		SuperName:      superName,
		InterfaceNames: interfaceNames,
		Declared:       memberfinder.New(thisName, declared),
	}
	return summary, thisName, nil
}

func expectMagic(buf *bytebuf.ByteBuf) error {
	magic, err := buf.ReadU4()
	if err != nil {
		return err
	}
	if magic != 0xCAFEBABE {
		return classFormatf("classgraph: bad magic %#08x", magic)
	}
	return nil
}

func decodeInterfaces(buf *bytebuf.ByteBuf, pool *constantpool.Pool) ([]string, error) {
	count, err := buf.ReadU2()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for i := uint16(0); i < count; i++ {
		idx, err := buf.ReadU2()
		if err != nil {
			return nil, err
		}
		name, err := pool.ClassNameAt(idx)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// decodeFields reads the field_info table, retaining only public/protected
// members (spec §4.5's visibility filter) and discarding every attribute.
func decodeFields(buf *bytebuf.ByteBuf, pool *constantpool.Pool) ([]memberfinder.Member, error) {
	count, err := buf.ReadU2()
	if err != nil {
		return nil, err
	}
	var out []memberfinder.Member
	for i := uint16(0); i < count; i++ {
		access, err := buf.ReadU2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := buf.ReadU2()
		if err != nil {
			return nil, err
		}
		descIdx, err := buf.ReadU2()
		if err != nil {
			return nil, err
		}
		if err := skipAttributes(buf); err != nil {
			return nil, err
		}
		if access&(accPublic|accProtected) == 0 {
			continue
		}
		name, err := pool.Utf8At(nameIdx)
		if err != nil {
			return nil, err
		}
		descriptor, err := pool.Utf8At(descIdx)
		if err != nil {
			return nil, err
		}
		out = append(out, memberfinder.Member{Name: name, Descriptor: descriptor})
	}
	return out, nil
}

func decodeMethods(buf *bytebuf.ByteBuf, pool *constantpool.Pool) ([]memberfinder.Member, error) {
	count, err := buf.ReadU2()
	if err != nil {
		return nil, err
	}
	var out []memberfinder.Member
	for i := uint16(0); i < count; i++ {
		access, err := buf.ReadU2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := buf.ReadU2()
		if err != nil {
			return nil, err
		}
		descIdx, err := buf.ReadU2()
		if err != nil {
			return nil, err
		}
		if err := skipAttributes(buf); err != nil {
			return nil, err
		}
		if access&(accPublic|accProtected) == 0 {
			continue
		}
		name, err := pool.Utf8At(nameIdx)
		if err != nil {
			return nil, err
		}
		descriptor, err := pool.Utf8At(descIdx)
		if err != nil {
			return nil, err
		}
		out = append(out, memberfinder.Member{Name: name, Descriptor: descriptor})
	}
	return out, nil
}

func skipAttributes(buf *bytebuf.ByteBuf) error {
	count, err := buf.ReadU2()
	if err != nil {
		return err
	}
	for i := uint16(0); i < count; i++ {
		if _, err := buf.ReadU2(); err != nil { // attribute_name_index
			return err
		}
		length, err := buf.ReadU4()
		if err != nil {
			return err
		}
		if err := buf.Skip(int(length)); err != nil {
			return err
		}
	}
	return nil
}
