/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package constantpool

import (
	"github.com/cojen/boxtin/src/boxerr"
	"github.com/cojen/boxtin/src/memberref"
)

// Extend prepares this pool for appending new entries: it walks the decoded
// entries once and populates the value->index dedup maps the Add* methods
// consult, so a second transformer pass over the same class (or a pool built
// fresh for appends only) never emits a duplicate of something already
// present. Spec §4.2 calls this out explicitly ("extending must not
// duplicate an entry that already exists"); teacher's read-only CPutils.go
// has no write side to ground this on, so this is modeled after the
// memoization idiom teacher uses elsewhere (lazy-populated maps keyed by the
// value, filled on first need) rather than on a specific teacher function.
func (p *Pool) Extend() {
	if p.utf8ByValue != nil {
		return // already extended
	}
	p.utf8ByValue = make(map[string]uint16)
	p.classByName = make(map[string]uint16)
	p.natByKey = make(map[string]uint16)
	p.fieldrefByKey = make(map[string]uint16)
	p.methodrefByKey = make(map[string]uint16)
	p.imethodrefByKey = make(map[string]uint16)
	p.stringByValue = make(map[string]uint16)
	p.longByValue = make(map[int64]uint16)
	p.doubleByValue = make(map[float64]uint16)

	for i := uint16(1); i < uint16(len(p.entries)); i++ {
		e := p.entries[i]
		switch e.Tag {
		case TagUtf8:
			p.utf8ByValue[e.Utf8] = i
		case TagLong:
			p.longByValue[e.Int64] = i
			i++ // wide entry
		case TagDouble:
			p.doubleByValue[e.Float64] = i
			i++ // wide entry
		case TagClass:
			if name, err := p.Utf8At(e.Index1); err == nil {
				p.classByName[name] = i
			}
		case TagString:
			if s, err := p.Utf8At(e.Index1); err == nil {
				p.stringByValue[s] = i
			}
		case TagNameAndType:
			if name, desc, err := p.NameAndTypeAt(i); err == nil {
				p.natByKey[natKey(name, desc)] = i
			}
		case TagFieldref:
			if m, err := p.memberRefAt(e); err == nil {
				p.fieldrefByKey[string(m.EncodeFull())] = i
			}
		case TagMethodref:
			if m, err := p.memberRefAt(e); err == nil {
				p.methodrefByKey[string(m.EncodeFull())] = i
			}
		case TagInterfaceMethodref:
			if m, err := p.memberRefAt(e); err == nil {
				p.imethodrefByKey[string(m.EncodeFull())] = i
			}
		}
	}
}

func natKey(name, descriptor string) string { return name + ";" + descriptor }

// memberRefAt resolves a Fieldref/Methodref/InterfaceMethodref entry to its
// owner/name/descriptor triple.
func (p *Pool) memberRefAt(e Entry) (memberref.MemberRef, error) {
	owner, err := p.ClassNameAt(e.Index1)
	if err != nil {
		return memberref.MemberRef{}, err
	}
	name, descriptor, err := p.NameAndTypeAt(e.Index2)
	if err != nil {
		return memberref.MemberRef{}, err
	}
	return memberref.New(owner, name, descriptor), nil
}

// MethodRefAt resolves a Methodref/InterfaceMethodref entry to a MemberRef,
// tag-checked against either shape (invokevirtual/special/static share one
// constant form with invokeinterface).
func (p *Pool) MethodRefAt(index uint16) (memberref.MemberRef, error) {
	e, ok := p.At(index)
	if !ok || (e.Tag != TagMethodref && e.Tag != TagInterfaceMethodref) {
		return memberref.MemberRef{}, boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] is not a Methodref/InterfaceMethodref", index)
	}
	return p.memberRefAt(e)
}

// FieldRefAt resolves a Fieldref entry to a MemberRef.
func (p *Pool) FieldRefAt(index uint16) (memberref.MemberRef, error) {
	e, ok := p.At(index)
	if !ok || e.Tag != TagFieldref {
		return memberref.MemberRef{}, boxerr.Wrapf(boxerr.ClassFormat, "cp[%d] is not a Fieldref", index)
	}
	return p.memberRefAt(e)
}

func (p *Pool) append(e Entry) uint16 {
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, e)
	if e.Tag.isWide() {
		p.entries = append(p.entries, Entry{}) // tombstone
	}
	return idx
}

// AddUtf8 returns the index of a CONSTANT_Utf8 entry holding s, reusing an
// existing one if present.
func (p *Pool) AddUtf8(s string) uint16 {
	p.Extend()
	if idx, ok := p.utf8ByValue[s]; ok {
		return idx
	}
	idx := p.append(Entry{Tag: TagUtf8, Utf8: s})
	p.utf8ByValue[s] = idx
	return idx
}

// AddClass returns the index of a CONSTANT_Class entry naming the given
// binary class name, reusing an existing one if present.
func (p *Pool) AddClass(binaryName string) uint16 {
	p.Extend()
	if idx, ok := p.classByName[binaryName]; ok {
		return idx
	}
	nameIdx := p.AddUtf8(binaryName)
	idx := p.append(Entry{Tag: TagClass, Index1: nameIdx})
	p.classByName[binaryName] = idx
	return idx
}

// AddNameAndType returns the index of a CONSTANT_NameAndType entry for
// (name, descriptor), reusing an existing one if present.
func (p *Pool) AddNameAndType(name, descriptor string) uint16 {
	p.Extend()
	key := natKey(name, descriptor)
	if idx, ok := p.natByKey[key]; ok {
		return idx
	}
	nameIdx := p.AddUtf8(name)
	descIdx := p.AddUtf8(descriptor)
	idx := p.append(Entry{Tag: TagNameAndType, Index1: nameIdx, Index2: descIdx})
	p.natByKey[key] = idx
	return idx
}

// AddString returns the index of a CONSTANT_String entry for s, reusing an
// existing one if present.
func (p *Pool) AddString(s string) uint16 {
	p.Extend()
	if idx, ok := p.stringByValue[s]; ok {
		return idx
	}
	strIdx := p.AddUtf8(s)
	idx := p.append(Entry{Tag: TagString, Index1: strIdx})
	p.stringByValue[s] = idx
	return idx
}

// AddLong returns the index of a CONSTANT_Long entry for v, reusing an
// existing one if present.
func (p *Pool) AddLong(v int64) uint16 {
	p.Extend()
	if idx, ok := p.longByValue[v]; ok {
		return idx
	}
	idx := p.append(Entry{Tag: TagLong, Int64: v})
	p.longByValue[v] = idx
	return idx
}

// AddDouble returns the index of a CONSTANT_Double entry for v, reusing an
// existing one if present.
func (p *Pool) AddDouble(v float64) uint16 {
	p.Extend()
	if idx, ok := p.doubleByValue[v]; ok {
		return idx
	}
	idx := p.append(Entry{Tag: TagDouble, Float64: v})
	p.doubleByValue[v] = idx
	return idx
}

func (p *Pool) addRef(tag Tag, byKey map[string]uint16, owner, name, descriptor string) uint16 {
	p.Extend()
	key := natKey(owner, natKey(name, descriptor))
	if idx, ok := byKey[key]; ok {
		return idx
	}
	classIdx := p.AddClass(owner)
	natIdx := p.AddNameAndType(name, descriptor)
	idx := p.append(Entry{Tag: tag, Index1: classIdx, Index2: natIdx})
	byKey[key] = idx
	return idx
}

// AddFieldRef returns the index of a CONSTANT_Fieldref entry for
// owner.name:descriptor, reusing an existing one if present.
func (p *Pool) AddFieldRef(owner, name, descriptor string) uint16 {
	return p.addRef(TagFieldref, p.fieldrefByKey, owner, name, descriptor)
}

// AddMethodRef returns the index of a CONSTANT_Methodref entry for
// owner.name:descriptor, reusing an existing one if present.
func (p *Pool) AddMethodRef(owner, name, descriptor string) uint16 {
	return p.addRef(TagMethodref, p.methodrefByKey, owner, name, descriptor)
}

// AddInterfaceMethodRef returns the index of a CONSTANT_InterfaceMethodref
// entry for owner.name:descriptor, reusing an existing one if present.
func (p *Pool) AddInterfaceMethodRef(owner, name, descriptor string) uint16 {
	return p.addRef(TagInterfaceMethodref, p.imethodrefByKey, owner, name, descriptor)
}

// AddMemberRef is the MemberRef-typed convenience form of AddFieldRef /
// AddMethodRef / AddInterfaceMethodRef, dispatching on the invoke/access kind
// ProxySynthesizer and CodeRewriter already carry alongside each MemberRef.
func (p *Pool) AddMemberRef(isInterface, isField bool, ref memberref.MemberRef) uint16 {
	switch {
	case isField:
		return p.AddFieldRef(ref.OwnerClass(), ref.Name(), ref.Descriptor())
	case isInterface:
		return p.AddInterfaceMethodRef(ref.OwnerClass(), ref.Name(), ref.Descriptor())
	default:
		return p.AddMethodRef(ref.OwnerClass(), ref.Name(), ref.Descriptor())
	}
}
