/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// methodhandle.go implements the MethodHandle-constant rewriting spec
// §4.10 describes: a CONSTANT_MethodHandle entry that references a member a
// DenyCaller rule protects is patched in place to reference a synthesized
// static proxy instead (§4.9), so every invokedynamic call site that closes
// over the handle inherits the check without any further edit. It reuses
// CodeRewriter's own decision-selection logic (which Checker method a given
// reference kind maps to) and its proxyTable, since a MethodHandle target is
// just another caller-side reference to a class member — the only new part
// is that the "call site" being rewritten is a constant-pool entry rather
// than bytecode.
package classfileprocessor

import (
	"github.com/cojen/boxtin/src/constantpool"
	"github.com/cojen/boxtin/src/memberref"
	"github.com/cojen/boxtin/src/opcodes"
	"github.com/cojen/boxtin/src/rules"
)

// rewriteMethodHandles walks every CONSTANT_MethodHandle entry in pool and
// patches the ones that a DenyCaller decision protects to reference a proxy
// instead. It reports whether any entry was changed, so the caller knows
// whether to re-emit the constant pool section (this is an in-place
// Pool.mutated edit; it does not by itself grow the pool — the proxy
// methodref/class/utf8 entries proxyTable.Get appends account for Growth()
// separately, exactly as for a rewritten invoke instruction).
func rewriteMethodHandles(pool *constantpool.Pool, caller CallerChecker, proxies *proxyTable) (bool, error) {
	changed := false
	for i := uint16(1); i < pool.Count(); i++ {
		e, ok := pool.At(i)
		if !ok || e.Tag != constantpool.TagMethodHandle {
			continue
		}
		refKind, refIndex, err := pool.MethodHandleAt(i)
		if err != nil {
			return false, err
		}

		kind, ref, decision, isHandled, err := resolveMethodHandleDecision(pool, caller, refKind, refIndex)
		if err != nil {
			return false, err
		}
		if isHandled && ref.OwnerClass() == proxies.thisClassName {
			// Spec §4.8.2's "owner is this class, leave untouched" rule
			// applies identically to a MethodHandle constant naming a
			// member of the class being transformed.
			continue
		}
		// A constructor deny is never rewritten caller-side (spec §4.8.2);
		// rules.Rules.Lookup already coerces this away from DenyCaller, but
		// the guard is repeated here since a MethodHandle's reference_kind
		// can itself name a constructor (REF_newInvokeSpecial).
		if !isHandled || decision.IsAllow() || decision.Kind != rules.DenyCaller || ref.IsConstructor() {
			continue
		}

		proxyRefIndex, err := proxies.Get(kind, ref, decision)
		if err != nil {
			return false, err
		}
		if err := pool.SetMethodHandleRef(i, constantpool.RefInvokeStatic, proxyRefIndex); err != nil {
			return false, err
		}
		changed = true
	}
	return changed, nil
}

// resolveMethodHandleDecision maps a MethodHandle's reference kind to the
// member it names and the Checker method that decides it, mirroring
// CodeRewriter.rewriteInvoke/rewriteField's own op->Checker-method mapping.
// isHandled is false for a reference kind this transformer has nothing to
// say about (there are none outside the nine JVMS-defined kinds, but an
// unrecognized byte is tolerated rather than treated as a format error,
// since a MethodHandle constant no code path ever resolves is harmless).
func resolveMethodHandleDecision(pool *constantpool.Pool, caller CallerChecker, refKind constantpool.ReferenceKind, refIndex uint16) (opcodes.Kind, memberref.MemberRef, rules.Decision, bool, error) {
	switch refKind {
	case constantpool.RefGetField, constantpool.RefGetStatic, constantpool.RefPutField, constantpool.RefPutStatic:
		ref, err := pool.FieldRefAt(refIndex)
		if err != nil {
			return 0, memberref.MemberRef{}, rules.Decision{}, false, err
		}
		kind, _ := fieldKindFromRefKind(refKind)
		return kind, ref, caller.IsFieldAllowed(ref), true, nil

	case constantpool.RefInvokeVirtual, constantpool.RefInvokeInterface:
		ref, err := pool.MethodRefAt(refIndex)
		if err != nil {
			return 0, memberref.MemberRef{}, rules.Decision{}, false, err
		}
		kind := opcodes.KindInvokeVirtual
		if refKind == constantpool.RefInvokeInterface {
			kind = opcodes.KindInvokeInterface
		}
		return kind, ref, caller.IsVirtualMethodAllowed(ref), true, nil

	case constantpool.RefNewInvokeSpecial:
		ref, err := pool.MethodRefAt(refIndex)
		if err != nil {
			return 0, memberref.MemberRef{}, rules.Decision{}, false, err
		}
		return opcodes.KindInvokeSpecial, ref, caller.IsConstructorAllowed(ref), true, nil

	case constantpool.RefInvokeSpecial:
		ref, err := pool.MethodRefAt(refIndex)
		if err != nil {
			return 0, memberref.MemberRef{}, rules.Decision{}, false, err
		}
		if ref.IsConstructor() {
			return opcodes.KindInvokeSpecial, ref, caller.IsConstructorAllowed(ref), true, nil
		}
		return opcodes.KindInvokeSpecial, ref, caller.IsMethodAllowed(ref), true, nil

	case constantpool.RefInvokeStatic:
		ref, err := pool.MethodRefAt(refIndex)
		if err != nil {
			return 0, memberref.MemberRef{}, rules.Decision{}, false, err
		}
		return opcodes.KindInvokeStatic, ref, caller.IsMethodAllowed(ref), true, nil
	}
	return 0, memberref.MemberRef{}, rules.Decision{}, false, nil
}

func fieldKindFromRefKind(refKind constantpool.ReferenceKind) (opcodes.Kind, bool) {
	switch refKind {
	case constantpool.RefGetField:
		return opcodes.KindGetField, true
	case constantpool.RefGetStatic:
		return opcodes.KindGetStatic, true
	case constantpool.RefPutField:
		return opcodes.KindPutField, true
	case constantpool.RefPutStatic:
		return opcodes.KindPutStatic, true
	}
	return 0, false
}
