/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// coderewriter.go implements CodeRewriter (spec §4.8): the target-side
// prologue that makes a protected method check its own caller, and the
// caller-side rewrite that redirects a denied invoke/field access at a call
// site to a synthesized proxy. It is grounded on spec §4.8's own step list
// rather than a teacher analogue — teacher's classloader never rewrites
// bytecode, only interprets it — but reuses teacher's byte-offset bookkeeping
// style from classloader.go's method-table walk.
package classfileprocessor

import (
	"strings"

	"github.com/cojen/boxtin/src/constantpool"
	"github.com/cojen/boxtin/src/memberref"
	"github.com/cojen/boxtin/src/opcodes"
	"github.com/cojen/boxtin/src/rules"
)

// Well-known binary names of the host agent's Java-side bridge classes
// (spec §4.8.1: "a static field providing caller-class access" plus the
// external Controller.Check callback). boxtin/agent/Runtime is the Java
// counterpart of this module's own agent.Walker/agent.Controller Go
// interfaces — the bridge the real java.lang.instrument agent installs at
// premain time; the core only ever references it by name when synthesizing
// bytecode, never loads or calls it directly.
const (
	runtimeOwner        = "boxtin/agent/Runtime"
	walkerFieldName     = "WALKER"
	walkerFieldDesc      = "Lboxtin/agent/Walker;"
	walkerIface         = "boxtin/agent/Walker"
	getCallerClassName  = "getCallerClass"
	getCallerClassDesc  = "()Ljava/lang/String;"
	enforceMethodName   = "enforce"
	enforceMethodDesc   = "(Ljava/lang/String;Ljava/lang/String;Ljava/lang/String;Ljava/lang/String;)V"
)

// CallerChecker is the subset of Checker's API CodeRewriter consults when
// deciding whether to rewrite a call site. It is satisfied by *checker.Checker;
// expressed as an interface here so this package never imports checker
// directly (checker already imports agent, and classfileprocessor has no
// reason to widen its own import graph to agent's test seams).
type CallerChecker interface {
	IsConstructorAllowed(ref memberref.MemberRef) rules.Decision
	IsMethodAllowed(ref memberref.MemberRef) rules.Decision
	IsVirtualMethodAllowed(ref memberref.MemberRef) rules.Decision
	IsFieldAllowed(ref memberref.MemberRef) rules.Decision
}

// CodeRewriter rewrites one class's methods in place against a policy: a
// target-side prologue for methods this class declares that a DenyTarget
// rule protects, and a caller-side proxy substitution for any invoke/field
// instruction in this class's own method bodies that a DenyCaller rule
// protects.
type CodeRewriter struct {
	pool          *constantpool.Pool
	policy        *rules.Rules
	caller        CallerChecker
	thisClassName string
	proxies       *proxyTable
}

func newCodeRewriter(pool *constantpool.Pool, policy *rules.Rules, caller CallerChecker, thisClassName string, methods []methodInfo) *CodeRewriter {
	return &CodeRewriter{
		pool: pool, policy: policy, caller: caller, thisClassName: thisClassName,
		proxies: newProxyTable(pool, thisClassName, methods),
	}
}

// Rewrite returns a Replacement splicing in an edited Code attribute for m,
// or nil if m needs no change at all (the common case — most methods touch
// nothing a policy cares about, and the emitter passes their bytes through
// untouched). "<clinit>" is never rewritten: a class initializer has no
// meaningful "caller" to check and spec's caller-side rewrite only ever
// targets ordinary invoke/field instructions inside methods a policy can
// actually name.
func (cr *CodeRewriter) Rewrite(m *methodInfo) (*Replacement, error) {
	if m.code == nil || m.name == "<clinit>" {
		return nil, nil
	}
	ca := m.code

	prologue, needsPrologue, err := cr.buildPrologueIfNeeded(m)
	if err != nil {
		return nil, err
	}

	newCode, edited, err := cr.rewriteCallSites(ca.code)
	if err != nil {
		return nil, err
	}

	if !needsPrologue && !edited {
		return nil, nil
	}

	growth := len(prologue)
	finalCode := make([]byte, 0, growth+len(newCode))
	finalCode = append(finalCode, prologue...)
	finalCode = append(finalCode, newCode...)
	ca.code = finalCode

	if ca.maxStack < 4 && needsPrologue {
		ca.maxStack = 4
	}

	if growth > 0 {
		shiftSideTables(ca, uint16(growth))
	}

	data, err := encodeCodeAttr(ca, cr.pool)
	if err != nil {
		return nil, err
	}
	return &Replacement{Offset: ca.attrHeaderOffset, OrigLen: ca.origAttrLen, Data: data}, nil
}

// AppendedProxies returns the serialized method_info bytes of every proxy
// method synthesized while rewriting this class's methods, for the driver
// to append to the method table (spec §4.9).
func (cr *CodeRewriter) AppendedProxies() [][]byte {
	return cr.proxies.Appended()
}

func (cr *CodeRewriter) buildPrologueIfNeeded(m *methodInfo) ([]byte, bool, error) {
	pkg, cls := splitBinaryName(cr.thisClassName)
	decision := cr.policy.Lookup(pkg, cls, m.name, m.descriptor)
	if decision.IsAllow() || decision.Kind != rules.DenyTarget {
		return nil, false, nil
	}
	prologue := cr.emitPrologue(m.name, m.descriptor)
	return prologue, true, nil
}

// emitPrologue builds the fixed target-side check sequence (spec §4.8.1):
// fetch the caller's class from the agent's Walker, then hand
// (callerClass, thisClass, name, descriptor) to the agent's enforce bridge,
// which consults the installed Controller and throws if denied. The
// sequence is padded to a multiple of 4 bytes so its insertion never
// disturbs any tableswitch/lookupswitch alignment further into the method
// (their padding is relative to the method's own start, so a prefix whose
// length is a multiple of 4 leaves every later pad boundary unchanged).
func (cr *CodeRewriter) emitPrologue(name, descriptor string) []byte {
	walkerFieldIdx := cr.pool.AddFieldRef(runtimeOwner, walkerFieldName, walkerFieldDesc)
	getCallerIdx := cr.pool.AddInterfaceMethodRef(walkerIface, getCallerClassName, getCallerClassDesc)
	thisClassIdx := cr.pool.AddString(cr.thisClassName)
	nameIdx := cr.pool.AddString(name)
	descIdx := cr.pool.AddString(descriptor)
	enforceIdx := cr.pool.AddMethodRef(runtimeOwner, enforceMethodName, enforceMethodDesc)

	var code []byte
	code = append(code, opcodes.GETSTATIC)
	code = appendU2(code, walkerFieldIdx)
	code = append(code, opcodes.INVOKEINTERFACE)
	code = appendU2(code, getCallerIdx)
	code = append(code, 1, 0) // count, reserved
	code = append(code, opcodes.LDC_W)
	code = appendU2(code, thisClassIdx)
	code = append(code, opcodes.LDC_W)
	code = appendU2(code, nameIdx)
	code = append(code, opcodes.LDC_W)
	code = appendU2(code, descIdx)
	code = append(code, opcodes.INVOKESTATIC)
	code = appendU2(code, enforceIdx)

	for len(code)%4 != 0 {
		code = append(code, opcodes.NOP)
	}
	return code
}

// rewriteCallSites walks code linearly, replacing any invoke/field
// instruction a DenyCaller decision protects with an INVOKESTATIC to a
// synthesized proxy of identical byte length (invokeinterface's 5-byte
// site is padded with NOPs after the 3-byte invokestatic). No instruction
// ever changes length, so callers never need to touch branch offsets or
// side tables for this part of the edit.
func (cr *CodeRewriter) rewriteCallSites(code []byte) ([]byte, bool, error) {
	out := make([]byte, len(code))
	copy(out, code)
	edited := false

	pos := 0
	for pos < len(code) {
		op := code[pos]
		length, err := opcodes.InstructionLength(code, pos)
		if err != nil {
			return nil, false, classFormatf("method body: %v", err)
		}

		if opcodes.IsInvoke(op) {
			changed, err := cr.rewriteInvoke(out, pos, op, length)
			if err != nil {
				return nil, false, err
			}
			edited = edited || changed
		} else if fieldKind, ok := opcodes.FieldKindFromOp(op); ok {
			changed, err := cr.rewriteField(out, pos, fieldKind)
			if err != nil {
				return nil, false, err
			}
			edited = edited || changed
		}

		pos += length
	}
	return out, edited, nil
}

func (cr *CodeRewriter) rewriteInvoke(code []byte, pos int, op byte, length int) (bool, error) {
	index := be16(code[pos+1 : pos+3])
	ref, err := cr.pool.MethodRefAt(index)
	if err != nil {
		return false, classFormatf("invoke site at %d: %v", pos, err)
	}
	if ref.OwnerClass() == cr.thisClassName {
		// Spec §4.8.2: "If the owner is this class, leave untouched" — a
		// call from one method of this class to another is never a
		// caller-side rewrite target, regardless of what the Checker's
		// module-resolution fast path would otherwise conclude.
		return false, nil
	}

	var decision rules.Decision
	kind, _ := opcodes.KindFromOp(op)
	switch {
	case op == opcodes.INVOKESPECIAL && ref.IsConstructor():
		decision = cr.caller.IsConstructorAllowed(ref)
	case op == opcodes.INVOKEVIRTUAL || op == opcodes.INVOKEINTERFACE:
		decision = cr.caller.IsVirtualMethodAllowed(ref)
	default:
		decision = cr.caller.IsMethodAllowed(ref)
	}

	// Spec §4.8.2: a constructor deny is never rewritten caller-side (an
	// invokespecial on an uninitialized reference cannot be replaced with an
	// invokestatic proxy); rules.Rules.Lookup already coerces a constructor's
	// Decision away from DenyCaller, but this holds regardless of where
	// decision came from.
	if decision.IsAllow() || decision.Kind != rules.DenyCaller || ref.IsConstructor() {
		return false, nil
	}

	proxyIdx, err := cr.proxies.Get(kind, ref, decision)
	if err != nil {
		return false, err
	}

	code[pos] = opcodes.INVOKESTATIC
	code[pos+1] = byte(proxyIdx >> 8)
	code[pos+2] = byte(proxyIdx)
	for i := 3; i < length; i++ {
		code[pos+i] = opcodes.NOP
	}
	return true, nil
}

func (cr *CodeRewriter) rewriteField(code []byte, pos int, kind opcodes.Kind) (bool, error) {
	index := be16(code[pos+1 : pos+3])
	ref, err := cr.pool.FieldRefAt(index)
	if err != nil {
		return false, classFormatf("field site at %d: %v", pos, err)
	}
	if ref.OwnerClass() == cr.thisClassName {
		// Spec §4.8.2's "owner is this class, leave untouched" rule.
		return false, nil
	}

	decision := cr.caller.IsFieldAllowed(ref)
	if decision.IsAllow() || decision.Kind != rules.DenyCaller {
		return false, nil
	}

	proxyIdx, err := cr.proxies.Get(kind, ref, decision)
	if err != nil {
		return false, err
	}
	code[pos] = opcodes.INVOKESTATIC
	code[pos+1] = byte(proxyIdx >> 8)
	code[pos+2] = byte(proxyIdx)
	return true, nil
}

// shiftSideTables adds growth to every offset the Code attribute's side
// tables carry, and promotes/adjusts the first StackMapTable frame's
// offset_delta — the only frame whose delta is relative to the method's
// own start rather than to the previous frame (spec §4.8.3). Every shifted
// value saturates at 0xFFFF (spec §4.8.3's pc' = min(pc + g, 0xFFFF)) rather
// than wrapping, since a pc is a u2 and this edit only ever grows a method,
// never shrinks one back into range.
func shiftSideTables(ca *codeAttr, growth uint16) {
	for i := range ca.exceptionTable {
		ca.exceptionTable[i].startPC = addClampedU16(ca.exceptionTable[i].startPC, growth)
		ca.exceptionTable[i].endPC = addClampedU16(ca.exceptionTable[i].endPC, growth)
		ca.exceptionTable[i].handlerPC = addClampedU16(ca.exceptionTable[i].handlerPC, growth)
	}
	for _, rows := range ca.lineNumberTables {
		for i := range rows {
			rows[i].startPC = addClampedU16(rows[i].startPC, growth)
		}
	}
	for _, rows := range ca.localVariableTables {
		for i := range rows {
			rows[i].startPC = addClampedU16(rows[i].startPC, growth)
		}
	}
	for _, rows := range ca.localVarTypeTables {
		for i := range rows {
			rows[i].startPC = addClampedU16(rows[i].startPC, growth)
		}
	}
	if ca.hasStackMapTable && len(ca.stackMapTable) > 0 {
		first := &ca.stackMapTable[0]
		promoteFirstFrame(first, addClampedU16(first.offsetDelta, growth))
	}
}

// addClampedU16 returns pc+growth saturated at 0xFFFF instead of wrapping
// past a u2's range.
func addClampedU16(pc, growth uint16) uint16 {
	sum := uint32(pc) + uint32(growth)
	if sum > 0xFFFF {
		return 0xFFFF
	}
	return uint16(sum)
}

func be16(b []byte) uint16 { return uint16(b[0])<<8 | uint16(b[1]) }

func splitBinaryName(binaryName string) (pkg, cls string) {
	if i := strings.LastIndexByte(binaryName, '/'); i >= 0 {
		return binaryName[:i], binaryName[i+1:]
	}
	return "", binaryName
}
