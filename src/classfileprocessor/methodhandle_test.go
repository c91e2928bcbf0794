/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classfileprocessor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cojen/boxtin/src/bytebuf"
	"github.com/cojen/boxtin/src/constantpool"
	"github.com/cojen/boxtin/src/memberref"
	"github.com/cojen/boxtin/src/rules"
)

// stubChecker returns a fixed Decision from every Is*Allowed call,
// regardless of which member is asked about — enough to drive
// rewriteMethodHandles without needing a real Rules tree or class graph.
type stubChecker struct {
	decision rules.Decision
}

func (s stubChecker) IsConstructorAllowed(memberref.MemberRef) rules.Decision { return s.decision }
func (s stubChecker) IsMethodAllowed(memberref.MemberRef) rules.Decision      { return s.decision }
func (s stubChecker) IsVirtualMethodAllowed(memberref.MemberRef) rules.Decision {
	return s.decision
}
func (s stubChecker) IsFieldAllowed(memberref.MemberRef) rules.Decision { return s.decision }

func poolWithInvokeStaticHandle(t *testing.T) (*constantpool.Pool, uint16) {
	t.Helper()
	w := bytebuf.NewEmpty(128)
	// [1] Utf8 "a/Target" [2] Class->1 [3] Utf8 "go" [4] Utf8 "()V"
	// [5] NameAndType->3,4 [6] Methodref->2,5 [7] MethodHandle(kind=6,ref=6)
	w.WriteU2(8)
	writeUtf8(w, "a/Target")
	writeClass(w, 1)
	writeUtf8(w, "go")
	writeUtf8(w, "()V")
	w.WriteU1(byte(constantpool.TagNameAndType))
	w.WriteU2(3)
	w.WriteU2(4)
	w.WriteU1(byte(constantpool.TagMethodref))
	w.WriteU2(2)
	w.WriteU2(5)
	w.WriteU1(byte(constantpool.TagMethodHandle))
	w.WriteU1(byte(constantpool.RefInvokeStatic))
	w.WriteU2(6)

	pool, err := constantpool.Decode(bytebuf.New(w.Bytes()))
	require.NoError(t, err)
	return pool, 7
}

func TestRewriteMethodHandlesPatchesDeniedCallerTarget(t *testing.T) {
	pool, handleIdx := poolWithInvokeStaticHandle(t)
	proxies := newProxyTable(pool, "a/Caller", nil)
	decision := rules.Decision{Kind: rules.DenyCaller, Action: rules.DenyActionThrow, ExceptionName: "java/lang/SecurityException"}

	changed, err := rewriteMethodHandles(pool, stubChecker{decision: decision}, proxies)
	require.NoError(t, err)
	assert.True(t, changed)

	kind, refIndex, err := pool.MethodHandleAt(handleIdx)
	require.NoError(t, err)
	assert.Equal(t, constantpool.RefInvokeStatic, kind)

	ref, err := pool.MethodRefAt(refIndex)
	require.NoError(t, err)
	assert.Equal(t, "a/Caller", ref.OwnerClass(), "the handle must now target a proxy declared on the transformed class")
	assert.True(t, pool.Mutated())
}

func TestRewriteMethodHandlesLeavesAllowedTargetUntouched(t *testing.T) {
	pool, handleIdx := poolWithInvokeStaticHandle(t)
	proxies := newProxyTable(pool, "a/Caller", nil)

	changed, err := rewriteMethodHandles(pool, stubChecker{decision: rules.Allowed}, proxies)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.False(t, pool.Mutated())

	_, refIndex, err := pool.MethodHandleAt(handleIdx)
	require.NoError(t, err)
	assert.Equal(t, uint16(6), refIndex)
}
