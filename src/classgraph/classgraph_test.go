/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classgraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cojen/boxtin/src/bytebuf"
	"github.com/sirupsen/logrus"
)

// buildClass hand-encodes a minimal classfile: this_class "a/B" extends
// "a/A" implements "a/I", declaring one public method "go" "()V", one
// private field "secret" "I" (must be filtered out), and one public field
// "count" "I". A trailing zero-length attribute table follows each member
// to exercise skipAttributes' no-op path.
func buildClass(t *testing.T) []byte {
	t.Helper()
	w := bytebuf.NewEmpty(256)
	w.WriteU4(0xCAFEBABE)
	w.WriteU2(0) // minor
	w.WriteU2(61) // major

	// constant pool: build by hand, indices assigned in order.
	// [1] Utf8 "a/B"        [2] Class -> 1
	// [3] Utf8 "a/A"        [4] Class -> 3
	// [5] Utf8 "a/I"        [6] Class -> 5
	// [7] Utf8 "go"         [8] Utf8 "()V"
	// [9] Utf8 "secret"     [10] Utf8 "I"
	// [11] Utf8 "count"
	entries := []string{"a/B", "a/A", "a/I", "go", "()V", "secret", "I", "count"}
	w.WriteU2(12) // constant_pool_count (1..11 used)
	writeUtf8(w, entries[0]) // 1
	writeClass(w, 1)         // 2
	writeUtf8(w, entries[1]) // 3
	writeClass(w, 3)         // 4
	writeUtf8(w, entries[2]) // 5
	writeClass(w, 5)         // 6
	writeUtf8(w, entries[3]) // 7
	writeUtf8(w, entries[4]) // 8
	writeUtf8(w, entries[5]) // 9
	writeUtf8(w, entries[6]) // 10
	writeUtf8(w, entries[7]) // 11

	w.WriteU2(0x0021) // access_flags (public, super)
	w.WriteU2(2)       // this_class -> a/B
	w.WriteU2(4)       // super_class -> a/A

	w.WriteU2(1) // interfaces_count
	w.WriteU2(6) // -> a/I

	w.WriteU2(2) // fields_count
	// private field "secret" I
	w.WriteU2(0x0002) // ACC_PRIVATE
	w.WriteU2(9)       // name "secret"
	w.WriteU2(10)      // descriptor "I"
	w.WriteU2(0)       // attributes_count
	// public field "count" I
	w.WriteU2(0x0001) // ACC_PUBLIC
	w.WriteU2(11)      // name "count"
	w.WriteU2(10)      // descriptor "I"
	w.WriteU2(0)       // attributes_count

	w.WriteU2(1) // methods_count
	w.WriteU2(0x0001) // ACC_PUBLIC
	w.WriteU2(7)       // name "go"
	w.WriteU2(8)       // descriptor "()V"
	w.WriteU2(0)       // attributes_count

	w.WriteU2(0) // class attributes_count

	return w.Bytes()
}

func writeUtf8(w *bytebuf.ByteBuf, s string) {
	w.WriteU1(1) // TagUtf8
	w.WriteU2(uint16(len(bytebuf.EncodeModifiedUtf8(s))))
	w.WriteUtfModified(s)
}

func writeClass(w *bytebuf.ByteBuf, nameIdx uint16) {
	w.WriteU1(7) // TagClass
	w.WriteU2(nameIdx)
}

func discardLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.PanicLevel)
	return log.WithField("test", true)
}

func TestDecodeSummaryHeaderAndVisibility(t *testing.T) {
	summary, name, err := decodeSummary(buildClass(t), "mymodule")
	require.NoError(t, err)
	assert.Equal(t, "a/B", name)
	assert.Equal(t, "a/A", summary.SuperName)
	assert.Equal(t, []string{"a/I"}, summary.InterfaceNames)
	assert.Equal(t, "mymodule", summary.Module)

	assert.True(t, summary.Declared.HasMember("go", "()V"))
	assert.True(t, summary.Declared.HasMember("count", "I"))
	assert.False(t, summary.Declared.HasMember("secret", "I"), "private field must be filtered out")
}

func TestGraphLoadAndLookup(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "B.class"), buildClass(t), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("not a class"), 0o644))

	g := New("classpath", discardLogger())
	require.NoError(t, g.Load(dir))

	summary, ok := g.Lookup("a/B")
	require.True(t, ok)
	assert.Equal(t, "a/A", summary.SuperName)

	_, ok = g.Lookup("does/not/Exist")
	assert.False(t, ok)

	finder, ok := g.LoadMemberFinder("a/B")
	require.True(t, ok)
	assert.True(t, finder.HasMember("go", "()V"))
}

func TestGraphLoadSkipsMalformedClassFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Bad.class"), []byte{0, 1, 2, 3}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Good.class"), buildClass(t), 0o644))

	g := New("classpath", discardLogger())
	require.NoError(t, g.Load(dir))

	_, ok := g.Lookup("a/B")
	assert.True(t, ok, "a malformed sibling file must not abort the whole scan")
}
