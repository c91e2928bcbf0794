/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package classfileprocessor's processor.go ties classfile.go (decode),
// coderewriter.go/proxy.go (edit) and replacement.go (re-emit) together into
// ClassFileProcessor (spec §4.7): the single entry point a host agent calls
// with a class's raw bytes and gets back either the same bytes (nothing
// applicable) or a transformed classfile.
package classfileprocessor

import (
	"io"

	"github.com/cojen/boxtin/src/agent"
	"github.com/cojen/boxtin/src/bytebuf"
	"github.com/cojen/boxtin/src/checker"
	"github.com/cojen/boxtin/src/rules"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ClassFileProcessor transforms classfiles against one policy tree. It is
// stateless across calls to Transform — spec §5 gives each transformed
// class its own Checker instance (one per caller module), so nothing here
// is shared mutable state beyond the immutable Rules and the supertype
// lookup function.
type ClassFileProcessor struct {
	policy     *rules.Rules
	supertypes agent.SupertypeLookup

	// Log receives one structured entry per Transform call, tagged with a
	// fresh transform_id so concurrent transformations of distinct
	// classfiles can be told apart in shared log output (spec §0.1 of this
	// expansion). A nil Log is replaced with a discarding one, matching
	// lazydocker's *logrus.Entry-as-a-field idiom rather than a package-level
	// logger teacher's own trace.Trace would use.
	Log *logrus.Entry
}

// New builds a ClassFileProcessor against a fixed policy tree and class
// graph accessor, logging through log (or silently, if log is nil).
func New(policy *rules.Rules, supertypes agent.SupertypeLookup, log *logrus.Entry) *ClassFileProcessor {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard.WithField("component", "classfileprocessor")
	}
	return &ClassFileProcessor{policy: policy, supertypes: supertypes, Log: log}
}

// Transform decodes original, rewrites it against p's policy using
// callerModule as the module identity of the class being transformed (the
// caller context for every invoke/field instruction its own methods
// contain), and returns the re-emitted bytes. Any internal error — a
// malformed classfile, a truncated attribute, an out-of-range constant-pool
// index, a panic inside a rewriting helper — surfaces as boxerr.ClassFormat
// (spec §4.7 step 7: "allow on failure would be a bypass"), except that a
// constant-pool Utf8 entry that is not valid modified UTF-8 surfaces as
// boxerr.MalformedUtf; it is the host agent's responsibility to treat a
// returned error as "deny the class", not this package's.
func (p *ClassFileProcessor) Transform(original []byte, callerModule string) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, boxerrf("internal error: %v", r)
		}
	}()
	log := p.Log.WithField("transform_id", uuid.New().String())
	log.WithField("caller_module", callerModule).Debug("transforming classfile")

	buf := bytebuf.New(original)
	cf, err := decodeClassFile(buf)
	if err != nil {
		log.WithError(err).Warn("classfile decode failed")
		return nil, err
	}
	log = log.WithField("class", cf.thisClassName)

	ch := checker.New(callerModule, p.policy, p.supertypes)
	rewriter := newCodeRewriter(cf.pool, p.policy, ch, cf.thisClassName, cf.methods)

	var replacements []Replacement
	anyChange := false
	for i := range cf.methods {
		m := &cf.methods[i]
		repl, err := rewriter.Rewrite(m)
		if err != nil {
			log.WithError(err).WithField("method", m.name).Warn("method rewrite failed")
			return nil, err
		}
		if repl != nil {
			replacements = append(replacements, *repl)
			anyChange = true
		}
	}

	handlesChanged, err := rewriteMethodHandles(cf.pool, ch, rewriter.proxies)
	if err != nil {
		log.WithError(err).Warn("method handle rewrite failed")
		return nil, err
	}
	if handlesChanged {
		anyChange = true
	}

	proxies := rewriter.AppendedProxies()
	if len(proxies) > 0 {
		anyChange = true
	}

	if !anyChange && cf.pool.Growth() == 0 && !cf.pool.Mutated() {
		// Nothing applicable: return the original bytes untouched, per
		// spec §4.7's "nothing to check" short-circuit.
		log.Debug("no applicable rules, class unchanged")
		return original, nil
	}

	if cf.pool.Growth() > 0 || cf.pool.Mutated() {
		var poolBuf bytebuf.ByteBuf
		cf.pool.WriteTo(&poolBuf)
		replacements = append(replacements, Replacement{
			Offset: cf.poolStartOffset, OrigLen: cf.poolEndOffset - cf.poolStartOffset,
			Data: append([]byte(nil), poolBuf.Bytes()...),
		})
	}

	if len(proxies) > 0 {
		var appended []byte
		for _, body := range proxies {
			appended = append(appended, body...)
		}
		replacements = append(replacements,
			Replacement{Offset: cf.methodCountOffset, OrigLen: 2, Data: encodeU2(uint16(len(cf.methods) + len(proxies)))},
			Replacement{Offset: cf.methodsEndOffset, OrigLen: 0, Data: appended},
		)
	}

	log.WithField("proxies_added", len(proxies)).Info("classfile transformed")
	return emit(original, replacements)
}

func encodeU2(v uint16) []byte { return []byte{byte(v >> 8), byte(v)} }

// emit applies replacements (which may arrive in any order — constant pool
// and method-table edits are appended independently of the per-method Code
// edits found during the walk) in strictly increasing offset order via
// emitter, per spec §5.
func emit(original []byte, replacements []Replacement) ([]byte, error) {
	sortReplacements(replacements)
	e := newEmitter(original)
	out := make([]byte, 0, len(original)+64)
	for _, r := range replacements {
		if err := e.apply(&out, r); err != nil {
			return nil, err
		}
	}
	e.finish(&out)
	return out, nil
}

func sortReplacements(rs []Replacement) {
	for i := 1; i < len(rs); i++ {
		for j := i; j > 0 && rs[j].Offset < rs[j-1].Offset; j-- {
			rs[j], rs[j-1] = rs[j-1], rs[j]
		}
	}
}
