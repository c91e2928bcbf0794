/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package classfileprocessor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cojen/boxtin/src/agent"
	"github.com/cojen/boxtin/src/rules"
)

func allowAllPolicy() *rules.Rules {
	b := rules.NewBuilder()
	b.SetDefault(rules.Allowed)
	return b.Build()
}

func noSupertypes(string) (agent.ClassSummary, bool) { return agent.ClassSummary{}, false }

func TestTransformNilLoggerDoesNotPanic(t *testing.T) {
	p := New(allowAllPolicy(), noSupertypes, nil)
	assert.NotNil(t, p.Log)
}

func TestTransformNoOpReturnsOriginalBytes(t *testing.T) {
	original := buildMinimalClass(t)
	p := New(allowAllPolicy(), noSupertypes, nil)

	out, err := p.Transform(original, "app")
	require.NoError(t, err)
	assert.Equal(t, original, out, "an allow-everything policy must leave the class byte-for-byte unchanged")
}

func TestTransformRejectsMalformedInput(t *testing.T) {
	original := buildMinimalClass(t)
	original[0] = 0 // corrupt the magic

	p := New(allowAllPolicy(), noSupertypes, nil)
	_, err := p.Transform(original, "app")
	assert.Error(t, err)
}
