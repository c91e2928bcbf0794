/*
 * Boxtin - a classfile transformer
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

package rulesbuilder

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cojen/boxtin/src/rules"
)

// tokenize splits DSL text into whitespace-delimited tokens, first forcing
// "{" and "}" apart from any adjacent word so "MethodHandles{" and
// "MethodHandles {" tokenize identically.
func tokenize(text string) []string {
	var sb strings.Builder
	for _, r := range text {
		switch r {
		case '{', '}':
			sb.WriteByte(' ')
			sb.WriteRune(r)
			sb.WriteByte(' ')
		default:
			sb.WriteRune(r)
		}
	}
	return strings.Fields(sb.String())
}

type parser struct {
	toks []string
	pos  int
}

func (p *parser) atEnd() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() string {
	if p.atEnd() {
		return ""
	}
	return p.toks[p.pos]
}

func (p *parser) peekKeyword(kw string) bool { return p.peek() == kw }
func (p *parser) peekPunct(punct string) bool {
	return p.peek() == punct
}

func (p *parser) advance() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) expectKeyword(kw string) error {
	if p.peek() != kw {
		return syntaxError(kw, p.peek())
	}
	p.advance()
	return nil
}

func (p *parser) expectPunct(punct string) error {
	if p.peek() != punct {
		return syntaxError(punct, p.peek())
	}
	p.advance()
	return nil
}

func (p *parser) expectIdent() (string, error) {
	if p.atEnd() || p.peek() == "{" || p.peek() == "}" {
		return "", syntaxError("identifier", p.peek())
	}
	return p.advance(), nil
}

// expectDecision parses "allow" or "deny (target|caller) (throw <class> |
// skip | value <int>)".
func (p *parser) expectDecision() (rules.Decision, error) {
	switch p.peek() {
	case "allow":
		p.advance()
		return rules.Allowed, nil
	case "deny":
		p.advance()
		kind := rules.DenyTarget
		switch p.peek() {
		case "target":
			p.advance()
		case "caller":
			kind = rules.DenyCaller
			p.advance()
		default:
			return rules.Decision{}, syntaxError(`"target" or "caller"`, p.peek())
		}
		switch p.peek() {
		case "throw":
			p.advance()
			exceptionName, err := p.expectIdent()
			if err != nil {
				return rules.Decision{}, err
			}
			return rules.Decision{Kind: kind, Action: rules.DenyActionThrow, ExceptionName: exceptionName}, nil
		case "skip":
			p.advance()
			return rules.Decision{Kind: kind, Action: rules.DenyActionSkip}, nil
		case "value":
			p.advance()
			lit, err := p.expectIdent()
			if err != nil {
				return rules.Decision{}, err
			}
			n, convErr := strconv.Atoi(lit)
			if convErr != nil {
				return rules.Decision{}, syntaxError("integer literal", lit)
			}
			return rules.Decision{Kind: kind, Action: rules.DenyActionValue, Value: int32(n)}, nil
		default:
			return rules.Decision{}, syntaxError(`"throw", "skip" or "value"`, p.peek())
		}
	default:
		return rules.Decision{}, syntaxError(`"allow" or "deny"`, p.peek())
	}
}

// maybeDefaultStmt consumes a default decision statement if one is present
// (i.e. the next token is literally "allow" or "deny"); a descriptor token
// never collides with those two keywords, so no lookahead beyond one token
// is needed to tell a default statement apart from the first variant line.
func (p *parser) maybeDefaultStmt() (rules.Decision, bool, error) {
	if p.peek() != "allow" && p.peek() != "deny" {
		return rules.Decision{}, false, nil
	}
	d, err := p.expectDecision()
	return d, err == nil, err
}

func syntaxError(want, got string) error {
	if got == "" {
		got = "end of input"
	}
	return fmt.Errorf("rules DSL: expected %s, found %q", want, got)
}
