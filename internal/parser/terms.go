package parser

import (
	"sort"
	"strconv"
	"time"

	"github.com/kode4food/flowscript/internal/lexer"
	"github.com/kode4food/flowscript/internal/util"
	"github.com/kode4food/flowscript/pkg/api"
	"github.com/kode4food/flowscript/pkg/ast"
)

// modifierDepth fixes how policy wrappers nest around a term no matter
// the written order: guard innermost, then timeout, retry, breaker,
// debounce, throttle, loop, detach outermost. Timeout inside retry is
// what gives each attempt its own deadline
var modifierDepth = map[ast.Kind]int{
	ast.KindGuard:    0,
	ast.KindTimeout:  1,
	ast.KindRetry:    2,
	ast.KindBreaker:  3,
	ast.KindDebounce: 4,
	ast.KindThrottle: 5,
	ast.KindLoop:     6,
	ast.KindDetach:   7,
}

// parsePostfix applies the modifier suffixes that bind to the preceding
// term. A term carries at most one modifier of each kind; wrappers are
// nested by modifierDepth rather than written order
func (p *Parser) parsePostfix() (*ast.Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	seen := util.Set[string]{}
	var wrappers []*ast.Node
	for {
		mod, w, err := p.parseModifier(node)
		if err != nil {
			return nil, err
		}
		if mod == "" {
			break
		}
		if !seen.AddNew(mod) {
			return nil, p.errorHere("a single " + mod + " modifier")
		}
		if w != nil {
			wrappers = append(wrappers, w)
		}
	}

	sort.SliceStable(wrappers, func(i, j int) bool {
		return modifierDepth[wrappers[i].Kind] <
			modifierDepth[wrappers[j].Kind]
	})
	for _, w := range wrappers {
		w.Children = []*ast.Node{node}
		node = w
	}
	return node, nil
}

// parseModifier consumes one postfix modifier if present. Wrapping
// modifiers return a childless wrapper node for parsePostfix to nest;
// in-place modifiers annotate node directly and return nil
func (p *Parser) parseModifier(
	node *ast.Node,
) (string, *ast.Node, error) {
	t := p.cur()
	switch t.Kind {
	case lexer.TokenStar:
		p.advance()
		return modQuantifier, wrapLoop(t.Pos, 0, -1), nil

	case lexer.TokenPlus:
		p.advance()
		return modQuantifier, wrapLoop(t.Pos, 1, -1), nil

	case lexer.TokenQuery:
		if p.peekKind(1) == lexer.TokenLBracket {
			return p.parseGuard()
		}
		p.advance()
		return modQuantifier, wrapLoop(t.Pos, 0, 1), nil

	case lexer.TokenLBrace:
		// `{m,n}` only; a brace not followed by a number belongs to a
		// branch or state machine primary
		if p.peekKind(1) != lexer.TokenNumber {
			return "", nil, nil
		}
		return p.parseRangeLoop()

	case lexer.TokenAt:
		if p.peekKind(1) != lexer.TokenNumber {
			return "", nil, nil
		}
		return p.parseRetry()

	case lexer.TokenAtAt:
		return p.parseBreaker()

	case lexer.TokenTilde:
		return p.parseTimeout()

	case lexer.TokenDebounce:
		p.advance()
		d, err := p.parseDuration()
		if err != nil {
			return "", nil, err
		}
		return modDebounce, wrapPolicy(ast.KindDebounce, t.Pos, d), nil

	case lexer.TokenThrottle:
		p.advance()
		d, err := p.parseDuration()
		if err != nil {
			return "", nil, err
		}
		return modThrottle, wrapPolicy(ast.KindThrottle, t.Pos, d), nil

	case lexer.TokenCaret:
		p.advance()
		name, err := p.expect(lexer.TokenName)
		if err != nil {
			return "", nil, err
		}
		node.Compensation = api.StepName(name.Lexeme)
		return modComp, nil, nil

	case lexer.TokenAmp:
		p.advance()
		return modDetach, &ast.Node{
			Kind: ast.KindDetach,
			Pos:  t.Pos,
		}, nil

	case lexer.TokenColon:
		if p.peekKind(1) != lexer.TokenName {
			return "", nil, nil
		}
		p.advance()
		name, _ := p.expect(lexer.TokenName)
		node.Binding = name.Lexeme
		return "binding", nil, nil

	case lexer.TokenAnnotation:
		p.advance()
		node.Annotation = t.Lexeme
		return "annotation", nil, nil
	}

	return "", nil, nil
}

// `?[pred]`
func (p *Parser) parseGuard() (string, *ast.Node, error) {
	pos := p.cur().Pos
	p.advance() // ?
	p.advance() // [
	name, err := p.expect(lexer.TokenName)
	if err != nil {
		return "", nil, err
	}
	if _, err := p.expect(lexer.TokenRBracket); err != nil {
		return "", nil, err
	}
	return modGuard, &ast.Node{
		Kind:  ast.KindGuard,
		Pos:   pos,
		Guard: api.StepName(name.Lexeme),
	}, nil
}

// `{m,n}`
func (p *Parser) parseRangeLoop() (string, *ast.Node, error) {
	pos := p.cur().Pos
	p.advance() // {
	minTok, err := p.expect(lexer.TokenNumber)
	if err != nil {
		return "", nil, err
	}
	if _, err := p.expect(lexer.TokenComma); err != nil {
		return "", nil, err
	}
	maxTok, err := p.expect(lexer.TokenNumber)
	if err != nil {
		return "", nil, err
	}
	if _, err := p.expect(lexer.TokenRBrace); err != nil {
		return "", nil, err
	}

	lo, _ := strconv.Atoi(minTok.Lexeme)
	hi, _ := strconv.Atoi(maxTok.Lexeme)
	if hi < lo {
		return "", nil, p.errorAt(pos, "quantifier with min <= max",
			minTok.Lexeme+","+maxTok.Lexeme)
	}
	return modQuantifier, wrapLoop(pos, lo, hi), nil
}

// `@n[:strategy[:baseDelay]]`
func (p *Parser) parseRetry() (string, *ast.Node, error) {
	pos := p.cur().Pos
	p.advance() // @
	numTok, _ := p.expect(lexer.TokenNumber)
	attempts, _ := strconv.Atoi(numTok.Lexeme)
	if attempts < 1 {
		return "", nil, p.errorAt(pos, "at least one attempt",
			numTok.Lexeme)
	}

	spec := &ast.RetrySpec{
		MaxAttempts: attempts,
		Strategy:    ast.RetryFixed,
		BaseDelay:   defaultRetryBase,
		Multiplier:  defaultRetryMultiplier,
	}

	if p.cur().Kind == lexer.TokenColon &&
		p.peekKind(1) == lexer.TokenName {
		strat := p.tokens[p.pos+1].Lexeme
		if !validStrategies.Contains(strat) {
			return "", nil, p.errorAt(p.cur().Pos,
				"retry strategy (fixed, linear, exp)", strat)
		}
		p.advance()
		p.advance()
		spec.Strategy = strat

		if p.cur().Kind == lexer.TokenColon &&
			p.peekKind(1) == lexer.TokenDuration {
			p.advance()
			d, err := p.parseDuration()
			if err != nil {
				return "", nil, err
			}
			spec.BaseDelay = d
		}
	}

	return modRetry, &ast.Node{
		Kind:  ast.KindRetry,
		Pos:   pos,
		Retry: spec,
	}, nil
}

// `@@{n,cooldown}`
func (p *Parser) parseBreaker() (string, *ast.Node, error) {
	pos := p.cur().Pos
	p.advance() // @@
	if _, err := p.expect(lexer.TokenLBrace); err != nil {
		return "", nil, err
	}
	numTok, err := p.expect(lexer.TokenNumber)
	if err != nil {
		return "", nil, err
	}
	if _, err := p.expect(lexer.TokenComma); err != nil {
		return "", nil, err
	}
	cooldown, err := p.parseDuration()
	if err != nil {
		return "", nil, err
	}
	if _, err := p.expect(lexer.TokenRBrace); err != nil {
		return "", nil, err
	}

	threshold, _ := strconv.Atoi(numTok.Lexeme)
	if threshold < 1 {
		return "", nil, p.errorAt(pos, "a positive failure threshold",
			numTok.Lexeme)
	}
	return modBreaker, &ast.Node{
		Kind: ast.KindBreaker,
		Pos:  pos,
		Breaker: &ast.BreakerSpec{
			Threshold: threshold,
			Cooldown:  cooldown,
		},
	}, nil
}

// `~duration[:fallback]`
func (p *Parser) parseTimeout() (string, *ast.Node, error) {
	pos := p.cur().Pos
	p.advance() // ~
	d, err := p.parseDuration()
	if err != nil {
		return "", nil, err
	}

	spec := &ast.TimeoutSpec{Limit: d}
	if p.cur().Kind == lexer.TokenColon &&
		p.peekKind(1) == lexer.TokenName {
		p.advance()
		name, _ := p.expect(lexer.TokenName)
		spec.Fallback = &ast.Node{
			Kind: ast.KindAtomic,
			Pos:  name.Pos,
			Step: api.StepName(name.Lexeme),
		}
	}

	return modTimeout, &ast.Node{
		Kind:    ast.KindTimeout,
		Pos:     pos,
		Timeout: spec,
	}, nil
}

func wrapLoop(pos api.Position, lo, hi int) *ast.Node {
	return &ast.Node{
		Kind: ast.KindLoop,
		Pos:  pos,
		Loop: &ast.LoopSpec{Min: lo, Max: hi},
	}
}

func wrapPolicy(kind ast.Kind, pos api.Position, d time.Duration) *ast.Node {
	return &ast.Node{
		Kind:     kind,
		Pos:      pos,
		Interval: d,
	}
}

func (p *Parser) parseDuration() (time.Duration, error) {
	t, err := p.expect(lexer.TokenDuration)
	if err != nil {
		return 0, err
	}
	d, err := time.ParseDuration(t.Lexeme)
	if err != nil {
		return 0, p.errorAt(t.Pos, "a duration", t.Lexeme)
	}
	if d <= 0 {
		return 0, p.errorAt(t.Pos, "a positive duration", t.Lexeme)
	}
	return d, nil
}
