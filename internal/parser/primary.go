package parser

import (
	"fmt"

	"github.com/kode4food/flowscript/internal/lexer"
	"github.com/kode4food/flowscript/internal/util"
	"github.com/kode4food/flowscript/pkg/api"
	"github.com/kode4food/flowscript/pkg/ast"
)

// parsePrimary handles the atoms and bracketed structures of the grammar
func (p *Parser) parsePrimary() (*ast.Node, error) {
	t := p.cur()
	switch t.Kind {
	case lexer.TokenName:
		p.advance()
		return &ast.Node{
			Kind: ast.KindAtomic,
			Pos:  t.Pos,
			Step: api.StepName(t.Lexeme),
		}, nil

	case lexer.TokenAt:
		p.advance()
		name, err := p.expect(lexer.TokenName)
		if err != nil {
			return nil, err
		}
		return &ast.Node{
			Kind: ast.KindRef,
			Pos:  t.Pos,
			Ref:  &ast.RefSpec{Name: name.Lexeme, Subflow: true},
		}, nil

	case lexer.TokenHash:
		return p.parseLabel()

	case lexer.TokenLBracket:
		return p.parseArms(
			ast.KindBarrier, lexer.TokenRBracket, 1)

	case lexer.TokenLAngle:
		return p.parseArms(ast.KindRace, lexer.TokenRAngle, 2)

	case lexer.TokenLBrace:
		return p.parseBraced()

	case lexer.TokenLParen:
		return p.parseParen()
	}

	return nil, p.errorHere("a step, reference, or group")
}

// `#name: term` defines a label on the following term; `#name` alone is
// an in-flow reference
func (p *Parser) parseLabel() (*ast.Node, error) {
	pos := p.cur().Pos
	p.advance() // #
	name, err := p.expect(lexer.TokenName)
	if err != nil {
		return nil, err
	}

	if p.cur().Kind != lexer.TokenColon {
		return &ast.Node{
			Kind: ast.KindRef,
			Pos:  pos,
			Ref:  &ast.RefSpec{Name: name.Lexeme},
		}, nil
	}

	p.advance() // :
	node, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if node.Label != "" {
		return nil, p.errorAt(pos, "a single label", "#"+name.Lexeme)
	}
	node.Label = name.Lexeme
	return node, nil
}

// parseArms reads `A | B | ...` up to the closing token, with pipes
// acting as separators rather than fork operators
func (p *Parser) parseArms(
	kind ast.Kind, closing lexer.TokenKind, minArms int,
) (*ast.Node, error) {
	pos := p.cur().Pos
	p.advance() // opening token
	p.depth++
	prevNoPipe := p.noPipe
	p.noPipe = true
	defer func() {
		p.depth--
		p.noPipe = prevNoPipe
	}()

	node := &ast.Node{Kind: kind, Pos: pos}
	for {
		p.skipNewlines()
		arm, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, arm)

		p.skipNewlines()
		switch p.cur().Kind {
		case lexer.TokenPipe:
			p.advance()
		case closing:
			p.advance()
			if len(node.Children) < minArms {
				return nil, p.errorAt(pos,
					fmt.Sprintf("at least %d arms", minArms),
					fmt.Sprintf("%d", len(node.Children)))
			}
			return node, nil
		default:
			return nil, p.errorHere(
				"'|' or " + closing.String())
		}
	}
}

// parseBraced distinguishes a state machine table from a branch by
// shape: every machine entry reads `state:event => next`
func (p *Parser) parseBraced() (*ast.Node, error) {
	if p.bracesAreMachine() {
		return p.parseStateMachine()
	}
	return p.parseBranch()
}

// bracesAreMachine scans ahead without consuming, checking that the
// whole block matches the transition-table shape
func (p *Parser) bracesAreMachine() bool {
	i := p.pos + 1 // past '{'
	skip := func() {
		for p.kindAt(i) == lexer.TokenNewline {
			i++
		}
	}

	for {
		skip()
		if p.kindAt(i) != lexer.TokenName {
			return false
		}
		if p.kindAt(i+1) != lexer.TokenColon ||
			p.kindAt(i+2) != lexer.TokenName ||
			p.kindAt(i+3) != lexer.TokenFatArrow ||
			p.kindAt(i+4) != lexer.TokenName {
			return false
		}
		i += 5
		skip()
		switch p.kindAt(i) {
		case lexer.TokenComma:
			i++
		case lexer.TokenRBrace:
			return true
		default:
			return false
		}
	}
}

// `{ state:event => next, ... }`
func (p *Parser) parseStateMachine() (*ast.Node, error) {
	pos := p.cur().Pos
	p.advance() // {
	p.depth++
	defer func() { p.depth-- }()

	node := &ast.Node{Kind: ast.KindStateMachine, Pos: pos}
	for {
		p.skipNewlines()
		from, _ := p.expect(lexer.TokenName)
		p.advance() // :
		event, _ := p.expect(lexer.TokenName)
		p.advance() // =>
		to, _ := p.expect(lexer.TokenName)

		node.Transitions = append(node.Transitions, ast.Transition{
			From:  from.Lexeme,
			Event: event.Lexeme,
			To:    to.Lexeme,
		})

		p.skipNewlines()
		if p.cur().Kind == lexer.TokenComma {
			p.advance()
			continue
		}
		p.advance() // }
		return node, nil
	}
}

// `{ case: expr, ..., _: expr }`
func (p *Parser) parseBranch() (*ast.Node, error) {
	pos := p.cur().Pos
	p.advance() // {
	p.depth++
	defer func() { p.depth-- }()

	node := &ast.Node{Kind: ast.KindBranch, Pos: pos}
	labels := util.Set[string]{}
	for {
		p.skipNewlines()
		label, err := p.expect(lexer.TokenName)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenColon); err != nil {
			return nil, err
		}
		if !labels.AddNew(label.Lexeme) {
			return nil, p.errorAt(label.Pos, "a unique case label",
				label.Lexeme)
		}

		flow, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		node.Cases = append(node.Cases, ast.BranchCase{
			Label: label.Lexeme,
			Node:  flow,
		})

		p.skipNewlines()
		switch p.cur().Kind {
		case lexer.TokenComma:
			p.advance()
		case lexer.TokenRBrace:
			p.advance()
			if len(node.Cases) == 0 {
				return nil, p.errorAt(pos, "at least one case", "{}")
			}
			return node, nil
		default:
			return nil, p.errorHere("',' or '}'")
		}
	}
}

// parseParen handles `(expr)`, `(name: expr)`, and `(name): term`
func (p *Parser) parseParen() (*ast.Node, error) {
	pos := p.cur().Pos
	p.advance() // (
	p.depth++
	prevNoPipe := p.noPipe
	p.noPipe = false

	// `(name: expr)`: named group around a contained flow
	if p.cur().Kind == lexer.TokenName &&
		p.peekKind(1) == lexer.TokenColon {
		name := p.cur().Lexeme
		p.advance()
		p.advance()
		node, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRParen); err != nil {
			return nil, err
		}
		p.depth--
		p.noPipe = prevNoPipe
		node.Group = name
		return node, nil
	}

	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenRParen); err != nil {
		return nil, err
	}
	p.depth--
	p.noPipe = prevNoPipe

	// `(name): term`: tag applies to the following term
	if p.cur().Kind == lexer.TokenColon && node.Kind == ast.KindAtomic {
		name := string(node.Step)
		p.advance()
		tagged, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		tagged.Group = name
		tagged.Pos = pos
		return tagged, nil
	}

	return node, nil
}
