package parser

import (
	"fmt"

	"github.com/kode4food/flowscript/internal/lexer"
	"github.com/kode4food/flowscript/pkg/api"
	"github.com/kode4food/flowscript/pkg/ast"
)

// cur returns the current token. Inside brackets, newlines are
// insignificant and skipped; at statement level they terminate the flow
func (p *Parser) cur() lexer.Token {
	if p.depth > 0 {
		for p.kindAt(p.pos) == lexer.TokenNewline {
			p.pos++
		}
	}
	return p.at(p.pos)
}

func (p *Parser) at(i int) lexer.Token {
	if i >= len(p.tokens) {
		return lexer.Token{Kind: lexer.TokenEOF}
	}
	return p.tokens[i]
}

func (p *Parser) kindAt(i int) lexer.TokenKind {
	return p.at(i).Kind
}

// peekKind looks n tokens past the current one without newline skipping;
// it is used for adjacency checks within a single construct
func (p *Parser) peekKind(n int) lexer.TokenKind {
	p.cur() // normalize position first
	return p.kindAt(p.pos + n)
}

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if t.Kind != lexer.TokenEOF {
		p.pos++
	}
	return t
}

func (p *Parser) expect(kind lexer.TokenKind) (lexer.Token, error) {
	t := p.cur()
	if t.Kind != kind {
		return lexer.Token{}, p.errorHere(kind.String())
	}
	return p.advance(), nil
}

func (p *Parser) skipNewlines() {
	for p.kindAt(p.pos) == lexer.TokenNewline {
		p.pos++
	}
}

func (p *Parser) errorHere(expected string) error {
	t := p.cur()
	return &api.ParseError{
		Pos:      t.Pos,
		Expected: expected,
		Found:    t.Describe(),
	}
}

func (p *Parser) errorAt(pos api.Position, expected, found string) error {
	return &api.ParseError{
		Pos:      pos,
		Expected: expected,
		Found:    "'" + found + "'",
	}
}

// assignIDs numbers every node of a flow in depth-first pre-order so
// that recompiling the same source yields the same policy state keys
func (p *Parser) assignIDs(f *ast.Flow) {
	next := 0
	ast.Walk(f.Root, func(n *ast.Node) bool {
		n.ID = api.NodeID(fmt.Sprintf("%s.%d", f.Name, next))
		next++
		return true
	})
}
