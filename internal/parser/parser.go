// Package parser turns a FlowScript token stream into the flat flow
// table consumed by the resolver. The grammar is recursive descent with
// postfix policy modifiers binding tightest and `->` sequencing binding
// loosest.
package parser

import (
	"time"

	"github.com/kode4food/flowscript/internal/lexer"
	"github.com/kode4food/flowscript/internal/util"
	"github.com/kode4food/flowscript/pkg/api"
	"github.com/kode4food/flowscript/pkg/ast"
)

// Parser consumes tokens for a single compilation unit
type Parser struct {
	tokens []lexer.Token
	pos    int
	depth  int
	noPipe bool
	flow   api.FlowName
}

// modifier kinds tracked for the one-of-each-kind invariant
const (
	modQuantifier = "quantifier"
	modRetry      = "retry"
	modTimeout    = "timeout"
	modGuard      = "guard"
	modComp       = "compensation"
	modDetach     = "detach"
	modBreaker    = "circuit breaker"
	modDebounce   = "debounce"
	modThrottle   = "throttle"
)

const (
	defaultRetryBase       = time.Second
	defaultRetryMultiplier = 2.0
)

var validStrategies = util.SetOf(
	ast.RetryFixed,
	ast.RetryLinear,
	ast.RetryExponential,
)

// Parse builds a Program from source tokens. The result is unresolved;
// references are names only until the resolver runs
func Parse(tokens []lexer.Token) (*ast.Program, error) {
	p := &Parser{tokens: tokens}
	prog := ast.NewProgram()

	for {
		p.skipNewlines()
		if p.cur().Kind == lexer.TokenEOF {
			break
		}
		flow, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if err := prog.AddFlow(flow); err != nil {
			return nil, p.errorAt(flow.Root.Pos, "unique flow name",
				string(flow.Name))
		}
	}

	return prog, nil
}

// statement := Name '=' expr (Newline | EOF)
func (p *Parser) parseStatement() (*ast.Flow, error) {
	name, err := p.expect(lexer.TokenName)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenEquals); err != nil {
		return nil, err
	}

	p.flow = api.FlowName(name.Lexeme)
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	switch p.cur().Kind {
	case lexer.TokenNewline:
		p.advance()
	case lexer.TokenEOF:
	default:
		return nil, p.errorHere("end of statement")
	}

	flow := &ast.Flow{Name: p.flow, Root: root}
	p.assignIDs(flow)
	return flow, nil
}

// expr := seq; seq is left-associative and loosest
func (p *Parser) parseExpr() (*ast.Node, error) {
	left, err := p.parseSaga()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != lexer.TokenArrow {
		return left, nil
	}

	node := &ast.Node{
		Kind:     ast.KindSequence,
		Pos:      left.Pos,
		Children: []*ast.Node{left},
	}
	for p.cur().Kind == lexer.TokenArrow {
		p.advance()
		next, err := p.parseSaga()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, next)
	}
	return node, nil
}

// saga := fallback { '&&' fallback }
func (p *Parser) parseSaga() (*ast.Node, error) {
	left, err := p.parseFallback()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != lexer.TokenAndThen {
		return left, nil
	}

	node := &ast.Node{
		Kind:     ast.KindSaga,
		Pos:      left.Pos,
		Children: []*ast.Node{left},
	}
	for p.cur().Kind == lexer.TokenAndThen {
		p.advance()
		next, err := p.parseFallback()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, next)
	}
	return node, nil
}

// fallback := catch { '||' catch }; `A || B` is sugar for `A ! B`, so
// a failing alternative falls through to the next one in the chain
func (p *Parser) parseFallback() (*ast.Node, error) {
	left, err := p.parseCatch()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lexer.TokenOrElse {
		p.advance()
		right, err := p.parseCatch()
		if err != nil {
			return nil, err
		}
		left = attachCatch(left, ast.CatchOnError, right)
	}
	return left, nil
}

// catch := forkjoin { ('!' | '!!' | '!?') forkjoin }
func (p *Parser) parseCatch() (*ast.Node, error) {
	left, err := p.parseForkJoin()
	if err != nil {
		return nil, err
	}
	for {
		var mode ast.CatchMode
		switch p.cur().Kind {
		case lexer.TokenBang:
			mode = ast.CatchOnError
		case lexer.TokenBangBang:
			mode = ast.CatchAlways
		case lexer.TokenBangQry:
			mode = ast.CatchSuppress
		default:
			return left, nil
		}
		p.advance()
		handler, err := p.parseForkJoin()
		if err != nil {
			return nil, err
		}
		left = attachCatch(left, mode, handler)
	}
}

// forkjoin := broadcast { '&|' broadcast }; `A &| B` builds [A | B]
func (p *Parser) parseForkJoin() (*ast.Node, error) {
	left, err := p.parseBroadcast()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != lexer.TokenForkJoin {
		return left, nil
	}

	node := &ast.Node{
		Kind:     ast.KindBarrier,
		Pos:      left.Pos,
		Children: []*ast.Node{left},
	}
	for p.cur().Kind == lexer.TokenForkJoin {
		p.advance()
		next, err := p.parseBroadcast()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, next)
	}
	return node, nil
}

// broadcast := stream { '=>' stream }
func (p *Parser) parseBroadcast() (*ast.Node, error) {
	left, err := p.parseStream()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lexer.TokenFatArrow {
		pos := p.cur().Pos
		p.advance()
		sink, err := p.parseStream()
		if err != nil {
			return nil, err
		}
		left = &ast.Node{
			Kind:     ast.KindBroadcast,
			Pos:      pos,
			Children: []*ast.Node{left, sink},
		}
	}
	return left, nil
}

// stream := fork { '>>' fork }
func (p *Parser) parseStream() (*ast.Node, error) {
	left, err := p.parseFork()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lexer.TokenStream {
		pos := p.cur().Pos
		p.advance()
		sink, err := p.parseFork()
		if err != nil {
			return nil, err
		}
		left = &ast.Node{
			Kind:     ast.KindEventStream,
			Pos:      pos,
			Children: []*ast.Node{left, sink},
		}
	}
	return left, nil
}

// fork := postfix { '|' postfix }. Inside [...] and <...> the pipe is an
// arm separator instead, so the operator is disabled there
func (p *Parser) parseFork() (*ast.Node, error) {
	left, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if p.noPipe || p.cur().Kind != lexer.TokenPipe {
		return left, nil
	}

	node := &ast.Node{
		Kind:     ast.KindParallel,
		Pos:      left.Pos,
		Children: []*ast.Node{left},
	}
	for p.cur().Kind == lexer.TokenPipe {
		p.advance()
		next, err := p.parsePostfix()
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, next)
	}
	return node, nil
}

func attachCatch(
	n *ast.Node, mode ast.CatchMode, handler *ast.Node,
) *ast.Node {
	if n.Catch != nil {
		// Chained catches wrap the already-handled node so each handler
		// keeps its own scope
		n = &ast.Node{
			Kind:     ast.KindSequence,
			Pos:      n.Pos,
			Children: []*ast.Node{n},
		}
	}
	n.Catch = &ast.CatchSpec{Mode: mode, Handler: handler}
	return n
}
