package lexer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kode4food/flowscript/pkg/api"
)

// Lexer converts FlowScript source text into a token stream. Scanning
// follows the longest-match rule: multi-character operators are matched
// greedily before their shorter prefixes
type Lexer struct {
	src    string
	offset int
	line   int
	column int
}

const eof = rune(-1)

func New(src string) *Lexer {
	return &Lexer{src: src, line: 1, column: 1}
}

// Tokenize scans the entire source, discarding comments and whitespace.
// The returned stream always ends with a TokenEOF
func Tokenize(src string) ([]Token, error) {
	l := New(src)
	var tokens []Token
	for {
		t, err := l.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
		if t.Kind == TokenEOF {
			return tokens, nil
		}
	}
}

// Next returns the next token from the input. After the end of input is
// reached, Next returns TokenEOF forever
func (l *Lexer) Next() (Token, error) {
	if err := l.skipBlanks(); err != nil {
		return Token{}, err
	}

	pos := l.pos()
	ch := l.peek()

	switch {
	case ch == eof:
		return l.emit(TokenEOF, pos, ""), nil
	case ch == '\n':
		l.advance()
		return l.emit(TokenNewline, pos, "\n"), nil
	case ch == '"':
		return l.scanAnnotation(pos)
	case isDigit(ch):
		return l.scanNumber(pos)
	case isNameStart(ch):
		return l.scanName(pos)
	}

	return l.scanOperator(pos)
}

// operator scanning; two-character forms are checked before one-character
// overlaps

func (l *Lexer) scanOperator(pos api.Position) (Token, error) {
	ch := l.advance()

	switch ch {
	case '-':
		if l.accept('>') {
			return l.emit(TokenArrow, pos, "->"), nil
		}
		return Token{}, l.errorf(pos, "unexpected character %q", ch)
	case '&':
		if l.accept('&') {
			return l.emit(TokenAndThen, pos, "&&"), nil
		}
		if l.accept('|') {
			return l.emit(TokenForkJoin, pos, "&|"), nil
		}
		return l.emit(TokenAmp, pos, "&"), nil
	case '|':
		if l.accept('|') {
			return l.emit(TokenOrElse, pos, "||"), nil
		}
		return l.emit(TokenPipe, pos, "|"), nil
	case '!':
		if l.accept('!') {
			return l.emit(TokenBangBang, pos, "!!"), nil
		}
		if l.accept('?') {
			return l.emit(TokenBangQry, pos, "!?"), nil
		}
		return l.emit(TokenBang, pos, "!"), nil
	case '~':
		if l.accept('>') {
			return l.emit(TokenDebounce, pos, "~>"), nil
		}
		if l.accept('|') {
			return l.emit(TokenThrottle, pos, "~|"), nil
		}
		return l.emit(TokenTilde, pos, "~"), nil
	case '@':
		if l.accept('@') {
			return l.emit(TokenAtAt, pos, "@@"), nil
		}
		return l.emit(TokenAt, pos, "@"), nil
	case '>':
		if l.accept('>') {
			return l.emit(TokenStream, pos, ">>"), nil
		}
		return l.emit(TokenRAngle, pos, ">"), nil
	case '=':
		if l.accept('>') {
			return l.emit(TokenFatArrow, pos, "=>"), nil
		}
		return l.emit(TokenEquals, pos, "="), nil
	case '?':
		return l.emit(TokenQuery, pos, "?"), nil
	case '#':
		return l.emit(TokenHash, pos, "#"), nil
	case '^':
		return l.emit(TokenCaret, pos, "^"), nil
	case '*':
		return l.emit(TokenStar, pos, "*"), nil
	case '+':
		return l.emit(TokenPlus, pos, "+"), nil
	case '{':
		return l.emit(TokenLBrace, pos, "{"), nil
	case '}':
		return l.emit(TokenRBrace, pos, "}"), nil
	case '[':
		return l.emit(TokenLBracket, pos, "["), nil
	case ']':
		return l.emit(TokenRBracket, pos, "]"), nil
	case '(':
		return l.emit(TokenLParen, pos, "("), nil
	case ')':
		return l.emit(TokenRParen, pos, ")"), nil
	case '<':
		return l.emit(TokenLAngle, pos, "<"), nil
	case ':':
		return l.emit(TokenColon, pos, ":"), nil
	case ',':
		return l.emit(TokenComma, pos, ","), nil
	}

	return Token{}, l.errorf(pos, "unexpected character %q", ch)
}

// scanAnnotation captures a quoted string verbatim, honoring \" and \\
// escapes
func (l *Lexer) scanAnnotation(pos api.Position) (Token, error) {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		ch := l.advance()
		switch ch {
		case eof, '\n':
			return Token{}, l.errorf(pos, "unterminated annotation")
		case '\\':
			next := l.advance()
			if next == '"' || next == '\\' {
				sb.WriteRune(next)
				continue
			}
			sb.WriteRune('\\')
			if next != eof {
				sb.WriteRune(next)
			}
		case '"':
			return l.emit(TokenAnnotation, pos, sb.String()), nil
		default:
			sb.WriteRune(ch)
		}
	}
}

// scanNumber reads digits, producing a TokenDuration when unit letters
// follow (e.g. 5s, 300ms, 1m30s, 1.5s)
func (l *Lexer) scanNumber(pos api.Position) (Token, error) {
	start := l.offset
	isDuration := false
	for {
		ch := l.peek()
		switch {
		case isDigit(ch) || ch == '.':
			l.advance()
		case isLetter(ch):
			isDuration = true
			l.advance()
		default:
			lexeme := l.src[start:l.offset]
			if isDuration {
				return l.emit(TokenDuration, pos, lexeme), nil
			}
			return l.emit(TokenNumber, pos, lexeme), nil
		}
	}
}

func (l *Lexer) scanName(pos api.Position) (Token, error) {
	start := l.offset
	for isNamePart(l.peek()) {
		l.advance()
	}
	return l.emit(TokenName, pos, l.src[start:l.offset]), nil
}

// skipBlanks consumes spaces, tabs, carriage returns, and comments.
// Newlines are significant and left for Next to emit
func (l *Lexer) skipBlanks() error {
	for {
		switch l.peek() {
		case ' ', '\t', '\r':
			l.advance()
		case '/':
			if l.peekAt(1) == '/' {
				l.skipLineComment()
				continue
			}
			if l.peekAt(1) == '*' {
				if err := l.skipBlockComment(); err != nil {
					return err
				}
				continue
			}
			return l.errorf(l.pos(), "unexpected character '/'")
		default:
			return nil
		}
	}
}

func (l *Lexer) skipLineComment() {
	for {
		ch := l.peek()
		if ch == eof || ch == '\n' {
			return
		}
		l.advance()
	}
}

func (l *Lexer) skipBlockComment() error {
	pos := l.pos()
	l.advance() // '/'
	l.advance() // '*'
	for {
		ch := l.advance()
		if ch == eof {
			return l.errorf(pos, "unterminated comment")
		}
		if ch == '*' && l.accept('/') {
			return nil
		}
	}
}

func (l *Lexer) pos() api.Position {
	return api.Position{Line: l.line, Column: l.column, Offset: l.offset}
}

func (l *Lexer) peek() rune {
	return l.peekAt(0)
}

// peekAt looks ahead n bytes; callers only use nonzero offsets after
// single-byte characters
func (l *Lexer) peekAt(n int) rune {
	if l.offset+n >= len(l.src) {
		return eof
	}
	ch, _ := utf8.DecodeRuneInString(l.src[l.offset+n:])
	return ch
}

func (l *Lexer) advance() rune {
	if l.offset >= len(l.src) {
		return eof
	}
	ch, size := utf8.DecodeRuneInString(l.src[l.offset:])
	l.offset += size
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return ch
}

func (l *Lexer) accept(ch rune) bool {
	if l.peek() == ch {
		l.advance()
		return true
	}
	return false
}

func (l *Lexer) emit(kind TokenKind, pos api.Position, lexeme string) Token {
	return Token{Kind: kind, Lexeme: lexeme, Pos: pos}
}

func (l *Lexer) errorf(
	pos api.Position, format string, args ...any,
) error {
	return &api.LexError{Pos: pos, Message: fmt.Sprintf(format, args...)}
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isLetter(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isNameStart(ch rune) bool {
	return isLetter(ch) || ch == '_'
}

func isNamePart(ch rune) bool {
	return isNameStart(ch) || isDigit(ch)
}
