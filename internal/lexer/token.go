package lexer

import "github.com/kode4food/flowscript/pkg/api"

// TokenKind identifies the type of a lexical token
type TokenKind uint8

const (
	TokenEOF TokenKind = iota
	TokenNewline

	TokenName       // step, flow, label, case identifiers
	TokenNumber     // 3, 42
	TokenDuration   // 5s, 300ms, 1m30s
	TokenAnnotation // "..." captured verbatim

	TokenArrow    // ->
	TokenAndThen  // && saga sequence
	TokenOrElse   // || fallback
	TokenForkJoin // &| barrier shorthand
	TokenPipe     // |
	TokenAmp      // & detach
	TokenBang     // !
	TokenBangBang // !!
	TokenBangQry  // !?
	TokenQuery    // ?
	TokenStream   // >>
	TokenFatArrow // =>
	TokenEquals   // =
	TokenAt       // @
	TokenAtAt     // @@
	TokenHash     // #
	TokenCaret    // ^
	TokenTilde    // ~
	TokenDebounce // ~>
	TokenThrottle // ~|
	TokenStar     // *
	TokenPlus     // +

	TokenLBrace   // {
	TokenRBrace   // }
	TokenLBracket // [
	TokenRBracket // ]
	TokenLParen   // (
	TokenRParen   // )
	TokenLAngle   // <
	TokenRAngle   // >
	TokenColon    // :
	TokenComma    // ,
)

// Token is the unit produced by the lexer and consumed by the parser.
// Tokens are ephemeral; nothing downstream of the parser retains them
type Token struct {
	Lexeme string
	Pos    api.Position
	Kind   TokenKind
}

var tokenNames = map[TokenKind]string{
	TokenEOF:        "end of input",
	TokenNewline:    "newline",
	TokenName:       "name",
	TokenNumber:     "number",
	TokenDuration:   "duration",
	TokenAnnotation: "annotation",
	TokenArrow:      "'->'",
	TokenAndThen:    "'&&'",
	TokenOrElse:     "'||'",
	TokenForkJoin:   "'&|'",
	TokenPipe:       "'|'",
	TokenAmp:        "'&'",
	TokenBang:       "'!'",
	TokenBangBang:   "'!!'",
	TokenBangQry:    "'!?'",
	TokenQuery:      "'?'",
	TokenStream:     "'>>'",
	TokenFatArrow:   "'=>'",
	TokenEquals:     "'='",
	TokenAt:         "'@'",
	TokenAtAt:       "'@@'",
	TokenHash:       "'#'",
	TokenCaret:      "'^'",
	TokenTilde:      "'~'",
	TokenDebounce:   "'~>'",
	TokenThrottle:   "'~|'",
	TokenStar:       "'*'",
	TokenPlus:       "'+'",
	TokenLBrace:     "'{'",
	TokenRBrace:     "'}'",
	TokenLBracket:   "'['",
	TokenRBracket:   "']'",
	TokenLParen:     "'('",
	TokenRParen:     "')'",
	TokenLAngle:     "'<'",
	TokenRAngle:     "'>'",
	TokenColon:      "':'",
	TokenComma:      "','",
}

// String describes the token kind for error messages
func (k TokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return "unknown token"
}

// Describe renders a token for parse errors, preferring the lexeme
func (t Token) Describe() string {
	switch t.Kind {
	case TokenEOF, TokenNewline:
		return t.Kind.String()
	case TokenName, TokenNumber, TokenDuration:
		return "'" + t.Lexeme + "'"
	default:
		return t.Kind.String()
	}
}
