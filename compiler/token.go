package compiler

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Token types for the lox scanner
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
//
// The numeric order is fixed: single-character punctuation, one- and
// two-character operators, literals, keywords, then the ERROR and EOF
// sentinels.
type TokenType int

const (
	// Single-character tokens
	TokenLeftParen  TokenType = iota // (
	TokenRightParen                  // )
	TokenLeftBrace                   // {
	TokenRightBrace                  // }
	TokenComma                       // ,
	TokenDot                         // .
	TokenMinus                       // -
	TokenPlus                        // +
	TokenSemicolon                   // ;
	TokenSlash                       // /
	TokenStar                        // *

	// One or two character tokens
	TokenBang         // !
	TokenBangEqual    // !=
	TokenEqual        // =
	TokenEqualEqual   // ==
	TokenGreater      // >
	TokenGreaterEqual // >=
	TokenLess         // <
	TokenLessEqual    // <=

	// Literals
	TokenIdentifier
	TokenString
	TokenNumber

	// Keywords
	TokenAnd
	TokenClass
	TokenElse
	TokenFalse
	TokenFor
	TokenFun
	TokenIf
	TokenNil
	TokenOr
	TokenPrint
	TokenReturn
	TokenSuper
	TokenThis
	TokenTrue
	TokenVar
	TokenWhile

	// Special tokens
	TokenError
	TokenEOF
)

// tokenTypeCount is the number of token types; it sizes the parse rule table.
const tokenTypeCount = int(TokenEOF) + 1

var tokenNames = map[TokenType]string{
	TokenLeftParen:    "(",
	TokenRightParen:   ")",
	TokenLeftBrace:    "{",
	TokenRightBrace:   "}",
	TokenComma:        ",",
	TokenDot:          ".",
	TokenMinus:        "-",
	TokenPlus:         "+",
	TokenSemicolon:    ";",
	TokenSlash:        "/",
	TokenStar:         "*",
	TokenBang:         "!",
	TokenBangEqual:    "!=",
	TokenEqual:        "=",
	TokenEqualEqual:   "==",
	TokenGreater:      ">",
	TokenGreaterEqual: ">=",
	TokenLess:         "<",
	TokenLessEqual:    "<=",
	TokenIdentifier:   "IDENTIFIER",
	TokenString:       "STRING",
	TokenNumber:       "NUMBER",
	TokenAnd:          "and",
	TokenClass:        "class",
	TokenElse:         "else",
	TokenFalse:        "false",
	TokenFor:          "for",
	TokenFun:          "fun",
	TokenIf:           "if",
	TokenNil:          "nil",
	TokenOr:           "or",
	TokenPrint:        "print",
	TokenReturn:       "return",
	TokenSuper:        "super",
	TokenThis:         "this",
	TokenTrue:         "true",
	TokenVar:          "var",
	TokenWhile:        "while",
	TokenError:        "ERROR",
	TokenEOF:          "EOF",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token is a classified span of source text.
//
// Start and Length locate the lexeme in the source the scanner was given;
// Text is that same span (a substring, not a copy). Error tokens carry their
// message in Text instead, with Start at the offending position.
type Token struct {
	Type   TokenType
	Start  int
	Length int
	Text   string
	Line   int // 1-based line the token starts on
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Text)
	}
	if len(t.Text) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Text[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Text)
}

// keywords maps reserved words to their token types.
var keywords = map[string]TokenType{
	"and":    TokenAnd,
	"class":  TokenClass,
	"else":   TokenElse,
	"false":  TokenFalse,
	"for":    TokenFor,
	"fun":    TokenFun,
	"if":     TokenIf,
	"nil":    TokenNil,
	"or":     TokenOr,
	"print":  TokenPrint,
	"return": TokenReturn,
	"super":  TokenSuper,
	"this":   TokenThis,
	"true":   TokenTrue,
	"var":    TokenVar,
	"while":  TokenWhile,
}

// LookupIdent returns the keyword token type for ident, or TokenIdentifier
// if ident is not reserved. Only exact matches count.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TokenIdentifier
}

// Keywords returns the reserved words in alphabetical order.
func Keywords() []string {
	words := make([]string, 0, len(keywords))
	for w := range keywords {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}
