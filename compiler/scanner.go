package compiler

import (
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Scanner: on-demand tokenizer for lox source
// ---------------------------------------------------------------------------

// Scanner tokenizes lox source one token per ScanToken call.
// Each Scanner owns its cursor, so independent scanners never interfere.
type Scanner struct {
	source    string
	start     int // offset of the token being scanned
	current   int // offset of the next unread byte
	line      int // current line (1-based)
	startLine int // line the current token began on
}

// NewScanner creates a scanner positioned at the start of source.
func NewScanner(source string) *Scanner {
	s := &Scanner{}
	s.Init(source)
	return s
}

// Init resets the scanner to the beginning of source, on line 1.
func (s *Scanner) Init(source string) {
	s.source = source
	s.start = 0
	s.current = 0
	s.line = 1
	s.startLine = 1
}

// Line returns the line the cursor is on.
func (s *Scanner) Line() int {
	return s.line
}

// ScanToken scans and returns the next token. At end of source it returns
// a zero-length TokenEOF, and keeps doing so on further calls. Malformed
// input yields a TokenError and the cursor has already moved past it.
func (s *Scanner) ScanToken() Token {
	s.skipWhitespace()
	s.start = s.current
	s.startLine = s.line

	if s.isAtEnd() {
		return s.makeToken(TokenEOF)
	}

	c := s.advance()

	switch {
	case isAlpha(c):
		return s.identifier()
	case isDigit(c):
		return s.number()
	}

	switch c {
	case '(':
		return s.makeToken(TokenLeftParen)
	case ')':
		return s.makeToken(TokenRightParen)
	case '{':
		return s.makeToken(TokenLeftBrace)
	case '}':
		return s.makeToken(TokenRightBrace)
	case ';':
		return s.makeToken(TokenSemicolon)
	case ',':
		return s.makeToken(TokenComma)
	case '.':
		return s.makeToken(TokenDot)
	case '-':
		return s.makeToken(TokenMinus)
	case '+':
		return s.makeToken(TokenPlus)
	case '/':
		return s.makeToken(TokenSlash)
	case '*':
		return s.makeToken(TokenStar)
	case '!':
		return s.makeToken(s.pick('=', TokenBangEqual, TokenBang))
	case '=':
		return s.makeToken(s.pick('=', TokenEqualEqual, TokenEqual))
	case '<':
		return s.makeToken(s.pick('=', TokenLessEqual, TokenLess))
	case '>':
		return s.makeToken(s.pick('=', TokenGreaterEqual, TokenGreater))
	case '"':
		return s.string()
	}

	// Consume the rest of a multi-byte character so the next scan starts
	// on a character boundary.
	if c >= utf8.RuneSelf {
		_, size := utf8.DecodeRuneInString(s.source[s.start:])
		s.current = s.start + size
	}
	return s.errorToken("Unexpected character.")
}

// skipWhitespace skips blanks, newlines and // comments.
func (s *Scanner) skipWhitespace() {
	for !s.isAtEnd() {
		switch s.peek() {
		case ' ', '\r', '\t':
			s.advance()
		case '\n':
			s.line++
			s.advance()
		case '/':
			if s.peekNext() != '/' {
				return
			}
			// A comment runs until the end of the line; the newline itself is
			// left for the loop so it is counted.
			for s.peek() != '\n' && !s.isAtEnd() {
				s.advance()
			}
		default:
			return
		}
	}
}

// string scans a double-quoted string literal. The lexeme includes both
// quotes. Newlines inside the literal are counted.
func (s *Scanner) string() Token {
	for s.peek() != '"' && !s.isAtEnd() {
		if s.peek() == '\n' {
			s.line++
		}
		s.advance()
	}

	if s.isAtEnd() {
		return s.errorToken("Unterminated string.")
	}

	s.advance() // closing quote
	return s.makeToken(TokenString)
}

// number scans digits with an optional fractional part. A '.' is only part
// of the number when a digit follows it.
func (s *Scanner) number() Token {
	for isDigit(s.peek()) {
		s.advance()
	}

	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance() // consume '.'
		for isDigit(s.peek()) {
			s.advance()
		}
	}

	return s.makeToken(TokenNumber)
}

// identifier scans an identifier or keyword.
func (s *Scanner) identifier() Token {
	for isAlpha(s.peek()) || isDigit(s.peek()) {
		s.advance()
	}
	return s.makeToken(LookupIdent(s.source[s.start:s.current]))
}

// pick consumes expected if it is next and returns matched, else unmatched.
func (s *Scanner) pick(expected byte, matched, unmatched TokenType) TokenType {
	if s.isAtEnd() || s.source[s.current] != expected {
		return unmatched
	}
	s.current++
	return matched
}

func (s *Scanner) isAtEnd() bool {
	return s.current >= len(s.source)
}

func (s *Scanner) advance() byte {
	c := s.source[s.current]
	s.current++
	return c
}

// peek returns the next byte without consuming it, or 0 at end of source.
func (s *Scanner) peek() byte {
	if s.isAtEnd() {
		return 0
	}
	return s.source[s.current]
}

// peekNext returns the byte after the next one, or 0 past the end.
func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.source) {
		return 0
	}
	return s.source[s.current+1]
}

func (s *Scanner) makeToken(typ TokenType) Token {
	return Token{
		Type:   typ,
		Start:  s.start,
		Length: s.current - s.start,
		Text:   s.source[s.start:s.current],
		Line:   s.startLine,
	}
}

func (s *Scanner) errorToken(message string) Token {
	return Token{
		Type:   TokenError,
		Start:  s.start,
		Length: len(message),
		Text:   message,
		Line:   s.startLine,
	}
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}
