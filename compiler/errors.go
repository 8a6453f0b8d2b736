package compiler

import (
	"fmt"
	"strings"
)

// CompileError is a single syntax error found while compiling.
type CompileError struct {
	Line    int       // 1-based line of the offending token
	Column  int       // 1-based column of the offending token
	Length  int       // length of the offending lexeme (0 at end of source)
	Token   TokenType // type of the offending token
	Lexeme  string    // offending lexeme; empty at end of source and for lexical errors
	Message string
}

func (e *CompileError) Error() string {
	switch e.Token {
	case TokenEOF:
		return fmt.Sprintf("[line %d] Error at end: %s", e.Line, e.Message)
	case TokenError:
		return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Message)
	default:
		return fmt.Sprintf("[line %d] Error at '%s': %s", e.Line, e.Lexeme, e.Message)
	}
}

// ErrorList collects the errors reported during one compilation, in source
// order. It implements error so Compile can return it directly.
type ErrorList []*CompileError

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}

// Err returns l as an error, or nil if l is empty.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}
