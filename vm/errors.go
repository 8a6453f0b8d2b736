package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/lox/compiler"
)

// Stack discipline violations. Push and Pop panic with these; Execute
// recovers them into a *RuntimeError that wraps the sentinel.
var (
	ErrStackOverflow  = errors.New("stack overflow")
	ErrStackUnderflow = errors.New("stack underflow")
)

// RuntimeError is raised while executing a chunk.
type RuntimeError struct {
	Message string
	Line    int   // source line of the failing instruction
	Err     error // underlying sentinel, if any
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s\n[line %d] in script", e.Message, e.Line)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// InterpretResult is the outcome of interpreting a piece of source.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

func (r InterpretResult) String() string {
	switch r {
	case InterpretOK:
		return "INTERPRET_OK"
	case InterpretCompileError:
		return "INTERPRET_COMPILE_ERROR"
	case InterpretRuntimeError:
		return "INTERPRET_RUNTIME_ERROR"
	default:
		return fmt.Sprintf("InterpretResult(%d)", int(r))
	}
}

// ResultOf classifies an error returned by Evaluate or Execute.
// Anything that is neither a compile nor a runtime error counts as a
// runtime failure.
func ResultOf(err error) InterpretResult {
	if err == nil {
		return InterpretOK
	}

	var list compiler.ErrorList
	var cerr *compiler.CompileError
	if errors.As(err, &list) || errors.As(err, &cerr) {
		return InterpretCompileError
	}
	return InterpretRuntimeError
}
