package compiler

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/lox/pkg/bytecode"
)

var log = commonlog.GetLogger("lox.compiler")

// ---------------------------------------------------------------------------
// Compiler: single-pass Pratt parser emitting bytecode directly
// ---------------------------------------------------------------------------

// Precedence is an operator's binding power, lowest first.
type Precedence int

const (
	PrecNone       Precedence = iota
	PrecAssignment            // =
	PrecOr                    // or
	PrecAnd                   // and
	PrecEquality              // == !=
	PrecComparison            // < > <= >=
	PrecTerm                  // + -
	PrecFactor                // * /
	PrecUnary                 // ! -
	PrecCall                  // . ()
	PrecPrimary
)

type parseFn func(p *parser)

// parseRule says how a token parses at the start of an expression (prefix),
// after a left operand (infix), and how tightly it binds as an infix operator.
type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// rules is indexed by TokenType. It is filled in init because the handlers
// refer back to the table through parsePrecedence.
var rules [tokenTypeCount]parseRule

func init() {
	rules[TokenLeftParen] = parseRule{(*parser).grouping, nil, PrecNone}
	rules[TokenMinus] = parseRule{(*parser).unary, (*parser).binary, PrecTerm}
	rules[TokenPlus] = parseRule{nil, (*parser).binary, PrecTerm}
	rules[TokenSlash] = parseRule{nil, (*parser).binary, PrecFactor}
	rules[TokenStar] = parseRule{nil, (*parser).binary, PrecFactor}
	rules[TokenBang] = parseRule{(*parser).unary, nil, PrecNone}
	rules[TokenBangEqual] = parseRule{nil, (*parser).binary, PrecEquality}
	rules[TokenEqualEqual] = parseRule{nil, (*parser).binary, PrecEquality}
	rules[TokenGreater] = parseRule{nil, (*parser).binary, PrecComparison}
	rules[TokenGreaterEqual] = parseRule{nil, (*parser).binary, PrecComparison}
	rules[TokenLess] = parseRule{nil, (*parser).binary, PrecComparison}
	rules[TokenLessEqual] = parseRule{nil, (*parser).binary, PrecComparison}
	rules[TokenNumber] = parseRule{(*parser).number, nil, PrecNone}
	rules[TokenFalse] = parseRule{(*parser).literal, nil, PrecNone}
	rules[TokenNil] = parseRule{(*parser).literal, nil, PrecNone}
	rules[TokenTrue] = parseRule{(*parser).literal, nil, PrecNone}
}

func getRule(t TokenType) *parseRule {
	return &rules[t]
}

// parseState is the error-recovery state of a compilation.
type parseState int

const (
	// stateNormal reports the next error it sees.
	stateNormal parseState = iota
	// statePanicking suppresses errors until the next synchronization point.
	statePanicking
)

// Options configures a compilation.
type Options struct {
	// PrintCode writes the chunk's disassembly to Out after a successful
	// compilation.
	PrintCode bool
	Out       io.Writer
	// Name labels the disassembly; defaults to "code".
	Name string
}

// parser holds the state of one compilation. Nothing is shared between
// compilations, so Compile may run concurrently on different chunks.
type parser struct {
	source   string
	scanner  *Scanner
	current  Token
	previous Token
	chunk    *bytecode.Chunk
	state    parseState
	errors   ErrorList
}

// Compile compiles source into chunk. The chunk receives the instructions
// of a single expression followed by OpReturn. On failure the returned error
// is an ErrorList and the chunk contents must not be executed.
func Compile(source string, chunk *bytecode.Chunk) error {
	return CompileWith(source, chunk, Options{})
}

// CompileWith is Compile with options.
func CompileWith(source string, chunk *bytecode.Chunk, opts Options) error {
	p := &parser{
		source:  source,
		scanner: NewScanner(source),
		chunk:   chunk,
	}

	p.advance()
	p.expression()
	if p.state == statePanicking {
		p.synchronize()
	}
	p.consume(TokenEOF, "Expect end of expression.")
	p.emitOp(bytecode.OpReturn)

	if err := p.errors.Err(); err != nil {
		log.Debugf("compile failed with %d error(s)", len(p.errors))
		return err
	}

	log.Debugf("compiled %d bytes, %d constants", chunk.Count(), chunk.Constants.Count())

	if opts.PrintCode {
		out := opts.Out
		if out == nil {
			out = os.Stdout
		}
		name := opts.Name
		if name == "" {
			name = "code"
		}
		fmt.Fprint(out, chunk.Disassemble(name))
	}

	return nil
}

// ---------------------------------------------------------------------------
// Token handling
// ---------------------------------------------------------------------------

// advance moves to the next non-error token, reporting error tokens on the way.
func (p *parser) advance() {
	p.previous = p.current

	for {
		p.current = p.scanner.ScanToken()
		if p.current.Type != TokenError {
			break
		}
		p.errorAtCurrent(p.current.Text)
	}
}

// consume advances past the current token if it has type t, otherwise
// reports message.
func (p *parser) consume(t TokenType, message string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(message)
}

// synchronize skips tokens until a point where parsing can resume and leaves
// panic mode. Expressions have no statement boundaries, so the only such
// point is the end of the source. Skipped tokens are still scanned, so
// lexical errors are consumed but not reported.
func (p *parser) synchronize() {
	for p.current.Type != TokenEOF {
		p.advance()
	}
	p.state = stateNormal
}

// ---------------------------------------------------------------------------
// Error reporting
// ---------------------------------------------------------------------------

func (p *parser) error(message string) {
	p.errorAt(p.previous, message)
}

func (p *parser) errorAtCurrent(message string) {
	p.errorAt(p.current, message)
}

func (p *parser) errorAt(tok Token, message string) {
	if p.state == statePanicking {
		return
	}
	p.state = statePanicking

	e := &CompileError{
		Line:    tok.Line,
		Column:  p.column(tok.Start),
		Token:   tok.Type,
		Message: message,
	}
	if tok.Type != TokenError && tok.Type != TokenEOF {
		e.Lexeme = tok.Text
		e.Length = tok.Length
	}
	p.errors = append(p.errors, e)
}

// column returns the 1-based column of a byte offset in the source.
func (p *parser) column(offset int) int {
	if offset > len(p.source) {
		offset = len(p.source)
	}
	return offset - strings.LastIndexByte(p.source[:offset], '\n')
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

func (p *parser) emitByte(b byte, line int) {
	p.chunk.Write(b, line)
}

func (p *parser) emitOp(op bytecode.Opcode) {
	p.emitByte(byte(op), p.previous.Line)
}

func (p *parser) emitOps(line int, ops ...bytecode.Opcode) {
	for _, op := range ops {
		p.emitByte(byte(op), line)
	}
}

func (p *parser) emitConstant(v bytecode.Value) {
	if err := p.chunk.WriteConstant(v, p.previous.Line); err != nil {
		p.error("Too many constants in one chunk.")
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *parser) expression() {
	p.parsePrecedence(PrecAssignment)
}

// parsePrecedence parses an expression whose operators all bind at least as
// tightly as prec.
func (p *parser) parsePrecedence(prec Precedence) {
	p.advance()
	prefix := getRule(p.previous.Type).prefix
	if prefix == nil {
		p.error("Expect expression.")
		return
	}
	prefix(p)

	for prec <= getRule(p.current.Type).precedence {
		p.advance()
		getRule(p.previous.Type).infix(p)
	}
}

func (p *parser) number() {
	v, err := strconv.ParseFloat(p.previous.Text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		p.error("Invalid number.")
		return
	}
	p.emitConstant(bytecode.NumberValue(v))
}

func (p *parser) grouping() {
	p.expression()
	p.consume(TokenRightParen, "Expect ')' after expression.")
}

func (p *parser) unary() {
	op := p.previous
	p.parsePrecedence(PrecUnary)

	switch op.Type {
	case TokenMinus:
		p.emitOps(op.Line, bytecode.OpNegate)
	case TokenBang:
		p.emitOps(op.Line, bytecode.OpNot)
	}
}

// binary parses the right operand one level tighter than the operator, which
// makes every binary operator left-associative, then emits the operator.
func (p *parser) binary() {
	op := p.previous
	p.parsePrecedence(getRule(op.Type).precedence + 1)

	switch op.Type {
	case TokenPlus:
		p.emitOps(op.Line, bytecode.OpAdd)
	case TokenMinus:
		p.emitOps(op.Line, bytecode.OpSubtract)
	case TokenStar:
		p.emitOps(op.Line, bytecode.OpMultiply)
	case TokenSlash:
		p.emitOps(op.Line, bytecode.OpDivide)
	case TokenEqualEqual:
		p.emitOps(op.Line, bytecode.OpEqual)
	case TokenBangEqual:
		p.emitOps(op.Line, bytecode.OpEqual, bytecode.OpNot)
	case TokenGreater:
		p.emitOps(op.Line, bytecode.OpGreater)
	case TokenGreaterEqual:
		p.emitOps(op.Line, bytecode.OpLess, bytecode.OpNot)
	case TokenLess:
		p.emitOps(op.Line, bytecode.OpLess)
	case TokenLessEqual:
		p.emitOps(op.Line, bytecode.OpGreater, bytecode.OpNot)
	}
}

func (p *parser) literal() {
	switch p.previous.Type {
	case TokenFalse:
		p.emitOp(bytecode.OpFalse)
	case TokenNil:
		p.emitOp(bytecode.OpNil)
	case TokenTrue:
		p.emitOp(bytecode.OpTrue)
	}
}
