package vm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/lox/compiler"
	"github.com/chazu/lox/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// VM: stack-based bytecode interpreter
// ---------------------------------------------------------------------------

// DefaultStackSize is the number of value slots a VM gets unless
// WithStackSize says otherwise.
const DefaultStackSize = 256

// VM executes chunks on a fixed-capacity value stack.
//
// A VM is not safe for concurrent use, but VMs share nothing, so separate
// instances can run in separate goroutines.
type VM struct {
	chunk *bytecode.Chunk
	ip    int // offset of the next byte to read
	start int // offset of the instruction being executed

	stack    []bytecode.Value // fixed length; never grows
	stackTop int              // index of the next free slot

	stdout io.Writer
	stderr io.Writer
	trace  io.Writer // nil disables tracing

	printCode bool
	log       commonlog.Logger
}

// Option configures a VM.
type Option func(*VM)

// WithStackSize sets the number of value slots. Sizes below 1 are ignored.
func WithStackSize(n int) Option {
	return func(vm *VM) {
		if n > 0 {
			vm.stack = make([]bytecode.Value, n)
		}
	}
}

// WithStdout sets where Interpret prints results.
func WithStdout(w io.Writer) Option {
	return func(vm *VM) { vm.stdout = w }
}

// WithStderr sets where Interpret prints diagnostics.
func WithStderr(w io.Writer) Option {
	return func(vm *VM) { vm.stderr = w }
}

// WithTrace makes the VM print the stack and each instruction to w before
// executing it.
func WithTrace(w io.Writer) Option {
	return func(vm *VM) { vm.trace = w }
}

// WithPrintCode makes Evaluate print the disassembly of every chunk it
// compiles to stdout.
func WithPrintCode(enabled bool) Option {
	return func(vm *VM) { vm.printCode = enabled }
}

// WithLogger sets the commonlog logger name.
func WithLogger(name string) Option {
	return func(vm *VM) { vm.log = commonlog.GetLogger(name) }
}

// New creates a VM ready for use.
func New(opts ...Option) *VM {
	vm := &VM{
		stack:  make([]bytecode.Value, DefaultStackSize),
		stdout: os.Stdout,
		stderr: os.Stderr,
		log:    commonlog.GetLogger("lox.vm"),
	}
	for _, opt := range opts {
		opt(vm)
	}
	vm.Init()
	return vm
}

// Init empties the stack.
func (vm *VM) Init() {
	vm.resetStack()
}

// Free releases the VM's reference to the last chunk and empties the stack.
// The VM can be used again afterwards.
func (vm *VM) Free() {
	vm.chunk = nil
	vm.ip = 0
	vm.start = 0
	vm.resetStack()
}

func (vm *VM) resetStack() {
	for i := 0; i < vm.stackTop; i++ {
		vm.stack[i] = bytecode.Nil
	}
	vm.stackTop = 0
}

// ---------------------------------------------------------------------------
// Stack operations
// ---------------------------------------------------------------------------

// Push pushes v onto the stack. Pushing onto a full stack panics with
// ErrStackOverflow.
func (vm *VM) Push(v bytecode.Value) {
	if vm.stackTop >= len(vm.stack) {
		panic(ErrStackOverflow)
	}
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

// Pop removes and returns the top of the stack. Popping an empty stack
// panics with ErrStackUnderflow.
func (vm *VM) Pop() bytecode.Value {
	if vm.stackTop <= 0 {
		panic(ErrStackUnderflow)
	}
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

// peek returns the value distance slots below the top without popping it.
func (vm *VM) peek(distance int) bytecode.Value {
	idx := vm.stackTop - 1 - distance
	if idx < 0 {
		panic(ErrStackUnderflow)
	}
	return vm.stack[idx]
}

// StackDepth returns the number of values on the stack.
func (vm *VM) StackDepth() int {
	return vm.stackTop
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// Execute runs chunk from its first instruction until OpReturn and returns
// the value it returned. A failure is reported as a *RuntimeError, after
// which the stack is empty.
func (vm *VM) Execute(chunk *bytecode.Chunk) (result bytecode.Value, err error) {
	vm.chunk = chunk
	vm.ip = 0
	vm.start = 0

	defer func() {
		if r := recover(); r != nil {
			perr, ok := r.(error)
			if !ok || !(errors.Is(perr, ErrStackOverflow) || errors.Is(perr, ErrStackUnderflow)) {
				panic(r)
			}
			msg := "Stack overflow."
			if errors.Is(perr, ErrStackUnderflow) {
				msg = "Stack underflow."
			}
			result, err = bytecode.Nil, vm.fail(perr, msg)
		}
	}()

	return vm.run()
}

// Evaluate compiles source into a fresh chunk and executes it.
// Compile failures are returned as a compiler.ErrorList.
func (vm *VM) Evaluate(source string) (bytecode.Value, error) {
	chunk := bytecode.NewChunk()
	defer chunk.Free()

	opts := compiler.Options{PrintCode: vm.printCode, Out: vm.stdout}
	if err := compiler.CompileWith(source, chunk, opts); err != nil {
		return bytecode.Nil, err
	}

	return vm.Execute(chunk)
}

// Interpret evaluates source, printing the result to stdout and any
// diagnostics to stderr.
func (vm *VM) Interpret(source string) InterpretResult {
	v, err := vm.Evaluate(source)
	if err != nil {
		fmt.Fprintln(vm.stderr, err)
		return ResultOf(err)
	}
	fmt.Fprintln(vm.stdout, v)
	return InterpretOK
}

func (vm *VM) run() (bytecode.Value, error) {
	code := vm.chunk.Code

	for {
		if vm.trace != nil {
			vm.traceInstruction()
		}

		if vm.ip >= len(code) {
			return bytecode.Nil, vm.fail(nil, "Unexpected end of bytecode.")
		}

		vm.start = vm.ip
		op := bytecode.Opcode(vm.readByte())
		if op.IsValid() && vm.start+op.InstructionLen() > len(code) {
			return bytecode.Nil, vm.fail(nil, fmt.Sprintf("Truncated %s instruction.", op))
		}

		switch op {
		case bytecode.OpConstant:
			idx := int(vm.readByte())
			if err := vm.pushConstant(idx); err != nil {
				return bytecode.Nil, err
			}

		case bytecode.OpConstantLong:
			idx := int(vm.readByte())<<16 | int(vm.readByte())<<8 | int(vm.readByte())
			if err := vm.pushConstant(idx); err != nil {
				return bytecode.Nil, err
			}

		case bytecode.OpNil:
			vm.Push(bytecode.Nil)
		case bytecode.OpTrue:
			vm.Push(bytecode.True)
		case bytecode.OpFalse:
			vm.Push(bytecode.False)

		case bytecode.OpEqual:
			b := vm.Pop()
			a := vm.Pop()
			vm.Push(bytecode.BoolValue(bytecode.Equal(a, b)))

		case bytecode.OpGreater, bytecode.OpLess,
			bytecode.OpAdd, bytecode.OpSubtract, bytecode.OpMultiply, bytecode.OpDivide:
			if err := vm.binaryOp(op); err != nil {
				return bytecode.Nil, err
			}

		case bytecode.OpNot:
			vm.Push(bytecode.BoolValue(vm.Pop().IsFalsey()))

		case bytecode.OpNegate:
			if !vm.peek(0).IsNumber() {
				return bytecode.Nil, vm.fail(nil, "Operand must be a number.")
			}
			vm.Push(bytecode.NumberValue(-vm.Pop().AsNumber()))

		case bytecode.OpReturn:
			result := vm.Pop()
			vm.log.Debugf("returned %s", result)
			return result, nil

		default:
			return bytecode.Nil, vm.fail(nil, fmt.Sprintf("Unknown opcode %d.", byte(op)))
		}
	}
}

func (vm *VM) readByte() byte {
	b := vm.chunk.Code[vm.ip]
	vm.ip++
	return b
}

func (vm *VM) pushConstant(idx int) error {
	if idx >= vm.chunk.Constants.Count() {
		return vm.fail(nil, fmt.Sprintf("Constant index %d out of range.", idx))
	}
	vm.Push(vm.chunk.Constants.At(idx))
	return nil
}

// binaryOp pops two numbers and pushes the result of op. Division follows
// IEEE-754, so dividing by zero yields an infinity or NaN.
func (vm *VM) binaryOp(op bytecode.Opcode) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.fail(nil, "Operands must be numbers.")
	}

	b := vm.Pop().AsNumber()
	a := vm.Pop().AsNumber()

	switch op {
	case bytecode.OpGreater:
		vm.Push(bytecode.BoolValue(a > b))
	case bytecode.OpLess:
		vm.Push(bytecode.BoolValue(a < b))
	case bytecode.OpAdd:
		vm.Push(bytecode.NumberValue(a + b))
	case bytecode.OpSubtract:
		vm.Push(bytecode.NumberValue(a - b))
	case bytecode.OpMultiply:
		vm.Push(bytecode.NumberValue(a * b))
	case bytecode.OpDivide:
		vm.Push(bytecode.NumberValue(a / b))
	}
	return nil
}

// fail builds a RuntimeError for the current instruction and resets the
// stack.
func (vm *VM) fail(cause error, message string) *RuntimeError {
	rerr := &RuntimeError{
		Message: message,
		Line:    vm.chunk.Line(vm.start),
		Err:     cause,
	}
	vm.log.Debugf("runtime error at offset %d: %s", vm.start, message)
	vm.resetStack()
	return rerr
}

// traceInstruction prints the stack, bottom first, then the instruction
// about to run.
func (vm *VM) traceInstruction() {
	var sb strings.Builder
	sb.WriteString("          ")
	for i := 0; i < vm.stackTop; i++ {
		fmt.Fprintf(&sb, "[ %s ]", vm.stack[i])
	}
	sb.WriteByte('\n')

	line, _ := vm.chunk.DisassembleInstruction(vm.ip)
	sb.WriteString(line)
	sb.WriteByte('\n')

	io.WriteString(vm.trace, sb.String())
}
