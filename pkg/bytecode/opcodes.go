package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
type Opcode byte

const (
	// Constants
	OpConstant     Opcode = iota // Push constant: OpConstant <index:u8>
	OpConstantLong               // Push constant: OpConstantLong <index:u24>
	OpNil                        // Push nil
	OpTrue                       // Push true
	OpFalse                      // Push false

	// Comparison
	OpEqual   // Pop two, push a == b
	OpGreater // Pop two, push a > b
	OpLess    // Pop two, push a < b

	// Arithmetic
	OpAdd      // Pop two, push a + b
	OpSubtract // Pop two, push a - b where b is TOS
	OpMultiply // Pop two, push a * b
	OpDivide   // Pop two, push a / b
	OpNot      // Pop one, push its falsiness
	OpNegate   // Negate top of stack

	// Return
	OpReturn // Pop the result and halt
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // How many values popped from stack
	StackPush  int    // How many values pushed to stack
	OperandLen int    // Number of operand bytes following the opcode
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpConstant:     {"OP_CONSTANT", 0, 1, 1},
	OpConstantLong: {"OP_CONSTANT_LONG", 0, 1, 3},
	OpNil:          {"OP_NIL", 0, 1, 0},
	OpTrue:         {"OP_TRUE", 0, 1, 0},
	OpFalse:        {"OP_FALSE", 0, 1, 0},

	OpEqual:   {"OP_EQUAL", 2, 1, 0},
	OpGreater: {"OP_GREATER", 2, 1, 0},
	OpLess:    {"OP_LESS", 2, 1, 0},

	OpAdd:      {"OP_ADD", 2, 1, 0},
	OpSubtract: {"OP_SUBTRACT", 2, 1, 0},
	OpMultiply: {"OP_MULTIPLY", 2, 1, 0},
	OpDivide:   {"OP_DIVIDE", 2, 1, 0},
	OpNot:      {"OP_NOT", 1, 1, 0},
	OpNegate:   {"OP_NEGATE", 1, 1, 0},

	OpReturn: {"OP_RETURN", 1, 0, 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// Unknown opcodes get a placeholder name and no operands.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the opcode's name.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// IsValid reports whether op is a defined opcode.
func (op Opcode) IsValid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// InstructionLen returns the total length of the instruction (opcode + operands).
func (op Opcode) InstructionLen() int {
	return 1 + GetOpcodeInfo(op).OperandLen
}

// AllOpcodes returns every defined opcode in numeric order.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := OpConstant; op <= OpReturn; op++ {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
