package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable bytecode listing for the chunk.
//
// Each line shows the byte offset, the source line (or "|" when it repeats
// the previous instruction's line), the opcode and its operands:
//
//	== script ==
//	0000    1 OP_CONSTANT         0 '1.2'
//	0002    | OP_RETURN
func (c *Chunk) Disassemble(name string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		line, next := c.DisassembleInstruction(offset)
		sb.WriteString(line)
		sb.WriteByte('\n')
		offset = next
	}

	return sb.String()
}

// DisassembleInstruction formats the instruction at offset.
// Returns the formatted line and the offset of the next instruction.
func (c *Chunk) DisassembleInstruction(offset int) (string, int) {
	if offset >= len(c.Code) {
		return fmt.Sprintf("%04d <end of code>", offset), offset + 1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%04d ", offset)
	if offset > 0 && c.Line(offset) == c.Line(offset-1) {
		sb.WriteString("   | ")
	} else {
		fmt.Fprintf(&sb, "%4d ", c.Line(offset))
	}

	op := Opcode(c.Code[offset])
	info := GetOpcodeInfo(op)

	switch op {
	case OpConstant:
		if offset+1 >= len(c.Code) {
			fmt.Fprintf(&sb, "%-16s <truncated>", info.Name)
			return sb.String(), len(c.Code)
		}
		idx := int(c.Code[offset+1])
		fmt.Fprintf(&sb, "%-16s %4d '%s'", info.Name, idx, c.constantString(idx))
		return sb.String(), offset + 2

	case OpConstantLong:
		if offset+3 >= len(c.Code) {
			fmt.Fprintf(&sb, "%-16s <truncated>", info.Name)
			return sb.String(), len(c.Code)
		}
		idx := int(c.Code[offset+1])<<16 | int(c.Code[offset+2])<<8 | int(c.Code[offset+3])
		fmt.Fprintf(&sb, "%-16s %4d '%s'", info.Name, idx, c.constantString(idx))
		return sb.String(), offset + 4

	default:
		if !op.IsValid() {
			fmt.Fprintf(&sb, "Unknown opcode %d", byte(op))
			return sb.String(), offset + 1
		}
		sb.WriteString(info.Name)
		return sb.String(), offset + op.InstructionLen()
	}
}

func (c *Chunk) constantString(idx int) string {
	if idx < 0 || idx >= c.Constants.Count() {
		return "<invalid>"
	}
	return c.Constants.At(idx).String()
}
