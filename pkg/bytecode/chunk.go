package bytecode

import (
	"errors"
)

// BytecodeVersion is the current bytecode format version.
// Increment when making incompatible changes to the format.
const BytecodeVersion uint16 = 1

// MaxConstants is the largest constant pool a chunk can address, using the
// 24-bit operand of OpConstantLong.
const MaxConstants = 1 << 24

// ErrTooManyConstants is returned when a chunk's constant pool is full.
var ErrTooManyConstants = errors.New("too many constants in one chunk")

// Chunk is an executable unit: a byte stream of opcodes and operands, a
// parallel line map for diagnostics, and the constant pool the code indexes.
//
// Code and Lines always have the same length and are grown together, so
// Lines[i] is the source line of the byte at Code[i].
type Chunk struct {
	Version   uint16     `cbor:"1,keyasint"`
	Code      []byte     `cbor:"2,keyasint"`
	Lines     []int      `cbor:"3,keyasint"`
	Constants ValueArray `cbor:"4,keyasint"`
}

// NewChunk creates an empty chunk with no backing storage.
func NewChunk() *Chunk {
	c := &Chunk{}
	c.Init()
	return c
}

// Init resets c to the empty state: zero count and capacity, empty pool.
func (c *Chunk) Init() {
	c.Version = BytecodeVersion
	c.Code = nil
	c.Lines = nil
	c.Constants = ValueArray{}
}

// Write appends one opcode or operand byte and the line it came from.
func (c *Chunk) Write(b byte, line int) {
	if len(c.Code) == cap(c.Code) {
		oldCap := cap(c.Code)
		newCap := GrowCapacity(oldCap)
		c.Code = Reallocate(c.Code, len(c.Code), newCap)
		c.Lines = Reallocate(c.Lines, len(c.Lines), newCap)
	}
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteOp appends a single opcode.
func (c *Chunk) WriteOp(op Opcode, line int) {
	c.Write(byte(op), line)
}

// AddConstant appends v to the constant pool and returns its index.
// Indices start at 0 and are never reused; equal values are not merged.
func (c *Chunk) AddConstant(v Value) int {
	return c.Constants.Write(v)
}

// WriteConstant adds v to the pool and emits the instruction that loads it:
// OpConstant with a one-byte index while the pool is small, OpConstantLong
// with a 24-bit big-endian index after that.
func (c *Chunk) WriteConstant(v Value, line int) error {
	if c.Constants.Count() >= MaxConstants {
		return ErrTooManyConstants
	}
	idx := c.AddConstant(v)
	if idx <= 0xFF {
		c.WriteOp(OpConstant, line)
		c.Write(byte(idx), line)
		return nil
	}
	c.WriteOp(OpConstantLong, line)
	c.Write(byte(idx>>16), line)
	c.Write(byte(idx>>8), line)
	c.Write(byte(idx), line)
	return nil
}

// Free releases the code, line and constant buffers and returns c to the
// state Init leaves it in.
func (c *Chunk) Free() {
	c.Code = Reallocate(c.Code, len(c.Code), 0)
	c.Lines = Reallocate(c.Lines, len(c.Lines), 0)
	c.Constants.Free()
	c.Init()
}

// Count returns the number of bytes of code.
func (c *Chunk) Count() int {
	return len(c.Code)
}

// Capacity returns the number of code bytes allocated.
func (c *Chunk) Capacity() int {
	return cap(c.Code)
}

// Line returns the source line for the byte at offset, or 0 if the offset
// is outside the code.
func (c *Chunk) Line(offset int) int {
	if offset < 0 || offset >= len(c.Lines) {
		return 0
	}
	return c.Lines[offset]
}
