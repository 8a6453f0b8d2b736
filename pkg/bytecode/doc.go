// Package bytecode defines the executable representation shared by the lox
// compiler and virtual machine.
//
// The format is designed for:
//   - Compact representation (one opcode byte plus 0, 1 or 3 operand bytes)
//   - Fast decoding (fixed-width opcodes, indices into a constant pool)
//   - Easy serialization (chunks round-trip through CBOR images)
//
// # Architecture Overview
//
//   - Growth policy: every growable buffer starts at capacity 8 and doubles.
//     GrowCapacity and Reallocate are the only way buffers change size.
//
//   - Value: a NaN-boxed tagged variant over nil, booleans and numbers, with
//     a tag reserved for heap objects.
//
//   - Chunk: a byte stream of instructions, a parallel line map used only for
//     diagnostics, and a ValueArray constant pool. Appends to code and lines
//     are always paired.
//
//   - Disassembler: renders a chunk or a single instruction for debugging and
//     for the VM's execution trace.
//
//   - Images: chunks serialize to canonical CBOR with a "LOXC" magic and a
//     format version.
package bytecode
