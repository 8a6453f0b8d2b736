package bytecode

import (
	"fmt"
	"math"
	"strconv"
)

// Value is a runtime value using NaN-boxing.
//
// Every value is a 64-bit IEEE 754 double. Non-number values live in the
// quiet NaN space, distinguished by tag bits:
//   - Number: any double that is not one of our tagged NaNs (this includes
//     infinities and NaNs produced by arithmetic)
//   - Special: quiet NaN + tagSpecial + payload (nil, true, false)
//   - Object: quiet NaN + tagObject + payload (reserved for heap values)
type Value uint64

const (
	// Quiet NaN prefix: exponent all 1s, quiet bit set, sign bit 0.
	nanBits uint64 = 0x7FF8000000000000

	// Three tag bits inside the NaN mantissa.
	tagMask uint64 = 0x0007000000000000

	// 48 payload bits.
	payloadMask uint64 = 0x0000FFFFFFFFFFFF

	tagObject  uint64 = 0x0001000000000000
	tagSpecial uint64 = 0x0003000000000000
)

const (
	specialNil   uint64 = 0
	specialTrue  uint64 = 1
	specialFalse uint64 = 2
)

// Pre-defined special values.
const (
	Nil   Value = Value(nanBits | tagSpecial | specialNil)
	True  Value = Value(nanBits | tagSpecial | specialTrue)
	False Value = Value(nanBits | tagSpecial | specialFalse)
)

// ValueKind names the variant held by a Value.
type ValueKind uint8

const (
	KindNil ValueKind = iota
	KindBool
	KindNumber
	KindObject
)

func (k ValueKind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// Kind reports which variant v holds.
func (v Value) Kind() ValueKind {
	switch {
	case v.IsNumber():
		return KindNumber
	case v == Nil:
		return KindNil
	case v == True || v == False:
		return KindBool
	default:
		return KindObject
	}
}

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// IsNumber returns true if v represents a float64.
func (v Value) IsNumber() bool {
	bits := uint64(v)

	// Exponent not all 1s: an ordinary double.
	if bits&0x7FF0000000000000 != 0x7FF0000000000000 {
		return true
	}

	// Infinity has a zero mantissa.
	if bits&0x000FFFFFFFFFFFFF == 0 {
		return true
	}

	// Signaling NaN or negative NaN: never produced by our tagging.
	if bits&(nanBits|1<<63) != nanBits {
		return true
	}

	// Quiet NaN without tag bits is a "real" NaN.
	return bits&tagMask == 0
}

// IsNil returns true if v is nil.
func (v Value) IsNil() bool {
	return v == Nil
}

// IsBool returns true if v is true or false.
func (v Value) IsBool() bool {
	return v == True || v == False
}

// IsObject returns true if v carries the reserved object tag.
func (v Value) IsObject() bool {
	return uint64(v)&(nanBits|tagMask|1<<63) == nanBits|tagObject
}

// ---------------------------------------------------------------------------
// Constructors and accessors
// ---------------------------------------------------------------------------

// NumberValue creates a Value from a float64. Every NaN is stored as the
// canonical quiet NaN so its payload cannot collide with a tagged value.
func NumberValue(f float64) Value {
	if math.IsNaN(f) {
		return Value(nanBits)
	}
	return Value(math.Float64bits(f))
}

// BoolValue creates a Value from a bool.
func BoolValue(b bool) Value {
	if b {
		return True
	}
	return False
}

// AsNumber returns v as a float64.
// Panics if v is not a number.
func (v Value) AsNumber() float64 {
	if !v.IsNumber() {
		panic("Value.AsNumber: not a number")
	}
	return math.Float64frombits(uint64(v))
}

// AsBool returns v as a bool.
// Panics if v is not a boolean.
func (v Value) AsBool() bool {
	if !v.IsBool() {
		panic("Value.AsBool: not a bool")
	}
	return v == True
}

// IsFalsey reports whether v counts as false in a condition: nil and false
// do, everything else does not.
func (v Value) IsFalsey() bool {
	return v == Nil || v == False
}

// Equal reports whether a and b are the same value. Numbers compare with
// IEEE semantics, so NaN is not equal to itself.
func Equal(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() == b.AsNumber()
	}
	return a == b
}

// String formats v the way the interpreter prints results.
func (v Value) String() string {
	switch v.Kind() {
	case KindNil:
		return "nil"
	case KindBool:
		if v == True {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.AsNumber())
	default:
		return fmt.Sprintf("<object %#x>", uint64(v)&payloadMask)
	}
}

// formatNumber matches C's %g: six significant digits, trailing zeros
// dropped, exponent form only for very large or small magnitudes.
func formatNumber(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	return strconv.FormatFloat(f, 'g', 6, 64)
}
