package bytecode

import (
	"math"
	"testing"
)

func TestValueKinds(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want ValueKind
	}{
		{"nil", Nil, KindNil},
		{"true", True, KindBool},
		{"false", False, KindBool},
		{"zero", NumberValue(0), KindNumber},
		{"negative", NumberValue(-5), KindNumber},
		{"fraction", NumberValue(1.2), KindNumber},
		{"+inf", NumberValue(math.Inf(1)), KindNumber},
		{"-inf", NumberValue(math.Inf(-1)), KindNumber},
		{"nan", NumberValue(math.NaN()), KindNumber},
		{"negative nan", NumberValue(-math.NaN()), KindNumber},
		{"object", Value(nanBits | tagObject | 0x1234), KindObject},
	}

	for _, tc := range tests {
		if got := tc.v.Kind(); got != tc.want {
			t.Errorf("%s: Kind() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNumberValueCanonicalizesNaN(t *testing.T) {
	payloads := []uint64{
		nanBits | tagSpecial | specialNil,
		nanBits | tagSpecial | specialTrue,
		nanBits | tagSpecial | specialFalse,
		nanBits | tagObject | 0x1234,
		0x7FF0000000000001, // signaling
		0xFFF8000000000000, // negative quiet
	}

	for _, bits := range payloads {
		v := NumberValue(math.Float64frombits(bits))
		if !v.IsNumber() {
			t.Errorf("NumberValue(NaN %#x).IsNumber() = false, kind %v", bits, v.Kind())
			continue
		}
		if !math.IsNaN(v.AsNumber()) {
			t.Errorf("NumberValue(NaN %#x).AsNumber() = %g, want NaN", bits, v.AsNumber())
		}
		if v == Nil || v.IsBool() || v.IsObject() {
			t.Errorf("NumberValue(NaN %#x) collides with a tagged value", bits)
		}
		if got := v.String(); got != "nan" {
			t.Errorf("NumberValue(NaN %#x).String() = %q, want nan", bits, got)
		}
	}
}

func TestValueNumberRoundTrip(t *testing.T) {
	for _, f := range []float64{0, 1.2, -3.4, 1e300, -1e-300, math.MaxFloat64} {
		if got := NumberValue(f).AsNumber(); got != f {
			t.Errorf("NumberValue(%g).AsNumber() = %g", f, got)
		}
	}
}

func TestValueBool(t *testing.T) {
	if !BoolValue(true).AsBool() {
		t.Error("BoolValue(true).AsBool() = false")
	}
	if BoolValue(false).AsBool() {
		t.Error("BoolValue(false).AsBool() = true")
	}
	if BoolValue(true) != True || BoolValue(false) != False {
		t.Error("BoolValue does not return the canonical constants")
	}
}

func TestValueAsNumberPanicsOnNonNumber(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("AsNumber on nil did not panic")
		}
	}()
	Nil.AsNumber()
}

func TestValueFalsey(t *testing.T) {
	falsey := []Value{Nil, False}
	truthy := []Value{True, NumberValue(0), NumberValue(1), NumberValue(math.NaN())}

	for _, v := range falsey {
		if !v.IsFalsey() {
			t.Errorf("%v.IsFalsey() = false, want true", v)
		}
	}
	for _, v := range truthy {
		if v.IsFalsey() {
			t.Errorf("%v.IsFalsey() = true, want false", v)
		}
	}
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		a, b Value
		want bool
	}{
		{NumberValue(1), NumberValue(1), true},
		{NumberValue(1), NumberValue(2), false},
		{NumberValue(0), NumberValue(math.Copysign(0, -1)), true},
		{NumberValue(math.NaN()), NumberValue(math.NaN()), false},
		{Nil, Nil, true},
		{True, True, true},
		{True, False, false},
		{Nil, False, false},
		{NumberValue(0), False, false},
	}

	for _, tc := range tests {
		if got := Equal(tc.a, tc.b); got != tc.want {
			t.Errorf("Equal(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Nil, "nil"},
		{True, "true"},
		{False, "false"},
		{NumberValue(1.2), "1.2"},
		{NumberValue(1.2 + 3.4), "4.6"},
		{NumberValue((1.2 + 3.4) * 5.6), "25.76"},
		{NumberValue(-5), "-5"},
		{NumberValue(100), "100"},
		{NumberValue(1000000), "1e+06"},
		{NumberValue(math.Inf(1)), "inf"},
		{NumberValue(math.Inf(-1)), "-inf"},
		{NumberValue(math.NaN()), "nan"},
	}

	for _, tc := range tests {
		if got := tc.v.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}
