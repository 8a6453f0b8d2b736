package bytecode

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func sampleChunk() *Chunk {
	c := NewChunk()
	c.WriteConstant(NumberValue(1.2), 1)
	c.WriteConstant(NumberValue(math.Inf(1)), 1)
	c.WriteOp(OpAdd, 1)
	c.WriteOp(OpTrue, 2)
	c.WriteOp(OpNil, 2)
	c.WriteOp(OpEqual, 2)
	c.WriteOp(OpReturn, 3)
	return c
}

func TestImageRoundTrip(t *testing.T) {
	c := sampleChunk()

	data, err := MarshalImage(c)
	if err != nil {
		t.Fatalf("MarshalImage: %v", err)
	}

	got, err := UnmarshalImage(data)
	if err != nil {
		t.Fatalf("UnmarshalImage: %v", err)
	}

	if got.Version != c.Version {
		t.Errorf("Version = %d, want %d", got.Version, c.Version)
	}
	if !bytes.Equal(got.Code, c.Code) {
		t.Errorf("Code = %v, want %v", got.Code, c.Code)
	}
	if len(got.Lines) != len(c.Lines) {
		t.Fatalf("len(Lines) = %d, want %d", len(got.Lines), len(c.Lines))
	}
	for i := range c.Lines {
		if got.Lines[i] != c.Lines[i] {
			t.Errorf("Lines[%d] = %d, want %d", i, got.Lines[i], c.Lines[i])
		}
	}
	if got.Constants.Count() != c.Constants.Count() {
		t.Fatalf("constant count = %d, want %d", got.Constants.Count(), c.Constants.Count())
	}
	for i := 0; i < c.Constants.Count(); i++ {
		if got.Constants.At(i) != c.Constants.At(i) {
			t.Errorf("constant %d = %v, want %v", i, got.Constants.At(i), c.Constants.At(i))
		}
	}
}

func TestImageDeterministic(t *testing.T) {
	a, err := MarshalImage(sampleChunk())
	if err != nil {
		t.Fatalf("MarshalImage: %v", err)
	}
	b, err := MarshalImage(sampleChunk())
	if err != nil {
		t.Fatalf("MarshalImage: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("equal chunks encoded to different bytes")
	}
}

func TestImageRejectsBadMagic(t *testing.T) {
	data, err := cbor.Marshal(&Image{Magic: "NOPE", Version: BytecodeVersion, Chunk: NewChunk()})
	if err != nil {
		t.Fatalf("cbor.Marshal: %v", err)
	}

	if _, err := UnmarshalImage(data); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("UnmarshalImage = %v, want ErrInvalidMagic", err)
	}
}

func TestImageRejectsNewerVersion(t *testing.T) {
	data, err := cbor.Marshal(&Image{Magic: ImageMagic, Version: BytecodeVersion + 1, Chunk: NewChunk()})
	if err != nil {
		t.Fatalf("cbor.Marshal: %v", err)
	}

	if _, err := UnmarshalImage(data); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("UnmarshalImage = %v, want ErrVersionMismatch", err)
	}
}

func TestImageRejectsMismatchedLines(t *testing.T) {
	c := sampleChunk()
	c.Lines = c.Lines[:len(c.Lines)-1]

	data, err := MarshalImage(c)
	if err != nil {
		t.Fatalf("MarshalImage: %v", err)
	}
	if _, err := UnmarshalImage(data); !errors.Is(err, ErrCorruptImage) {
		t.Errorf("UnmarshalImage = %v, want ErrCorruptImage", err)
	}
}

func TestImageRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalImage([]byte{0xFF, 0x00, 0x13}); err == nil {
		t.Error("UnmarshalImage accepted garbage")
	}
}
