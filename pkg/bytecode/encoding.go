package bytecode

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ImageMagic identifies a serialized chunk image: "LOXC".
const ImageMagic = "LOXC"

var (
	ErrInvalidMagic    = errors.New("invalid image magic: expected LOXC")
	ErrVersionMismatch = errors.New("image version is newer than supported")
	ErrCorruptImage    = errors.New("corrupt image: line map does not match code")
)

// Image is the on-disk form of a compiled chunk.
type Image struct {
	Magic   string `cbor:"1,keyasint"`
	Version uint16 `cbor:"2,keyasint"`
	Chunk   *Chunk `cbor:"3,keyasint"`
}

// cborEncMode uses canonical options so equal chunks encode to equal bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalImage serializes a chunk to CBOR bytes.
func MarshalImage(c *Chunk) ([]byte, error) {
	return cborEncMode.Marshal(&Image{
		Magic:   ImageMagic,
		Version: BytecodeVersion,
		Chunk:   c,
	})
}

// UnmarshalImage deserializes a chunk from CBOR bytes.
func UnmarshalImage(data []byte) (*Chunk, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal image: %w", err)
	}
	if img.Magic != ImageMagic {
		return nil, ErrInvalidMagic
	}
	if img.Version > BytecodeVersion {
		return nil, fmt.Errorf("%w: got %d, support %d", ErrVersionMismatch, img.Version, BytecodeVersion)
	}
	if img.Chunk == nil {
		return NewChunk(), nil
	}
	if len(img.Chunk.Code) != len(img.Chunk.Lines) {
		return nil, ErrCorruptImage
	}
	return img.Chunk, nil
}
