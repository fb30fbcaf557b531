package iec

// Resolution of parsed addresses onto the numbered PLC memory buffers.

import (
	"errors"
	"fmt"
)

// ErrUnsupportedAddress reports a syntactically valid address whose
// area/size combination has no backing buffer (e.g. %MX bits).
var ErrUnsupportedAddress = errors.New("unsupported IEC address")

// BufferKind is a closed enumeration over the PLC memory buffers: two
// bit banks plus the {byte,int,dint,lint} x {input,output,memory} grid.
type BufferKind int

const (
	BoolInput BufferKind = iota
	BoolOutput
	ByteInput
	ByteOutput
	ByteMemory
	IntInput
	IntOutput
	IntMemory
	DintInput
	DintOutput
	DintMemory
	LintInput
	LintOutput
	LintMemory
)

// String returns the buffer's canonical name.
func (k BufferKind) String() string {
	switch k {
	case BoolInput:
		return "bool_input"
	case BoolOutput:
		return "bool_output"
	case ByteInput:
		return "byte_input"
	case ByteOutput:
		return "byte_output"
	case ByteMemory:
		return "byte_memory"
	case IntInput:
		return "int_input"
	case IntOutput:
		return "int_output"
	case IntMemory:
		return "int_memory"
	case DintInput:
		return "dint_input"
	case DintOutput:
		return "dint_output"
	case DintMemory:
		return "dint_memory"
	case LintInput:
		return "lint_input"
	case LintOutput:
		return "lint_output"
	case LintMemory:
		return "lint_memory"
	default:
		return "unknown"
	}
}

// IsBool reports whether the kind is one of the bit banks.
func (k BufferKind) IsBool() bool { return k == BoolInput || k == BoolOutput }

// Direction tells the resolver which way data will flow. The buffer bank is
// selected by area, not direction; the flag keeps descriptor construction
// explicit at both call sites.
type Direction int

const (
	DirRead Direction = iota
	DirWrite
)

// Descriptor is the resolved target for one address: which buffer, which
// element index, and (for bits) which bit of the byte at that index.
type Descriptor struct {
	Kind         BufferKind
	Index        int
	BitIndex     int
	ElementBytes int
	IsBoolean    bool
}

// Resolve maps an address to its buffer descriptor. It is total over the
// defined (area, size) pairs and returns ErrUnsupportedAddress for the rest.
func Resolve(addr Address, _ Direction) (Descriptor, error) {
	if addr.Size == SizeBit {
		var kind BufferKind
		switch addr.Area {
		case AreaInput:
			kind = BoolInput
		case AreaOutput:
			kind = BoolOutput
		case AreaMemory:
			return Descriptor{}, fmt.Errorf("%w: memory area has no bit bank (%s)", ErrUnsupportedAddress, addr)
		default:
			return Descriptor{}, fmt.Errorf("%w: area %s for bit access", ErrUnsupportedAddress, addr.Area)
		}
		return Descriptor{
			Kind:         kind,
			Index:        addr.ByteOffset,
			BitIndex:     addr.BitOffset,
			ElementBytes: 1,
			IsBoolean:    true,
		}, nil
	}

	kind, err := wideKind(addr)
	if err != nil {
		return Descriptor{}, err
	}
	width := addr.Size.ElementBytes()
	return Descriptor{
		Kind:         kind,
		Index:        addr.ByteOffset / width,
		BitIndex:     -1,
		ElementBytes: width,
		IsBoolean:    false,
	}, nil
}

func wideKind(addr Address) (BufferKind, error) {
	switch addr.Area {
	case AreaInput:
		switch addr.Size {
		case SizeByte:
			return ByteInput, nil
		case SizeWord:
			return IntInput, nil
		case SizeDoubleWord:
			return DintInput, nil
		case SizeLongWord:
			return LintInput, nil
		}
	case AreaOutput:
		switch addr.Size {
		case SizeByte:
			return ByteOutput, nil
		case SizeWord:
			return IntOutput, nil
		case SizeDoubleWord:
			return DintOutput, nil
		case SizeLongWord:
			return LintOutput, nil
		}
	case AreaMemory:
		switch addr.Size {
		case SizeByte:
			return ByteMemory, nil
		case SizeWord:
			return IntMemory, nil
		case SizeDoubleWord:
			return DintMemory, nil
		case SizeLongWord:
			return LintMemory, nil
		}
	}
	return 0, fmt.Errorf("%w: area %s size %s", ErrUnsupportedAddress, addr.Area, addr.Size)
}
