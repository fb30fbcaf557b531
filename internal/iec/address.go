// Package iec provides IEC 61131-3 located-variable addressing: parsing of
// symbolic addresses such as %QW10 or %IX0.3, resolution onto the numbered
// PLC memory buffers, and packing of wide values into 16-bit Modbus registers.
package iec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAddress reports a symbolic address that does not match the
// %<Area><Size><Byte>[.<Bit>] grammar.
var ErrInvalidAddress = errors.New("invalid IEC address")

// Area identifies a PLC memory region.
type Area byte

const (
	AreaInput  Area = 'I' // process input image
	AreaOutput Area = 'Q' // process output image
	AreaMemory Area = 'M' // internal/retentive memory
)

// Size identifies the bit width of a located variable.
type Size byte

const (
	SizeBit        Size = 'X' // 1 bit
	SizeByte       Size = 'B' // 8 bits
	SizeWord       Size = 'W' // 16 bits
	SizeDoubleWord Size = 'D' // 32 bits
	SizeLongWord   Size = 'L' // 64 bits
)

// WidthBits returns the width of the size in bits.
func (s Size) WidthBits() int {
	switch s {
	case SizeBit:
		return 1
	case SizeByte:
		return 8
	case SizeWord:
		return 16
	case SizeDoubleWord:
		return 32
	case SizeLongWord:
		return 64
	default:
		return 0
	}
}

// ElementBytes returns the width of one element in bytes (1 for SizeBit,
// since bit access is byte-addressed).
func (s Size) ElementBytes() int {
	switch s {
	case SizeBit, SizeByte:
		return 1
	case SizeWord:
		return 2
	case SizeDoubleWord:
		return 4
	case SizeLongWord:
		return 8
	default:
		return 0
	}
}

// String returns a human-readable name for the area.
func (a Area) String() string {
	switch a {
	case AreaInput:
		return "Input"
	case AreaOutput:
		return "Output"
	case AreaMemory:
		return "Memory"
	default:
		return "Unknown"
	}
}

// String returns a human-readable name for the size.
func (s Size) String() string {
	switch s {
	case SizeBit:
		return "Bit"
	case SizeByte:
		return "Byte"
	case SizeWord:
		return "Word"
	case SizeDoubleWord:
		return "DoubleWord"
	case SizeLongWord:
		return "LongWord"
	default:
		return "Unknown"
	}
}

// Address is a parsed symbolic address. ByteOffset is normalized to bytes:
// word numerals count 16-bit words (%QW10 is byte 20); every other size is
// byte-addressed. BitOffset is meaningful only when Size is SizeBit.
type Address struct {
	Area       Area
	Size       Size
	ByteOffset int
	BitOffset  int
}

// IsBit reports whether the address names a single bit.
func (a Address) IsBit() bool { return a.Size == SizeBit }

// String renders the address back in %-notation.
func (a Address) String() string {
	n := a.ByteOffset
	if a.Size == SizeWord {
		n /= 2
	}
	if a.IsBit() {
		return fmt.Sprintf("%%%c%c%d.%d", a.Area, a.Size, n, a.BitOffset)
	}
	return fmt.Sprintf("%%%c%c%d", a.Area, a.Size, n)
}

// ParseAddress parses a symbolic address of the form %<Area><Size><Byte>[.<Bit>].
// Bit-sized addresses require a bit index in 0-7; all other sizes reject one.
func ParseAddress(s string) (Address, error) {
	raw := strings.TrimSpace(s)
	if len(raw) < 4 || raw[0] != '%' {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	area := Area(raw[1])
	switch area {
	case AreaInput, AreaOutput, AreaMemory:
	default:
		return Address{}, fmt.Errorf("%w: unknown area %q in %q", ErrInvalidAddress, string(raw[1]), s)
	}

	size := Size(raw[2])
	switch size {
	case SizeBit, SizeByte, SizeWord, SizeDoubleWord, SizeLongWord:
	default:
		return Address{}, fmt.Errorf("%w: unknown size %q in %q", ErrInvalidAddress, string(raw[2]), s)
	}

	numPart := raw[3:]
	bitPart := ""
	if dot := strings.IndexByte(numPart, '.'); dot >= 0 {
		bitPart = numPart[dot+1:]
		numPart = numPart[:dot]
	}

	offset, err := strconv.Atoi(numPart)
	if err != nil || offset < 0 {
		return Address{}, fmt.Errorf("%w: bad offset %q in %q", ErrInvalidAddress, numPart, s)
	}

	addr := Address{Area: area, Size: size, ByteOffset: offset}
	if size == SizeWord {
		addr.ByteOffset = offset * 2
	}

	if size == SizeBit {
		if bitPart == "" {
			return Address{}, fmt.Errorf("%w: bit address %q missing bit index", ErrInvalidAddress, s)
		}
		bit, err := strconv.Atoi(bitPart)
		if err != nil || bit < 0 || bit > 7 {
			return Address{}, fmt.Errorf("%w: bit index %q out of range 0-7 in %q", ErrInvalidAddress, bitPart, s)
		}
		addr.BitOffset = bit
	} else if bitPart != "" {
		return Address{}, fmt.Errorf("%w: bit index not allowed for size %s in %q", ErrInvalidAddress, size, s)
	}

	return addr, nil
}
