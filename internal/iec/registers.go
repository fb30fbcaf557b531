package iec

// Packing of wide IEC values across 16-bit Modbus registers.
//
// Little-endian register order (the default in the field) stores the most
// significant 16 bits in the register at the highest index; big-endian
// stores them in the first register.

import (
	"errors"
	"fmt"
)

// ErrInsufficientRegisters reports a decode attempt with fewer registers
// than the size requires.
var ErrInsufficientRegisters = errors.New("insufficient registers")

// ErrInvalidSize reports a register conversion for a size that is not
// register-based (bits) or not defined.
var ErrInvalidSize = errors.New("invalid size for register conversion")

// RegistersForSize returns how many 16-bit registers one element of the
// given size occupies. Bits are coil-based and occupy none.
func RegistersForSize(s Size) int {
	switch s {
	case SizeBit:
		return 0
	case SizeByte, SizeWord:
		return 1
	case SizeDoubleWord:
		return 2
	case SizeLongWord:
		return 4
	default:
		return 0
	}
}

// DecodeRegisters assembles one value of the given size from registers.
func DecodeRegisters(regs []uint16, size Size, bigEndian bool) (uint64, error) {
	need := RegistersForSize(size)
	if need == 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidSize, size)
	}
	if len(regs) < need {
		return 0, fmt.Errorf("%w: %s needs %d, got %d", ErrInsufficientRegisters, size, need, len(regs))
	}

	switch size {
	case SizeByte:
		return uint64(regs[0] & 0xFF), nil
	case SizeWord:
		return uint64(regs[0]), nil
	}

	var v uint64
	if bigEndian {
		for i := 0; i < need; i++ {
			v = v<<16 | uint64(regs[i])
		}
	} else {
		for i := need - 1; i >= 0; i-- {
			v = v<<16 | uint64(regs[i])
		}
	}
	return v, nil
}

// EncodeRegisters splits a value of the given size into registers. It is the
// exact inverse of DecodeRegisters for the same size and endianness.
func EncodeRegisters(value uint64, size Size, bigEndian bool) ([]uint16, error) {
	need := RegistersForSize(size)
	if need == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSize, size)
	}

	switch size {
	case SizeByte:
		return []uint16{uint16(value & 0xFF)}, nil
	case SizeWord:
		return []uint16{uint16(value & 0xFFFF)}, nil
	}

	regs := make([]uint16, need)
	for i := 0; i < need; i++ {
		chunk := uint16(value >> (16 * i) & 0xFFFF)
		if bigEndian {
			regs[need-1-i] = chunk
		} else {
			regs[i] = chunk
		}
	}
	return regs, nil
}
