package iec

import (
	"errors"
	"testing"
)

func mustParse(t *testing.T, s string) Address {
	t.Helper()
	addr, err := ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", s, err)
	}
	return addr
}

func TestResolve(t *testing.T) {
	tests := []struct {
		in       string
		kind     BufferKind
		index    int
		bitIndex int
	}{
		{"%IX1.3", BoolInput, 1, 3},
		{"%QX0.0", BoolOutput, 0, 0},
		{"%IB3", ByteInput, 3, -1},
		{"%QB5", ByteOutput, 5, -1},
		{"%MB2", ByteMemory, 2, -1},
		{"%IW0", IntInput, 0, -1},
		{"%QW10", IntOutput, 10, -1},
		{"%MW10", IntMemory, 10, -1},
		{"%ID8", DintInput, 2, -1},
		{"%QD0", DintOutput, 0, -1},
		{"%MD4", DintMemory, 1, -1},
		{"%IL16", LintInput, 2, -1},
		{"%QL8", LintOutput, 1, -1},
		{"%ML0", LintMemory, 0, -1},
	}
	for _, tt := range tests {
		desc, err := Resolve(mustParse(t, tt.in), DirRead)
		if err != nil {
			t.Errorf("Resolve(%q): unexpected error %v", tt.in, err)
			continue
		}
		if desc.Kind != tt.kind || desc.Index != tt.index || desc.BitIndex != tt.bitIndex {
			t.Errorf("Resolve(%q) = {%s %d %d}, want {%s %d %d}",
				tt.in, desc.Kind, desc.Index, desc.BitIndex, tt.kind, tt.index, tt.bitIndex)
		}
		if desc.IsBoolean != (tt.kind == BoolInput || tt.kind == BoolOutput) {
			t.Errorf("Resolve(%q).IsBoolean = %v", tt.in, desc.IsBoolean)
		}
	}
}

func TestResolveMemoryBitUnsupported(t *testing.T) {
	addr := Address{Area: AreaMemory, Size: SizeBit, ByteOffset: 0, BitOffset: 1}
	if _, err := Resolve(addr, DirWrite); !errors.Is(err, ErrUnsupportedAddress) {
		t.Errorf("Resolve(%%MX0.1) error = %v, want ErrUnsupportedAddress", err)
	}
}

// Every (area, size) pair must either resolve or fail with the named error;
// the resolver may never report anything else.
func TestResolveTotality(t *testing.T) {
	areas := []Area{AreaInput, AreaOutput, AreaMemory}
	sizes := []Size{SizeBit, SizeByte, SizeWord, SizeDoubleWord, SizeLongWord}
	for _, area := range areas {
		for _, size := range sizes {
			addr := Address{Area: area, Size: size, ByteOffset: 8}
			_, err := Resolve(addr, DirRead)
			if err != nil && !errors.Is(err, ErrUnsupportedAddress) {
				t.Errorf("Resolve(%s/%s) error = %v, want nil or ErrUnsupportedAddress", area, size, err)
			}
			if err == nil && area == AreaMemory && size == SizeBit {
				t.Errorf("Resolve(Memory/Bit) succeeded, want ErrUnsupportedAddress")
			}
		}
	}
}
