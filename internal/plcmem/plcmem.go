// Package plcmem defines the shared PLC memory contract consumed by the
// polling engine, plus an in-process implementation used by tests and
// standalone runs. The buffer set mirrors the runtime's located-variable
// banks: two 8-bit-fanout bit banks and the {byte,int,dint,lint} x
// {input,output,memory} grid.
package plcmem

import (
	"sync"

	"github.com/edgeplc/modmaster/internal/iec"
)

// Status is the result of a buffer operation. Callers must check it; a zero
// data value is a legal payload and never signals failure by itself.
type Status int

const (
	StatusOK Status = iota
	StatusOutOfRange
	StatusWrongKind
	StatusLockFailed
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusOutOfRange:
		return "out_of_range"
	case StatusWrongKind:
		return "wrong_kind"
	case StatusLockFailed:
		return "lock_failed"
	default:
		return "unknown"
	}
}

// Access is the shared-buffer contract. TryAcquire is non-blocking; a false
// return means the caller must abandon its batch and retry next cycle. Every
// data operation takes a locked flag telling it the caller already holds the
// buffer mutex, so batches pay for one acquisition instead of one per point.
type Access interface {
	TryAcquire() bool
	Release()

	ReadBit(kind iec.BufferKind, index, bit int, locked bool) (bool, Status)
	WriteBit(kind iec.BufferKind, index, bit int, value bool, locked bool) Status

	ReadByte(kind iec.BufferKind, index int, locked bool) (uint8, Status)
	WriteByte(kind iec.BufferKind, index int, value uint8, locked bool) Status

	ReadWord(kind iec.BufferKind, index int, locked bool) (uint16, Status)
	WriteWord(kind iec.BufferKind, index int, value uint16, locked bool) Status

	ReadDWord(kind iec.BufferKind, index int, locked bool) (uint32, Status)
	WriteDWord(kind iec.BufferKind, index int, value uint32, locked bool) Status

	ReadLWord(kind iec.BufferKind, index int, locked bool) (uint64, Status)
	WriteLWord(kind iec.BufferKind, index int, value uint64, locked bool) Status
}

// Memory is an in-process Access implementation. All banks share one mutex,
// matching the host runtime's single buffer lock.
type Memory struct {
	mu sync.Mutex

	boolInput  [][8]bool
	boolOutput [][8]bool

	byteInput  []uint8
	byteOutput []uint8
	byteMemory []uint8

	intInput  []uint16
	intOutput []uint16
	intMemory []uint16

	dintInput  []uint32
	dintOutput []uint32
	dintMemory []uint32

	lintInput  []uint64
	lintOutput []uint64
	lintMemory []uint64
}

// NewMemory allocates a buffer set with size elements per bank.
func NewMemory(size int) *Memory {
	return &Memory{
		boolInput:  make([][8]bool, size),
		boolOutput: make([][8]bool, size),
		byteInput:  make([]uint8, size),
		byteOutput: make([]uint8, size),
		byteMemory: make([]uint8, size),
		intInput:   make([]uint16, size),
		intOutput:  make([]uint16, size),
		intMemory:  make([]uint16, size),
		dintInput:  make([]uint32, size),
		dintOutput: make([]uint32, size),
		dintMemory: make([]uint32, size),
		lintInput:  make([]uint64, size),
		lintOutput: make([]uint64, size),
		lintMemory: make([]uint64, size),
	}
}

// TryAcquire takes the buffer mutex without blocking.
func (m *Memory) TryAcquire() bool { return m.mu.TryLock() }

// Release gives the buffer mutex back.
func (m *Memory) Release() { m.mu.Unlock() }

// lock takes the mutex for a single operation unless the caller already
// holds it. The returned func undoes exactly what lock did.
func (m *Memory) lock(locked bool) (func(), bool) {
	if locked {
		return func() {}, true
	}
	if !m.mu.TryLock() {
		return nil, false
	}
	return m.mu.Unlock, true
}

func (m *Memory) bitBank(kind iec.BufferKind) [][8]bool {
	switch kind {
	case iec.BoolInput:
		return m.boolInput
	case iec.BoolOutput:
		return m.boolOutput
	default:
		return nil
	}
}

// ReadBit reads one bit from a bit bank.
func (m *Memory) ReadBit(kind iec.BufferKind, index, bit int, locked bool) (bool, Status) {
	bank := m.bitBank(kind)
	if bank == nil {
		return false, StatusWrongKind
	}
	if index < 0 || index >= len(bank) || bit < 0 || bit > 7 {
		return false, StatusOutOfRange
	}
	unlock, ok := m.lock(locked)
	if !ok {
		return false, StatusLockFailed
	}
	defer unlock()
	return bank[index][bit], StatusOK
}

// WriteBit writes one bit into a bit bank.
func (m *Memory) WriteBit(kind iec.BufferKind, index, bit int, value bool, locked bool) Status {
	bank := m.bitBank(kind)
	if bank == nil {
		return StatusWrongKind
	}
	if index < 0 || index >= len(bank) || bit < 0 || bit > 7 {
		return StatusOutOfRange
	}
	unlock, ok := m.lock(locked)
	if !ok {
		return StatusLockFailed
	}
	defer unlock()
	bank[index][bit] = value
	return StatusOK
}

func (m *Memory) byteBank(kind iec.BufferKind) []uint8 {
	switch kind {
	case iec.ByteInput:
		return m.byteInput
	case iec.ByteOutput:
		return m.byteOutput
	case iec.ByteMemory:
		return m.byteMemory
	default:
		return nil
	}
}

// ReadByte reads an 8-bit element.
func (m *Memory) ReadByte(kind iec.BufferKind, index int, locked bool) (uint8, Status) {
	bank := m.byteBank(kind)
	if bank == nil {
		return 0, StatusWrongKind
	}
	if index < 0 || index >= len(bank) {
		return 0, StatusOutOfRange
	}
	unlock, ok := m.lock(locked)
	if !ok {
		return 0, StatusLockFailed
	}
	defer unlock()
	return bank[index], StatusOK
}

// WriteByte writes an 8-bit element.
func (m *Memory) WriteByte(kind iec.BufferKind, index int, value uint8, locked bool) Status {
	bank := m.byteBank(kind)
	if bank == nil {
		return StatusWrongKind
	}
	if index < 0 || index >= len(bank) {
		return StatusOutOfRange
	}
	unlock, ok := m.lock(locked)
	if !ok {
		return StatusLockFailed
	}
	defer unlock()
	bank[index] = value
	return StatusOK
}

func (m *Memory) wordBank(kind iec.BufferKind) []uint16 {
	switch kind {
	case iec.IntInput:
		return m.intInput
	case iec.IntOutput:
		return m.intOutput
	case iec.IntMemory:
		return m.intMemory
	default:
		return nil
	}
}

// ReadWord reads a 16-bit element.
func (m *Memory) ReadWord(kind iec.BufferKind, index int, locked bool) (uint16, Status) {
	bank := m.wordBank(kind)
	if bank == nil {
		return 0, StatusWrongKind
	}
	if index < 0 || index >= len(bank) {
		return 0, StatusOutOfRange
	}
	unlock, ok := m.lock(locked)
	if !ok {
		return 0, StatusLockFailed
	}
	defer unlock()
	return bank[index], StatusOK
}

// WriteWord writes a 16-bit element.
func (m *Memory) WriteWord(kind iec.BufferKind, index int, value uint16, locked bool) Status {
	bank := m.wordBank(kind)
	if bank == nil {
		return StatusWrongKind
	}
	if index < 0 || index >= len(bank) {
		return StatusOutOfRange
	}
	unlock, ok := m.lock(locked)
	if !ok {
		return StatusLockFailed
	}
	defer unlock()
	bank[index] = value
	return StatusOK
}

func (m *Memory) dwordBank(kind iec.BufferKind) []uint32 {
	switch kind {
	case iec.DintInput:
		return m.dintInput
	case iec.DintOutput:
		return m.dintOutput
	case iec.DintMemory:
		return m.dintMemory
	default:
		return nil
	}
}

// ReadDWord reads a 32-bit element.
func (m *Memory) ReadDWord(kind iec.BufferKind, index int, locked bool) (uint32, Status) {
	bank := m.dwordBank(kind)
	if bank == nil {
		return 0, StatusWrongKind
	}
	if index < 0 || index >= len(bank) {
		return 0, StatusOutOfRange
	}
	unlock, ok := m.lock(locked)
	if !ok {
		return 0, StatusLockFailed
	}
	defer unlock()
	return bank[index], StatusOK
}

// WriteDWord writes a 32-bit element.
func (m *Memory) WriteDWord(kind iec.BufferKind, index int, value uint32, locked bool) Status {
	bank := m.dwordBank(kind)
	if bank == nil {
		return StatusWrongKind
	}
	if index < 0 || index >= len(bank) {
		return StatusOutOfRange
	}
	unlock, ok := m.lock(locked)
	if !ok {
		return StatusLockFailed
	}
	defer unlock()
	bank[index] = value
	return StatusOK
}

func (m *Memory) lwordBank(kind iec.BufferKind) []uint64 {
	switch kind {
	case iec.LintInput:
		return m.lintInput
	case iec.LintOutput:
		return m.lintOutput
	case iec.LintMemory:
		return m.lintMemory
	default:
		return nil
	}
}

// ReadLWord reads a 64-bit element.
func (m *Memory) ReadLWord(kind iec.BufferKind, index int, locked bool) (uint64, Status) {
	bank := m.lwordBank(kind)
	if bank == nil {
		return 0, StatusWrongKind
	}
	if index < 0 || index >= len(bank) {
		return 0, StatusOutOfRange
	}
	unlock, ok := m.lock(locked)
	if !ok {
		return 0, StatusLockFailed
	}
	defer unlock()
	return bank[index], StatusOK
}

// WriteLWord writes a 64-bit element.
func (m *Memory) WriteLWord(kind iec.BufferKind, index int, value uint64, locked bool) Status {
	bank := m.lwordBank(kind)
	if bank == nil {
		return StatusWrongKind
	}
	if index < 0 || index >= len(bank) {
		return StatusOutOfRange
	}
	unlock, ok := m.lock(locked)
	if !ok {
		return StatusLockFailed
	}
	defer unlock()
	bank[index] = value
	return StatusOK
}
