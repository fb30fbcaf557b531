package master

import (
	"context"
	"testing"

	"github.com/edgeplc/modmaster/internal/config"
	"github.com/edgeplc/modmaster/internal/iec"
	"github.com/edgeplc/modmaster/internal/logging"
	"github.com/edgeplc/modmaster/internal/metrics"
	"github.com/edgeplc/modmaster/internal/plcmem"
	"github.com/edgeplc/modmaster/internal/transport"
)

func testDevice(points []config.IOPoint) config.Device {
	dev := config.Device{
		Name:        "dev",
		Host:        "127.0.0.1",
		Port:        502,
		CycleTimeMs: 200,
		TimeoutMs:   1000,
		Points:      points,
	}
	for i := range dev.Points {
		if dev.Points[i].CycleTimeMs == 0 {
			dev.Points[i].CycleTimeMs = dev.CycleTimeMs
		}
	}
	return dev
}

func testWorker(t *testing.T, mem plcmem.Access, fake *fakeClient, points []config.IOPoint) (*Worker, *metrics.Registry) {
	t.Helper()
	reg := metrics.NewRegistry()
	w, err := NewWorker(testDevice(points), mem, logging.NewTestLogger(), reg)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	w.conn.dial = func() transport.Client { return fake }
	return w, reg
}

// Three points at 200/400/1000ms on a 200ms base tick must poll on every
// tick, every second tick, and every fifth tick respectively.
func TestMultiRateSchedule(t *testing.T) {
	fake := newFakeClient()
	fake.discrete = make([]bool, 8)
	fake.holding = make([]uint16, 8)
	fake.input = make([]uint16, 8)

	w, _ := testWorker(t, plcmem.NewMemory(64), fake, []config.IOPoint{
		{FC: 2, Offset: "0", IECLocation: "%IX0.0", Length: 1, CycleTimeMs: 200},
		{FC: 3, Offset: "0", IECLocation: "%MW0", Length: 1, CycleTimeMs: 400},
		{FC: 4, Offset: "0", IECLocation: "%IW0", Length: 1, CycleTimeMs: 1000},
	})

	ctx := context.Background()
	for c := uint64(0); c < 10; c++ {
		w.runTick(ctx, c)
	}

	if fake.discreteCalls != 10 {
		t.Errorf("200ms point polled %d times, want 10", fake.discreteCalls)
	}
	if fake.holdingCalls != 5 {
		t.Errorf("400ms point polled %d times, want 5", fake.holdingCalls)
	}
	if fake.inputCalls != 2 {
		t.Errorf("1000ms point polled %d times, want 2", fake.inputCalls)
	}
}

func TestReadsLandInBuffers(t *testing.T) {
	fake := newFakeClient()
	// Two registers making one double word: highest address is most
	// significant, so [0x0001, 0x0002] decodes to 0x00020001.
	fake.holding = []uint16{0x0001, 0x0002}
	fake.discrete = []bool{true, false, true}

	mem := plcmem.NewMemory(64)
	w, _ := testWorker(t, mem, fake, []config.IOPoint{
		{FC: 3, Offset: "0", IECLocation: "%MD0", Length: 1},
		{FC: 2, Offset: "0", IECLocation: "%IX1.6", Length: 3},
	})

	w.runTick(context.Background(), 0)

	if v, st := mem.ReadDWord(iec.DintMemory, 0, false); st != plcmem.StatusOK || v != 0x00020001 {
		t.Errorf("DintMemory[0] = %#x (%v), want 0x00020001", v, st)
	}
	// Bit fan-out carries across the byte boundary: bits 6,7 of byte 1 and
	// bit 0 of byte 2.
	wantBits := []struct {
		index, bit int
		value      bool
	}{
		{1, 6, true},
		{1, 7, false},
		{2, 0, true},
	}
	for _, wb := range wantBits {
		if v, st := mem.ReadBit(iec.BoolInput, wb.index, wb.bit, false); st != plcmem.StatusOK || v != wb.value {
			t.Errorf("BoolInput[%d].%d = %v (%v), want %v", wb.index, wb.bit, v, st, wb.value)
		}
	}
}

func TestWritesDrawFromBuffers(t *testing.T) {
	fake := newFakeClient()
	mem := plcmem.NewMemory(64)

	if st := mem.WriteWord(iec.IntMemory, 4, 0x1234, false); st != plcmem.StatusOK {
		t.Fatalf("seed word: %v", st)
	}
	if st := mem.WriteWord(iec.IntMemory, 5, 0x5678, false); st != plcmem.StatusOK {
		t.Fatalf("seed word: %v", st)
	}
	if st := mem.WriteBit(iec.BoolOutput, 0, 2, true, false); st != plcmem.StatusOK {
		t.Fatalf("seed bit: %v", st)
	}

	w, reg := testWorker(t, mem, fake, []config.IOPoint{
		{FC: 16, Offset: "20", IECLocation: "%MW4", Length: 2},
		{FC: 5, Offset: "7", IECLocation: "%QX0.2", Length: 1},
	})

	w.runTick(context.Background(), 0)

	regs := fake.writtenRegs[20]
	if len(regs) != 2 || regs[0] != 0x1234 || regs[1] != 0x5678 {
		t.Errorf("registers written at 20 = %v, want [0x1234 0x5678]", regs)
	}
	coil := fake.writtenCoils[7]
	if len(coil) != 1 || !coil[0] {
		t.Errorf("coil written at 7 = %v, want [true]", coil)
	}
	if snap := reg.Snapshot()[0]; snap.Writes != 2 {
		t.Errorf("writes = %d, want 2", snap.Writes)
	}
}

// countingAccess counts lock acquisitions so tests can assert the worker
// takes the buffer lock once per phase, not once per point.
type countingAccess struct {
	plcmem.Access
	acquires int
}

func (c *countingAccess) TryAcquire() bool {
	c.acquires++
	return c.Access.TryAcquire()
}

func TestOneLockAcquisitionPerPhase(t *testing.T) {
	fake := newFakeClient()
	fake.holding = make([]uint16, 8)
	fake.discrete = make([]bool, 8)

	mem := &countingAccess{Access: plcmem.NewMemory(64)}
	w, _ := testWorker(t, mem, fake, []config.IOPoint{
		{FC: 3, Offset: "0", IECLocation: "%MW0", Length: 2},
		{FC: 2, Offset: "0", IECLocation: "%IX0.0", Length: 4},
		{FC: 16, Offset: "10", IECLocation: "%MW8", Length: 2},
		{FC: 15, Offset: "10", IECLocation: "%QX2.0", Length: 4},
	})

	w.runTick(context.Background(), 0)

	if mem.acquires != 2 {
		t.Errorf("lock acquisitions = %d, want 2 (one per phase)", mem.acquires)
	}
}

// A buffer lock held by the runtime drops the batch for this tick; the data
// arrives on the next tick instead of being applied unsynchronized.
func TestHeldLockDropsBatch(t *testing.T) {
	fake := newFakeClient()
	fake.holding = []uint16{0x00FF}

	mem := plcmem.NewMemory(64)
	w, reg := testWorker(t, mem, fake, []config.IOPoint{
		{FC: 3, Offset: "0", IECLocation: "%MW0", Length: 1},
	})

	if !mem.TryAcquire() {
		t.Fatal("could not take the lock for the fixture")
	}
	w.runTick(context.Background(), 0)
	mem.Release()

	if v, _ := mem.ReadWord(iec.IntMemory, 0, false); v != 0 {
		t.Errorf("IntMemory[0] = %#x after dropped batch, want 0", v)
	}
	if snap := reg.Snapshot()[0]; snap.Errors == 0 {
		t.Error("dropped batch not counted as an error")
	}

	w.runTick(context.Background(), 1)
	if v, st := mem.ReadWord(iec.IntMemory, 0, false); st != plcmem.StatusOK || v != 0x00FF {
		t.Errorf("IntMemory[0] = %#x (%v) after retry tick, want 0xFF", v, st)
	}
}

// One failing point must not keep the rest of the tick's points from being
// exchanged, but it must flag the connection for rebuild.
func TestReadErrorIsolated(t *testing.T) {
	fake := newFakeClient()
	fake.coilsErr = errTimeout{}
	fake.holding = []uint16{0x00AA}

	mem := plcmem.NewMemory(64)
	w, reg := testWorker(t, mem, fake, []config.IOPoint{
		{FC: 1, Offset: "0", IECLocation: "%QX0.0", Length: 1},
		{FC: 3, Offset: "0", IECLocation: "%MW0", Length: 1},
	})

	w.runTick(context.Background(), 0)

	if v, st := mem.ReadWord(iec.IntMemory, 0, false); st != plcmem.StatusOK || v != 0x00AA {
		t.Errorf("IntMemory[0] = %#x (%v), want 0xAA", v, st)
	}
	snap := reg.Snapshot()[0]
	if snap.Errors == 0 {
		t.Error("failed read not counted")
	}
	if snap.Reads != 1 {
		t.Errorf("reads = %d, want 1", snap.Reads)
	}
	if w.conn.healthy {
		t.Error("connection not marked unhealthy after a failed transaction")
	}
}

type errTimeout struct{}

func (errTimeout) Error() string { return "i/o timeout" }
