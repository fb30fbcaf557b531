package master

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/tbrandon/mbserver"

	"github.com/edgeplc/modmaster/internal/config"
	"github.com/edgeplc/modmaster/internal/iec"
	"github.com/edgeplc/modmaster/internal/logging"
	"github.com/edgeplc/modmaster/internal/metrics"
	"github.com/edgeplc/modmaster/internal/plcmem"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return port
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// Full stack: worker, TCP transport, and a real in-process slave.
func TestWorkerAgainstSlave(t *testing.T) {
	if testing.Short() {
		t.Skip("network loopback test")
	}

	port := freePort(t)
	slave := mbserver.NewServer()
	if err := slave.ListenTCP(fmt.Sprintf("127.0.0.1:%d", port)); err != nil {
		t.Fatalf("start slave: %v", err)
	}
	defer slave.Close()

	slave.HoldingRegisters[10] = 0x0102
	slave.HoldingRegisters[11] = 0x0304
	slave.DiscreteInputs[3] = 1

	dev := config.Device{
		Name:        "bench",
		Host:        "127.0.0.1",
		Port:        port,
		CycleTimeMs: 50,
		TimeoutMs:   1000,
		Points: []config.IOPoint{
			{FC: 3, Offset: "10", IECLocation: "%MW0", Length: 2, CycleTimeMs: 50},
			{FC: 2, Offset: "3", IECLocation: "%IX0.3", Length: 1, CycleTimeMs: 50},
			{FC: 16, Offset: "20", IECLocation: "%MW10", Length: 1, CycleTimeMs: 50},
			{FC: 5, Offset: "8", IECLocation: "%QX0.0", Length: 1, CycleTimeMs: 50},
		},
	}
	if err := config.Validate([]config.Device{dev}); err != nil {
		t.Fatalf("fixture config invalid: %v", err)
	}

	mem := plcmem.NewMemory(64)
	if st := mem.WriteWord(iec.IntMemory, 10, 0xBEEF, false); st != plcmem.StatusOK {
		t.Fatalf("seed word: %v", st)
	}
	if st := mem.WriteBit(iec.BoolOutput, 0, 0, true, false); st != plcmem.StatusOK {
		t.Fatalf("seed bit: %v", st)
	}

	reg := metrics.NewRegistry()
	w, err := NewWorker(dev, mem, logging.NewTestLogger(), reg)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	waitFor(t, "holding registers in buffers", func() bool {
		a, st1 := mem.ReadWord(iec.IntMemory, 0, false)
		b, st2 := mem.ReadWord(iec.IntMemory, 1, false)
		return st1 == plcmem.StatusOK && st2 == plcmem.StatusOK && a == 0x0102 && b == 0x0304
	})
	waitFor(t, "discrete input in buffers", func() bool {
		v, st := mem.ReadBit(iec.BoolInput, 0, 3, false)
		return st == plcmem.StatusOK && v
	})
	waitFor(t, "holding register written to slave", func() bool {
		return slave.HoldingRegisters[20] == 0xBEEF
	})
	waitFor(t, "coil written to slave", func() bool {
		return slave.Coils[8] == 1
	})

	snap := reg.Snapshot()[0]
	if snap.State != metrics.StateConnected {
		t.Errorf("state = %v, want connected", snap.State)
	}
	if snap.Reads == 0 || snap.Writes == 0 {
		t.Errorf("reads/writes = %d/%d, want both nonzero", snap.Reads, snap.Writes)
	}
}
