// Package master runs one polling worker per configured slave device and a
// supervisor that manages the fleet. Each worker owns its device's TCP
// connection and exchanges its I/O point table with the shared buffer set on
// a multi-rate schedule.
package master

import (
	"context"
	"fmt"
	"time"

	"github.com/edgeplc/modmaster/internal/config"
	"github.com/edgeplc/modmaster/internal/iec"
	"github.com/edgeplc/modmaster/internal/logging"
	"github.com/edgeplc/modmaster/internal/metrics"
	"github.com/edgeplc/modmaster/internal/plcmem"
	"github.com/edgeplc/modmaster/internal/transport"
)

// boundPoint is an I/O point with its strings resolved: parsed protocol
// address, resolved buffer descriptor, and its polling interval expressed in
// base ticks.
type boundPoint struct {
	fc      transport.FunctionCode
	address uint16
	loc     iec.Address
	desc    iec.Descriptor
	length  int
	every   uint64
}

// stagedRead holds one read transaction's payload between the network phase
// and the buffer phase of a tick.
type stagedRead struct {
	point boundPoint
	bits  []bool
	regs  []uint16
}

// Worker polls one device. Run drives the loop; everything else is a tick
// phase kept separate so the schedule can be exercised without sleeping.
type Worker struct {
	name     string
	log      *logging.Logger
	stat     *metrics.Device
	mem      plcmem.Access
	conn     *connManager
	points   []boundPoint
	baseTick time.Duration

	// Register byte order for multi-register values. The default (false)
	// treats the highest register address as most significant.
	bigEndian bool

	counter uint64
}

// NewWorker binds a validated device config to the shared buffer set. The
// device is not dialed here; the first tick connects.
func NewWorker(dev config.Device, mem plcmem.Access, log *logging.Logger, reg *metrics.Registry) (*Worker, error) {
	baseMs := dev.BaseTickMs()
	points := make([]boundPoint, 0, len(dev.Points))
	for i, p := range dev.Points {
		fc := transport.FunctionCode(p.FC)
		addr, err := config.ParseOffset(p.Offset)
		if err != nil {
			return nil, fmt.Errorf("%s point %d: %w", dev.Name, i, err)
		}
		loc, err := iec.ParseAddress(p.IECLocation)
		if err != nil {
			return nil, fmt.Errorf("%s point %d: %w", dev.Name, i, err)
		}
		dir := iec.DirRead
		if fc.IsWrite() {
			dir = iec.DirWrite
		}
		desc, err := iec.Resolve(loc, dir)
		if err != nil {
			return nil, fmt.Errorf("%s point %d: %w", dev.Name, i, err)
		}
		every := uint64(p.CycleTimeMs / baseMs)
		if every == 0 {
			every = 1
		}
		points = append(points, boundPoint{
			fc:      fc,
			address: addr,
			loc:     loc,
			desc:    desc,
			length:  p.Length,
			every:   every,
		})
	}

	timeout := time.Duration(dev.TimeoutMs) * time.Millisecond
	target := dev.Target()
	wlog := log.WithPrefix(dev.Name)
	stat := reg.Register(dev.Name, target)
	dial := func() transport.Client { return transport.NewTCP(target, timeout) }

	return &Worker{
		name:     dev.Name,
		log:      wlog,
		stat:     stat,
		mem:      mem,
		conn:     newConnManager(dev.Name, dial, wlog, stat),
		points:   points,
		baseTick: time.Duration(baseMs) * time.Millisecond,
	}, nil
}

// Run polls until ctx is cancelled. A panic inside a tick is logged and
// counted, never propagated; the loop moves on to the next tick.
func (w *Worker) Run(ctx context.Context) {
	defer w.conn.Disconnect()

	if len(w.points) == 0 {
		w.log.Info("no points configured, nothing to poll")
		return
	}

	w.log.Info("polling %d points, base tick %v", len(w.points), w.baseTick)
	for ctx.Err() == nil {
		start := time.Now()
		w.safeTick(ctx)
		elapsed := time.Since(start)
		w.stat.ObserveCycle(elapsed)

		if remaining := w.baseTick - elapsed; remaining > 0 {
			if !sleepCtx(ctx, remaining) {
				break
			}
		}
		w.counter++
	}
	w.log.Info("stopped")
}

func (w *Worker) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.stat.IncErrors()
			w.conn.MarkUnhealthy()
			w.log.Error("tick panic: %v", r)
		}
	}()
	w.runTick(ctx, w.counter)
}

// runTick runs one scheduling tick: reads over the network, one locked pass
// applying them, one locked pass gathering outgoing values, writes over the
// network. The buffer lock is never held across a network call.
func (w *Worker) runTick(ctx context.Context, counter uint64) {
	reads, writes := w.duePoints(counter)
	if len(reads) == 0 && len(writes) == 0 {
		return
	}
	if !w.conn.Ensure(ctx) {
		return
	}

	if len(reads) > 0 {
		staged := make([]stagedRead, 0, len(reads))
		for _, p := range reads {
			sr, err := w.readPoint(p)
			if err != nil {
				w.stat.IncErrors()
				w.conn.MarkUnhealthy()
				w.log.Verbose("read fc=%s addr=%d: %v", p.fc, p.address, err)
				continue
			}
			w.stat.IncReads()
			staged = append(staged, sr)
		}
		if len(staged) > 0 {
			w.applyReads(staged)
		}
	}

	if len(writes) > 0 {
		outgoing := w.gatherWrites(writes)
		for _, sr := range outgoing {
			if err := w.writePoint(sr); err != nil {
				w.stat.IncErrors()
				w.conn.MarkUnhealthy()
				w.log.Verbose("write fc=%s addr=%d: %v", sr.point.fc, sr.point.address, err)
				continue
			}
			w.stat.IncWrites()
		}
	}
}

// duePoints splits the points scheduled for this tick by direction.
func (w *Worker) duePoints(counter uint64) (reads, writes []boundPoint) {
	for _, p := range w.points {
		if counter%p.every != 0 {
			continue
		}
		if p.fc.IsRead() {
			reads = append(reads, p)
		} else {
			writes = append(writes, p)
		}
	}
	return reads, writes
}

func (w *Worker) registerCount(p boundPoint) uint16 {
	return uint16(p.length * iec.RegistersForSize(p.loc.Size))
}

// readPoint performs one read transaction. No buffer access happens here.
func (w *Worker) readPoint(p boundPoint) (stagedRead, error) {
	client := w.conn.client
	switch p.fc {
	case transport.FcReadCoils:
		bits, err := client.ReadCoils(p.address, uint16(p.length))
		return stagedRead{point: p, bits: bits}, err
	case transport.FcReadDiscreteInputs:
		bits, err := client.ReadDiscreteInputs(p.address, uint16(p.length))
		return stagedRead{point: p, bits: bits}, err
	case transport.FcReadHoldingRegisters:
		regs, err := client.ReadHoldingRegisters(p.address, w.registerCount(p))
		return stagedRead{point: p, regs: regs}, err
	case transport.FcReadInputRegisters:
		regs, err := client.ReadInputRegisters(p.address, w.registerCount(p))
		return stagedRead{point: p, regs: regs}, err
	default:
		return stagedRead{}, fmt.Errorf("function code %s is not a read", p.fc)
	}
}

// applyReads commits every staged read under a single lock acquisition, so
// points polled in the same tick land in the buffers atomically. An
// unavailable lock drops the batch; the points poll again next tick.
func (w *Worker) applyReads(staged []stagedRead) {
	if !w.mem.TryAcquire() {
		w.stat.IncErrors()
		w.log.Error("buffer lock unavailable, read batch dropped")
		return
	}
	defer w.mem.Release()

	for _, sr := range staged {
		if sr.point.desc.IsBoolean {
			w.applyBits(sr)
		} else {
			w.applyRegisters(sr)
		}
	}
}

func (w *Worker) applyBits(sr stagedRead) {
	d := sr.point.desc
	for i, v := range sr.bits {
		bit := d.BitIndex + i
		st := w.mem.WriteBit(d.Kind, d.Index+bit/8, bit%8, v, true)
		if st != plcmem.StatusOK {
			w.stat.IncErrors()
			w.log.Error("%s[%d].%d: %s", d.Kind, d.Index+bit/8, bit%8, st)
		}
	}
}

func (w *Worker) applyRegisters(sr stagedRead) {
	p := sr.point
	per := iec.RegistersForSize(p.loc.Size)
	for i := 0; i < p.length; i++ {
		if (i+1)*per > len(sr.regs) {
			w.stat.IncErrors()
			w.log.Error("short register payload for %s", p.loc)
			return
		}
		value, err := iec.DecodeRegisters(sr.regs[i*per:(i+1)*per], p.loc.Size, w.bigEndian)
		if err != nil {
			w.stat.IncErrors()
			w.log.Error("decode %s: %v", p.loc, err)
			return
		}
		st := w.storeElement(p.desc.Kind, p.desc.Index+i, p.loc.Size, value)
		if st != plcmem.StatusOK {
			w.stat.IncErrors()
			w.log.Error("%s[%d]: %s", p.desc.Kind, p.desc.Index+i, st)
		}
	}
}

func (w *Worker) storeElement(kind iec.BufferKind, index int, size iec.Size, value uint64) plcmem.Status {
	switch size {
	case iec.SizeByte:
		return w.mem.WriteByte(kind, index, uint8(value), true)
	case iec.SizeWord:
		return w.mem.WriteWord(kind, index, uint16(value), true)
	case iec.SizeDoubleWord:
		return w.mem.WriteDWord(kind, index, uint32(value), true)
	case iec.SizeLongWord:
		return w.mem.WriteLWord(kind, index, value, true)
	default:
		return plcmem.StatusWrongKind
	}
}

func (w *Worker) loadElement(kind iec.BufferKind, index int, size iec.Size) (uint64, plcmem.Status) {
	switch size {
	case iec.SizeByte:
		v, st := w.mem.ReadByte(kind, index, true)
		return uint64(v), st
	case iec.SizeWord:
		v, st := w.mem.ReadWord(kind, index, true)
		return uint64(v), st
	case iec.SizeDoubleWord:
		v, st := w.mem.ReadDWord(kind, index, true)
		return uint64(v), st
	case iec.SizeLongWord:
		return w.mem.ReadLWord(kind, index, true)
	default:
		return 0, plcmem.StatusWrongKind
	}
}

// gatherWrites snapshots every due write point's source values under a
// single lock acquisition. The network sends happen after the lock is
// released.
func (w *Worker) gatherWrites(writes []boundPoint) []stagedRead {
	if !w.mem.TryAcquire() {
		w.stat.IncErrors()
		w.log.Error("buffer lock unavailable, write batch dropped")
		return nil
	}
	defer w.mem.Release()

	out := make([]stagedRead, 0, len(writes))
	for _, p := range writes {
		if p.desc.IsBoolean {
			bits := make([]bool, p.length)
			ok := true
			for i := range bits {
				bit := p.desc.BitIndex + i
				v, st := w.mem.ReadBit(p.desc.Kind, p.desc.Index+bit/8, bit%8, true)
				if st != plcmem.StatusOK {
					w.stat.IncErrors()
					w.log.Error("%s[%d].%d: %s", p.desc.Kind, p.desc.Index+bit/8, bit%8, st)
					ok = false
					break
				}
				bits[i] = v
			}
			if ok {
				out = append(out, stagedRead{point: p, bits: bits})
			}
			continue
		}

		regs := make([]uint16, 0, p.length*iec.RegistersForSize(p.loc.Size))
		ok := true
		for i := 0; i < p.length; i++ {
			value, st := w.loadElement(p.desc.Kind, p.desc.Index+i, p.loc.Size)
			if st != plcmem.StatusOK {
				w.stat.IncErrors()
				w.log.Error("%s[%d]: %s", p.desc.Kind, p.desc.Index+i, st)
				ok = false
				break
			}
			enc, err := iec.EncodeRegisters(value, p.loc.Size, w.bigEndian)
			if err != nil {
				w.stat.IncErrors()
				w.log.Error("encode %s: %v", p.loc, err)
				ok = false
				break
			}
			regs = append(regs, enc...)
		}
		if ok {
			out = append(out, stagedRead{point: p, regs: regs})
		}
	}
	return out
}

// writePoint performs one write transaction from values gathered earlier.
func (w *Worker) writePoint(sr stagedRead) error {
	client := w.conn.client
	p := sr.point
	switch p.fc {
	case transport.FcWriteSingleCoil:
		return client.WriteSingleCoil(p.address, sr.bits[0])
	case transport.FcWriteSingleRegister:
		return client.WriteSingleRegister(p.address, sr.regs[0])
	case transport.FcWriteMultipleCoils:
		return client.WriteMultipleCoils(p.address, sr.bits)
	case transport.FcWriteMultipleRegisters:
		return client.WriteMultipleRegisters(p.address, sr.regs)
	default:
		return fmt.Errorf("function code %s is not a write", p.fc)
	}
}
