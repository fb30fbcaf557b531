// Package metrics keeps per-device polling counters. Workers update their
// device's counters lock-free; the CLI and the status TUI read snapshots.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ConnState is the device connection state as last reported by its worker.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

// String returns a human-readable state name.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Device holds one device's counters.
type Device struct {
	name   string
	target string

	reads      atomic.Uint64
	writes     atomic.Uint64
	errors     atomic.Uint64
	reconnects atomic.Uint64
	state      atomic.Int32
	lastCycle  atomic.Int64 // nanoseconds
}

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// IncReads counts one successful Modbus read transaction.
func (d *Device) IncReads() { d.reads.Add(1) }

// IncWrites counts one successful Modbus write transaction.
func (d *Device) IncWrites() { d.writes.Add(1) }

// IncErrors counts one failed transaction or abandoned batch.
func (d *Device) IncErrors() { d.errors.Add(1) }

// IncReconnects counts one completed reconnection.
func (d *Device) IncReconnects() { d.reconnects.Add(1) }

// SetState records the connection state.
func (d *Device) SetState(s ConnState) { d.state.Store(int32(s)) }

// ObserveCycle records the duration of the last polling tick.
func (d *Device) ObserveCycle(dur time.Duration) { d.lastCycle.Store(int64(dur)) }

// Snapshot is a point-in-time copy of one device's counters.
type Snapshot struct {
	Name       string
	Target     string
	State      ConnState
	Reads      uint64
	Writes     uint64
	Errors     uint64
	Reconnects uint64
	LastCycle  time.Duration
}

// Registry tracks all devices of one master instance.
type Registry struct {
	mu      sync.Mutex
	devices map[string]*Device
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*Device)}
}

// Register adds a device and returns its counter handle. Registering the
// same name twice returns the existing handle.
func (r *Registry) Register(name, target string) *Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.devices[name]; ok {
		return d
	}
	d := &Device{name: name, target: target}
	r.devices[name] = d
	return d
}

// Snapshot returns a copy of every device's counters, sorted by name.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, Snapshot{
			Name:       d.name,
			Target:     d.target,
			State:      ConnState(d.state.Load()),
			Reads:      d.reads.Load(),
			Writes:     d.writes.Load(),
			Errors:     d.errors.Load(),
			Reconnects: d.reconnects.Load(),
			LastCycle:  time.Duration(d.lastCycle.Load()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
