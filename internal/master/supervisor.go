package master

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edgeplc/modmaster/internal/config"
	"github.com/edgeplc/modmaster/internal/logging"
	"github.com/edgeplc/modmaster/internal/metrics"
	"github.com/edgeplc/modmaster/internal/plcmem"
)

// Supervisor starts one worker goroutine per device and joins them on
// shutdown. A device whose point table fails to bind is logged and skipped;
// the rest of the fleet still runs.
type Supervisor struct {
	log *logging.Logger
	mem plcmem.Access
	reg *metrics.Registry

	mu      sync.Mutex
	cancel  context.CancelFunc
	workers []*Worker
	done    map[string]chan struct{}
}

// NewSupervisor wires the shared buffer set and metrics registry the
// workers will use.
func NewSupervisor(mem plcmem.Access, reg *metrics.Registry, log *logging.Logger) *Supervisor {
	return &Supervisor{
		log:  log,
		mem:  mem,
		reg:  reg,
		done: make(map[string]chan struct{}),
	}
}

// Start launches a worker per device and returns how many started. It fails
// only when no device could be started at all.
func (s *Supervisor) Start(ctx context.Context, devices []config.Device) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return 0, fmt.Errorf("supervisor already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	started := 0
	for _, dev := range devices {
		w, err := NewWorker(dev, s.mem, s.log, s.reg)
		if err != nil {
			s.log.Error("%s: not started: %v", dev.Name, err)
			continue
		}
		done := make(chan struct{})
		s.workers = append(s.workers, w)
		s.done[dev.Name] = done
		go func() {
			defer close(done)
			w.Run(runCtx)
		}()
		started++
	}

	if started == 0 && len(devices) > 0 {
		cancel()
		s.cancel = nil
		return 0, fmt.Errorf("no device could be started")
	}
	s.log.Info("started %d of %d device workers", started, len(devices))
	return started, nil
}

// Stop cancels all workers and waits up to perWorker for each to exit. A
// worker stuck past its deadline is logged and abandoned.
func (s *Supervisor) Stop(perWorker time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil

	for _, w := range s.workers {
		done := s.done[w.name]
		select {
		case <-done:
		case <-time.After(perWorker):
			s.log.Error("%s: did not stop within %v", w.name, perWorker)
		}
	}
	s.workers = nil
	s.done = make(map[string]chan struct{})
}

// Running reports whether any worker goroutine is still alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.workers {
		select {
		case <-s.done[w.name]:
		default:
			return true
		}
	}
	return false
}
