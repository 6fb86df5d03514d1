package pagination

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SentinelState is the scroll sentinel's state.
type SentinelState int

const (
	// SentinelIdle: not observing, fetching, or nothing left to fetch.
	SentinelIdle SentinelState = iota
	// SentinelArmed: observing the last item, next visibility fires a fetch.
	SentinelArmed
	// SentinelFiring: a next-page fetch is in flight.
	SentinelFiring
	// SentinelClosed: torn down, terminal.
	SentinelClosed
)

// String implements fmt.Stringer.
func (s SentinelState) String() string {
	switch s {
	case SentinelIdle:
		return "idle"
	case SentinelArmed:
		return "armed"
	case SentinelFiring:
		return "firing"
	case SentinelClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Sentinel triggers next-page fetches when the last rendered item becomes
// visible. It carries no view machinery: callers report the last item with
// Observe and visibility with Visible.
type Sentinel struct {
	ready  func() bool
	fire   func(ctx context.Context)
	logger zerolog.Logger
	name   string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	state    SentinelState
	observed ID
	attached bool
}

// NewSentinel creates an idle sentinel. ready reports whether a next page may
// be requested (nothing in flight and more pages exist); fire performs the
// fetch and runs on its own goroutine.
func NewSentinel(name string, ready func() bool, fire func(ctx context.Context)) *Sentinel {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sentinel{
		ready:  ready,
		fire:   fire,
		name:   name,
		logger: log.With().Str("component", "scroll-sentinel").Str("list", name).Logger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// State returns the current state.
func (s *Sentinel) State() SentinelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Observe detaches from the previous last item and attaches to lastID.
// An empty lastID only detaches. While a fetch is firing the new target is
// recorded and armed once the fetch completes.
func (s *Sentinel) Observe(lastID ID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SentinelClosed {
		return
	}

	s.observed = lastID
	s.attached = lastID != ""
	if s.state == SentinelFiring {
		return
	}
	s.rearmLocked()
}

// Detach drops the current observation. Detaching twice is harmless.
func (s *Sentinel) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SentinelClosed {
		return
	}
	s.observed = ""
	s.attached = false
	if s.state == SentinelArmed {
		s.state = SentinelIdle
	}
}

// Visible reports that the item id entered the viewport. It fires exactly
// one fetch when armed on that item and returns whether it did.
func (s *Sentinel) Visible(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SentinelArmed || !s.attached || id != s.observed {
		return false
	}
	if !s.ready() {
		s.state = SentinelIdle
		return false
	}

	s.state = SentinelFiring
	sentinelFiresTotal.WithLabelValues(s.name).Inc()
	s.logger.Debug().Str("item_id", string(id)).Msg("Last item visible, fetching next page")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fire(s.ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == SentinelFiring {
			s.state = SentinelIdle
			s.rearmLocked()
		}
	}()
	return true
}

func (s *Sentinel) rearmLocked() {
	if s.attached && s.ready() {
		s.state = SentinelArmed
		return
	}
	s.state = SentinelIdle
}

// Wait blocks until a firing fetch has completed.
func (s *Sentinel) Wait() {
	s.wg.Wait()
}

// Close tears the sentinel down: the in-flight fetch's context is cancelled
// and awaited, and no transition happens afterwards. Close is idempotent.
func (s *Sentinel) Close() {
	s.mu.Lock()
	if s.state == SentinelClosed {
		s.mu.Unlock()
		return
	}
	s.state = SentinelClosed
	s.attached = false
	s.observed = ""
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Debug().Msg("Sentinel closed")
}
