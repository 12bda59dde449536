package ownership

import (
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ReleaseFunc gives one reference on ref back to its owner.
type ReleaseFunc func(ref uint64)

// Owned is a foreign reference the holder is responsible for releasing.
// Release may be called any number of times; the reference is released once.
// An Owned that becomes unreachable before Release is released by the
// garbage collector.
type Owned struct {
	state   *state
	cleanup runtime.Cleanup
}

// state is kept apart from Owned so the cleanup does not keep Owned alive.
type state struct {
	release  ReleaseFunc
	tracker  *Tracker
	ref      uint64
	once     sync.Once
	released atomic.Bool
}

func (s *state) run(collected bool) {
	s.once.Do(func() {
		s.released.Store(true)
		s.release(s.ref)
		s.tracker.released.Add(1)
		if collected {
			s.tracker.collected.Add(1)
			Logger().Debug("handle released by collector", zap.Uint64("ref", s.ref))
		}
	})
}

// Ref returns the foreign reference, 0 for a nil handle.
func (o *Owned) Ref() uint64 {
	if o == nil {
		return 0
	}
	return o.state.ref
}

// Released reports whether the reference has been given back.
func (o *Owned) Released() bool {
	if o == nil {
		return true
	}
	return o.state.released.Load()
}

// Release gives the reference back and cancels the collector fallback.
func (o *Owned) Release() {
	if o == nil {
		return
	}
	o.cleanup.Stop()
	o.state.run(false)
}

// Stats is a snapshot of tracker counters.
type Stats struct {
	Created   int64
	Released  int64
	Collected int64
}

// Live returns the number of handles not yet released.
func (s Stats) Live() int64 {
	return s.Created - s.Released
}

// Tracker wraps references in Owned handles and counts them. Safe for
// concurrent use.
type Tracker struct {
	created   atomic.Int64
	released  atomic.Int64
	collected atomic.Int64
}

// NewTracker creates a tracker with zeroed counters.
func NewTracker() *Tracker {
	return &Tracker{}
}

// AutoRelease takes ownership of ref. It returns nil when ref is 0, since a
// null reference carries no obligation.
func (t *Tracker) AutoRelease(ref uint64, release ReleaseFunc) *Owned {
	if ref == 0 {
		return nil
	}
	s := &state{ref: ref, release: release, tracker: t}
	o := &Owned{state: s}
	o.cleanup = runtime.AddCleanup(o, func(s *state) { s.run(true) }, s)
	t.created.Add(1)
	return o
}

// Stats returns the current counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		Created:   t.created.Load(),
		Released:  t.released.Load(),
		Collected: t.collected.Load(),
	}
}

var defaultTracker = NewTracker()

// Default returns the process-wide tracker.
func Default() *Tracker {
	return defaultTracker
}

// AutoRelease takes ownership of ref using the process-wide tracker.
func AutoRelease(ref uint64, release ReleaseFunc) *Owned {
	return defaultTracker.AutoRelease(ref, release)
}

// DefaultStats returns the process-wide tracker counters.
func DefaultStats() Stats {
	return defaultTracker.Stats()
}
