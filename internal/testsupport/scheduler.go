package testsupport

import (
	"sort"
	"time"

	"sbustui/internal/replay"
)

// ManualScheduler records scheduled callbacks and runs them only when the
// test asks, on the calling goroutine.
type ManualScheduler struct {
	now     time.Duration
	pending []*manualTimer
	seq     int
}

type manualTimer struct {
	due     time.Duration
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func NewManualScheduler() *ManualScheduler { return &ManualScheduler{} }

func (s *ManualScheduler) AfterFunc(d time.Duration, fn func()) replay.Timer {
	s.seq++
	t := &manualTimer{due: s.now + d, seq: s.seq, fn: fn}
	s.pending = append(s.pending, t)
	return t
}

// Pending reports how many live callbacks are waiting.
func (s *ManualScheduler) Pending() int {
	n := 0
	for _, t := range s.pending {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Now returns the simulated clock.
func (s *ManualScheduler) Now() time.Duration { return s.now }

// Next fires the earliest live callback and advances the clock to it.
// It returns false when nothing is pending.
func (s *ManualScheduler) Next() bool {
	live := s.pending[:0]
	for _, t := range s.pending {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	s.pending = live
	if len(live) == 0 {
		return false
	}
	sort.SliceStable(live, func(i, j int) bool {
		if live[i].due != live[j].due {
			return live[i].due < live[j].due
		}
		return live[i].seq < live[j].seq
	})
	t := live[0]
	t.fired = true
	if t.due > s.now {
		s.now = t.due
	}
	t.fn()
	return true
}

// Drain fires callbacks until none remain or limit is reached and returns
// how many ran.
func (s *ManualScheduler) Drain(limit int) int {
	n := 0
	for n < limit && s.Next() {
		n++
	}
	return n
}
