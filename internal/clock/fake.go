package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock. Callbacks run on the goroutine that
// calls Advance, in due-time order (ties in scheduling order).
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending []*fakeTimer
}

type fakeTimer struct {
	f       *Fake
	due     time.Time
	seq     uint64
	fn      func()
	stopped bool
	fired   bool
}

// NewFake returns a Fake clock reading start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the current fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// AfterFunc schedules fn to run once the clock has been advanced by d.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	t := &fakeTimer{f: f, due: f.now.Add(d), seq: f.seq, fn: fn}
	f.pending = append(f.pending, t)
	return t
}

// Advance moves the clock forward by d, running every callback that
// falls due on the way. Now reads each callback's due time while it runs.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()
	for {
		t := f.next(target)
		if t == nil {
			break
		}
		t.fn()
	}
	f.mu.Lock()
	f.now = target
	f.mu.Unlock()
}

// Pending returns the number of scheduled callbacks that have neither run
// nor been stopped.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, t := range f.pending {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// next pops the earliest live timer due at or before target and moves the
// clock to its due time.
func (f *Fake) next(target time.Time) *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	live := f.pending[:0]
	for _, t := range f.pending {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	f.pending = live
	sort.Slice(f.pending, func(i, j int) bool {
		if f.pending[i].due.Equal(f.pending[j].due) {
			return f.pending[i].seq < f.pending[j].seq
		}
		return f.pending[i].due.Before(f.pending[j].due)
	})
	if len(f.pending) == 0 || f.pending[0].due.After(target) {
		return nil
	}
	t := f.pending[0]
	t.fired = true
	f.pending = f.pending[1:]
	if t.due.After(f.now) {
		f.now = t.due
	}
	return t
}

func (t *fakeTimer) Stop() bool {
	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
