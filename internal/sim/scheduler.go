package sim

import (
	"container/heap"
	"errors"
	"sync"
	"time"

	"bftledger/internal/metrics"
)

var ErrEventBudgetExhausted = errors.New("event budget exhausted")

type event struct {
	at  time.Duration
	seq uint64
	fn  func()
}

type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(*event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return ev
}

// Scheduler is a virtual clock. Events run in (time, insertion) order and
// only from Step/Run, never from inside AfterFunc.
type Scheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    uint64
	events eventHeap
}

func NewScheduler() *Scheduler {
	s := &Scheduler{events: make(eventHeap, 0)}
	heap.Init(&s.events)
	return s
}

func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *Scheduler) AfterFunc(d time.Duration, fn func()) {
	if d < 0 {
		d = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	heap.Push(&s.events, &event{at: s.now + d, seq: s.seq, fn: fn})
}

// Step runs the earliest event. It returns false when nothing is queued.
func (s *Scheduler) Step() bool {
	s.mu.Lock()
	if len(s.events) == 0 {
		s.mu.Unlock()
		return false
	}
	ev := heap.Pop(&s.events).(*event)
	s.now = ev.at
	now := s.now
	s.mu.Unlock()

	metrics.SimEventsTotal.Inc()
	metrics.SimVirtualTime.Set(now.Seconds())

	ev.fn()
	return true
}

// Run drains the queue. maxEvents <= 0 means no limit.
func (s *Scheduler) Run(maxEvents int) (int, error) {
	executed := 0
	for {
		if maxEvents > 0 && executed >= maxEvents {
			if s.Pending() > 0 {
				return executed, ErrEventBudgetExhausted
			}
			return executed, nil
		}
		if !s.Step() {
			return executed, nil
		}
		executed++
	}
}
