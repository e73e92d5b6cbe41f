package debounce

import (
	"sync"
	"time"
)

// Dispatch hands a fired action over to the goroutine that should run it.
type Dispatch func(func())

type pending struct {
	timer *time.Timer
	gen   uint64
}

// Scheduler keeps at most one pending action per category. Scheduling a new
// action cancels the previous one of the same category.
type Scheduler struct {
	mx       sync.Mutex
	dispatch Dispatch
	pending  map[string]*pending
	gen      uint64
	stopped  bool
}

// NewScheduler creates a scheduler. A nil dispatch runs actions on the timer
// goroutine.
func NewScheduler(dispatch Dispatch) *Scheduler {
	if dispatch == nil {
		dispatch = func(fn func()) { fn() }
	}
	return &Scheduler{
		dispatch: dispatch,
		pending:  make(map[string]*pending),
	}
}

func (s *Scheduler) Schedule(category string, delay time.Duration, action func()) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if s.stopped {
		return
	}
	if p, ok := s.pending[category]; ok {
		p.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.pending[category] = &pending{
		gen: gen,
		timer: time.AfterFunc(delay, func() {
			s.dispatch(func() {
				if s.claim(category, gen) {
					action()
				}
			})
		}),
	}
}

// claim removes the pending entry if it still belongs to gen. A timer that
// fired just before being superseded loses here.
func (s *Scheduler) claim(category string, gen uint64) bool {
	s.mx.Lock()
	defer s.mx.Unlock()

	p, ok := s.pending[category]
	if !ok || p.gen != gen {
		return false
	}
	delete(s.pending, category)
	return true
}

func (s *Scheduler) Cancel(category string) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if p, ok := s.pending[category]; ok {
		p.timer.Stop()
		delete(s.pending, category)
	}
}

// Pending reports whether an action is armed for the category.
func (s *Scheduler) Pending(category string) bool {
	s.mx.Lock()
	defer s.mx.Unlock()

	_, ok := s.pending[category]
	return ok
}

// Stop cancels everything and rejects further scheduling.
func (s *Scheduler) Stop() {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.stopped = true
	for category, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, category)
	}
}
