// internal/status/scheduler.go
package status

import (
	"sync"
	"time"
)

// Renderer shows one colour on the physical indicator.
type Renderer interface {
	Show(c Color)
}

// Scheduler owns the indicator.
// Set changes the logical state; Tick only re-renders within it,
// except for states whose rule expires them back to Ready.
type Scheduler struct {
	mu sync.Mutex

	r     Renderer
	clock func() time.Time

	state     State
	animating bool
	since     time.Time

	shown    Color
	rendered bool
}

// New starts the scheduler in Off (static).
// A nil clock means time.Now.
func New(r Renderer, clock func() time.Time) *Scheduler {
	if clock == nil {
		clock = time.Now
	}
	s := &Scheduler{r: r, clock: clock}
	s.setAt(Off, false, clock())
	return s
}

// Set switches the logical state and restarts its animation base.
// With animate=false the resting colour is shown and never changes.
func (s *Scheduler) Set(state State, animate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setAt(state, animate, s.clock())
}

// Tick re-renders from now - since. Calling it twice with the same now is a no-op.
func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.animating {
		return
	}
	if int(s.state) >= len(rules) {
		s.animating = false
		return
	}

	r := rules[s.state]

	elapsed := now.Sub(s.since)
	if elapsed < 0 {
		elapsed = 0
	}

	// Expiry must only ever fall back to Ready.
	if r.expireAfter > 0 && elapsed > r.expireAfter && r.expireTo == Ready {
		s.setAt(Ready, false, now)
		return
	}

	if r.animate == nil {
		if r.freezeAfter > 0 && elapsed > r.freezeAfter {
			s.animating = false
		}
		return
	}

	s.render(r.animate(elapsed))
}

// Snapshot returns the current logical and rendered state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:     s.state,
		Animating: s.animating,
		Color:     s.shown,
		Since:     s.since,
	}
}

// State is a shortcut for Snapshot().State.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setAt(state State, animate bool, at time.Time) {
	s.state = state
	s.animating = animate
	s.since = at

	rest := Black
	if int(state) < len(rules) {
		rest = rules[state].rest
	}
	s.render(rest)
}

func (s *Scheduler) render(c Color) {
	if s.rendered && c == s.shown {
		return
	}
	s.shown = c
	s.rendered = true
	if s.r != nil {
		s.r.Show(c)
	}
}
