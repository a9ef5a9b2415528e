package checkout

import (
	"sync"
	"time"
)

// AnimationState is the state of the full-screen processing affordance.
type AnimationState string

const (
	AnimationIdle      AnimationState = "idle"
	AnimationPlaying   AnimationState = "playing"
	AnimationFinished  AnimationState = "finished"
	AnimationNavigated AnimationState = "navigated"
	AnimationCancelled AnimationState = "cancelled"
)

// Animation is a finite-state timer: it plays while checkout runs and navigates to the
// confirmation exactly once, after completion and after a minimum display time.
// Reset returns it to idle on failure; Cancel stops it without navigating.
type Animation struct {
	minDisplay time.Duration
	navigate   func(orderID string)
	now        func() time.Time

	mu        sync.Mutex
	state     AnimationState
	startedAt time.Time
	orderID   string
	timer     *time.Timer
}

func NewAnimation(minDisplay time.Duration, navigate func(orderID string)) *Animation {
	return &Animation{minDisplay: minDisplay, navigate: navigate, now: time.Now, state: AnimationIdle}
}

func (a *Animation) State() AnimationState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// OrderID is set once Complete was called.
func (a *Animation) OrderID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.orderID
}

// Begin starts playing. Only an idle animation can begin.
func (a *Animation) Begin() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != AnimationIdle {
		return false
	}
	a.state = AnimationPlaying
	a.startedAt = a.now()
	a.orderID = ""
	return true
}

// Complete schedules navigation once the minimum display time has elapsed.
func (a *Animation) Complete(orderID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != AnimationPlaying {
		return false
	}
	a.state = AnimationFinished
	a.orderID = orderID
	wait := a.minDisplay - a.now().Sub(a.startedAt)
	if wait < 0 {
		wait = 0
	}
	a.timer = time.AfterFunc(wait, a.fire)
	return true
}

func (a *Animation) fire() {
	a.mu.Lock()
	if a.state != AnimationFinished {
		a.mu.Unlock()
		return
	}
	a.state = AnimationNavigated
	a.timer = nil
	orderID := a.orderID
	a.mu.Unlock()
	if a.navigate != nil {
		a.navigate(orderID)
	}
}

// Reset drops back to idle so the user is never stuck behind the affordance.
func (a *Animation) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
	if a.state != AnimationNavigated {
		a.state = AnimationIdle
		a.orderID = ""
	}
}

// Cancel stops all timers without navigating. A cancelled animation stays cancelled.
func (a *Animation) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
	if a.state != AnimationNavigated {
		a.state = AnimationCancelled
	}
}

func (a *Animation) stopLocked() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
