package ui

import (
	"sync"
	"sync/atomic"

	"instancesearch/internal/domain"
	"instancesearch/internal/store"
)

// Activity counts lookups that have been requested but not yet answered.
// RequestInstances changes no state, so the count is kept beside the store.
type Activity struct {
	pending atomic.Int64

	mu       sync.RWMutex
	onChange func()
}

// NewActivity creates an idle activity counter
func NewActivity() *Activity {
	return &Activity{}
}

// Pending returns the number of lookups in flight
func (a *Activity) Pending() int {
	return int(a.pending.Load())
}

// OnChange sets the function called whenever the count changes
func (a *Activity) OnChange(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onChange = fn
}

// Middleware observes lookup lifecycle actions and forwards everything unchanged
func (a *Activity) Middleware() store.Middleware {
	return func(_ store.API, next store.DispatchFunc) store.DispatchFunc {
		return func(v any) any {
			switch v.(type) {
			case domain.RequestInstancesAction:
				a.pending.Add(1)
				a.changed()
			case domain.ReceiveInstancesAction, domain.FetchFailedAction:
				if a.pending.Add(-1) < 0 {
					a.pending.Store(0)
				}
				a.changed()
			}
			return next(v)
		}
	}
}

func (a *Activity) changed() {
	a.mu.RLock()
	fn := a.onChange
	a.mu.RUnlock()
	if fn != nil {
		fn()
	}
}
