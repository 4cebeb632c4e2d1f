// Package store holds the single current state and serializes every change
// to it through a middleware pipeline and a reducer.
package store

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"instancesearch/internal/domain"
)

// Reducer computes the next state from the current state and an action
type Reducer func(s *domain.State, action domain.Action) *domain.State

// Listener is notified after every state change. It re-reads state through GetState.
type Listener func()

// Option configures a Store
type Option func(*Store)

// WithMiddleware appends middleware stages. Stages run in the order given.
func WithMiddleware(mw ...Middleware) Option {
	return func(s *Store) {
		s.middleware = append(s.middleware, mw...)
	}
}

// WithLogger sets the logger used for store diagnostics
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store owns the current state
type Store struct {
	reducer    Reducer
	middleware []Middleware
	logger     *zap.Logger
	dispatch   DispatchFunc

	state    atomic.Pointer[domain.State]
	reduceMu sync.Mutex

	mu        sync.RWMutex
	listeners map[uint64]Listener
	order     []uint64
	nextID    uint64
}

// New creates a store holding initial and builds its pipeline
func New(reducer Reducer, initial *domain.State, opts ...Option) *Store {
	if initial == nil {
		initial = domain.EmptyState()
	}
	s := &Store{
		reducer:   reducer,
		logger:    zap.NewNop(),
		listeners: make(map[uint64]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Store(initial)

	// Build the chain back to front so the first middleware runs first
	dispatch := s.reduce
	for i := len(s.middleware) - 1; i >= 0; i-- {
		dispatch = s.middleware[i](s, dispatch)
	}
	s.dispatch = dispatch

	return s
}

// Dispatch sends v through the pipeline.
// Plain actions end at the reducer; thunks return whatever they return.
func (s *Store) Dispatch(v any) any {
	return s.dispatch(v)
}

// GetState returns the current state. Callers must not modify it.
func (s *Store) GetState() *domain.State {
	return s.state.Load()
}

// Subscribe registers a listener and returns a function that removes it
func (s *Store) Subscribe(listener Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			delete(s.listeners, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

// reduce is the last stage of the pipeline
func (s *Store) reduce(v any) any {
	action, ok := v.(domain.Action)
	if !ok {
		s.logger.Warn("Ignoring dispatched value that is not an action", zap.Any("value", v))
		return v
	}

	s.reduceMu.Lock()
	prev := s.state.Load()
	next := s.reducer(prev, action)
	if next == nil {
		next = prev
	}
	s.state.Store(next)
	s.reduceMu.Unlock()

	if next != prev {
		s.notify(action.Type())
	}
	return action
}

// notify calls every listener in subscription order
func (s *Store) notify(actionType domain.ActionType) {
	// Make a copy to avoid holding the lock while listeners run
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.order))
	for _, id := range s.order {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("Listener panic",
						zap.String("action", string(actionType)),
						zap.Any("panic", r),
						zap.ByteString("stack", debug.Stack()))
				}
			}()
			l()
		}()
	}
}
