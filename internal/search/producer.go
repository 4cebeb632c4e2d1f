// Package search builds the asynchronous producers that populate the
// instance list from the lookup service.
package search

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"instancesearch/internal/domain"
	"instancesearch/internal/store"
)

// Searcher performs one instance lookup
type Searcher interface {
	Search(ctx context.Context, filter string) ([]domain.Instance, error)
}

// SearcherFunc adapts a function to Searcher
type SearcherFunc func(ctx context.Context, filter string) ([]domain.Instance, error)

// Search calls f
func (f SearcherFunc) Search(ctx context.Context, filter string) ([]domain.Instance, error) {
	return f(ctx, filter)
}

// Sequencer numbers lookups so that a slow, older response can be told apart
// from the latest one
type Sequencer struct {
	latest atomic.Uint64
}

// Next reserves the next sequence number
func (s *Sequencer) Next() uint64 {
	return s.latest.Add(1)
}

// IsLatest reports whether seq is the most recently reserved number
func (s *Sequencer) IsLatest(seq uint64) bool {
	return s.latest.Load() == seq
}

// Option configures a producer
type Option func(*options)

type options struct {
	sequencer *Sequencer
	logger    *zap.Logger
}

// WithSequencer drops the outcome of any lookup that completes after a newer
// one was started: a stale result does not replace the list and a stale
// failure is dispatched as superseded. Without it the last completion wins.
func WithSequencer(seq *Sequencer) Option {
	return func(o *options) {
		o.sequencer = seq
	}
}

// WithLogger sets the producer logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ByFilter returns a thunk that looks up filter and feeds the result to the store.
//
// In order it dispatches RequestInstances, performs exactly one lookup, and
// then dispatches ReceiveInstances followed by ReplaceInstances, or
// FetchFailed if the lookup returned an error. The thunk returns a *store.Task
// whose error is the lookup error.
func ByFilter(ctx context.Context, searcher Searcher, filter string, opts ...Option) store.Thunk {
	o := buildOptions(opts)

	return func(dispatch store.DispatchFunc, _ store.GetStateFunc) any {
		var seq uint64
		if o.sequencer != nil {
			seq = o.sequencer.Next()
		}

		stale := func() bool {
			return o.sequencer != nil && !o.sequencer.IsLatest(seq)
		}

		dispatch(domain.NewRequestInstances(filter))

		return store.Go(func() error {
			instances, err := searcher.Search(ctx, filter)
			if err != nil {
				if stale() {
					o.logger.Debug("Discarding stale search failure",
						zap.String("filter", filter),
						zap.Uint64("seq", seq),
						zap.Error(err))
					dispatch(domain.NewSupersededFetchFailed(filter, err))
					return err
				}
				o.logger.Warn("Search failed", zap.String("filter", filter), zap.Error(err))
				dispatch(domain.NewFetchFailed(filter, err))
				return err
			}

			dispatch(domain.NewReceiveInstances(filter, instances))

			if stale() {
				o.logger.Debug("Discarding stale search result",
					zap.String("filter", filter),
					zap.Uint64("seq", seq))
				return nil
			}
			dispatch(domain.NewReplaceInstances(instances))
			return nil
		})
	}
}

// Bootstrap seeds the store with the default state and starts the initial
// search for the empty filter
func Bootstrap(ctx context.Context, dispatch store.DispatchFunc, searcher Searcher, opts ...Option) *store.Task {
	dispatch(domain.NewInitialState(domain.DefaultPartial()))

	task, ok := dispatch(ByFilter(ctx, searcher, "", opts...)).(*store.Task)
	if !ok {
		// No thunk stage in the pipeline
		return store.Completed(nil)
	}
	return task
}
