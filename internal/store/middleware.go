package store

import (
	"go.uber.org/zap"

	"instancesearch/internal/domain"
)

// DispatchFunc accepts an action or a Thunk and returns the dispatch result
type DispatchFunc func(v any) any

// GetStateFunc returns the current state
type GetStateFunc func() *domain.State

// API is the part of the store visible to middleware
type API interface {
	Dispatch(v any) any
	GetState() *domain.State
}

// Middleware wraps the next stage of the pipeline.
// api.Dispatch re-enters the pipeline from the first stage.
type Middleware func(api API, next DispatchFunc) DispatchFunc

// Thunk is an asynchronous action producer. It is dispatched in place of a
// plain action and may dispatch further actions, now or later.
type Thunk func(dispatch DispatchFunc, getState GetStateFunc) any

// ThunkMiddleware invokes dispatched thunks instead of forwarding them
func ThunkMiddleware() Middleware {
	return func(api API, next DispatchFunc) DispatchFunc {
		return func(v any) any {
			switch thunk := v.(type) {
			case Thunk:
				return thunk(api.Dispatch, api.GetState)
			case func(DispatchFunc, GetStateFunc) any:
				return thunk(api.Dispatch, api.GetState)
			}
			return next(v)
		}
	}
}

// LoggerMiddleware logs every plain action with the state before and after it
func LoggerMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(api API, next DispatchFunc) DispatchFunc {
		return func(v any) any {
			action, ok := v.(domain.Action)
			if !ok {
				return next(v)
			}

			prev := api.GetState()
			result := next(v)
			curr := api.GetState()

			fields := []zap.Field{
				zap.String("action", string(action.Type())),
				zap.String("prev_filter", prev.PartialNameFilter),
				zap.Int("prev_instances", len(prev.Instances)),
				zap.String("next_filter", curr.PartialNameFilter),
				zap.Int("next_instances", len(curr.Instances)),
				zap.Bool("changed", prev != curr),
			}
			if failed, ok := action.(domain.FetchFailedAction); ok && !failed.Superseded {
				logger.Warn("Lookup failed",
					append(fields, zap.String("filter", failed.Filter), zap.String("error", failed.Message))...)
			} else {
				logger.Debug("Dispatched", fields...)
			}
			return result
		}
	}
}
