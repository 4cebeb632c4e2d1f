// Package state holds the reducer that computes the next state from the
// current one and an action.
package state

import (
	"instancesearch/internal/domain"
)

// Reduce returns the state that results from applying action to s.
//
// Reduce never modifies s. An action it does not recognize returns s itself,
// so callers can detect a no-op by pointer comparison.
func Reduce(s *domain.State, action domain.Action) *domain.State {
	if s == nil {
		s = domain.EmptyState()
	}

	switch a := action.(type) {
	case domain.InitialStateAction:
		return merge(s, a.State)

	case domain.ChangeFilterAction:
		next := *s
		next.PartialNameFilter = a.NewFilter
		return &next

	case domain.ReplaceInstancesAction:
		next := *s
		next.Instances = domain.CopyInstances(a.Instances)
		next.Failure = nil
		return &next

	case domain.RequestInstancesAction, domain.ReceiveInstancesAction:
		// Advisory only: the search producer follows a successful receive
		// with ReplaceInstances, which is what changes the list.
		return s

	case domain.FetchFailedAction:
		if a.Superseded {
			return s
		}
		next := *s
		next.Failure = &domain.FetchFailure{Filter: a.Filter, Message: a.Message}
		return &next
	}

	return s
}

// merge overwrites only the fields present in p
func merge(s *domain.State, p domain.Partial) *domain.State {
	next := *s
	if p.Instances != nil {
		next.Instances = domain.CopyInstances(*p.Instances)
	}
	if p.PartialNameFilter != nil {
		next.PartialNameFilter = *p.PartialNameFilter
	}
	return &next
}
