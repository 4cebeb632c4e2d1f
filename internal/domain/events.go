package domain

import "time"

// ActionType tags an action
type ActionType string

// Action types
const (
	ActionInitialState     ActionType = "InitialState"
	ActionChangeFilter     ActionType = "ChangeFilter"
	ActionReplaceInstances ActionType = "ReplaceInstances"
	ActionRequestInstances ActionType = "RequestInstances"
	ActionReceiveInstances ActionType = "ReceiveInstances"
	ActionFetchFailed      ActionType = "FetchFailed"
)

// Action is the interface for all actions that can be dispatched
type Action interface {
	Type() ActionType
}

// InitialStateAction merges the present fields of State into the current state
type InitialStateAction struct {
	State Partial
}

func (a InitialStateAction) Type() ActionType { return ActionInitialState }

// ChangeFilterAction replaces the search text
type ChangeFilterAction struct {
	NewFilter string
}

func (a ChangeFilterAction) Type() ActionType { return ActionChangeFilter }

// ReplaceInstancesAction replaces the instance list wholesale.
// It is the terminal event of a completed fetch.
type ReplaceInstancesAction struct {
	Instances []Instance
}

func (a ReplaceInstancesAction) Type() ActionType { return ActionReplaceInstances }

// RequestInstancesAction marks that a lookup for Filter has begun
type RequestInstancesAction struct {
	Filter string
}

func (a RequestInstancesAction) Type() ActionType { return ActionRequestInstances }

// ReceiveInstancesAction carries the outcome of a completed lookup
type ReceiveInstancesAction struct {
	Filter     string
	Instances  []Instance
	ReceivedAt time.Time
}

func (a ReceiveInstancesAction) Type() ActionType { return ActionReceiveInstances }

// FetchFailedAction is emitted when a lookup for Filter did not complete.
// Superseded marks a failure of a lookup that a newer one already replaced;
// it settles the request without being shown.
type FetchFailedAction struct {
	Filter     string
	Message    string
	Superseded bool
}

func (a FetchFailedAction) Type() ActionType { return ActionFetchFailed }

// NewInitialState creates an InitialState action
func NewInitialState(state Partial) InitialStateAction {
	if state.Instances != nil {
		state = state.WithInstances(*state.Instances)
	}
	return InitialStateAction{State: state}
}

// NewChangeFilter creates a ChangeFilter action
func NewChangeFilter(filter string) ChangeFilterAction {
	return ChangeFilterAction{NewFilter: filter}
}

// NewReplaceInstances creates a ReplaceInstances action
func NewReplaceInstances(instances []Instance) ReplaceInstancesAction {
	return ReplaceInstancesAction{Instances: CopyInstances(instances)}
}

// NewRequestInstances creates a RequestInstances action
func NewRequestInstances(filter string) RequestInstancesAction {
	return RequestInstancesAction{Filter: filter}
}

// NewReceiveInstances creates a ReceiveInstances action stamped with the current time
func NewReceiveInstances(filter string, instances []Instance) ReceiveInstancesAction {
	return ReceiveInstancesAction{
		Filter:     filter,
		Instances:  CopyInstances(instances),
		ReceivedAt: time.Now(),
	}
}

// NewFetchFailed creates a FetchFailed action from a lookup error
func NewFetchFailed(filter string, err error) FetchFailedAction {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return FetchFailedAction{Filter: filter, Message: msg}
}

// NewSupersededFetchFailed creates a FetchFailed action for a lookup that is
// no longer the latest one
func NewSupersededFetchFailed(filter string, err error) FetchFailedAction {
	a := NewFetchFailed(filter, err)
	a.Superseded = true
	return a
}
