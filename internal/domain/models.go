package domain

// Instance is a titled catalog record
type Instance struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

// FetchFailure records the last lookup that did not complete
type FetchFailure struct {
	Filter  string
	Message string
}

// State is the single value held by the store.
//
// A State is never modified after it has been handed to the store. Every
// transition builds a new State and shares the untouched fields with the old one.
type State struct {
	Instances         []Instance // server/response order, not deduplicated
	PartialNameFilter string     // current search text, "" matches everything
	Failure           *FetchFailure
}

// EmptyState returns the state the store starts from before bootstrapping
func EmptyState() *State {
	return &State{Instances: []Instance{}}
}

// Partial names a subset of State fields to merge
type Partial struct {
	Instances         *[]Instance
	PartialNameFilter *string
}

// DefaultPartial is the bootstrap payload: no instances and an empty filter
func DefaultPartial() Partial {
	return Partial{}.WithInstances([]Instance{}).WithFilter("")
}

// WithInstances returns a copy of p that sets instances
func (p Partial) WithInstances(instances []Instance) Partial {
	cp := CopyInstances(instances)
	p.Instances = &cp
	return p
}

// WithFilter returns a copy of p that sets the filter
func (p Partial) WithFilter(filter string) Partial {
	p.PartialNameFilter = &filter
	return p
}

// CopyInstances returns a non-nil copy of instances
func CopyInstances(instances []Instance) []Instance {
	out := make([]Instance, len(instances))
	copy(out, instances)
	return out
}
