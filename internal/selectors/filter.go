package selectors

import (
	"fmt"
	"strings"
	"sync"

	"instancesearch/internal/domain"
)

// Policy decides where filtering happens
type Policy string

const (
	// PolicyClient filters the held instances by case-sensitive title substring
	PolicyClient Policy = "client"
	// PolicyServer trusts the lookup to have filtered already and shows instances as held
	PolicyServer Policy = "server"
)

// ParsePolicy converts a config value into a Policy
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyClient, PolicyServer:
		return p, nil
	case "":
		return PolicyServer, nil
	default:
		return "", fmt.Errorf("unknown filter policy %q (want %q or %q)", s, PolicyClient, PolicyServer)
	}
}

// MatchesFilter checks if an instance title contains the filter text
func MatchesFilter(instance domain.Instance, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(instance.Title, filter)
}

// VisibleInstances returns the instances the screen should show, in held order.
// The returned slice is always a fresh copy.
func VisibleInstances(s *domain.State, policy Policy) []domain.Instance {
	if s == nil {
		return []domain.Instance{}
	}
	if policy != PolicyClient {
		return domain.CopyInstances(s.Instances)
	}

	visible := make([]domain.Instance, 0, len(s.Instances))
	for _, instance := range s.Instances {
		if MatchesFilter(instance, s.PartialNameFilter) {
			visible = append(visible, instance)
		}
	}
	return visible
}

// Selector memoizes VisibleInstances on state identity
type Selector struct {
	policy Policy

	mu     sync.Mutex
	last   *domain.State
	result []domain.Instance
}

// NewSelector creates a memoizing selector for policy
func NewSelector(policy Policy) *Selector {
	return &Selector{policy: policy}
}

// Policy returns the policy the selector was built with
func (sel *Selector) Policy() Policy {
	return sel.policy
}

// Select returns the visible instances for s.
// The slice is shared between calls with the same state and must not be modified.
func (sel *Selector) Select(s *domain.State) []domain.Instance {
	sel.mu.Lock()
	defer sel.mu.Unlock()

	if sel.result != nil && s == sel.last {
		return sel.result
	}
	sel.last = s
	sel.result = VisibleInstances(s, sel.policy)
	return sel.result
}
