package adapter

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps provider ids to executors. A provider may have one executor
// per endpoint.
type Registry struct {
	mu        sync.RWMutex
	executors map[string][]Executor
}

// NewRegistry creates a registry holding the given executors.
func NewRegistry(executors ...Executor) *Registry {
	r := &Registry{executors: make(map[string][]Executor)}
	for _, e := range executors {
		r.Register(e)
	}
	return r
}

// Register adds an executor. A later executor for the same provider and
// endpoint shadows the earlier one.
func (r *Registry) Register(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := strings.ToLower(e.Name())
	r.executors[name] = append([]Executor{e}, r.executors[name]...)
}

// For returns the executor serving provider on endpoint.
func (r *Registry) For(provider string, endpoint Endpoint) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list, ok := r.executors[strings.ToLower(provider)]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
	for _, e := range list {
		if supports(e, endpoint) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("provider %s has no %s executor", provider, endpoint)
}

// Providers lists the registered provider ids, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.executors))
	for name := range r.executors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Endpoints lists every endpoint a provider serves.
func (r *Registry) Endpoints(provider string) []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[Endpoint]bool)
	var out []Endpoint
	for _, e := range r.executors[strings.ToLower(provider)] {
		for _, ep := range e.Endpoints() {
			if !seen[ep] {
				seen[ep] = true
				out = append(out, ep)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
