package shipper

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages registered shipping carriers.
type Registry struct {
	shippers map[string]Shipper
	mu       sync.RWMutex
}

// NewRegistry creates a new shipper registry.
func NewRegistry() *Registry {
	return &Registry{
		shippers: make(map[string]Shipper),
	}
}

// Register adds a shipper to the registry.
func (r *Registry) Register(s Shipper) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shippers[normalizeCarrier(s.Name())] = s
}

// Get returns a shipper by name.
func (r *Registry) Get(name string) (Shipper, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.shippers[normalizeCarrier(name)]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedCarrier, name)
}

// Has reports whether a shipper is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.shippers[normalizeCarrier(name)]
	return ok
}

// Names returns the sorted names of all registered shippers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.shippers))
	for name := range r.shippers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered shippers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shippers)
}

// Resolver selects and binds the carrier adapter for a document.
type Resolver struct {
	table    *RoutingTable
	registry *Registry
}

// NewResolver creates a resolver over an immutable routing table and the
// registry of carrier implementations.
func NewResolver(table *RoutingTable, registry *Registry) *Resolver {
	return &Resolver{table: table, registry: registry}
}

// Table returns the routing table.
func (r *Resolver) Table() *RoutingTable {
	return r.table
}

// Shipper returns the registered shipper for name, bypassing routing.
func (r *Resolver) Shipper(name string) (Shipper, error) {
	return r.registry.Get(name)
}

// Unregistered returns the routed carriers that have no registered shipper.
func (r *Resolver) Unregistered() []string {
	var names []string
	for _, rt := range r.table.Routes() {
		if !r.registry.Has(rt.Carrier) {
			names = append(names, rt.Carrier)
		}
	}
	return names
}

// Resolve picks the carrier for doc among the registered shippers and
// returns an adapter bound to it.
func (r *Resolver) Resolve(doc Document) (Adapter, error) {
	req := doc.RouteRequest()
	name, err := r.table.SelectAvailable(req, r.registry.Has)
	if err != nil {
		return nil, err
	}

	s, err := r.registry.Get(name)
	if err != nil {
		return nil, &RouteError{
			RequestType:   req.Type,
			Carrier:       name,
			Preference:    req.Preference,
			OriginCountry: req.OriginCountry,
			Err:           ErrUnsupportedCarrier,
		}
	}
	return s.Bind(doc), nil
}
