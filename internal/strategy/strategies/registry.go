package strategies

import (
	"fmt"
	"sort"
	"sync"

	"stockBacktester/internal/ports"
)

// Constructor builds a strategy from parameters. Missing parameters take the
// strategy's defaults.
type Constructor func(params Params, logger ports.Logger) (ports.Strategy, error)

// Registry maps strategy names to constructors. Registration is explicit;
// nothing registers itself on import.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	defaults     map[string]Params
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
		defaults:     make(map[string]Params),
	}
}

// Register adds a constructor under name together with its default parameters.
func (r *Registry) Register(name string, ctor Constructor, defaults Params) error {
	if name == "" || ctor == nil {
		return fmt.Errorf("strategy name and constructor are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[name]; exists {
		return fmt.Errorf("strategy %q already registered", name)
	}
	r.constructors[name] = ctor
	r.defaults[name] = defaults.Merge(nil)
	return nil
}

// New constructs the strategy registered under name.
func (r *Registry) New(name string, params Params, logger ports.Logger) (ports.Strategy, error) {
	r.mu.RLock()
	ctor, ok := r.constructors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%q (available: %v): %w", name, r.Names(), ports.ErrUnknownStrategy)
	}
	s, err := ctor(params, logger)
	if err != nil {
		return nil, fmt.Errorf("create strategy %s: %w", name, err)
	}
	return s, nil
}

// Defaults returns a copy of the default parameters of name.
func (r *Registry) Defaults(name string) (Params, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defaults[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ports.ErrUnknownStrategy)
	}
	return d.Merge(nil), nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.constructors))
	for n := range r.constructors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RegisterBuiltins registers every strategy shipped with this package.
func RegisterBuiltins(r *Registry) error {
	builtins := []struct {
		name     string
		ctor     Constructor
		defaults Params
	}{
		{SplitBuyName, NewSplitBuy, SplitBuyDefaults()},
		{MAStrategyName, NewMAStrategy, MAStrategyDefaults()},
		{MACrossName, NewMACross, MACrossDefaults()},
		{WeightedMAName, NewWeightedMA, WeightedMADefaults()},
	}
	for _, b := range builtins {
		if err := r.Register(b.name, b.ctor, b.defaults); err != nil {
			return err
		}
	}
	return nil
}

// NewBuiltinRegistry returns a registry holding the built-in strategies.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	if err := RegisterBuiltins(r); err != nil {
		panic(err) // names are distinct constants
	}
	return r
}
