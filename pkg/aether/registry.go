package aether

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry maps type names to registrations.
type Registry struct {
	mutex sync.RWMutex
	regs  map[string]Registration
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{regs: make(map[string]Registration)}
}

// Register adds a registration. It fails if the type is already registered.
func (r *Registry) Register(reg Registration) error {
	if reg.Type == "" {
		return errors.New("registration has empty type")
	}
	if reg.New == nil {
		return fmt.Errorf("registration %q has no factory", reg.Type)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.regs[reg.Type]; ok {
		return fmt.Errorf("component type %q already registered", reg.Type)
	}
	r.regs[reg.Type] = reg
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(regs ...Registration) {
	for _, reg := range regs {
		if err := r.Register(reg); err != nil {
			panic(err)
		}
	}
}

// Lookup finds the registration for a type.
func (r *Registry) Lookup(typ string) (Registration, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	reg, ok := r.regs[typ]
	return reg, ok
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	types := make([]string, 0, len(r.regs))
	for t := range r.regs {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Default is the registry feature packages register into from init functions.
var Default = NewRegistry()

// Register adds registrations to Default, panicking on duplicates.
func Register(regs ...Registration) { Default.MustRegister(regs...) }
