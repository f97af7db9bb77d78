package beanctx

import (
	"fmt"
	"iter"
	"slices"
	"sync"
)

// BeanDefinitionRegistry is the view of the factory handed to definition loaders and
// factory-level post-processors.
type BeanDefinitionRegistry interface {
	// RegisterBeanDefinition stores def under name, replacing any earlier definition.
	RegisterBeanDefinition(name string, def *BeanDefinition) error
	// BeanDefinition fails with ErrDefinitionNotFound when name is not registered.
	BeanDefinition(name string) (*BeanDefinition, error)
	ContainsBeanDefinition(name string) bool
	BeanDefinitionNames() []string
	// AllNames yields registered names in registration order. The sequence may be
	// ranged over more than once.
	AllNames() iter.Seq[string]
}

// definitionRegistry keeps definitions keyed by name plus the order in which names
// were first registered.
type definitionRegistry struct {
	mu    sync.RWMutex
	defs  map[string]*BeanDefinition
	names []string
}

func newDefinitionRegistry() *definitionRegistry {
	return &definitionRegistry{defs: make(map[string]*BeanDefinition)}
}

func (r *definitionRegistry) RegisterBeanDefinition(name string, def *BeanDefinition) error {
	if name == emptyString {
		return ErrBeanNameIsEmpty
	}
	if def == nil {
		return ErrDefinitionIsNil
	}
	if def.beanType == nil {
		return fmt.Errorf("bean definition '%s': %w", name, ErrBeanTypeParamIsNil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[name]; !exists {
		r.names = append(r.names, name)
	}
	r.defs[name] = def
	return nil
}

func (r *definitionRegistry) BeanDefinition(name string) (*BeanDefinition, error) {
	r.mu.RLock()
	def, ok := r.defs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrDefinitionNotFound, name)
	}
	return def, nil
}

func (r *definitionRegistry) ContainsBeanDefinition(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[name]
	return ok
}

func (r *definitionRegistry) BeanDefinitionNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.names)
}

func (r *definitionRegistry) AllNames() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, name := range r.BeanDefinitionNames() {
			if !yield(name) {
				return
			}
		}
	}
}

func (r *definitionRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}
