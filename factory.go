package beanctx

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// BeanGetter is the lookup side shared by BeanFactory and ApplicationContext.
type BeanGetter interface {
	GetBean(name string) (any, error)
}

// BeanFactory realizes beans from their definitions. It is the definition
// registry, the singleton cache and the post-processor pipeline in one.
//
// Registration is expected to happen from a single goroutine before beans are
// requested; lookups after that are safe for concurrent use.
type BeanFactory struct {
	*definitionRegistry
	*singletonRegistry

	strategy InstantiationStrategy
	logger   *zap.Logger

	ppMu           sync.RWMutex
	postProcessors []BeanPostProcessor
}

// FactoryOption configures a BeanFactory.
type FactoryOption func(*BeanFactory)

// WithFactoryLogger sets the logger used for creation and destruction events.
func WithFactoryLogger(logger *zap.Logger) FactoryOption {
	return func(f *BeanFactory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithFactoryStrategy replaces the default SimpleInstantiationStrategy.
func WithFactoryStrategy(strategy InstantiationStrategy) FactoryOption {
	return func(f *BeanFactory) {
		if strategy != nil {
			f.strategy = strategy
		}
	}
}

func NewBeanFactory(opts ...FactoryOption) *BeanFactory {
	f := &BeanFactory{
		definitionRegistry: newDefinitionRegistry(),
		strategy:           SimpleInstantiationStrategy{},
		logger:             zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.singletonRegistry = newSingletonRegistry(f.logger)
	return f
}

// RegisterBeanDefinition stores def under name, replacing any earlier definition.
// Only the singleton and prototype scopes are accepted.
func (f *BeanFactory) RegisterBeanDefinition(name string, def *BeanDefinition) error {
	if def != nil && def.scope != ScopeSingleton && def.scope != ScopePrototype {
		return fmt.Errorf("bean definition '%s': unknown scope '%s'", name, def.scope)
	}
	return f.definitionRegistry.RegisterBeanDefinition(name, def)
}

// GetBean returns the bean registered under name, creating it if needed.
func (f *BeanFactory) GetBean(name string) (any, error) {
	return f.doGetBean(name, nil, nil)
}

// GetBeanWithArgs is GetBean with constructor arguments. The arguments pick the
// constructor by arity and are ignored when a cached singleton exists.
func (f *BeanFactory) GetBeanWithArgs(name string, args ...any) (any, error) {
	return f.doGetBean(name, args, nil)
}

// MustGetBean returns the bean registered under name or panics if it cannot be
// created. Prefer GetBean in production code to handle errors gracefully.
func (f *BeanFactory) MustGetBean(name string) any {
	v, err := f.GetBean(name)
	if err != nil {
		panic(err)
	}
	return v
}

// GetBeanAs returns the named bean from lookup cast to T.
func GetBeanAs[T any](lookup BeanGetter, name string) (T, error) {
	var zero T
	v, err := lookup.GetBean(name)
	if err != nil {
		return zero, err
	}
	x, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: bean '%s' is %T, not %v", ErrTypeMismatch, name, v, reflect.TypeOf((*T)(nil)).Elem())
	}
	return x, nil
}

// ContainsBean reports whether name is a cached singleton or a registered definition.
func (f *BeanFactory) ContainsBean(name string) bool {
	return f.ContainsSingleton(name) || f.ContainsBeanDefinition(name)
}

func (f *BeanFactory) IsSingleton(name string) (bool, error) {
	if f.ContainsSingleton(name) {
		return true, nil
	}
	def, err := f.BeanDefinition(name)
	if err != nil {
		return false, err
	}
	return def.IsSingleton(), nil
}

func (f *BeanFactory) IsPrototype(name string) (bool, error) {
	def, err := f.BeanDefinition(name)
	if err != nil {
		if f.ContainsSingleton(name) {
			return false, nil
		}
		return false, err
	}
	return def.IsPrototype(), nil
}

// BeanNamesForType returns, in registration order, the names of definitions whose
// bean type is assignable to typ.
func (f *BeanFactory) BeanNamesForType(typ reflect.Type) []string {
	var names []string
	for name := range f.AllNames() {
		def, err := f.BeanDefinition(name)
		if err != nil {
			continue
		}
		if def.BeanType().Type().AssignableTo(typ) {
			names = append(names, name)
		}
	}
	return names
}

// BeansOfType realizes every bean whose definition type is assignable to T, keyed
// by name.
func BeansOfType[T any](f *BeanFactory) (map[string]T, error) {
	out := make(map[string]T)
	for _, name := range f.BeanNamesForType(reflect.TypeOf((*T)(nil)).Elem()) {
		bean, err := GetBeanAs[T](f, name)
		if err != nil {
			return nil, err
		}
		out[name] = bean
	}
	return out, nil
}

// PreInstantiateSingletons realizes every singleton definition in registration
// order so configuration errors surface up front.
func (f *BeanFactory) PreInstantiateSingletons() error {
	for name := range f.AllNames() {
		def, err := f.BeanDefinition(name)
		if err != nil {
			return err
		}
		if !def.IsSingleton() {
			continue
		}
		if _, err := f.GetBean(name); err != nil {
			return err
		}
	}
	return nil
}

// doGetBean serves the cache first, then builds from the definition. path holds the
// names currently under construction on this call chain.
func (f *BeanFactory) doGetBean(name string, args []any, path []string) (any, error) {
	if name == emptyString {
		return nil, ErrBeanNameIsEmpty
	}

	if inst, ok := f.Singleton(name); ok {
		return inst, nil
	}

	def, err := f.BeanDefinition(name)
	if err != nil {
		return nil, newCreationError(name, err)
	}

	if slices.Contains(path, name) {
		cycle := strings.Join(append(slices.Clone(path), name), pathSep)
		return nil, newCreationError(name, fmt.Errorf("%w: %s", ErrCircularReference, cycle))
	}
	path = append(slices.Clone(path), name)

	inst, err := f.createBean(name, def, args, path)
	if err != nil {
		f.logger.Debug("bean creation failed", zap.String("bean", name), zap.Error(err))
		return nil, newCreationError(name, err)
	}
	return inst, nil
}
