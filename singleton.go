package beanctx

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// disposal is a destruction handle captured when a singleton is cached.
type disposal struct {
	beanName string
	destroy  func() error
}

// singletonRegistry caches fully initialized singletons and the handles used to
// destroy them. A name is written at most once until the registry is destroyed.
type singletonRegistry struct {
	mu         sync.RWMutex
	singletons map[string]any
	order      []string
	disposals  []disposal
	logger     *zap.Logger
}

func newSingletonRegistry(logger *zap.Logger) *singletonRegistry {
	return &singletonRegistry{
		singletons: make(map[string]any),
		logger:     logger,
	}
}

// Singleton returns the cached instance for name. Absence is not an error.
func (r *singletonRegistry) Singleton(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.singletons[name]
	return inst, ok
}

// ContainsSingleton reports whether name has a cached instance.
func (r *singletonRegistry) ContainsSingleton(name string) bool {
	_, ok := r.Singleton(name)
	return ok
}

// SingletonNames returns cached names in the order they were cached.
func (r *singletonRegistry) SingletonNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// RegisterSingleton caches a pre-built instance under name. The instance bypasses
// the creation pipeline, so no lifecycle callbacks run for it and it is not
// registered for destruction. Struct values are normalized to pointers.
func (r *singletonRegistry) RegisterSingleton(name string, instance any) error {
	if name == emptyString {
		return ErrBeanNameIsEmpty
	}
	if instance == nil {
		return fmt.Errorf("singleton '%s': instance is nil", name)
	}
	instance = normalizeInstance(instance)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.singletons[name]; exists {
		return fmt.Errorf("%w: singleton '%s' already registered", ErrDuplicateDefinition, name)
	}
	r.singletons[name] = instance
	r.order = append(r.order, name)
	return nil
}

// addSingleton caches instance unless another instance won the race for name. The
// returned value is the instance that ended up cached. The disposal handle, if any,
// is recorded only for the winner.
func (r *singletonRegistry) addSingleton(name string, instance any, d *disposal) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.singletons[name]; ok {
		return existing, false
	}
	r.singletons[name] = instance
	r.order = append(r.order, name)
	if d != nil {
		r.disposals = append(r.disposals, *d)
	}
	return instance, true
}

// RegisterDisposal appends a destruction handle, typically for an instance added
// through RegisterSingleton.
func (r *singletonRegistry) RegisterDisposal(name string, fn func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disposals = append(r.disposals, disposal{beanName: name, destroy: fn})
}

// DestroySingletons runs every destruction handle, most recently registered first,
// then clears the cache. A failing or panicking handle is logged and collected;
// the remaining handles still run. Calling it again is a no-op.
func (r *singletonRegistry) DestroySingletons() error {
	r.mu.Lock()
	disposals := r.disposals
	r.disposals = nil
	r.singletons = make(map[string]any)
	r.order = nil
	r.mu.Unlock()

	var errs error
	for i := len(disposals) - 1; i >= 0; i-- {
		d := disposals[i]
		if err := runDisposal(d); err != nil {
			r.logger.Error("destroy bean failed", zap.String("bean", d.beanName), zap.Error(err))
			errs = errors.Join(errs, err)
			continue
		}
		r.logger.Debug("destroyed bean", zap.String("bean", d.beanName))
	}
	return errs
}

func runDisposal(d disposal) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("destroy bean '%s' recovered from panic: %v", d.beanName, rec)
		}
	}()
	if err = d.destroy(); err != nil {
		return fmt.Errorf("destroy bean '%s': %w", d.beanName, err)
	}
	return nil
}
