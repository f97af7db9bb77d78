package yamlbeans

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Station-Manager/beanctx"
)

// TypeRegistry maps the class names used in bean documents to bean types. It plays
// the part a runtime class lookup plays in languages that have one.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]*beanctx.BeanType
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]*beanctx.BeanType)}
}

// Register binds name to bt. Registering the same name twice is an error.
func (r *TypeRegistry) Register(name string, bt *beanctx.BeanType) error {
	if name == "" {
		return errors.New("yamlbeans: type name is empty")
	}
	if bt == nil {
		return fmt.Errorf("yamlbeans: type '%s': %w", name, beanctx.ErrBeanTypeParamIsNil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[name]; exists {
		return fmt.Errorf("yamlbeans: type '%s' already registered", name)
	}
	r.types[name] = bt
	return nil
}

// MustRegister is Register for static type tables; it panics on error and returns
// the registry for chaining.
func (r *TypeRegistry) MustRegister(name string, bt *beanctx.BeanType) *TypeRegistry {
	if err := r.Register(name, bt); err != nil {
		panic(err)
	}
	return r
}

func (r *TypeRegistry) Lookup(name string) (*beanctx.BeanType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bt, ok := r.types[name]
	return bt, ok
}
