package beanctx

import (
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// createBean runs the full pipeline for one realization: instantiate, bind
// properties, initialize, then register for destruction and cache if singleton.
// Nothing is cached when any step fails.
func (f *BeanFactory) createBean(name string, def *BeanDefinition, args []any, path []string) (any, error) {
	f.logger.Debug("creating bean", zap.String("bean", name), zap.String("scope", string(def.Scope())))

	inst, err := f.strategy.Instantiate(def, name, args)
	if err != nil {
		if !errors.Is(err, ErrInstantiation) {
			err = fmt.Errorf("%w: %w", ErrInstantiation, err)
		}
		return nil, err
	}
	if isNil(inst) {
		return nil, fmt.Errorf("%w: strategy returned nil for '%s'", ErrInstantiation, name)
	}

	if err := f.applyPropertyValues(name, inst, def, path); err != nil {
		return nil, err
	}

	inst, err = f.initializeBean(name, inst, def)
	if err != nil {
		return nil, err
	}

	if !def.IsSingleton() {
		return inst, nil
	}

	d, err := disposalFor(name, inst, def)
	if err != nil {
		return nil, err
	}
	cached, _ := f.addSingleton(name, inst, d)
	return cached, nil
}

// initializeBean drives aware injection, the before hooks, init callbacks and the
// after hooks, in that order.
func (f *BeanFactory) initializeBean(name string, bean any, def *BeanDefinition) (any, error) {
	err := recovered(func() error {
		if aware, ok := bean.(BeanNameAware); ok {
			aware.SetBeanName(name)
		}
		if aware, ok := bean.(BeanFactoryAware); ok {
			aware.SetBeanFactory(f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: aware callbacks of '%s': %w", ErrInitialization, name, err)
	}

	wrapped, err := f.applyBeforeInitialization(bean, name)
	if err != nil {
		return nil, err
	}

	if err := invokeInitMethods(name, wrapped, def); err != nil {
		return nil, err
	}

	return f.applyAfterInitialization(wrapped, name)
}

func invokeInitMethods(name string, bean any, def *BeanDefinition) error {
	initr, isInitializer := bean.(Initializer)
	if isInitializer {
		if err := recovered(initr.Initialize); err != nil {
			return fmt.Errorf("%w: '%s': %w", ErrInitialization, name, err)
		}
	}

	method := def.InitMethodName()
	if method == emptyString || (isInitializer && method == initializerMethod) {
		return nil
	}
	fn, err := lookupMethod(bean, method)
	if err != nil {
		return fmt.Errorf("init method of '%s': %w", name, err)
	}
	if err := callMethod(fn); err != nil {
		return fmt.Errorf("%w: init method '%s' of '%s': %w", ErrInitialization, method, name, err)
	}
	return nil
}

// disposalFor returns the destruction handle for a singleton, or nil when the bean
// has nothing to release. A configured destroy method is resolved now so that a
// typo fails the bean at startup rather than at shutdown.
func disposalFor(name string, bean any, def *BeanDefinition) (*disposal, error) {
	disposable, isDisposable := bean.(DisposableBean)

	var named reflect.Value
	method := def.DestroyMethodName()
	if method != emptyString && !(isDisposable && method == destroyMethod) {
		fn, err := lookupMethod(bean, method)
		if err != nil {
			return nil, fmt.Errorf("destroy method of '%s': %w", name, err)
		}
		named = fn
	}

	if !isDisposable && !named.IsValid() {
		return nil, nil
	}

	return &disposal{
		beanName: name,
		destroy: func() error {
			var errs error
			if isDisposable {
				errs = errors.Join(errs, disposable.Destroy())
			}
			if named.IsValid() {
				errs = errors.Join(errs, callMethod(named))
			}
			return errs
		},
	}, nil
}

// lookupMethod finds an exported method taking no arguments and returning either
// nothing or a single error.
func lookupMethod(bean any, name string) (reflect.Value, error) {
	fn := reflect.ValueOf(bean).MethodByName(name)
	if !fn.IsValid() {
		return reflect.Value{}, fmt.Errorf("%w: '%s' on %T", ErrMethodNotFound, name, bean)
	}
	ft := fn.Type()
	if ft.NumIn() != 0 || ft.NumOut() > 1 || (ft.NumOut() == 1 && ft.Out(0) != errorType) {
		return reflect.Value{}, fmt.Errorf("%w: '%s' on %T must be func() or func() error", ErrMethodNotFound, name, bean)
	}
	return fn, nil
}

func callMethod(fn reflect.Value) error {
	return recovered(func() error {
		out := fn.Call(nil)
		if len(out) == 1 && !out[0].IsNil() {
			return out[0].Interface().(error)
		}
		return nil
	})
}

// recovered runs fn and reports a panic as an error.
func recovered(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn()
}
