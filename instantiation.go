package beanctx

import (
	"fmt"
	"reflect"
)

// InstantiationStrategy turns a definition and constructor arguments into a raw,
// unpopulated instance.
type InstantiationStrategy interface {
	Instantiate(def *BeanDefinition, beanName string, args []any) (any, error)
}

// InstantiationStrategyFunc adapts a function to InstantiationStrategy.
type InstantiationStrategyFunc func(def *BeanDefinition, beanName string, args []any) (any, error)

func (f InstantiationStrategyFunc) Instantiate(def *BeanDefinition, beanName string, args []any) (any, error) {
	return f(def, beanName, args)
}

// SimpleInstantiationStrategy picks the first constructor whose arity equals the
// number of arguments. Argument types are not used for selection; an argument that
// cannot be converted to its parameter type fails the call instead.
type SimpleInstantiationStrategy struct{}

func (SimpleInstantiationStrategy) Instantiate(def *BeanDefinition, beanName string, args []any) (any, error) {
	bt := def.BeanType()
	ctor, ok := selectConstructor(bt, len(args))
	if !ok {
		if len(args) == 0 && isStructPointer(bt.typ) {
			return createInstance(bt.typ)
		}
		return nil, fmt.Errorf("%w: %v has no constructor taking %d argument(s)", ErrInstantiation, bt, len(args))
	}
	return callConstructor(beanName, ctor, args)
}

func selectConstructor(bt *BeanType, arity int) (reflect.Value, bool) {
	for _, ctor := range bt.constructors {
		if ctor.Type().NumIn() == arity {
			return ctor, true
		}
	}
	return reflect.Value{}, false
}

func callConstructor(beanName string, ctor reflect.Value, args []any) (inst any, err error) {
	ft := ctor.Type()
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		v, cerr := convertValue(arg, ft.In(i))
		if cerr != nil {
			return nil, fmt.Errorf("%w: argument %d for '%s': %v", ErrInstantiation, i, beanName, cerr)
		}
		in[i] = v
	}

	defer func() {
		if rec := recover(); rec != nil {
			inst = nil
			err = fmt.Errorf("%w: constructor for '%s' panicked: %v", ErrInstantiation, beanName, rec)
		}
	}()

	out := ctor.Call(in)
	if len(out) == 2 && !out[1].IsNil() {
		return nil, fmt.Errorf("%w: %w", ErrInstantiation, out[1].Interface().(error))
	}
	if isNilValue(out[0]) {
		return nil, fmt.Errorf("%w: constructor for '%s' returned nil", ErrInstantiation, beanName)
	}
	return out[0].Interface(), nil
}
