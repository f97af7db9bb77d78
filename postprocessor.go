package beanctx

import (
	"fmt"
	"reflect"
	"slices"

	"go.uber.org/zap"
)

var (
	beanFactoryPostProcessorType = reflect.TypeOf((*BeanFactoryPostProcessor)(nil)).Elem()
	beanPostProcessorType        = reflect.TypeOf((*BeanPostProcessor)(nil)).Elem()
)

// BeanFactoryPostProcessor may rewrite bean definitions after they are loaded and
// before any bean is instantiated. An error aborts the context refresh.
type BeanFactoryPostProcessor interface {
	PostProcessBeanFactory(registry BeanDefinitionRegistry) error
}

// BeanFactoryPostProcessorFunc adapts a function to BeanFactoryPostProcessor.
type BeanFactoryPostProcessorFunc func(registry BeanDefinitionRegistry) error

func (f BeanFactoryPostProcessorFunc) PostProcessBeanFactory(registry BeanDefinitionRegistry) error {
	return f(registry)
}

// BeanPostProcessor intercepts every bean realization around its initialization
// step. Returning a nil bean keeps the previous instance.
type BeanPostProcessor interface {
	PostProcessBeforeInitialization(bean any, beanName string) (any, error)
	PostProcessAfterInitialization(bean any, beanName string) (any, error)
}

// BeanPostProcessorFuncs builds a BeanPostProcessor from optional hooks. A nil hook
// passes the bean through unchanged.
type BeanPostProcessorFuncs struct {
	Before func(bean any, beanName string) (any, error)
	After  func(bean any, beanName string) (any, error)
}

func (p *BeanPostProcessorFuncs) PostProcessBeforeInitialization(bean any, beanName string) (any, error) {
	if p.Before == nil {
		return bean, nil
	}
	return p.Before(bean, beanName)
}

func (p *BeanPostProcessorFuncs) PostProcessAfterInitialization(bean any, beanName string) (any, error) {
	if p.After == nil {
		return bean, nil
	}
	return p.After(bean, beanName)
}

// AddBeanPostProcessor appends bp to the pipeline. Adding a processor that is
// already present moves it to the end.
func (f *BeanFactory) AddBeanPostProcessor(bp BeanPostProcessor) {
	if isNil(bp) {
		return
	}
	f.ppMu.Lock()
	defer f.ppMu.Unlock()
	f.postProcessors = slices.DeleteFunc(f.postProcessors, func(existing BeanPostProcessor) bool {
		return sameProcessor(existing, bp)
	})
	f.postProcessors = append(f.postProcessors, bp)
}

// BeanPostProcessors returns the pipeline in invocation order.
func (f *BeanFactory) BeanPostProcessors() []BeanPostProcessor {
	f.ppMu.RLock()
	defer f.ppMu.RUnlock()
	return slices.Clone(f.postProcessors)
}

func (f *BeanFactory) BeanPostProcessorCount() int {
	f.ppMu.RLock()
	defer f.ppMu.RUnlock()
	return len(f.postProcessors)
}

func (f *BeanFactory) applyBeforeInitialization(bean any, name string) (any, error) {
	return f.applyPostProcessors(bean, name, "before", BeanPostProcessor.PostProcessBeforeInitialization)
}

func (f *BeanFactory) applyAfterInitialization(bean any, name string) (any, error) {
	return f.applyPostProcessors(bean, name, "after", BeanPostProcessor.PostProcessAfterInitialization)
}

func (f *BeanFactory) applyPostProcessors(bean any, name, phase string, step func(BeanPostProcessor, any, string) (any, error)) (any, error) {
	result := bean
	for _, bp := range f.BeanPostProcessors() {
		var current any
		err := recovered(func() (err error) {
			current, err = step(bp, result, name)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%w: post-processor %T (%s initialization): %w", ErrInitialization, bp, phase, err)
		}
		if isNil(current) {
			f.logger.Debug("post-processor returned nil, keeping bean", zap.String("bean", name), zap.String("phase", phase))
			continue
		}
		result = current
	}
	return result, nil
}

// sameProcessor compares processors by identity without panicking on
// non-comparable dynamic types.
func sameProcessor(a, b BeanPostProcessor) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	// Pointers to zero-size values may all share one address, so they carry no
	// identity; such processors are never treated as duplicates.
	if ta.Kind() == reflect.Ptr && ta.Elem().Size() == 0 {
		return false
	}
	return a == b
}
