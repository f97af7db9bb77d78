package beanctx

// Initializer is an optional interface that a bean may implement to perform
// additional initialization after all of its properties have been bound.
//
// The factory calls Initialize after the before-initialization post-processors
// and ahead of any named init-method. If Initialize returns an error the bean is
// never cached and the error surfaces from GetBean as a BeanCreationError.
//
// Note: Initializer references no container types, so a bean can implement it
// without importing this package.
type Initializer interface {
	Initialize() error
}

// DisposableBean is implemented by singletons that hold resources to release when
// the owning context closes. Prototype beans are never destroyed by the container.
type DisposableBean interface {
	Destroy() error
}

// BeanNameAware beans are told the name they were registered under.
type BeanNameAware interface {
	SetBeanName(name string)
}

// BeanFactoryAware beans receive the factory that created them before any
// post-processor runs.
type BeanFactoryAware interface {
	SetBeanFactory(factory *BeanFactory)
}

// ApplicationContextAware beans receive the owning context. Injection is done by a
// post-processor that every context registers ahead of user processors.
type ApplicationContextAware interface {
	SetApplicationContext(ctx *ApplicationContext)
}
