package beanctx

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefinitionLoader populates a registry from one or more locations. Parsing and
// resource loading live behind this interface; see the yamlbeans package.
type DefinitionLoader interface {
	LoadBeanDefinitions(registry BeanDefinitionRegistry, locations ...string) error
}

// DefinitionLoaderFunc adapts a function to DefinitionLoader, which is handy for
// definitions written in code.
type DefinitionLoaderFunc func(registry BeanDefinitionRegistry, locations ...string) error

func (f DefinitionLoaderFunc) LoadBeanDefinitions(registry BeanDefinitionRegistry, locations ...string) error {
	return f(registry, locations...)
}

// ApplicationContext owns a BeanFactory and sequences its startup and shutdown.
// Refresh runs once per context; Close destroys the singletons it created.
type ApplicationContext struct {
	refreshLock sync.Mutex
	refreshed   atomic.Bool
	closed      atomic.Bool

	mu      sync.RWMutex
	factory *BeanFactory

	loader                DefinitionLoader
	locations             []string
	factoryPostProcessors []BeanFactoryPostProcessor
	strategy              InstantiationStrategy
	logger                *zap.Logger
}

// Option configures an ApplicationContext.
type Option func(*ApplicationContext)

// WithLogger sets the logger passed down to the bean factory.
func WithLogger(logger *zap.Logger) Option {
	return func(c *ApplicationContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithInstantiationStrategy replaces the factory's default strategy.
func WithInstantiationStrategy(strategy InstantiationStrategy) Option {
	return func(c *ApplicationContext) {
		c.strategy = strategy
	}
}

// WithBeanFactoryPostProcessor adds a factory-level processor that is not itself
// declared as a bean. These run before bean-declared processors, in the order added.
func WithBeanFactoryPostProcessor(pp BeanFactoryPostProcessor) Option {
	return func(c *ApplicationContext) {
		if !isNil(pp) {
			c.factoryPostProcessors = append(c.factoryPostProcessors, pp)
		}
	}
}

// NewApplicationContext returns an unrefreshed context that will load definitions
// from locations using loader. A nil loader yields an empty factory.
func NewApplicationContext(loader DefinitionLoader, locations []string, opts ...Option) *ApplicationContext {
	c := &ApplicationContext{
		loader:    loader,
		locations: append([]string(nil), locations...),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh builds a fresh factory, loads definitions, runs the factory-level
// post-processors, registers the instance-level ones and pre-instantiates every
// singleton. If any step fails, singletons built so far are destroyed and the
// context stays unrefreshed.
func (c *ApplicationContext) Refresh() (err error) {
	c.refreshLock.Lock()
	defer c.refreshLock.Unlock()

	if c.closed.Load() {
		return ErrContextClosed
	}
	if c.refreshed.Load() {
		return ErrAlreadyRefreshed
	}

	factory := NewBeanFactory(WithFactoryLogger(c.logger), WithFactoryStrategy(c.strategy))
	c.setFactory(factory)
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("refresh panicked: %v", rec)
		}
		if err == nil {
			c.refreshed.Store(true)
			return
		}
		c.setFactory(nil)
		if derr := factory.DestroySingletons(); derr != nil {
			c.logger.Error("cleanup after failed refresh", zap.Error(derr))
		}
	}()

	if c.loader != nil {
		if err = c.loader.LoadBeanDefinitions(factory, c.locations...); err != nil {
			return fmt.Errorf("loading bean definitions: %w", err)
		}
	}
	c.logger.Debug("bean definitions loaded", zap.Int("count", factory.count()), zap.Strings("locations", c.locations))

	if err = c.invokeBeanFactoryPostProcessors(factory); err != nil {
		return err
	}
	if err = c.registerBeanPostProcessors(factory); err != nil {
		return err
	}
	if err = factory.PreInstantiateSingletons(); err != nil {
		return fmt.Errorf("pre-instantiating singletons: %w", err)
	}

	c.logger.Debug("application context refreshed", zap.Int("singletons", len(factory.SingletonNames())))
	return nil
}

func (c *ApplicationContext) invokeBeanFactoryPostProcessors(factory *BeanFactory) error {
	for _, pp := range c.factoryPostProcessors {
		if err := pp.PostProcessBeanFactory(factory); err != nil {
			return fmt.Errorf("bean factory post-processor %T: %w", pp, err)
		}
	}
	for _, name := range factory.BeanNamesForType(beanFactoryPostProcessorType) {
		pp, err := GetBeanAs[BeanFactoryPostProcessor](factory, name)
		if err != nil {
			return err
		}
		c.logger.Debug("invoking bean factory post-processor", zap.String("bean", name))
		if err := pp.PostProcessBeanFactory(factory); err != nil {
			return fmt.Errorf("bean factory post-processor '%s': %w", name, err)
		}
	}
	return nil
}

func (c *ApplicationContext) registerBeanPostProcessors(factory *BeanFactory) error {
	factory.AddBeanPostProcessor(&contextAwareProcessor{ctx: c})
	for _, name := range factory.BeanNamesForType(beanPostProcessorType) {
		bp, err := GetBeanAs[BeanPostProcessor](factory, name)
		if err != nil {
			return err
		}
		c.logger.Debug("registering bean post-processor", zap.String("bean", name))
		factory.AddBeanPostProcessor(bp)
	}
	return nil
}

// Close destroys all singletons. It is safe to call more than once; only the first
// call does any work. Destruction errors are joined and returned after every bean
// has been given the chance to release its resources.
func (c *ApplicationContext) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	// Wait for an in-flight refresh to settle.
	c.refreshLock.Lock()
	defer c.refreshLock.Unlock()

	factory := c.currentFactory()
	if factory == nil {
		return nil
	}
	err := factory.DestroySingletons()
	c.logger.Debug("application context closed", zap.Bool("clean", err == nil))
	return err
}

// BeanFactory returns the factory built by Refresh.
func (c *ApplicationContext) BeanFactory() (*BeanFactory, error) {
	if c.closed.Load() {
		return nil, ErrContextClosed
	}
	factory := c.currentFactory()
	if factory == nil {
		return nil, ErrContextNotRefreshed
	}
	return factory, nil
}

func (c *ApplicationContext) GetBean(name string) (any, error) {
	factory, err := c.BeanFactory()
	if err != nil {
		return nil, err
	}
	return factory.GetBean(name)
}

func (c *ApplicationContext) GetBeanWithArgs(name string, args ...any) (any, error) {
	factory, err := c.BeanFactory()
	if err != nil {
		return nil, err
	}
	return factory.GetBeanWithArgs(name, args...)
}

// MustGetBean is GetBean that panics on failure.
func (c *ApplicationContext) MustGetBean(name string) any {
	v, err := c.GetBean(name)
	if err != nil {
		panic(err)
	}
	return v
}

func (c *ApplicationContext) ContainsBean(name string) bool {
	factory, err := c.BeanFactory()
	return err == nil && factory.ContainsBean(name)
}

func (c *ApplicationContext) BeanDefinitionNames() ([]string, error) {
	factory, err := c.BeanFactory()
	if err != nil {
		return nil, err
	}
	return factory.BeanDefinitionNames(), nil
}

func (c *ApplicationContext) IsRefreshed() bool { return c.refreshed.Load() }
func (c *ApplicationContext) IsClosed() bool    { return c.closed.Load() }

func (c *ApplicationContext) setFactory(f *BeanFactory) {
	c.mu.Lock()
	c.factory = f
	c.mu.Unlock()
}

func (c *ApplicationContext) currentFactory() *BeanFactory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.factory
}

// contextAwareProcessor hands the owning context to ApplicationContextAware beans.
type contextAwareProcessor struct {
	ctx *ApplicationContext
}

func (p *contextAwareProcessor) PostProcessBeforeInitialization(bean any, _ string) (any, error) {
	if aware, ok := bean.(ApplicationContextAware); ok {
		aware.SetApplicationContext(p.ctx)
	}
	return bean, nil
}

func (p *contextAwareProcessor) PostProcessAfterInitialization(bean any, _ string) (any, error) {
	return bean, nil
}
