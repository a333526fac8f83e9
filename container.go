package harbor

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Container is the contextual dependency-injection container. Beans are
// registered while the container is in discovery, Deploy validates the
// deployment and seals the registry, and Shutdown tears down the
// application and singleton contexts.
type Container struct {
	logger    *zap.Logger
	config    Config
	hierarchy *Hierarchy
	registry  *registry
	resolver  *resolver
	contexts  *contextRegistry

	application  *sharedContext
	singleton    *sharedContext
	request      *managedContext
	session      *managedContext
	conversation *managedContext
	dependent    dependentContext

	// lookups owns dependent instances handed out by Get and All.
	lookups *CreationalContext

	proxies     ProxyFactory
	proxyCache  sync.Map
	contextuals sync.Map
	middleware  *middlewareChain

	extensions []Extension
	descriptor *Descriptor
	units      map[string]*Unit
	unitOrder  []string
	deployment *deployment

	stereotypes    map[string]*Stereotype
	bindingTypes   map[string][]Annotation
	observers      *observerRegistry
	extraObservers []*ObserverMethod

	models   map[string]*InterceptionModel
	modelsMu sync.RWMutex

	interceptors []*Bean
	decorators   []*Bean

	deployed atomic.Bool
	shutdown atomic.Bool
	mu       sync.RWMutex
}

// New creates a container in discovery. Options are applied before the
// built-in scopes, contexts and beans are set up.
func New(opts ...Option) *Container {
	c := &Container{
		logger:       zap.NewNop(),
		config:       DefaultConfig(),
		hierarchy:    NewHierarchy(),
		contexts:     newContextRegistry(),
		proxies:      defaultProxyFactory{},
		middleware:   newMiddlewareChain(),
		units:        make(map[string]*Unit),
		stereotypes:  make(map[string]*Stereotype),
		bindingTypes: make(map[string][]Annotation),
		observers:    newObserverRegistry(),
		models:       make(map[string]*InterceptionModel),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.registry = newRegistry(c.hierarchy)
	c.resolver = newResolver(c.registry, c.hierarchy, c.config.ResolutionCache)
	c.registry.subscribe(c.resetModels)
	c.deployment = newDeployment(c.units, c.unitOrder)

	c.application = newSharedContext(ScopeApplication, c.logger, c.fireContextEvent)
	c.singleton = newSharedContext(ScopeSingleton, c.logger, nil)
	c.request = newManagedContext(ScopeRequest, c.logger, c.fireContextEvent)
	c.session = newManagedContext(ScopeSession, c.logger, c.fireContextEvent)
	c.conversation = newManagedContext(ScopeConversation, c.logger, c.fireContextEvent)

	c.lookups = NewCreationalContext(nil)
	c.lookups.logger = c.logger

	c.contexts.addContext(c.dependent)
	c.contexts.addContext(c.singleton)
	c.contexts.addContext(c.application)
	c.contexts.addContext(c.request)
	c.contexts.addContext(c.session)
	c.contexts.addContext(c.conversation)

	for _, b := range c.builtinBeans() {
		if err := c.registry.register(b); err != nil {
			c.logger.Error("failed to register built-in bean", zap.String("bean", b.id), zap.Error(err))
		}
	}

	c.DeclareInterceptorBinding(activateRequestContextType)
	if err := c.registry.register(activationInterceptor()); err != nil {
		c.logger.Error("failed to register activation interceptor", zap.Error(err))
	}

	return c
}

// Logger returns the container logger.
func (c *Container) Logger() *zap.Logger { return c.logger }

// Hierarchy returns the type hierarchy used for assignability checks.
func (c *Container) Hierarchy() *Hierarchy { return c.hierarchy }

// Register adds bean definitions. Registration is only possible before Deploy.
func (c *Container) Register(beans ...*Bean) error {
	for _, b := range beans {
		if err := c.registry.register(b); err != nil {
			return err
		}

		c.logger.Debug("bean registered",
			zap.String("bean", b.id),
			zap.String("kind", b.kind.String()),
			zap.String("scope", string(b.scope)),
		)
	}

	return nil
}

// MustRegister is like Register but panics on error.
func (c *Container) MustRegister(beans ...*Bean) {
	if err := c.Register(beans...); err != nil {
		panic(err)
	}
}

// Bean returns a registered bean by id.
func (c *Container) Bean(id string) (*Bean, bool) {
	return c.registry.get(id)
}

// AllBeans returns every registered bean in registration order, enabled or not.
func (c *Container) AllBeans() []*Bean {
	return c.registry.all()
}

// DeclareStereotype registers a stereotype.
func (c *Container) DeclareStereotype(st Stereotype) {
	c.mu.Lock()
	c.stereotypes[st.Name] = &st
	c.mu.Unlock()

	c.resetModels()
}

// DeclareInterceptorBinding registers an interceptor binding type together
// with the bindings it is itself annotated with. Beans bound by the type are
// also bound by every meta binding, recursively.
func (c *Container) DeclareInterceptorBinding(bindingType string, meta ...Annotation) {
	c.mu.Lock()
	if _, ok := c.bindingTypes[bindingType]; !ok {
		c.bindingTypes[bindingType] = nil
	}
	c.bindingTypes[bindingType] = append(c.bindingTypes[bindingType], meta...)
	c.mu.Unlock()

	c.resetModels()
}

// AddScope declares a custom scope.
func (c *Container) AddScope(info ScopeInfo) {
	c.contexts.addScope(info)
}

// AddContext registers a context for its scope. Several contexts may exist
// for one scope as long as at most one is active at a time.
func (c *Container) AddContext(ctx Context) {
	if _, ok := c.contexts.scope(ctx.Scope()); !ok {
		c.contexts.addScope(ScopeInfo{ID: ctx.Scope(), Normal: true})
	}
	c.contexts.addContext(ctx)
}

// AddObserver registers an observer method not declared by a bean.
func (c *Container) AddObserver(o *ObserverMethod) {
	c.extraObservers = append(c.extraObservers, o)
	if c.deployed.Load() {
		c.observers.add(o)
	}
}

// IsDeployed reports whether Deploy completed.
func (c *Container) IsDeployed() bool { return c.deployed.Load() }

func (c *Container) resetModels() {
	c.modelsMu.Lock()
	c.models = make(map[string]*InterceptionModel)
	c.modelsMu.Unlock()
}

// Deploy runs bean discovery with the registered extensions, validates the
// deployment, seals the registry and fires Initialized(application). Every
// problem found is reported in one ErrDeployment error.
func (c *Container) Deploy(ctx context.Context) error {
	if c.deployed.Load() {
		return ErrRegistryClosed
	}

	c.deployment = newDeployment(c.units, c.unitOrder)

	var problems []error

	before := &BeforeDiscoveryEvent{c: c}
	before.open = true
	for _, ext := range c.extensions {
		if x, ok := ext.(BeforeBeanDiscovery); ok {
			if err := x.BeforeBeanDiscovery(ctx, before); err != nil {
				problems = append(problems, err)
			}
		}
	}
	before.open = false

	c.applyDiscoveryModes()
	problems = append(problems, c.processBeans(ctx)...)

	after := &AfterDiscoveryEvent{c: c}
	after.open = true
	for _, ext := range c.extensions {
		if x, ok := ext.(AfterBeanDiscovery); ok {
			if err := x.AfterBeanDiscovery(ctx, after); err != nil {
				problems = append(problems, err)
			}
		}
	}
	after.open = false
	problems = append(problems, after.problems...)

	problems = append(problems, c.seal()...)
	problems = append(problems, c.validate()...)

	if len(problems) == 0 {
		validated := &AfterValidationEvent{c: c}
		validated.open = true
		for _, ext := range c.extensions {
			if x, ok := ext.(AfterDeploymentValidation); ok {
				if err := x.AfterDeploymentValidation(ctx, validated); err != nil {
					problems = append(problems, err)
				}
			}
		}
		validated.open = false
		problems = append(problems, validated.problems...)
	}

	if len(problems) > 0 {
		err := NewDeploymentError(problems)
		c.logger.Error("deployment failed", zap.Int("problems", len(problems)), zap.Error(err))

		return err
	}

	c.registry.close()
	c.deployed.Store(true)

	c.logger.Info("container deployed",
		zap.Int("beans", len(c.registry.all())),
		zap.Int("interceptors", len(c.enabledInterceptors())),
		zap.Int("decorators", len(c.enabledDecorators())),
	)

	return c.fireContextEvent(ctx, ContextEvent{Scope: ScopeApplication}, Initialized(ScopeApplication))
}

// Shutdown notifies BeforeShutdown extensions, then destroys the dependent
// instances handed out by Get and All and every instance of the application
// and singleton contexts.
func (c *Container) Shutdown(ctx context.Context) error {
	if !c.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	for _, ext := range c.extensions {
		if x, ok := ext.(BeforeShutdown); ok {
			if err := x.BeforeShutdown(ctx, c); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if err := c.lookups.Release(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.application.shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.singleton.shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	c.logger.Info("container shut down")

	return multierr.Combine(errs...)
}

// applyDiscoveryModes removes beans excluded by their unit's discovery mode.
func (c *Container) applyDiscoveryModes() {
	for _, b := range c.registry.all() {
		if isContainerBean(b) {
			continue
		}
		if !c.descriptorFor(b).discovers(b) {
			c.registry.remove(b.id)
			c.logger.Debug("bean excluded by discovery mode", zap.String("bean", b.id), zap.String("unit", b.unit))
		}
	}
}

// processBeans hands every discovered bean to the ProcessBean extensions.
func (c *Container) processBeans(ctx context.Context) []error {
	var (
		problems     []error
		reconfigured bool
	)

	for _, b := range c.registry.all() {
		if isContainerBean(b) {
			continue
		}

		for _, ext := range c.extensions {
			x, ok := ext.(ProcessBean)
			if !ok {
				continue
			}

			e := &ProcessBeanEvent{bean: b}
			e.open = true
			if err := x.ProcessBean(ctx, e); err != nil {
				problems = append(problems, err)
			}
			e.open = false
			reconfigured = true

			if e.vetoed {
				c.registry.remove(b.id)
				c.logger.Debug("bean vetoed", zap.String("bean", b.id), zap.String("extension", ext.Name()))

				break
			}
		}
	}

	if reconfigured {
		c.registry.reindex()
	}

	return problems
}

// isContainerBean reports whether the container itself supplies the bean.
func isContainerBean(b *Bean) bool {
	return b.kind == BeanBuiltin || b.id == activationInterceptorID
}

// descriptorFor returns the descriptor governing bean: its unit's, or the
// container descriptor for beans outside any unit.
func (c *Container) descriptorFor(b *Bean) *Descriptor {
	if b.unit != "" {
		if d := c.deployment.descriptor(b.unit); d != nil {
			return d
		}
	}

	return c.descriptor
}
