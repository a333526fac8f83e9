package harbor

import (
	"context"
)

// Extension is a portable extension. It takes part in deployment by
// implementing any of BeforeBeanDiscovery, ProcessBean, AfterBeanDiscovery,
// AfterDeploymentValidation and BeforeShutdown.
type Extension interface {
	Name() string
}

// BeforeBeanDiscovery is called before the registered beans are processed.
type BeforeBeanDiscovery interface {
	BeforeBeanDiscovery(ctx context.Context, e *BeforeDiscoveryEvent) error
}

// ProcessBean is called once per discovered bean.
type ProcessBean interface {
	ProcessBean(ctx context.Context, e *ProcessBeanEvent) error
}

// AfterBeanDiscovery is called once every bean has been processed.
type AfterBeanDiscovery interface {
	AfterBeanDiscovery(ctx context.Context, e *AfterDiscoveryEvent) error
}

// AfterDeploymentValidation is called after validation, before the
// container starts serving.
type AfterDeploymentValidation interface {
	AfterDeploymentValidation(ctx context.Context, e *AfterValidationEvent) error
}

// BeforeShutdown is called when the container shuts down.
type BeforeShutdown interface {
	BeforeShutdown(ctx context.Context, c *Container) error
}

// phase guards an extension event handle to its callback.
type phase struct {
	open bool
}

func (p *phase) check(op string) error {
	if !p.open {
		return ErrExtensionPhase(op)
	}

	return nil
}

// BeforeDiscoveryEvent lets extensions declare scopes, stereotypes,
// interceptor binding types and beans.
type BeforeDiscoveryEvent struct {
	phase
	c *Container
}

// AddScope declares a custom scope.
func (e *BeforeDiscoveryEvent) AddScope(info ScopeInfo) error {
	if err := e.check("AddScope"); err != nil {
		return err
	}
	e.c.contexts.addScope(info)

	return nil
}

// AddStereotype declares a stereotype.
func (e *BeforeDiscoveryEvent) AddStereotype(st Stereotype) error {
	if err := e.check("AddStereotype"); err != nil {
		return err
	}
	e.c.DeclareStereotype(st)

	return nil
}

// AddInterceptorBinding declares an interceptor binding type and the bindings
// it is itself annotated with.
func (e *BeforeDiscoveryEvent) AddInterceptorBinding(bindingType string, meta ...Annotation) error {
	if err := e.check("AddInterceptorBinding"); err != nil {
		return err
	}
	e.c.DeclareInterceptorBinding(bindingType, meta...)

	return nil
}

// AddBean registers a bean.
func (e *BeforeDiscoveryEvent) AddBean(b *Bean) error {
	if err := e.check("AddBean"); err != nil {
		return err
	}

	return e.c.registry.register(b)
}

// ProcessBeanEvent exposes one discovered bean.
type ProcessBeanEvent struct {
	phase
	bean   *Bean
	vetoed bool
}

// Bean returns the processed bean.
func (e *ProcessBeanEvent) Bean() *Bean { return e.bean }

// Veto removes the bean from the deployment.
func (e *ProcessBeanEvent) Veto() error {
	if err := e.check("Veto"); err != nil {
		return err
	}
	e.vetoed = true

	return nil
}

// Configure applies options to the bean before validation.
func (e *ProcessBeanEvent) Configure(opts ...BeanOption) error {
	if err := e.check("Configure"); err != nil {
		return err
	}
	for _, opt := range opts {
		opt(e.bean)
	}

	return e.bean.finish()
}

// AfterDiscoveryEvent lets extensions add beans, contexts, observers and
// deployment problems.
type AfterDiscoveryEvent struct {
	phase
	c        *Container
	problems []error
}

// Container returns the container being deployed.
func (e *AfterDiscoveryEvent) Container() *Container { return e.c }

// AddBean registers a bean.
func (e *AfterDiscoveryEvent) AddBean(b *Bean) error {
	if err := e.check("AddBean"); err != nil {
		return err
	}

	return e.c.registry.register(b)
}

// AddContext registers a context for a custom scope.
func (e *AfterDiscoveryEvent) AddContext(ctx Context) error {
	if err := e.check("AddContext"); err != nil {
		return err
	}
	if _, ok := e.c.contexts.scope(ctx.Scope()); !ok {
		e.c.contexts.addScope(ScopeInfo{ID: ctx.Scope(), Normal: true})
	}
	e.c.contexts.addContext(ctx)

	return nil
}

// AddObserver registers an observer not declared by any bean.
func (e *AfterDiscoveryEvent) AddObserver(o *ObserverMethod) error {
	if err := e.check("AddObserver"); err != nil {
		return err
	}
	e.c.extraObservers = append(e.c.extraObservers, o)

	return nil
}

// AddProblem records a deployment problem.
func (e *AfterDiscoveryEvent) AddProblem(err error) {
	if e.open {
		e.problems = append(e.problems, err)
	}
}

// AfterValidationEvent lets extensions inspect the validated deployment and
// add problems.
type AfterValidationEvent struct {
	phase
	c        *Container
	problems []error
}

// Container returns the container being deployed.
func (e *AfterValidationEvent) Container() *Container { return e.c }

// AddProblem records a deployment problem.
func (e *AfterValidationEvent) AddProblem(err error) {
	if e.open {
		e.problems = append(e.problems, err)
	}
}
