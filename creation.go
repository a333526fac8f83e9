package harbor

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// beanContextual adapts a bean to the Contextual contract used by contexts.
type beanContextual struct {
	c    *Container
	bean *Bean
}

func (b *beanContextual) ID() string { return b.bean.id }

// Bean returns the bean definition.
func (b *beanContextual) Bean() *Bean { return b.bean }

func (b *beanContextual) Create(ctx context.Context, cc *CreationalContext) (any, error) {
	return b.c.createInstance(ctx, b.bean, cc)
}

func (b *beanContextual) Destroy(ctx context.Context, instance any, cc *CreationalContext) error {
	return b.c.destroyInstance(ctx, b.bean, instance, cc)
}

func (b *beanContextual) observableDestruction() bool {
	return b.bean.hasObservableDestruction(b.c.interceptionModel(b.bean))
}

// contextual returns the shared Contextual of bean.
func (c *Container) contextual(bean *Bean) *beanContextual {
	if v, ok := c.contextuals.Load(bean.id); ok {
		return v.(*beanContextual)
	}

	v, _ := c.contextuals.LoadOrStore(bean.id, &beanContextual{c: c, bean: bean})

	return v.(*beanContextual)
}

// newCreationalContext creates a root creational context using the
// container logger.
func (c *Container) newCreationalContext(bean *Bean) *CreationalContext {
	cc := NewCreationalContext(c.contextual(bean))
	cc.logger = c.logger

	return cc
}

// createInstance creates an instance of bean, reporting to middleware.
func (c *Container) createInstance(ctx context.Context, bean *Bean, cc *CreationalContext) (any, error) {
	if err := c.middleware.beforeCreate(ctx, bean); err != nil {
		return nil, err
	}

	start := time.Now()

	var (
		instance any
		err      error
	)
	switch bean.kind {
	case BeanBuiltin:
		instance, err = bean.builtin(ctx, c, cc)
	case BeanProducer:
		instance, err = c.produce(ctx, bean, cc)
	default:
		instance, err = c.construct(ctx, bean, cc)
	}

	if mwErr := c.middleware.afterCreate(ctx, bean, instance, err, time.Since(start)); mwErr != nil && err == nil {
		err = mwErr
	}

	if err != nil {
		return nil, err
	}

	return instance, nil
}

// construct creates a managed bean instance: constructor injection,
// around-construct, field and initializer injection, post-construct.
func (c *Container) construct(ctx context.Context, bean *Bean, cc *CreationalContext) (instance any, err error) {
	defer func() {
		if err != nil {
			if rerr := cc.Release(ctx); rerr != nil {
				c.logger.Warn("failed to release dependents after creation failure",
					zap.String("bean", bean.id),
					zap.Error(rerr),
				)
			}
		}
	}()

	model := c.interceptionModel(bean)

	interceptors, err := c.interceptorInstances(ctx, model, cc)
	if err != nil {
		return nil, err
	}

	args, err := c.resolveParams(ctx, bean.constructor.params, cc)
	if err != nil {
		return nil, err
	}

	if model.HasAroundConstruct() {
		instance, err = c.aroundConstruct(ctx, bean, model, interceptors, args)
	} else {
		instance, err = bean.constructor.create(ctx, args)
	}
	if err != nil {
		return nil, err
	}

	if bean.decorator != nil && bean.decorator.set != nil && cc.delegate != nil {
		if err := bean.decorator.set(instance, cc.delegate); err != nil {
			return nil, err
		}
	}

	for _, f := range bean.fields {
		v, err := c.injectableReference(ctx, f.point, cc)
		if err != nil {
			return nil, err
		}
		if err := f.set(instance, v); err != nil {
			return nil, err
		}
	}

	for _, in := range bean.initializers {
		args, err := c.resolveParams(ctx, in.params, cc)
		if err != nil {
			return nil, err
		}
		if err := in.call(ctx, instance, args); err != nil {
			return nil, err
		}
	}

	if err := c.runLifecycle(ctx, PostConstruct, model, interceptors, instance, bean.postConstruct); err != nil {
		return nil, err
	}

	if !model.wraps() {
		return instance, nil
	}

	wrapped := &Intercepted{
		c:            c,
		bean:         bean,
		model:        model,
		target:       instance,
		interceptors: interceptors,
	}
	if len(model.decorators) > 0 {
		wrapped.decorators, err = c.decorate(ctx, bean, model, instance, cc)
		if err != nil {
			return nil, err
		}
	}

	return wrapped, nil
}

// interceptorInstances creates one instance of every interceptor bound to the
// bean, as dependents of cc. They are always retained so pre-destroy
// interceptors can be invoked on them later.
func (c *Container) interceptorInstances(ctx context.Context, model *InterceptionModel, cc *CreationalContext) (map[string]any, error) {
	if len(model.all) == 0 {
		return nil, nil
	}

	instances := make(map[string]any, len(model.all))
	for _, ib := range model.all {
		contextual := c.contextual(ib)
		child := cc.Child(contextual)
		child.keep = true

		instance, _, err := c.dependent.Get(ctx, contextual, child)
		if err != nil {
			return nil, err
		}
		instances[ib.id] = instance
	}

	return instances, nil
}

func (c *Container) aroundConstruct(ctx context.Context, bean *Bean, model *InterceptionModel, instances map[string]any, args []any) (any, error) {
	chain := make([]chainLink, 0, len(model.lifecycle[AroundConstruct]))
	for _, ib := range model.lifecycle[AroundConstruct] {
		chain = append(chain, chainLink{instance: instances[ib.id], fn: ib.interceptor.methods[AroundConstruct]})
	}

	ic := &InvocationContext{
		ctx:      ctx,
		kind:     AroundConstruct,
		params:   args,
		bindings: model.bindings,
		chain:    chain,
		terminal: func(ic *InvocationContext) (any, error) {
			instance, err := bean.constructor.create(ic.ctx, ic.params)
			if err != nil {
				return nil, err
			}
			ic.target = instance

			return instance, nil
		},
	}

	if _, err := ic.Proceed(); err != nil {
		return nil, err
	}
	if ic.target == nil {
		return nil, ErrInvalidBean(bean.id, "around-construct chain did not proceed to the constructor")
	}

	return ic.target, nil
}

// destroyInstance runs pre-destroy (or the disposer) and then releases the
// dependents of the instance.
func (c *Container) destroyInstance(ctx context.Context, bean *Bean, instance any, cc *CreationalContext) error {
	var err error

	switch bean.kind {
	case BeanProducer:
		if bean.disposer != nil {
			err = c.dispose(ctx, bean, instance)
		}
	case BeanManaged:
		model := c.interceptionModel(bean)
		var interceptors map[string]any
		if w, ok := instance.(*Intercepted); ok {
			interceptors = w.interceptors
		} else if len(model.lifecycle[PreDestroy]) > 0 && cc != nil {
			interceptors = c.retainedInterceptors(model, cc)
		}
		err = c.runLifecycle(ctx, PreDestroy, model, interceptors, unwrap(instance), bean.preDestroy)
	}

	if cc != nil {
		err = multierr.Append(err, cc.Release(ctx))
	}

	return err
}

// retainedInterceptors recovers interceptor instances from the dependents
// retained in cc.
func (c *Container) retainedInterceptors(model *InterceptionModel, cc *CreationalContext) map[string]any {
	instances := make(map[string]any)
	for _, dep := range cc.Dependents() {
		id := dep.Contextual.ID()
		for _, ib := range model.all {
			if ib.id == id {
				instances[id] = dep.Instance
			}
		}
	}

	return instances
}

// resolveParams resolves each injection point to an injectable reference.
func (c *Container) resolveParams(ctx context.Context, params []*InjectionPoint, cc *CreationalContext) ([]any, error) {
	if len(params) == 0 {
		return nil, nil
	}

	args := make([]any, len(params))
	for i, ip := range params {
		v, err := c.injectableReference(ctx, ip, cc)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	return args, nil
}

// injectableReference resolves ip and returns the reference to inject.
// Dependent beans are created as dependents of cc.
func (c *Container) injectableReference(ctx context.Context, ip *InjectionPoint, cc *CreationalContext) (any, error) {
	bean, err := c.resolveBean(ip.Type, ip.Qualifiers, ip)
	if err != nil {
		return nil, ErrInjection(ip, err)
	}

	if bean.scope == ScopeDependent {
		contextual := c.contextual(bean)
		child := cc.Child(contextual)
		child.point = ip

		instance, _, err := c.dependent.Get(ctx, contextual, child)

		return instance, err
	}

	return c.reference(ctx, bean)
}

// reference returns the contextual reference of a non-dependent bean: a
// client proxy for normal scopes, the instance itself for pseudo-scopes.
func (c *Container) reference(ctx context.Context, bean *Bean) (any, error) {
	info, ok := c.contexts.scope(bean.scope)
	if !ok {
		return nil, ErrUnknownScope(bean.scope)
	}

	if info.Normal {
		return c.clientProxy(bean)
	}

	return c.contextualInstance(ctx, bean)
}

// contextualInstance returns the instance of bean held by the active context
// of its scope, creating it when absent.
func (c *Container) contextualInstance(ctx context.Context, bean *Bean) (any, error) {
	scoped, err := c.contexts.active(ctx, bean.scope)
	if err != nil {
		return nil, err
	}

	instance, _, err := scoped.Get(ctx, c.contextual(bean), c.newCreationalContext(bean))

	return instance, err
}

// Reference returns a contextual reference for bean. Dependent instances are
// created as dependents of cc, or of a fresh creational context when cc is nil.
func (c *Container) Reference(ctx context.Context, bean *Bean, cc *CreationalContext) (any, error) {
	if bean.scope != ScopeDependent {
		return c.reference(ctx, bean)
	}

	if cc == nil {
		cc = c.newCreationalContext(bean)
	}

	contextual := c.contextual(bean)
	instance, _, err := c.dependent.Get(ctx, contextual, cc.Child(contextual))

	return instance, err
}
