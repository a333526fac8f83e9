package harbor

import (
	"context"
)

// TargetSource returns the contextual instance a client proxy currently
// points at, creating it in the active context when absent.
type TargetSource func(ctx context.Context) (any, error)

// ProxyFactory creates client proxies for normal-scoped beans. A factory can
// return any object implementing the bean's types, typically a hand-written
// or generated struct forwarding every call through target.
type ProxyFactory interface {
	ClientProxy(bean *Bean, target TargetSource) (any, error)
}

// ProxyFactoryFunc adapts a function to ProxyFactory.
type ProxyFactoryFunc func(bean *Bean, target TargetSource) (any, error)

// ClientProxy implements ProxyFactory.
func (f ProxyFactoryFunc) ClientProxy(bean *Bean, target TargetSource) (any, error) {
	return f(bean, target)
}

type defaultProxyFactory struct{}

func (defaultProxyFactory) ClientProxy(bean *Bean, target TargetSource) (any, error) {
	return &ClientProxy{bean: bean, target: target}, nil
}

// ClientProxy is the default client proxy. Every call looks the instance up
// in the context active for the call's context.Context.
type ClientProxy struct {
	bean   *Bean
	target TargetSource
}

// Bean returns the proxied bean.
func (p *ClientProxy) Bean() *Bean { return p.bean }

// Instance returns the current contextual instance.
func (p *ClientProxy) Instance(ctx context.Context) (any, error) {
	return p.target(ctx)
}

// Invoke implements Invoker.
func (p *ClientProxy) Invoke(ctx context.Context, method string, args ...any) ([]any, error) {
	instance, err := p.target(ctx)
	if err != nil {
		return nil, err
	}

	if inv, ok := instance.(Invoker); ok {
		return inv.Invoke(ctx, method, args...)
	}

	m, ok := p.bean.methods[method]
	if !ok {
		return nil, ErrUnknownMethod(p.bean.id, method)
	}

	return m.Call(ctx, instance, args)
}

// Resolve returns the current contextual instance behind a client proxy, or
// the reference itself when it is not a proxy.
func Resolve[T any](ctx context.Context, ref any) (T, error) {
	var zero T

	if p, ok := ref.(*ClientProxy); ok {
		instance, err := p.Instance(ctx)
		if err != nil {
			return zero, err
		}
		ref = instance
	}

	if v, ok := ref.(T); ok {
		return v, nil
	}
	if v, ok := unwrap(ref).(T); ok {
		return v, nil
	}

	return zero, ErrTypeMismatch(TypeOf[T](), ref)
}

// clientProxy returns the cached client proxy of a normal-scoped bean.
func (c *Container) clientProxy(bean *Bean) (any, error) {
	if p, ok := c.proxyCache.Load(bean.id); ok {
		return p, nil
	}

	p, err := c.proxies.ClientProxy(bean, func(ctx context.Context) (any, error) {
		return c.contextualInstance(ctx, bean)
	})
	if err != nil {
		return nil, err
	}

	actual, _ := c.proxyCache.LoadOrStore(bean.id, p)

	return actual, nil
}
