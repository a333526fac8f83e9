package harbor

import (
	"context"
)

// decoratorChain is the ordered set of decorator instances around one target.
type decoratorChain struct {
	bean      *Bean
	target    any
	beans     []*Bean
	instances []any
}

// Delegate is what a decorator receives for its delegate injection point. It
// forwards to the next decorator in the chain, or to the target once every
// decorator has been passed.
type Delegate struct {
	chain *decoratorChain
	pos   int
}

// Invoke implements Invoker. Decorators that do not implement a method are
// skipped.
func (d *Delegate) Invoke(ctx context.Context, method string, args ...any) ([]any, error) {
	res, err := d.chain.invokeFrom(ctx, d.pos, method, args)

	return asResults(res), err
}

// Target returns the decorated instance.
func (d *Delegate) Target() any { return d.chain.target }

func (d *Delegate) invokeFrom(ctx context.Context, pos int, method string, args []any) (any, error) {
	return d.chain.invokeFrom(ctx, d.pos+pos, method, args)
}

func (ch *decoratorChain) invokeFrom(ctx context.Context, pos int, method string, args []any) (any, error) {
	for i := pos; i < len(ch.beans); i++ {
		if m, ok := ch.beans[i].methods[method]; ok {
			return m.Call(ctx, ch.instances[i], args)
		}
	}

	m, ok := ch.bean.methods[method]
	if !ok {
		return nil, ErrUnknownMethod(ch.bean.id, method)
	}

	return m.Call(ctx, ch.target, args)
}

// decorate creates the decorator instances of bean around target as
// dependents of cc and returns the entry delegate.
func (c *Container) decorate(ctx context.Context, bean *Bean, model *InterceptionModel, target any, cc *CreationalContext) (*Delegate, error) {
	chain := &decoratorChain{
		bean:      bean,
		target:    target,
		beans:     model.decorators,
		instances: make([]any, len(model.decorators)),
	}

	// Innermost first, so each decorator's delegate is complete before the
	// decorator wrapping it is created.
	for i := len(model.decorators) - 1; i >= 0; i-- {
		d := model.decorators[i]
		dcc := cc.Child(c.contextual(d))
		dcc.delegate = &Delegate{chain: chain, pos: i + 1}

		instance, _, err := c.dependent.Get(ctx, c.contextual(d), dcc)
		if err != nil {
			return nil, err
		}
		chain.instances[i] = instance
	}

	return &Delegate{chain: chain, pos: 0}, nil
}
