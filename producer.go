package harbor

import (
	"context"

	"go.uber.org/zap"
)

// produce calls a producer on its receiver. A dependent receiver is created
// for the call and destroyed right after it.
func (c *Container) produce(ctx context.Context, bean *Bean, cc *CreationalContext) (any, error) {
	receiver, release, err := c.receiver(ctx, bean)
	if err != nil {
		return nil, err
	}
	defer release()

	args, err := c.resolveParams(ctx, bean.producer.params, cc)
	if err != nil {
		if rerr := cc.Release(ctx); rerr != nil {
			c.logger.Warn("failed to release producer dependents", zap.String("bean", bean.id), zap.Error(rerr))
		}

		return nil, err
	}

	instance, err := bean.producer.produce(ctx, receiver, args)
	if err != nil {
		if rerr := cc.Release(ctx); rerr != nil {
			c.logger.Warn("failed to release producer dependents", zap.String("bean", bean.id), zap.Error(rerr))
		}

		return nil, err
	}

	if instance == nil && bean.scope != ScopeDependent {
		if rerr := cc.Release(ctx); rerr != nil {
			c.logger.Warn("failed to release producer dependents", zap.String("bean", bean.id), zap.Error(rerr))
		}

		return nil, ErrIllegalProduct(bean.id)
	}

	return instance, nil
}

// dispose calls the disposer of a producer bean. Disposer parameters are
// resolved in a creational context of their own, released afterwards.
func (c *Container) dispose(ctx context.Context, bean *Bean, instance any) error {
	receiver, release, err := c.receiver(ctx, bean)
	if err != nil {
		return err
	}
	defer release()

	cc := c.newCreationalContext(bean)
	defer func() {
		if rerr := cc.Release(ctx); rerr != nil {
			c.logger.Warn("failed to release disposer dependents", zap.String("bean", bean.id), zap.Error(rerr))
		}
	}()

	args, err := c.resolveParams(ctx, bean.disposer.params, cc)
	if err != nil {
		return err
	}

	return bean.disposer.dispose(ctx, receiver, instance, args)
}

// receiver returns the raw receiver instance of a producer bean and a release
// function destroying it when it was created only for this call.
func (c *Container) receiver(ctx context.Context, bean *Bean) (any, func(), error) {
	noop := func() {}
	if bean.producer.static {
		return nil, noop, nil
	}

	rb, ok := c.registry.get(bean.producer.receiver)
	if !ok {
		return nil, noop, ErrInvalidBean(bean.id, "unknown producer receiver '"+bean.producer.receiver+"'")
	}

	if rb.scope != ScopeDependent {
		instance, err := c.contextualInstance(ctx, rb)
		if err != nil {
			return nil, noop, err
		}

		return unwrap(instance), noop, nil
	}

	rcc := c.newCreationalContext(rb)
	instance, err := c.createInstance(ctx, rb, rcc)
	if err != nil {
		return nil, noop, err
	}

	release := func() {
		if err := c.destroyInstance(ctx, rb, instance, rcc); err != nil {
			c.logger.Warn("failed to destroy dependent producer receiver",
				zap.String("bean", rb.id),
				zap.Error(err),
			)
		}
	}

	return unwrap(instance), release, nil
}
