package harbor

import (
	"context"

	"go.uber.org/zap"
)

const activateRequestContextType = "ActivateRequestContext"

// ActivateRequestContext is an interceptor binding. Business methods of a
// bean bound by it run inside a request context, activated for the call
// unless one is already active and torn down when the call returns.
var ActivateRequestContext = NewAnnotation(activateRequestContextType)

// activationInterceptorID is the id of the built-in activation interceptor.
const activationInterceptorID = "harbor.ActivateRequestContextInterceptor"

type requestActivator struct {
	c *Container
}

func activationInterceptor() *Bean {
	return NewBean(activationInterceptorID,
		WithTypes(TypeOf[*requestActivator]()),
		WithConstructor(func(_ context.Context, args []any) (any, error) {
			return &requestActivator{c: args[0].(*Container)}, nil
		}, InjectOf[*Container]()),
		AsInterceptor(ActivateRequestContext),
		Intercepts(AroundInvoke, activateRequest),
		Intercepts(AroundTimeout, activateRequest),
		WithPriority(PriorityPlatformBefore+100),
	)
}

func activateRequest(interceptor any, ic *InvocationContext) (any, error) {
	a := interceptor.(*requestActivator)
	outer := ic.Context()

	if a.c.request.IsActive(outer) {
		return ic.Proceed()
	}

	rctx, err := a.c.request.Activate(outer, nil)
	if err != nil {
		return nil, err
	}

	ic.SetContext(rctx)
	defer ic.SetContext(outer)

	res, err := ic.Proceed()

	if ierr := a.c.request.Invalidate(rctx); ierr != nil {
		a.c.logger.Warn("failed to invalidate request context", zap.Error(ierr))
	}
	if derr := a.c.request.Deactivate(rctx); derr != nil && err == nil {
		err = derr
	}

	return res, err
}
