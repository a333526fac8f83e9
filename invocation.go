package harbor

import (
	"context"

	"github.com/xraph/go-utils/errs"
)

// Invoker invokes business methods by name. Intercepted instances, decorator
// delegates and client proxies are Invokers.
type Invoker interface {
	Invoke(ctx context.Context, method string, args ...any) ([]any, error)
}

// Invoke calls a business method on a reference obtained from the container.
func Invoke(ctx context.Context, ref any, method string, args ...any) ([]any, error) {
	inv, ok := ref.(Invoker)
	if !ok {
		return nil, errs.NewError(CodeUnknownMethod, "reference does not support method invocation", nil).
			WithContext("method", method)
	}

	return inv.Invoke(ctx, method, args...)
}

type chainLink struct {
	instance any
	fn       InterceptorFunc
}

// InvocationContext is the state of one intercepted invocation, shared by
// every interceptor in the chain.
type InvocationContext struct {
	ctx      context.Context
	kind     InterceptionType
	target   any
	method   *Method
	params   []any
	data     map[string]any
	bindings []Annotation
	chain    []chainLink
	pos      int
	terminal func(ic *InvocationContext) (any, error)
}

// Proceed invokes the next interceptor, or the target when the chain is
// exhausted.
func (ic *InvocationContext) Proceed() (any, error) {
	i := ic.pos
	if i >= len(ic.chain) {
		return ic.terminal(ic)
	}

	ic.pos++
	defer func() { ic.pos = i }()

	link := ic.chain[i]

	return link.fn(link.instance, ic)
}

// Context returns the context.Context of the invocation.
func (ic *InvocationContext) Context() context.Context { return ic.ctx }

// SetContext replaces the context.Context passed down the chain.
func (ic *InvocationContext) SetContext(ctx context.Context) { ic.ctx = ctx }

// Kind returns the interception type.
func (ic *InvocationContext) Kind() InterceptionType { return ic.kind }

// Target returns the target instance. During around-construct it is nil
// until Proceed has returned.
func (ic *InvocationContext) Target() any { return ic.target }

// Method returns the invoked business method, or nil for lifecycle callbacks.
func (ic *InvocationContext) Method() *Method { return ic.method }

// Parameters returns the invocation arguments.
func (ic *InvocationContext) Parameters() []any { return ic.params }

// SetParameters replaces the invocation arguments.
func (ic *InvocationContext) SetParameters(params []any) { ic.params = params }

// ContextData returns data shared by the interceptors of this invocation.
func (ic *InvocationContext) ContextData() map[string]any {
	if ic.data == nil {
		ic.data = make(map[string]any)
	}

	return ic.data
}

// Bindings returns the interceptor bindings in effect for the invocation.
func (ic *InvocationContext) Bindings() []Annotation { return ic.bindings }

// Intercepted wraps an instance whose business methods are intercepted or
// decorated. Interceptors run outside the decorators; the bean's own
// around-invoke method runs innermost.
type Intercepted struct {
	c            *Container
	bean         *Bean
	model        *InterceptionModel
	target       any
	interceptors map[string]any
	decorators   *Delegate
}

// Target returns the wrapped instance.
func (i *Intercepted) Target() any { return i.target }

// Bean returns the bean the instance belongs to.
func (i *Intercepted) Bean() *Bean { return i.bean }

// Invoke implements Invoker.
func (i *Intercepted) Invoke(ctx context.Context, name string, args ...any) ([]any, error) {
	method, ok := i.bean.methods[name]
	if !ok {
		return nil, ErrUnknownMethod(i.bean.id, name)
	}

	kind := AroundInvoke
	if method.Timeout {
		kind = AroundTimeout
	}

	chain := make([]chainLink, 0, len(i.model.methods[name])+1)
	for _, ib := range i.model.methods[name] {
		chain = append(chain, chainLink{instance: i.interceptors[ib.id], fn: ib.interceptor.methods[kind]})
	}
	if i.bean.aroundInvoke != nil && kind == AroundInvoke {
		chain = append(chain, chainLink{instance: i.target, fn: i.bean.aroundInvoke})
	}

	ic := &InvocationContext{
		ctx:      ctx,
		kind:     kind,
		target:   i.target,
		method:   method,
		params:   args,
		bindings: i.model.bindings,
		chain:    chain,
		terminal: func(ic *InvocationContext) (any, error) {
			if i.decorators != nil {
				return i.decorators.invokeFrom(ic.ctx, 0, name, ic.params)
			}

			return method.Call(ic.ctx, i.target, ic.params)
		},
	}

	res, err := ic.Proceed()

	return asResults(res), err
}

// asResults converts a chain result back into method results. A short
// circuit may return a single value instead of a result slice.
func asResults(v any) []any {
	switch r := v.(type) {
	case nil:
		return nil
	case []any:
		return r
	default:
		return []any{r}
	}
}

// unwrap returns the raw instance behind an intercepted wrapper.
func unwrap(instance any) any {
	if i, ok := instance.(*Intercepted); ok {
		return i.target
	}

	return instance
}

// runLifecycle runs a lifecycle interception chain around callbacks.
func (c *Container) runLifecycle(ctx context.Context, kind InterceptionType, model *InterceptionModel, instances map[string]any, target any, callbacks []LifecycleFunc) error {
	chain := make([]chainLink, 0, len(model.lifecycle[kind]))
	for _, ib := range model.lifecycle[kind] {
		chain = append(chain, chainLink{instance: instances[ib.id], fn: ib.interceptor.methods[kind]})
	}

	if len(chain) == 0 {
		for _, cb := range callbacks {
			if err := cb(ctx, target); err != nil {
				return err
			}
		}

		return nil
	}

	ic := &InvocationContext{
		ctx:      ctx,
		kind:     kind,
		target:   target,
		bindings: model.bindings,
		chain:    chain,
		terminal: func(ic *InvocationContext) (any, error) {
			for _, cb := range callbacks {
				if err := cb(ic.ctx, ic.target); err != nil {
					return nil, err
				}
			}

			return nil, nil
		},
	}

	_, err := ic.Proceed()

	return err
}
