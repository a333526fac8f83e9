package harbor

import (
	"context"
	"time"
)

// Middleware provides hooks for intercepting container operations.
// Middleware can be used for logging, metrics, security, testing, etc.
type Middleware interface {
	// BeforeResolve is called before a programmatic lookup.
	// Return error to abort resolution.
	BeforeResolve(ctx context.Context, required *Type, qualifiers []Annotation) error

	// AfterResolve is called after a programmatic lookup.
	// Called even if resolution failed (bean is nil and err is set).
	AfterResolve(ctx context.Context, required *Type, bean *Bean, err error) error

	// BeforeCreate is called before an instance of bean is created.
	// Return error to abort creation.
	BeforeCreate(ctx context.Context, bean *Bean) error

	// AfterCreate is called after an instance of bean was created.
	// Called even if creation failed.
	AfterCreate(ctx context.Context, bean *Bean, instance any, err error, elapsed time.Duration) error
}

// middlewareChain manages multiple middleware.
type middlewareChain struct {
	middleware []Middleware
}

// newMiddlewareChain creates a new middleware chain.
func newMiddlewareChain() *middlewareChain {
	return &middlewareChain{
		middleware: make([]Middleware, 0),
	}
}

// add appends middleware to the chain.
func (m *middlewareChain) add(middleware Middleware) {
	m.middleware = append(m.middleware, middleware)
}

func (m *middlewareChain) beforeResolve(ctx context.Context, required *Type, qualifiers []Annotation) error {
	for _, mw := range m.middleware {
		if err := mw.BeforeResolve(ctx, required, qualifiers); err != nil {
			return err
		}
	}

	return nil
}

func (m *middlewareChain) afterResolve(ctx context.Context, required *Type, bean *Bean, err error) error {
	for _, mw := range m.middleware {
		if mwErr := mw.AfterResolve(ctx, required, bean, err); mwErr != nil {
			return mwErr
		}
	}

	return nil
}

func (m *middlewareChain) beforeCreate(ctx context.Context, bean *Bean) error {
	for _, mw := range m.middleware {
		if err := mw.BeforeCreate(ctx, bean); err != nil {
			return err
		}
	}

	return nil
}

func (m *middlewareChain) afterCreate(ctx context.Context, bean *Bean, instance any, err error, elapsed time.Duration) error {
	for _, mw := range m.middleware {
		if mwErr := mw.AfterCreate(ctx, bean, instance, err, elapsed); mwErr != nil {
			return mwErr
		}
	}

	return nil
}

// FuncMiddleware is a middleware implemented with optional functions.
type FuncMiddleware struct {
	BeforeResolveFunc func(ctx context.Context, required *Type, qualifiers []Annotation) error
	AfterResolveFunc  func(ctx context.Context, required *Type, bean *Bean, err error) error
	BeforeCreateFunc  func(ctx context.Context, bean *Bean) error
	AfterCreateFunc   func(ctx context.Context, bean *Bean, instance any, err error, elapsed time.Duration) error
}

// BeforeResolve implements Middleware.
func (f *FuncMiddleware) BeforeResolve(ctx context.Context, required *Type, qualifiers []Annotation) error {
	if f.BeforeResolveFunc != nil {
		return f.BeforeResolveFunc(ctx, required, qualifiers)
	}

	return nil
}

// AfterResolve implements Middleware.
func (f *FuncMiddleware) AfterResolve(ctx context.Context, required *Type, bean *Bean, err error) error {
	if f.AfterResolveFunc != nil {
		return f.AfterResolveFunc(ctx, required, bean, err)
	}

	return nil
}

// BeforeCreate implements Middleware.
func (f *FuncMiddleware) BeforeCreate(ctx context.Context, bean *Bean) error {
	if f.BeforeCreateFunc != nil {
		return f.BeforeCreateFunc(ctx, bean)
	}

	return nil
}

// AfterCreate implements Middleware.
func (f *FuncMiddleware) AfterCreate(ctx context.Context, bean *Bean, instance any, err error, elapsed time.Duration) error {
	if f.AfterCreateFunc != nil {
		return f.AfterCreateFunc(ctx, bean, instance, err, elapsed)
	}

	return nil
}
