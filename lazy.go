package harbor

import (
	"context"
	"fmt"
	"sync"
)

// Lazy wraps a dependency that is resolved on first access.
// This is useful for deferring resolution of expensive beans until they're
// actually needed, or for reaching beans of a scope that is not active yet.
type Lazy[T any] struct {
	instance *Instance
	mu       sync.Mutex
	value    T
	err      error
	resolved bool
}

// NewLazy creates a lazy reference to the bean of type T with the given
// qualifiers.
func NewLazy[T any](c *Container, qualifiers ...Annotation) *Lazy[T] {
	return &Lazy[T]{instance: c.Instance(TypeOf[T](), qualifiers...)}
}

// Get resolves the dependency and returns it.
// A successful resolution is cached; a failed one is retried on the next call.
// Normal-scoped beans are looked up in their active context on every call.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.resolved {
		return l.value, nil
	}

	ref, err := l.instance.Get(ctx)
	if err != nil {
		var zero T
		l.err = err

		return zero, err
	}

	typed, err := Resolve[T](ctx, ref)
	if err != nil {
		l.err = err

		return typed, err
	}

	if _, isProxy := ref.(*ClientProxy); isProxy {
		// the instance behind a proxy depends on the active context
		return typed, nil
	}

	l.value = typed
	l.err = nil
	l.resolved = true

	return typed, nil
}

// MustGet resolves the dependency and returns it, panicking on error.
func (l *Lazy[T]) MustGet(ctx context.Context) T {
	value, err := l.Get(ctx)
	if err != nil {
		panic(fmt.Sprintf("lazy dependency %s failed: %v", l.instance.typ, err))
	}

	return value
}

// IsResolved returns true if the dependency has been resolved.
func (l *Lazy[T]) IsResolved() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.resolved
}

// Err returns the error of the last failed resolution.
func (l *Lazy[T]) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.err
}

// Release destroys the dependent instances created by the lazy reference.
func (l *Lazy[T]) Release(ctx context.Context) error {
	return l.instance.Release(ctx)
}

// Provider wraps a dependency that is looked up on each access.
// With a dependent bean every call returns a fresh instance.
type Provider[T any] struct {
	instance *Instance
}

// NewProvider creates a provider of beans of type T with the given qualifiers.
func NewProvider[T any](c *Container, qualifiers ...Annotation) *Provider[T] {
	return &Provider[T]{instance: c.Instance(TypeOf[T](), qualifiers...)}
}

// Provide looks the bean up and returns the current instance.
func (p *Provider[T]) Provide(ctx context.Context) (T, error) {
	ref, err := p.instance.Get(ctx)
	if err != nil {
		var zero T

		return zero, err
	}

	return Resolve[T](ctx, ref)
}

// MustProvide is like Provide but panics on error.
func (p *Provider[T]) MustProvide(ctx context.Context) T {
	value, err := p.Provide(ctx)
	if err != nil {
		panic(fmt.Sprintf("provider %s failed: %v", p.instance.typ, err))
	}

	return value
}

// Release destroys the dependent instances handed out so far.
func (p *Provider[T]) Release(ctx context.Context) error {
	return p.instance.Release(ctx)
}
