package harbor

import (
	"context"
	"fmt"
)

// Get resolves the bean of type T with type safety. Normal-scoped beans are
// returned as the current instance of their active context, not as a proxy.
// Dependent instances whose destruction is observable are destroyed at
// Shutdown; use Instance to release them earlier.
func Get[T any](ctx context.Context, c *Container, qualifiers ...Annotation) (T, error) {
	ref, err := c.lookup(TypeOf[T](), qualifiers...).Get(ctx)
	if err != nil {
		var zero T

		return zero, err
	}

	return Resolve[T](ctx, ref)
}

// MustGet resolves or panics - use only during startup.
func MustGet[T any](ctx context.Context, c *Container, qualifiers ...Annotation) T {
	instance, err := Get[T](ctx, c, qualifiers...)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %s: %v", TypeOf[T](), err))
	}

	return instance
}

// GetNamed resolves the bean of type T named name.
func GetNamed[T any](ctx context.Context, c *Container, name string) (T, error) {
	return Get[T](ctx, c, Named(name))
}

// Provide creates a managed bean of type T built by factory.
func Provide[T any](id string, factory func(ctx context.Context) (T, error), opts ...BeanOption) *Bean {
	all := make([]BeanOption, 0, len(opts)+2)
	all = append(all,
		WithTypes(TypeOf[T]()),
		WithConstructor(func(ctx context.Context, _ []any) (any, error) {
			return factory(ctx)
		}),
	)

	return NewBean(id, append(all, opts...)...)
}

// ProvideValue creates a singleton bean holding a pre-built instance.
func ProvideValue[T any](id string, instance T, opts ...BeanOption) *Bean {
	all := make([]BeanOption, 0, len(opts)+3)
	all = append(all,
		WithTypes(TypeOf[T]()),
		Singleton(),
		WithConstructor(func(context.Context, []any) (any, error) {
			return instance, nil
		}),
	)

	return NewBean(id, append(all, opts...)...)
}

// ProvideAs creates a managed bean of implementation type T that is also
// exposed as interface type I.
func ProvideAs[I, T any](id string, factory func(ctx context.Context) (T, error), opts ...BeanOption) *Bean {
	return Provide(id, factory, append([]BeanOption{WithTypes(TypeOf[I]())}, opts...)...)
}

// RegisterSingleton is a convenience wrapper for singleton beans.
func RegisterSingleton[T any](c *Container, id string, factory func(ctx context.Context) (T, error)) error {
	return c.Register(Provide(id, factory, Singleton()))
}

// RegisterApplicationScoped is a convenience wrapper for application-scoped beans.
func RegisterApplicationScoped[T any](c *Container, id string, factory func(ctx context.Context) (T, error)) error {
	return c.Register(Provide(id, factory, ApplicationScoped()))
}

// RegisterRequestScoped is a convenience wrapper for request-scoped beans.
func RegisterRequestScoped[T any](c *Container, id string, factory func(ctx context.Context) (T, error)) error {
	return c.Register(Provide(id, factory, RequestScoped()))
}

// RegisterDependent is a convenience wrapper for dependent beans.
func RegisterDependent[T any](c *Container, id string, factory func(ctx context.Context) (T, error)) error {
	return c.Register(Provide(id, factory))
}

// RegisterValue registers a pre-built instance (always singleton).
func RegisterValue[T any](c *Container, id string, instance T) error {
	return c.Register(ProvideValue(id, instance))
}

// RegisterConstructor registers a bean built from a Go constructor function.
func RegisterConstructor(c *Container, id string, constructor any, opts ...BeanOption) error {
	b, err := ConstructorBean(id, constructor, opts...)
	if err != nil {
		return err
	}

	return c.Register(b)
}

// InRequest is like RunInRequest but returns a value.
func InRequest[T any](ctx context.Context, c *Container, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := c.RunInRequest(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v

		return err
	})

	return out, err
}

// FireTyped fires an event whose type is the Go type T, so observers of T
// match even when the payload's dynamic type is a subtype of an interface T.
func FireTyped[T any](ctx context.Context, c *Container, payload T, qualifiers ...Annotation) error {
	return c.FireEvent(ctx, TypeOf[T](), payload, qualifiers...)
}

// All resolves every enabled bean of type T carrying the qualifiers, in
// registration order. Unlike Get it does not disambiguate, so alternatives
// and their defaults are all returned.
func All[T any](ctx context.Context, c *Container, qualifiers ...Annotation) ([]T, error) {
	var out []T
	err := c.lookup(TypeOf[T](), qualifiers...).Each(ctx, func(_ *Bean, ref any) error {
		v, err := Resolve[T](ctx, ref)
		if err != nil {
			return err
		}
		out = append(out, v)

		return nil
	})

	return out, err
}
