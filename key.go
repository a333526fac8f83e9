package harbor

import (
	"context"
	"fmt"
)

// Key provides type-safe bean identification: a Go type plus the qualifiers
// a lookup requires. Declare keys once and use them on both sides of an
// injection.
//
// Example:
//
//	var PrimaryDB = harbor.NamedKey[*sql.DB]("primary")
//
//	c.MustRegister(PrimaryDB.Bean("db.primary", openPrimary, harbor.ApplicationScoped()))
//	db, err := harbor.ResolveKey(ctx, c, PrimaryDB)
type Key[T any] struct {
	qualifiers []Annotation
}

// NewKey creates a key for beans of type T with the given qualifiers.
func NewKey[T any](qualifiers ...Annotation) Key[T] {
	return Key[T]{qualifiers: append([]Annotation(nil), qualifiers...)}
}

// NamedKey creates a key for the bean of type T named name.
func NamedKey[T any](name string) Key[T] {
	return NewKey[T](Named(name))
}

// Type returns the bean type the key requires.
func (k Key[T]) Type() *Type { return TypeOf[T]() }

// Qualifiers returns the qualifiers the key requires.
func (k Key[T]) Qualifiers() []Annotation { return k.qualifiers }

func (k Key[T]) String() string {
	if len(k.qualifiers) == 0 {
		return k.Type().String()
	}

	return fmt.Sprintf("%s %s", formatAnnotations(k.qualifiers), k.Type())
}

// Point returns an injection point for the key, for use in bean options.
func (k Key[T]) Point() *InjectionPoint {
	return Inject(k.Type(), k.qualifiers...)
}

// Bean creates a managed bean of type T carrying the key's qualifiers. A
// Named qualifier also sets the bean name.
func (k Key[T]) Bean(id string, factory func(ctx context.Context) (T, error), opts ...BeanOption) *Bean {
	keyed := make([]BeanOption, 0, len(opts)+2)
	if len(k.qualifiers) > 0 {
		keyed = append(keyed, WithQualifiers(k.qualifiers...))
	}
	for _, q := range k.qualifiers {
		if q.Type() == "Named" {
			if name, ok := q.Value("value"); ok {
				keyed = append(keyed, WithName(fmt.Sprint(name)))
			}
		}
	}

	return Provide(id, factory, append(keyed, opts...)...)
}

// RegisterKey registers a bean built by factory under key.
func RegisterKey[T any](c *Container, id string, key Key[T], factory func(ctx context.Context) (T, error), opts ...BeanOption) error {
	return c.Register(key.Bean(id, factory, opts...))
}

// ResolveKey resolves the bean identified by key.
func ResolveKey[T any](ctx context.Context, c *Container, key Key[T]) (T, error) {
	return Get[T](ctx, c, key.qualifiers...)
}

// MustKey resolves the bean identified by key and panics on error.
func MustKey[T any](ctx context.Context, c *Container, key Key[T]) T {
	result, err := ResolveKey(ctx, c, key)
	if err != nil {
		panic(err)
	}

	return result
}

// HasKey reports whether exactly one bean satisfies key.
func HasKey[T any](c *Container, key Key[T]) bool {
	return c.Instance(key.Type(), key.qualifiers...).IsResolvable()
}
