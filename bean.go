package harbor

import (
	"context"
	"fmt"
)

// BeanKind distinguishes how a bean produces its instances.
type BeanKind uint8

const (
	// BeanManaged beans are constructed from a constructor and injected members.
	BeanManaged BeanKind = iota
	// BeanProducer beans are produced by a method or field of a receiver bean.
	BeanProducer
	// BeanBuiltin beans are supplied by the container itself.
	BeanBuiltin
)

func (k BeanKind) String() string {
	switch k {
	case BeanProducer:
		return "producer"
	case BeanBuiltin:
		return "builtin"
	default:
		return "managed"
	}
}

// ConstructFunc instantiates a managed bean from its resolved constructor arguments.
type ConstructFunc func(ctx context.Context, args []any) (any, error)

// FieldFunc assigns an injected value to a field of instance.
type FieldFunc func(instance any, value any) error

// InitializerFunc calls an initializer method with its resolved arguments.
type InitializerFunc func(ctx context.Context, instance any, args []any) error

// LifecycleFunc is a post-construct or pre-destroy callback.
type LifecycleFunc func(ctx context.Context, instance any) error

// MethodFunc invokes a business method on target.
type MethodFunc func(ctx context.Context, target any, args []any) ([]any, error)

// ProduceFunc produces an instance from a receiver (nil for static producers).
type ProduceFunc func(ctx context.Context, receiver any, args []any) (any, error)

// DisposeFunc disposes a produced instance.
type DisposeFunc func(ctx context.Context, receiver any, instance any, args []any) error

// Method is a business method exposed for interception and decoration.
type Method struct {
	Name     string
	Bindings []Annotation
	Call     MethodFunc

	// Timeout methods are intercepted by around-timeout instead of around-invoke.
	Timeout bool
}

type constructorSpec struct {
	params []*InjectionPoint
	create ConstructFunc
}

type fieldSpec struct {
	point *InjectionPoint
	set   FieldFunc
}

type initializerSpec struct {
	name   string
	params []*InjectionPoint
	call   InitializerFunc
}

type producerSpec struct {
	receiver string
	static   bool
	params   []*InjectionPoint
	produce  ProduceFunc
}

type disposerSpec struct {
	params  []*InjectionPoint
	dispose DisposeFunc
}

type interceptorSpec struct {
	bindings []Annotation
	methods  map[InterceptionType]InterceptorFunc
}

type decoratorSpec struct {
	delegate  *InjectionPoint
	decorated []*Type
	set       func(instance any, delegate *Delegate) error
}

type builtinFunc func(ctx context.Context, c *Container, cc *CreationalContext) (any, error)

// Bean is a bean definition: identity, type closure, qualifiers, scope and the
// metadata needed to create and destroy its instances. A bean is configured
// with BeanOptions while the registry is open and is immutable afterwards.
type Bean struct {
	id    string
	class string
	name  string
	unit  string
	kind  BeanKind

	types              []*Type
	declaredQualifiers []Annotation
	qualifiers         []Annotation
	scope              ScopeID
	scopeDeclared      bool
	stereotypes        []string

	alternative bool
	priority    int
	hasPriority bool
	specializes string
	parent      string

	constructor   *constructorSpec
	fields        []*fieldSpec
	initializers  []*initializerSpec
	postConstruct []LifecycleFunc
	preDestroy    []LifecycleFunc
	aroundInvoke  InterceptorFunc
	producer      *producerSpec
	disposer      *disposerSpec
	builtin       builtinFunc

	methods             map[string]*Method
	interceptorBindings []Annotation
	interceptor         *interceptorSpec
	decorator           *decoratorSpec

	observers []*ObserverMethod
	overrides map[string]bool

	injectionPoints []*InjectionPoint
	enabled         bool

	// anyQualifier beans satisfy every qualifier set (Instance, Event).
	anyQualifier bool
}

// BeanOption configures a bean definition.
type BeanOption func(*Bean)

// NewBean creates a bean definition. Without options the bean is a dependent,
// managed bean whose only type is ObjectType.
func NewBean(id string, opts ...BeanOption) *Bean {
	b := &Bean{
		id:        id,
		class:     id,
		scope:     ScopeDependent,
		methods:   make(map[string]*Method),
		overrides: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// ID returns the stable bean identifier.
func (b *Bean) ID() string { return b.id }

// Class returns the concrete bean class name.
func (b *Bean) Class() string { return b.class }

// Name returns the bean name, or "".
func (b *Bean) Name() string { return b.name }

// Unit returns the deployment unit id, or "" for beans outside any unit.
func (b *Bean) Unit() string { return b.unit }

// Kind returns the bean kind.
func (b *Bean) Kind() BeanKind { return b.kind }

// Types returns the type closure, always ending with ObjectType.
func (b *Bean) Types() []*Type { return b.types }

// Qualifiers returns the effective qualifiers.
func (b *Bean) Qualifiers() []Annotation { return b.qualifiers }

// Scope returns the scope.
func (b *Bean) Scope() ScopeID { return b.scope }

// Stereotypes returns the declared stereotype names.
func (b *Bean) Stereotypes() []string { return b.stereotypes }

// IsAlternative reports whether the bean is an alternative.
func (b *Bean) IsAlternative() bool { return b.alternative }

// Priority returns the bean priority and whether one was declared.
func (b *Bean) Priority() (int, bool) { return b.priority, b.hasPriority }

// Specializes returns the id of the specialized bean, or "".
func (b *Bean) Specializes() string { return b.specializes }

// Parent returns the id of the bean whose class this bean's class extends, or "".
func (b *Bean) Parent() string {
	if b.parent != "" {
		return b.parent
	}

	return b.specializes
}

// IsEnabled reports whether the bean takes part in resolution.
func (b *Bean) IsEnabled() bool { return b.enabled }

// IsInterceptor reports whether the bean is an interceptor.
func (b *Bean) IsInterceptor() bool { return b.interceptor != nil }

// IsDecorator reports whether the bean is a decorator.
func (b *Bean) IsDecorator() bool { return b.decorator != nil }

// InterceptorBindings returns the class-level interceptor bindings.
func (b *Bean) InterceptorBindings() []Annotation { return b.interceptorBindings }

// Method returns a business method by name.
func (b *Bean) Method(name string) (*Method, bool) {
	m, ok := b.methods[name]

	return m, ok
}

// Observers returns the observer methods declared by the bean.
func (b *Bean) Observers() []*ObserverMethod { return b.observers }

// InjectionPoints returns every injection point of the bean.
func (b *Bean) InjectionPoints() []*InjectionPoint { return b.injectionPoints }

// String implements fmt.Stringer.
func (b *Bean) String() string {
	return fmt.Sprintf("%s bean [%s] scope=%s qualifiers=%s", b.kind, b.id, b.scope, formatAnnotations(b.qualifiers))
}

// hasObservableDestruction reports whether destroying an instance has an
// effect beyond releasing memory.
func (b *Bean) hasObservableDestruction(model *InterceptionModel) bool {
	if len(b.preDestroy) > 0 || b.disposer != nil {
		return true
	}

	return model != nil && len(model.lifecycle[PreDestroy]) > 0
}

// finish validates the definition and derives the computed fields. It runs
// once, when the bean is registered.
func (b *Bean) finish() error {
	if b.id == "" {
		return ErrInvalidBean(b.id, "bean id cannot be empty")
	}

	switch b.kind {
	case BeanManaged:
		if b.constructor == nil {
			return ErrInvalidBean(b.id, "managed bean has no constructor")
		}
	case BeanProducer:
		if b.producer == nil || b.producer.produce == nil {
			return ErrInvalidBean(b.id, "producer bean has no produce function")
		}
		if !b.producer.static && b.producer.receiver == "" {
			return ErrInvalidBean(b.id, "non-static producer has no receiver bean")
		}
		if b.interceptor != nil || b.decorator != nil {
			return ErrInvalidBean(b.id, "producer bean cannot be an interceptor or decorator")
		}
	}

	if b.interceptor != nil && b.decorator != nil {
		return ErrInvalidBean(b.id, "bean cannot be both interceptor and decorator")
	}

	if (b.interceptor != nil || b.decorator != nil) && b.scope != ScopeDependent {
		return ErrInvalidBean(b.id, "interceptors and decorators must be dependent scoped")
	}

	if !containsType(b.types, ObjectType) {
		b.types = append(b.types, ObjectType)
	}

	b.qualifiers = effectiveQualifiers(b.declaredQualifiers)

	b.injectionPoints = b.injectionPoints[:0]
	add := func(ips ...*InjectionPoint) {
		for _, ip := range ips {
			ip.bean = b
			b.injectionPoints = append(b.injectionPoints, ip)
		}
	}
	if b.constructor != nil {
		add(b.constructor.params...)
	}
	for _, f := range b.fields {
		add(f.point)
	}
	for _, in := range b.initializers {
		add(in.params...)
	}
	if b.producer != nil {
		add(b.producer.params...)
	}
	if b.disposer != nil {
		add(b.disposer.params...)
	}
	if b.decorator != nil && b.decorator.delegate != nil {
		add(b.decorator.delegate)
	}
	for _, o := range b.observers {
		o.bean = b
	}

	return nil
}

// effectiveQualifiers applies the default-qualifier policy to a bean: a bean
// without declared qualifiers is Default; every bean is Any.
func effectiveQualifiers(declared []Annotation) []Annotation {
	out := make([]Annotation, 0, len(declared)+2)
	for _, q := range declared {
		if !containsAnnotation(out, q) {
			out = append(out, q)
		}
	}

	if len(out) == 0 || (len(out) == 1 && out[0].Equal(Any)) {
		out = append(out, Default)
	}
	if !containsAnnotation(out, Any) {
		out = append(out, Any)
	}

	return out
}
