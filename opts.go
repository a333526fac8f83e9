package harbor

import (
	"go.uber.org/zap"
)

// =============================================================================
// BEAN OPTIONS
// =============================================================================

// WithTypes sets the bean type closure. The first type is the implementation
// type; ObjectType is appended automatically.
func WithTypes(types ...*Type) BeanOption {
	return func(b *Bean) {
		b.types = append(b.types, types...)
	}
}

// WithClass sets the concrete bean class name used by duplicate-class
// validation and descriptor entries. It defaults to the bean id.
func WithClass(class string) BeanOption {
	return func(b *Bean) {
		b.class = class
	}
}

// WithName sets the bean name and declares the matching Named qualifier.
func WithName(name string) BeanOption {
	return func(b *Bean) {
		b.name = name
		b.declaredQualifiers = append(b.declaredQualifiers, Named(name))
	}
}

// WithQualifiers declares qualifiers.
func WithQualifiers(qualifiers ...Annotation) BeanOption {
	return func(b *Bean) {
		b.declaredQualifiers = append(b.declaredQualifiers, qualifiers...)
	}
}

// WithScope sets the bean scope.
func WithScope(scope ScopeID) BeanOption {
	return func(b *Bean) {
		b.scope = scope
		b.scopeDeclared = true
	}
}

// ApplicationScoped makes the bean application scoped.
func ApplicationScoped() BeanOption { return WithScope(ScopeApplication) }

// RequestScoped makes the bean request scoped.
func RequestScoped() BeanOption { return WithScope(ScopeRequest) }

// Singleton makes the bean a singleton: one instance per container, no proxy.
func Singleton() BeanOption { return WithScope(ScopeSingleton) }

// WithStereotypes declares stereotypes by name. Stereotypes are registered on
// the container with DeclareStereotype.
func WithStereotypes(names ...string) BeanOption {
	return func(b *Bean) {
		b.stereotypes = append(b.stereotypes, names...)
	}
}

// Alternative marks the bean as an alternative. An alternative only takes part
// in resolution once enabled by a priority or a descriptor entry.
func Alternative() BeanOption {
	return func(b *Bean) {
		b.alternative = true
	}
}

// Priority ranges for alternatives, interceptors and decorators.
const (
	PriorityPlatformBefore = 0
	PriorityLibraryBefore  = 1000
	PriorityApplication    = 2000
	PriorityLibraryAfter   = 3000
	PriorityPlatformAfter  = 4000
)

// WithPriority sets the bean priority. For alternatives, interceptors and
// decorators a priority also enables the bean globally.
func WithPriority(priority int) BeanOption {
	return func(b *Bean) {
		b.priority = priority
		b.hasPriority = true
	}
}

// Specializes declares that the bean replaces the bean with the given id.
func Specializes(id string) BeanOption {
	return func(b *Bean) {
		b.specializes = id
	}
}

// InheritsFrom declares that the bean class extends the class of the bean
// with the given id. Observer methods are inherited unless overridden.
func InheritsFrom(id string) BeanOption {
	return func(b *Bean) {
		b.parent = id
	}
}

// InUnit assigns the bean to a deployment unit.
func InUnit(unit string) BeanOption {
	return func(b *Bean) {
		b.unit = unit
	}
}

// WithConstructor sets the constructor of a managed bean and its parameter
// injection points.
func WithConstructor(fn ConstructFunc, params ...*InjectionPoint) BeanOption {
	return func(b *Bean) {
		b.kind = BeanManaged
		b.constructor = &constructorSpec{params: params, create: fn}
	}
}

// WithField declares an injected field.
func WithField(point *InjectionPoint, set FieldFunc) BeanOption {
	return func(b *Bean) {
		b.fields = append(b.fields, &fieldSpec{point: point, set: set})
	}
}

// WithInitializer declares an initializer method called after field injection.
func WithInitializer(name string, fn InitializerFunc, params ...*InjectionPoint) BeanOption {
	return func(b *Bean) {
		b.initializers = append(b.initializers, &initializerSpec{name: name, params: params, call: fn})
	}
}

// WithPostConstruct adds a post-construct callback.
func WithPostConstruct(fn LifecycleFunc) BeanOption {
	return func(b *Bean) {
		b.postConstruct = append(b.postConstruct, fn)
	}
}

// WithPreDestroy adds a pre-destroy callback.
func WithPreDestroy(fn LifecycleFunc) BeanOption {
	return func(b *Bean) {
		b.preDestroy = append(b.preDestroy, fn)
	}
}

// WithAroundInvoke sets the bean's own around-invoke method. It runs after
// every bound interceptor, immediately before the business method.
func WithAroundInvoke(fn InterceptorFunc) BeanOption {
	return func(b *Bean) {
		b.aroundInvoke = fn
	}
}

// Produces turns the bean into a producer whose instances come from fn called
// on an instance of the receiver bean.
func Produces(receiver string, fn ProduceFunc, params ...*InjectionPoint) BeanOption {
	return func(b *Bean) {
		b.kind = BeanProducer
		b.producer = &producerSpec{receiver: receiver, params: params, produce: fn}
	}
}

// ProducesStatic turns the bean into a producer that needs no receiver.
func ProducesStatic(fn ProduceFunc, params ...*InjectionPoint) BeanOption {
	return func(b *Bean) {
		b.kind = BeanProducer
		b.producer = &producerSpec{static: true, params: params, produce: fn}
	}
}

// WithDisposer sets the disposer of a producer bean.
func WithDisposer(fn DisposeFunc, params ...*InjectionPoint) BeanOption {
	return func(b *Bean) {
		b.disposer = &disposerSpec{params: params, dispose: fn}
	}
}

// WithMethod exposes a business method. Bindings apply to this method only.
func WithMethod(name string, fn MethodFunc, bindings ...Annotation) BeanOption {
	return func(b *Bean) {
		b.methods[name] = &Method{Name: name, Call: fn, Bindings: bindings}
	}
}

// WithTimeoutMethod exposes a timer callback, intercepted by around-timeout.
func WithTimeoutMethod(name string, fn MethodFunc, bindings ...Annotation) BeanOption {
	return func(b *Bean) {
		b.methods[name] = &Method{Name: name, Call: fn, Bindings: bindings, Timeout: true}
	}
}

// WithInterceptorBindings declares class-level interceptor bindings.
func WithInterceptorBindings(bindings ...Annotation) BeanOption {
	return func(b *Bean) {
		b.interceptorBindings = append(b.interceptorBindings, bindings...)
	}
}

// AsInterceptor makes the bean an interceptor bound by the given bindings.
// Interception methods are added with Intercepts.
func AsInterceptor(bindings ...Annotation) BeanOption {
	return func(b *Bean) {
		if b.interceptor == nil {
			b.interceptor = &interceptorSpec{methods: make(map[InterceptionType]InterceptorFunc)}
		}
		b.interceptor.bindings = append(b.interceptor.bindings, bindings...)
	}
}

// Intercepts sets the interceptor method for an interception type.
func Intercepts(kind InterceptionType, fn InterceptorFunc) BeanOption {
	return func(b *Bean) {
		if b.interceptor == nil {
			b.interceptor = &interceptorSpec{methods: make(map[InterceptionType]InterceptorFunc)}
		}
		b.interceptor.methods[kind] = fn
	}
}

// AsDecorator makes the bean a decorator of the given types. The delegate
// point selects the decorated beans; set hands the delegate to a new
// decorator instance.
func AsDecorator(delegate *InjectionPoint, set func(instance any, delegate *Delegate) error, decorated ...*Type) BeanOption {
	return func(b *Bean) {
		if delegate != nil {
			delegate.Delegate = true
			if delegate.Member == "" {
				delegate.Member = "delegate"
			}
		}
		b.decorator = &decoratorSpec{delegate: delegate, decorated: decorated, set: set}
	}
}

// Observes declares an observer method on the bean.
func Observes(observer *ObserverMethod) BeanOption {
	return func(b *Bean) {
		b.observers = append(b.observers, observer)
	}
}

// Overrides declares inherited observer methods the bean overrides. An
// overridden observer is not invoked unless the bean observes it again.
func Overrides(methods ...string) BeanOption {
	return func(b *Bean) {
		for _, m := range methods {
			b.overrides[m] = true
		}
	}
}

// =============================================================================
// CONTAINER OPTIONS
// =============================================================================

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the container logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConfig applies a loaded configuration.
func WithConfig(cfg Config) Option {
	return func(c *Container) {
		c.config = cfg
	}
}

// WithProxyFactory replaces the default client proxy factory.
func WithProxyFactory(factory ProxyFactory) Option {
	return func(c *Container) {
		if factory != nil {
			c.proxies = factory
		}
	}
}

// WithMiddleware adds container middleware.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *Container) {
		for _, m := range mw {
			c.middleware.add(m)
		}
	}
}

// WithExtensions registers portable extensions.
func WithExtensions(extensions ...Extension) Option {
	return func(c *Container) {
		c.extensions = append(c.extensions, extensions...)
	}
}

// WithDescriptor sets the descriptor applied to beans outside any unit.
func WithDescriptor(d *Descriptor) Option {
	return func(c *Container) {
		c.descriptor = d
	}
}

// WithUnits declares deployment units.
func WithUnits(units ...*Unit) Option {
	return func(c *Container) {
		for _, u := range units {
			c.units[u.ID()] = u
			c.unitOrder = append(c.unitOrder, u.ID())
		}
	}
}
