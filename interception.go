package harbor

import (
	"sort"
)

// InterceptionType identifies the kind of interception.
type InterceptionType uint8

const (
	// AroundInvoke wraps business method invocations.
	AroundInvoke InterceptionType = iota
	// AroundConstruct wraps instantiation.
	AroundConstruct
	// PostConstruct runs after injection completes.
	PostConstruct
	// PreDestroy runs before the instance is destroyed.
	PreDestroy
	// AroundTimeout wraps timer callbacks.
	AroundTimeout
)

func (t InterceptionType) String() string {
	switch t {
	case AroundInvoke:
		return "around-invoke"
	case AroundConstruct:
		return "around-construct"
	case PostConstruct:
		return "post-construct"
	case PreDestroy:
		return "pre-destroy"
	case AroundTimeout:
		return "around-timeout"
	default:
		return "unknown"
	}
}

// InterceptorFunc is an interceptor method. It receives the interceptor
// instance and the invocation, and either calls ic.Proceed exactly once or
// returns without calling it to short-circuit the chain.
type InterceptorFunc func(interceptor any, ic *InvocationContext) (any, error)

// Stereotype bundles a default scope, alternative status, priority and
// interceptor bindings under a name.
type Stereotype struct {
	Name        string
	Scope       ScopeID
	Alternative bool
	Priority    int
	HasPriority bool
	Bindings    []Annotation

	// Stereotypes lists stereotypes this stereotype is annotated with.
	Stereotypes []string
}

// InterceptionModel is the interception metadata of one bean: the ordered
// interceptors for each lifecycle interception type and for each business
// method, and the decorators applied to the bean. It is built once per bean
// and shared by all its instances.
type InterceptionModel struct {
	bean       *Bean
	bindings   []Annotation
	lifecycle  map[InterceptionType][]*Bean
	methods    map[string][]*Bean
	all        []*Bean
	decorators []*Bean
}

// Bean returns the intercepted bean.
func (m *InterceptionModel) Bean() *Bean { return m.bean }

// Bindings returns the class-level bindings after stereotype and meta-binding
// expansion.
func (m *InterceptionModel) Bindings() []Annotation { return m.bindings }

// Lifecycle returns the interceptors of a lifecycle interception type.
func (m *InterceptionModel) Lifecycle(kind InterceptionType) []*Bean { return m.lifecycle[kind] }

// MethodInterceptors returns the interceptors of a business method.
func (m *InterceptionModel) MethodInterceptors(method string) []*Bean { return m.methods[method] }

// Interceptors returns every interceptor bound to the bean, in order.
func (m *InterceptionModel) Interceptors() []*Bean { return m.all }

// Decorators returns the decorators applied to the bean, outermost first.
func (m *InterceptionModel) Decorators() []*Bean { return m.decorators }

// HasAroundConstruct reports whether instantiation is intercepted.
func (m *InterceptionModel) HasAroundConstruct() bool {
	return len(m.lifecycle[AroundConstruct]) > 0
}

// wraps reports whether instances need an *Intercepted wrapper.
func (m *InterceptionModel) wraps() bool {
	if len(m.decorators) > 0 || m.bean.aroundInvoke != nil {
		return true
	}
	for _, list := range m.methods {
		if len(list) > 0 {
			return true
		}
	}

	return false
}

// interceptionModel returns the cached model of bean, building it on first use.
func (c *Container) interceptionModel(bean *Bean) *InterceptionModel {
	if bean.kind != BeanManaged || bean.interceptor != nil || bean.decorator != nil {
		return &InterceptionModel{bean: bean}
	}

	c.modelsMu.RLock()
	m, ok := c.models[bean.id]
	c.modelsMu.RUnlock()
	if ok {
		return m
	}

	m = c.buildInterceptionModel(bean)

	c.modelsMu.Lock()
	if existing, ok := c.models[bean.id]; ok {
		m = existing
	} else {
		c.models[bean.id] = m
	}
	c.modelsMu.Unlock()

	return m
}

// InterceptionModel returns the interception model of a bean.
func (c *Container) InterceptionModel(bean *Bean) *InterceptionModel {
	return c.interceptionModel(bean)
}

func (c *Container) buildInterceptionModel(bean *Bean) *InterceptionModel {
	m := &InterceptionModel{
		bean:      bean,
		lifecycle: make(map[InterceptionType][]*Bean),
		methods:   make(map[string][]*Bean),
	}

	class := append([]Annotation(nil), bean.interceptorBindings...)
	for _, st := range c.stereotypeClosure(bean.stereotypes) {
		class = append(class, st.Bindings...)
	}
	m.bindings = c.expandBindings(class)

	interceptors := c.enabledInterceptors()
	seen := make(map[string]bool)
	use := func(i *Bean) {
		if !seen[i.id] {
			seen[i.id] = true
			m.all = append(m.all, i)
		}
	}

	for _, kind := range []InterceptionType{AroundConstruct, PostConstruct, PreDestroy} {
		for _, i := range interceptors {
			if i.interceptor.methods[kind] != nil && bindingsApply(i.interceptor.bindings, m.bindings) {
				m.lifecycle[kind] = append(m.lifecycle[kind], i)
				use(i)
			}
		}
	}

	names := make([]string, 0, len(bean.methods))
	for name := range bean.methods {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		method := bean.methods[name]
		kind := AroundInvoke
		if method.Timeout {
			kind = AroundTimeout
		}

		bindings := m.bindings
		if len(method.Bindings) > 0 {
			bindings = c.expandBindings(append(append([]Annotation(nil), m.bindings...), method.Bindings...))
		}

		for _, i := range interceptors {
			if i.interceptor.methods[kind] != nil && bindingsApply(i.interceptor.bindings, bindings) {
				m.methods[name] = append(m.methods[name], i)
				use(i)
			}
		}
	}

	for _, d := range c.enabledDecorators() {
		if c.decorates(d, bean) {
			m.decorators = append(m.decorators, d)
		}
	}

	return m
}

// expandBindings adds, recursively, the bindings declared on each binding type.
func (c *Container) expandBindings(bindings []Annotation) []Annotation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Annotation
	var visit func(a Annotation)
	visit = func(a Annotation) {
		if containsAnnotation(out, a) {
			return
		}
		out = append(out, a)
		for _, meta := range c.bindingTypes[a.typ] {
			visit(meta)
		}
	}
	for _, a := range bindings {
		visit(a)
	}

	return out
}

// stereotypeClosure returns the named stereotypes and, recursively, the
// stereotypes declared on them.
func (c *Container) stereotypeClosure(names []string) []*Stereotype {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*Stereotype
	seen := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true

		st, ok := c.stereotypes[name]
		if !ok {
			return
		}
		out = append(out, st)
		for _, meta := range st.Stereotypes {
			visit(meta)
		}
	}
	for _, n := range names {
		visit(n)
	}

	return out
}

// bindingsApply reports whether an interceptor bound by required applies to a
// target carrying bindings.
func bindingsApply(required, bindings []Annotation) bool {
	return len(required) > 0 && containsAllAnnotations(bindings, required)
}

// decorates reports whether decorator d applies to bean.
func (c *Container) decorates(d, bean *Bean) bool {
	if bean.kind != BeanManaged || bean.interceptor != nil || bean.decorator != nil {
		return false
	}

	delegate := d.decorator.delegate
	if delegate == nil {
		return false
	}

	return containsAllAnnotations(bean.qualifiers, delegate.required()) &&
		c.resolver.matchesType(bean, delegate.Type)
}

// enabledInterceptors returns enabled interceptors: those with a priority in
// ascending priority order, then descriptor-enabled ones in descriptor order.
func (c *Container) enabledInterceptors() []*Bean {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.interceptors
}

func (c *Container) enabledDecorators() []*Bean {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.decorators
}

// orderEnabled orders enabled beans of one kind: prioritized beans ascending
// by priority (ties by id), then the rest by their position in entries.
func orderEnabled(beans []*Bean, entries []string) []*Bean {
	var prioritized, listed []*Bean
	for _, b := range beans {
		if !b.enabled {
			continue
		}
		if b.hasPriority {
			prioritized = append(prioritized, b)
		} else {
			listed = append(listed, b)
		}
	}

	sort.SliceStable(prioritized, func(i, j int) bool {
		if prioritized[i].priority != prioritized[j].priority {
			return prioritized[i].priority < prioritized[j].priority
		}

		return prioritized[i].id < prioritized[j].id
	})
	sort.SliceStable(listed, func(i, j int) bool {
		return entryIndex(entries, listed[i]) < entryIndex(entries, listed[j])
	})

	return append(prioritized, listed...)
}
