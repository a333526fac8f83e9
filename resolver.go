package harbor

import (
	"sync"
)

// resolver answers "which enabled beans satisfy (type, qualifiers)". Results
// are cached per canonical requirement key until the registry changes.
type resolver struct {
	reg       *registry
	hierarchy *Hierarchy
	cache     map[string][]*Bean
	caching   bool
	mu        sync.RWMutex
}

func newResolver(reg *registry, h *Hierarchy, caching bool) *resolver {
	r := &resolver{
		reg:       reg,
		hierarchy: h,
		cache:     make(map[string][]*Bean),
		caching:   caching,
	}
	reg.subscribe(r.clear)

	return r
}

// resolve returns the candidate set in registration order.
func (r *resolver) resolve(required *Type, qualifiers []Annotation) []*Bean {
	qualifiers = normalizeRequired(qualifiers)
	key := required.Key() + "#" + qualifiersKey(qualifiers)

	if r.caching {
		r.mu.RLock()
		cached, ok := r.cache[key]
		r.mu.RUnlock()
		if ok {
			return cached
		}
	}

	var result []*Bean
	for _, b := range r.reg.candidates(required) {
		if r.matches(b, required, qualifiers) {
			result = append(result, b)
		}
	}

	if r.caching {
		r.mu.Lock()
		r.cache[key] = result
		r.mu.Unlock()
	}

	return result
}

func (r *resolver) matches(b *Bean, required *Type, qualifiers []Annotation) bool {
	if !b.enabled || b.interceptor != nil || b.decorator != nil {
		return false
	}
	anyQualifier := b.anyQualifier && required.Raw().Equal(b.types[0].Raw())
	if !anyQualifier && !containsAllAnnotations(b.qualifiers, qualifiers) {
		return false
	}

	return r.matchesType(b, required)
}

// matchesType reports whether any type of the bean closure satisfies required.
func (r *resolver) matchesType(b *Bean, required *Type) bool {
	for _, t := range b.types {
		if r.hierarchy.beanAssignable(required, t) {
			return true
		}
	}

	return false
}

func (r *resolver) clear() {
	r.mu.Lock()
	r.cache = make(map[string][]*Bean)
	r.mu.Unlock()
}

func (r *resolver) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.cache)
}

// Beans returns every enabled bean whose type closure satisfies required and
// that carries all qualifiers. An empty qualifier set means Default.
func (c *Container) Beans(required *Type, qualifiers ...Annotation) []*Bean {
	found := c.resolver.resolve(required, qualifiers)
	out := make([]*Bean, len(found))
	copy(out, found)

	return out
}

// ResolveBean resolves a requirement to exactly one bean.
func (c *Container) ResolveBean(required *Type, qualifiers ...Annotation) (*Bean, error) {
	return c.resolveBean(required, qualifiers, nil)
}

// resolveBean resolves for an injection point, applying deployment unit
// visibility when the point belongs to a bean in a unit.
func (c *Container) resolveBean(required *Type, qualifiers []Annotation, ip *InjectionPoint) (*Bean, error) {
	candidates := c.resolver.resolve(required, qualifiers)
	if ip != nil && ip.bean != nil {
		candidates = c.deployment.visible(ip.bean.unit, candidates)
	}

	remaining := c.disambiguate(candidates)
	switch len(remaining) {
	case 0:
		return nil, ErrUnsatisfiedResolution(required, normalizeRequired(qualifiers))
	case 1:
		return remaining[0], nil
	default:
		return nil, ErrAmbiguousResolution(required, normalizeRequired(qualifiers), remaining)
	}
}

// BeanByName returns the enabled bean with the given name.
func (c *Container) BeanByName(name string) (*Bean, error) {
	var found []*Bean
	for _, b := range c.registry.all() {
		if b.enabled && b.name == name {
			found = append(found, b)
		}
	}

	remaining := c.disambiguate(found)
	switch len(remaining) {
	case 0:
		return nil, ErrUnsatisfiedResolution(ObjectType, []Annotation{Named(name)})
	case 1:
		return remaining[0], nil
	default:
		return nil, ErrAmbiguousResolution(ObjectType, []Annotation{Named(name)}, remaining)
	}
}
