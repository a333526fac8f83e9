package harbor

import (
	"go.uber.org/zap"
)

// seal finalises bean definitions before validation: stereotype defaults,
// specialization inheritance, descriptor enablement, interceptor and
// decorator ordering, and the observer registry.
func (c *Container) seal() []error {
	var problems []error

	beans := c.registry.all()

	problems = append(problems, c.applyStereotypes(beans)...)
	problems = append(problems, c.applySpecialization(beans)...)

	interceptorEntries, decoratorEntries, enableProblems := c.applyDescriptors(beans)
	problems = append(problems, enableProblems...)

	disableSpecialized(beans, c.registry.get)

	var interceptors, decorators []*Bean
	for _, b := range beans {
		switch {
		case b.interceptor != nil:
			interceptors = append(interceptors, b)
		case b.decorator != nil:
			decorators = append(decorators, b)
		}
	}

	c.mu.Lock()
	c.interceptors = orderEnabled(interceptors, interceptorEntries)
	c.decorators = orderEnabled(decorators, decoratorEntries)
	c.mu.Unlock()

	c.registry.reindex()

	c.observers.reset()
	for _, b := range beans {
		if !b.enabled || b.interceptor != nil || b.decorator != nil {
			continue
		}
		for _, o := range c.effectiveObservers(b) {
			c.observers.add(o)
		}
	}
	for _, o := range c.extraObservers {
		c.observers.add(o)
	}

	return problems
}

// applyStereotypes applies the default scope, alternative flag and priority
// of each bean's stereotypes.
func (c *Container) applyStereotypes(beans []*Bean) []error {
	var problems []error

	for _, b := range beans {
		if len(b.stereotypes) == 0 {
			continue
		}

		c.mu.RLock()
		for _, name := range b.stereotypes {
			if _, ok := c.stereotypes[name]; !ok {
				problems = append(problems, ErrInvalidBean(b.id, "unknown stereotype '"+name+"'"))
			}
		}
		c.mu.RUnlock()

		declared := b.scopeDeclared
		var stereotypeScope ScopeID
		for _, st := range c.stereotypeClosure(b.stereotypes) {
			if st.Scope != "" && !declared {
				if stereotypeScope != "" && stereotypeScope != st.Scope {
					problems = append(problems, ErrInvalidBean(b.id, "stereotypes declare conflicting default scopes"))
				}
				stereotypeScope = st.Scope
			}
			if st.Alternative {
				b.alternative = true
			}
			if st.HasPriority && !b.hasPriority {
				b.priority = st.Priority
				b.hasPriority = true
			}
		}

		if stereotypeScope != "" {
			b.scope = stereotypeScope
		}
		b.enabled = defaultEnablement(b)
	}

	return problems
}

// applySpecialization validates specializations and makes each specializing
// bean inherit the qualifiers and name of the bean it specializes.
func (c *Container) applySpecialization(beans []*Bean) []error {
	var problems []error

	valid := make(map[string]bool)
	for _, b := range beans {
		if b.specializes == "" {
			continue
		}
		if err := c.checkSpecialization(b); err != nil {
			problems = append(problems, err)

			continue
		}
		valid[b.id] = true
	}

	done := make(map[string]bool)
	var inherit func(b *Bean)
	inherit = func(b *Bean) {
		if done[b.id] || !valid[b.id] {
			return
		}
		done[b.id] = true

		target, _ := c.registry.get(b.specializes)
		inherit(target)

		for _, q := range target.declaredQualifiers {
			if !containsAnnotation(b.declaredQualifiers, q) {
				b.declaredQualifiers = append(b.declaredQualifiers, q)
			}
		}
		if b.name == "" {
			b.name = target.name
		}
		b.qualifiers = effectiveQualifiers(b.declaredQualifiers)
	}

	for _, b := range beans {
		inherit(b)
	}

	return problems
}

func (c *Container) checkSpecialization(b *Bean) error {
	target, ok := c.registry.get(b.specializes)
	if !ok {
		return ErrSpecialization(b.id, "specialized bean '"+b.specializes+"' does not exist")
	}

	seen := map[string]bool{b.id: true}
	for next := target; next != nil && next.specializes != ""; {
		if seen[next.specializes] {
			return ErrSpecialization(b.id, "specialization cycle through '"+next.id+"'")
		}
		seen[next.specializes] = true

		next, _ = c.registry.get(next.specializes)
	}

	for _, t := range target.types {
		if !containsType(b.types, t) {
			return ErrSpecialization(b.id,
				"type closure does not contain "+t.String()+" of specialized bean '"+target.id+"'")
		}
	}

	return nil
}

// applyDescriptors enables the alternatives, interceptors and decorators
// listed by the container descriptor and every unit descriptor. It returns the
// combined interceptor and decorator entries in descriptor order.
func (c *Container) applyDescriptors(beans []*Bean) (interceptors, decorators []string, problems []error) {
	type source struct {
		unit string
		d    *Descriptor
	}

	var sources []source
	if c.descriptor != nil {
		sources = append(sources, source{unit: "", d: c.descriptor})
	}
	for _, id := range c.unitOrder {
		if d := c.deployment.descriptor(id); d != nil {
			sources = append(sources, source{unit: id, d: d})
		}
	}

	enable := func(unit, kind, entry string, accept func(*Bean) bool) {
		matched := false
		for _, b := range beans {
			if b.id != entry && b.class != entry {
				continue
			}
			if !accept(b) {
				continue
			}
			matched = true
			b.enabled = true
		}
		if !matched {
			problems = append(problems, ErrEnablement(unit, kind, entry))
		}
	}

	// unique drops entries listed twice in one descriptor list, reporting each
	// repetition.
	unique := func(unit, kind string, entries []string) []string {
		seen := make(map[string]bool, len(entries))
		out := make([]string, 0, len(entries))
		for _, entry := range entries {
			if seen[entry] {
				problems = append(problems, ErrDuplicateEnablement(unit, kind, entry))

				continue
			}
			seen[entry] = true
			out = append(out, entry)
		}

		return out
	}

	for _, s := range sources {
		for _, entry := range unique(s.unit, "alternative", s.d.Alternatives) {
			enable(s.unit, "alternative", entry, func(b *Bean) bool { return b.alternative })
		}
		for _, entry := range unique(s.unit, "interceptor", s.d.Interceptors) {
			enable(s.unit, "interceptor", entry, func(b *Bean) bool { return b.interceptor != nil })
			interceptors = append(interceptors, entry)
		}
		for _, entry := range unique(s.unit, "decorator", s.d.Decorators) {
			enable(s.unit, "decorator", entry, func(b *Bean) bool { return b.decorator != nil })
			decorators = append(decorators, entry)
		}
	}

	if len(problems) > 0 {
		c.logger.Debug("descriptor enablement problems", zap.Int("problems", len(problems)))
	}

	return interceptors, decorators, problems
}

// disableSpecialized disables every bean specialized, directly or
// transitively, by an enabled bean.
func disableSpecialized(beans []*Bean, lookup func(string) (*Bean, bool)) {
	for _, b := range beans {
		if !b.enabled || b.specializes == "" {
			continue
		}

		seen := map[string]bool{b.id: true}
		for next := b.specializes; next != "" && !seen[next]; {
			seen[next] = true

			target, ok := lookup(next)
			if !ok {
				break
			}
			target.enabled = false
			next = target.specializes
		}
	}
}
