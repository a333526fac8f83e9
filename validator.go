package harbor

import (
	"sort"

	"go.uber.org/zap"
)

// validate checks the sealed deployment and returns every problem found.
func (c *Container) validate() []error {
	var problems []error

	beans := c.registry.all()

	problems = append(problems, c.deployment.duplicateClasses(beans)...)

	graph := NewDependencyGraph()

	for _, b := range beans {
		if !b.enabled || b.kind == BeanBuiltin {
			continue
		}

		graph.AddNode(b.id, nil)

		if _, ok := c.contexts.scope(b.scope); !ok {
			problems = append(problems, ErrInvalidBean(b.id, "scope '"+string(b.scope)+"' is not registered"))
		}

		if b.producer != nil && !b.producer.static {
			receiver, ok := c.registry.get(b.producer.receiver)
			switch {
			case !ok:
				problems = append(problems, ErrInvalidBean(b.id, "producer receiver '"+b.producer.receiver+"' is not registered"))
			case c.isPseudoScoped(receiver):
				graph.AddEdge(b.id, receiver.id)
			}
		}

		if b.decorator != nil {
			if b.decorator.delegate == nil {
				problems = append(problems, ErrInvalidBean(b.id, "decorator has no delegate injection point"))
			}
			if len(b.decorator.decorated) == 0 {
				problems = append(problems, ErrInvalidBean(b.id, "decorator declares no decorated types"))
			}
		}

		for _, ip := range b.injectionPoints {
			if ip.Delegate {
				continue
			}

			dep, err := c.resolveBean(ip.Type, ip.Qualifiers, ip)
			if err != nil {
				if !c.config.StrictValidation {
					c.logger.Warn("unresolvable injection point",
						zap.String("bean", b.id),
						zap.String("injection_point", ip.String()),
						zap.Error(err),
					)

					continue
				}
				problems = append(problems, ErrInjection(ip, err))

				continue
			}

			if dep.kind != BeanBuiltin && c.isPseudoScoped(dep) {
				graph.AddEdge(b.id, dep.id)
			}
		}
	}

	if _, err := graph.TopologicalSort(); err != nil {
		problems = append(problems, err)
	}

	problems = append(problems, c.validateNames(beans)...)

	return problems
}

// validateNames reports bean names shared by enabled beans that
// disambiguation cannot separate.
func (c *Container) validateNames(beans []*Bean) []error {
	byName := make(map[string][]*Bean)
	for _, b := range beans {
		if b.enabled && b.name != "" && b.interceptor == nil && b.decorator == nil {
			byName[b.name] = append(byName[b.name], b)
		}
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	var problems []error
	for _, name := range names {
		if remaining := c.disambiguate(byName[name]); len(remaining) > 1 {
			problems = append(problems, ErrAmbiguousResolution(ObjectType, []Annotation{Named(name)}, remaining))
		}
	}

	return problems
}

// isPseudoScoped reports whether bean instances are injected directly rather
// than through a client proxy.
func (c *Container) isPseudoScoped(b *Bean) bool {
	info, ok := c.contexts.scope(b.scope)

	return !ok || !info.Normal
}
