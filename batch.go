package harbor

import (
	"github.com/xraph/go-utils/errs"
	"go.uber.org/multierr"
)

// Registration holds the configuration of one bean to be registered in a
// batch: either a ready bean definition or a Go constructor.
type Registration struct {
	ID          string
	Constructor any
	Options     []BeanOption

	bean *Bean
}

// Service creates a Registration for a constructor-built bean.
// This is a convenience for batch registration.
//
// Example:
//
//	harbor.RegisterAll(c,
//	    harbor.Service("db", NewDatabase, harbor.ApplicationScoped()),
//	    harbor.Service("cache", NewCache, harbor.ApplicationScoped()),
//	)
func Service(id string, constructor any, opts ...BeanOption) Registration {
	return Registration{ID: id, Constructor: constructor, Options: opts}
}

// Definition creates a Registration for a bean built with NewBean or Provide.
func Definition(b *Bean) Registration {
	return Registration{ID: b.id, bean: b}
}

func (r Registration) build(extra ...BeanOption) (*Bean, error) {
	if r.bean != nil {
		for _, opt := range extra {
			opt(r.bean)
		}

		return r.bean, nil
	}

	return ConstructorBean(r.ID, r.Constructor, append(append([]BeanOption(nil), r.Options...), extra...)...)
}

// RegisterAll registers several beans in one call. Every registration is
// attempted; the returned error combines all failures.
func RegisterAll(c *Container, registrations ...Registration) error {
	return registerAll(c, registrations, nil)
}

func registerAll(c *Container, registrations []Registration, extra []BeanOption) error {
	var combined error
	for _, r := range registrations {
		b, err := r.build(extra...)
		if err == nil {
			err = c.Register(b)
		}
		combined = multierr.Append(combined, err)
	}

	return combined
}

// Module is a named group of registrations deployed together. When Unit is
// set every bean of the module belongs to that deployment unit.
//
// Example:
//
//	var Storage = harbor.Module{
//	    Name: "storage",
//	    Unit: "storage",
//	    Registrations: []harbor.Registration{
//	        harbor.Service("storage.db", NewDatabase, harbor.ApplicationScoped()),
//	        harbor.Service("storage.repo", NewRepository),
//	    },
//	}
type Module struct {
	Name          string
	Unit          string
	Registrations []Registration
}

// Register registers every bean of the module with c.
func (m Module) Register(c *Container) error {
	var extra []BeanOption
	if m.Unit != "" {
		extra = append(extra, InUnit(m.Unit))
	}

	if err := registerAll(c, m.Registrations, extra); err != nil {
		return errs.NewError(CodeInvalidBean, "module '"+m.Name+"' registration failed", err).
			WithContext("module", m.Name)
	}

	return nil
}

// RegisterModules registers several modules, combining their failures.
func RegisterModules(c *Container, modules ...Module) error {
	var combined error
	for _, m := range modules {
		combined = multierr.Append(combined, m.Register(c))
	}

	return combined
}
