package harbor

import (
	"context"

	"github.com/xraph/go-utils/errs"
)

// InstanceOf returns the injectable type of a programmatic lookup for t.
func InstanceOf(t *Type) *Type {
	return Generic("harbor.Instance", t)
}

// Instance performs programmatic lookup of beans of one type and qualifier
// set. Dependent instances it hands out are owned by the Instance and
// released with it.
type Instance struct {
	c          *Container
	typ        *Type
	qualifiers []Annotation
	origin     *Bean
	cc         *CreationalContext
}

// Instance returns a programmatic lookup of beans of type t.
func (c *Container) Instance(t *Type, qualifiers ...Annotation) *Instance {
	cc := NewCreationalContext(nil)
	cc.logger = c.logger

	return &Instance{c: c, typ: t, qualifiers: qualifiers, cc: cc}
}

// lookup returns a programmatic lookup whose dependent instances belong to
// the container and are destroyed at Shutdown.
func (c *Container) lookup(t *Type, qualifiers ...Annotation) *Instance {
	return &Instance{c: c, typ: t, qualifiers: qualifiers, cc: c.lookups}
}

// Type returns the required type.
func (i *Instance) Type() *Type { return i.typ }

// Qualifiers returns the required qualifiers.
func (i *Instance) Qualifiers() []Annotation { return i.qualifiers }

// Select returns a child lookup with additional qualifiers.
func (i *Instance) Select(qualifiers ...Annotation) *Instance {
	return i.SelectType(i.typ, qualifiers...)
}

// SelectType returns a child lookup of a subtype with additional qualifiers.
func (i *Instance) SelectType(t *Type, qualifiers ...Annotation) *Instance {
	return &Instance{
		c:          i.c,
		typ:        t,
		qualifiers: append(append([]Annotation(nil), i.qualifiers...), qualifiers...),
		origin:     i.origin,
		cc:         i.cc,
	}
}

func (i *Instance) point() *InjectionPoint {
	return &InjectionPoint{Type: i.typ, Qualifiers: i.qualifiers, bean: i.origin}
}

// Beans returns the enabled beans visible to this lookup.
func (i *Instance) Beans() []*Bean {
	candidates := i.c.resolver.resolve(i.typ, i.qualifiers)
	if i.origin != nil {
		candidates = i.c.deployment.visible(i.origin.unit, candidates)
	}

	return append([]*Bean(nil), candidates...)
}

// IsUnsatisfied reports whether no bean matches.
func (i *Instance) IsUnsatisfied() bool {
	return len(i.c.disambiguate(i.Beans())) == 0
}

// IsAmbiguous reports whether more than one bean remains after
// disambiguation.
func (i *Instance) IsAmbiguous() bool {
	return len(i.c.disambiguate(i.Beans())) > 1
}

// IsResolvable reports whether exactly one bean matches.
func (i *Instance) IsResolvable() bool {
	return len(i.c.disambiguate(i.Beans())) == 1
}

// Get returns a reference to the single matching bean.
func (i *Instance) Get(ctx context.Context) (any, error) {
	if err := i.c.middleware.beforeResolve(ctx, i.typ, i.qualifiers); err != nil {
		return nil, err
	}

	bean, err := i.c.resolveBean(i.typ, i.qualifiers, i.point())

	if mwErr := i.c.middleware.afterResolve(ctx, i.typ, bean, err); mwErr != nil && err == nil {
		err = mwErr
	}
	if err != nil {
		return nil, err
	}

	return i.reference(ctx, bean)
}

func (i *Instance) reference(ctx context.Context, bean *Bean) (any, error) {
	if bean.scope != ScopeDependent {
		return i.c.reference(ctx, bean)
	}

	contextual := i.c.contextual(bean)
	child := i.cc.Child(contextual)
	child.point = i.point()

	instance, _, err := i.c.dependent.Get(ctx, contextual, child)

	return instance, err
}

// Each calls fn with a reference to every matching bean, in registration
// order, stopping at the first error.
func (i *Instance) Each(ctx context.Context, fn func(bean *Bean, ref any) error) error {
	for _, b := range i.Beans() {
		ref, err := i.reference(ctx, b)
		if err != nil {
			return err
		}
		if err := fn(b, ref); err != nil {
			return err
		}
	}

	return nil
}

// Destroy destroys an instance obtained from this lookup: a dependent
// instance is destroyed with its dependents, a normal-scoped instance is
// removed from its active context.
func (i *Instance) Destroy(ctx context.Context, ref any) error {
	for _, ci := range i.cc.Dependents() {
		if ci.Instance == ref {
			return i.cc.DestroyDependent(ctx, ref)
		}
	}

	p, ok := ref.(*ClientProxy)
	if !ok {
		return nil
	}

	scoped, err := i.c.contexts.active(ctx, p.bean.scope)
	if err != nil {
		return err
	}

	alterable, ok := scoped.(AlterableContext)
	if !ok {
		return errs.NewError(CodeInvalidBean, "context of scope '"+string(p.bean.scope)+"' does not support destruction", nil)
	}

	return alterable.Destroy(ctx, i.c.contextual(p.bean))
}

// Release destroys every dependent instance handed out by the lookup.
func (i *Instance) Release(ctx context.Context) error {
	return i.cc.Release(ctx)
}
