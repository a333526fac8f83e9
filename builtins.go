package harbor

import (
	"context"
)

// Ids of the beans every container provides.
const (
	InjectionPointBeanID = "harbor.InjectionPoint"
	ContainerBeanID      = "harbor.Container"
	InstanceBeanID       = "harbor.Instance"
	EventBeanID          = "harbor.Event"
)

func newBuiltinBean(id string, t *Type, fn builtinFunc) *Bean {
	b := NewBean(id, WithTypes(t))
	b.kind = BeanBuiltin
	b.builtin = fn

	return b
}

func (c *Container) builtinBeans() []*Bean {
	instance := newBuiltinBean(InstanceBeanID, InstanceOf(Var("T")), buildInstance)
	instance.anyQualifier = true

	event := newBuiltinBean(EventBeanID, EventOf(Var("T")), buildEvent)
	event.anyQualifier = true

	return []*Bean{
		newBuiltinBean(InjectionPointBeanID, TypeOf[*InjectionPoint](), func(_ context.Context, _ *Container, cc *CreationalContext) (any, error) {
			return cc.consumerPoint(), nil
		}),
		newBuiltinBean(ContainerBeanID, TypeOf[*Container](), func(_ context.Context, c *Container, _ *CreationalContext) (any, error) {
			return c, nil
		}),
		instance,
		event,
	}
}

// buildInstance creates the Instance injected at cc's injection point. It
// owns the dependents it creates and is kept by the consumer so they are
// destroyed with it.
func buildInstance(_ context.Context, c *Container, cc *CreationalContext) (any, error) {
	cc.keep = true

	ip := cc.point
	if ip == nil || len(ip.Type.Args()) != 1 {
		return &Instance{c: c, typ: ObjectType, cc: cc}, nil
	}

	return &Instance{
		c:          c,
		typ:        ip.Type.Args()[0],
		qualifiers: ip.Qualifiers,
		origin:     ip.bean,
		cc:         cc,
	}, nil
}

func buildEvent(_ context.Context, c *Container, cc *CreationalContext) (any, error) {
	ip := cc.point
	if ip == nil || len(ip.Type.Args()) != 1 {
		return c.Event(ObjectType), nil
	}

	return c.Event(ip.Type.Args()[0], ip.Qualifiers...), nil
}
