package harbor

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// CreationalContext tracks the dependent instances created while building an
// instance, so they can be destroyed together with it. Only dependents whose
// destruction is observable are retained.
type CreationalContext struct {
	contextual Contextual
	parent     *CreationalContext
	logger     *zap.Logger

	// point is the injection point currently being satisfied, exposed to the
	// built-in InjectionPoint bean.
	point *InjectionPoint

	// delegate is set while a decorator instance is created.
	delegate *Delegate

	// keep forces retention by the parent regardless of pruning.
	keep bool

	dependents []*ContextualInstance
	mu         sync.Mutex
}

// NewCreationalContext creates a root creational context for contextual.
func NewCreationalContext(contextual Contextual) *CreationalContext {
	return &CreationalContext{contextual: contextual, logger: zap.NewNop()}
}

// Child creates the creational context of a dependent of cc.
func (cc *CreationalContext) Child(contextual Contextual) *CreationalContext {
	return &CreationalContext{contextual: contextual, parent: cc, logger: cc.logger}
}

// Contextual returns the contextual whose instance is being created.
func (cc *CreationalContext) Contextual() Contextual { return cc.contextual }

// Parent returns the parent context, or nil for a root.
func (cc *CreationalContext) Parent() *CreationalContext { return cc.parent }

// Dependents returns the retained dependents in creation order.
func (cc *CreationalContext) Dependents() []*ContextualInstance {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	return append([]*ContextualInstance(nil), cc.dependents...)
}

func (cc *CreationalContext) hasDependents() bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	return len(cc.dependents) > 0
}

func (cc *CreationalContext) addDependent(ci *ContextualInstance) {
	cc.mu.Lock()
	cc.dependents = append(cc.dependents, ci)
	cc.mu.Unlock()
}

// retain registers a dependent instance created in cc with the parent context,
// unless destroying it would have no observable effect.
func (cc *CreationalContext) retain(instance any) {
	if cc.parent == nil {
		return
	}

	observable := cc.keep
	if !observable {
		observable = true
		if o, ok := cc.contextual.(interface{ observableDestruction() bool }); ok {
			observable = o.observableDestruction()
		}
	}

	if observable || cc.hasDependents() {
		cc.parent.addDependent(&ContextualInstance{Contextual: cc.contextual, Instance: instance, CC: cc})
	}
}

// DestroyDependent destroys a retained dependent instance and forgets it.
func (cc *CreationalContext) DestroyDependent(ctx context.Context, instance any) error {
	cc.mu.Lock()
	var target *ContextualInstance
	for i, ci := range cc.dependents {
		if ci.Instance == instance {
			target = ci
			cc.dependents = append(cc.dependents[:i], cc.dependents[i+1:]...)

			break
		}
	}
	cc.mu.Unlock()

	if target == nil {
		return nil
	}

	return target.Contextual.Destroy(ctx, target.Instance, target.CC)
}

// Release destroys every retained dependent in reverse creation order. A
// failing dependent does not stop the others; failures are logged and
// returned combined.
func (cc *CreationalContext) Release(ctx context.Context) error {
	cc.mu.Lock()
	dependents := cc.dependents
	cc.dependents = nil
	cc.mu.Unlock()

	var errs error
	for i := len(dependents) - 1; i >= 0; i-- {
		ci := dependents[i]
		if err := ci.Contextual.Destroy(ctx, ci.Instance, ci.CC); err != nil {
			cc.logger.Warn("failed to destroy dependent instance",
				zap.String("bean", ci.Contextual.ID()),
				zap.Error(err),
			)
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// consumerPoint returns the injection point the instance owning the parent
// context was created for. The built-in InjectionPoint bean, created as a
// dependent of that instance, returns it.
func (cc *CreationalContext) consumerPoint() *InjectionPoint {
	if cc.parent == nil {
		return nil
	}

	return cc.parent.point
}
