package harbor

import (
	"context"
	"slices"
	"sync/atomic"

	"go.uber.org/zap"
)

// Contextual creates and destroys the instances a context stores. Beans are
// handed to contexts as Contextuals.
type Contextual interface {
	// ID identifies the contextual within a bean store.
	ID() string

	// Create creates a new instance.
	Create(ctx context.Context, cc *CreationalContext) (any, error)

	// Destroy destroys an instance created by Create.
	Destroy(ctx context.Context, instance any, cc *CreationalContext) error
}

// Context stores the contextual instances of one scope.
type Context interface {
	// Scope returns the scope the context serves.
	Scope() ScopeID

	// IsActive reports whether the context is active for ctx.
	IsActive(ctx context.Context) bool

	// Get returns the existing instance of contextual. When none exists and cc
	// is non-nil a new instance is created and stored; with a nil cc the
	// result is not found.
	Get(ctx context.Context, contextual Contextual, cc *CreationalContext) (any, bool, error)
}

// AlterableContext is a context whose instances can be destroyed one by one.
type AlterableContext interface {
	Context

	// Destroy destroys the instance of contextual, if any.
	Destroy(ctx context.Context, contextual Contextual) error
}

// ManagedContext is a context activated and deactivated by the environment.
// Activation state travels in context.Context values, so every call chain
// only observes its own activation.
type ManagedContext interface {
	AlterableContext

	// Activate attaches store (a fresh map store when nil), fires
	// Initialized and returns the context.Context carrying the activation.
	Activate(ctx context.Context, store BeanStore) (context.Context, error)

	// Invalidate marks the activation for destruction at deactivation.
	Invalidate(ctx context.Context) error

	// Deactivate detaches the activation. When it was invalidated, every
	// stored instance is destroyed between BeforeDestroyed and Destroyed.
	Deactivate(ctx context.Context) error
}

// contextEvents is how contexts fire scope lifecycle events.
type contextEvents func(ctx context.Context, payload any, qualifiers ...Annotation) error

// storeContext implements Get and Destroy over a bean store with
// double-checked creation.
type storeContext struct {
	scope  ScopeID
	logger *zap.Logger
}

func (s *storeContext) get(ctx context.Context, store BeanStore, contextual Contextual, cc *CreationalContext) (any, bool, error) {
	id := contextual.ID()
	if ci, ok := store.Get(id); ok {
		return ci.Instance, true, nil
	}
	if cc == nil {
		return nil, false, nil
	}

	// The per-id lock is not reentrant: creation that comes back for the
	// instance it is building fails instead of waiting on itself.
	if cycle := reentry(ctx, store, id); cycle != nil {
		return nil, false, ErrCircularDependency(cycle)
	}

	unlock := store.Lock(id)
	defer unlock()

	if ci, ok := store.Get(id); ok {
		return ci.Instance, true, nil
	}

	parent, _ := ctx.Value(creatingKey{}).(*creating)
	instance, err := contextual.Create(context.WithValue(ctx, creatingKey{}, &creating{store: store, id: id, parent: parent}), cc)
	if err != nil {
		return nil, false, err
	}

	store.Put(id, &ContextualInstance{Contextual: contextual, Instance: instance, CC: cc})
	s.logger.Debug("contextual instance created",
		zap.String("bean", id),
		zap.String("scope", string(s.scope)),
	)

	return instance, true, nil
}

type creatingKey struct{}

// creating links the contextual instances under construction on the current
// call path, innermost first.
type creating struct {
	store  BeanStore
	id     string
	parent *creating
}

// reentry returns the creation path from the outer creation of id in store
// back to id, or nil when id is not being created on this call path.
func reentry(ctx context.Context, store BeanStore, id string) []string {
	var path []string
	for cr, _ := ctx.Value(creatingKey{}).(*creating); cr != nil; cr = cr.parent {
		path = append(path, cr.id)
		if cr.store == store && cr.id == id {
			slices.Reverse(path)

			return append(path, id)
		}
	}

	return nil
}

func (s *storeContext) destroy(ctx context.Context, store BeanStore, contextual Contextual) error {
	ci, ok := store.Remove(contextual.ID())
	if !ok {
		return nil
	}

	return s.destroyInstance(ctx, ci)
}

func (s *storeContext) destroyInstance(ctx context.Context, ci *ContextualInstance) error {
	err := ci.Contextual.Destroy(ctx, ci.Instance, ci.CC)
	s.logger.Debug("contextual instance destroyed",
		zap.String("bean", ci.Contextual.ID()),
		zap.String("scope", string(s.scope)),
		zap.Error(err),
	)

	return err
}

// destroyAll destroys every stored instance, most recent first. Failures are
// logged and do not stop the teardown.
func (s *storeContext) destroyAll(ctx context.Context, store BeanStore) {
	ids := store.IDs()
	for i := len(ids) - 1; i >= 0; i-- {
		ci, ok := store.Remove(ids[i])
		if !ok {
			continue
		}
		if err := s.destroyInstance(ctx, ci); err != nil {
			s.logger.Warn("failed to destroy contextual instance",
				zap.String("bean", ids[i]),
				zap.String("scope", string(s.scope)),
				zap.Error(err),
			)
		}
	}
	store.Clear()
}

// sharedContext is an always-active context over a single store, used for
// the application and singleton scopes.
type sharedContext struct {
	storeContext
	store  BeanStore
	events contextEvents
}

func newSharedContext(scope ScopeID, logger *zap.Logger, events contextEvents) *sharedContext {
	return &sharedContext{
		storeContext: storeContext{scope: scope, logger: logger},
		store:        NewMapBeanStore(),
		events:       events,
	}
}

func (c *sharedContext) Scope() ScopeID { return c.scope }

func (c *sharedContext) IsActive(context.Context) bool { return true }

func (c *sharedContext) Get(ctx context.Context, contextual Contextual, cc *CreationalContext) (any, bool, error) {
	return c.get(ctx, c.store, contextual, cc)
}

func (c *sharedContext) Destroy(ctx context.Context, contextual Contextual) error {
	return c.destroy(ctx, c.store, contextual)
}

// shutdown destroys every instance between BeforeDestroyed and Destroyed.
func (c *sharedContext) shutdown(ctx context.Context) error {
	var err error
	if c.events != nil {
		err = c.events(ctx, ContextEvent{Scope: c.scope}, BeforeDestroyed(c.scope))
	}
	c.destroyAll(ctx, c.store)
	if c.events != nil {
		if ferr := c.events(ctx, ContextEvent{Scope: c.scope}, Destroyed(c.scope)); err == nil {
			err = ferr
		}
	}

	return err
}

// dependentContext creates a new instance on every Get and registers it with
// the parent creational context when its destruction is observable.
type dependentContext struct{}

func (dependentContext) Scope() ScopeID { return ScopeDependent }

func (dependentContext) IsActive(context.Context) bool { return true }

func (dependentContext) Get(ctx context.Context, contextual Contextual, cc *CreationalContext) (any, bool, error) {
	if cc == nil {
		return nil, false, nil
	}

	instance, err := contextual.Create(ctx, cc)
	if err != nil {
		return nil, false, err
	}
	cc.retain(instance)

	return instance, true, nil
}

type activationKey struct {
	ctx *managedContext
}

type activation struct {
	store       BeanStore
	invalidated atomic.Bool
	active      atomic.Bool
}

// managedContext is a context whose activations are carried by
// context.Context values: request, session and conversation.
type managedContext struct {
	storeContext
	events contextEvents
}

// NewManagedContext creates a managed context for scope. Extensions use it to
// add contexts for custom normal scopes.
func (c *Container) NewManagedContext(scope ScopeID) ManagedContext {
	return newManagedContext(scope, c.logger, c.fireContextEvent)
}

func newManagedContext(scope ScopeID, logger *zap.Logger, events contextEvents) *managedContext {
	return &managedContext{
		storeContext: storeContext{scope: scope, logger: logger},
		events:       events,
	}
}

func (m *managedContext) Scope() ScopeID { return m.scope }

func (m *managedContext) activation(ctx context.Context) *activation {
	if ctx == nil {
		return nil
	}

	a, _ := ctx.Value(activationKey{m}).(*activation)
	if a == nil || !a.active.Load() {
		return nil
	}

	return a
}

func (m *managedContext) IsActive(ctx context.Context) bool {
	return m.activation(ctx) != nil
}

func (m *managedContext) Activate(ctx context.Context, store BeanStore) (context.Context, error) {
	if store == nil {
		store = NewMapBeanStore()
	}

	a := &activation{store: store}
	a.active.Store(true)
	ctx = context.WithValue(ctx, activationKey{m}, a)

	m.logger.Debug("context activated", zap.String("scope", string(m.scope)))

	if m.events != nil {
		if err := m.events(ctx, ContextEvent{Scope: m.scope}, Initialized(m.scope)); err != nil {
			return ctx, err
		}
	}

	return ctx, nil
}

func (m *managedContext) Invalidate(ctx context.Context) error {
	a := m.activation(ctx)
	if a == nil {
		return ErrNotActive(m.scope)
	}
	a.invalidated.Store(true)

	return nil
}

func (m *managedContext) Deactivate(ctx context.Context) error {
	a := m.activation(ctx)
	if a == nil {
		return ErrNotActive(m.scope)
	}

	var err error
	if a.invalidated.Load() {
		if m.events != nil {
			err = m.events(ctx, ContextEvent{Scope: m.scope}, BeforeDestroyed(m.scope))
		}

		m.destroyAll(ctx, a.store)
		a.active.Store(false)

		if m.events != nil {
			if ferr := m.events(ctx, ContextEvent{Scope: m.scope}, Destroyed(m.scope)); err == nil {
				err = ferr
			}
		}
	} else {
		a.active.Store(false)
	}

	m.logger.Debug("context deactivated",
		zap.String("scope", string(m.scope)),
		zap.Bool("destroyed", a.invalidated.Load()),
	)

	return err
}

func (m *managedContext) Get(ctx context.Context, contextual Contextual, cc *CreationalContext) (any, bool, error) {
	a := m.activation(ctx)
	if a == nil {
		return nil, false, ErrNotActive(m.scope)
	}

	return m.get(ctx, a.store, contextual, cc)
}

func (m *managedContext) Destroy(ctx context.Context, contextual Contextual) error {
	a := m.activation(ctx)
	if a == nil {
		return ErrNotActive(m.scope)
	}

	return m.destroy(ctx, a.store, contextual)
}
