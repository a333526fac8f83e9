package harbor

import (
	"context"
	"sync"
)

// contextRegistry maps each scope to its definition and contexts.
type contextRegistry struct {
	scopes   map[ScopeID]ScopeInfo
	contexts map[ScopeID][]Context
	mu       sync.RWMutex
}

func newContextRegistry() *contextRegistry {
	r := &contextRegistry{
		scopes:   make(map[ScopeID]ScopeInfo),
		contexts: make(map[ScopeID][]Context),
	}
	for _, s := range builtinScopes {
		r.scopes[s.ID] = s
	}

	return r
}

func (r *contextRegistry) addScope(info ScopeInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.scopes[info.ID] = info
}

func (r *contextRegistry) addContext(c Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.contexts[c.Scope()] = append(r.contexts[c.Scope()], c)
}

func (r *contextRegistry) scope(id ScopeID) (ScopeInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.scopes[id]

	return info, ok
}

// active returns the single active context of scope.
func (r *contextRegistry) active(ctx context.Context, scope ScopeID) (Context, error) {
	r.mu.RLock()
	contexts := r.contexts[scope]
	_, known := r.scopes[scope]
	r.mu.RUnlock()

	if !known && len(contexts) == 0 {
		return nil, ErrUnknownScope(scope)
	}

	var found Context
	for _, c := range contexts {
		if !c.IsActive(ctx) {
			continue
		}
		if found != nil {
			return nil, ErrDuplicateActiveContext(scope)
		}
		found = c
	}

	if found == nil {
		return nil, ErrNotActive(scope)
	}

	return found, nil
}

// GetContext returns the active context of scope for ctx.
func (c *Container) GetContext(ctx context.Context, scope ScopeID) (Context, error) {
	return c.contexts.active(ctx, scope)
}

// IsActive reports whether scope has an active context for ctx.
func (c *Container) IsActive(ctx context.Context, scope ScopeID) bool {
	_, err := c.contexts.active(ctx, scope)

	return err == nil
}

// Scope returns the definition of a registered scope.
func (c *Container) Scope(id ScopeID) (ScopeInfo, bool) {
	return c.contexts.scope(id)
}

// RequestContext returns the built-in request context.
func (c *Container) RequestContext() ManagedContext { return c.request }

// SessionContext returns the built-in session context. Bind it to an external
// session with NewAttributeBeanStore.
func (c *Container) SessionContext() ManagedContext { return c.session }

// ConversationContext returns the built-in conversation context.
func (c *Container) ConversationContext() ManagedContext { return c.conversation }

// RunInRequest runs fn inside a fresh request context that is invalidated and
// deactivated when fn returns. An already active request context is reused.
func (c *Container) RunInRequest(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.request.IsActive(ctx) {
		return fn(ctx)
	}

	rctx, err := c.request.Activate(ctx, nil)
	if err != nil {
		return err
	}

	runErr := fn(rctx)

	_ = c.request.Invalidate(rctx)
	if err := c.request.Deactivate(rctx); err != nil && runErr == nil {
		return err
	}

	return runErr
}
