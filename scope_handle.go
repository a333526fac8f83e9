package harbor

import (
	"context"
	"sync"
)

// sessionPrefix namespaces session instances inside external attributes.
const sessionPrefix = "harbor.session."

// ScopeHandle is an activation of a managed context bound to a
// context.Context. Beans of the scope resolved through Context() share one
// instance until the handle ends.
type ScopeHandle struct {
	mc    ManagedContext
	ctx   context.Context
	mu    sync.Mutex
	ended bool
}

// BeginRequest activates a fresh request context.
//
// Example:
//
//	rs, err := c.BeginRequest(ctx)
//	if err != nil {
//	    return err
//	}
//	defer rs.End()
//
//	svc, err := harbor.Get[*RequestState](rs.Context(), c)
func (c *Container) BeginRequest(ctx context.Context) (*ScopeHandle, error) {
	return c.begin(ctx, c.request, nil)
}

// BeginSession activates the session context over attrs. Session instances
// live in attrs, so a later BeginSession over the same attributes sees them
// until the session is ended.
func (c *Container) BeginSession(ctx context.Context, attrs Attributes) (*ScopeHandle, error) {
	if attrs == nil {
		attrs = NewMapAttributes()
	}

	return c.begin(ctx, c.session, NewAttributeBeanStore(sessionPrefix, attrs))
}

// BeginConversation activates a fresh conversation context.
func (c *Container) BeginConversation(ctx context.Context) (*ScopeHandle, error) {
	return c.begin(ctx, c.conversation, nil)
}

// Begin activates mc with store, which may be nil for an in-memory store.
func (c *Container) Begin(ctx context.Context, mc ManagedContext, store BeanStore) (*ScopeHandle, error) {
	return c.begin(ctx, mc, store)
}

func (c *Container) begin(ctx context.Context, mc ManagedContext, store BeanStore) (*ScopeHandle, error) {
	if mc.IsActive(ctx) {
		return nil, ErrDuplicateActiveContext(mc.Scope())
	}

	activated, err := mc.Activate(ctx, store)
	if err != nil {
		return nil, err
	}

	return &ScopeHandle{mc: mc, ctx: activated}, nil
}

// Scope returns the scope of the activation.
func (h *ScopeHandle) Scope() ScopeID { return h.mc.Scope() }

// Context returns the context.Context carrying the activation.
func (h *ScopeHandle) Context() context.Context { return h.ctx }

// IsActive reports whether the handle has not ended yet.
func (h *ScopeHandle) IsActive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return !h.ended
}

// End invalidates and deactivates the context, destroying its instances.
func (h *ScopeHandle) End() error {
	return h.finish(true)
}

// Detach deactivates the context without destroying its instances. Only
// useful for stores that outlive the activation, such as session attributes.
func (h *ScopeHandle) Detach() error {
	return h.finish(false)
}

func (h *ScopeHandle) finish(destroy bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ended {
		return ErrScopeEnded
	}
	h.ended = true

	if destroy {
		if err := h.mc.Invalidate(h.ctx); err != nil {
			return err
		}
	}

	return h.mc.Deactivate(h.ctx)
}
