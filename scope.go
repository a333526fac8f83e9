package harbor

// ScopeID identifies a scope.
type ScopeID string

// Built-in scopes.
const (
	// ScopeDependent is the default pseudo-scope: one instance per injection,
	// owned by the instance it is injected into.
	ScopeDependent ScopeID = "dependent"

	// ScopeSingleton is a pseudo-scope with one instance per container and no
	// client proxy.
	ScopeSingleton ScopeID = "singleton"

	// ScopeApplication is a normal scope shared by the whole application.
	ScopeApplication ScopeID = "application"

	// ScopeRequest is a normal scope bound to a single request.
	ScopeRequest ScopeID = "request"

	// ScopeSession is a normal scope bound to an external session store.
	ScopeSession ScopeID = "session"

	// ScopeConversation is a normal scope bound to a conversation store.
	ScopeConversation ScopeID = "conversation"
)

// ScopeInfo describes a scope.
type ScopeInfo struct {
	ID ScopeID

	// Normal scopes hand out client proxies; pseudo-scopes hand out the
	// instance itself.
	Normal bool

	// Passivating scopes may have their store serialized by the environment.
	Passivating bool
}

var builtinScopes = []ScopeInfo{
	{ID: ScopeDependent},
	{ID: ScopeSingleton},
	{ID: ScopeApplication, Normal: true},
	{ID: ScopeRequest, Normal: true},
	{ID: ScopeSession, Normal: true, Passivating: true},
	{ID: ScopeConversation, Normal: true, Passivating: true},
}

// Scope lifecycle qualifiers, fired with a ContextEvent payload.

// Initialized qualifies the event fired when a context of scope is activated.
func Initialized(scope ScopeID) Annotation {
	return NewAnnotation("Initialized", Bind("value", string(scope)))
}

// BeforeDestroyed qualifies the event fired before a context of scope is torn down.
func BeforeDestroyed(scope ScopeID) Annotation {
	return NewAnnotation("BeforeDestroyed", Bind("value", string(scope)))
}

// Destroyed qualifies the event fired after a context of scope is torn down.
func Destroyed(scope ScopeID) Annotation {
	return NewAnnotation("Destroyed", Bind("value", string(scope)))
}

// ContextEvent is the payload of scope lifecycle events.
type ContextEvent struct {
	Scope ScopeID
}
