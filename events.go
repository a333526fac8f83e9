package harbor

import (
	"context"
	"reflect"
	"sort"
	"sync"
)

// DefaultObserverPriority is the priority of observers that declare none.
const DefaultObserverPriority = 2500

// Reception controls whether an observer's bean is instantiated to receive
// an event.
type Reception uint8

const (
	// Always creates the observer's bean instance when needed.
	Always Reception = iota
	// IfExists only notifies an already existing instance in an active context.
	IfExists
)

// EventMetadata describes the event being delivered.
type EventMetadata struct {
	Type       *Type
	Qualifiers []Annotation
}

// ObserverFunc is an observer method. The receiver is the bean instance, or
// nil for static observers and observers added by extensions.
type ObserverFunc func(ctx context.Context, receiver any, event any, meta EventMetadata) error

// ObserverMethod is an observer of events of a type with given qualifiers.
type ObserverMethod struct {
	Name       string
	EventType  *Type
	Qualifiers []Annotation
	Reception  Reception
	Priority   int
	Static     bool
	Notify     ObserverFunc

	bean  *Bean
	order int
}

// ObserverOption configures an observer method.
type ObserverOption func(*ObserverMethod)

// Observer creates an observer method of eventType.
func Observer(name string, eventType *Type, fn ObserverFunc, opts ...ObserverOption) *ObserverMethod {
	o := &ObserverMethod{
		Name:      name,
		EventType: eventType,
		Priority:  DefaultObserverPriority,
		Notify:    fn,
	}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// ObserveQualifiers restricts the observer to events carrying the qualifiers.
func ObserveQualifiers(qualifiers ...Annotation) ObserverOption {
	return func(o *ObserverMethod) {
		o.Qualifiers = append(o.Qualifiers, qualifiers...)
	}
}

// ObserveIfExists makes the observer conditional.
func ObserveIfExists() ObserverOption {
	return func(o *ObserverMethod) {
		o.Reception = IfExists
	}
}

// ObserverPriority orders the observer; lower values are notified first.
func ObserverPriority(priority int) ObserverOption {
	return func(o *ObserverMethod) {
		o.Priority = priority
	}
}

// StaticObserver makes the observer independent of any bean instance.
func StaticObserver() ObserverOption {
	return func(o *ObserverMethod) {
		o.Static = true
	}
}

// Bean returns the declaring bean, or nil.
func (o *ObserverMethod) Bean() *Bean { return o.bean }

func (o *ObserverMethod) clone(bean *Bean) *ObserverMethod {
	c := *o
	c.bean = bean

	return &c
}

// TypedEvent lets a payload report its own event type, for parameterized
// event types that reflection cannot express.
type TypedEvent interface {
	EventType() *Type
}

// observerRegistry holds observer methods in notification order and caches
// the resolved observers per event type and qualifiers.
type observerRegistry struct {
	observers []*ObserverMethod
	cache     map[string][]*ObserverMethod
	next      int
	mu        sync.RWMutex
}

func newObserverRegistry() *observerRegistry {
	return &observerRegistry{cache: make(map[string][]*ObserverMethod)}
}

func (r *observerRegistry) add(o *ObserverMethod) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o.order = r.next
	r.next++
	r.observers = append(r.observers, o)
	sort.SliceStable(r.observers, func(i, j int) bool {
		if r.observers[i].Priority != r.observers[j].Priority {
			return r.observers[i].Priority < r.observers[j].Priority
		}

		return r.observers[i].order < r.observers[j].order
	})
	r.cache = make(map[string][]*ObserverMethod)
}

func (r *observerRegistry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.observers = nil
	r.cache = make(map[string][]*ObserverMethod)
}

func (r *observerRegistry) resolve(h *Hierarchy, eventType *Type, qualifiers []Annotation) []*ObserverMethod {
	key := eventType.Key() + "#" + qualifiersKey(qualifiers)

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*ObserverMethod
	for _, o := range r.observers {
		if containsAllAnnotations(qualifiers, o.Qualifiers) && h.eventAssignable(o.EventType, eventType) {
			out = append(out, o)
		}
	}
	r.cache[key] = out

	return out
}

// eventQualifiers normalizes the qualifiers of a fired event: Default when
// none are given, and Any always.
func eventQualifiers(qualifiers []Annotation) []Annotation {
	out := append([]Annotation(nil), qualifiers...)
	if len(out) == 0 {
		out = append(out, Default)
	}
	if !containsAnnotation(out, Any) {
		out = append(out, Any)
	}

	return out
}

func eventTypeOf(payload any) *Type {
	if t, ok := payload.(TypedEvent); ok {
		return t.EventType()
	}

	return TypeFor(reflect.TypeOf(payload))
}

// Fire delivers payload synchronously to every matching observer: observers
// of a type assignable from the payload type whose qualifiers are all carried
// by the event. Delivery stops at the first observer error.
func (c *Container) Fire(ctx context.Context, payload any, qualifiers ...Annotation) error {
	return c.fire(ctx, eventTypeOf(payload), payload, qualifiers)
}

// FireEvent fires payload as an event of eventType, for event types the
// payload's Go type cannot express.
func (c *Container) FireEvent(ctx context.Context, eventType *Type, payload any, qualifiers ...Annotation) error {
	return c.fire(ctx, eventType, payload, qualifiers)
}

func (c *Container) fire(ctx context.Context, eventType *Type, payload any, qualifiers []Annotation) error {
	qualifiers = eventQualifiers(qualifiers)
	meta := EventMetadata{Type: eventType, Qualifiers: qualifiers}

	for _, o := range c.observers.resolve(c.hierarchy, eventType, qualifiers) {
		if err := c.notify(ctx, o, payload, meta); err != nil {
			return err
		}
	}

	return nil
}

// fireContextEvent fires scope lifecycle events.
func (c *Container) fireContextEvent(ctx context.Context, payload any, qualifiers ...Annotation) error {
	return c.Fire(ctx, payload, qualifiers...)
}

func (c *Container) notify(ctx context.Context, o *ObserverMethod, payload any, meta EventMetadata) error {
	if o.Static || o.bean == nil {
		return o.Notify(ctx, nil, payload, meta)
	}

	bean := o.bean
	contextual := c.contextual(bean)

	if o.Reception == IfExists {
		if bean.scope == ScopeDependent {
			return nil
		}

		scoped, err := c.contexts.active(ctx, bean.scope)
		if err != nil {
			return nil
		}

		instance, found, err := scoped.Get(ctx, contextual, nil)
		if err != nil || !found {
			return err
		}

		return o.Notify(ctx, unwrap(instance), payload, meta)
	}

	if bean.scope == ScopeDependent {
		cc := c.newCreationalContext(bean)
		instance, err := c.createInstance(ctx, bean, cc)
		if err != nil {
			return err
		}

		notifyErr := o.Notify(ctx, unwrap(instance), payload, meta)
		if err := c.destroyInstance(ctx, bean, instance, cc); err != nil && notifyErr == nil {
			return err
		}

		return notifyErr
	}

	instance, err := c.contextualInstance(ctx, bean)
	if err != nil {
		return err
	}

	return o.Notify(ctx, unwrap(instance), payload, meta)
}

// Event is a typed event emitter, injectable through EventOf.
type Event struct {
	c          *Container
	typ        *Type
	qualifiers []Annotation
}

// EventOf returns the injectable type of an event emitter for t.
func EventOf(t *Type) *Type {
	return Generic("harbor.Event", t)
}

// Event returns an emitter of events of type t with the given qualifiers.
func (c *Container) Event(t *Type, qualifiers ...Annotation) *Event {
	return &Event{c: c, typ: t, qualifiers: qualifiers}
}

// Type returns the declared event type.
func (e *Event) Type() *Type { return e.typ }

// Select returns an emitter with additional qualifiers.
func (e *Event) Select(qualifiers ...Annotation) *Event {
	return &Event{
		c:          e.c,
		typ:        e.typ,
		qualifiers: append(append([]Annotation(nil), e.qualifiers...), qualifiers...),
	}
}

// Fire fires payload with the emitter's qualifiers. Observers are matched
// against the payload's runtime type.
func (e *Event) Fire(ctx context.Context, payload any) error {
	t := eventTypeOf(payload)
	if _, ok := payload.(TypedEvent); !ok && e.typ.Kind() == KindParameterized {
		t = e.typ
	}

	return e.c.fire(ctx, t, payload, e.qualifiers)
}

// effectiveObservers returns the observers of bean including inherited ones.
// An inherited observer is dropped when the bean overrides it, and replaced
// when the bean observes it again under the same name.
func (c *Container) effectiveObservers(bean *Bean) []*ObserverMethod {
	out := make([]*ObserverMethod, 0, len(bean.observers))
	declared := make(map[string]bool)
	for _, o := range bean.observers {
		out = append(out, o)
		declared[o.Name] = true
	}

	seen := map[string]bool{bean.id: true}
	suppressed := make(map[string]bool)
	for m := range bean.overrides {
		suppressed[m] = true
	}

	for parentID := bean.Parent(); parentID != "" && !seen[parentID]; {
		seen[parentID] = true

		parent, ok := c.registry.get(parentID)
		if !ok {
			break
		}

		for _, o := range parent.observers {
			if declared[o.Name] || suppressed[o.Name] {
				continue
			}
			declared[o.Name] = true
			out = append(out, o.clone(bean))
		}
		for m := range parent.overrides {
			suppressed[m] = true
		}

		parentID = parent.Parent()
	}

	return out
}
