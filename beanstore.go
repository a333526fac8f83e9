package harbor

import (
	"sort"
	"strings"
	"sync"
)

// ContextualInstance is an instance stored in a context together with the
// contextual that created it and its creational context.
type ContextualInstance struct {
	Contextual Contextual
	Instance   any
	CC         *CreationalContext
}

// BeanStore is the storage backing a context. Implementations must be safe
// for concurrent use.
type BeanStore interface {
	// Get returns the instance stored under id.
	Get(id string) (*ContextualInstance, bool)

	// Put stores an instance under id.
	Put(id string, instance *ContextualInstance)

	// Remove deletes and returns the instance stored under id.
	Remove(id string) (*ContextualInstance, bool)

	// IDs returns the stored ids in insertion order.
	IDs() []string

	// Clear removes every instance without destroying it.
	Clear()

	// Lock acquires the creation lock for id and returns its release function.
	Lock(id string) func()
}

// lockTable hands out one mutex per bean id so creation of unrelated beans
// never serializes.
type lockTable struct {
	locks map[string]*sync.Mutex
	mu    sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*sync.Mutex)}
}

func (t *lockTable) lock(id string) func() {
	t.mu.Lock()
	l, ok := t.locks[id]
	if !ok {
		l = &sync.Mutex{}
		t.locks[id] = l
	}
	t.mu.Unlock()

	l.Lock()

	return l.Unlock
}

// MapBeanStore is an in-memory bean store.
type MapBeanStore struct {
	instances map[string]*ContextualInstance
	order     []string
	locks     *lockTable
	mu        sync.RWMutex
}

// NewMapBeanStore creates an empty in-memory bean store.
func NewMapBeanStore() *MapBeanStore {
	return &MapBeanStore{
		instances: make(map[string]*ContextualInstance),
		locks:     newLockTable(),
	}
}

// Get implements BeanStore.
func (s *MapBeanStore) Get(id string) (*ContextualInstance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ci, ok := s.instances[id]

	return ci, ok
}

// Put implements BeanStore.
func (s *MapBeanStore) Put(id string, instance *ContextualInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.instances[id]; !exists {
		s.order = append(s.order, id)
	}
	s.instances[id] = instance
}

// Remove implements BeanStore.
func (s *MapBeanStore) Remove(id string) (*ContextualInstance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ci, ok := s.instances[id]
	if !ok {
		return nil, false
	}

	delete(s.instances, id)
	for i, e := range s.order {
		if e == id {
			s.order = append(s.order[:i], s.order[i+1:]...)

			break
		}
	}

	return ci, true
}

// IDs implements BeanStore.
func (s *MapBeanStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.order...)
}

// Clear implements BeanStore.
func (s *MapBeanStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.instances = make(map[string]*ContextualInstance)
	s.order = nil
}

// Lock implements BeanStore.
func (s *MapBeanStore) Lock(id string) func() {
	return s.locks.lock(id)
}

// Attributes is an external attribute map, such as an HTTP session, that a
// bean store can be bound to.
type Attributes interface {
	Attribute(name string) (any, bool)
	SetAttribute(name string, value any)
	RemoveAttribute(name string)
	AttributeNames() []string
}

// attributeLoader is implemented by attribute maps that can atomically
// initialize an attribute.
type attributeLoader interface {
	LoadOrStore(name string, value any) (any, bool)
}

// MapAttributes is a concurrency-safe in-memory Attributes implementation.
type MapAttributes struct {
	values map[string]any
	mu     sync.RWMutex
}

// NewMapAttributes creates an empty attribute map.
func NewMapAttributes() *MapAttributes {
	return &MapAttributes{values: make(map[string]any)}
}

// Attribute implements Attributes.
func (m *MapAttributes) Attribute(name string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[name]

	return v, ok
}

// SetAttribute implements Attributes.
func (m *MapAttributes) SetAttribute(name string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[name] = value
}

// RemoveAttribute implements Attributes.
func (m *MapAttributes) RemoveAttribute(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, name)
}

// AttributeNames implements Attributes. Names are sorted.
func (m *MapAttributes) AttributeNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.values))
	for n := range m.values {
		names = append(names, n)
	}
	sort.Strings(names)

	return names
}

// LoadOrStore returns the existing value of name, or stores and returns value.
func (m *MapAttributes) LoadOrStore(name string, value any) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.values[name]; ok {
		return v, true
	}
	m.values[name] = value

	return value, false
}

// AttributeBeanStore is a bean store whose instances live in an external
// attribute map under a name prefix. Several stores created over the same
// attributes share their data and, when the attributes support LoadOrStore,
// their creation locks.
type AttributeBeanStore struct {
	prefix string
	attrs  Attributes
	locks  *lockTable
}

// NewAttributeBeanStore binds a bean store to attrs.
func NewAttributeBeanStore(prefix string, attrs Attributes) *AttributeBeanStore {
	locks := newLockTable()
	if loader, ok := attrs.(attributeLoader); ok {
		v, _ := loader.LoadOrStore(prefix+"#locks", locks)
		if shared, ok := v.(*lockTable); ok {
			locks = shared
		}
	}

	return &AttributeBeanStore{prefix: prefix, attrs: attrs, locks: locks}
}

func (s *AttributeBeanStore) key(id string) string { return s.prefix + id }

// Get implements BeanStore.
func (s *AttributeBeanStore) Get(id string) (*ContextualInstance, bool) {
	v, ok := s.attrs.Attribute(s.key(id))
	if !ok {
		return nil, false
	}

	ci, ok := v.(*ContextualInstance)

	return ci, ok
}

// Put implements BeanStore.
func (s *AttributeBeanStore) Put(id string, instance *ContextualInstance) {
	s.attrs.SetAttribute(s.key(id), instance)
}

// Remove implements BeanStore.
func (s *AttributeBeanStore) Remove(id string) (*ContextualInstance, bool) {
	ci, ok := s.Get(id)
	if ok {
		s.attrs.RemoveAttribute(s.key(id))
	}

	return ci, ok
}

// IDs implements BeanStore. Attribute maps carry no insertion order, so ids
// are returned in attribute name order.
func (s *AttributeBeanStore) IDs() []string {
	var ids []string
	for _, name := range s.attrs.AttributeNames() {
		if !strings.HasPrefix(name, s.prefix) {
			continue
		}
		if v, _ := s.attrs.Attribute(name); v != nil {
			if _, ok := v.(*ContextualInstance); ok {
				ids = append(ids, strings.TrimPrefix(name, s.prefix))
			}
		}
	}

	return ids
}

// Clear implements BeanStore.
func (s *AttributeBeanStore) Clear() {
	for _, id := range s.IDs() {
		s.attrs.RemoveAttribute(s.key(id))
	}
}

// Lock implements BeanStore.
func (s *AttributeBeanStore) Lock(id string) func() {
	return s.locks.lock(id)
}
