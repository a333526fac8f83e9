package harbor

import (
	"sync"
)

type registryPhase uint8

const (
	phaseDiscovery registryPhase = iota
	phaseDeployed
)

// registry holds every bean definition, indexed by the raw key of each type
// in its closure so lookups only visit beans that can possibly match.
type registry struct {
	beans     map[string]*Bean
	order     []*Bean
	byType    map[string][]*Bean
	hierarchy *Hierarchy
	phase     registryPhase
	version   uint64
	onChange  []func()
	mu        sync.RWMutex
}

func newRegistry(h *Hierarchy) *registry {
	return &registry{
		beans:     make(map[string]*Bean),
		byType:    make(map[string][]*Bean),
		hierarchy: h,
	}
}

// register adds a bean definition. Registration is only possible during
// discovery; afterwards the registry is read-only.
func (r *registry) register(b *Bean) error {
	if err := b.finish(); err != nil {
		return err
	}

	r.mu.Lock()
	if r.phase != phaseDiscovery {
		r.mu.Unlock()

		return ErrRegistryClosed
	}

	if _, exists := r.beans[b.id]; exists {
		r.mu.Unlock()

		return ErrBeanAlreadyExists(b.id)
	}

	b.enabled = defaultEnablement(b)
	r.beans[b.id] = b
	r.order = append(r.order, b)
	r.index(b)
	r.version++
	hooks := r.onChange
	r.mu.Unlock()

	if len(b.types) > 1 {
		r.hierarchy.Declare(b.types[0], b.types[1:]...)
	}

	for _, fn := range hooks {
		fn()
	}

	return nil
}

// remove drops a bean during discovery (extension veto).
func (r *registry) remove(id string) bool {
	r.mu.Lock()
	b, ok := r.beans[id]
	if !ok || r.phase != phaseDiscovery {
		r.mu.Unlock()

		return false
	}

	delete(r.beans, id)
	r.order = removeBean(r.order, b)
	for _, t := range b.types {
		key := t.indexKey()
		r.byType[key] = removeBean(r.byType[key], b)
	}
	r.version++
	hooks := r.onChange
	r.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}

	return true
}

func (r *registry) index(b *Bean) {
	for _, t := range b.types {
		key := t.indexKey()
		if key == "" {
			continue
		}
		if list := r.byType[key]; len(list) == 0 || list[len(list)-1] != b {
			r.byType[key] = append(list, b)
		}
	}
}

// reindex rebuilds the type index and hierarchy after bean definitions were
// reconfigured during deployment.
func (r *registry) reindex() {
	r.mu.Lock()
	r.byType = make(map[string][]*Bean)
	for _, b := range r.order {
		r.index(b)
	}
	beans := append([]*Bean(nil), r.order...)
	r.mu.Unlock()

	for _, b := range beans {
		if len(b.types) > 1 {
			r.hierarchy.Declare(b.types[0], b.types[1:]...)
		}
	}

	r.changed()
}

// get returns a bean by id.
func (r *registry) get(id string) (*Bean, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.beans[id]

	return b, ok
}

// all returns every bean in registration order.
func (r *registry) all() []*Bean {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Bean, len(r.order))
	copy(out, r.order)

	return out
}

// candidates returns the beans that may expose a type assignable to
// required. Only ObjectType, wildcards and type variables need a full scan.
func (r *registry) candidates(required *Type) []*Bean {
	key := required.indexKey()
	if key == "" || required.Equal(ObjectType) {
		return r.all()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.byType[key]
	out := make([]*Bean, len(list))
	copy(out, list)

	return out
}

// close ends the discovery phase.
func (r *registry) close() {
	r.mu.Lock()
	r.phase = phaseDeployed
	r.mu.Unlock()
}

func (r *registry) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.phase != phaseDiscovery
}

// changed notifies listeners of a mutation that does not add or remove a
// bean, such as recomputed enablement.
func (r *registry) changed() {
	r.mu.Lock()
	r.version++
	hooks := r.onChange
	r.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func (r *registry) subscribe(fn func()) {
	r.mu.Lock()
	r.onChange = append(r.onChange, fn)
	r.mu.Unlock()
}

// defaultEnablement enables plain beans, and alternatives, interceptors and
// decorators that carry a priority. Descriptor entries are applied at deployment.
func defaultEnablement(b *Bean) bool {
	if b.alternative || b.interceptor != nil || b.decorator != nil {
		return b.hasPriority
	}

	return true
}

func removeBean(list []*Bean, b *Bean) []*Bean {
	out := list[:0]
	for _, e := range list {
		if e != b {
			out = append(out, e)
		}
	}

	return out
}
