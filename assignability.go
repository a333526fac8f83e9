package harbor

import (
	"reflect"
	"sync"
)

// Hierarchy records declared supertypes. Bean type closures feed it during
// registration, and callers may declare further relations for types that are
// only ever used as wildcard or type-variable bounds.
type Hierarchy struct {
	supers map[string][]*Type
	mu     sync.RWMutex
}

// NewHierarchy creates an empty hierarchy.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{supers: make(map[string][]*Type)}
}

// Declare records that sub is assignable to each of supers.
func (h *Hierarchy) Declare(sub *Type, supers ...*Type) {
	h.mu.Lock()
	defer h.mu.Unlock()

	existing := h.supers[sub.key]
	for _, s := range supers {
		if s.Equal(sub) || containsType(existing, s) {
			continue
		}
		existing = append(existing, s)
	}
	h.supers[sub.key] = existing
}

// Supertypes returns the direct supertypes declared for t.
func (h *Hierarchy) Supertypes(t *Type) []*Type {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.supers[t.key]
}

// isAssignableFrom reports whether a value of type from can be used where to
// is expected (covariant assignability, used for bounds).
func (h *Hierarchy) isAssignableFrom(to, from *Type) bool {
	return h.assignable(to, from, make(map[string]bool))
}

func (h *Hierarchy) assignable(to, from *Type, seen map[string]bool) bool {
	if to.Equal(ObjectType) || to.Equal(from) {
		return true
	}

	switch to.kind {
	case KindWildcard:
		for _, u := range to.upper {
			if !h.assignable(u, from, seen) {
				return false
			}
		}
		for _, l := range to.lower {
			if !h.assignable(from, l, seen) {
				return false
			}
		}

		return true
	case KindVariable:
		return false
	}

	switch from.kind {
	case KindVariable, KindWildcard:
		for _, b := range from.upper {
			if h.assignable(to, b, seen) {
				return true
			}
		}

		return false
	case KindArray:
		return to.kind == KindArray && h.assignable(to.elem, from.elem, seen)
	}

	if to.kind == KindParameterized && from.kind == KindParameterized && to.name == from.name {
		if len(to.args) != len(from.args) {
			return false
		}
		for i := range to.args {
			if !h.argumentContains(to.args[i], from.args[i], seen) {
				return false
			}
		}

		return true
	}

	if to.rtype != nil && from.rtype != nil && from.rtype.AssignableTo(to.rtype) {
		return true
	}

	if seen[from.key] {
		return false
	}
	seen[from.key] = true

	for _, s := range h.Supertypes(from) {
		if h.assignable(to, s, seen) {
			return true
		}
	}

	return false
}

// argumentContains implements type-argument containment: an actual argument
// must match exactly, a wildcard contains every type within its bounds.
func (h *Hierarchy) argumentContains(to, from *Type, seen map[string]bool) bool {
	if to.kind == KindWildcard {
		return h.assignable(to, from, seen)
	}

	return to.Equal(from)
}

// beanAssignable reports whether a bean exposing beanType satisfies an
// injection point requiring required.
func (h *Hierarchy) beanAssignable(required, beanType *Type) bool {
	if required.kind == KindArray && beanType.kind == KindArray {
		return h.beanAssignable(required.elem, beanType.elem)
	}

	switch required.kind {
	case KindClass:
		switch beanType.kind {
		case KindClass:
			return required.name == beanType.name
		case KindParameterized:
			return required.name == beanType.name && allUnboundedOrObject(beanType.args)
		}
	case KindParameterized:
		switch beanType.kind {
		case KindClass:
			return required.name == beanType.name && allUnboundedOrObject(required.args)
		case KindParameterized:
			if required.name != beanType.name || len(required.args) != len(beanType.args) {
				return false
			}
			for i := range required.args {
				if !h.parametersMatch(required.args[i], beanType.args[i]) {
					return false
				}
			}

			return true
		}
	case KindVariable, KindWildcard:
		for _, b := range required.upper {
			if !h.isAssignableFrom(b, beanType) {
				return false
			}
		}

		return true
	}

	return false
}

func (h *Hierarchy) parametersMatch(required, bean *Type) bool {
	switch {
	case required.isActual() && bean.isActual():
		return h.beanAssignable(required, bean)
	case required.kind == KindWildcard && bean.isActual():
		return h.isAssignableFrom(required, bean)
	case required.kind == KindWildcard && bean.kind == KindVariable:
		for _, bound := range bean.upper {
			upper := required.upper[0]
			if !h.isAssignableFrom(bound, upper) && !h.isAssignableFrom(upper, bound) {
				return false
			}
			if len(required.lower) > 0 && !h.isAssignableFrom(bound, required.lower[0]) {
				return false
			}
		}

		return true
	case required.isActual() && bean.kind == KindVariable:
		for _, bound := range bean.upper {
			if bound.kind == KindVariable {
				if !h.parametersMatch(required, bound) {
					return false
				}
			} else if !h.isAssignableFrom(bound, required) {
				return false
			}
		}

		return true
	case required.kind == KindVariable && bean.kind == KindVariable:
		for _, rb := range required.upper {
			for _, bb := range bean.upper {
				if !h.isAssignableFrom(bb, rb) {
					return false
				}
			}
		}

		return true
	}

	return false
}

// eventAssignable reports whether an observer of observed is notified of an
// event whose runtime type is eventType.
func (h *Hierarchy) eventAssignable(observed, eventType *Type) bool {
	if observed.Equal(ObjectType) || observed.Equal(eventType) {
		return true
	}

	if observed.rtype != nil && eventType.rtype != nil {
		if observed.rtype.Kind() == reflect.Interface && eventType.rtype.Implements(observed.rtype) {
			return true
		}
	}

	if observed.kind == KindParameterized && eventType.kind == KindParameterized && observed.name == eventType.name {
		if len(observed.args) != len(eventType.args) {
			return false
		}
		for i := range observed.args {
			oa := observed.args[i]
			if oa.kind == KindVariable || oa.kind == KindWildcard {
				if !h.isAssignableFrom(oa, eventType.args[i]) {
					return false
				}
			} else if !oa.Equal(eventType.args[i]) {
				return false
			}
		}

		return true
	}

	return h.isAssignableFrom(observed, eventType)
}

func allUnboundedOrObject(args []*Type) bool {
	for _, a := range args {
		if !a.isUnboundedVariableOrObject() {
			return false
		}
	}

	return true
}

func containsType(types []*Type, t *Type) bool {
	for _, e := range types {
		if e.Equal(t) {
			return true
		}
	}

	return false
}
