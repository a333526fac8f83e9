package harbor

import (
	"sort"

	"github.com/xraph/go-utils/errs"
)

// BeanInfo is diagnostic information about a bean.
type BeanInfo struct {
	ID           string
	Class        string
	Name         string
	Unit         string
	Kind         string
	Scope        ScopeID
	Types        []string
	Qualifiers   []string
	Stereotypes  []string
	Enabled      bool
	Alternative  bool
	Priority     *int
	Specializes  string
	Interceptors []string
	Decorators   []string

	// Instantiated is true when an instance of an application-scoped or
	// singleton bean currently exists.
	Instantiated bool
}

// BeanQuery defines criteria for querying beans. Zero fields match all beans.
type BeanQuery struct {
	// Scope filters by bean scope.
	Scope ScopeID

	// Kind filters by bean kind (managed, producer, builtin).
	Kind string

	// Unit filters by deployment unit.
	Unit string

	// Qualifier filters by a qualifier the bean must carry.
	Qualifier *Annotation

	// Type filters by a type the bean must be assignable to.
	Type *Type

	// Stereotype filters by a declared stereotype.
	Stereotype string

	// Enabled filters by enablement.
	Enabled *bool

	// Instantiated filters by whether a shared instance exists.
	Instantiated *bool
}

// Inspect returns diagnostic information about a bean.
func (c *Container) Inspect(id string) (BeanInfo, error) {
	b, ok := c.registry.get(id)
	if !ok {
		return BeanInfo{ID: id}, errs.NewError(CodeUnsatisfied, "bean '"+id+"' not found", nil).WithContext("bean", id)
	}

	return c.inspect(b), nil
}

func (c *Container) inspect(b *Bean) BeanInfo {
	info := BeanInfo{
		ID:          b.id,
		Class:       b.class,
		Name:        b.name,
		Unit:        b.unit,
		Kind:        b.kind.String(),
		Scope:       b.scope,
		Stereotypes: append([]string(nil), b.stereotypes...),
		Enabled:     b.enabled,
		Alternative: b.alternative,
		Specializes: b.specializes,
	}

	if p, ok := b.Priority(); ok {
		info.Priority = &p
	}

	for _, t := range b.types {
		info.Types = append(info.Types, t.String())
	}
	for _, q := range b.qualifiers {
		info.Qualifiers = append(info.Qualifiers, q.String())
	}

	if c.IsDeployed() && b.enabled {
		model := c.interceptionModel(b)
		for _, i := range model.Interceptors() {
			info.Interceptors = append(info.Interceptors, i.id)
		}
		for _, d := range model.Decorators() {
			info.Decorators = append(info.Decorators, d.id)
		}
	}

	switch b.scope {
	case ScopeApplication:
		_, info.Instantiated = c.application.store.Get(b.id)
	case ScopeSingleton:
		_, info.Instantiated = c.singleton.store.Get(b.id)
	}

	return info
}

// QueryBeans returns information about beans matching the query, ordered by
// id.
//
// Example:
//
//	// Find all enabled request-scoped beans
//	enabled := true
//	results := harbor.QueryBeans(c, harbor.BeanQuery{
//	    Scope:   harbor.ScopeRequest,
//	    Enabled: &enabled,
//	})
func QueryBeans(c *Container, query BeanQuery) []BeanInfo {
	beans := c.registry.all()
	sort.Slice(beans, func(i, j int) bool { return beans[i].id < beans[j].id })

	var results []BeanInfo
	for _, b := range beans {
		if query.Scope != "" && b.scope != query.Scope {
			continue
		}
		if query.Kind != "" && b.kind.String() != query.Kind {
			continue
		}
		if query.Unit != "" && b.unit != query.Unit {
			continue
		}
		if query.Qualifier != nil && !containsAnnotation(b.qualifiers, *query.Qualifier) {
			continue
		}
		if query.Type != nil && !c.resolver.matchesType(b, query.Type) {
			continue
		}
		if query.Stereotype != "" && !containsString(b.stereotypes, query.Stereotype) {
			continue
		}
		if query.Enabled != nil && b.enabled != *query.Enabled {
			continue
		}

		info := c.inspect(b)
		if query.Instantiated != nil && info.Instantiated != *query.Instantiated {
			continue
		}

		results = append(results, info)
	}

	return results
}

// QueryIDs returns the ids of beans matching the query.
// This is cheaper to consume than QueryBeans when only ids are needed.
func QueryIDs(c *Container, query BeanQuery) []string {
	results := QueryBeans(c, query)
	ids := make([]string, len(results))
	for i, info := range results {
		ids[i] = info.ID
	}

	return ids
}

// FindByScope returns all beans of a scope.
func FindByScope(c *Container, scope ScopeID) []BeanInfo {
	return QueryBeans(c, BeanQuery{Scope: scope})
}

// FindByUnit returns all beans of a deployment unit.
func FindByUnit(c *Container, unit string) []BeanInfo {
	return QueryBeans(c, BeanQuery{Unit: unit})
}

// FindInstantiated returns the application-scoped and singleton beans that
// currently have an instance.
func FindInstantiated(c *Container) []BeanInfo {
	instantiated := true

	return QueryBeans(c, BeanQuery{Instantiated: &instantiated})
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}

	return false
}
