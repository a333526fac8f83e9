package harbor

import (
	"fmt"
	"sort"
	"strings"
)

// Member is a named annotation value. Non-binding members are ignored when
// annotations are compared.
type Member struct {
	Name       string
	Value      any
	NonBinding bool
}

// Bind returns a binding member.
func Bind(name string, value any) Member {
	return Member{Name: name, Value: value}
}

// NonBinding returns a member that does not take part in equality.
func NonBinding(name string, value any) Member {
	return Member{Name: name, Value: value, NonBinding: true}
}

// Annotation is a qualifier or interceptor binding: an annotation type plus
// its members. Equality is defined by the annotation type and the binding
// members only.
type Annotation struct {
	typ     string
	members []Member
	key     string
}

// Qualifier is an annotation narrowing which bean satisfies a requirement.
type Qualifier = Annotation

// InterceptorBinding is an annotation associating interceptors with beans.
type InterceptorBinding = Annotation

// NewAnnotation creates an annotation. Members are ordered by name.
func NewAnnotation(typ string, members ...Member) Annotation {
	sorted := append([]Member(nil), members...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	b.WriteString(typ)

	binding := 0
	for _, m := range sorted {
		if m.NonBinding {
			continue
		}
		if binding == 0 {
			b.WriteByte('(')
		} else {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%#v", m.Name, m.Value)
		binding++
	}
	if binding > 0 {
		b.WriteByte(')')
	}

	return Annotation{typ: typ, members: sorted, key: b.String()}
}

// Built-in qualifiers.
var (
	// Default is carried by every bean that declares no other qualifier.
	Default = NewAnnotation("Default")
	// Any is carried by every bean.
	Any = NewAnnotation("Any")
)

// Named returns the name qualifier.
func Named(name string) Annotation {
	return NewAnnotation("Named", Bind("value", name))
}

// Type returns the annotation type.
func (a Annotation) Type() string { return a.typ }

// Members returns all members, binding and non-binding.
func (a Annotation) Members() []Member { return a.members }

// Value returns a member value by name.
func (a Annotation) Value(name string) (any, bool) {
	for _, m := range a.members {
		if m.Name == name {
			return m.Value, true
		}
	}

	return nil, false
}

// Key returns the canonical form used for equality and hashing.
func (a Annotation) Key() string { return a.key }

// Equal reports whether two annotations are equal on their binding members.
func (a Annotation) Equal(o Annotation) bool { return a.key == o.key }

// IsZero reports whether the annotation is unset.
func (a Annotation) IsZero() bool { return a.typ == "" }

// String renders every member, including non-binding ones.
func (a Annotation) String() string {
	if len(a.members) == 0 {
		return "@" + a.typ
	}

	parts := make([]string, len(a.members))
	for i, m := range a.members {
		parts[i] = fmt.Sprintf("%s=%v", m.Name, m.Value)
	}

	return "@" + a.typ + "(" + strings.Join(parts, ", ") + ")"
}

// containsAnnotation reports whether set holds an annotation equal to a.
func containsAnnotation(set []Annotation, a Annotation) bool {
	for _, e := range set {
		if e.key == a.key {
			return true
		}
	}

	return false
}

// containsAllAnnotations reports whether every element of required is in set.
func containsAllAnnotations(set, required []Annotation) bool {
	for _, r := range required {
		if !containsAnnotation(set, r) {
			return false
		}
	}

	return true
}

// hasAnnotationType reports whether set holds an annotation of type typ.
func hasAnnotationType(set []Annotation, typ string) bool {
	for _, e := range set {
		if e.typ == typ {
			return true
		}
	}

	return false
}

// normalizeRequired applies the default-qualifier policy for lookups: an
// empty requirement means Default.
func normalizeRequired(qualifiers []Annotation) []Annotation {
	if len(qualifiers) == 0 {
		return []Annotation{Default}
	}

	return qualifiers
}

// qualifiersKey returns an order-independent key for a qualifier set.
func qualifiersKey(qualifiers []Annotation) string {
	keys := make([]string, len(qualifiers))
	for i, q := range qualifiers {
		keys[i] = q.key
	}
	sort.Strings(keys)

	return strings.Join(keys, "|")
}

func formatAnnotations(set []Annotation) string {
	parts := make([]string, len(set))
	for i, a := range set {
		parts[i] = a.String()
	}

	return "{" + strings.Join(parts, ", ") + "}"
}
