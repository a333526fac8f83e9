package harbor

import (
	"fmt"
	"strings"
)

// InjectionPoint is a site where a bean receives a dependency: a constructor
// or initializer parameter, a field, a producer or disposer parameter, an
// observer parameter, or the delegate of a decorator.
type InjectionPoint struct {
	// Type is the required type.
	Type *Type

	// Qualifiers narrow the candidate beans. Empty means Default.
	Qualifiers []Annotation

	// Member names the field or parameter, for diagnostics.
	Member string

	// Delegate marks the delegate injection point of a decorator.
	Delegate bool

	bean *Bean
}

// Inject returns an injection point requiring t with the given qualifiers.
func Inject(t *Type, qualifiers ...Annotation) *InjectionPoint {
	return &InjectionPoint{Type: t, Qualifiers: qualifiers}
}

// InjectOf returns an injection point requiring the Go type T.
func InjectOf[T any](qualifiers ...Annotation) *InjectionPoint {
	return Inject(TypeOf[T](), qualifiers...)
}

// InjectNamed returns an injection point requiring t qualified by Named(name).
func InjectNamed(t *Type, name string) *InjectionPoint {
	return Inject(t, Named(name))
}

// DelegatePoint returns the delegate injection point of a decorator.
func DelegatePoint(t *Type, qualifiers ...Annotation) *InjectionPoint {
	return &InjectionPoint{Type: t, Qualifiers: qualifiers, Delegate: true, Member: "delegate"}
}

// As sets the member name used in diagnostics.
func (ip *InjectionPoint) As(member string) *InjectionPoint {
	ip.Member = member

	return ip
}

// Bean returns the bean declaring the injection point, or nil for
// programmatic lookups.
func (ip *InjectionPoint) Bean() *Bean { return ip.bean }

// required returns the qualifiers a lookup from this point must match.
func (ip *InjectionPoint) required() []Annotation {
	return normalizeRequired(ip.Qualifiers)
}

// String implements fmt.Stringer.
func (ip *InjectionPoint) String() string {
	if ip == nil {
		return "<programmatic>"
	}

	var b strings.Builder
	if ip.bean != nil {
		b.WriteString(ip.bean.id)
		if ip.Member != "" {
			b.WriteByte('.')
		}
	}
	b.WriteString(ip.Member)
	fmt.Fprintf(&b, " [%s %s]", ip.Type, formatAnnotations(ip.Qualifiers))

	return strings.TrimSpace(b.String())
}

func cloneInjectionPoints(ips []*InjectionPoint) []*InjectionPoint {
	out := make([]*InjectionPoint, len(ips))
	for i, ip := range ips {
		c := *ip
		out[i] = &c
	}

	return out
}
