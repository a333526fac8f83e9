package harbor

import (
	"reflect"
	"strings"
)

// TypeKind classifies a Type.
type TypeKind uint8

const (
	// KindClass is a plain, non-generic type.
	KindClass TypeKind = iota
	// KindParameterized is a generic type with actual type arguments.
	KindParameterized
	// KindArray is an array (or slice) of a component type.
	KindArray
	// KindWildcard is a wildcard type argument with optional bounds.
	KindWildcard
	// KindVariable is a type variable with optional upper bounds.
	KindVariable
)

// Type describes a bean, injection point or event type independently of the
// Go type system, so generic shapes (parameterized types, wildcards, type
// variables) can be resolved the same way for every bean source.
//
// Types are immutable values; build them with Class, Generic, ArrayOf,
// Wildcard, Extends, Super, Var or TypeOf.
type Type struct {
	kind  TypeKind
	name  string
	args  []*Type
	elem  *Type
	upper []*Type
	lower []*Type
	rtype reflect.Type
	key   string
}

// ObjectType is the root of every type closure.
var ObjectType = Class("any")

// Class returns a plain type with the given name.
func Class(name string) *Type {
	t := &Type{kind: KindClass, name: name}
	t.key = name

	return t
}

// Generic returns a parameterized type.
func Generic(raw string, args ...*Type) *Type {
	t := &Type{kind: KindParameterized, name: raw, args: args}

	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.key
	}
	t.key = raw + "[" + strings.Join(parts, ",") + "]"

	return t
}

// ArrayOf returns an array type of the given component.
func ArrayOf(elem *Type) *Type {
	return &Type{kind: KindArray, elem: elem, key: "[]" + elem.key}
}

// Wildcard returns the unbounded wildcard.
func Wildcard() *Type {
	return &Type{kind: KindWildcard, upper: []*Type{ObjectType}, key: "?"}
}

// Extends returns a wildcard with an upper bound.
func Extends(bound *Type) *Type {
	return &Type{kind: KindWildcard, upper: []*Type{bound}, key: "? extends " + bound.key}
}

// Super returns a wildcard with a lower bound.
func Super(bound *Type) *Type {
	return &Type{kind: KindWildcard, upper: []*Type{ObjectType}, lower: []*Type{bound}, key: "? super " + bound.key}
}

// Var returns a type variable. A variable without bounds is bounded by ObjectType.
func Var(name string, bounds ...*Type) *Type {
	if len(bounds) == 0 {
		bounds = []*Type{ObjectType}
	}

	parts := make([]string, len(bounds))
	for i, b := range bounds {
		parts[i] = b.key
	}

	return &Type{kind: KindVariable, name: name, upper: bounds, key: name + " extends " + strings.Join(parts, "&")}
}

// TypeOf returns the class type of the Go type T.
func TypeOf[T any]() *Type {
	return TypeFor(reflect.TypeOf((*T)(nil)).Elem())
}

// TypeFor returns the class type of a Go reflect.Type.
func TypeFor(rt reflect.Type) *Type {
	t := Class(rt.String())
	t.rtype = rt

	return t
}

// Kind returns the type kind.
func (t *Type) Kind() TypeKind { return t.kind }

// Name returns the raw type name (empty for arrays and wildcards).
func (t *Type) Name() string { return t.name }

// Args returns the actual type arguments of a parameterized type.
func (t *Type) Args() []*Type { return t.args }

// Elem returns the component type of an array type.
func (t *Type) Elem() *Type { return t.elem }

// Upper returns the upper bounds of a wildcard or variable.
func (t *Type) Upper() []*Type { return t.upper }

// Lower returns the lower bounds of a wildcard.
func (t *Type) Lower() []*Type { return t.lower }

// Reflect returns the Go type the Type was built from, if any.
func (t *Type) Reflect() reflect.Type { return t.rtype }

// Key returns the canonical representation used for equality and caching.
func (t *Type) Key() string { return t.key }

// String implements fmt.Stringer.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}

	return t.key
}

// Equal reports whether two types are structurally identical.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}

	return t.key == o.key
}

// Raw returns the raw (erased) form of the type.
func (t *Type) Raw() *Type {
	if t.kind == KindParameterized {
		return Class(t.name)
	}

	return t
}

// isActual reports whether the type is a concrete type rather than a wildcard or variable.
func (t *Type) isActual() bool {
	return t.kind == KindClass || t.kind == KindParameterized || t.kind == KindArray
}

// isUnboundedVariableOrObject reports whether the argument carries no information.
func (t *Type) isUnboundedVariableOrObject() bool {
	if t.Equal(ObjectType) {
		return true
	}
	if t.kind != KindVariable {
		return false
	}
	for _, b := range t.upper {
		if !b.Equal(ObjectType) {
			return false
		}
	}

	return true
}

// indexKey is the key a type is indexed under in the registry.
func (t *Type) indexKey() string {
	switch t.kind {
	case KindArray:
		return "[]" + t.elem.indexKey()
	case KindClass, KindParameterized:
		return t.name
	default:
		return ""
	}
}
