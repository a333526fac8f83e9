package harbor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// In is a marker type that should be embedded in structs to indicate
// they are parameter objects. Fields of the struct are injection points.
//
// Example:
//
//	type ServiceParams struct {
//	    harbor.In
//
//	    DB     *Database
//	    Logger *Logger  `optional:"true"`
//	    Cache  Cache    `name:"redis"`
//	}
type In struct{}

var (
	inType      = reflect.TypeOf(In{})
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
)

// constructorInfo holds analyzed constructor metadata
type constructorInfo struct {
	fn       reflect.Value
	fnType   reflect.Type
	params   []paramInfo
	result   reflect.Type
	hasError bool
}

// paramInfo describes a constructor parameter
type paramInfo struct {
	typ       reflect.Type
	name      string // From `name:"..."` tag, empty for type-based lookup
	optional  bool   // From `optional:"true"` tag
	index     int    // Position in function parameters or struct field index
	isContext bool   // context.Context receives the creation context
	isIn      bool   // Whether this is an In struct (expanded into multiple deps)
	inFields  []paramInfo
}

// analyzeConstructor inspects a constructor function and extracts its
// injection points and result type.
func analyzeConstructor(constructor any) (*constructorInfo, error) {
	if constructor == nil {
		return nil, errors.New("constructor must be a function")
	}

	fnValue := reflect.ValueOf(constructor)
	fnType := fnValue.Type()

	if fnType.Kind() != reflect.Func {
		return nil, errors.New("constructor must be a function")
	}

	info := &constructorInfo{
		fn:     fnValue,
		fnType: fnType,
	}

	for i := 0; i < fnType.NumIn(); i++ {
		param, err := analyzeParam(fnType.In(i), i)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		info.params = append(info.params, param)
	}

	switch fnType.NumOut() {
	case 1:
		if fnType.Out(0) == errorType {
			return nil, errors.New("constructor must return a non-error value")
		}
		info.result = fnType.Out(0)
	case 2:
		if fnType.Out(1) != errorType {
			return nil, errors.New("error must be the last return value")
		}
		info.result = fnType.Out(0)
		info.hasError = true
	default:
		return nil, errors.New("constructor must return (T) or (T, error)")
	}

	return info, nil
}

// analyzeParam analyzes a single parameter type
func analyzeParam(t reflect.Type, index int) (paramInfo, error) {
	param := paramInfo{
		typ:       t,
		index:     index,
		isContext: t == contextType,
	}

	if isInStruct(t) {
		if t.Kind() == reflect.Ptr {
			return param, errors.New("parameter objects must be passed by value")
		}
		param.isIn = true
		param.inFields = expandInStruct(t)
	}

	return param, nil
}

// isInStruct checks if a type embeds harbor.In
func isInStruct(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return false
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous && field.Type == inType {
			return true
		}
	}

	return false
}

// expandInStruct expands an In struct into its field dependencies
func expandInStruct(t reflect.Type) []paramInfo {
	var params []paramInfo

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		// Skip the embedded In marker
		if field.Anonymous && field.Type == inType {
			continue
		}

		// Skip unexported fields
		if !field.IsExported() {
			continue
		}

		param := paramInfo{
			typ:       field.Type,
			index:     i,
			name:      field.Tag.Get("name"),
			optional:  strings.EqualFold(field.Tag.Get("optional"), "true"),
			isContext: field.Type == contextType,
		}

		params = append(params, param)
	}

	return params
}

// injectionPoint returns the injection point of a parameter. Optional
// dependencies are looked up through an Instance so that an unsatisfied one
// does not fail deployment.
func (p paramInfo) injectionPoint(member string) *InjectionPoint {
	var qualifiers []Annotation
	if p.name != "" {
		qualifiers = append(qualifiers, Named(p.name))
	}

	t := TypeFor(p.typ)
	if p.optional {
		t = InstanceOf(t)
	}

	return Inject(t, qualifiers...).As(member)
}

// injectionPoints flattens the constructor parameters into injection points,
// in call order.
func (info *constructorInfo) injectionPoints() []*InjectionPoint {
	var ips []*InjectionPoint
	for _, p := range info.params {
		switch {
		case p.isContext:
		case p.isIn:
			for _, f := range p.inFields {
				if !f.isContext {
					ips = append(ips, f.injectionPoint(p.typ.Field(f.index).Name))
				}
			}
		default:
			ips = append(ips, p.injectionPoint(fmt.Sprintf("arg%d", p.index)))
		}
	}

	return ips
}

// call invokes the constructor with resolved arguments, consumed in the order
// of injectionPoints.
func (info *constructorInfo) call(ctx context.Context, args []any) (any, error) {
	in := make([]reflect.Value, len(info.params))
	next := 0

	value := func(p paramInfo) (reflect.Value, error) {
		if p.isContext {
			return reflect.ValueOf(&ctx).Elem(), nil
		}

		arg := args[next]
		next++

		if p.optional {
			return optionalArg(ctx, arg, p.typ)
		}

		return convertArg(ctx, arg, p.typ)
	}

	for i, p := range info.params {
		if !p.isIn {
			v, err := value(p)
			if err != nil {
				return nil, err
			}
			in[i] = v

			continue
		}

		obj := reflect.New(p.typ).Elem()
		for _, f := range p.inFields {
			v, err := value(f)
			if err != nil {
				return nil, err
			}
			obj.Field(f.index).Set(v)
		}
		in[i] = obj
	}

	out := info.fn.Call(in)
	if info.hasError && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}

	return out[0].Interface(), nil
}

// convertArg adapts an injected reference to the parameter type. A client
// proxy or an intercepted wrapper that the parameter type cannot hold is
// replaced by the instance behind it.
func convertArg(ctx context.Context, ref any, t reflect.Type) (reflect.Value, error) {
	if ref == nil {
		return reflect.Zero(t), nil
	}

	if v := reflect.ValueOf(ref); v.Type().AssignableTo(t) {
		return v, nil
	}

	raw := ref
	if p, ok := ref.(*ClientProxy); ok {
		instance, err := p.Instance(ctx)
		if err != nil {
			return reflect.Value{}, err
		}
		raw = instance
	}
	raw = unwrap(raw)

	if v := reflect.ValueOf(raw); raw != nil && v.Type().AssignableTo(t) {
		return v, nil
	}

	return reflect.Value{}, ErrTypeMismatch(TypeFor(t), ref)
}

func optionalArg(ctx context.Context, arg any, t reflect.Type) (reflect.Value, error) {
	inst, ok := arg.(*Instance)
	if !ok || !inst.IsResolvable() {
		return reflect.Zero(t), nil
	}

	ref, err := inst.Get(ctx)
	if err != nil {
		return reflect.Value{}, err
	}

	return convertArg(ctx, ref, t)
}

// ConstructorBean creates a managed bean from a Go constructor function.
// Parameters, and the fields of parameter objects embedding In, become
// injection points; a context.Context parameter receives the creation
// context. The bean's first type is the constructor's result type.
//
// Example:
//
//	bean, err := harbor.ConstructorBean("user-service", NewUserService,
//	    harbor.ApplicationScoped(),
//	    harbor.WithTypes(harbor.TypeOf[UserLookup]()),
//	)
func ConstructorBean(id string, constructor any, opts ...BeanOption) (*Bean, error) {
	info, err := analyzeConstructor(constructor)
	if err != nil {
		return nil, ErrInvalidBean(id, err.Error())
	}

	all := make([]BeanOption, 0, len(opts)+2)
	all = append(all,
		WithTypes(TypeFor(info.result)),
		WithConstructor(info.call, info.injectionPoints()...),
	)
	all = append(all, opts...)

	return NewBean(id, all...), nil
}

// MustConstructorBean is like ConstructorBean but panics on error.
func MustConstructorBean(id string, constructor any, opts ...BeanOption) *Bean {
	b, err := ConstructorBean(id, constructor, opts...)
	if err != nil {
		panic(err)
	}

	return b
}
