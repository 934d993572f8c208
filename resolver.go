package rowparse

import (
	"fmt"
	"reflect"
)

var genericType = reflect.TypeFor[Generic]()

// Resolve turns t into a TypeDescriptor with fully resolved type arguments.
//
// Without hints, a non-generic type resolves directly and a type implementing
// Generic resolves its declared arguments recursively. A generic type that
// does not implement Generic has an arity but no recoverable arguments, so a
// complete set of hints must be supplied for it.
//
// With hints, their count must equal the declared arity. For types
// implementing Generic every hint must also describe the declared argument at
// the same position. Hints are embedded as given; they are already resolved
// descriptors.
//
// Failures are returned as *ResolutionError.
func Resolve(t reflect.Type, hints ...*TypeDescriptor) (*TypeDescriptor, error) {
	if t == nil {
		return nil, &ResolutionError{Type: "<nil>", Err: ErrNilType}
	}

	declared, arity, known := declaredTypeArgs(t)

	if len(hints) == 0 {
		if arity == 0 {
			return &TypeDescriptor{typ: t, id: TypeIDOf(t)}, nil
		}
		if !known {
			return nil, &ResolutionError{
				Type: t.String(),
				Err:  fmt.Errorf("%w: type declares %d type arguments, got no hints", ErrArityMismatch, arity),
			}
		}
		args := make([]*TypeDescriptor, len(declared))
		for i, arg := range declared {
			resolved, err := Resolve(arg)
			if err != nil {
				return nil, &ResolutionError{
					Type: t.String(),
					Err:  fmt.Errorf("type argument %d: %w", i, err),
				}
			}
			args[i] = resolved
		}
		return &TypeDescriptor{typ: t, id: TypeIDOf(t), args: args}, nil
	}

	if len(hints) != arity {
		return nil, &ResolutionError{
			Type: t.String(),
			Err:  fmt.Errorf("%w: type declares %d type arguments, got %d hints", ErrArityMismatch, arity, len(hints)),
		}
	}

	args := make([]*TypeDescriptor, len(hints))
	for i, hint := range hints {
		if hint == nil {
			return nil, &ResolutionError{
				Type: t.String(),
				Err:  fmt.Errorf("type hint %d: %w", i, ErrNilType),
			}
		}
		if known && hint.typ != declared[i] {
			return nil, &ResolutionError{
				Type: t.String(),
				Err:  fmt.Errorf("%w: hint %d is %s, declared %s", ErrHintMismatch, i, hint.typ, declared[i]),
			}
		}
		args[i] = hint
	}
	return &TypeDescriptor{typ: t, id: TypeIDOf(t), args: args}, nil
}

// NewTypeDescriptor is Resolve under the name used by setup code that builds
// precise row types by hand.
func NewTypeDescriptor(t reflect.Type, hints ...*TypeDescriptor) (*TypeDescriptor, error) {
	return Resolve(t, hints...)
}

// DescriptorOf resolves the static type T.
func DescriptorOf[T any](hints ...*TypeDescriptor) (*TypeDescriptor, error) {
	return Resolve(reflect.TypeFor[T](), hints...)
}

// MustDescriptorOf is like DescriptorOf but panics on failure. It is meant for
// package level variables in setup code.
func MustDescriptorOf[T any](hints ...*TypeDescriptor) *TypeDescriptor {
	d, err := DescriptorOf[T](hints...)
	if err != nil {
		panic(err)
	}
	return d
}

// declaredTypeArgs reports the type arguments a type declares through the
// Generic interface. When the type does not implement Generic, the arity is
// counted from its instantiation suffix and known is false.
func declaredTypeArgs(t reflect.Type) (args []reflect.Type, arity int, known bool) {
	if g, ok := genericValue(t); ok {
		args = g.TypeArgs()
		return args, len(args), true
	}
	arity = instantiationArity(t)
	return nil, arity, arity == 0
}

func genericValue(t reflect.Type) (Generic, bool) {
	switch {
	case t.Kind() == reflect.Interface:
		return nil, false
	case t.Kind() == reflect.Pointer && t.Implements(genericType):
		g, ok := reflect.New(t.Elem()).Interface().(Generic)
		return g, ok
	case t.Implements(genericType):
		g, ok := reflect.Zero(t).Interface().(Generic)
		return g, ok
	case reflect.PointerTo(t).Implements(genericType):
		g, ok := reflect.New(t).Interface().(Generic)
		return g, ok
	}
	return nil, false
}
