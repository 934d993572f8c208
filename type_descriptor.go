package rowparse

import (
	"reflect"
	"strings"
)

// TypeID is the stable identity of a raw type. Every instantiation of a
// generic type shares the TypeID of its raw type, which is what the
// ParserRegistry is keyed by.
type TypeID string

// TypeIDOf returns the raw type identity of t.
//
// Named types are identified by their package path and name with any
// instantiation suffix removed, so Pair[int] and Pair[string] share an ID.
// Pointer and slice types derive their ID from the element type, so
// *Pair[int] and *Pair[string] share an ID as well. Other unnamed types
// (maps, arrays, funcs, ...) are identified by their string representation.
func TypeIDOf(t reflect.Type) TypeID {
	if t == nil {
		return ""
	}
	switch t.Kind() {
	case reflect.Pointer:
		if t.Name() == "" {
			return "*" + TypeIDOf(t.Elem())
		}
	case reflect.Slice:
		if t.Name() == "" {
			return "[]" + TypeIDOf(t.Elem())
		}
	}
	name := t.Name()
	if name == "" {
		return TypeID(t.String())
	}
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	if t.PkgPath() == "" {
		return TypeID(name)
	}
	return TypeID(t.PkgPath() + "." + name)
}

// Generic is implemented by generic custom types that declare their own type
// arguments. It lets the resolver recover the arity and arguments of an
// instantiated type without any hints.
//
//	type Box[T any] struct{ V T }
//
//	func (Box[T]) TypeArgs() []reflect.Type { return []reflect.Type{reflect.TypeFor[T]()} }
type Generic interface {
	TypeArgs() []reflect.Type
}

// TypeDescriptor identifies a target type together with its resolved type
// arguments. Descriptors are immutable once constructed; build them with
// Resolve, NewTypeDescriptor or DescriptorOf.
type TypeDescriptor struct {
	typ  reflect.Type
	id   TypeID
	args []*TypeDescriptor
}

// Type returns the Go type the descriptor describes.
func (d *TypeDescriptor) Type() reflect.Type {
	return d.typ
}

// ID returns the raw type identity used for registry lookups.
func (d *TypeDescriptor) ID() TypeID {
	return d.id
}

// Arity returns the number of resolved type arguments.
func (d *TypeDescriptor) Arity() int {
	return len(d.args)
}

// Arg returns the i-th resolved type argument.
func (d *TypeDescriptor) Arg(i int) *TypeDescriptor {
	return d.args[i]
}

// Args returns a copy of the resolved type arguments.
func (d *TypeDescriptor) Args() []*TypeDescriptor {
	out := make([]*TypeDescriptor, len(d.args))
	copy(out, d.args)
	return out
}

// Equal reports whether d and other describe the same raw type with
// recursively equal type arguments.
func (d *TypeDescriptor) Equal(other *TypeDescriptor) bool {
	if d == nil || other == nil {
		return d == other
	}
	if d.typ != other.typ || d.id != other.id || len(d.args) != len(other.args) {
		return false
	}
	for i := range d.args {
		if !d.args[i].Equal(other.args[i]) {
			return false
		}
	}
	return true
}

// String renders the descriptor as Name[Arg, ...] using short type names.
func (d *TypeDescriptor) String() string {
	if d == nil {
		return "<nil>"
	}
	var b strings.Builder
	d.writeTo(&b)
	return b.String()
}

func (d *TypeDescriptor) writeTo(b *strings.Builder) {
	b.WriteString(shortTypeName(d.typ))
	if len(d.args) == 0 {
		return
	}
	b.WriteByte('[')
	for i, arg := range d.args {
		if i > 0 {
			b.WriteString(", ")
		}
		arg.writeTo(b)
	}
	b.WriteByte(']')
}

func shortTypeName(t reflect.Type) string {
	name := t.Name()
	if name == "" {
		return t.String()
	}
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return name
}

// instantiationArity counts the type arguments in the instantiation suffix of
// a generic type name, e.g. 2 for "Pair[int,example.com/p.Item]".
func instantiationArity(t reflect.Type) int {
	name := t.Name()
	open := strings.IndexByte(name, '[')
	if open < 0 || !strings.HasSuffix(name, "]") {
		return 0
	}
	inner := name[open+1 : len(name)-1]
	if inner == "" {
		return 0
	}

	arity, depth := 1, 0
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case ',':
			if depth == 0 {
				arity++
			}
		}
	}
	return arity
}
