package rowparse

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Custom types shared by the tests of this package.

type Nested struct {
	F21 string `json:"f21,required"`
}

func (n Nested) String() string {
	return fmt.Sprintf("Nested{f21='%s'}", n.F21)
}

// GenericsAware declares its type argument, so it resolves without hints.
type GenericsAware[T any] struct {
	F1 string `json:"f1"`
	F2 Nested `json:"f2"`
	F3 T      `json:"f3"`
}

func (GenericsAware[T]) TypeArgs() []reflect.Type {
	return []reflect.Type{reflect.TypeFor[T]()}
}

func (g GenericsAware[T]) String() string {
	return fmt.Sprintf("GenericsAware{f1='%s', f2=%v, f3=%v}", g.F1, g.F2, g.F3)
}

// Pair does not declare its type arguments; it needs hints.
type Pair[A, B any] struct {
	First  A `json:"first"`
	Second B `json:"second"`
}

// Shouting is validated after parsing.
type Shouting string

func (s Shouting) Validate() error {
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return errors.New("not shouting")
		}
	}
	return nil
}

// nestedFactory builds Nested parsers by hand from an ObjectParser.
func nestedFactory(_ *TypeDescriptor, nested ParserProvider) (FieldParser, error) {
	f21, err := nested.ParserFor(MustDescriptorOf[string]())
	if err != nil {
		return nil, err
	}
	p := NewObjectParser[Nested]()
	Bind(p, "f21", f21, func(dst *Nested, v string) { dst.F21 = v })
	return p.Required("f21"), nil
}

// genericsAwareFactory builds GenericsAware parsers by hand. The parser of
// f3 comes from the registry, whatever is registered for the type argument.
func genericsAwareFactory(desc *TypeDescriptor, nested ParserProvider) (FieldParser, error) {
	switch desc.Arg(0).Type() {
	case reflect.TypeFor[Nested]():
		return genericsAwareParser[Nested](desc, nested)
	case IntType:
		return genericsAwareParser[int](desc, nested)
	case reflect.TypeFor[GenericsAware[Nested]]():
		return genericsAwareParser[GenericsAware[Nested]](desc, nested)
	}
	return nil, fmt.Errorf("unsupported type argument %s", desc.Arg(0))
}

func genericsAwareParser[T any](desc *TypeDescriptor, nested ParserProvider) (FieldParser, error) {
	f1, err := nested.ParserFor(MustDescriptorOf[string]())
	if err != nil {
		return nil, err
	}
	f2, err := nested.ParserFor(MustDescriptorOf[Nested]())
	if err != nil {
		return nil, err
	}
	f3, err := nested.ParserFor(desc.Arg(0))
	if err != nil {
		return nil, err
	}

	p := NewObjectParser[GenericsAware[T]]()
	Bind(p, "f1", f1, func(dst *GenericsAware[T], v string) { dst.F1 = v })
	Bind(p, "f2", f2, func(dst *GenericsAware[T], v Nested) { dst.F2 = v })
	Bind(p, "f3", f3, func(dst *GenericsAware[T], v T) { dst.F3 = v })
	return p, nil
}

// newTestRegistry returns a fresh registry with Nested and GenericsAware
// registered. byHand selects the ObjectParser factories over the reflective
// StructParserFactory.
func newTestRegistry(t *testing.T, byHand bool) *ParserRegistry {
	t.Helper()

	factories := map[reflect.Type]ParserFactory{
		reflect.TypeFor[Nested]():                StructParserFactory(StructParserOpts{}),
		reflect.TypeFor[GenericsAware[Nested]](): StructParserFactory(StructParserOpts{}),
		reflect.TypeFor[Pair[int, int]]():        StructParserFactory(StructParserOpts{}),
	}
	if byHand {
		factories[reflect.TypeFor[Nested]()] = ParserFactoryFunc(nestedFactory)
		factories[reflect.TypeFor[GenericsAware[Nested]]()] = ParserFactoryFunc(genericsAwareFactory)
	}

	reg, err := NewParserRegistry(ParserRegistryOpts{Factories: factories})
	require.NoError(t, err)
	return reg
}

func TestCustomGenericParser(t *testing.T) {
	const record = `1,'column2','{"f1":5,"f2":{"f21":"a"},"f3":{"f21":"b"}}'`
	const want = "1,column2,GenericsAware{f1='5', f2=Nested{f21='a'}, f3=Nested{f21='b'}}"

	for _, byHand := range []bool{true, false} {
		name := "StructParserFactory"
		if byHand {
			name = "ObjectParser"
		}
		t.Run(name, func(t *testing.T) {
			reg := newTestRegistry(t, byHand)
			opts := RowBuilderOpts{Tokenizer: Tokenizer{Delimiter: ',', Quote: '\''}}

			t.Run("RowType", func(t *testing.T) {
				b, err := NewRowBuilderFromTypes(reg, opts,
					IntType, StringType, reflect.TypeFor[GenericsAware[Nested]]())
				require.NoError(t, err)

				row, err := b.ParseLine([]byte(record))
				require.NoError(t, err)
				assert.Equal(t, want, row.String())
				assert.Equal(t, GenericsAware[Nested]{F1: "5", F2: Nested{"a"}, F3: Nested{"b"}}, row[2])
			})

			t.Run("PreciseRowType", func(t *testing.T) {
				spec := RowTypeSpec{
					MustDescriptorOf[int](),
					MustDescriptorOf[string](),
					MustDescriptorOf[GenericsAware[Nested]](MustDescriptorOf[Nested]()),
				}
				b, err := NewRowBuilder(reg, spec, opts)
				require.NoError(t, err)

				row, err := b.ParseLine([]byte(record))
				require.NoError(t, err)
				assert.Equal(t, want, row.String())
			})

			t.Run("TwoLevelNesting", func(t *testing.T) {
				b, err := NewRowBuilderFromTypes(reg, opts,
					reflect.TypeFor[GenericsAware[GenericsAware[Nested]]]())
				require.NoError(t, err)

				row, err := b.ParseLine([]byte(`'{"f1":"x","f2":{"f21":"a"},"f3":{"f1":"y","f2":{"f21":"b"},"f3":{"f21":"c"}}}'`))
				require.NoError(t, err)
				assert.Equal(t,
					"GenericsAware{f1='x', f2=Nested{f21='a'}, f3=GenericsAware{f1='y', f2=Nested{f21='b'}, f3=Nested{f21='c'}}}",
					row.String())
			})
		})
	}
}

func TestCustomGenericParser_ArgumentParserIsLookedUp(t *testing.T) {
	reg := newTestRegistry(t, true)

	// Both f2 and f3 pick up the replacement.
	require.NoError(t, reg.Register(reflect.TypeFor[Nested](), TextParserFactory(func(s string) (Nested, error) {
		return Nested{F21: "text:" + s}, nil
	})))

	b, err := NewRowBuilderFromTypes(reg, RowBuilderOpts{Tokenizer: Tokenizer{Delimiter: ';'}},
		reflect.TypeFor[GenericsAware[Nested]]())
	require.NoError(t, err)

	row, err := b.ParseLine([]byte(`{"f1":"1","f2":"a","f3":"b"}`))
	require.NoError(t, err)
	assert.Equal(t, GenericsAware[Nested]{F1: "1", F2: Nested{"text:a"}, F3: Nested{"text:b"}}, row[0])
}

func TestCustomGenericParser_Int(t *testing.T) {
	reg := newTestRegistry(t, true)

	b, err := NewRowBuilderFromTypes(reg, RowBuilderOpts{}, reflect.TypeFor[GenericsAware[int]]())
	require.NoError(t, err)

	row, err := b.ParseLine([]byte(`{"f1":"1","f2":{"f21":"a"},"f3":42}`))
	require.NoError(t, err)
	assert.Equal(t, GenericsAware[int]{F1: "1", F2: Nested{"a"}, F3: 42}, row[0])

	_, err = b.ParseLine([]byte(`{"f1":"1","f2":{"f21":"a"},"f3":"x"}`))
	var fieldErr *FieldParseError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, 0, fieldErr.Column)
}

func TestCustomGenericParser_HintsWithoutGeneric(t *testing.T) {
	reg := newTestRegistry(t, false)

	_, err := NewRowBuilderFromTypes(reg, RowBuilderOpts{}, reflect.TypeFor[Pair[int, string]]())
	require.ErrorIs(t, err, ErrArityMismatch)

	spec := RowTypeSpec{MustDescriptorOf[Pair[int, string]](MustDescriptorOf[int](), MustDescriptorOf[string]())}
	b, err := NewRowBuilder(reg, spec, RowBuilderOpts{Tokenizer: Tokenizer{Delimiter: '|'}})
	require.NoError(t, err)

	row, err := b.ParseLine([]byte(`{"first":7,"second":"seven"}`))
	require.NoError(t, err)
	assert.Equal(t, Pair[int, string]{First: 7, Second: "seven"}, row[0])
}

func TestCustomParser_Validation(t *testing.T) {
	reg, err := NewParserRegistry(ParserRegistryOpts{})
	require.NoError(t, err)
	require.NoError(t, reg.Register(reflect.TypeFor[Shouting](), TextParserFactory(func(s string) (Shouting, error) {
		return Shouting(s), nil
	})))

	b, err := NewRowBuilderFromTypes(reg, RowBuilderOpts{}, IntType, reflect.TypeFor[Shouting]())
	require.NoError(t, err)

	row, err := b.ParseLine([]byte("1,HEY"))
	require.NoError(t, err)
	assert.Equal(t, Row{1, Shouting("HEY")}, row)

	_, err = b.ParseLine([]byte("1,hey"))
	require.ErrorIs(t, err, ErrValidationFailed)
	var fieldErr *FieldParseError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, 1, fieldErr.Column)
	assert.Equal(t, "hey", fieldErr.Field)
}
