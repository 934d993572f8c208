package rowparse

import (
	"bytes"
	"fmt"
	"reflect"
	"slices"

	"github.com/tidwall/gjson"
)

///////////////////////////////////////////////////////////////////////////////
// Object Scanning
///////////////////////////////////////////////////////////////////////////////

// objectScan decodes one brace-delimited key/value payload and hands every
// member value to the parser bound to its key.
type objectScan struct {
	strict   bool
	required []string
	member   func(key string) (FieldParser, bool)
	assign   func(key string, p FieldParser) error
}

// run decodes the object starting at in.Buf[offset] and returns the number
// of bytes it occupies. Bytes after the closing brace are not inspected.
func (s objectScan) run(in Input, offset int) (int, error) {
	start := firstNonSpace(in.Buf, offset)
	if start >= len(in.Buf) {
		return 0, ErrEmptyValue
	}
	if in.Buf[start] != '{' {
		return 0, fmt.Errorf("%w: found %q", ErrNotAnObject, in.Buf[start])
	}

	raw, rawStart, consumed, err := scanJSONValue(in.Buf, offset)
	if err != nil {
		return 0, err
	}

	var seen map[string]bool
	if len(s.required) > 0 {
		seen = make(map[string]bool, len(s.required))
	}

	var memberErr error
	gjson.ParseBytes(raw).ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		parser, ok := s.member(key)
		if !ok {
			if s.strict {
				memberErr = fmt.Errorf("%w: %q", ErrUnknownMember, key)
				return false
			}
			return true
		}
		if v.Type == gjson.Null {
			return true
		}
		if err := parseMember(in.Buf, parser, v, rawStart+v.Index); err != nil {
			memberErr = fmt.Errorf("member %q: %w", key, err)
			return false
		}
		if err := s.assign(key, parser); err != nil {
			memberErr = fmt.Errorf("member %q: %w", key, err)
			return false
		}
		if seen != nil {
			seen[key] = true
		}
		return true
	})
	if memberErr != nil {
		return 0, memberErr
	}

	for _, key := range s.required {
		if !seen[key] {
			return 0, fmt.Errorf("%w: %q", ErrMissingMember, key)
		}
	}

	return consumed, nil
}

// parseMember decodes one member value with parser.
//
// Objects and arrays are parsed in place at their absolute offset in buf,
// with the buffer cut at the end of the value, so nested structured parsers
// read the original bytes without copying. Strings are unescaped and parsed
// as bare text. Numbers and booleans are parsed from their literal text.
func parseMember(buf []byte, parser FieldParser, v gjson.Result, abs int) error {
	switch v.Type {
	case gjson.JSON:
		end := abs + len(v.Raw)
		if abs < 0 || end > len(buf) || !bytes.Equal(buf[abs:end], []byte(v.Raw)) {
			return ParseField(parser, []byte(v.Raw))
		}
		n, err := parser.Parse(Input{Buf: buf[:end]}, abs)
		if err != nil {
			return err
		}
		if n != len(v.Raw) {
			return fmt.Errorf("%w: consumed %d of %d bytes", ErrTrailingData, n, len(v.Raw))
		}
		return nil
	case gjson.String:
		return ParseField(parser, []byte(v.String()))
	default:
		return ParseField(parser, []byte(v.Raw))
	}
}

///////////////////////////////////////////////////////////////////////////////
// ObjectParser
///////////////////////////////////////////////////////////////////////////////

// ObjectParser parses a brace-delimited key/value payload into a T. Each key
// is bound to its own FieldParser, typically obtained from the
// ParserProvider handed to a ParserFactory, so nested custom types are
// decoded by their own registered parsers.
//
// Example factory for a generic container:
//
//	func (f BoxFactory) NewParser(desc *TypeDescriptor, nested ParserProvider) (FieldParser, error) {
//	    inner, err := nested.ParserFor(desc.Arg(0))
//	    if err != nil {
//	        return nil, err
//	    }
//	    p := NewObjectParser[Box[Item]]()
//	    Bind(p, "v", inner, func(dst *Box[Item], v Item) { dst.V = v })
//	    return p.Required("v"), nil
//	}
type ObjectParser[T any] struct {
	members  map[string]*objectMember[T]
	required []string
	strict   bool
	current  T
	last     T
}

type objectMember[T any] struct {
	parser FieldParser
	assign func(dst *T, p FieldParser) error
}

// NewObjectParser creates an ObjectParser with no members.
func NewObjectParser[T any]() *ObjectParser[T] {
	return &ObjectParser[T]{
		members: make(map[string]*objectMember[T]),
	}
}

// Bind attaches parser to key. After a successful member parse, set receives
// the parser's result converted to V.
func Bind[T, V any](p *ObjectParser[T], key string, parser FieldParser, set func(dst *T, v V)) *ObjectParser[T] {
	p.members[key] = &objectMember[T]{
		parser: parser,
		assign: func(dst *T, fp FieldParser) error {
			v, err := TypeErasedResult[V](fp)
			if err != nil {
				return err
			}
			set(dst, v)
			return nil
		},
	}
	return p
}

// Required marks keys that must be present and non-null.
func (p *ObjectParser[T]) Required(keys ...string) *ObjectParser[T] {
	for _, key := range keys {
		if !slices.Contains(p.required, key) {
			p.required = append(p.required, key)
		}
	}
	return p
}

// Strict rejects members that have no bound parser.
func (p *ObjectParser[T]) Strict() *ObjectParser[T] {
	p.strict = true
	return p
}

// Parse implements FieldParser.
func (p *ObjectParser[T]) Parse(in Input, offset int) (int, error) {
	var zero T
	p.current = zero

	scan := objectScan{
		strict:   p.strict,
		required: p.required,
		member: func(key string) (FieldParser, bool) {
			m, ok := p.members[key]
			if !ok {
				return nil, false
			}
			return m.parser, true
		},
		assign: func(key string, fp FieldParser) error {
			return p.members[key].assign(&p.current, fp)
		},
	}

	n, err := scan.run(in, offset)
	if err != nil {
		return 0, err
	}
	p.last = p.current
	return n, nil
}

// LastResult implements FieldParser.
func (p *ObjectParser[T]) LastResult() any {
	return p.last
}

// Last returns the most recent result with its static type.
func (p *ObjectParser[T]) Last() T {
	return p.last
}

///////////////////////////////////////////////////////////////////////////////
// StructParserFactory
///////////////////////////////////////////////////////////////////////////////

type StructParserOpts struct {
	// TagName defaults to DefaultMemberTag.
	TagName string
	// Strict rejects payload members that match no field.
	Strict bool
}

// structPlan lists the members of a struct type in field order.
type structPlan struct {
	typ     reflect.Type
	members []structMember
}

type structMember struct {
	index    int
	key      string
	required bool
	typ      reflect.Type
	argIndex int // position among the declared type arguments, or -1
}

// StructParserFactory returns a factory that parses brace-delimited payloads
// into plain structs by reflection. Exported fields map to members by their
// member tag (see MemberTag). Every field's parser is obtained from the
// registry, so fields of custom types use their registered parsers. A field
// whose type is one of the struct's declared type arguments (see Generic)
// takes its descriptor from the resolved arguments, so explicit hints flow
// into nested parsers.
func StructParserFactory(opts StructParserOpts) ParserFactory {
	tagName := opts.TagName
	if tagName == "" {
		tagName = DefaultMemberTag
	}
	plans := NewPlanCache[*structPlan]()

	return ParserFactoryFunc(func(desc *TypeDescriptor, nested ParserProvider) (FieldParser, error) {
		t := desc.Type()
		if t.Kind() != reflect.Struct {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedStructTarget, t)
		}

		plan, err := plans.GetOrBuild(t, func(t reflect.Type) (*structPlan, error) {
			return buildStructPlan(t, tagName)
		})
		if err != nil {
			return nil, err
		}

		sp := &structParser{
			plan:    plan,
			parsers: make([]FieldParser, len(plan.members)),
			byKey:   make(map[string]int, len(plan.members)),
			strict:  opts.Strict,
		}
		for i, m := range plan.members {
			memberDesc, err := memberDescriptor(desc, m)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", t.Field(m.index).Name, err)
			}
			parser, err := nested.ParserFor(memberDesc)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", t.Field(m.index).Name, err)
			}
			sp.parsers[i] = parser
			sp.byKey[m.key] = i
			if m.required {
				sp.required = append(sp.required, m.key)
			}
		}
		return sp, nil
	})
}

func memberDescriptor(owner *TypeDescriptor, m structMember) (*TypeDescriptor, error) {
	if m.argIndex >= 0 && m.argIndex < owner.Arity() {
		return owner.Arg(m.argIndex), nil
	}
	return Resolve(m.typ)
}

func buildStructPlan(t reflect.Type, tagName string) (*structPlan, error) {
	declared, _, _ := declaredTypeArgs(t)
	plan := &structPlan{typ: t}
	keys := make(map[string]string)

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag, err := DecodeMemberTag(field, tagName)
		if err != nil {
			return nil, err
		}
		if tag.Skip {
			continue
		}
		if other, dup := keys[tag.Name]; dup {
			return nil, fmt.Errorf("%w: %q on %s and %s", ErrDuplicateMemberName, tag.Name, other, field.Name)
		}
		keys[tag.Name] = field.Name

		plan.members = append(plan.members, structMember{
			index:    i,
			key:      tag.Name,
			required: tag.Required,
			typ:      field.Type,
			argIndex: slices.Index(declared, field.Type),
		})
	}
	return plan, nil
}

type structParser struct {
	plan     *structPlan
	parsers  []FieldParser
	byKey    map[string]int
	required []string
	strict   bool
	last     any
}

func (sp *structParser) Parse(in Input, offset int) (int, error) {
	dst := reflect.New(sp.plan.typ).Elem()

	scan := objectScan{
		strict:   sp.strict,
		required: sp.required,
		member: func(key string) (FieldParser, bool) {
			i, ok := sp.byKey[key]
			if !ok {
				return nil, false
			}
			return sp.parsers[i], true
		},
		assign: func(key string, fp FieldParser) error {
			m := sp.plan.members[sp.byKey[key]]
			return assignValue(dst.Field(m.index), fp.LastResult())
		},
	}

	n, err := scan.run(in, offset)
	if err != nil {
		return 0, err
	}
	sp.last = dst.Interface()
	return n, nil
}

func (sp *structParser) LastResult() any {
	return sp.last
}

// assignValue stores v into field, converting between types with the same
// underlying representation.
func assignValue(field reflect.Value, v any) error {
	rv := reflect.ValueOf(v)
	switch {
	case !rv.IsValid():
		field.SetZero()
	case rv.Type().AssignableTo(field.Type()):
		field.Set(rv)
	case rv.Kind() == field.Kind() && rv.Type().ConvertibleTo(field.Type()):
		field.Set(rv.Convert(field.Type()))
	default:
		return fmt.Errorf("%w: cannot assign %s to %s", ErrUnexpectedResult, rv.Type(), field.Type())
	}
	return nil
}
