package rowparse

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"
)

///////////////////////////////////////////////////////////////////////////////
// Built-in Parsers
///////////////////////////////////////////////////////////////////////////////

// reflect.Type values of the built-in column types
var (
	StringType   = reflect.TypeFor[string]()
	BoolType     = reflect.TypeFor[bool]()
	IntType      = reflect.TypeFor[int]()
	Int64Type    = reflect.TypeFor[int64]()
	Float64Type  = reflect.TypeFor[float64]()
	BytesType    = reflect.TypeFor[[]byte]()
	TimeType     = reflect.TypeFor[time.Time]()
	DurationType = reflect.TypeFor[time.Duration]()
	UUIDType     = reflect.TypeFor[uuid.UUID]()
	RawJSONType  = reflect.TypeFor[jsontext.Value]()
	JSONMapType  = reflect.TypeFor[map[string]any]()
	JSONListType = reflect.TypeFor[[]any]()
)

// Time layouts tried in order by the time.Time parser.
var TimeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"15:04:05",
}

// _builtinFactories are consulted after explicit registrations. They can be
// shadowed but never removed.
var _builtinFactories = map[TypeID]ParserFactory{
	TypeIDOf(StringType):               TextParserFactory(parseString),
	TypeIDOf(BoolType):                 TextParserFactory(parseBool),
	TypeIDOf(IntType):                  TextParserFactory(signedParser[int](strconv.IntSize)),
	TypeIDOf(reflect.TypeFor[int8]()):  TextParserFactory(signedParser[int8](8)),
	TypeIDOf(reflect.TypeFor[int16]()): TextParserFactory(signedParser[int16](16)),
	TypeIDOf(reflect.TypeFor[int32]()): TextParserFactory(signedParser[int32](32)),
	TypeIDOf(Int64Type):                TextParserFactory(signedParser[int64](64)),

	TypeIDOf(reflect.TypeFor[uint]()):   TextParserFactory(unsignedParser[uint](strconv.IntSize)),
	TypeIDOf(reflect.TypeFor[uint8]()):  TextParserFactory(unsignedParser[uint8](8)),
	TypeIDOf(reflect.TypeFor[uint16]()): TextParserFactory(unsignedParser[uint16](16)),
	TypeIDOf(reflect.TypeFor[uint32]()): TextParserFactory(unsignedParser[uint32](32)),
	TypeIDOf(reflect.TypeFor[uint64]()): TextParserFactory(unsignedParser[uint64](64)),

	TypeIDOf(reflect.TypeFor[float32]()): TextParserFactory(floatParser[float32](32)),
	TypeIDOf(Float64Type):                 TextParserFactory(floatParser[float64](64)),

	TypeIDOf(BytesType):    TextParserFactory(parseBytes),
	TypeIDOf(TimeType):     TextParserFactory(parseTime),
	TypeIDOf(DurationType): TextParserFactory(parseDuration),
	TypeIDOf(UUIDType):     TextParserFactory(parseUUID),

	TypeIDOf(RawJSONType): ParserFactoryFunc(func(*TypeDescriptor, ParserProvider) (FieldParser, error) {
		return NewRawJSONParser(), nil
	}),
	TypeIDOf(JSONMapType): ParserFactoryFunc(func(*TypeDescriptor, ParserProvider) (FieldParser, error) {
		return NewDecodedJSONParser[map[string]any](), nil
	}),
	TypeIDOf(JSONListType): ParserFactoryFunc(func(*TypeDescriptor, ParserProvider) (FieldParser, error) {
		return NewDecodedJSONParser[[]any](), nil
	}),
}

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// builtinFactory returns the entry of the built-in table for the raw type
// of t.
func builtinFactory(t reflect.Type) (ParserFactory, bool) {
	factory, ok := _builtinFactories[TypeIDOf(t)]
	return factory, ok
}

// IsBuiltin reports whether a built-in parser exists for the raw type of t.
func IsBuiltin(t reflect.Type) bool {
	_, ok := builtinFactory(t)
	return ok
}

// textUnmarshalerFactory returns a text parser calling UnmarshalText when t
// implements encoding.TextUnmarshaler on a value or pointer receiver.
func textUnmarshalerFactory(t reflect.Type) (ParserFactory, bool) {
	if t == nil || !implementsTextUnmarshaler(t) {
		return nil, false
	}
	return ParserFactoryFunc(func(desc *TypeDescriptor, _ ParserProvider) (FieldParser, error) {
		return NewTextParser(unmarshalText(desc.Type())), nil
	}), true
}

func implementsTextUnmarshaler(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		return t.Implements(textUnmarshalerType)
	}
	return t.Kind() != reflect.Interface && reflect.PointerTo(t).Implements(textUnmarshalerType)
}

// unmarshalText decodes into a new value of t through its UnmarshalText
// method. For pointer types the pointer itself is the result.
func unmarshalText(t reflect.Type) func(string) (any, error) {
	return func(value string) (any, error) {
		elem := t
		if t.Kind() == reflect.Pointer {
			elem = t.Elem()
		}
		ptr := reflect.New(elem)
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(value)); err != nil {
			return nil, fmt.Errorf("error converting value to %s: %w", t, err)
		}
		if t.Kind() == reflect.Pointer {
			return ptr.Interface(), nil
		}
		return ptr.Elem().Interface(), nil
	}
}

func parseString(value string) (string, error) {
	return value, nil
}

// parseBool accepts the common boolean spellings before falling back to
// strconv.ParseBool.
func parseBool(value string) (bool, error) {
	switch value {
	case "true", "yes", "on", "True", "TRUE", "YES", "ON":
		return true, nil
	case "false", "no", "off", "False", "FALSE", "NO", "OFF":
		return false, nil
	case "":
		return false, ErrEmptyValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("error converting value to bool: %w", err)
	}
	return b, nil
}

func signedParser[T ~int | ~int8 | ~int16 | ~int32 | ~int64](bits int) func(string) (T, error) {
	return func(value string) (T, error) {
		if value == "" {
			return 0, ErrEmptyValue
		}
		v, err := strconv.ParseInt(value, 10, bits)
		if err != nil {
			return 0, fmt.Errorf("error converting value to %s: %w", reflect.TypeFor[T](), err)
		}
		return T(v), nil
	}
}

func unsignedParser[T ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64](bits int) func(string) (T, error) {
	return func(value string) (T, error) {
		if value == "" {
			return 0, ErrEmptyValue
		}
		v, err := strconv.ParseUint(value, 10, bits)
		if err != nil {
			return 0, fmt.Errorf("error converting value to %s: %w", reflect.TypeFor[T](), err)
		}
		return T(v), nil
	}
}

func floatParser[T ~float32 | ~float64](bits int) func(string) (T, error) {
	return func(value string) (T, error) {
		if value == "" {
			return 0, ErrEmptyValue
		}
		v, err := strconv.ParseFloat(value, bits)
		if err != nil {
			return 0, fmt.Errorf("error converting value to %s: %w", reflect.TypeFor[T](), err)
		}
		return T(v), nil
	}
}

func parseBytes(value string) ([]byte, error) {
	return []byte(value), nil
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, ErrEmptyValue
	}
	var err error
	for _, layout := range TimeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("error converting value to time.Time: %w", err)
}

func parseDuration(value string) (time.Duration, error) {
	if value == "" {
		return 0, ErrEmptyValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("error converting value to time.Duration: %w", err)
	}
	return d, nil
}

func parseUUID(value string) (uuid.UUID, error) {
	if value == "" {
		return uuid.Nil, ErrEmptyValue
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error converting value to UUID: %w", err)
	}
	return id, nil
}
