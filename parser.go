package rowparse

import (
	"fmt"
	"reflect"
)

///////////////////////////////////////////////////////////////////////////////
// Input
///////////////////////////////////////////////////////////////////////////////

// Input is the buffer a FieldParser reads from.
//
// When Delimited is set, the buffer is a whole record and a bare value ends
// at the next Delimiter byte. Otherwise the buffer holds nothing but the
// field and a bare value runs to the end of the buffer. Structured values
// (brace-delimited payloads) end where their own syntax ends and may contain
// the delimiter.
type Input struct {
	Buf       []byte
	Delimiter byte
	Delimited bool
}

// FieldInput returns an Input holding a single, already isolated field.
func FieldInput(field []byte) Input {
	return Input{Buf: field}
}

// End returns the index at which a bare value starting at offset ends.
func (in Input) End(offset int) int {
	if !in.Delimited {
		return len(in.Buf)
	}
	for i := offset; i < len(in.Buf); i++ {
		if in.Buf[i] == in.Delimiter {
			return i
		}
	}
	return len(in.Buf)
}

///////////////////////////////////////////////////////////////////////////////
// FieldParser Interface
///////////////////////////////////////////////////////////////////////////////

// FieldParser decodes one value starting at an offset into a buffer.
//
// Parse returns the number of bytes the value occupies so a caller can
// continue after it. A parser must consume exactly the bytes of its value:
// for bare values that is everything up to the end reported by Input.End,
// for structured values it is the payload itself.
//
// A FieldParser is stateful and not safe for concurrent use. LastResult
// returns the value decoded by the most recent successful Parse.
type FieldParser interface {
	Parse(in Input, offset int) (int, error)
	LastResult() any
}

// ParserProvider constructs parsers for resolved type descriptors. Factories
// receive one so that they can build the parsers of their type arguments.
type ParserProvider interface {
	ParserFor(desc *TypeDescriptor) (FieldParser, error)
}

// ParserFactory constructs FieldParsers for a raw type. The descriptor it
// receives carries the resolved type arguments of the column or member being
// parsed.
type ParserFactory interface {
	NewParser(desc *TypeDescriptor, nested ParserProvider) (FieldParser, error)
}

// ParserFactoryFunc adapts a function to the ParserFactory interface.
type ParserFactoryFunc func(desc *TypeDescriptor, nested ParserProvider) (FieldParser, error)

// NewParser implements ParserFactory.
func (f ParserFactoryFunc) NewParser(desc *TypeDescriptor, nested ParserProvider) (FieldParser, error) {
	return f(desc, nested)
}

///////////////////////////////////////////////////////////////////////////////
// TextParser
///////////////////////////////////////////////////////////////////////////////

// TextParser parses bare values of type T from their text. It is the
// building block for every built-in scalar parser.
type TextParser[T any] struct {
	ParseFunc func(string) (T, error)
	last      T
}

// NewTextParser creates a TextParser from a parse function.
func NewTextParser[T any](parse func(string) (T, error)) *TextParser[T] {
	return &TextParser[T]{ParseFunc: parse}
}

// Parse implements FieldParser.
func (p *TextParser[T]) Parse(in Input, offset int) (int, error) {
	if p.ParseFunc == nil {
		return 0, fmt.Errorf("parse function not implemented")
	}
	end := in.End(offset)
	v, err := p.ParseFunc(string(in.Buf[offset:end]))
	if err != nil {
		return 0, err
	}
	p.last = v
	return end - offset, nil
}

// LastResult implements FieldParser.
func (p *TextParser[T]) LastResult() any {
	return p.last
}

// Last returns the most recent result with its static type.
func (p *TextParser[T]) Last() T {
	return p.last
}

// TextParserFactory returns a factory producing a fresh TextParser for every
// request. The descriptor is ignored; text parsers have no type arguments.
func TextParserFactory[T any](parse func(string) (T, error)) ParserFactory {
	return ParserFactoryFunc(func(*TypeDescriptor, ParserProvider) (FieldParser, error) {
		return NewTextParser(parse), nil
	})
}

// ParseField runs p over an isolated field and requires the whole field to
// be consumed.
func ParseField(p FieldParser, field []byte) error {
	n, err := p.Parse(FieldInput(field), 0)
	if err != nil {
		return err
	}
	if n != len(field) {
		return fmt.Errorf("%w: consumed %d of %d bytes", ErrTrailingData, n, len(field))
	}
	return nil
}

// TypeErasedResult returns the last result of p converted to V, the way a
// factory wiring nested parsers reads them back.
func TypeErasedResult[V any](p FieldParser) (V, error) {
	v, ok := p.LastResult().(V)
	if !ok {
		var zero V
		return zero, fmt.Errorf("%w: expected %s, got %T", ErrUnexpectedResult, reflect.TypeFor[V](), p.LastResult())
	}
	return v, nil
}
