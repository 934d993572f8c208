package rowparse

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// scanJSONValue reads exactly one JSON value starting at buf[offset].
//
// It returns the value, the absolute offset at which the value starts and
// the number of bytes consumed from offset, including leading whitespace.
// Bytes after the value are never inspected, so the value may be followed by
// a delimiter, a quote or another value.
func scanJSONValue(buf []byte, offset int) (jsontext.Value, int, int, error) {
	dec := jsontext.NewDecoder(bytes.NewReader(buf[offset:]))
	raw, err := dec.ReadValue()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, 0, ErrEmptyValue
		}
		return nil, 0, 0, fmt.Errorf("%w: %w", ErrMalformedValue, err)
	}
	consumed := int(dec.InputOffset())
	return raw, offset + consumed - len(raw), consumed, nil
}

func firstNonSpace(buf []byte, offset int) int {
	for offset < len(buf) {
		switch buf[offset] {
		case ' ', '\t', '\r', '\n':
			offset++
		default:
			return offset
		}
	}
	return offset
}

///////////////////////////////////////////////////////////////////////////////
// Raw JSON Parsers
///////////////////////////////////////////////////////////////////////////////

// RawJSONParser consumes one JSON value of any kind and keeps its encoding.
type RawJSONParser struct {
	last jsontext.Value
}

// NewRawJSONParser creates a RawJSONParser.
func NewRawJSONParser() *RawJSONParser {
	return &RawJSONParser{}
}

// Parse implements FieldParser.
func (p *RawJSONParser) Parse(in Input, offset int) (int, error) {
	raw, _, consumed, err := scanJSONValue(in.Buf, offset)
	if err != nil {
		return 0, err
	}
	p.last = raw.Clone()
	return consumed, nil
}

// LastResult implements FieldParser.
func (p *RawJSONParser) LastResult() any {
	return p.last
}

// DecodedJSONParser consumes one JSON value and unmarshals it into T.
type DecodedJSONParser[T any] struct {
	last T
}

// NewDecodedJSONParser creates a DecodedJSONParser.
func NewDecodedJSONParser[T any]() *DecodedJSONParser[T] {
	return &DecodedJSONParser[T]{}
}

// Parse implements FieldParser.
func (p *DecodedJSONParser[T]) Parse(in Input, offset int) (int, error) {
	raw, _, consumed, err := scanJSONValue(in.Buf, offset)
	if err != nil {
		return 0, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedValue, err)
	}
	p.last = v
	return consumed, nil
}

// LastResult implements FieldParser.
func (p *DecodedJSONParser[T]) LastResult() any {
	return p.last
}
