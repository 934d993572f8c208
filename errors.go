package rowparse

import (
	"errors"
	"fmt"
)

///////////////////////////////////////////////////////////////////////////////
// Sentinel Errors
///////////////////////////////////////////////////////////////////////////////

var (
	ErrNoParserRegistered      = errors.New("no built-in or registered parser found for this type")
	ErrParserAlreadyRegistered = errors.New("a parser for this type is already registered")
	ErrRegistryFrozen          = errors.New("parser registry is frozen, register parsers before parsing begins")
	ErrNilType                 = errors.New("type must not be nil")
	ErrNilFactory              = errors.New("parser factory must not be nil")
	ErrArityMismatch           = errors.New("number of type hints does not match the declared arity")
	ErrHintMismatch            = errors.New("type hint does not match the declared type argument")
	ErrResolveDepthExceeded    = errors.New("parser construction exceeded the maximum nesting depth")
)

var (
	ErrEmptyValue         = errors.New("empty value")
	ErrTrailingData       = errors.New("unexpected trailing data after value")
	ErrUnterminatedQuote  = errors.New("missing closing quote")
	ErrMalformedValue     = errors.New("malformed structured value")
	ErrNotAnObject        = errors.New("expected a brace-delimited object")
	ErrMissingMember      = errors.New("required member is missing")
	ErrUnknownMember      = errors.New("unknown member")
	ErrUnexpectedResult   = errors.New("nested parser produced an unexpected value type")
	ErrValidationFailed   = errors.New("decoded value failed validation")
	ErrTooFewFields       = errors.New("record has fewer fields than the row type")
	ErrTooManyFields      = errors.New("record has more fields than the row type")
	ErrMissingDelimiter   = errors.New("expected field delimiter")
	ErrInvalidDelimiter   = errors.New("delimiter and quote must be distinct single bytes")
	ErrEmptyRowType       = errors.New("row type must have at least one column")
	ErrIncludeMaskInvalid = errors.New("include mask does not select the number of row type columns")
)

///////////////////////////////////////////////////////////////////////////////
// Error Taxonomy
///////////////////////////////////////////////////////////////////////////////

// ResolutionError reports that a type could not be turned into a parser,
// either because nothing is registered for it or because its type arguments
// could not be resolved. It is a configuration error and is raised while a
// RowBuilder is being constructed.
type ResolutionError struct {
	Type string // Type is the rendered type that failed to resolve
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve parser for %s: %v", e.Type, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// FieldParseError reports that a single field did not match the lexical
// structure expected by its column type.
type FieldParseError struct {
	Column int    // Column is the zero-based row type column index
	Field  string // Field is the raw field text
	Type   *TypeDescriptor
	Err    error
}

func (e *FieldParseError) Error() string {
	return fmt.Sprintf("column %d (%s): cannot parse %q: %v", e.Column, e.Type, e.Field, e.Err)
}

func (e *FieldParseError) Unwrap() error {
	return e.Err
}

// RecordShapeError reports a record whose field count does not match the row type.
type RecordShapeError struct {
	Want int
	Got  int
	Err  error // ErrTooFewFields or ErrTooManyFields
}

func (e *RecordShapeError) Error() string {
	if e.Got < 0 {
		return fmt.Sprintf("%v: want %d", e.Err, e.Want)
	}
	return fmt.Sprintf("%v: want %d, got %d", e.Err, e.Want, e.Got)
}

func (e *RecordShapeError) Unwrap() error {
	return e.Err
}

// LineError attaches the input line number to a record level error.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}
