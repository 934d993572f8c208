package rowparse

import (
	"fmt"
	"reflect"

	"github.com/samber/lo"
)

type RowBuilderOpts struct {
	// Tokenizer defines the delimiter and quote byte. The zero value means
	// comma delimited without quoting.
	Tokenizer Tokenizer
	// IncludeFields selects which source fields become columns. When set,
	// records must have len(IncludeFields) fields and the number of true
	// entries must equal the number of columns.
	IncludeFields []bool
}

// RowBuilder decodes records into rows of a fixed RowTypeSpec.
//
// All column parsers are resolved once, when the builder is constructed;
// resolution failures surface there as *ResolutionError before any record
// is read. A RowBuilder owns its parsers and must not be shared between
// goroutines; parallel pipelines each construct their own.
type RowBuilder struct {
	spec    RowTypeSpec
	parsers []FieldParser
	tok     Tokenizer
	include []bool
}

// NewRowBuilder resolves a parser for every column of spec through provider.
func NewRowBuilder(provider ParserProvider, spec RowTypeSpec, opts RowBuilderOpts) (*RowBuilder, error) {
	if len(spec) == 0 {
		return nil, ErrEmptyRowType
	}

	tok := opts.Tokenizer
	if tok.Delimiter == 0 {
		tok.Delimiter = DefaultFieldDelimiter
	}
	tok, err := NewTokenizer(tok.Delimiter, tok.Quote)
	if err != nil {
		return nil, err
	}

	if opts.IncludeFields != nil {
		selected := lo.Count(opts.IncludeFields, true)
		if selected != len(spec) {
			return nil, fmt.Errorf("%w: %d selected, %d columns", ErrIncludeMaskInvalid, selected, len(spec))
		}
	}

	b := &RowBuilder{
		spec:    spec,
		parsers: make([]FieldParser, len(spec)),
		tok:     tok,
		include: opts.IncludeFields,
	}
	for i, desc := range spec {
		if desc == nil {
			return nil, &ResolutionError{Type: fmt.Sprintf("column %d", i), Err: ErrNilType}
		}
		parser, err := provider.ParserFor(desc)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		b.parsers[i] = parser
	}
	return b, nil
}

// NewRowBuilderFromTypes resolves the column types without hints and builds
// a RowBuilder from them. It produces the same builder as NewRowBuilder given
// the equivalent descriptors.
func NewRowBuilderFromTypes(provider ParserProvider, opts RowBuilderOpts, types ...reflect.Type) (*RowBuilder, error) {
	spec, err := RowTypeOf(types...)
	if err != nil {
		return nil, err
	}
	return NewRowBuilder(provider, spec, opts)
}

// Spec returns the row type the builder produces.
func (b *RowBuilder) Spec() RowTypeSpec {
	return b.spec
}

// Tokenizer returns the record format the builder expects.
func (b *RowBuilder) Tokenizer() Tokenizer {
	return b.tok
}

func (b *RowBuilder) sourceFields() int {
	if b.include != nil {
		return len(b.include)
	}
	return len(b.spec)
}

func (b *RowBuilder) included(field int) bool {
	return b.include == nil || b.include[field]
}

// ParseRecord decodes a record that has already been split into fields.
// Every field must be consumed entirely by its column parser.
func (b *RowBuilder) ParseRecord(fields []string) (Row, error) {
	if want := b.sourceFields(); len(fields) != want {
		return nil, shapeError(want, len(fields))
	}

	row := make(Row, len(b.spec))
	col := 0
	for i, field := range fields {
		if !b.included(i) {
			continue
		}
		if err := ParseField(b.parsers[col], []byte(field)); err != nil {
			return nil, b.fieldError(col, field, err)
		}
		if err := b.store(row, col, field); err != nil {
			return nil, err
		}
		col++
	}
	return row, nil
}

// ParseLine decodes a raw record, letting the column parsers find the field
// boundaries.
//
// A quoted field is isolated at its closing quote and must be consumed
// entirely. An unquoted field is parsed in place: bare values end at the
// delimiter, while structured values end where their own syntax ends and
// may therefore contain the delimiter without quoting.
func (b *RowBuilder) ParseLine(line []byte) (Row, error) {
	row := make(Row, len(b.spec))
	in := Input{Buf: line, Delimiter: b.tok.Delimiter, Delimited: true}
	want := b.sourceFields()

	pos, col := 0, 0
	prevCol, prevStart := -1, 0
	for i := 0; i < want; i++ {
		if i > 0 {
			if pos >= len(line) {
				return nil, shapeError(want, i)
			}
			if line[pos] != b.tok.Delimiter {
				return nil, b.trailingError(prevCol, line, prevStart, pos)
			}
			pos++
		}

		start := pos
		quoted := b.tok.Quoting() && pos < len(line) && line[pos] == b.tok.Quote
		inc := b.included(i)

		switch {
		case quoted:
			content, end, err := b.tok.ScanQuoted(line, pos)
			if err != nil {
				if inc {
					return nil, b.fieldError(col, string(line[pos:]), err)
				}
				return nil, fmt.Errorf("skipped field %d: %w", i, err)
			}
			if inc {
				if err := ParseField(b.parsers[col], content); err != nil {
					return nil, b.fieldError(col, string(content), err)
				}
			}
			pos = end
		case !inc:
			pos = in.End(pos)
		default:
			n, err := b.parsers[col].Parse(in, pos)
			if err != nil {
				return nil, b.fieldError(col, failedFieldText(in, pos), err)
			}
			pos += n
		}

		prevCol, prevStart = -1, start
		if inc {
			if err := b.store(row, col, string(line[start:pos])); err != nil {
				return nil, err
			}
			prevCol = col
			col++
		}
	}

	if pos < len(line) {
		if line[pos] != b.tok.Delimiter {
			return nil, b.trailingError(prevCol, line, prevStart, pos)
		}
		got := -1
		if rest, err := b.tok.Split(line[pos+1:]); err == nil {
			got = want + len(rest)
		}
		return nil, shapeError(want, got)
	}
	return row, nil
}

// store validates and records the last result of the column parser.
func (b *RowBuilder) store(row Row, col int, field string) error {
	value := b.parsers[col].LastResult()
	if err := validateValue(value); err != nil {
		return b.fieldError(col, field, err)
	}
	row[col] = value
	return nil
}

func (b *RowBuilder) fieldError(col int, field string, err error) error {
	return &FieldParseError{Column: col, Field: field, Type: b.spec[col], Err: err}
}

// failedFieldText returns the text of an unquoted field that failed to
// parse. Structured values may contain delimiters, so they extend to the end
// of the JSON value when it is well formed and to the end of the line
// otherwise.
func failedFieldText(in Input, pos int) string {
	start := firstNonSpace(in.Buf, pos)
	if start < len(in.Buf) && (in.Buf[start] == '{' || in.Buf[start] == '[') {
		if _, _, n, err := scanJSONValue(in.Buf, pos); err == nil {
			return string(in.Buf[pos:in.End(pos+n)])
		}
		return string(in.Buf[pos:])
	}
	return string(in.Buf[pos:in.End(pos)])
}

func (b *RowBuilder) trailingError(col int, line []byte, start, pos int) error {
	err := fmt.Errorf("%w: found %q", ErrTrailingData, line[pos])
	if col < 0 {
		return fmt.Errorf("skipped field: %w", err)
	}
	end := Input{Buf: line, Delimiter: b.tok.Delimiter, Delimited: true}.End(pos)
	return b.fieldError(col, string(line[start:end]), err)
}

func shapeError(want, got int) error {
	if got >= 0 && got < want {
		return &RecordShapeError{Want: want, Got: got, Err: ErrTooFewFields}
	}
	return &RecordShapeError{Want: want, Got: got, Err: ErrTooManyFields}
}
