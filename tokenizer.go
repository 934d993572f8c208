package rowparse

import (
	"bytes"
	"fmt"
)

// Defaults for the textual record format.
const (
	DefaultFieldDelimiter byte = ','
	NoQuote               byte = 0
	quoteEscape           byte = '\\'
)

// Field is one field of a tokenized record.
type Field struct {
	Text   string // Text is the field with quotes stripped and escapes resolved
	Index  int    // Index is the byte offset of the field in the record
	Quoted bool
}

// Tokenizer splits records into fields on a single byte delimiter.
//
// When Quote is set, a field starting with the quote byte extends to the
// matching closing quote and may contain the delimiter. Inside a quoted field
// a backslash escapes the quote byte. Quote bytes inside unquoted fields have
// no special meaning.
type Tokenizer struct {
	Delimiter byte
	Quote     byte
}

// NewTokenizer validates the delimiter and quote bytes.
func NewTokenizer(delimiter, quote byte) (Tokenizer, error) {
	if delimiter == NoQuote || delimiter == quote || delimiter == quoteEscape || delimiter == '\n' {
		return Tokenizer{}, fmt.Errorf("%w: delimiter %q, quote %q", ErrInvalidDelimiter, delimiter, quote)
	}
	if quote == '\n' || quote == quoteEscape {
		return Tokenizer{}, fmt.Errorf("%w: delimiter %q, quote %q", ErrInvalidDelimiter, delimiter, quote)
	}
	return Tokenizer{Delimiter: delimiter, Quote: quote}, nil
}

// Quoting reports whether quoted fields are recognized.
func (tk Tokenizer) Quoting() bool {
	return tk.Quote != NoQuote
}

// Split tokenizes one record. An empty record has one empty field.
func (tk Tokenizer) Split(record []byte) ([]Field, error) {
	var fields []Field
	pos := 0
	for {
		if tk.Quoting() && pos < len(record) && record[pos] == tk.Quote {
			content, end, err := tk.ScanQuoted(record, pos)
			if err != nil {
				return nil, fmt.Errorf("field %d: %w", len(fields), err)
			}
			fields = append(fields, Field{Text: string(content), Index: pos, Quoted: true})
			pos = end
			if pos == len(record) {
				return fields, nil
			}
			if record[pos] != tk.Delimiter {
				return nil, fmt.Errorf("field %d: %w after closing quote, found %q", len(fields)-1, ErrMissingDelimiter, record[pos])
			}
			pos++
			continue
		}

		end := bytes.IndexByte(record[pos:], tk.Delimiter)
		if end < 0 {
			return append(fields, Field{Text: string(record[pos:]), Index: pos}), nil
		}
		fields = append(fields, Field{Text: string(record[pos : pos+end]), Index: pos})
		pos += end + 1
	}
}

// ScanQuoted reads the quoted field whose opening quote is at record[start].
// It returns the unescaped content and the index just past the closing
// quote. The content aliases record unless it contained escapes.
func (tk Tokenizer) ScanQuoted(record []byte, start int) ([]byte, int, error) {
	escaped := false
	for i := start + 1; i < len(record); i++ {
		switch record[i] {
		case quoteEscape:
			if i+1 < len(record) && record[i+1] == tk.Quote {
				escaped = true
				i++
			}
		case tk.Quote:
			content := record[start+1 : i]
			if escaped {
				content = bytes.ReplaceAll(content, []byte{quoteEscape, tk.Quote}, []byte{tk.Quote})
			}
			return content, i + 1, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: quote opened at byte %d", ErrUnterminatedQuote, start)
}
