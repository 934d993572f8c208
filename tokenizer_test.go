package rowparse

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenizer(t *testing.T) {
	tests := []struct {
		name      string
		delimiter byte
		quote     byte
		wantErr   bool
	}{
		{"Comma", ',', NoQuote, false},
		{"TabWithQuote", '\t', '"', false},
		{"NoDelimiter", 0, NoQuote, true},
		{"SameBytes", ';', ';', true},
		{"BackslashDelimiter", '\\', NoQuote, true},
		{"BackslashQuote", ',', '\\', true},
		{"NewlineDelimiter", '\n', NoQuote, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenizer(tt.delimiter, tt.quote)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDelimiter)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTokenizerSplit(t *testing.T) {
	quoted := Tokenizer{Delimiter: ',', Quote: '\''}
	plain := Tokenizer{Delimiter: ','}

	tests := []struct {
		name   string
		tok    Tokenizer
		record string
		want   []string
	}{
		{"Simple", plain, "a,b,c", []string{"a", "b", "c"}},
		{"Empty", plain, "", []string{""}},
		{"EmptyFields", plain, ",,", []string{"", "", ""}},
		{"QuotesIgnoredWhenDisabled", plain, "'a,b'", []string{"'a", "b'"}},
		{"Quoted", quoted, "1,'a,b',c", []string{"1", "a,b", "c"}},
		{"QuotedLast", quoted, "1,'x'", []string{"1", "x"}},
		{"QuotedEmpty", quoted, "'',x", []string{"", "x"}},
		{"EscapedQuote", quoted, `'it\'s',x`, []string{"it's", "x"}},
		{"QuoteInsideUnquoted", quoted, "it's,x", []string{"it's", "x"}},
		{"BackslashWithoutQuote", quoted, `'a\b'`, []string{`a\b`}},
		{"Semicolon", Tokenizer{Delimiter: ';'}, "a,b;c", []string{"a,b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, err := tt.tok.Split([]byte(tt.record))
			require.NoError(t, err)
			assert.Equal(t, tt.want, lo.Map(fields, func(f Field, _ int) string { return f.Text }))
		})
	}
}

func TestTokenizerSplit_FieldMetadata(t *testing.T) {
	tok := Tokenizer{Delimiter: ',', Quote: '"'}
	fields, err := tok.Split([]byte(`ab,"c,d",e`))
	require.NoError(t, err)

	assert.Equal(t, []Field{
		{Text: "ab", Index: 0},
		{Text: "c,d", Index: 3, Quoted: true},
		{Text: "e", Index: 9},
	}, fields)
}

func TestTokenizerSplit_Errors(t *testing.T) {
	tok := Tokenizer{Delimiter: ',', Quote: '\''}

	_, err := tok.Split([]byte("1,'open"))
	assert.ErrorIs(t, err, ErrUnterminatedQuote)

	_, err = tok.Split([]byte("'a'b,c"))
	assert.ErrorIs(t, err, ErrMissingDelimiter)
}

func TestTokenizerScanQuoted(t *testing.T) {
	tok := Tokenizer{Delimiter: ',', Quote: '\''}
	record := []byte(`x,'a\'b',y`)

	content, end, err := tok.ScanQuoted(record, 2)
	require.NoError(t, err)
	assert.Equal(t, "a'b", string(content))
	assert.Equal(t, 8, end)
	assert.Equal(t, byte(','), record[end])
}
