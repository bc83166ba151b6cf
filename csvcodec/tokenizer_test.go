package csvcodec

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readAllLines tokenizes input until EOF, collecting field texts and the
// errors produced along the way.
func readAllLines(t *testing.T, input, delim string) ([][]string, []error) {
	t.Helper()
	tok := newTokenizer(strings.NewReader(input), delim, '"')
	var lines [][]string
	var errs []error
	for i := 0; i < 100; i++ {
		fields, _, err := tok.readFields()
		if err == io.EOF {
			return lines, errs
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		texts := make([]string, len(fields))
		for j, f := range fields {
			texts[j] = f.text
		}
		lines = append(lines, texts)
	}
	t.Fatalf("tokenizer did not reach EOF for %q", input)
	return nil, nil
}

func TestTokenizerReadFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		delim string
		want  [][]string
	}{
		{name: "basic", input: "a,b,c\n1,2,3\n", want: [][]string{{"a", "b", "c"}, {"1", "2", "3"}}},
		{name: "noTrailingTerminator", input: "a,b", want: [][]string{{"a", "b"}}},
		{name: "crlf", input: "a,b\r\nc,d\r\n", want: [][]string{{"a", "b"}, {"c", "d"}}},
		{name: "bareCR", input: "a\rb\r", want: [][]string{{"a"}, {"b"}}},
		{name: "emptyFields", input: ",,\n", want: [][]string{{"", "", ""}}},
		{name: "trailingDelimiterAtEOF", input: "a,", want: [][]string{{"a", ""}}},
		{name: "emptyLine", input: "a\n\nb\n", want: [][]string{{"a"}, {""}, {"b"}}},
		{name: "quotedDelimiter", input: "a,\"b,b\",c\n", want: [][]string{{"a", "b,b", "c"}}},
		{name: "escapedQuote", input: "\"He said \"\"hi\"\"\"\n", want: [][]string{{"He said \"hi\""}}},
		{name: "embeddedLF", input: "a,\"b\nc\",d\n", want: [][]string{{"a", "b\nc", "d"}}},
		{name: "embeddedCRLF", input: "\"x\r\ny\"\n", want: [][]string{{"x\r\ny"}}},
		{name: "quotedAtEOF", input: "\"quoted\"", want: [][]string{{"quoted"}}},
		{name: "emptyQuoted", input: "\"\",x\n", want: [][]string{{"", "x"}}},
		{name: "multiCharDelimiter", input: "a::b::c\n", delim: "::", want: [][]string{{"a", "b", "c"}}},
		{name: "partialDelimiterIsData", input: "a:b::c\n", delim: "::", want: [][]string{{"a:b", "c"}}},
		{name: "partialDelimiterAtEOF", input: "a:", delim: "::", want: [][]string{{"a:"}}},
		{name: "quotedThenMultiDelimiter", input: "\"a::\"::b\n", delim: "::", want: [][]string{{"a::", "b"}}},
		{name: "unicodeDelimiter", input: "α→β→γ\n", delim: "→", want: [][]string{{"α", "β", "γ"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			delim := tc.delim
			if delim == "" {
				delim = ","
			}
			lines, errs := readAllLines(t, tc.input, delim)
			assert.Empty(t, errs)
			assert.Equal(t, tc.want, lines)
		})
	}
}

func TestTokenizerLexicalErrorsResynchronize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		cause error
		line  int
		want  [][]string
	}{
		{name: "bareQuote", input: "a,b\nc\"d,e\nf,g\n", cause: ErrBareQuote, line: 2, want: [][]string{{"a", "b"}, {"f", "g"}}},
		{name: "trailingQuote", input: "\"a\"x,b\nc\n", cause: ErrTrailingQuote, line: 1, want: [][]string{{"c"}}},
		{name: "unterminatedAtEOF", input: "ok\n\"never closed\nstill open", cause: ErrUnterminatedQuote, line: 2, want: [][]string{{"ok"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			lines, errs := readAllLines(t, tc.input, ",")
			require.Len(t, errs, 1)
			assert.True(t, errors.Is(errs[0], tc.cause))
			var cerr *Error
			require.ErrorAs(t, errs[0], &cerr)
			assert.Equal(t, KindLexical, cerr.Kind)
			assert.Equal(t, tc.line, cerr.Line)
			assert.Equal(t, tc.want, lines)
		})
	}
}

func TestTokenizerFieldLines(t *testing.T) {
	t.Parallel()

	tok := newTokenizer(strings.NewReader("a,\"b\nc\",d\ne\n"), ",", '"')
	fields, first, err := tok.readFields()
	require.NoError(t, err)
	assert.Equal(t, 1, first)
	require.Len(t, fields, 3)
	assert.Equal(t, 1, fields[1].line)
	assert.Equal(t, 2, fields[2].line)

	fields, first, err = tok.readFields()
	require.NoError(t, err)
	assert.Equal(t, 3, first)
	assert.Equal(t, "e", fields[0].text)
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestTokenizerIOError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk on fire")
	tok := newTokenizer(failingReader{boom}, ",", '"')
	_, _, err := tok.readFields()
	require.Error(t, err)
	assert.Equal(t, KindIO, KindOf(err))
	assert.ErrorIs(t, err, boom)
}
