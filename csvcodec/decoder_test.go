package csvcodec

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAll(t *testing.T, input string, cfg Config) ([]Record, error) {
	t.Helper()
	dec, err := NewDecoder(strings.NewReader(input), cfg)
	require.NoError(t, err)
	return dec.ReadAll()
}

func stringsOf(t *testing.T, rec Record) map[string]string {
	t.Helper()
	m, err := rec.Strings()
	require.NoError(t, err)
	return m
}

func TestDecoderHeaderLine(t *testing.T) {
	t.Parallel()

	recs, err := decodeAll(t, "a,b,c\n1,2,3\n", Config{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": "3"}, stringsOf(t, recs[0]))
	assert.Equal(t, []string{"a", "b", "c"}, recs[0].Labels())
}

func TestDecoderResolverTypesColumns(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Resolver: NewResolverMap(NewHeader("Age", Int), NewHeader("active", Bool)),
		Options:  TrimFields,
	}
	dec, err := NewDecoder(strings.NewReader("name , age,ACTIVE\nann, 41 ,yes\n"), cfg)
	require.NoError(t, err)

	hs := dec.Headers()
	assert.Equal(t, []string{"name", "age", "ACTIVE"}, hs.Labels())
	assert.Equal(t, "string", hs.At(0).Type().String())
	assert.Equal(t, "int", hs.At(1).Type().String())

	rec, err := dec.Read()
	require.NoError(t, err)
	age, ok := rec.Get("age")
	require.True(t, ok)
	assert.Equal(t, 41, age)
	active, _ := rec.Get("active")
	assert.Equal(t, true, active)
	name, _ := rec.Get("NAME")
	assert.Equal(t, "ann", name)
}

func TestDecoderDuplicateDerivedHeaders(t *testing.T) {
	t.Parallel()

	_, err := NewDecoder(strings.NewReader("Name,name \n"), Config{Options: TrimFields})
	require.Error(t, err)
	assert.Equal(t, KindHeader, KindOf(err))
	assert.ErrorIs(t, err, ErrDuplicateHeader)
}

func TestDecoderEmptyInputWithoutHeaders(t *testing.T) {
	t.Parallel()

	_, err := NewDecoder(strings.NewReader(""), Config{})
	assert.ErrorIs(t, err, ErrNoHeader)
}

func TestDecoderExplicitHeadersReadFirstLineAsData(t *testing.T) {
	t.Parallel()

	hs := MustHeaders(NewHeader("x", Int), NewHeader("y", Int))
	recs, err := decodeAll(t, "1,2\n3,4\n", Config{Headers: hs})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	x, _ := recs[1].Get("x")
	assert.Equal(t, 3, x)
}

func TestDecoderInvalidConfig(t *testing.T) {
	t.Parallel()

	for _, cfg := range []Config{
		{Delimiter: "\""},
		{Delimiter: ",\n"},
		{Delimiter: "\r"},
		{Delimiter: ";", Quote: '\n'},
		{Delimiter: "|'|", Quote: '\''},
	} {
		_, err := NewDecoder(strings.NewReader("a\n"), cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig, "config %+v", cfg)
	}
}

func TestDecoderCardinality(t *testing.T) {
	t.Parallel()

	input := "a,b\n1,2\n1,2,3\n1\n"

	t.Run("checked", func(t *testing.T) {
		t.Parallel()
		dec, err := NewDecoder(strings.NewReader(input), Config{Options: CheckCardinality})
		require.NoError(t, err)

		_, err = dec.Read()
		require.NoError(t, err)
		_, err = dec.Read()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFieldCount)
		var cerr *Error
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, KindCardinality, cerr.Kind)
		assert.Equal(t, 3, cerr.Line)

		// The sequence stays failed.
		_, again := dec.Read()
		assert.Equal(t, err, again)
		assert.Equal(t, err, dec.Err())
	})

	t.Run("ragged", func(t *testing.T) {
		t.Parallel()
		recs, err := decodeAll(t, input, Config{})
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, map[string]string{"a": "1", "b": "2"}, stringsOf(t, recs[1]))
		assert.Equal(t, map[string]string{"a": "1"}, stringsOf(t, recs[2]))
		assert.False(t, recs[2].Has("b"))
	})
}

func TestDecoderTrimOnlySurroundingWhitespace(t *testing.T) {
	t.Parallel()

	recs, err := decodeAll(t, "a,b\n  hello  world \t,x\n", Config{Options: TrimFields})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	v, _ := recs[0].Get("a")
	assert.Equal(t, "hello  world", v)

	recs, err = decodeAll(t, "a,b\n  hello ,x\n", Config{})
	require.NoError(t, err)
	v, _ = recs[0].Get("a")
	assert.Equal(t, "  hello ", v)
}

func TestDecoderEmptyCellIsAbsent(t *testing.T) {
	t.Parallel()

	recs, err := decodeAll(t, "a,b,c\n1,,\"\"\n, ,3\n", Config{Options: TrimFields})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, 1, recs[0].Len())
	assert.False(t, recs[0].Has("b"))
	assert.False(t, recs[0].Has("c"))
	_, ok := recs[0].Get("b")
	assert.False(t, ok)

	assert.Equal(t, []string{"c"}, recs[1].Labels())
}

func TestDecoderValueError(t *testing.T) {
	t.Parallel()

	hs := MustHeaders(NewHeader("n", Int), NewHeader("note", String))
	dec, err := NewDecoder(strings.NewReader("1,ok\n\"x\ny\",z\nseven,bad\n"), Config{Headers: hs})
	require.NoError(t, err)

	_, err = dec.Read()
	require.NoError(t, err)
	_, err = dec.Read()
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, KindValue, cerr.Kind)
	assert.Equal(t, "n", cerr.Header)
	assert.Equal(t, "x\ny", cerr.Text)
	assert.Equal(t, 2, cerr.Line)
}

func TestDecoderIgnoreInvalidLines(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	var skipped []*Error
	cfg := Config{
		Options: IgnoreInvalidLines,
		Logger:  slog.New(slog.NewTextHandler(&logs, nil)),
		OnSkip:  func(err *Error) { skipped = append(skipped, err) },
	}
	recs, err := decodeAll(t, "k\none\nt\"wo\nthree\n", cfg)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, map[string]string{"k": "one"}, stringsOf(t, recs[0]))
	assert.Equal(t, map[string]string{"k": "three"}, stringsOf(t, recs[1]))

	require.Len(t, skipped, 1)
	assert.Equal(t, 3, skipped[0].Line)
	assert.Equal(t, 1, strings.Count(logs.String(), "skipping invalid line"))
}

func TestDecoderIgnoreInvalidLinesAllKinds(t *testing.T) {
	t.Parallel()

	hs := MustHeaders(NewHeader("n", Int), NewHeader("s", String))
	input := "1,a\n2\n\"3\"x,b\nfour,c\n\"5\",\"e\nf\"\n6,\"unterminated\n"
	dec, err := NewDecoder(strings.NewReader(input), Config{
		Headers: hs,
		Options: IgnoreInvalidLines | CheckCardinality,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	recs, err := dec.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	n, _ := recs[1].Get("n")
	assert.Equal(t, 5, n)
	s, _ := recs[1].Get("s")
	assert.Equal(t, "e\nf", s)
	assert.Equal(t, 4, dec.Skipped())
}

func TestDecoderIOErrorNotDowngraded(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	src := io.MultiReader(strings.NewReader("a\n1\n"), failingReader{boom})
	dec, err := NewDecoder(src, Config{Options: IgnoreInvalidLines})
	require.NoError(t, err)

	_, err = dec.Read()
	require.NoError(t, err)
	_, err = dec.Read()
	assert.Equal(t, KindIO, KindOf(err))
	assert.ErrorIs(t, err, boom)
}

func TestDecoderMoreBuffersOneRecord(t *testing.T) {
	t.Parallel()

	dec, err := NewDecoder(strings.NewReader("a\n1\n2\n"), Config{})
	require.NoError(t, err)

	assert.True(t, dec.More())
	assert.True(t, dec.More())
	assert.Equal(t, 3, dec.Line())

	rec, err := dec.Read()
	require.NoError(t, err)
	v, _ := rec.Get("a")
	assert.Equal(t, "1", v)

	rec, err = dec.Read()
	require.NoError(t, err)
	v, _ = rec.Get("a")
	assert.Equal(t, "2", v)

	assert.False(t, dec.More())
	_, err = dec.Read()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderMoreReportsPendingError(t *testing.T) {
	t.Parallel()

	dec, err := NewDecoder(strings.NewReader("a\n\"bad\n"), Config{})
	require.NoError(t, err)
	assert.True(t, dec.More())
	_, err = dec.Read()
	assert.ErrorIs(t, err, ErrUnterminatedQuote)
}

func TestDecoderMultiLineFieldLineNumbers(t *testing.T) {
	t.Parallel()

	hs := MustHeaders(NewHeader("text", String), NewHeader("n", Int))
	dec, err := NewDecoder(strings.NewReader("\"one\ntwo\nthree\",1\nx,oops\n"), Config{Headers: hs})
	require.NoError(t, err)

	rec, err := dec.Read()
	require.NoError(t, err)
	v, _ := rec.Get("text")
	assert.Equal(t, "one\ntwo\nthree", v)
	assert.Equal(t, 1, dec.RecordLine())

	_, err = dec.Read()
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, 4, cerr.Line)
}

func TestDecoderRecordsIterator(t *testing.T) {
	t.Parallel()

	dec, err := NewDecoder(strings.NewReader("a\n1\n2\n3\n"), Config{})
	require.NoError(t, err)

	var got []string
	for rec, err := range dec.Records() {
		require.NoError(t, err)
		v, _ := rec.Get("a")
		got = append(got, v.(string))
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
}
