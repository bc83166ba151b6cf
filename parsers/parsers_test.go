package parsers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"csv-import-export/csvcodec"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func collect(rows <-chan Row, errs <-chan error) ([]Row, error) {
	var all []Row
	for row := range rows {
		all = append(all, row)
	}
	return all, <-errs
}

func text(t *testing.T, row Row, label string) string {
	t.Helper()
	v, ok := row.Record.Get(label)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	require.True(t, ok, "%s is %T", label, v)
	return s
}

func TestParseCSV_ValidData(t *testing.T) {
	csvData := `id,email,name,role,active
user1,test@example.com,Test User,admin,true
user2,test2@example.com,Test User 2,reader,false`

	rows, errs := ParseCSV(context.Background(), strings.NewReader(csvData), csvcodec.Config{})
	allRows, err := collect(rows, errs)

	require.NoError(t, err)
	require.Len(t, allRows, 2, "Should parse 2 records")

	assert.Equal(t, "user1", text(t, allRows[0], "id"))
	assert.Equal(t, "test@example.com", text(t, allRows[0], "email"))
	assert.Equal(t, "Test User", text(t, allRows[0], "name"))
	assert.Equal(t, 2, allRows[0].Line)

	assert.Equal(t, "user2", text(t, allRows[1], "id"))
	assert.Equal(t, "false", text(t, allRows[1], "active"))
	assert.Equal(t, 3, allRows[1].Line)
}

func TestParseCSV_TypedColumns(t *testing.T) {
	cfg := csvcodec.Config{
		Resolver: csvcodec.NewResolverMap(
			csvcodec.NewHeader("active", csvcodec.Bool),
			csvcodec.NewHeader("score", csvcodec.Int),
		),
	}
	rows, errs := ParseCSV(context.Background(), strings.NewReader("name,active,score\nann,yes,10\n"), cfg)
	allRows, err := collect(rows, errs)
	require.NoError(t, err)
	require.Len(t, allRows, 1)

	active, _ := allRows[0].Record.Get("active")
	score, _ := allRows[0].Record.Get("score")
	assert.Equal(t, true, active)
	assert.Equal(t, 10, score)
}

func TestParseCSV_EmptyFile(t *testing.T) {
	rows, errs := ParseCSV(context.Background(), strings.NewReader(""), csvcodec.Config{})
	allRows, err := collect(rows, errs)

	assert.Len(t, allRows, 0, "Should parse 0 records")
	assert.ErrorIs(t, err, csvcodec.ErrNoHeader)
}

func TestParseCSV_MissingValues(t *testing.T) {
	csvData := `id,email,name
user1,test@example.com
user2,test2@example.com,User 2`

	rows, errs := ParseCSV(context.Background(), strings.NewReader(csvData), csvcodec.Config{})
	allRows, err := collect(rows, errs)
	require.NoError(t, err)

	require.Len(t, allRows, 2)
	assert.False(t, allRows[0].Record.Has("name"), "Missing value should be absent")
	assert.Equal(t, "User 2", text(t, allRows[1], "name"))
}

func TestParseCSV_WithCommasInValues(t *testing.T) {
	csvData := `id,name,description
1,"Smith, John","A person with comma in name"
2,Jane,"Description, with, commas"`

	rows, errs := ParseCSV(context.Background(), strings.NewReader(csvData), csvcodec.Config{})
	allRows, err := collect(rows, errs)
	require.NoError(t, err)

	require.Len(t, allRows, 2)
	assert.Equal(t, "Smith, John", text(t, allRows[0], "name"))
	assert.Equal(t, "A person with comma in name", text(t, allRows[0], "description"))
}

func TestParseCSV_SkippedLinesReported(t *testing.T) {
	var skipped []*csvcodec.Error
	cfg := csvcodec.Config{
		Options: csvcodec.IgnoreInvalidLines | csvcodec.CheckCardinality,
		Logger:  quiet,
		OnSkip:  func(err *csvcodec.Error) { skipped = append(skipped, err) },
	}
	csvData := "a,b\n1,2\n3\n4,\"x\"y\n5,6\n"

	rows, errs := ParseCSV(context.Background(), strings.NewReader(csvData), cfg)
	allRows, err := collect(rows, errs)
	require.NoError(t, err)

	require.Len(t, allRows, 2)
	assert.Equal(t, 5, allRows[1].Line)
	require.Len(t, skipped, 2)
	assert.Equal(t, csvcodec.KindCardinality, skipped[0].Kind)
	assert.Equal(t, 3, skipped[0].Line)
	assert.Equal(t, csvcodec.KindLexical, skipped[1].Kind)
	assert.Equal(t, 4, skipped[1].Line)
}

func TestParseCSV_StopsOnFirstError(t *testing.T) {
	rows, errs := ParseCSV(context.Background(), strings.NewReader("a\n1\n\"open\n"), csvcodec.Config{})
	allRows, err := collect(rows, errs)

	assert.Len(t, allRows, 1)
	assert.ErrorIs(t, err, csvcodec.ErrUnterminatedQuote)
}

func TestParseCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	input := "a\n" + strings.Repeat("x\n", 1000)
	rows, errs := ParseCSV(ctx, strings.NewReader(input), csvcodec.Config{})

	<-rows
	cancel()
	for range rows {
	}
	err := <-errs
	assert.True(t, err == nil || errors.Is(err, context.Canceled))
}

func TestCSVHeaders(t *testing.T) {
	hs, err := CSVHeaders(strings.NewReader("id;full name;email\n1;a;b\n"), csvcodec.Config{Delimiter: ";"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "full name", "email"}, hs.Labels())
}

func ndjsonHeaders() csvcodec.Headers {
	return csvcodec.MustHeaders(
		csvcodec.NewHeader("id", csvcodec.String),
		csvcodec.NewHeader("title", csvcodec.String),
		csvcodec.NewHeader("views", csvcodec.Int),
		csvcodec.NewHeader("published", csvcodec.Bool),
	)
}

func TestParseNDJSON_ValidData(t *testing.T) {
	ndjsonData := `{"id":"article1","title":"Test Article","views":12,"published":true}
{"id":"article2","title":"Draft Article","views":"3","published":null}`

	rows, errs := ParseNDJSON(context.Background(), strings.NewReader(ndjsonData), csvcodec.Config{Headers: ndjsonHeaders()})
	allRows, err := collect(rows, errs)
	require.NoError(t, err)
	require.Len(t, allRows, 2, "Should parse 2 records")

	assert.Equal(t, "article1", text(t, allRows[0], "id"))
	views, _ := allRows[0].Record.Get("views")
	assert.Equal(t, 12, views)
	published, _ := allRows[0].Record.Get("published")
	assert.Equal(t, true, published)

	views, _ = allRows[1].Record.Get("views")
	assert.Equal(t, 3, views)
	assert.False(t, allRows[1].Record.Has("published"), "null leaves the column absent")
	assert.Equal(t, 2, allRows[1].Line)
}

func TestParseNDJSON_EmptyLines(t *testing.T) {
	ndjsonData := `{"id":"article1","title":"First"}

{"id":"article2","title":"Second"}
`
	rows, errs := ParseNDJSON(context.Background(), strings.NewReader(ndjsonData), csvcodec.Config{Headers: ndjsonHeaders()})
	allRows, err := collect(rows, errs)
	require.NoError(t, err)

	require.Len(t, allRows, 2, "Should skip empty lines")
	assert.Equal(t, 3, allRows[1].Line)
}

func TestParseNDJSON_InvalidJSON(t *testing.T) {
	ndjsonData := `{"id":"article1","title":"Valid"}
{invalid json}
{"id":"article2","views":"many"}
{"id":"article3","title":"Valid Again"}`

	t.Run("failFast", func(t *testing.T) {
		rows, errs := ParseNDJSON(context.Background(), strings.NewReader(ndjsonData), csvcodec.Config{Headers: ndjsonHeaders()})
		allRows, err := collect(rows, errs)
		assert.Len(t, allRows, 1)
		assert.Equal(t, csvcodec.KindLexical, csvcodec.KindOf(err))
	})

	t.Run("ignoreInvalidLines", func(t *testing.T) {
		var skipped []*csvcodec.Error
		cfg := csvcodec.Config{
			Headers: ndjsonHeaders(),
			Options: csvcodec.IgnoreInvalidLines,
			Logger:  quiet,
			OnSkip:  func(err *csvcodec.Error) { skipped = append(skipped, err) },
		}
		rows, errs := ParseNDJSON(context.Background(), strings.NewReader(ndjsonData), cfg)
		allRows, err := collect(rows, errs)
		require.NoError(t, err)

		assert.Len(t, allRows, 2, "Should parse valid records")
		require.Len(t, skipped, 2)
		assert.Equal(t, 2, skipped[0].Line)
		assert.Equal(t, csvcodec.KindValue, skipped[1].Kind)
		assert.Equal(t, "views", skipped[1].Header)
		assert.Equal(t, "many", skipped[1].Text)
	})
}

func TestParseNDJSON_NestedAndUnknownKeys(t *testing.T) {
	ndjsonData := `{"id":"1","author":{"id":"auth1"}}
{"id":"2","title":["a","b"]}`

	rows, errs := ParseNDJSON(context.Background(), strings.NewReader(ndjsonData), csvcodec.Config{Headers: ndjsonHeaders(), Options: csvcodec.CheckCardinality})
	allRows, err := collect(rows, errs)
	assert.Empty(t, allRows)
	assert.ErrorIs(t, err, ErrUnknownColumn)

	rows, errs = ParseNDJSON(context.Background(), strings.NewReader(ndjsonData), csvcodec.Config{Headers: ndjsonHeaders()})
	allRows, err = collect(rows, errs)
	assert.Len(t, allRows, 1, "unknown keys are ignored without CheckCardinality")
	assert.ErrorIs(t, err, ErrNestedValue)
}

func TestParseNDJSON_KeysNamingSameHeader(t *testing.T) {
	ndjsonData := `{"id":"1","Title":"first","title":"second"}
{"id":"2","title":"only"}`

	rows, errs := ParseNDJSON(context.Background(), strings.NewReader(ndjsonData), csvcodec.Config{Headers: ndjsonHeaders()})
	allRows, err := collect(rows, errs)
	assert.Empty(t, allRows)
	assert.ErrorIs(t, err, csvcodec.ErrDuplicateHeader)
	assert.Equal(t, csvcodec.KindCardinality, csvcodec.KindOf(err))

	var skipped []*csvcodec.Error
	cfg := csvcodec.Config{
		Headers: ndjsonHeaders(),
		Options: csvcodec.IgnoreInvalidLines,
		Logger:  quiet,
		OnSkip:  func(e *csvcodec.Error) { skipped = append(skipped, e) },
	}
	rows, errs = ParseNDJSON(context.Background(), strings.NewReader(ndjsonData), cfg)
	allRows, err = collect(rows, errs)
	require.NoError(t, err)
	require.Len(t, allRows, 1)
	assert.Equal(t, "only", text(t, allRows[0], "title"))
	require.Len(t, skipped, 1)
	assert.Equal(t, 1, skipped[0].Line)
	assert.Equal(t, "title", skipped[0].Header)
}

func TestParseNDJSON_RequiresHeaders(t *testing.T) {
	rows, errs := ParseNDJSON(context.Background(), strings.NewReader(`{"a":1}`), csvcodec.Config{})
	allRows, err := collect(rows, errs)
	assert.Empty(t, allRows)
	assert.ErrorIs(t, err, csvcodec.ErrInvalidConfig)
}

func TestParseNDJSON_EmptyFile(t *testing.T) {
	rows, errs := ParseNDJSON(context.Background(), strings.NewReader(""), csvcodec.Config{Headers: ndjsonHeaders()})
	allRows, err := collect(rows, errs)

	assert.Len(t, allRows, 0)
	assert.NoError(t, err)
}
