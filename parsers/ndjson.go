package parsers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"csv-import-export/csvcodec"
)

const maxNDJSONLine = 1024 * 1024

var (
	ErrNotObject     = errors.New("line is not a JSON object")
	ErrNestedValue   = errors.New("nested values are not supported")
	ErrUnknownColumn = errors.New("unknown column")
)

// ParseNDJSON reads NDJSON (one JSON object per line) and binds each object
// to cfg.Headers, producing the same rows ParseCSV would for equivalent CSV.
// Scalars are converted to text and deserialized by the column's serializer;
// null and empty strings leave the column absent. Keys outside the headers
// are ignored unless csvcodec.CheckCardinality is set. Two keys naming the
// same header are always rejected.
//
// Errors are *csvcodec.Error values: KindLexical for malformed JSON,
// KindValue for values a serializer rejects and KindCardinality for unknown
// or duplicate keys. The channels behave as in ParseCSV, including cfg.OnSkip.
func ParseNDJSON(ctx context.Context, reader io.Reader, cfg csvcodec.Config) (<-chan Row, <-chan error) {
	rows := make(chan Row, 100)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(rows)

		if cfg.Headers.Len() == 0 {
			errs <- fmt.Errorf("%w: NDJSON requires headers", csvcodec.ErrInvalidConfig)
			return
		}
		logger := cfg.Logger
		if logger == nil {
			logger = slog.Default()
		}

		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 64*1024), maxNDJSONLine)

		lineNum := 0
		for scanner.Scan() {
			lineNum++
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			rec, err := bindObject(line, lineNum, cfg)
			if err != nil {
				if !cfg.Options.Has(csvcodec.IgnoreInvalidLines) {
					errs <- err
					return
				}
				logger.Warn("skipping invalid line", "line", err.Line, "kind", err.Kind.String(), "error", err)
				if cfg.OnSkip != nil {
					cfg.OnSkip(err)
				}
				continue
			}

			select {
			case rows <- Row{Line: lineNum, Record: rec}:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errs <- &csvcodec.Error{Kind: csvcodec.KindIO, Line: lineNum + 1, Err: err}
		}
	}()

	return rows, errs
}

func bindObject(line []byte, lineNum int, cfg csvcodec.Config) (csvcodec.Record, *csvcodec.Error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return csvcodec.Record{}, &csvcodec.Error{Kind: csvcodec.KindLexical, Line: lineNum, Err: err}
	}
	if obj == nil {
		return csvcodec.Record{}, &csvcodec.Error{Kind: csvcodec.KindLexical, Line: lineNum, Err: ErrNotObject}
	}
	if dec.More() {
		return csvcodec.Record{}, &csvcodec.Error{Kind: csvcodec.KindLexical, Line: lineNum, Err: errors.New("trailing data after object")}
	}

	b := csvcodec.NewRecordBuilder(cfg.Headers)
	bound := make(map[int]string, len(obj))
	for key, raw := range obj {
		i := cfg.Headers.Index(key)
		if i < 0 {
			if cfg.Options.Has(csvcodec.CheckCardinality) {
				return csvcodec.Record{}, &csvcodec.Error{Kind: csvcodec.KindCardinality, Line: lineNum, Header: key, Err: ErrUnknownColumn}
			}
			continue
		}
		h := cfg.Headers.At(i)
		if prev, dup := bound[i]; dup {
			first, second := min(prev, key), max(prev, key)
			return csvcodec.Record{}, &csvcodec.Error{
				Kind:   csvcodec.KindCardinality,
				Line:   lineNum,
				Header: h.Label,
				Err:    fmt.Errorf("%w: keys %q and %q", csvcodec.ErrDuplicateHeader, first, second),
			}
		}
		bound[i] = key

		text, err := scalarText(raw)
		if err != nil {
			return csvcodec.Record{}, &csvcodec.Error{Kind: csvcodec.KindValue, Line: lineNum, Header: h.Label, Err: err}
		}
		if cfg.Options.Has(csvcodec.TrimFields) {
			text = strings.TrimSpace(text)
		}
		if text == "" {
			continue
		}
		v, err := h.Serializer.Deserialize(text)
		if err != nil {
			return csvcodec.Record{}, &csvcodec.Error{Kind: csvcodec.KindValue, Line: lineNum, Header: h.Label, Text: text, Err: err}
		}
		if err := b.Set(h.Label, v); err != nil {
			return csvcodec.Record{}, &csvcodec.Error{Kind: csvcodec.KindValue, Line: lineNum, Header: h.Label, Text: text, Err: err}
		}
	}
	return b.Build(), nil
}

func scalarText(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", ErrNestedValue
	}
}
