package datasets

import (
	"encoding/json"
	"fmt"
	"time"

	"csv-import-export/csvcodec"
)

// NormalizeRow converts a decoded record into a row of the dataset whose
// headers are given. Fields are keyed by the schema label rather than the
// label found in the upload; fields the schema does not declare are dropped.
func NormalizeRow(datasetID, jobID string, line int, rec csvcodec.Record, headers csvcodec.Headers) (RowModel, error) {
	data := make(map[string]string, rec.Len())
	for _, f := range rec.Fields() {
		h, ok := headers.Lookup(f.Header.Label)
		if !ok {
			continue
		}
		text, err := h.Serializer.Serialize(f.Value)
		if err != nil {
			return RowModel{}, &csvcodec.Error{Kind: csvcodec.KindValue, Line: line, Header: h.Label, Err: err}
		}
		data[h.Label] = text
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return RowModel{}, fmt.Errorf("encode row: %w", err)
	}
	return RowModel{
		DatasetID:   datasetID,
		ImportJobID: jobID,
		LineNumber:  line,
		Data:        string(raw),
		CreatedAt:   time.Now(),
	}, nil
}

// RowRecord re-types a stored row against headers. Columns outside headers
// are left out, which is how exports project a subset of fields.
func RowRecord(row RowModel, headers csvcodec.Headers) (csvcodec.Record, error) {
	values, err := row.Values()
	if err != nil {
		return csvcodec.Record{}, err
	}
	b := csvcodec.NewRecordBuilder(headers)
	for label, text := range values {
		h, ok := headers.Lookup(label)
		if !ok || text == "" {
			continue
		}
		v, err := h.Serializer.Deserialize(text)
		if err != nil {
			return csvcodec.Record{}, &csvcodec.Error{Kind: csvcodec.KindValue, Line: row.LineNumber, Header: h.Label, Text: text, Err: err}
		}
		if err := b.Set(h.Label, v); err != nil {
			return csvcodec.Record{}, &csvcodec.Error{Kind: csvcodec.KindValue, Line: row.LineNumber, Header: h.Label, Text: text, Err: err}
		}
	}
	return b.Build(), nil
}

// MatchesFilters reports whether every filter equals the row's stored text
// for that column. Filter keys are matched by normalized label.
func MatchesFilters(values map[string]string, filters map[string]string) bool {
	if len(filters) == 0 {
		return true
	}
	normalized := make(map[string]string, len(values))
	for k, v := range values {
		normalized[csvcodec.NormalizeLabel(k)] = v
	}
	for k, want := range filters {
		if normalized[csvcodec.NormalizeLabel(k)] != want {
			return false
		}
	}
	return true
}
