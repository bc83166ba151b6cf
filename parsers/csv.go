package parsers

import (
	"context"
	"io"

	"csv-import-export/csvcodec"
)

// Row is one decoded record and the physical line it started on.
type Row struct {
	Line   int
	Record csvcodec.Record
}

// ParseCSV decodes reader with cfg and streams rows via channel.
// Returns two channels: one for rows, one for the error that stopped
// decoding. The error channel carries at most one value and never blocks
// the parser, so callers may drain rows first and then read the error.
//
// Lines skipped under csvcodec.IgnoreInvalidLines are reported through
// cfg.OnSkip, which runs on the parsing goroutine. Anything it collects is
// safe to read once the row channel is closed.
func ParseCSV(ctx context.Context, reader io.Reader, cfg csvcodec.Config) (<-chan Row, <-chan error) {
	rows := make(chan Row, 100)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(rows)

		dec, err := csvcodec.NewDecoder(reader, cfg)
		if err != nil {
			errs <- err
			return
		}
		for {
			rec, err := dec.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errs <- err
				return
			}
			select {
			case rows <- Row{Line: dec.RecordLine(), Record: rec}:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return rows, errs
}

// CSVHeaders reads only the header line of reader and resolves it with cfg.
func CSVHeaders(reader io.Reader, cfg csvcodec.Config) (csvcodec.Headers, error) {
	cfg.Headers = csvcodec.Headers{}
	dec, err := csvcodec.NewDecoder(reader, cfg)
	if err != nil {
		return csvcodec.Headers{}, err
	}
	return dec.Headers(), nil
}
