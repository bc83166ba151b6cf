// Package parsers streams typed rows out of CSV and NDJSON files.
//
// CSV goes through the csvcodec decoder, so quoting, multi-character
// delimiters and the decode options behave exactly as they do for the
// codec itself. NDJSON objects are bound to the same header list, which
// lets an import accept either format for one dataset.
//
// Both parsers return two channels:
//   - A rows channel that streams decoded records with their line numbers
//   - An error channel that receives at most one terminal error
//
// Lines skipped under csvcodec.IgnoreInvalidLines are reported through
// Config.OnSkip rather than the error channel.
//
// Example usage for CSV:
//
//	file, _ := os.Open("data.csv")
//	defer file.Close()
//	cfg := csvcodec.Config{Options: csvcodec.TrimFields}
//	rows, errs := parsers.ParseCSV(ctx, file, cfg)
//
//	for row := range rows {
//	    email, _ := row.Record.Get("email")
//	    fmt.Println(row.Line, email)
//	}
//	if err := <-errs; err != nil {
//	    slog.Error("csv import stopped", "error", err)
//	}
//
// Example usage for NDJSON:
//
//	cfg := csvcodec.Config{Headers: headers, Options: csvcodec.IgnoreInvalidLines}
//	rows, errs := parsers.ParseNDJSON(ctx, file, cfg)
package parsers
