// Package csvcodec reads and writes CSV lines as typed records.
//
// A Decoder splits its input into fields one physical line at a time, binds
// the fields to named, typed columns (Headers) by position and deserializes
// each non-empty cell with the column's Serializer. An Encoder performs the
// inverse, serializing each value and re-quoting it when needed.
//
// # Format
//
//   - The delimiter is any non-empty string (default ","); a delimiter that
//     contains the quote character or a line terminator is rejected.
//   - Fields may be quoted (default '"'); a quote inside a quoted field is
//     written twice.
//   - Lines end with "\r\n", "\r", "\n" or end of input. Quoted fields may
//     contain line terminators; line numbers in errors count physical lines.
//   - Output is always terminated with "\n".
//
// # Options
//
//   - TrimFields strips surrounding whitespace from cells.
//   - CheckCardinality rejects lines whose field count differs from the
//     number of headers. Without it extra fields are ignored and missing
//     fields are absent.
//   - IgnoreInvalidLines logs and skips lines with lexical, cardinality or
//     value errors. I/O errors always stop decoding.
//
// An empty cell never produces a value: the header is simply absent from the
// Record.
//
// # Example
//
//	dec, err := csvcodec.NewDecoder(file, csvcodec.Config{
//	    Resolver: csvcodec.NewResolverMap(csvcodec.NewHeader("age", csvcodec.Int)),
//	    Options:  csvcodec.TrimFields | csvcodec.CheckCardinality,
//	})
//	if err != nil {
//	    return err
//	}
//	for rec, err := range dec.Records() {
//	    if err != nil {
//	        return err
//	    }
//	    age, _ := rec.Get("age")
//	    fmt.Println(age.(int))
//	}
//
// Decoders and Encoders are single-pass and not safe for concurrent use.
package csvcodec
