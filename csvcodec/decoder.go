package csvcodec

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

type decoderState int

const (
	stateNotStarted decoderState = iota
	stateBuffered
	stateExhausted
	stateFailed
)

// Decoder reads typed records from CSV input. It is single-pass and must not
// be used from more than one goroutine.
type Decoder struct {
	tok     *tokenizer
	cfg     Config
	headers Headers

	state    decoderState
	next     Record
	nextLine int
	lastLine int
	err      error
	skipped  int
}

// NewDecoder returns a Decoder reading from r. When cfg.Headers is empty the
// first line is read immediately and resolved into headers.
func NewDecoder(r io.Reader, cfg Config) (*Decoder, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: reader is nil", ErrInvalidConfig)
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	d := &Decoder{
		tok:     newTokenizer(r, cfg.Delimiter, cfg.Quote),
		cfg:     cfg,
		headers: cfg.Headers,
	}
	if d.headers.Len() == 0 {
		if d.headers, err = d.readHeaders(); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// readHeaders tokenizes the header line and resolves each label.
func (d *Decoder) readHeaders() (Headers, error) {
	fields, line, err := d.tok.readFields()
	if err == io.EOF {
		return Headers{}, &Error{Kind: KindHeader, Line: line, Err: ErrNoHeader}
	}
	if err != nil {
		return Headers{}, err
	}
	hs := make([]Header, len(fields))
	for i, f := range fields {
		label := f.text
		if d.cfg.Options.Has(TrimFields) {
			label = strings.TrimSpace(label)
		}
		h, ok := Header{}, false
		if d.cfg.Resolver != nil {
			h, ok = d.cfg.Resolver.Resolve(label)
		}
		if !ok {
			h = NewHeader(label, String)
		}
		hs[i] = h
	}
	headers, err := NewHeaders(hs...)
	if err != nil {
		return Headers{}, &Error{Kind: KindHeader, Line: line, Err: err}
	}
	return headers, nil
}

// Headers returns the header list used to bind fields.
func (d *Decoder) Headers() Headers { return d.headers }

// Line returns the physical line the next read starts on.
func (d *Decoder) Line() int { return d.tok.line }

// RecordLine returns the physical line the record last returned by Read
// started on, or zero before the first record.
func (d *Decoder) RecordLine() int { return d.lastLine }

// Skipped returns the number of lines dropped under IgnoreInvalidLines.
func (d *Decoder) Skipped() int { return d.skipped }

// More reports whether another call to Read will return a record or an
// error. It buffers the next record, so a following Read does not pull again.
func (d *Decoder) More() bool {
	if d.state == stateNotStarted {
		d.fill()
	}
	return d.state == stateBuffered || d.state == stateFailed
}

// Read returns the next record, io.EOF once input is exhausted, or the error
// that stopped decoding. After an error every call returns the same error.
func (d *Decoder) Read() (Record, error) {
	if d.state == stateNotStarted {
		d.fill()
	}
	switch d.state {
	case stateBuffered:
		rec := d.next
		d.next = Record{}
		d.lastLine = d.nextLine
		d.state = stateNotStarted
		return rec, nil
	case stateFailed:
		return Record{}, d.err
	default:
		return Record{}, io.EOF
	}
}

// ReadAll reads every remaining record.
func (d *Decoder) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := d.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// Records iterates over the remaining records. Iteration stops after the
// first error is yielded.
func (d *Decoder) Records() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, err := d.Read()
			if err == io.EOF {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// Err returns the error that stopped decoding, if any.
func (d *Decoder) Err() error {
	if d.state == stateFailed {
		return d.err
	}
	return nil
}

// fill pulls lines until one decodes, input ends, or an error must propagate.
func (d *Decoder) fill() {
	for {
		rec, line, err := d.decodeLine()
		switch {
		case err == nil:
			d.next, d.nextLine, d.state = rec, line, stateBuffered
			return
		case err == io.EOF:
			d.state = stateExhausted
			return
		case d.cfg.Options.Has(IgnoreInvalidLines) && IsRecoverable(err):
			d.skip(err)
		default:
			d.err, d.state = err, stateFailed
			return
		}
	}
}

func (d *Decoder) skip(err error) {
	d.skipped++
	var cerr *Error
	errors.As(err, &cerr)
	d.cfg.Logger.Warn("skipping invalid line", "line", cerr.Line, "kind", cerr.Kind.String(), "error", err)
	if d.cfg.OnSkip != nil {
		d.cfg.OnSkip(cerr)
	}
}

// decodeLine tokenizes one whole physical line before binding any field, so
// a bad value never leaves the tokenizer mid-line.
func (d *Decoder) decodeLine() (Record, int, error) {
	fields, line, err := d.tok.readFields()
	if err != nil {
		return Record{}, line, err
	}
	n := d.headers.Len()
	if len(fields) != n && d.cfg.Options.Has(CheckCardinality) {
		return Record{}, line, &Error{
			Kind: KindCardinality,
			Line: line,
			Err:  fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(fields), n),
		}
	}
	b := NewRecordBuilder(d.headers)
	for i := 0; i < n && i < len(fields); i++ {
		text := fields[i].text
		if d.cfg.Options.Has(TrimFields) {
			text = strings.TrimSpace(text)
		}
		if text == "" {
			continue
		}
		h := d.headers.At(i)
		v, err := h.serializer().Deserialize(text)
		if err != nil {
			return Record{}, line, &Error{Kind: KindValue, Line: fields[i].line, Header: h.Label, Text: text, Err: err}
		}
		b.setAt(i, v)
	}
	return b.Build(), line, nil
}
