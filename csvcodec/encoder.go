package csvcodec

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Encoder writes typed records as CSV lines, always terminated by "\n".
// It must not be used from more than one goroutine.
type Encoder struct {
	dst     *bufio.Writer
	sink    io.Writer
	cfg     Config
	headers Headers
	quote   string
	special string // any of these runes forces quoting
	line    int
	err     error
	closed  bool
}

// NewEncoder returns an Encoder writing to w. cfg.Headers is required.
func NewEncoder(w io.Writer, cfg Config) (*Encoder, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: writer is nil", ErrInvalidConfig)
	}
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	if cfg.Headers.Len() == 0 {
		return nil, fmt.Errorf("%w: encoder needs headers", ErrInvalidConfig)
	}
	q := string(cfg.Quote)
	first, _ := utf8.DecodeRuneInString(cfg.Delimiter)
	return &Encoder{
		dst:     bufio.NewWriterSize(w, defaultBufferSize),
		sink:    w,
		cfg:     cfg,
		headers: cfg.Headers,
		quote:   q,
		special: q + "\r\n" + string(first),
	}, nil
}

// Headers returns the header list records are written against.
func (e *Encoder) Headers() Headers { return e.headers }

// WriteHeaders writes the header labels as one line.
func (e *Encoder) WriteHeaders() error {
	if err := e.usable(); err != nil {
		return err
	}
	texts := make([]string, e.headers.Len())
	for i := range texts {
		texts[i] = e.headers.At(i).Label
	}
	return e.writeLine(texts)
}

// WriteRecord writes one line with a cell per header. Headers absent from
// rec are written as empty cells.
func (e *Encoder) WriteRecord(rec Record) error {
	if err := e.usable(); err != nil {
		return err
	}
	texts := make([]string, e.headers.Len())
	for i := range texts {
		h := e.headers.At(i)
		v, ok := rec.Get(h.Label)
		if !ok {
			continue
		}
		s, err := h.serializer().Serialize(v)
		if err != nil {
			return &Error{Kind: KindValue, Line: e.line + 1, Header: h.Label, Err: err}
		}
		texts[i] = s
	}
	return e.writeLine(texts)
}

// WriteAll writes every record and flushes.
func (e *Encoder) WriteAll(recs []Record) error {
	for _, rec := range recs {
		if err := e.WriteRecord(rec); err != nil {
			return err
		}
	}
	return e.Flush()
}

// Flush writes buffered output to the underlying writer.
func (e *Encoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if err := e.dst.Flush(); err != nil {
		e.err = ioError(err)
		return e.err
	}
	return nil
}

// Close flushes and, if the underlying writer is an io.Closer, closes it.
// Calling Close more than once is a no-op.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	ferr := e.Flush()
	if c, ok := e.sink.(io.Closer); ok {
		if err := c.Close(); err != nil && ferr == nil {
			return ioError(err)
		}
	}
	return ferr
}

func (e *Encoder) usable() error {
	if e.closed {
		return ErrClosed
	}
	return e.err
}

func (e *Encoder) writeLine(texts []string) error {
	for i, s := range texts {
		if i > 0 {
			if _, err := e.dst.WriteString(e.cfg.Delimiter); err != nil {
				return e.fail(err)
			}
		}
		if _, err := e.dst.WriteString(e.render(s)); err != nil {
			return e.fail(err)
		}
	}
	if err := e.dst.WriteByte('\n'); err != nil {
		return e.fail(err)
	}
	e.line++
	return nil
}

func (e *Encoder) fail(err error) error {
	e.err = ioError(err)
	return e.err
}

// render applies the field rendering rule: optional trim, then quote the
// whole text and double embedded quotes if it holds a quote, CR, LF or the
// delimiter. With a multi-rune delimiter any occurrence of its first rune
// forces quoting, since a trailing partial delimiter would otherwise merge
// with the real one on decode.
func (e *Encoder) render(s string) string {
	if e.cfg.Options.Has(TrimFields) {
		s = strings.TrimSpace(s)
	}
	if !e.needsQuote(s) {
		return s
	}
	return e.quote + strings.ReplaceAll(s, e.quote, e.quote+e.quote) + e.quote
}

func (e *Encoder) needsQuote(s string) bool {
	return strings.ContainsAny(s, e.special)
}
