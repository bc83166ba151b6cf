package csvcodec

import (
	"io"
	"strings"
)

const (
	cr = '\r'
	lf = '\n'
)

// rawField is the text of one field and the physical line it started on.
type rawField struct {
	text string
	line int
}

// tokenizer splits a character stream into fields, one physical line at a
// time. A line includes any terminators embedded in quoted fields.
type tokenizer struct {
	cur   *cursor
	delim []rune
	quote rune
	line  int // physical line of the next unread character, 1-based
	buf   strings.Builder
}

func newTokenizer(r io.Reader, delimiter string, quote rune) *tokenizer {
	return &tokenizer{
		cur:   newCursor(r),
		delim: []rune(delimiter),
		quote: quote,
		line:  1,
	}
}

// readFields consumes one line and returns its fields together with the line
// number the line started on. It returns io.EOF when no input remains. On a
// lexical error the rest of the physical line has already been skipped, so
// the next call starts on a fresh line.
func (t *tokenizer) readFields() ([]rawField, int, error) {
	if _, err := t.cur.peek(); err != nil {
		return nil, t.line, err
	}
	first := t.line
	var fields []rawField
	for {
		f, eol, err := t.readField()
		if err != nil {
			return nil, first, err
		}
		fields = append(fields, f)
		if eol {
			return fields, first, nil
		}
	}
}

// readField reads one field and reports whether it also ended the line.
func (t *tokenizer) readField() (rawField, bool, error) {
	start := t.line
	t.buf.Reset()
	r, err := t.cur.peek()
	switch {
	case err == io.EOF:
		return rawField{line: start}, true, nil
	case err != nil:
		return rawField{}, false, err
	case r == t.quote:
		t.cur.next()
		return t.readQuoted(start)
	default:
		return t.readUnquoted(start)
	}
}

func (t *tokenizer) readUnquoted(start int) (rawField, bool, error) {
	for {
		r, err := t.cur.next()
		if err == io.EOF {
			return t.field(start), true, nil
		}
		if err != nil {
			return rawField{}, false, err
		}
		switch {
		case r == t.delim[0]:
			ok, err := t.cur.match(t.delim[1:])
			if err != nil {
				return rawField{}, false, err
			}
			if ok {
				return t.field(start), false, nil
			}
			// Not the whole delimiter: keep the rune as data.
			t.buf.WriteRune(r)
		case r == t.quote:
			return rawField{}, false, t.lexical(start, ErrBareQuote)
		case r == cr || r == lf:
			if err := t.endLine(r); err != nil {
				return rawField{}, false, err
			}
			return t.field(start), true, nil
		default:
			t.buf.WriteRune(r)
		}
	}
}

func (t *tokenizer) readQuoted(start int) (rawField, bool, error) {
	for {
		r, err := t.cur.next()
		if err == io.EOF {
			return rawField{}, false, &Error{Kind: KindLexical, Line: start, Err: ErrUnterminatedQuote}
		}
		if err != nil {
			return rawField{}, false, err
		}
		switch r {
		case t.quote:
			n, err := t.cur.peek()
			if err == nil && n == t.quote {
				t.cur.next()
				t.buf.WriteRune(t.quote)
				continue
			}
			return t.closeQuote(start, n, err)
		case cr, lf:
			t.buf.WriteRune(r)
			if r == cr {
				if n, err := t.cur.peek(); err == nil && n == lf {
					t.cur.next()
					t.buf.WriteRune(lf)
				} else if err != nil && err != io.EOF {
					return rawField{}, false, err
				}
			}
			t.line++
		default:
			t.buf.WriteRune(r)
		}
	}
}

// closeQuote ends a quoted field given the peeked rune n after the closing
// quote: the delimiter continues the line, a terminator or EOF ends it, and
// anything else is malformed.
func (t *tokenizer) closeQuote(start int, n rune, err error) (rawField, bool, error) {
	switch {
	case err == io.EOF:
		return t.field(start), true, nil
	case err != nil:
		return rawField{}, false, err
	case n == cr || n == lf:
		t.cur.next()
		if err := t.endLine(n); err != nil {
			return rawField{}, false, err
		}
		return t.field(start), true, nil
	}
	ok, err := t.cur.match(t.delim)
	if err != nil {
		return rawField{}, false, err
	}
	if ok {
		return t.field(start), false, nil
	}
	return rawField{}, false, t.lexical(start, ErrTrailingQuote)
}

// endLine finishes a terminator whose first rune r was already consumed.
func (t *tokenizer) endLine(r rune) error {
	t.line++
	if r != cr {
		return nil
	}
	n, err := t.cur.peek()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	if n == lf {
		t.cur.next()
	}
	return nil
}

// lexical skips to the start of the next physical line and returns a
// lexical error for the field that began on line start.
func (t *tokenizer) lexical(start int, cause error) error {
	if err := t.skipLine(); err != nil {
		return err
	}
	return &Error{Kind: KindLexical, Line: start, Err: cause}
}

func (t *tokenizer) skipLine() error {
	for {
		r, err := t.cur.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if r == cr || r == lf {
			return t.endLine(r)
		}
	}
}

func (t *tokenizer) field(start int) rawField {
	return rawField{text: t.buf.String(), line: start}
}
