package csvcodec

import (
	"errors"
	"fmt"
)

// Kind classifies codec errors.
type Kind int

const (
	// KindLexical covers malformed quoting and unterminated quotes.
	KindLexical Kind = iota + 1
	// KindCardinality is a field count mismatch under CheckCardinality.
	KindCardinality
	// KindValue is a serializer failure for a specific header and text.
	KindValue
	// KindIO wraps failures of the underlying reader or writer.
	KindIO
	// KindHeader is a header line that cannot produce a valid header list.
	KindHeader
)

func (k Kind) String() string {
	switch k {
	case KindLexical:
		return "lexical"
	case KindCardinality:
		return "cardinality"
	case KindValue:
		return "value"
	case KindIO:
		return "io"
	case KindHeader:
		return "header"
	default:
		return "unknown"
	}
}

var (
	// ErrBareQuote is returned when a quote appears inside an unquoted field.
	ErrBareQuote = errors.New("csvcodec: bare quote in non-quoted field")
	// ErrUnterminatedQuote is returned when input ends inside a quoted field.
	ErrUnterminatedQuote = errors.New("csvcodec: unterminated quoted field")
	// ErrTrailingQuote is returned when a closing quote is followed by something
	// other than a quote, the delimiter or a line terminator.
	ErrTrailingQuote = errors.New("csvcodec: unexpected character after closing quote")
	// ErrFieldCount is returned when a line's field count differs from the header count.
	ErrFieldCount = errors.New("csvcodec: wrong number of fields")
	// ErrNoHeader is returned when headers must be derived from an empty input.
	ErrNoHeader = errors.New("csvcodec: missing header line")
	// ErrDuplicateHeader is returned when two labels normalize to the same name.
	ErrDuplicateHeader = errors.New("csvcodec: duplicate header label")
	// ErrInvalidConfig is returned by constructors for unusable delimiter/quote settings.
	ErrInvalidConfig = errors.New("csvcodec: invalid configuration")
	// ErrClosed is returned when writing to a closed Encoder.
	ErrClosed = errors.New("csvcodec: encoder closed")
)

// Error is the single error type produced by decoding and encoding.
// Line is the 1-based physical line; zero when it does not apply.
type Error struct {
	Kind   Kind
	Line   int
	Header string
	Text   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Kind == KindIO:
		return fmt.Sprintf("csvcodec: io error: %v", e.Err)
	case e.Header != "":
		return fmt.Sprintf("csvcodec: %s error on line %d, header %q, text %q: %v", e.Kind, e.Line, e.Header, e.Text, e.Err)
	default:
		return fmt.Sprintf("csvcodec: %s error on line %d: %v", e.Kind, e.Line, e.Err)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsRecoverable reports whether err describes a single bad line that a
// decoder running with IgnoreInvalidLines may skip. I/O failures never are.
func IsRecoverable(err error) bool {
	var cerr *Error
	if !errors.As(err, &cerr) {
		return false
	}
	switch cerr.Kind {
	case KindLexical, KindCardinality, KindValue:
		return true
	default:
		return false
	}
}

// KindOf returns the Kind of err, or zero if err is not a codec error.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return 0
}

func ioError(err error) error {
	return &Error{Kind: KindIO, Err: err}
}
