package csvcodec

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Options is a set of decode/encode flags, fixed for the lifetime of a
// Decoder or Encoder.
type Options uint8

const (
	// TrimFields strips leading and trailing whitespace from field text
	// before deserializing and after serializing.
	TrimFields Options = 1 << iota
	// CheckCardinality rejects lines whose field count differs from the header count.
	CheckCardinality
	// IgnoreInvalidLines skips malformed lines with a warning instead of failing.
	IgnoreInvalidLines
)

var optionNames = []struct {
	opt  Options
	name string
}{
	{TrimFields, "trim_fields"},
	{CheckCardinality, "check_cardinality"},
	{IgnoreInvalidLines, "ignore_invalid_lines"},
}

// Has reports whether all flags in o2 are set in o.
func (o Options) Has(o2 Options) bool { return o&o2 == o2 }

func (o Options) String() string {
	var names []string
	for _, n := range optionNames {
		if o.Has(n.opt) {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ",")
}

// ParseOptions parses a comma-separated list of option names such as
// "trim_fields,check_cardinality". Names are case-insensitive and "-" may be
// used in place of "_". The short forms trim, check and ignore are accepted.
func ParseOptions(s string) (Options, error) {
	var o Options
	for _, part := range strings.Split(s, ",") {
		name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(part)), "-", "_")
		switch name {
		case "":
		case "trim", "trim_fields":
			o |= TrimFields
		case "check", "check_cardinality":
			o |= CheckCardinality
		case "ignore", "ignore_invalid_lines":
			o |= IgnoreInvalidLines
		default:
			return 0, fmt.Errorf("%w: unknown option %q", ErrInvalidConfig, part)
		}
	}
	return o, nil
}

const (
	defaultDelimiter = ","
	defaultQuote     = '"'
)

// Config configures a Decoder or Encoder.
type Config struct {
	// Delimiter separates fields and may be several characters long. Default ",".
	Delimiter string
	// Quote encloses fields. Default '"'.
	Quote rune
	Options Options

	// Headers are the columns. Required for encoding; when empty the decoder
	// derives headers from the first line through Resolver.
	Headers Headers
	// Resolver maps header-line labels to typed headers. Unresolved labels
	// become String headers.
	Resolver HeaderResolver

	// Logger receives warnings for skipped lines. Default slog.Default().
	Logger *slog.Logger
	// OnSkip, if set, is called for every line skipped under IgnoreInvalidLines.
	OnSkip func(err *Error)
}

// withDefaults fills zero values and checks that the delimiter and quote
// cannot be confused with each other or with line terminators.
func (c Config) withDefaults() (Config, error) {
	if c.Delimiter == "" {
		c.Delimiter = defaultDelimiter
	}
	if c.Quote == 0 {
		c.Quote = defaultQuote
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if !utf8.ValidString(c.Delimiter) {
		return c, fmt.Errorf("%w: delimiter %q is not valid UTF-8", ErrInvalidConfig, c.Delimiter)
	}
	if c.Quote == '\r' || c.Quote == '\n' || c.Quote == utf8.RuneError {
		return c, fmt.Errorf("%w: quote %q", ErrInvalidConfig, c.Quote)
	}
	if strings.ContainsAny(c.Delimiter, "\r\n") {
		return c, fmt.Errorf("%w: delimiter %q contains a line terminator", ErrInvalidConfig, c.Delimiter)
	}
	if strings.ContainsRune(c.Delimiter, c.Quote) {
		return c, fmt.Errorf("%w: delimiter %q contains the quote character %q", ErrInvalidConfig, c.Delimiter, c.Quote)
	}
	return c, nil
}

// Validate reports whether c can be used to build a Decoder or Encoder.
func (c Config) Validate() error {
	_, err := c.withDefaults()
	return err
}
