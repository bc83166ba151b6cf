package csvcodec

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Serializer converts between a column's value and its text form.
type Serializer interface {
	Serialize(v any) (string, error)
	Deserialize(text string) (any, error)
	ValueType() reflect.Type
}

// Funcs adapts a typed encode/decode pair into a Serializer.
type Funcs[T any] struct {
	Encode func(T) (string, error)
	Decode func(string) (T, error)
}

func (f Funcs[T]) Serialize(v any) (string, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return "", fmt.Errorf("expected %T, got %T", zero, v)
	}
	return f.Encode(t)
}

func (f Funcs[T]) Deserialize(text string) (any, error) {
	return f.Decode(text)
}

func (f Funcs[T]) ValueType() reflect.Type {
	return reflect.TypeFor[T]()
}

// String is the identity serializer.
var String Serializer = Funcs[string]{
	Encode: func(s string) (string, error) { return s, nil },
	Decode: func(s string) (string, error) { return s, nil },
}

// Int serializes int values in base 10.
var Int Serializer = Funcs[int]{
	Encode: func(i int) (string, error) { return strconv.Itoa(i), nil },
	Decode: strconv.Atoi,
}

// Int64 serializes int64 values in base 10.
var Int64 Serializer = Funcs[int64]{
	Encode: func(i int64) (string, error) { return strconv.FormatInt(i, 10), nil },
	Decode: func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) },
}

// Float serializes float64 values using the shortest exact representation.
var Float Serializer = Funcs[float64]{
	Encode: func(f float64) (string, error) { return strconv.FormatFloat(f, 'g', -1, 64), nil },
	Decode: func(s string) (float64, error) { return strconv.ParseFloat(s, 64) },
}

// Bool writes true/false and accepts the usual spreadsheet spellings:
// true/false, t/f, yes/no, y/n, 1/0, case-insensitive.
var Bool Serializer = Funcs[bool]{
	Encode: func(b bool) (string, error) { return strconv.FormatBool(b), nil },
	Decode: parseBool,
}

// Duration serializes time.Duration using its String form.
var Duration Serializer = Funcs[time.Duration]{
	Encode: func(d time.Duration) (string, error) { return d.String(), nil },
	Decode: time.ParseDuration,
}

// UUID serializes uuid.UUID in canonical form.
var UUID Serializer = Funcs[uuid.UUID]{
	Encode: func(u uuid.UUID) (string, error) { return u.String(), nil },
	Decode: uuid.Parse,
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "t", "yes", "y", "1":
		return true, nil
	case "false", "f", "no", "n", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// Time returns a serializer for time.Time values in the given layout.
func Time(layout string) Serializer {
	return Funcs[time.Time]{
		Encode: func(t time.Time) (string, error) { return t.Format(layout), nil },
		Decode: func(s string) (time.Time, error) { return time.Parse(layout, s) },
	}
}

// Enum returns a string serializer restricted to the given values.
func Enum(values ...string) Serializer {
	allowed := make(map[string]bool, len(values))
	for _, v := range values {
		allowed[v] = true
	}
	check := func(s string) (string, error) {
		if !allowed[s] {
			return "", fmt.Errorf("value %q must be one of: %s", s, strings.Join(values, ", "))
		}
		return s, nil
	}
	return Funcs[string]{Encode: check, Decode: check}
}
