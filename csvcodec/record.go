package csvcodec

import "fmt"

// Field is one present value of a Record.
type Field struct {
	Header Header
	Value  any
}

// Record is an immutable, ordered mapping from headers to values. Headers
// whose cell was empty are absent rather than stored as nil or "", so an
// empty string is never a present value.
type Record struct {
	fields []Field
	index  map[string]int
}

// Len returns the number of present fields.
func (r Record) Len() int { return len(r.fields) }

// Get returns the value for label.
func (r Record) Get(label string) (any, bool) {
	i, ok := r.index[NormalizeLabel(label)]
	if !ok {
		return nil, false
	}
	return r.fields[i].Value, true
}

// Has reports whether label is present.
func (r Record) Has(label string) bool {
	_, ok := r.index[NormalizeLabel(label)]
	return ok
}

// Fields returns a copy of the present fields in header order.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Labels returns the labels of the present fields in header order.
func (r Record) Labels() []string {
	out := make([]string, len(r.fields))
	for i, f := range r.fields {
		out[i] = f.Header.Label
	}
	return out
}

// Strings serializes every present field, keyed by label.
func (r Record) Strings() (map[string]string, error) {
	out := make(map[string]string, len(r.fields))
	for _, f := range r.fields {
		s, err := f.Header.serializer().Serialize(f.Value)
		if err != nil {
			return nil, fmt.Errorf("serialize %q: %w", f.Header.Label, err)
		}
		out[f.Header.Label] = s
	}
	return out, nil
}

// Equal reports whether r and o hold the same labels with equal values.
// Values are compared with ==, so they must be comparable.
func (r Record) Equal(o Record) bool {
	if len(r.fields) != len(o.fields) {
		return false
	}
	for i, f := range r.fields {
		g := o.fields[i]
		if NormalizeLabel(f.Header.Label) != NormalizeLabel(g.Header.Label) || f.Value != g.Value {
			return false
		}
	}
	return true
}

// RecordBuilder assembles a Record against a header list.
type RecordBuilder struct {
	headers Headers
	values  []any
	present []bool
}

// NewRecordBuilder returns a builder for records over headers.
func NewRecordBuilder(headers Headers) *RecordBuilder {
	return &RecordBuilder{
		headers: headers,
		values:  make([]any, headers.Len()),
		present: make([]bool, headers.Len()),
	}
}

// Set stores value under label. A nil value or an empty string clears the
// field, matching how an empty cell decodes.
func (b *RecordBuilder) Set(label string, value any) error {
	i := b.headers.Index(label)
	if i < 0 {
		return fmt.Errorf("unknown header %q", label)
	}
	b.setAt(i, value)
	return nil
}

// MustSet is like Set but panics on an unknown label.
func (b *RecordBuilder) MustSet(label string, value any) *RecordBuilder {
	if err := b.Set(label, value); err != nil {
		panic(err)
	}
	return b
}

func (b *RecordBuilder) setAt(i int, value any) {
	if value == "" {
		value = nil
	}
	b.values[i] = value
	b.present[i] = value != nil
}

// Build returns the record in header declaration order. The builder may be
// reused afterwards; later changes do not affect built records.
func (b *RecordBuilder) Build() Record {
	r := Record{index: make(map[string]int)}
	for i, ok := range b.present {
		if !ok {
			continue
		}
		h := b.headers.At(i)
		r.index[NormalizeLabel(h.Label)] = len(r.fields)
		r.fields = append(r.fields, Field{Header: h, Value: b.values[i]})
	}
	return r
}

// NewRecord builds a record from label/value pairs.
func NewRecord(headers Headers, values map[string]any) (Record, error) {
	b := NewRecordBuilder(headers)
	for label, v := range values {
		if err := b.Set(label, v); err != nil {
			return Record{}, err
		}
	}
	return b.Build(), nil
}
