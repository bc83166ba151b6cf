package csvcodec

import (
	"fmt"
	"reflect"
	"strings"
)

// Header is a named, typed column. Headers are compared by label only.
type Header struct {
	Label      string
	Serializer Serializer
}

// NewHeader returns a header for label, defaulting to the String serializer.
func NewHeader(label string, s Serializer) Header {
	if s == nil {
		s = String
	}
	return Header{Label: label, Serializer: s}
}

// Type reports the Go type of the header's values.
func (h Header) Type() reflect.Type {
	return h.serializer().ValueType()
}

func (h Header) serializer() Serializer {
	if h.Serializer == nil {
		return String
	}
	return h.Serializer
}

// NormalizeLabel folds case and collapses runs of whitespace, so "First  Name"
// and "first name" identify the same column.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}

// Headers is an ordered, non-empty header list whose labels are distinct
// under NormalizeLabel. Build one with NewHeaders.
type Headers struct {
	list  []Header
	index map[string]int
}

// NewHeaders validates hs and returns them as an immutable list.
func NewHeaders(hs ...Header) (Headers, error) {
	if len(hs) == 0 {
		return Headers{}, fmt.Errorf("%w: header list is empty", ErrInvalidConfig)
	}
	list := make([]Header, len(hs))
	index := make(map[string]int, len(hs))
	for i, h := range hs {
		key := NormalizeLabel(h.Label)
		if prev, ok := index[key]; ok {
			return Headers{}, fmt.Errorf("%w: %q and %q", ErrDuplicateHeader, list[prev].Label, h.Label)
		}
		index[key] = i
		list[i] = NewHeader(h.Label, h.Serializer)
	}
	return Headers{list: list, index: index}, nil
}

// MustHeaders is like NewHeaders but panics on error.
func MustHeaders(hs ...Header) Headers {
	headers, err := NewHeaders(hs...)
	if err != nil {
		panic(err)
	}
	return headers
}

// StringHeaders builds a list of String headers from labels.
func StringHeaders(labels ...string) (Headers, error) {
	hs := make([]Header, len(labels))
	for i, l := range labels {
		hs[i] = NewHeader(l, String)
	}
	return NewHeaders(hs...)
}

func (h Headers) Len() int { return len(h.list) }

// At returns the i-th header.
func (h Headers) At(i int) Header { return h.list[i] }

// List returns a copy of the headers in declaration order.
func (h Headers) List() []Header {
	out := make([]Header, len(h.list))
	copy(out, h.list)
	return out
}

// Labels returns the labels in declaration order.
func (h Headers) Labels() []string {
	out := make([]string, len(h.list))
	for i, hd := range h.list {
		out[i] = hd.Label
	}
	return out
}

// Index returns the position of the header matching label, or -1.
func (h Headers) Index(label string) int {
	if i, ok := h.index[NormalizeLabel(label)]; ok {
		return i
	}
	return -1
}

// Lookup returns the header matching label.
func (h Headers) Lookup(label string) (Header, bool) {
	i := h.Index(label)
	if i < 0 {
		return Header{}, false
	}
	return h.list[i], true
}

// Select returns the subset of headers named by labels, kept in declaration order.
func (h Headers) Select(labels ...string) (Headers, error) {
	want := make(map[int]bool, len(labels))
	for _, l := range labels {
		i := h.Index(l)
		if i < 0 {
			return Headers{}, fmt.Errorf("%w: unknown header %q", ErrInvalidConfig, l)
		}
		want[i] = true
	}
	var out []Header
	for i, hd := range h.list {
		if want[i] {
			out = append(out, hd)
		}
	}
	return NewHeaders(out...)
}

// HeaderResolver maps a label read from a header line to a header.
type HeaderResolver interface {
	Resolve(label string) (Header, bool)
}

// ResolverFunc adapts a function to HeaderResolver.
type ResolverFunc func(label string) (Header, bool)

func (f ResolverFunc) Resolve(label string) (Header, bool) { return f(label) }

// ResolverMap resolves labels by normalized name against a fixed set of headers.
type ResolverMap map[string]Header

// NewResolverMap indexes hs by normalized label.
func NewResolverMap(hs ...Header) ResolverMap {
	m := make(ResolverMap, len(hs))
	for _, h := range hs {
		m[NormalizeLabel(h.Label)] = h
	}
	return m
}

func (m ResolverMap) Resolve(label string) (Header, bool) {
	h, ok := m[NormalizeLabel(label)]
	if !ok {
		return Header{}, false
	}
	// The label from the input wins so written headers match what was read.
	return NewHeader(label, h.Serializer), true
}
