package datasets

import (
	"fmt"
	"time"

	"csv-import-export/common"
	"csv-import-export/csvcodec"
)

// Column types accepted in a ColumnSpec.
const (
	TypeString   = "string"
	TypeInt      = "int"
	TypeFloat    = "float"
	TypeBool     = "bool"
	TypeTime     = "time"
	TypeDuration = "duration"
	TypeUUID     = "uuid"
	TypeEnum     = "enum"
	TypeEmail    = "email"
)

var ColumnTypes = []string{TypeString, TypeInt, TypeFloat, TypeBool, TypeTime, TypeDuration, TypeUUID, TypeEnum, TypeEmail}

// ColumnSpec declares one dataset column.
type ColumnSpec struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Layout   string   `json:"layout,omitempty"` // time layout, default RFC 3339
	Values   []string `json:"values,omitempty"` // enum values
	Required bool     `json:"required,omitempty"`
}

// Schema is the ordered column list of a dataset.
type Schema []ColumnSpec

var emailSerializer csvcodec.Serializer = csvcodec.Funcs[string]{
	Encode: checkEmail,
	Decode: checkEmail,
}

func checkEmail(s string) (string, error) {
	if !common.ValidateEmail(s) {
		return "", fmt.Errorf("invalid email %q", s)
	}
	return s, nil
}

// Serializer returns the codec serializer for the column's type.
func (c ColumnSpec) Serializer() (csvcodec.Serializer, error) {
	switch c.Type {
	case TypeString, "":
		return csvcodec.String, nil
	case TypeInt:
		return csvcodec.Int64, nil
	case TypeFloat:
		return csvcodec.Float, nil
	case TypeBool:
		return csvcodec.Bool, nil
	case TypeTime:
		layout := c.Layout
		if layout == "" {
			layout = time.RFC3339
		}
		return csvcodec.Time(layout), nil
	case TypeDuration:
		return csvcodec.Duration, nil
	case TypeUUID:
		return csvcodec.UUID, nil
	case TypeEnum:
		if len(c.Values) == 0 {
			return nil, fmt.Errorf("column %q: enum needs values", c.Name)
		}
		return csvcodec.Enum(c.Values...), nil
	case TypeEmail:
		return emailSerializer, nil
	default:
		return nil, fmt.Errorf("column %q: unknown type %q", c.Name, c.Type)
	}
}

// Header maps the column to a codec header.
func (c ColumnSpec) Header() (csvcodec.Header, error) {
	s, err := c.Serializer()
	if err != nil {
		return csvcodec.Header{}, err
	}
	return csvcodec.NewHeader(c.Name, s), nil
}

// Headers builds the codec header list in column order.
func (s Schema) Headers() (csvcodec.Headers, error) {
	hs := make([]csvcodec.Header, 0, len(s))
	for _, c := range s {
		h, err := c.Header()
		if err != nil {
			return csvcodec.Headers{}, err
		}
		hs = append(hs, h)
	}
	return csvcodec.NewHeaders(hs...)
}

// Resolver types the labels of an uploaded header line by matching them
// against the schema. Unknown labels stay String columns.
func (s Schema) Resolver() (csvcodec.HeaderResolver, error) {
	hs, err := s.Headers()
	if err != nil {
		return nil, err
	}
	return csvcodec.NewResolverMap(hs.List()...), nil
}

// Column returns the column matching label.
func (s Schema) Column(label string) (ColumnSpec, bool) {
	key := csvcodec.NormalizeLabel(label)
	for _, c := range s {
		if csvcodec.NormalizeLabel(c.Name) == key {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// Missing returns the schema labels that do not appear in hs.
func (s Schema) Missing(hs csvcodec.Headers) []string {
	var out []string
	for _, c := range s {
		if hs.Index(c.Name) < 0 {
			out = append(out, c.Name)
		}
	}
	return out
}

// Unknown returns the labels of hs that the schema does not declare.
func (s Schema) Unknown(hs csvcodec.Headers) []string {
	var out []string
	for _, label := range hs.Labels() {
		if _, ok := s.Column(label); !ok {
			out = append(out, label)
		}
	}
	return out
}
