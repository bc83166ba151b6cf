package datasets

import (
	"fmt"
	"strings"

	"csv-import-export/common"
	"csv-import-export/csvcodec"
)

// CreateDatasetRequest is the body of POST /datasets.
type CreateDatasetRequest struct {
	Name        string       `json:"name" binding:"required"`
	Slug        string       `json:"slug"`
	Description string       `json:"description"`
	Columns     []ColumnSpec `json:"columns" binding:"required"`
	Delimiter   string       `json:"delimiter"`
	Options     string       `json:"options"`
}

// ValidateDataset checks a dataset definition before it is stored.
func ValidateDataset(req CreateDatasetRequest) *common.RecordValidationResult {
	result := &common.RecordValidationResult{
		RecordID: req.Slug,
		Valid:    true,
	}

	if err := common.ValidateRequired("name", req.Name); err != nil {
		result.AddError(err.Field, err.Message)
	}
	if req.Slug != "" && !common.ValidateKebabCase(req.Slug) {
		result.AddError("slug", "Slug must be kebab-case")
	}

	if len(req.Columns) == 0 {
		result.AddError("columns", "At least one column is required")
	}
	seen := make(map[string]bool, len(req.Columns))
	for i, c := range req.Columns {
		field := fmt.Sprintf("columns[%d]", i)
		if strings.TrimSpace(c.Name) == "" {
			result.AddError(field+".name", "Column name is required")
			continue
		}
		key := csvcodec.NormalizeLabel(c.Name)
		if seen[key] {
			result.AddError(field+".name", fmt.Sprintf("Duplicate column %q", c.Name))
		}
		seen[key] = true

		if c.Type != "" {
			if err := common.ValidateEnum(field+".type", c.Type, ColumnTypes); err != nil {
				result.AddError(err.Field, err.Message)
				continue
			}
		}
		if c.Type == TypeEnum && len(c.Values) == 0 {
			result.AddError(field+".values", "Enum columns need at least one value")
		}
		if c.Type != TypeTime && c.Layout != "" {
			result.AddError(field+".layout", "Layout only applies to time columns")
		}
	}

	cfg := csvcodec.Config{Delimiter: req.Delimiter}
	if req.Options != "" {
		opts, err := csvcodec.ParseOptions(req.Options)
		if err != nil {
			result.AddError("options", err.Error())
		}
		cfg.Options = opts
	}
	if err := cfg.Validate(); err != nil {
		result.AddError("delimiter", err.Error())
	}

	return result
}

// RowValidator applies schema rules that the codec does not enforce.
type RowValidator struct {
	schema Schema
}

func NewRowValidator(schema Schema) *RowValidator {
	return &RowValidator{schema: schema}
}

// ValidateRecord checks a decoded record against the schema.
func (v *RowValidator) ValidateRecord(rec csvcodec.Record, line int) *common.RecordValidationResult {
	result := &common.RecordValidationResult{
		RowNumber: line,
		Valid:     true,
	}
	for _, c := range v.schema {
		if c.Required && !rec.Has(c.Name) {
			result.AddError(c.Name, fmt.Sprintf("%s is required", c.Name))
		}
	}
	return result
}
