package datasets

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("dataset not found")

// DatasetModel is a named, typed column list that imports decode into and
// exports encode from.
type DatasetModel struct {
	ID          string    `gorm:"primaryKey;type:text" json:"id"`
	Slug        string    `gorm:"uniqueIndex;not null" json:"slug"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Columns     string    `gorm:"type:text;not null" json:"-"` // JSON Schema
	Delimiter   string    `json:"delimiter,omitempty"`
	Options     string    `json:"options,omitempty"`
	RowCount    int64     `gorm:"-" json:"row_count"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

// RowModel is one imported record. Data holds the serialized text of every
// present column keyed by the schema label, so rows survive schema-free
// storage and are re-typed on export.
type RowModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	DatasetID   string    `gorm:"not null;index" json:"dataset_id"`
	ImportJobID string    `gorm:"index" json:"import_job_id,omitempty"`
	LineNumber  int       `json:"line_number"`
	Data        string    `gorm:"type:text;not null" json:"data"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
}

func (DatasetModel) TableName() string { return "datasets" }
func (RowModel) TableName() string     { return "dataset_rows" }

// Schema decodes the stored column list.
func (d DatasetModel) Schema() (Schema, error) {
	var s Schema
	if err := json.Unmarshal([]byte(d.Columns), &s); err != nil {
		return nil, fmt.Errorf("dataset %s: decode columns: %w", d.Slug, err)
	}
	return s, nil
}

// Values decodes the row's column texts.
func (r RowModel) Values() (map[string]string, error) {
	var m map[string]string
	if err := json.Unmarshal([]byte(r.Data), &m); err != nil {
		return nil, fmt.Errorf("row %d: decode data: %w", r.ID, err)
	}
	return m, nil
}

// AutoMigrate creates the dataset tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&DatasetModel{}, &RowModel{})
}

// FindBySlug loads a dataset by slug.
func FindBySlug(db *gorm.DB, slug string) (DatasetModel, error) {
	var d DatasetModel
	err := db.Where("slug = ?", slug).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return d, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return d, err
}

// FindByID loads a dataset by ID.
func FindByID(db *gorm.DB, id string) (DatasetModel, error) {
	var d DatasetModel
	err := db.Where("id = ?", id).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return d, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d, err
}

// CountRows returns the number of stored rows of a dataset.
func CountRows(db *gorm.DB, datasetID string) (int64, error) {
	var n int64
	err := db.Model(&RowModel{}).Where("dataset_id = ?", datasetID).Count(&n).Error
	return n, err
}
