package common

import (
	"time"

	"gorm.io/gorm"
)

// ImportJob tracks one uploaded file being decoded into a dataset.
type ImportJob struct {
	ID             string     `gorm:"primaryKey;type:text" json:"id"`
	IdempotencyKey string     `gorm:"uniqueIndex;not null" json:"idempotency_key"`
	DatasetID      string     `gorm:"not null;index" json:"dataset_id"`
	Format         string     `gorm:"not null" json:"format"` // csv, ndjson
	Delimiter      string     `gorm:"not null" json:"delimiter"`
	Options        string     `json:"options"`
	Status         string     `gorm:"not null" json:"status"` // pending, processing, completed, failed
	FilePath       string     `json:"file_path,omitempty"`
	TotalRecords   int        `gorm:"default:0" json:"total_records"`
	ProcessedCount int        `gorm:"default:0" json:"processed_count"`
	SuccessCount   int        `gorm:"default:0" json:"success_count"`
	FailCount      int        `gorm:"default:0" json:"fail_count"`
	SkippedLines   int        `gorm:"default:0" json:"skipped_lines"`
	Errors         string     `gorm:"type:text" json:"errors,omitempty"` // JSON array of RecordValidationResult
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null" json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// ExportJob tracks an asynchronous export of a dataset to a file.
type ExportJob struct {
	ID             string     `gorm:"primaryKey;type:text" json:"id"`
	IdempotencyKey string     `gorm:"uniqueIndex;not null" json:"idempotency_key"`
	DatasetID      string     `gorm:"not null;index" json:"dataset_id"`
	Format         string     `gorm:"not null" json:"format"` // csv, ndjson
	Delimiter      string     `json:"delimiter,omitempty"`
	Fields         string     `gorm:"type:text" json:"fields,omitempty"`  // JSON array of labels
	Filters        string     `gorm:"type:text" json:"filters,omitempty"` // JSON object label -> text
	Status         string     `gorm:"not null" json:"status"`
	Error          string     `gorm:"type:text" json:"error,omitempty"`
	FilePath       string     `json:"file_path,omitempty"`
	DownloadURL    string     `json:"download_url,omitempty"`
	TotalRecords   int        `gorm:"default:0" json:"total_records"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// ApiMetric is one handled request.
type ApiMetric struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	RequestID     string    `gorm:"index" json:"request_id"`
	Endpoint      string    `gorm:"not null" json:"endpoint"`
	Method        string    `gorm:"not null" json:"method"`
	StatusCode    int       `gorm:"not null" json:"status_code"`
	DurationMs    int       `gorm:"not null" json:"duration_ms"`
	RowsProcessed int       `gorm:"default:0" json:"rows_processed"`
	Errors        string    `gorm:"type:text" json:"errors,omitempty"`
	Timestamp     time.Time `gorm:"not null" json:"timestamp"`
}

func (ImportJob) TableName() string { return "import_jobs" }
func (ExportJob) TableName() string { return "export_jobs" }
func (ApiMetric) TableName() string { return "api_metrics" }

// AutoMigrateJobs creates the job tracking tables.
func AutoMigrateJobs(conn *gorm.DB) error {
	return conn.AutoMigrate(&ImportJob{}, &ExportJob{}, &ApiMetric{})
}
