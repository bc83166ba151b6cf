package exports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"csv-import-export/common"
	"csv-import-export/csvcodec"
	"csv-import-export/datasets"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// BatchSize is the number of rows fetched in a single query
	BatchSize = 2000

	// ProgressUpdateInterval controls how often export jobs update progress (in records)
	ProgressUpdateInterval = 10000

	// DownloadPrefix is the URL path export files are served under.
	DownloadPrefix = "/downloads"
)

// dispatch runs background jobs.
var dispatch = func(job func()) { go job() }

// RegisterRoutes mounts the export endpoints on rg.
func RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", StreamExport)
	rg.POST("", CreateExport)
	rg.GET("/:job_id", GetExport)
}

// exportPlan is everything needed to write a dataset's rows.
type exportPlan struct {
	dataset   datasets.DatasetModel
	format    string
	delimiter string
	headers   csvcodec.Headers
}

func newPlan(ds datasets.DatasetModel, format, delimiter string, fields []string) (exportPlan, error) {
	if format != "csv" && format != "ndjson" {
		return exportPlan{}, errors.New("invalid format, must be: csv or ndjson")
	}
	schema, err := ds.Schema()
	if err != nil {
		return exportPlan{}, err
	}
	headers, err := schema.Headers()
	if err != nil {
		return exportPlan{}, err
	}
	if len(fields) > 0 {
		if headers, err = headers.Select(fields...); err != nil {
			return exportPlan{}, err
		}
	}

	p := exportPlan{dataset: ds, format: format, delimiter: common.DefaultDelimiter, headers: headers}
	if ds.Delimiter != "" {
		p.delimiter = ds.Delimiter
	}
	if delimiter != "" {
		p.delimiter = delimiter
	}
	if err := (csvcodec.Config{Delimiter: p.delimiter}).Validate(); err != nil {
		return exportPlan{}, err
	}
	return p, nil
}

func planExport(db *gorm.DB, slug, format, delimiter string, fields []string) (exportPlan, int, error) {
	ds, err := datasets.FindBySlug(db, slug)
	if errors.Is(err, datasets.ErrNotFound) {
		return exportPlan{}, http.StatusNotFound, fmt.Errorf("dataset %q not found", slug)
	}
	if err != nil {
		return exportPlan{}, http.StatusInternalServerError, errors.New("failed to load dataset")
	}
	p, err := newPlan(ds, format, delimiter, fields)
	if err != nil {
		return exportPlan{}, http.StatusBadRequest, err
	}
	return p, 0, nil
}

// splitFields parses a comma-separated field list.
func splitFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// StreamExport godoc
// @Summary Stream export data (synchronous)
// @Description Streams the rows of a dataset directly in CSV or NDJSON format
// @Tags exports
// @Produce text/csv
// @Produce application/x-ndjson
// @Param dataset query string true "Dataset slug"
// @Param format query string true "Export format (csv or ndjson)"
// @Param delimiter query string false "CSV field delimiter, defaults to the dataset's"
// @Param fields query string false "Comma-separated columns to include"
// @Success 200 {file} file "Streaming export data"
// @Failure 400 {object} map[string]string "Bad request"
// @Failure 404 {object} map[string]string "Dataset not found"
// @Router /exports [get]
func StreamExport(c *gin.Context) {
	slug := c.Query("dataset")
	format := c.Query("format")

	if slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dataset parameter is required"})
		return
	}
	if format == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "format parameter is required (csv|ndjson)"})
		return
	}

	plan, status, err := planExport(common.GetDB(), slug, format, c.Query("delimiter"), splitFields(c.Query("fields")))
	if err != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s.%s", plan.dataset.Slug, timestamp, format)
	if format == "csv" {
		c.Header("Content-Type", "text/csv")
	} else {
		c.Header("Content-Type", "application/x-ndjson")
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Status(http.StatusOK)

	total, err := writeRows(c.Request.Context(), c.Writer, common.GetDB(), plan, nil, func(int) { c.Writer.Flush() })
	if err != nil {
		common.LoggerFrom(c).Error("stream export aborted", "dataset", plan.dataset.Slug, "rows", total, "error", err)
	}
	c.Set("rows_processed", total)
}

// writeRows writes the plan's rows that match filters to w, in insertion
// order. afterBatch is called with the running total after each batch.
func writeRows(ctx context.Context, w io.Writer, db *gorm.DB, plan exportPlan, filters map[string]string, afterBatch func(total int)) (int, error) {
	var write func(csvcodec.Record) error
	var flush func() error

	if plan.format == "csv" {
		enc, err := csvcodec.NewEncoder(w, csvcodec.Config{Delimiter: plan.delimiter, Headers: plan.headers})
		if err != nil {
			return 0, err
		}
		if err := enc.WriteHeaders(); err != nil {
			return 0, err
		}
		write, flush = enc.WriteRecord, enc.Flush
	} else {
		jw := json.NewEncoder(w)
		write = func(rec csvcodec.Record) error {
			obj, err := jsonObject(rec)
			if err != nil {
				return err
			}
			return jw.Encode(obj)
		}
		flush = func() error { return nil }
	}

	total := 0
	var lastID uint
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var rows []datasets.RowModel
		err := db.Where("dataset_id = ? AND id > ?", plan.dataset.ID, lastID).
			Order("id").Limit(BatchSize).Find(&rows).Error
		if err != nil {
			return total, fmt.Errorf("load rows: %w", err)
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			if len(filters) > 0 {
				values, err := row.Values()
				if err != nil {
					return total, err
				}
				if !datasets.MatchesFilters(values, filters) {
					continue
				}
			}
			rec, err := datasets.RowRecord(row, plan.headers)
			if err != nil {
				return total, err
			}
			if err := write(rec); err != nil {
				return total, err
			}
			total++
		}
		if err := flush(); err != nil {
			return total, err
		}
		if afterBatch != nil {
			afterBatch(total)
		}

		lastID = rows[len(rows)-1].ID
		if len(rows) < BatchSize {
			break
		}
	}
	return total, flush()
}

// jsonObject renders a record as a JSON object. Numbers and booleans keep
// their JSON types; NaN, infinities and every other value are written as
// their serialized text.
func jsonObject(rec csvcodec.Record) (map[string]any, error) {
	obj := make(map[string]any, rec.Len())
	for _, f := range rec.Fields() {
		switch v := f.Value.(type) {
		case int, int64, bool:
			obj[f.Header.Label] = v
		case float64:
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				obj[f.Header.Label] = v
				continue
			}
			text, err := f.Header.Serializer.Serialize(v)
			if err != nil {
				return nil, fmt.Errorf("serialize %q: %w", f.Header.Label, err)
			}
			obj[f.Header.Label] = text
		default:
			text, err := f.Header.Serializer.Serialize(v)
			if err != nil {
				return nil, fmt.Errorf("serialize %q: %w", f.Header.Label, err)
			}
			obj[f.Header.Label] = text
		}
	}
	return obj, nil
}

// CreateExportRequest represents the request for async export
type CreateExportRequest struct {
	IdempotencyKey string            `json:"idempotency_key" binding:"required"`
	Dataset        string            `json:"dataset" binding:"required"`
	Format         string            `json:"format" binding:"required,oneof=csv ndjson"`
	Delimiter      string            `json:"delimiter,omitempty"`
	Fields         []string          `json:"fields,omitempty"`  // Optional field selection
	Filters        map[string]string `json:"filters,omitempty"` // Optional filters
}

// CreateExportResponse represents the response for async export creation
type CreateExportResponse struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// GetExportResponse represents the response for export job status
type GetExportResponse struct {
	JobID        string     `json:"job_id"`
	DatasetID    string     `json:"dataset_id"`
	Format       string     `json:"format"`
	Delimiter    string     `json:"delimiter,omitempty"`
	Status       string     `json:"status"`
	TotalRecords int        `json:"total_records"`
	Error        string     `json:"error,omitempty"`
	DownloadURL  string     `json:"download_url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// CreateExport godoc
// @Summary Create async export job
// @Description Creates an export job to export filtered data asynchronously with download URL
// @Tags exports
// @Accept json
// @Produce json
// @Param export body CreateExportRequest true "Export configuration"
// @Success 202 {object} CreateExportResponse "Export job created"
// @Success 200 {object} CreateExportResponse "Existing job returned (idempotency)"
// @Failure 400 {object} map[string]string "Bad request"
// @Failure 404 {object} map[string]string "Dataset not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /exports [post]
func CreateExport(c *gin.Context) {
	db := common.GetDB()

	var req CreateExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existingJob common.ExportJob
	if err := db.Where("idempotency_key = ?", req.IdempotencyKey).First(&existingJob).Error; err == nil {
		c.JSON(http.StatusOK, CreateExportResponse{
			JobID:     existingJob.ID,
			Status:    existingJob.Status,
			CreatedAt: existingJob.CreatedAt,
		})
		return
	}

	plan, status, err := planExport(db, req.Dataset, req.Format, req.Delimiter, req.Fields)
	if err != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	fieldsJSON, _ := json.Marshal(plan.headers.Labels())
	filtersJSON, _ := json.Marshal(req.Filters)

	job := common.ExportJob{
		ID:             uuid.New().String(),
		IdempotencyKey: req.IdempotencyKey,
		DatasetID:      plan.dataset.ID,
		Format:         plan.format,
		Delimiter:      plan.delimiter,
		Fields:         string(fieldsJSON),
		Filters:        string(filtersJSON),
		Status:         common.JobStatusPending,
		CreatedAt:      time.Now(),
	}

	if err := db.Create(&job).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create export job"})
		return
	}

	common.LoggerFrom(c).Info("export job created", "job_id", job.ID, "dataset", plan.dataset.Slug, "format", job.Format)
	dispatch(func() { ProcessExportJob(context.Background(), job.ID) })

	c.JSON(http.StatusAccepted, CreateExportResponse{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	})
}

// GetExport godoc
// @Summary Get export job status
// @Description Retrieves the status and download URL of an export job
// @Tags exports
// @Produce json
// @Param job_id path string true "Export Job ID"
// @Success 200 {object} GetExportResponse "Export job details with download URL"
// @Failure 404 {object} map[string]string "Job not found"
// @Router /exports/{job_id} [get]
func GetExport(c *gin.Context) {
	var job common.ExportJob
	if err := common.GetDB().Where("id = ?", c.Param("job_id")).First(&job).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Export job not found"})
		return
	}

	c.Set("rows_processed", job.TotalRecords)

	c.JSON(http.StatusOK, GetExportResponse{
		JobID:        job.ID,
		DatasetID:    job.DatasetID,
		Format:       job.Format,
		Delimiter:    job.Delimiter,
		Status:       job.Status,
		TotalRecords: job.TotalRecords,
		Error:        job.Error,
		DownloadURL:  job.DownloadURL,
		CreatedAt:    job.CreatedAt,
		CompletedAt:  job.CompletedAt,
	})
}

// ProcessExportJob processes an export job in the background
func ProcessExportJob(ctx context.Context, jobID string) {
	db := common.GetDB()

	var job common.ExportJob
	if err := db.Where("id = ?", jobID).First(&job).Error; err != nil {
		slog.Error("export job not found", "job_id", jobID, "error", err)
		return
	}
	logger := slog.With("job_id", job.ID)

	job.Status = common.JobStatusProcessing
	db.Save(&job)

	filename, err := runExport(ctx, db, &job)
	now := time.Now()
	job.CompletedAt = &now
	if err != nil {
		job.Status = common.JobStatusFailed
		job.Error = err.Error()
		logger.Error("export failed", "error", err, "rows", job.TotalRecords)
	} else {
		job.Status = common.JobStatusCompleted
		job.DownloadURL = DownloadPrefix + "/" + filename
		logger.Info("export completed", "rows", job.TotalRecords, "file", job.FilePath)
	}
	db.Save(&job)
}

func runExport(ctx context.Context, db *gorm.DB, job *common.ExportJob) (string, error) {
	ds, err := datasets.FindByID(db, job.DatasetID)
	if err != nil {
		return "", err
	}
	var fields []string
	if job.Fields != "" {
		if err := json.Unmarshal([]byte(job.Fields), &fields); err != nil {
			return "", fmt.Errorf("decode fields: %w", err)
		}
	}
	var filters map[string]string
	if job.Filters != "" {
		if err := json.Unmarshal([]byte(job.Filters), &filters); err != nil {
			return "", fmt.Errorf("decode filters: %w", err)
		}
	}
	plan, err := newPlan(ds, job.Format, job.Delimiter, fields)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(common.ExportsDir, 0o750); err != nil {
		return "", err
	}
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s_%s.%s", ds.Slug, job.ID[:8], timestamp, job.Format)
	path := filepath.Join(common.ExportsDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return "", err
	}

	lastReported := 0
	total, werr := writeRows(ctx, file, db, plan, filters, func(n int) {
		if n-lastReported >= ProgressUpdateInterval {
			lastReported = n
			db.Model(job).Update("total_records", n)
		}
	})
	job.TotalRecords = total
	if cerr := file.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(path)
		return "", werr
	}
	job.FilePath = path
	return filename, nil
}
