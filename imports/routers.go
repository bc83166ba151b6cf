package imports

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"csv-import-export/common"
	"csv-import-export/csvcodec"
	"csv-import-export/datasets"
	"csv-import-export/parsers"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// BatchSize is the number of rows written in a single database transaction
	BatchSize = 2000

	// ProgressUpdateFrequency controls how often we save job progress to database
	// (every N batches). Set to 1 to update after every batch write
	ProgressUpdateFrequency = 1

	// MaxReportedErrors caps the row errors stored on a job.
	MaxReportedErrors = 1000
)

// dispatch runs background jobs.
var dispatch = func(job func()) { go job() }

// CreateImportRequest represents the JSON body for imports of remote files
type CreateImportRequest struct {
	Dataset   string `json:"dataset" binding:"required"`
	Format    string `json:"format" binding:"required,oneof=csv ndjson"`
	FileURL   string `json:"file_url" binding:"required"`
	Delimiter string `json:"delimiter"`
	Options   string `json:"options"`
}

// CreateImportResponse represents the response for import job creation
type CreateImportResponse struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// GetImportResponse represents the response for import job status
type GetImportResponse struct {
	JobID          string                          `json:"job_id"`
	DatasetID      string                          `json:"dataset_id"`
	Format         string                          `json:"format"`
	Delimiter      string                          `json:"delimiter"`
	Options        string                          `json:"options"`
	Status         string                          `json:"status"`
	TotalRecords   int                             `json:"total_records"`
	ProcessedCount int                             `json:"processed_count"`
	SuccessCount   int                             `json:"success_count"`
	FailCount      int                             `json:"fail_count"`
	SkippedLines   int                             `json:"skipped_lines"`
	Errors         []common.RecordValidationResult `json:"errors,omitempty"`
	CreatedAt      string                          `json:"created_at"`
	UpdatedAt      string                          `json:"updated_at"`
	CompletedAt    *string                         `json:"completed_at,omitempty"`
}

// RegisterRoutes mounts the import endpoints on rg.
func RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", CreateImport)
	rg.GET("/:job_id", GetImport)
}

// importParams are the per-job codec settings resolved from the request,
// the dataset and the service defaults, in that order.
type importParams struct {
	dataset   datasets.DatasetModel
	format    string
	delimiter string
	options   csvcodec.Options
}

func resolveParams(db *gorm.DB, slug, format, delimiter, options string) (importParams, int, error) {
	ds, err := datasets.FindBySlug(db, slug)
	if errors.Is(err, datasets.ErrNotFound) {
		return importParams{}, http.StatusNotFound, fmt.Errorf("dataset %q not found", slug)
	}
	if err != nil {
		return importParams{}, http.StatusInternalServerError, errors.New("failed to load dataset")
	}

	p := importParams{dataset: ds, format: format, delimiter: common.DefaultDelimiter, options: common.DefaultOptions}
	if ds.Delimiter != "" {
		p.delimiter = ds.Delimiter
	}
	if delimiter != "" {
		p.delimiter = delimiter
	}
	optText := ds.Options
	if options != "" {
		optText = options
	}
	if optText != "" {
		if p.options, err = csvcodec.ParseOptions(optText); err != nil {
			return importParams{}, http.StatusBadRequest, err
		}
	}
	if err := (csvcodec.Config{Delimiter: p.delimiter, Options: p.options}).Validate(); err != nil {
		return importParams{}, http.StatusBadRequest, err
	}
	return p, 0, nil
}

func formatFromName(name string) (string, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return "csv", true
	case ".ndjson", ".jsonl", ".json":
		return "ndjson", true
	}
	return "", false
}

func uploadPath(format string) string {
	ext := ".ndjson"
	if format == "csv" {
		ext = ".csv"
	}
	fileName := fmt.Sprintf("%s_%s%s", time.Now().Format("20060102_150405"), uuid.New().String()[:8], ext)
	return filepath.Join(common.UploadsDir, fileName)
}

// CreateImport godoc
// @Summary Create a new import job
// @Description Uploads a CSV or NDJSON file and imports it into a dataset in the background
// @Tags imports
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Param Idempotency-Key header string true "Unique key to prevent duplicate imports"
// @Param file formData file false "File to import (CSV or NDJSON)"
// @Param dataset formData string false "Slug of the target dataset"
// @Param delimiter formData string false "Field delimiter, may be several characters"
// @Param options formData string false "Codec options, e.g. trim_fields,check_cardinality,ignore_invalid_lines"
// @Success 202 {object} CreateImportResponse "Import job created"
// @Success 200 {object} CreateImportResponse "Existing job returned (idempotency)"
// @Failure 400 {object} map[string]string "Bad request"
// @Failure 404 {object} map[string]string "Dataset not found"
// @Router /imports [post]
func CreateImport(c *gin.Context) {
	db := common.GetDB()
	logger := common.LoggerFrom(c)

	idempotencyKey := c.GetHeader("Idempotency-Key")
	if idempotencyKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key header is required"})
		return
	}

	var existingJob common.ImportJob
	if err := db.Where("idempotency_key = ?", idempotencyKey).First(&existingJob).Error; err == nil {
		c.JSON(http.StatusOK, CreateImportResponse{
			JobID:     existingJob.ID,
			Status:    existingJob.Status,
			CreatedAt: existingJob.CreatedAt.Format(time.RFC3339),
		})
		return
	}

	if err := os.MkdirAll(common.UploadsDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to prepare uploads directory"})
		return
	}

	var params importParams
	var filePath string

	if strings.HasPrefix(c.GetHeader("Content-Type"), "multipart/form-data") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, common.MaxUploadSize)

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
			return
		}
		defer file.Close()

		slug := c.PostForm("dataset")
		if slug == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dataset is required"})
			return
		}
		format := c.PostForm("format")
		if format == "" {
			var ok bool
			if format, ok = formatFromName(header.Filename); !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "File must be .csv, .ndjson or .jsonl"})
				return
			}
		}
		if format != "csv" && format != "ndjson" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "format must be csv or ndjson"})
			return
		}

		var status int
		if params, status, err = resolveParams(db, slug, format, c.PostForm("delimiter"), c.PostForm("options")); err != nil {
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		filePath = uploadPath(format)
		if err := saveFile(file, filePath); err != nil {
			logger.Error("failed to save upload", "path", filePath, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
			return
		}
	} else {
		var req CreateImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		var status int
		var err error
		if params, status, err = resolveParams(db, req.Dataset, req.Format, req.Delimiter, req.Options); err != nil {
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		filePath = uploadPath(req.Format)
		if err := downloadFile(c.Request.Context(), req.FileURL, filePath); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Failed to download file: %v", err)})
			return
		}
	}

	now := time.Now()
	job := common.ImportJob{
		ID:             uuid.New().String(),
		IdempotencyKey: idempotencyKey,
		DatasetID:      params.dataset.ID,
		Format:         params.format,
		Delimiter:      params.delimiter,
		Options:        params.options.String(),
		Status:         common.JobStatusPending,
		FilePath:       filePath,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := db.Create(&job).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create import job"})
		return
	}

	logger.Info("import job created", "job_id", job.ID, "dataset", params.dataset.Slug, "format", job.Format, "delimiter", job.Delimiter, "options", job.Options)
	dispatch(func() { ProcessImportJob(context.Background(), job.ID) })

	c.JSON(http.StatusAccepted, CreateImportResponse{
		JobID:     job.ID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
	})
}

// GetImport godoc
// @Summary Get import job status
// @Description Retrieves the status, counts and row errors of an import job
// @Tags imports
// @Produce json
// @Param job_id path string true "Import Job ID"
// @Success 200 {object} GetImportResponse "Import job details"
// @Failure 404 {object} map[string]string "Job not found"
// @Router /imports/{job_id} [get]
func GetImport(c *gin.Context) {
	db := common.GetDB()
	jobID := c.Param("job_id")

	var job common.ImportJob
	if err := db.Where("id = ?", jobID).First(&job).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Import job not found"})
		return
	}

	c.Set("rows_processed", job.ProcessedCount)

	response := GetImportResponse{
		JobID:          job.ID,
		DatasetID:      job.DatasetID,
		Format:         job.Format,
		Delimiter:      job.Delimiter,
		Options:        job.Options,
		Status:         job.Status,
		TotalRecords:   job.TotalRecords,
		ProcessedCount: job.ProcessedCount,
		SuccessCount:   job.SuccessCount,
		FailCount:      job.FailCount,
		SkippedLines:   job.SkippedLines,
		CreatedAt:      job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      job.UpdatedAt.Format(time.RFC3339),
	}

	if job.CompletedAt != nil {
		completedStr := job.CompletedAt.Format(time.RFC3339)
		response.CompletedAt = &completedStr
	}

	if job.Errors != "" {
		var errs []common.RecordValidationResult
		if err := json.Unmarshal([]byte(job.Errors), &errs); err == nil {
			response.Errors = errs
		}
	}

	c.JSON(http.StatusOK, response)
}

func saveFile(src io.Reader, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// downloadFile downloads a file from URL
func downloadFile(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}
	return saveFile(io.LimitReader(resp.Body, common.MaxUploadSize), path)
}

// ProcessImportJob processes an import job in the background
func ProcessImportJob(ctx context.Context, jobID string) {
	db := common.GetDB()

	var job common.ImportJob
	if err := db.Where("id = ?", jobID).First(&job).Error; err != nil {
		slog.Error("import job not found", "job_id", jobID, "error", err)
		return
	}
	logger := slog.With("job_id", job.ID)

	job.Status = common.JobStatusProcessing
	job.UpdatedAt = time.Now()
	db.Save(&job)

	processErr := runImport(ctx, db, &job, logger)

	now := time.Now()
	job.CompletedAt = &now
	job.UpdatedAt = now
	if processErr != nil {
		job.Status = common.JobStatusFailed
		logger.Error("import failed", "error", processErr, "success", job.SuccessCount, "failed", job.FailCount)
	} else {
		job.Status = common.JobStatusCompleted
		logger.Info("import completed", "total", job.TotalRecords, "success", job.SuccessCount, "failed", job.FailCount, "skipped", job.SkippedLines)
	}
	db.Save(&job)
}

// runImport decodes the job's file into dataset rows. Rows stored before a
// fatal error stay stored; the error is appended to the job's row errors.
func runImport(ctx context.Context, db *gorm.DB, job *common.ImportJob, logger *slog.Logger) error {
	var report []common.RecordValidationResult
	record := func(r common.RecordValidationResult) {
		if len(report) < MaxReportedErrors {
			report = append(report, r)
		}
	}
	defer func() {
		slices.SortStableFunc(report, func(a, b common.RecordValidationResult) int {
			return cmp.Compare(a.RowNumber, b.RowNumber)
		})
		job.Errors = common.ResultsJSON(report)
	}()

	fail := func(err error) error {
		record(common.FromCodecError(err))
		return err
	}

	ds, err := datasets.FindByID(db, job.DatasetID)
	if err != nil {
		return fail(err)
	}
	schema, err := ds.Schema()
	if err != nil {
		return fail(err)
	}
	headers, err := schema.Headers()
	if err != nil {
		return fail(err)
	}
	opts, err := csvcodec.ParseOptions(job.Options)
	if err != nil {
		return fail(err)
	}

	file, err := os.Open(job.FilePath)
	if err != nil {
		return fail(fmt.Errorf("failed to open file: %w", err))
	}
	defer file.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	skipped := 0
	cfg := csvcodec.Config{
		Delimiter: job.Delimiter,
		Options:   opts,
		Logger:    logger,
		OnSkip: func(cerr *csvcodec.Error) {
			skipped++
			record(common.FromCodecError(cerr))
		},
	}

	var rows <-chan parsers.Row
	var errs <-chan error
	if job.Format == "ndjson" {
		cfg.Headers = headers
		rows, errs = parsers.ParseNDJSON(ctx, file, cfg)
	} else {
		cfg.Resolver = csvcodec.NewResolverMap(headers.List()...)
		rows, errs = parsers.ParseCSV(ctx, file, cfg)
	}

	validator := datasets.NewRowValidator(schema)
	var batch []datasets.RowModel
	var failed []common.RecordValidationResult
	batchesProcessed := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.CreateInBatches(batch, 500).Error
		})
		if err != nil {
			return err
		}
		job.SuccessCount += len(batch)
		batch = batch[:0]

		batchesProcessed++
		if batchesProcessed%ProgressUpdateFrequency == 0 {
			job.UpdatedAt = time.Now()
			db.Model(job).Updates(map[string]any{
				"total_records":   job.TotalRecords,
				"processed_count": job.ProcessedCount,
				"success_count":   job.SuccessCount,
				"fail_count":      job.FailCount,
				"updated_at":      job.UpdatedAt,
			})
		}
		return nil
	}

	var storeErr error
	for row := range rows {
		if storeErr != nil {
			continue
		}
		job.TotalRecords++
		job.ProcessedCount++

		result := validator.ValidateRecord(row.Record, row.Line)
		if !result.Valid {
			job.FailCount++
			failed = append(failed, *result)
			continue
		}
		model, err := datasets.NormalizeRow(ds.ID, job.ID, row.Line, row.Record, headers)
		if err != nil {
			job.FailCount++
			failed = append(failed, common.FromCodecError(err))
			continue
		}
		batch = append(batch, model)
		if len(batch) >= BatchSize {
			if storeErr = flush(); storeErr != nil {
				cancel()
			}
		}
	}
	parseErr := <-errs

	for _, r := range failed {
		record(r)
	}
	job.SkippedLines = skipped
	job.TotalRecords += skipped
	job.FailCount += skipped

	if storeErr != nil {
		return fail(fmt.Errorf("store rows: %w", storeErr))
	}
	if err := flush(); err != nil {
		return fail(fmt.Errorf("store rows: %w", err))
	}
	if parseErr != nil && !errors.Is(parseErr, context.Canceled) {
		return fail(parseErr)
	}
	return nil
}
