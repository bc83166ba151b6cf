package datasets

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"csv-import-export/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// DatasetResponse is a dataset with its decoded columns.
type DatasetResponse struct {
	DatasetModel
	Columns Schema `json:"columns"`
}

// RegisterRoutes mounts the dataset endpoints on rg.
func RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", CreateDataset)
	rg.GET("", ListDatasets)
	rg.GET("/:slug", GetDataset)
}

// CreateDataset godoc
// @Summary Create a dataset
// @Description Declares a named, typed column list that CSV and NDJSON files can be imported into
// @Tags datasets
// @Accept json
// @Produce json
// @Param dataset body CreateDatasetRequest true "Dataset definition"
// @Success 201 {object} DatasetResponse "Dataset created"
// @Failure 400 {object} map[string]string "Bad request"
// @Failure 409 {object} map[string]string "Slug already in use"
// @Router /datasets [post]
func CreateDataset(c *gin.Context) {
	db := common.GetDB()

	var req CreateDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if result := ValidateDataset(req); !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid dataset", "details": result.Errors})
		return
	}

	datasetSlug := req.Slug
	if datasetSlug == "" {
		datasetSlug = slug.Make(req.Name)
	}
	if datasetSlug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot derive a slug from name"})
		return
	}
	if _, err := FindBySlug(db, datasetSlug); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Dataset slug already exists", "slug": datasetSlug})
		return
	} else if !errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up dataset"})
		return
	}

	columns, _ := json.Marshal(req.Columns)
	now := time.Now()
	dataset := DatasetModel{
		ID:          uuid.New().String(),
		Slug:        datasetSlug,
		Name:        req.Name,
		Description: req.Description,
		Columns:     string(columns),
		Delimiter:   req.Delimiter,
		Options:     req.Options,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.Create(&dataset).Error; err != nil {
		common.LoggerFrom(c).Error("failed to create dataset", "slug", datasetSlug, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create dataset"})
		return
	}

	common.LoggerFrom(c).Info("dataset created", "slug", dataset.Slug, "columns", len(req.Columns))
	c.JSON(http.StatusCreated, DatasetResponse{DatasetModel: dataset, Columns: req.Columns})
}

// ListDatasets godoc
// @Summary List datasets
// @Tags datasets
// @Produce json
// @Success 200 {array} DatasetResponse
// @Router /datasets [get]
func ListDatasets(c *gin.Context) {
	db := common.GetDB()

	var all []DatasetModel
	if err := db.Order("created_at").Find(&all).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list datasets"})
		return
	}

	out := make([]DatasetResponse, 0, len(all))
	for _, d := range all {
		resp, err := describe(d)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, gin.H{"datasets": out})
}

// GetDataset godoc
// @Summary Get a dataset
// @Tags datasets
// @Produce json
// @Param slug path string true "Dataset slug"
// @Success 200 {object} DatasetResponse
// @Failure 404 {object} map[string]string "Dataset not found"
// @Router /datasets/{slug} [get]
func GetDataset(c *gin.Context) {
	d, err := FindBySlug(common.GetDB(), c.Param("slug"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
		return
	}
	resp, err := describe(d)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func describe(d DatasetModel) (DatasetResponse, error) {
	schema, err := d.Schema()
	if err != nil {
		return DatasetResponse{}, err
	}
	d.RowCount, err = CountRows(common.GetDB(), d.ID)
	if err != nil {
		return DatasetResponse{}, err
	}
	return DatasetResponse{DatasetModel: d, Columns: schema}, nil
}
