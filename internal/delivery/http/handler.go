package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aeginies/backend/internal/domain"
	"github.com/aeginies/backend/internal/usecase"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	serviceName = "inies-catalogue"
	version     = "1.0.0"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// CatalogueWriter encodes a catalogue for download
type CatalogueWriter interface {
	Write(w io.Writer, catalogue *domain.Catalogue) error
}

// Handler holds dependencies for HTTP handlers. Any of them may be nil, in which
// case the matching endpoints answer 503.
type Handler struct {
	catalogue *usecase.CatalogueService
	solutions *usecase.SolutionService
	exporter  CatalogueWriter
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	catalogue *usecase.CatalogueService,
	solutions *usecase.SolutionService,
	exporter CatalogueWriter,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		catalogue: catalogue,
		solutions: solutions,
		exporter:  exporter,
		logger:    logger.Named("handler"),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	resp := gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": version,
	}
	if h.catalogue != nil {
		resp["products"] = h.catalogue.Len()
		resp["syncRunning"] = h.catalogue.SyncStatus().Running
	}
	c.JSON(http.StatusOK, resp)
}

// ListProducts handles GET /products?q=&type=&id=
func (h *Handler) ListProducts(c *gin.Context) {
	if !h.catalogueReady(c) {
		return
	}

	types, err := parseDeclarationTypes(c.QueryArray("type"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	products := h.catalogue.List(usecase.ProductFilter{
		Query: c.Query("q"),
		Types: types,
		IDs:   c.QueryArray("id"),
	})
	c.JSON(http.StatusOK, gin.H{
		"count":    len(products),
		"products": products,
	})
}

// SearchProducts handles GET /products/search?q=, matching names or ids
func (h *Handler) SearchProducts(c *gin.Context) {
	if !h.catalogueReady(c) {
		return
	}

	products := h.catalogue.Search(c.Query("q"))
	c.JSON(http.StatusOK, gin.H{
		"count":    len(products),
		"products": products,
	})
}

// GetProduct handles GET /products/:id
func (h *Handler) GetProduct(c *gin.Context) {
	if !h.catalogueReady(c) {
		return
	}

	product, err := h.catalogue.Get(c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// ScoreProducts handles POST /scores. The body is a product filter; an empty body
// scores the whole catalogue.
func (h *Handler) ScoreProducts(c *gin.Context) {
	if !h.catalogueReady(c) {
		return
	}

	var filter usecase.ProductFilter
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&filter); err != nil {
			if errors.Is(err, domain.ErrInvalidRequest) {
				h.writeError(c, err)
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}
	}

	result, err := h.catalogue.Score(filter)
	if errors.Is(err, domain.ErrInsufficientVariance) {
		// Still usable, every row is intermediate
		c.JSON(http.StatusOK, gin.H{
			"warning": "Not enough spread to rank products - all rows are intermediate",
			"data":    result,
		})
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// StartSync handles POST /sync. By default the run continues in the background;
// ?wait=true blocks and returns the report.
func (h *Handler) StartSync(c *gin.Context) {
	if !h.catalogueReady(c) {
		return
	}

	if wait, _ := strconv.ParseBool(c.Query("wait")); wait {
		report, err := h.catalogue.Sync(c.Request.Context())
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, report)
		return
	}

	if err := h.catalogue.StartSync(context.WithoutCancel(c.Request.Context())); err != nil {
		h.writeError(c, err)
		return
	}
	h.logger.Info("sync started", zap.String(requestIDKey, c.GetString(requestIDKey)))
	c.JSON(http.StatusAccepted, h.catalogue.SyncStatus())
}

// SyncStatus handles GET /sync
func (h *Handler) SyncStatus(c *gin.Context) {
	if !h.catalogueReady(c) {
		return
	}
	c.JSON(http.StatusOK, h.catalogue.SyncStatus())
}

// ExportCatalogue handles GET /catalogue/export, returning the catalogue as an xlsx download
func (h *Handler) ExportCatalogue(c *gin.Context) {
	if !h.catalogueReady(c) {
		return
	}
	if h.exporter == nil {
		h.unavailable(c, "Catalogue export")
		return
	}

	var buf bytes.Buffer
	if err := h.exporter.Write(&buf, h.catalogue.Snapshot()); err != nil {
		h.writeError(c, err)
		return
	}

	filename := fmt.Sprintf("inies_catalogue_%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ListSolutions handles GET /solutions?category=
func (h *Handler) ListSolutions(c *gin.Context) {
	if !h.solutionsReady(c) {
		return
	}

	solutions, err := h.solutions.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":     len(solutions),
		"solutions": solutions,
	})
}

// ListSolutionCategories handles GET /solutions/categories
func (h *Handler) ListSolutionCategories(c *gin.Context) {
	if !h.solutionsReady(c) {
		return
	}

	categories, err := h.solutions.Categories(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// GetSolution handles GET /solutions/:name
func (h *Handler) GetSolution(c *gin.Context) {
	if !h.solutionsReady(c) {
		return
	}

	solution, err := h.solutions.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, solution)
}

// SolutionImpact handles GET /solutions/:name/impact?quantity=
func (h *Handler) SolutionImpact(c *gin.Context) {
	if !h.solutionsReady(c) {
		return
	}

	quantity := 1.0
	if q := c.Query("quantity"); q != "" {
		v, err := strconv.ParseFloat(q, 64)
		if err != nil || v < 0 {
			h.writeError(c, fmt.Errorf("%w: quantity must be a non-negative number", domain.ErrInvalidRequest))
			return
		}
		quantity = v
	}

	name := c.Param("name")
	total, err := h.solutions.TotalImpact(c.Request.Context(), name, quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":        name,
		"quantity":    quantity,
		"totalImpact": total,
	})
}

// SaveSolution handles PUT /solutions/:name
func (h *Handler) SaveSolution(c *gin.Context) {
	if !h.solutionsReady(c) {
		return
	}

	var solution domain.Solution
	if err := c.ShouldBindJSON(&solution); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	saved, err := h.solutions.Save(c.Request.Context(), c.Param("name"), solution)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

// DeleteSolution handles DELETE /solutions/:name
func (h *Handler) DeleteSolution(c *gin.Context) {
	if !h.solutionsReady(c) {
		return
	}

	if err := h.solutions.Delete(c.Request.Context(), c.Param("name")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) catalogueReady(c *gin.Context) bool {
	if h.catalogue == nil {
		h.unavailable(c, "Catalogue service")
		return false
	}
	return true
}

func (h *Handler) solutionsReady(c *gin.Context) bool {
	if h.solutions == nil {
		h.unavailable(c, "Solution service")
		return false
	}
	return true
}

func (h *Handler) unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"error": what + " not configured",
	})
}

// writeError maps domain errors to HTTP statuses
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrSolutionNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrEmptyInput):
		status, message = http.StatusNotFound, "No products match the filter"
	case errors.Is(err, domain.ErrSyncInProgress):
		status, message = http.StatusConflict, "A sync is already running"
	case errors.Is(err, domain.ErrNoRemoteData), errors.Is(err, domain.ErrRemoteUnavailable):
		status, message = http.StatusBadGateway, "INIES database temporarily unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, message = http.StatusGatewayTimeout, "Request cancelled"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String(requestIDKey, c.GetString(requestIDKey)),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": message})
}

// parseDeclarationTypes reads declaration labels such as "Individuelle" or "N/A"
func parseDeclarationTypes(labels []string) ([]domain.DeclarationType, error) {
	var types []domain.DeclarationType
	for _, raw := range labels {
		for _, label := range strings.Split(raw, ",") {
			label = strings.TrimSpace(label)
			if label == "" {
				continue
			}
			t, ok := domain.LookupDeclarationLabel(label)
			if !ok {
				return nil, fmt.Errorf("%w: unknown declaration type %q", domain.ErrInvalidRequest, label)
			}
			types = append(types, t)
		}
	}
	return types, nil
}
