package archive

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes target/sector lookups over HTTP
type Handler struct {
	svc     *Service
	catalog *CatalogRepository
}

// NewHandler creates a new Handler
func NewHandler(svc *Service, catalog *CatalogRepository) *Handler {
	return &Handler{svc: svc, catalog: catalog}
}

// Register registers the archive lookup routes
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/sectors", h.SearchSectors)
	rg.GET("/catalog/:mission", h.ListCatalog)
}

// SearchSectors returns the sectors observing a target
func (h *Handler) SearchSectors(c *gin.Context) {
	target := c.Query("target")
	mission := c.Query("mission")
	if target == "" || mission == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target and mission query parameters are required"})
		return
	}

	sectors, err := h.svc.SearchSectors(c.Request.Context(), target, mission)
	if err != nil {
		if errors.Is(err, ErrTargetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
			return
		}
		if errors.Is(err, ErrArchiveUnavailable) {
			c.JSON(http.StatusBadGateway, gin.H{"error": "archive unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search sectors"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sectors": sectors})
}

// ListCatalog returns the persisted sector catalog for a mission
func (h *Handler) ListCatalog(c *gin.Context) {
	sectors, err := h.catalog.ListSectors(c.Request.Context(), c.Param("mission"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read catalog"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sectors": sectors})
}
