package transport

import (
	"net/http"

	"github.com/ds124wfegd/civicportal/internal/service"
	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	catalogService service.CatalogService
}

func NewCatalogHandler(catalogService service.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

func (h *CatalogHandler) ListResources(c *gin.Context) {
	resources, err := h.catalogService.ListResources(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resources": resources, "count": len(resources)})
}

func (h *CatalogHandler) GetResource(c *gin.Context) {
	resource, err := h.catalogService.GetResource(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, resource)
}

func (h *CatalogHandler) ListVenues(c *gin.Context) {
	venues, err := h.catalogService.ListVenues(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"venues": venues, "count": len(venues)})
}
