package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/parcela/internal/errors"
	"github.com/stwalsh4118/parcela/internal/services"
)

const geoJSONContentType = "application/geo+json"

// MapHandler serves the GeoJSON sources and paint style of the map.
type MapHandler struct {
	maps *services.MapService
}

// NewMapHandler creates a new MapHandler instance.
func NewMapHandler(maps *services.MapService) *MapHandler {
	return &MapHandler{maps: maps}
}

// Zones handles GET /api/v1/map/zones.
func (h *MapHandler) Zones(c *gin.Context) {
	fc, err := h.maps.ZoneFeatures(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to build zone features", err)
		return
	}
	c.JSON(http.StatusOK, fc)
}

// ZoneLabels handles GET /api/v1/map/zone-labels.
func (h *MapHandler) ZoneLabels(c *gin.Context) {
	fc, err := h.maps.ZoneLabels(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to build zone labels", err)
		return
	}
	c.JSON(http.StatusOK, fc)
}

// Lots handles GET /api/v1/map/lots. The body is served from the
// feature cache as already-encoded JSON.
func (h *MapHandler) Lots(c *gin.Context) {
	body, err := h.maps.LotFeatures(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to build lot features", err)
		return
	}
	c.Data(http.StatusOK, geoJSONContentType, body)
}

// LotLabels handles GET /api/v1/map/lot-labels.
func (h *MapHandler) LotLabels(c *gin.Context) {
	body, err := h.maps.LotLabels(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to build lot labels", err)
		return
	}
	c.Data(http.StatusOK, geoJSONContentType, body)
}

// Style handles GET /api/v1/map/style.
func (h *MapHandler) Style(c *gin.Context) {
	c.JSON(http.StatusOK, h.maps.Style())
}
