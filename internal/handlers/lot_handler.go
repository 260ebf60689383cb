package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/parcela/internal/errors"
	"github.com/stwalsh4118/parcela/internal/middleware"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/services"
)

// LotHandler handles catalogue HTTP requests for lots and zones.
type LotHandler struct {
	service services.CatalogService
}

// NewLotHandler creates a new LotHandler instance.
func NewLotHandler(service services.CatalogService) *LotHandler {
	return &LotHandler{service: service}
}

// ListLotsRequest represents the query parameters for the lot listing.
type ListLotsRequest struct {
	Status string `form:"status" binding:"omitempty,oneof=available reserved sold"`
	ZoneID string `form:"zone_id" binding:"omitempty,max=64"`
	Query  string `form:"q" binding:"omitempty,max=100"`
}

// FeatureRequest represents the path parameter of the by-feature lookup.
type FeatureRequest struct {
	FeatureID int64 `uri:"feature_id" binding:"min=0"`
}

// LotsResponse represents the response for the lot listing.
type LotsResponse struct {
	Lots  []models.LotWithZone `json:"lots"`
	Count int                  `json:"count"`
}

// LotResponse wraps a single lot.
type LotResponse struct {
	Lot *models.LotWithZone `json:"lot"`
}

// ZonesResponse represents the response for the zone listing.
type ZonesResponse struct {
	Zones []models.Zone `json:"zones"`
	Count int           `json:"count"`
}

// ListLots handles GET /api/v1/lots.
func (h *LotHandler) ListLots(c *gin.Context) {
	var req ListLotsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err, "Invalid query parameters")
		return
	}

	lots, err := h.service.ListLots(c.Request.Context(), models.LotFilter{
		Status: models.LotStatus(req.Status),
		ZoneID: req.ZoneID,
		Query:  req.Query,
	})
	if err != nil {
		if errors.Is(err, services.ErrInvalidStatus) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to list lots", err)
		return
	}

	c.JSON(http.StatusOK, LotsResponse{Lots: lots, Count: len(lots)})
}

// GetLot handles GET /api/v1/lots/:id.
func (h *LotHandler) GetLot(c *gin.Context) {
	lot, err := h.service.GetLot(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.lotError(c, err)
		return
	}
	c.JSON(http.StatusOK, LotResponse{Lot: lot})
}

// GetLotByFeature handles GET /api/v1/lots/by-feature/:feature_id.
// Map clicks arrive as renderer feature ids.
func (h *LotHandler) GetLotByFeature(c *gin.Context) {
	var req FeatureRequest
	if err := c.ShouldBindUri(&req); err != nil {
		bindFailed(c, err, "Feature id must be a non-negative integer")
		return
	}

	lot, err := h.service.GetLotByFeatureID(c.Request.Context(), req.FeatureID)
	if err != nil {
		h.lotError(c, err)
		return
	}
	c.JSON(http.StatusOK, LotResponse{Lot: lot})
}

// LotDetail handles GET /api/v1/lots/:id/detail. The call to action
// depends on whether the caller is signed in.
func (h *LotHandler) LotDetail(c *gin.Context) {
	_, authenticated := middleware.IdentityFrom(c)

	detail, err := h.service.LotDetail(c.Request.Context(), c.Param("id"), authenticated)
	if err != nil {
		h.lotError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ListZones handles GET /api/v1/zones.
func (h *LotHandler) ListZones(c *gin.Context) {
	zones, err := h.service.ListZones(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list zones", err)
		return
	}
	c.JSON(http.StatusOK, ZonesResponse{Zones: zones, Count: len(zones)})
}

// GetZone handles GET /api/v1/zones/:id.
func (h *LotHandler) GetZone(c *gin.Context) {
	zone, err := h.service.GetZone(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrZoneNotFound) {
			apierrors.NotFound(c, "Zone not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to load zone", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"zone": zone})
}

func (h *LotHandler) lotError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrLotNotFound):
		apierrors.NotFound(c, "Lot not found")
	case errors.Is(err, services.ErrInvalidFeatureID):
		apierrors.BadRequest(c, err.Error(), nil)
	default:
		apierrors.InternalServerError(c, "Failed to load lot", err)
	}
}
