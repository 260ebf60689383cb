package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/parcela/internal/errors"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/services"
)

// AdminHandler serves the staff console. Routes sit behind RequireRole.
type AdminHandler struct {
	admin     *services.AdminService
	documents *services.DocumentService
}

// NewAdminHandler creates a new AdminHandler instance.
func NewAdminHandler(admin *services.AdminService, documents *services.DocumentService) *AdminHandler {
	return &AdminHandler{admin: admin, documents: documents}
}

// ReservationStatusRequest changes a reservation's status.
type ReservationStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending active completed cancelled expired"`
}

// LotUpdateRequest edits a lot. Omitted fields are unchanged.
type LotUpdateRequest struct {
	Price  *int64  `json:"price" binding:"omitempty,min=0"`
	Status *string `json:"status" binding:"omitempty,oneof=available reserved sold"`
}

// ZoneUpdateRequest edits a zone's descriptive fields.
type ZoneUpdateRequest struct {
	Name        *string  `json:"name" binding:"omitempty,min=1,max=100"`
	ZoningType  *string  `json:"zoning_type" binding:"omitempty,max=50"`
	BasePrice   *int64   `json:"base_price" binding:"omitempty,min=0"`
	LotSizeSqm  *float64 `json:"lot_size_sqm" binding:"omitempty,gt=0"`
	Description *string  `json:"description" binding:"omitempty,max=2000"`
}

// DocumentReviewRequest approves or rejects a document.
type DocumentReviewRequest struct {
	Status      string `json:"status" binding:"required,oneof=approved rejected"`
	ReviewNotes string `json:"review_notes" binding:"omitempty,max=1000"`
}

// Stats handles GET /api/v1/admin/stats.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.admin.Stats(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to load stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListReservations handles GET /api/v1/admin/reservations.
func (h *AdminHandler) ListReservations(c *gin.Context) {
	list, err := h.admin.ListReservations(c.Request.Context(), models.ReservationStatus(c.Query("status")))
	if err != nil {
		if errors.Is(err, services.ErrInvalidStatus) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to list reservations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": list, "count": len(list)})
}

// TransitionReservation handles PATCH /api/v1/admin/reservations/:id/status.
func (h *AdminHandler) TransitionReservation(c *gin.Context) {
	var req ReservationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, "Invalid request body")
		return
	}

	updated, err := h.admin.TransitionReservation(c.Request.Context(), c.Param("id"), models.ReservationStatus(req.Status))
	switch {
	case errors.Is(err, services.ErrReservationNotFound):
		apierrors.NotFound(c, "Reservation not found")
	case errors.Is(err, services.ErrInvalidStatus):
		apierrors.BadRequest(c, err.Error(), nil)
	case errors.Is(err, services.ErrInvalidTransition), errors.Is(err, services.ErrStatusChanged):
		apierrors.Conflict(c, apierrors.ErrConflict, err.Error(), nil)
	case err != nil:
		apierrors.InternalServerError(c, "Failed to change reservation status", err)
	default:
		logInfo(c, "Reservation status changed by admin", map[string]interface{}{
			"reservation_id": updated.ID,
			"status":         updated.Status,
		})
		c.JSON(http.StatusOK, gin.H{"reservation": updated})
	}
}

// UpdateLot handles PATCH /api/v1/admin/lots/:id.
func (h *AdminHandler) UpdateLot(c *gin.Context) {
	var req LotUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, "Invalid request body")
		return
	}

	update := models.LotUpdate{Price: req.Price}
	if req.Status != nil {
		status := models.LotStatus(*req.Status)
		update.Status = &status
	}

	lot, err := h.admin.UpdateLot(c.Request.Context(), c.Param("id"), update)
	switch {
	case errors.Is(err, services.ErrLotNotFound):
		apierrors.NotFound(c, "Lot not found")
	case errors.Is(err, services.ErrEmptyUpdate), errors.Is(err, services.ErrInvalidStatus):
		apierrors.BadRequest(c, err.Error(), nil)
	case err != nil:
		apierrors.InternalServerError(c, "Failed to update lot", err)
	default:
		c.JSON(http.StatusOK, LotResponse{Lot: lot})
	}
}

// UpdateZone handles PATCH /api/v1/admin/zones/:id.
func (h *AdminHandler) UpdateZone(c *gin.Context) {
	var req ZoneUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, "Invalid request body")
		return
	}

	zone, err := h.admin.UpdateZone(c.Request.Context(), c.Param("id"), models.ZoneUpdate{
		Name:        req.Name,
		ZoningType:  req.ZoningType,
		BasePrice:   req.BasePrice,
		LotSizeSqm:  req.LotSizeSqm,
		Description: req.Description,
	})
	switch {
	case errors.Is(err, services.ErrZoneNotFound):
		apierrors.NotFound(c, "Zone not found")
	case errors.Is(err, services.ErrEmptyUpdate):
		apierrors.BadRequest(c, err.Error(), nil)
	case err != nil:
		apierrors.InternalServerError(c, "Failed to update zone", err)
	default:
		c.JSON(http.StatusOK, gin.H{"zone": zone})
	}
}

// ReviewDocument handles PATCH /api/v1/admin/documents/:id.
func (h *AdminHandler) ReviewDocument(c *gin.Context) {
	var req DocumentReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, "Invalid request body")
		return
	}

	doc, err := h.documents.Review(c.Request.Context(), c.Param("id"), models.DocumentStatus(req.Status), req.ReviewNotes)
	switch {
	case errors.Is(err, services.ErrDocumentNotFound):
		apierrors.NotFound(c, "Document not found")
	case errors.Is(err, services.ErrInvalidReview):
		apierrors.BadRequest(c, err.Error(), nil)
	case err != nil:
		apierrors.InternalServerError(c, "Failed to review document", err)
	default:
		c.JSON(http.StatusOK, gin.H{"document": doc})
	}
}
