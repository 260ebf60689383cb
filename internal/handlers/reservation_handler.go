package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/parcela/internal/errors"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/reservation"
	"github.com/stwalsh4118/parcela/internal/services"
)

// ReservationHandler serves the reservation wizard and the buyer's
// reservation list.
type ReservationHandler struct {
	service *services.ReservationService
}

// NewReservationHandler creates a new ReservationHandler instance.
func NewReservationHandler(service *services.ReservationService) *ReservationHandler {
	return &ReservationHandler{service: service}
}

// StartWizardRequest optionally preselects a lot.
type StartWizardRequest struct {
	LotID string `json:"lot_id" binding:"omitempty,max=64"`
}

// SelectLotRequest is the step 1 body.
type SelectLotRequest struct {
	LotID string `json:"lot_id" binding:"required,max=64"`
}

// PaymentRequest is the step 2 body.
type PaymentRequest struct {
	Method string `json:"method" binding:"required,oneof=financing outright"`
}

// ConfirmRequest is the step 3 acknowledgement.
type ConfirmRequest struct {
	Confirmed *bool `json:"confirmed" binding:"required"`
}

// CandidatesRequest filters the selectable lots.
type CandidatesRequest struct {
	Query string `form:"q" binding:"omitempty,max=100"`
}

// WizardResponse wraps the wizard state.
type WizardResponse struct {
	Wizard reservation.WizardView `json:"wizard"`
}

// SubmitResponse is returned once the reservation is committed.
type SubmitResponse struct {
	Reservation *models.Reservation    `json:"reservation"`
	Wizard      reservation.WizardView `json:"wizard"`
}

// StartWizard handles POST /api/v1/reservations/wizard.
func (h *ReservationHandler) StartWizard(c *gin.Context) {
	var req StartWizardRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindFailed(c, err, "Invalid request body")
			return
		}
	}
	if req.LotID == "" {
		req.LotID = c.Query("lot")
	}

	view, err := h.service.StartWizard(c.Request.Context(), callerID(c), req.LotID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, WizardResponse{Wizard: view})
}

// GetWizard handles GET /api/v1/reservations/wizard/:id.
func (h *ReservationHandler) GetWizard(c *gin.Context) {
	view, err := h.service.GetWizard(callerID(c), c.Param("id"))
	h.respond(c, view, err)
}

// SelectLot handles POST /api/v1/reservations/wizard/:id/lot.
func (h *ReservationHandler) SelectLot(c *gin.Context) {
	var req SelectLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, "Invalid request body")
		return
	}
	view, err := h.service.SelectLot(c.Request.Context(), callerID(c), c.Param("id"), req.LotID)
	h.respond(c, view, err)
}

// ChoosePayment handles POST /api/v1/reservations/wizard/:id/payment.
func (h *ReservationHandler) ChoosePayment(c *gin.Context) {
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, "Invalid request body")
		return
	}
	view, err := h.service.ChoosePayment(callerID(c), c.Param("id"), req.Method)
	h.respond(c, view, err)
}

// Confirm handles POST /api/v1/reservations/wizard/:id/confirm.
func (h *ReservationHandler) Confirm(c *gin.Context) {
	var req ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, "Invalid request body")
		return
	}
	view, err := h.service.Confirm(callerID(c), c.Param("id"), *req.Confirmed)
	h.respond(c, view, err)
}

// Reset handles POST /api/v1/reservations/wizard/:id/reset.
func (h *ReservationHandler) Reset(c *gin.Context) {
	view, err := h.service.Reset(callerID(c), c.Param("id"))
	h.respond(c, view, err)
}

// Candidates handles GET /api/v1/reservations/wizard/:id/lots.
func (h *ReservationHandler) Candidates(c *gin.Context) {
	var req CandidatesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindFailed(c, err, "Invalid query parameters")
		return
	}
	lots, err := h.service.Candidates(c.Request.Context(), callerID(c), c.Param("id"), req.Query)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, LotsResponse{Lots: lots, Count: len(lots)})
}

// Submit handles POST /api/v1/reservations/wizard/:id/submit. A lost race
// answers 409 with the wizard, now back on step 1.
func (h *ReservationHandler) Submit(c *gin.Context) {
	created, view, err := h.service.Submit(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrLotUnavailable) {
			apierrors.Conflict(c, apierrors.ErrLotUnavailable,
				"This lot was just reserved by someone else. Please choose another lot.",
				map[string]interface{}{"wizard": view})
			return
		}
		h.fail(c, err)
		return
	}

	logInfo(c, "Reservation submitted", map[string]interface{}{
		"reservation_id": created.ID,
		"lot_id":         created.LotID,
	})
	c.JSON(http.StatusCreated, SubmitResponse{Reservation: created, Wizard: view})
}

// ListMine handles GET /api/v1/me/reservations.
func (h *ReservationHandler) ListMine(c *gin.Context) {
	views, err := h.service.ListMine(c.Request.Context(), callerID(c))
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list reservations", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservations": views, "count": len(views)})
}

// Withdraw handles POST /api/v1/me/reservations/:id/withdraw.
func (h *ReservationHandler) Withdraw(c *gin.Context) {
	updated, err := h.service.Withdraw(c.Request.Context(), callerID(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reservation": updated})
}

func (h *ReservationHandler) respond(c *gin.Context, view reservation.WizardView, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, WizardResponse{Wizard: view})
}

// fail maps wizard and reservation errors onto the error envelope.
func (h *ReservationHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, reservation.ErrWizardNotFound):
		apierrors.NotFound(c, "Reservation wizard not found or expired")
	case errors.Is(err, services.ErrReservationNotFound):
		apierrors.NotFound(c, "Reservation not found")
	case errors.Is(err, services.ErrLotNotFound):
		apierrors.NotFound(c, "Lot not found")
	case errors.Is(err, reservation.ErrValidation):
		apierrors.BadRequest(c, err.Error(), nil)
	case errors.Is(err, reservation.ErrSubmitInProgress),
		errors.Is(err, reservation.ErrWizardDone),
		errors.Is(err, services.ErrCannotWithdraw),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrStatusChanged):
		apierrors.Conflict(c, apierrors.ErrConflict, err.Error(), nil)
	default:
		apierrors.InternalServerError(c, "Failed to process reservation", err)
	}
}
