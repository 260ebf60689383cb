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

// SupportHandler serves buyer support threads and the staff ticket queue.
type SupportHandler struct {
	tickets *services.TicketService
}

// NewSupportHandler creates a new SupportHandler instance.
func NewSupportHandler(tickets *services.TicketService) *SupportHandler {
	return &SupportHandler{tickets: tickets}
}

// OpenTicketRequest files a support ticket.
type OpenTicketRequest struct {
	Subject          string `json:"subject" binding:"required,max=200"`
	Category         string `json:"category" binding:"required,oneof=payment reservation documents technical account other"`
	Priority         string `json:"priority" binding:"omitempty,oneof=normal urgent"`
	Description      string `json:"description" binding:"required,max=5000"`
	PreferredContact string `json:"preferred_contact" binding:"omitempty,oneof=email phone whatsapp"`
	BestTime         string `json:"best_time" binding:"omitempty,max=100"`
}

// MessageRequest posts to a ticket thread.
type MessageRequest struct {
	Message string `json:"message" binding:"required,max=5000"`
}

// TicketStatusRequest moves a ticket.
type TicketStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=open waiting_on_user waiting_on_support resolved closed"`
}

// ListMine handles GET /api/v1/me/tickets.
func (h *SupportHandler) ListMine(c *gin.Context) {
	tickets, err := h.tickets.ListMine(c.Request.Context(), callerID(c))
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list tickets", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets, "count": len(tickets)})
}

// Open handles POST /api/v1/me/tickets.
func (h *SupportHandler) Open(c *gin.Context) {
	var req OpenTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, "Invalid request body")
		return
	}

	ticket, err := h.tickets.Open(c.Request.Context(), callerID(c), services.NewTicket{
		Subject:          req.Subject,
		Category:         models.TicketCategory(req.Category),
		Priority:         models.TicketPriority(req.Priority),
		Description:      req.Description,
		PreferredContact: models.ContactMethod(req.PreferredContact),
		BestTime:         req.BestTime,
	})
	if err != nil {
		h.fail(c, err, "Failed to open ticket")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ticket": ticket})
}

// Thread handles GET /api/v1/me/tickets/:id and GET /api/v1/admin/tickets/:id.
func (h *SupportHandler) Thread(c *gin.Context) {
	id, _ := middleware.IdentityFrom(c)
	thread, err := h.tickets.Thread(c.Request.Context(), id.UserID, id.IsAdmin(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "Failed to load ticket")
		return
	}
	c.JSON(http.StatusOK, thread)
}

// PostMessage handles POST /api/v1/me/tickets/:id/messages.
func (h *SupportHandler) PostMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, "Invalid request body")
		return
	}
	msg, err := h.tickets.PostMessage(c.Request.Context(), callerID(c), c.Param("id"), req.Message)
	if err != nil {
		h.fail(c, err, "Failed to post message")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// List handles GET /api/v1/admin/tickets. The queue defaults to open
// tickets; status=all lists everything.
func (h *SupportHandler) List(c *gin.Context) {
	status := models.TicketStatus(c.DefaultQuery("status", string(models.TicketOpen)))
	if status == "all" {
		status = ""
	}
	tickets, err := h.tickets.List(c.Request.Context(), status)
	if err != nil {
		h.fail(c, err, "Failed to list tickets")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets, "count": len(tickets)})
}

// Reply handles POST /api/v1/admin/tickets/:id/reply.
func (h *SupportHandler) Reply(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, "Invalid request body")
		return
	}
	msg, err := h.tickets.Reply(c.Request.Context(), callerID(c), c.Param("id"), req.Message)
	if err != nil {
		h.fail(c, err, "Failed to post reply")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// SetStatus handles PATCH /api/v1/admin/tickets/:id/status.
func (h *SupportHandler) SetStatus(c *gin.Context) {
	var req TicketStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, "Invalid request body")
		return
	}
	ticket, err := h.tickets.SetStatus(c.Request.Context(), c.Param("id"), models.TicketStatus(req.Status))
	if err != nil {
		h.fail(c, err, "Failed to update ticket")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket": ticket})
}

func (h *SupportHandler) fail(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, services.ErrTicketNotFound):
		apierrors.NotFound(c, "Ticket not found")
	case errors.Is(err, services.ErrTicketClosed):
		apierrors.Conflict(c, apierrors.ErrConflict, "Ticket is closed", nil)
	case errors.Is(err, services.ErrInvalidTicket),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrInvalidStatus):
		apierrors.BadRequest(c, err.Error(), nil)
	default:
		apierrors.InternalServerError(c, message, err)
	}
}
