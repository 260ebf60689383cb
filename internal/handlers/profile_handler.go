package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/parcela/internal/errors"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/services"
)

// ProfileHandler serves the buyer's profile and the staff user list.
type ProfileHandler struct {
	profiles *services.ProfileService
}

// NewProfileHandler creates a new ProfileHandler instance.
func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// AddressRequest is the postal address block of a profile edit.
type AddressRequest struct {
	Country string `json:"country" binding:"max=100"`
	Street  string `json:"street" binding:"max=200"`
	City    string `json:"city" binding:"max=100"`
	State   string `json:"state" binding:"max=100"`
	Zip     string `json:"zip" binding:"max=20"`
}

// ProfileUpdateRequest edits the caller's profile. Omitted fields are unchanged.
type ProfileUpdateRequest struct {
	FullName         *string         `json:"full_name" binding:"omitempty,max=200"`
	Phone            *string         `json:"phone" binding:"omitempty,max=40"`
	SecondaryPhone   *string         `json:"secondary_phone" binding:"omitempty,max=40"`
	Timezone         *string         `json:"timezone" binding:"omitempty,max=64"`
	PreferredContact *string         `json:"preferred_contact_method" binding:"omitempty,oneof=email phone whatsapp"`
	Address          *AddressRequest `json:"address"`
}

// RoleRequest grants or revokes staff rights.
type RoleRequest struct {
	Role string `json:"role" binding:"required,oneof=user admin"`
}

// Get handles GET /api/v1/me/profile.
func (h *ProfileHandler) Get(c *gin.Context) {
	p, err := h.profiles.Get(c.Request.Context(), callerID(c))
	if err != nil {
		apierrors.InternalServerError(c, "Failed to load profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": p})
}

// Update handles PATCH /api/v1/me/profile.
func (h *ProfileHandler) Update(c *gin.Context) {
	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, "Invalid request body")
		return
	}

	update := models.ProfileUpdate{
		FullName:       req.FullName,
		Phone:          req.Phone,
		SecondaryPhone: req.SecondaryPhone,
		Timezone:       req.Timezone,
	}
	if req.PreferredContact != nil {
		m := models.ContactMethod(*req.PreferredContact)
		update.PreferredContact = &m
	}
	if a := req.Address; a != nil {
		update.Address = &models.Address{Country: a.Country, Street: a.Street, City: a.City, State: a.State, Zip: a.Zip}
	}

	p, err := h.profiles.Update(c.Request.Context(), callerID(c), update)
	switch {
	case errors.Is(err, services.ErrEmptyUpdate), errors.Is(err, services.ErrInvalidContact):
		apierrors.BadRequest(c, err.Error(), nil)
	case err != nil:
		apierrors.InternalServerError(c, "Failed to update profile", err)
	default:
		c.JSON(http.StatusOK, gin.H{"profile": p})
	}
}

// ListUsers handles GET /api/v1/admin/users.
func (h *ProfileHandler) ListUsers(c *gin.Context) {
	users, err := h.profiles.List(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list users", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "count": len(users)})
}

// SetRole handles PATCH /api/v1/admin/users/:id/role.
func (h *ProfileHandler) SetRole(c *gin.Context) {
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, "Invalid request body")
		return
	}
	p, err := h.profiles.SetRole(c.Request.Context(), callerID(c), c.Param("id"), models.UserRole(req.Role))
	switch {
	case errors.Is(err, services.ErrProfileNotFound):
		apierrors.NotFound(c, "User not found")
	case errors.Is(err, services.ErrInvalidRole):
		apierrors.BadRequest(c, err.Error(), nil)
	case err != nil:
		apierrors.InternalServerError(c, "Failed to change role", err)
	default:
		logInfo(c, "User role changed", map[string]interface{}{"user_id": p.ID, "role": p.Role})
		c.JSON(http.StatusOK, gin.H{"user": p})
	}
}
