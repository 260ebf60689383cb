package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/stwalsh4118/parcela/internal/errors"
	"github.com/stwalsh4118/parcela/internal/services"
	"github.com/stwalsh4118/parcela/internal/storage"
)

// multipartOverhead is the allowance for form fields and boundaries on
// top of the file size cap.
const multipartOverhead = 1 << 20

// AccountHandler serves the buyer's dashboard, saved lots and documents.
type AccountHandler struct {
	dashboard *services.DashboardService
	saved     *services.SavedLotService
	documents *services.DocumentService
}

// NewAccountHandler creates a new AccountHandler instance.
func NewAccountHandler(dashboard *services.DashboardService, saved *services.SavedLotService, documents *services.DocumentService) *AccountHandler {
	return &AccountHandler{dashboard: dashboard, saved: saved, documents: documents}
}

// SaveLotRequest bookmarks a lot.
type SaveLotRequest struct {
	LotID string `json:"lot_id" binding:"required,max=64"`
}

// UploadDocumentRequest is the multipart form of a KYC upload.
type UploadDocumentRequest struct {
	Type string `form:"type" binding:"required,max=32"`
}

// Dashboard handles GET /api/v1/me/dashboard.
func (h *AccountHandler) Dashboard(c *gin.Context) {
	d, err := h.dashboard.Get(c.Request.Context(), callerID(c))
	if err != nil {
		apierrors.InternalServerError(c, "Failed to load dashboard", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// ListSavedLots handles GET /api/v1/me/saved-lots.
func (h *AccountHandler) ListSavedLots(c *gin.Context) {
	saved, err := h.saved.List(c.Request.Context(), callerID(c))
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list saved lots", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved_lots": saved, "count": len(saved)})
}

// SaveLot handles POST /api/v1/me/saved-lots. Saving twice answers 200
// with "Already saved".
func (h *AccountHandler) SaveLot(c *gin.Context) {
	var req SaveLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err, "Invalid request body")
		return
	}

	result, err := h.saved.Save(c.Request.Context(), callerID(c), req.LotID)
	if err != nil {
		if errors.Is(err, services.ErrLotNotFound) {
			apierrors.NotFound(c, "Lot not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to save lot", err)
		return
	}

	status := http.StatusCreated
	if result.AlreadySaved {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

// RemoveSavedLot handles DELETE /api/v1/me/saved-lots/:lot_id.
func (h *AccountHandler) RemoveSavedLot(c *gin.Context) {
	err := h.saved.Remove(c.Request.Context(), callerID(c), c.Param("lot_id"))
	if err != nil {
		if errors.Is(err, services.ErrLotNotFound) {
			apierrors.NotFound(c, "Saved lot not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to remove saved lot", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListDocuments handles GET /api/v1/me/documents.
func (h *AccountHandler) ListDocuments(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context(), callerID(c))
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list documents", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "count": len(docs)})
}

// UploadDocument handles POST /api/v1/me/documents.
func (h *AccountHandler) UploadDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxUploadBytes+multipartOverhead)

	var req UploadDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			tooLarge(c)
			return
		}
		bindFailed(c, err, "Invalid upload form")
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			tooLarge(c)
			return
		}
		apierrors.BadRequest(c, "A file is required", nil)
		return
	}

	file, err := header.Open()
	if err != nil {
		apierrors.InternalServerError(c, "Failed to read upload", err)
		return
	}
	defer file.Close()

	doc, err := h.documents.Upload(c.Request.Context(), services.Upload{
		Body:     file,
		UserID:   callerID(c),
		Type:     req.Type,
		FileName: header.Filename,
		Size:     header.Size,
	})
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		tooLarge(c)
	case errors.Is(err, storage.ErrUnsupportedType), errors.Is(err, services.ErrInvalidDocumentType):
		apierrors.BadRequest(c, err.Error(), nil)
	case errors.Is(err, storage.ErrDisabled):
		apierrors.ServiceUnavailable(c, "Document uploads are not configured")
	case err != nil:
		apierrors.InternalServerError(c, "Failed to upload document", err)
	default:
		c.JSON(http.StatusCreated, gin.H{"document": doc})
	}
}

func tooLarge(c *gin.Context) {
	apierrors.PayloadTooLarge(c, "File exceeds the 10 MB limit", map[string]interface{}{
		"max_bytes": storage.MaxUploadBytes,
	})
}
