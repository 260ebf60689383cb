package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/repository"
	"github.com/stwalsh4118/parcela/internal/storage"
)

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrInvalidDocumentType = errors.New("document type is required")
	ErrInvalidReview       = errors.New("review status must be approved or rejected")
)

// Upload is one KYC file as received from the client.
type Upload struct {
	Body     io.Reader
	UserID   string
	Type     string
	FileName string
	Size     int64
}

// DocumentService validates, stores and reviews KYC documents.
type DocumentService struct {
	repo  repository.DocumentRepository
	blobs storage.BlobStore
	log   *logger.Logger
}

// NewDocumentService creates a document service.
func NewDocumentService(repo repository.DocumentRepository, blobs storage.BlobStore, log *logger.Logger) *DocumentService {
	return &DocumentService{repo: repo, blobs: blobs, log: log.Named("documents")}
}

// Upload checks size and type before touching storage, then records the
// document as pending review.
func (s *DocumentService) Upload(ctx context.Context, up Upload) (*models.Document, error) {
	docType := strings.TrimSpace(up.Type)
	if docType == "" {
		return nil, ErrInvalidDocumentType
	}
	contentType, err := storage.ValidateUpload(up.FileName, up.Size)
	if err != nil {
		return nil, err
	}

	key := storage.ObjectKey(up.UserID, docType, up.FileName)
	url, err := s.blobs.Put(ctx, key, contentType, up.Body)
	if err != nil {
		if !errors.Is(err, storage.ErrDisabled) {
			s.log.Error("Failed to store document", err, map[string]interface{}{"user_id": up.UserID, "key": key})
		}
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	doc, err := s.repo.Create(ctx, models.Document{
		UserID:   up.UserID,
		Type:     docType,
		FileName: up.FileName,
		FileURL:  url,
		Status:   models.DocumentPending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record document: %w", err)
	}

	s.log.Info("Document uploaded", map[string]interface{}{
		"document_id": doc.ID,
		"user_id":     up.UserID,
		"type":        docType,
	})
	return doc, nil
}

// List returns the buyer's documents.
func (s *DocumentService) List(ctx context.Context, userID string) ([]models.Document, error) {
	docs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// Review records a staff decision on a document.
func (s *DocumentService) Review(ctx context.Context, id string, status models.DocumentStatus, notes string) (*models.Document, error) {
	if status != models.DocumentApproved && status != models.DocumentRejected {
		return nil, ErrInvalidReview
	}
	doc, err := s.repo.Review(ctx, id, status, notes)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to review document: %w", err)
	}
	s.log.Info("Document reviewed", map[string]interface{}{"document_id": id, "status": status})
	return doc, nil
}
