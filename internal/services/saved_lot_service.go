package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/repository"
)

// SaveResult reports a bookmark outcome. Saving twice is not an error.
type SaveResult struct {
	SavedLot     *models.SavedLot `json:"saved_lot,omitempty"`
	Message      string           `json:"message"`
	AlreadySaved bool             `json:"already_saved"`
}

// SavedLotService manages buyer bookmarks.
type SavedLotService struct {
	repo repository.SavedLotRepository
}

// NewSavedLotService creates a saved lot service.
func NewSavedLotService(repo repository.SavedLotRepository) *SavedLotService {
	return &SavedLotService{repo: repo}
}

// Save bookmarks lotID for userID.
func (s *SavedLotService) Save(ctx context.Context, userID, lotID string) (*SaveResult, error) {
	saved, err := s.repo.Save(ctx, userID, lotID)
	switch {
	case errors.Is(err, repository.ErrAlreadyExists):
		return &SaveResult{Message: "Already saved", AlreadySaved: true}, nil
	case errors.Is(err, repository.ErrNotFound):
		return nil, ErrLotNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to save lot: %w", err)
	}
	return &SaveResult{SavedLot: saved, Message: "Saved"}, nil
}

// Remove deletes a bookmark.
func (s *SavedLotService) Remove(ctx context.Context, userID, lotID string) error {
	err := s.repo.Delete(ctx, userID, lotID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrLotNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to remove saved lot: %w", err)
	}
	return nil
}

// List returns the buyer's bookmarks with their lots.
func (s *SavedLotService) List(ctx context.Context, userID string) ([]models.SavedLot, error) {
	saved, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved lots: %w", err)
	}
	return saved, nil
}
