package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/repository"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidRole     = errors.New("role must be user or admin")
	ErrInvalidContact  = errors.New("preferred contact must be email, phone or whatsapp")
)

// ProfileService backs the buyer's profile page and the staff user list.
type ProfileService struct {
	repo repository.ProfileRepository
	log  *logger.Logger
}

// NewProfileService creates a profile service.
func NewProfileService(repo repository.ProfileRepository, log *logger.Logger) *ProfileService {
	return &ProfileService{repo: repo, log: log.Named("profiles")}
}

// Get returns the caller's profile. A caller the identity provider knows
// but who never saved a profile gets a blank one.
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.Profile{
			ID:               userID,
			Role:             models.RoleUser,
			KYCStatus:        "pending",
			PreferredContact: models.ContactEmail,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return p, nil
}

// Update saves the caller's contact details, creating the profile on
// first save.
func (s *ProfileService) Update(ctx context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error) {
	if update.Empty() {
		return nil, ErrEmptyUpdate
	}
	if c := update.PreferredContact; c != nil {
		switch *c {
		case models.ContactEmail, models.ContactPhone, models.ContactWhatsApp:
		default:
			return nil, ErrInvalidContact
		}
	}

	p, err := s.repo.Update(ctx, userID, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	s.log.Info("Profile updated", map[string]interface{}{"user_id": userID})
	return p, nil
}

// List returns every profile, newest first.
func (s *ProfileService) List(ctx context.Context) ([]models.Profile, error) {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

// SetRole grants or revokes staff rights. Staff cannot change their own
// role, so the console always keeps at least the acting admin.
func (s *ProfileService) SetRole(ctx context.Context, actorID, userID string, role models.UserRole) (*models.Profile, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if actorID == userID {
		return nil, fmt.Errorf("%w: cannot change your own role", ErrInvalidRole)
	}
	p, err := s.repo.SetRole(ctx, userID, role)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set role: %w", err)
	}
	s.log.Info("User role changed", map[string]interface{}{"user_id": userID, "role": role, "by": actorID})
	return p, nil
}
