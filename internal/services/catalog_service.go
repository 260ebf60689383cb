package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/mapview"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/repository"
)

// Service-level errors
var (
	ErrLotNotFound      = errors.New("lot not found")
	ErrZoneNotFound     = errors.New("zone not found")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidFeatureID = errors.New("feature id must be a non-negative integer")
)

// CatalogService defines the read operations over zones and lots.
type CatalogService interface {
	// ListLots returns lots matching filter ordered by feature id.
	// Returns ErrInvalidStatus if the filter names an unknown status.
	ListLots(ctx context.Context, filter models.LotFilter) ([]models.LotWithZone, error)

	// GetLot returns ErrLotNotFound if no lot has the id.
	GetLot(ctx context.Context, id string) (*models.LotWithZone, error)

	// GetLotByFeatureID resolves a renderer feature id to its lot.
	GetLotByFeatureID(ctx context.Context, featureID int64) (*models.LotWithZone, error)

	// LotDetail returns the modal presentation of a lot for the viewer.
	LotDetail(ctx context.Context, id string, authenticated bool) (*mapview.LotDetail, error)

	ListZones(ctx context.Context) ([]models.Zone, error)
	GetZone(ctx context.Context, id string) (*models.Zone, error)
}

type catalogService struct {
	zones repository.ZoneRepository
	lots  repository.LotRepository
	log   *logger.Logger
}

// NewCatalogService creates a new instance of CatalogService.
func NewCatalogService(zones repository.ZoneRepository, lots repository.LotRepository, log *logger.Logger) CatalogService {
	return &catalogService{
		zones: zones,
		lots:  lots,
		log:   log,
	}
}

func (s *catalogService) ListLots(ctx context.Context, filter models.LotFilter) ([]models.LotWithZone, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, filter.Status)
	}

	lots, err := s.lots.List(ctx, filter)
	if err != nil {
		s.log.Error("Failed to list lots", err, map[string]interface{}{
			"status":  filter.Status,
			"zone_id": filter.ZoneID,
			"query":   filter.Query,
		})
		return nil, fmt.Errorf("failed to list lots: %w", err)
	}

	s.log.Debug("Lots listed", map[string]interface{}{
		"status":  filter.Status,
		"zone_id": filter.ZoneID,
		"count":   len(lots),
	})
	return lots, nil
}

func (s *catalogService) GetLot(ctx context.Context, id string) (*models.LotWithZone, error) {
	lot, err := s.lots.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrLotNotFound
	}
	if err != nil {
		s.log.Error("Failed to get lot", err, map[string]interface{}{"lot_id": id})
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}
	return lot, nil
}

func (s *catalogService) GetLotByFeatureID(ctx context.Context, featureID int64) (*models.LotWithZone, error) {
	if featureID < 0 {
		return nil, ErrInvalidFeatureID
	}
	lot, err := s.lots.GetByFeatureID(ctx, featureID)
	if errors.Is(err, repository.ErrNotFound) {
		// Stale clicks after a reseed land here; not worth more than debug.
		s.log.Debug("No lot for feature id", map[string]interface{}{"feature_id": featureID})
		return nil, ErrLotNotFound
	}
	if err != nil {
		s.log.Error("Failed to resolve feature id", err, map[string]interface{}{"feature_id": featureID})
		return nil, fmt.Errorf("failed to resolve feature id: %w", err)
	}
	return lot, nil
}

func (s *catalogService) LotDetail(ctx context.Context, id string, authenticated bool) (*mapview.LotDetail, error) {
	lot, err := s.GetLot(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := mapview.NewLotDetail(*lot, authenticated)
	return &detail, nil
}

func (s *catalogService) ListZones(ctx context.Context) ([]models.Zone, error) {
	zones, err := s.zones.List(ctx)
	if err != nil {
		s.log.Error("Failed to list zones", err, nil)
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	return zones, nil
}

func (s *catalogService) GetZone(ctx context.Context, id string) (*models.Zone, error) {
	zone, err := s.zones.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrZoneNotFound
	}
	if err != nil {
		s.log.Error("Failed to get zone", err, map[string]interface{}{"zone_id": id})
		return nil, fmt.Errorf("failed to get zone: %w", err)
	}
	return zone, nil
}
