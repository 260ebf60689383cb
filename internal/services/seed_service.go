package services

import (
	"context"
	"fmt"

	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/repository"
	"github.com/stwalsh4118/parcela/internal/subdivision"
)

// SeedSummary reports what a seed run wrote.
type SeedSummary struct {
	ByStatus map[models.LotStatus]int
	Zones    int
	Lots     int
}

// SeedService replaces the catalogue with the generated development.
type SeedService struct {
	catalog repository.CatalogWriter
	lots    repository.LotRepository
	log     *logger.Logger
}

// NewSeedService creates a seed service.
func NewSeedService(catalog repository.CatalogWriter, lots repository.LotRepository, log *logger.Logger) *SeedService {
	return &SeedService{catalog: catalog, lots: lots, log: log.Named("seed")}
}

// Seed subdivides zones with grid and writes them, clearing every existing
// zone, lot and dependent reservation.
func (s *SeedService) Seed(ctx context.Context, zones []models.Zone, grid subdivision.Grid) (*SeedSummary, error) {
	lots, err := subdivision.GenerateAll(zones, grid)
	if err != nil {
		return nil, fmt.Errorf("failed to generate lots: %w", err)
	}

	s.log.Info("Writing catalogue", map[string]interface{}{"zones": len(zones), "lots": len(lots)})
	if err := s.catalog.ReplaceCatalog(ctx, zones, lots); err != nil {
		return nil, fmt.Errorf("failed to write catalogue: %w", err)
	}

	counts, err := s.lots.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count lots: %w", err)
	}

	s.log.Info("Seed complete", map[string]interface{}{
		"zones":     len(zones),
		"lots":      len(lots),
		"available": counts[models.LotAvailable],
		"reserved":  counts[models.LotReserved],
		"sold":      counts[models.LotSold],
	})
	return &SeedSummary{ByStatus: counts, Zones: len(zones), Lots: len(lots)}, nil
}
