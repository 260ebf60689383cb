package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stwalsh4118/parcela/internal/events"
	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/repository"
)

// ErrEmptyUpdate is returned when an edit changes nothing.
var ErrEmptyUpdate = errors.New("no fields to update")

// Stats is the admin overview.
type Stats struct {
	LotsByStatus     map[models.LotStatus]int `json:"lots_by_status"`
	TotalLots        int                      `json:"total_lots"`
	Users            int                      `json:"users"`
	OpenReservations int                      `json:"open_reservations"`
	PendingDocuments int                      `json:"pending_documents"`
	OpenTickets      int                      `json:"open_tickets"`
}

// AdminService backs the staff console.
type AdminService struct {
	store        *repository.Store
	reservations *ReservationService
	notify       notifier
	log          *logger.Logger
}

// NewAdminService creates an admin service. Status changes go through
// reservations so they share its transition rules.
func NewAdminService(store *repository.Store, reservations *ReservationService, bus events.Bus, maps Invalidator, log *logger.Logger) *AdminService {
	log = log.Named("admin")
	return &AdminService{
		store:        store,
		reservations: reservations,
		notify:       notifier{bus: bus, maps: maps, log: log},
		log:          log,
	}
}

// Stats counts lots, users, reservations, documents and tickets.
func (s *AdminService) Stats(ctx context.Context) (*Stats, error) {
	byStatus, err := s.store.Lots.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count lots: %w", err)
	}
	users, err := s.store.Profiles.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	open, err := s.store.Reservations.CountOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count reservations: %w", err)
	}
	docs, err := s.store.Documents.CountByStatus(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	tickets, err := s.store.Tickets.CountOpen(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to count tickets: %w", err)
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}
	return &Stats{
		LotsByStatus:     byStatus,
		TotalLots:        total,
		Users:            users,
		OpenReservations: open,
		PendingDocuments: docs[models.DocumentPending],
		OpenTickets:      tickets,
	}, nil
}

// ListReservations lists every reservation, optionally narrowed to one status.
func (s *AdminService) ListReservations(ctx context.Context, status models.ReservationStatus) ([]models.ReservationWithLot, error) {
	filter := models.ReservationFilter{}
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
		filter.Statuses = []models.ReservationStatus{status}
	}
	list, err := s.store.Reservations.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return list, nil
}

// TransitionReservation applies a staff status change.
func (s *AdminService) TransitionReservation(ctx context.Context, id string, to models.ReservationStatus) (*models.Reservation, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	current, err := s.store.Reservations.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reservation: %w", err)
	}
	return s.reservations.Transition(ctx, current.Reservation, to)
}

// UpdateLot edits a lot's price or status.
func (s *AdminService) UpdateLot(ctx context.Context, id string, update models.LotUpdate) (*models.LotWithZone, error) {
	if update.Empty() {
		return nil, ErrEmptyUpdate
	}
	if update.Status != nil && !update.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *update.Status)
	}

	lot, err := s.store.Lots.Update(ctx, id, update)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrLotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update lot: %w", err)
	}

	s.log.Info("Lot updated", map[string]interface{}{"lot_id": id, "status": lot.Status, "price": lot.Price})
	s.notify.lotChanged(ctx, lot.ID, lot.Status, time.Now())
	return lot, nil
}

// UpdateZone edits a zone's descriptive fields. Geometry is immutable.
func (s *AdminService) UpdateZone(ctx context.Context, id string, update models.ZoneUpdate) (*models.Zone, error) {
	if update.Empty() {
		return nil, ErrEmptyUpdate
	}
	zone, err := s.store.Zones.Update(ctx, id, update)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrZoneNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update zone: %w", err)
	}

	s.log.Info("Zone updated", map[string]interface{}{"zone_id": id})
	// Lot features carry the zone name and zoning type.
	s.notify.lotChanged(ctx, "", "", time.Now())
	return zone, nil
}
