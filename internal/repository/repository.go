// Package repository is the persistence collaborator. Every interface has a
// PostgreSQL implementation here and an in-process one in the memory
// subpackage; both honour the same compare-and-swap on lot status.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/stwalsh4118/parcela/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrLotUnavailable is returned when a reservation loses the race for a lot.
	ErrLotUnavailable = errors.New("lot no longer available")
	// ErrAlreadyExists is returned when a unique record is inserted twice.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrStaleStatus is returned when a status changed between read and write.
	ErrStaleStatus = errors.New("status changed concurrently")
)

// ZoneRepository reads and edits zones. Geometry is never updated.
type ZoneRepository interface {
	// List returns every zone ordered by name.
	List(ctx context.Context) ([]models.Zone, error)
	Get(ctx context.Context, id string) (*models.Zone, error)
	Update(ctx context.Context, id string, update models.ZoneUpdate) (*models.Zone, error)
}

// LotRepository reads and edits lots joined with their zone.
type LotRepository interface {
	// List returns lots matching filter ordered by feature id.
	List(ctx context.Context, filter models.LotFilter) ([]models.LotWithZone, error)
	Get(ctx context.Context, id string) (*models.LotWithZone, error)
	GetByFeatureID(ctx context.Context, featureID int64) (*models.LotWithZone, error)
	Update(ctx context.Context, id string, update models.LotUpdate) (*models.LotWithZone, error)
	CountByStatus(ctx context.Context) (map[models.LotStatus]int, error)
}

// StatusChange moves one reservation from From to To. When LotStatus is set
// the reserved lot is moved to it in the same atomic write.
type StatusChange struct {
	At            time.Time
	LotStatus     *models.LotStatus
	ReservationID string
	From          models.ReservationStatus
	To            models.ReservationStatus
}

// ReservationRepository stores reservations.
type ReservationRepository interface {
	// ReserveLot flips the lot from available to reserved and inserts r in
	// one atomic write. It returns ErrLotUnavailable, with nothing written,
	// when the lot is not available.
	ReserveLot(ctx context.Context, r models.Reservation) (*models.Reservation, error)
	Get(ctx context.Context, id string) (*models.ReservationWithLot, error)
	// List returns reservations matching filter, newest first.
	List(ctx context.Context, filter models.ReservationFilter) ([]models.ReservationWithLot, error)
	// Transition applies change, returning ErrStaleStatus when the stored
	// status is no longer change.From.
	Transition(ctx context.Context, change StatusChange) (*models.Reservation, error)
	// ListExpired returns open reservations whose expiry is before now.
	ListExpired(ctx context.Context, now time.Time) ([]models.Reservation, error)
	CountOpen(ctx context.Context) (int, error)
}

// DocumentRepository stores KYC document records.
type DocumentRepository interface {
	Create(ctx context.Context, doc models.Document) (*models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	ListByUser(ctx context.Context, userID string) ([]models.Document, error)
	Review(ctx context.Context, id string, status models.DocumentStatus, notes string) (*models.Document, error)
	// CountByStatus counts documents, restricted to userID when non-empty.
	CountByStatus(ctx context.Context, userID string) (map[models.DocumentStatus]int, error)
}

// TicketRepository stores support tickets and their message threads.
type TicketRepository interface {
	// Create inserts ticket and its first message in one atomic write.
	Create(ctx context.Context, ticket models.SupportTicket, first models.TicketMessage) (*models.SupportTicket, error)
	Get(ctx context.Context, id string) (*models.SupportTicket, error)
	// ListByUser returns the buyer's tickets, most recently active first.
	ListByUser(ctx context.Context, userID string) ([]models.SupportTicket, error)
	// List returns tickets newest first, restricted to status when non-empty.
	List(ctx context.Context, status models.TicketStatus) ([]models.SupportTicket, error)
	UpdateStatus(ctx context.Context, id string, status models.TicketStatus) (*models.SupportTicket, error)
	// AddMessage appends msg to its ticket. When status is non-nil the
	// ticket moves to it in the same write.
	AddMessage(ctx context.Context, msg models.TicketMessage, status *models.TicketStatus) (*models.TicketMessage, error)
	// Messages returns a thread oldest first.
	Messages(ctx context.Context, ticketID string) ([]models.TicketMessage, error)
	// CountOpen counts open tickets, restricted to userID when non-empty.
	CountOpen(ctx context.Context, userID string) (int, error)
}

// SavedLotRepository stores buyer bookmarks.
type SavedLotRepository interface {
	// Save bookmarks a lot. It returns ErrAlreadyExists for a duplicate.
	Save(ctx context.Context, userID, lotID string) (*models.SavedLot, error)
	Delete(ctx context.Context, userID, lotID string) error
	ListByUser(ctx context.Context, userID string) ([]models.SavedLot, error)
}

// ProfileRepository stores buyer and staff profiles.
type ProfileRepository interface {
	Get(ctx context.Context, id string) (*models.Profile, error)
	// List returns every profile, newest first.
	List(ctx context.Context) ([]models.Profile, error)
	// Update applies update, creating the profile when it does not exist.
	Update(ctx context.Context, id string, update models.ProfileUpdate) (*models.Profile, error)
	// SetRole changes an existing profile's role.
	SetRole(ctx context.Context, id string, role models.UserRole) (*models.Profile, error)
	Count(ctx context.Context) (int, error)
}

// CatalogWriter replaces the zone and lot catalogue.
type CatalogWriter interface {
	// ReplaceCatalog deletes every zone and lot and inserts the given ones.
	ReplaceCatalog(ctx context.Context, zones []models.Zone, lots []models.Lot) error
}

// Store bundles every repository behind one value for wiring.
type Store struct {
	Zones        ZoneRepository
	Lots         LotRepository
	Reservations ReservationRepository
	Documents    DocumentRepository
	Tickets      TicketRepository
	SavedLots    SavedLotRepository
	Profiles     ProfileRepository
	Catalog      CatalogWriter
}
