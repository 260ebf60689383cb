// Package memory is an in-process implementation of the repository
// interfaces. One mutex guards every table, which gives the lot
// compare-and-swap the same single-winner semantics as the PostgreSQL
// transaction. It backs the service and handler tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/repository"
)

type tables struct {
	mu           sync.RWMutex
	now          func() time.Time
	zones        map[string]models.Zone
	lots         map[string]models.Lot
	reservations map[string]models.Reservation
	documents    map[string]models.Document
	tickets      map[string]models.SupportTicket
	messages     map[string][]models.TicketMessage
	saved        map[string]models.SavedLot
	profiles     map[string]models.Profile
}

// DB is the in-memory database. Seed helpers let tests place fixtures.
type DB struct {
	t *tables
}

// New creates an empty in-memory database.
func New() *DB {
	return &DB{t: &tables{
		now:          time.Now,
		zones:        map[string]models.Zone{},
		lots:         map[string]models.Lot{},
		reservations: map[string]models.Reservation{},
		documents:    map[string]models.Document{},
		tickets:      map[string]models.SupportTicket{},
		messages:     map[string][]models.TicketMessage{},
		saved:        map[string]models.SavedLot{},
		profiles:     map[string]models.Profile{},
	}}
}

// Store returns the repository bundle backed by db.
func (db *DB) Store() *repository.Store {
	return &repository.Store{
		Zones:        zoneRepo{db.t},
		Lots:         lotRepo{db.t},
		Reservations: reservationRepo{db.t},
		Documents:    documentRepo{db.t},
		Tickets:      ticketRepo{db.t},
		SavedLots:    savedLotRepo{db.t},
		Profiles:     profileRepo{db.t},
		Catalog:      catalogWriter{db.t},
	}
}

// SetClock replaces the time source stamped on created and updated rows.
func (db *DB) SetClock(now func() time.Time) {
	db.t.mu.Lock()
	defer db.t.mu.Unlock()
	db.t.now = now
}

// PutProfile inserts or replaces a profile.
func (db *DB) PutProfile(p models.Profile) {
	db.t.mu.Lock()
	defer db.t.mu.Unlock()
	db.t.profiles[p.ID] = p
}

// PutTicket inserts or replaces a support ticket.
func (db *DB) PutTicket(t models.SupportTicket) {
	db.t.mu.Lock()
	defer db.t.mu.Unlock()
	db.t.tickets[t.ID] = t
}

// PutLot inserts or replaces a lot.
func (db *DB) PutLot(l models.Lot) {
	db.t.mu.Lock()
	defer db.t.mu.Unlock()
	db.t.lots[l.ID] = l
}

// PutReservation inserts or replaces a reservation without touching its lot.
func (db *DB) PutReservation(r models.Reservation) {
	db.t.mu.Lock()
	defer db.t.mu.Unlock()
	db.t.reservations[r.ID] = r
}

func (t *tables) joinLot(l models.Lot) models.LotWithZone {
	out := models.LotWithZone{Lot: l}
	if z, ok := t.zones[l.ZoneID]; ok {
		out.Zone = &z
	}
	return out
}

type zoneRepo struct{ t *tables }

func (r zoneRepo) List(ctx context.Context) ([]models.Zone, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	zones := make([]models.Zone, 0, len(r.t.zones))
	for _, z := range r.t.zones {
		zones = append(zones, z)
	}
	sort.Slice(zones, func(i, j int) bool { return zones[i].Name < zones[j].Name })
	return zones, nil
}

func (r zoneRepo) Get(ctx context.Context, id string) (*models.Zone, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	z, ok := r.t.zones[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &z, nil
}

func (r zoneRepo) Update(ctx context.Context, id string, update models.ZoneUpdate) (*models.Zone, error) {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()

	z, ok := r.t.zones[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	update.Apply(&z)
	z.UpdatedAt = r.t.now()
	r.t.zones[id] = z
	return &z, nil
}

type lotRepo struct{ t *tables }

func (r lotRepo) List(ctx context.Context, filter models.LotFilter) ([]models.LotWithZone, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(filter.Query))
	out := []models.LotWithZone{}
	for _, l := range r.t.lots {
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.ZoneID != "" && l.ZoneID != filter.ZoneID {
			continue
		}
		lot := r.t.joinLot(l)
		if q != "" &&
			!strings.Contains(strings.ToLower(lot.ID), q) &&
			!strings.Contains(strings.ToLower(lot.Label), q) &&
			!strings.Contains(strings.ToLower(lot.ZoneName()), q) {
			continue
		}
		out = append(out, lot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FeatureID < out[j].FeatureID })
	return out, nil
}

func (r lotRepo) Get(ctx context.Context, id string) (*models.LotWithZone, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	l, ok := r.t.lots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	lot := r.t.joinLot(l)
	return &lot, nil
}

func (r lotRepo) GetByFeatureID(ctx context.Context, featureID int64) (*models.LotWithZone, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	for _, l := range r.t.lots {
		if l.FeatureID == featureID {
			lot := r.t.joinLot(l)
			return &lot, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r lotRepo) Update(ctx context.Context, id string, update models.LotUpdate) (*models.LotWithZone, error) {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()

	l, ok := r.t.lots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if update.Price != nil {
		l.Price = *update.Price
	}
	if update.Status != nil {
		l.Status = *update.Status
	}
	l.UpdatedAt = r.t.now()
	r.t.lots[id] = l
	lot := r.t.joinLot(l)
	return &lot, nil
}

func (r lotRepo) CountByStatus(ctx context.Context) (map[models.LotStatus]int, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	counts := map[models.LotStatus]int{}
	for _, l := range r.t.lots {
		counts[l.Status]++
	}
	return counts, nil
}

type reservationRepo struct{ t *tables }

func (r reservationRepo) ReserveLot(ctx context.Context, res models.Reservation) (*models.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.t.mu.Lock()
	defer r.t.mu.Unlock()

	lot, ok := r.t.lots[res.LotID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if lot.Status != models.LotAvailable {
		return nil, repository.ErrLotUnavailable
	}
	for _, existing := range r.t.reservations {
		if existing.LotID == res.LotID && existing.Status.IsOpen() {
			return nil, repository.ErrLotUnavailable
		}
	}

	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = r.t.now()
	}
	res.UpdatedAt = res.CreatedAt

	lot.Status = models.LotReserved
	lot.UpdatedAt = res.CreatedAt
	r.t.lots[lot.ID] = lot
	r.t.reservations[res.ID] = res
	return &res, nil
}

func (r reservationRepo) withLot(res models.Reservation) models.ReservationWithLot {
	out := models.ReservationWithLot{Reservation: res}
	if l, ok := r.t.lots[res.LotID]; ok {
		lot := r.t.joinLot(l)
		out.Lot = &lot
	}
	return out
}

func (r reservationRepo) Get(ctx context.Context, id string) (*models.ReservationWithLot, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	res, ok := r.t.reservations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := r.withLot(res)
	return &out, nil
}

func (r reservationRepo) List(ctx context.Context, filter models.ReservationFilter) ([]models.ReservationWithLot, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	out := []models.ReservationWithLot{}
	for _, res := range r.t.reservations {
		if filter.UserID != "" && res.UserID != filter.UserID {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, res.Status) {
			continue
		}
		out = append(out, r.withLot(res))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func hasStatus(set []models.ReservationStatus, s models.ReservationStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func (r reservationRepo) Transition(ctx context.Context, change repository.StatusChange) (*models.Reservation, error) {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()

	res, ok := r.t.reservations[change.ReservationID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if res.Status != change.From {
		return nil, repository.ErrStaleStatus
	}
	at := change.At
	if at.IsZero() {
		at = r.t.now()
	}

	res.Status = change.To
	res.UpdatedAt = at
	r.t.reservations[res.ID] = res

	if change.LotStatus != nil {
		if lot, ok := r.t.lots[res.LotID]; ok {
			lot.Status = *change.LotStatus
			lot.UpdatedAt = at
			r.t.lots[lot.ID] = lot
		}
	}
	return &res, nil
}

func (r reservationRepo) ListExpired(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	out := []models.Reservation{}
	for _, res := range r.t.reservations {
		if res.Status.IsOpen() && res.ExpiryDate != nil && res.ExpiryDate.Before(now) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryDate.Before(*out[j].ExpiryDate) })
	return out, nil
}

func (r reservationRepo) CountOpen(ctx context.Context) (int, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	n := 0
	for _, res := range r.t.reservations {
		if res.Status.IsOpen() {
			n++
		}
	}
	return n, nil
}

type documentRepo struct{ t *tables }

func (r documentRepo) Create(ctx context.Context, doc models.Document) (*models.Document, error) {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = models.DocumentPending
	}
	now := r.t.now()
	doc.CreatedAt, doc.UpdatedAt = now, now
	r.t.documents[doc.ID] = doc
	return &doc, nil
}

func (r documentRepo) Get(ctx context.Context, id string) (*models.Document, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	d, ok := r.t.documents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (r documentRepo) ListByUser(ctx context.Context, userID string) ([]models.Document, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	out := []models.Document{}
	for _, d := range r.t.documents {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r documentRepo) Review(ctx context.Context, id string, status models.DocumentStatus, notes string) (*models.Document, error) {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()

	d, ok := r.t.documents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	d.Status = status
	d.ReviewNotes = notes
	d.UpdatedAt = r.t.now()
	r.t.documents[id] = d
	return &d, nil
}

func (r documentRepo) CountByStatus(ctx context.Context, userID string) (map[models.DocumentStatus]int, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	counts := map[models.DocumentStatus]int{}
	for _, d := range r.t.documents {
		if userID == "" || d.UserID == userID {
			counts[d.Status]++
		}
	}
	return counts, nil
}

type ticketRepo struct{ t *tables }

func (r ticketRepo) Create(ctx context.Context, ticket models.SupportTicket, first models.TicketMessage) (*models.SupportTicket, error) {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()

	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.Status == "" {
		ticket.Status = models.TicketOpen
	}
	now := r.t.now()
	ticket.CreatedAt, ticket.UpdatedAt = now, now
	r.t.tickets[ticket.ID] = ticket

	if first.ID == "" {
		first.ID = uuid.NewString()
	}
	first.TicketID = ticket.ID
	first.CreatedAt = now
	r.t.messages[ticket.ID] = []models.TicketMessage{first}
	return &ticket, nil
}

func (r ticketRepo) Get(ctx context.Context, id string) (*models.SupportTicket, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	t, ok := r.t.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r ticketRepo) ListByUser(ctx context.Context, userID string) ([]models.SupportTicket, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	out := []models.SupportTicket{}
	for _, t := range r.t.tickets {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r ticketRepo) List(ctx context.Context, status models.TicketStatus) ([]models.SupportTicket, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	out := []models.SupportTicket{}
	for _, t := range r.t.tickets {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r ticketRepo) UpdateStatus(ctx context.Context, id string, status models.TicketStatus) (*models.SupportTicket, error) {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()

	t, ok := r.t.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = r.t.now()
	r.t.tickets[id] = t
	return &t, nil
}

func (r ticketRepo) AddMessage(ctx context.Context, msg models.TicketMessage, status *models.TicketStatus) (*models.TicketMessage, error) {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()

	t, ok := r.t.tickets[msg.TicketID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := r.t.now()
	msg.CreatedAt = now
	r.t.messages[t.ID] = append(r.t.messages[t.ID], msg)

	if status != nil {
		t.Status = *status
	}
	t.UpdatedAt = now
	r.t.tickets[t.ID] = t
	return &msg, nil
}

func (r ticketRepo) Messages(ctx context.Context, ticketID string) ([]models.TicketMessage, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	if _, ok := r.t.tickets[ticketID]; !ok {
		return nil, repository.ErrNotFound
	}
	return append([]models.TicketMessage{}, r.t.messages[ticketID]...), nil
}

func (r ticketRepo) CountOpen(ctx context.Context, userID string) (int, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	n := 0
	for _, t := range r.t.tickets {
		if t.Status.IsOpen() && (userID == "" || t.UserID == userID) {
			n++
		}
	}
	return n, nil
}

type savedLotRepo struct{ t *tables }

func savedKey(userID, lotID string) string { return userID + "\x00" + lotID }

func (r savedLotRepo) Save(ctx context.Context, userID, lotID string) (*models.SavedLot, error) {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()

	if _, ok := r.t.lots[lotID]; !ok {
		return nil, repository.ErrNotFound
	}
	key := savedKey(userID, lotID)
	if _, ok := r.t.saved[key]; ok {
		return nil, repository.ErrAlreadyExists
	}
	s := models.SavedLot{ID: uuid.NewString(), UserID: userID, LotID: lotID, CreatedAt: r.t.now()}
	r.t.saved[key] = s
	return &s, nil
}

func (r savedLotRepo) Delete(ctx context.Context, userID, lotID string) error {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()

	key := savedKey(userID, lotID)
	if _, ok := r.t.saved[key]; !ok {
		return repository.ErrNotFound
	}
	delete(r.t.saved, key)
	return nil
}

func (r savedLotRepo) ListByUser(ctx context.Context, userID string) ([]models.SavedLot, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	out := []models.SavedLot{}
	for _, s := range r.t.saved {
		if s.UserID != userID {
			continue
		}
		if l, ok := r.t.lots[s.LotID]; ok {
			lot := r.t.joinLot(l)
			s.Lot = &lot
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type profileRepo struct{ t *tables }

func (r profileRepo) Get(ctx context.Context, id string) (*models.Profile, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	p, ok := r.t.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r profileRepo) List(ctx context.Context) ([]models.Profile, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()

	out := make([]models.Profile, 0, len(r.t.profiles))
	for _, p := range r.t.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r profileRepo) Update(ctx context.Context, id string, update models.ProfileUpdate) (*models.Profile, error) {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()

	now := r.t.now()
	p, ok := r.t.profiles[id]
	if !ok {
		p = models.Profile{
			ID:               id,
			Role:             models.RoleUser,
			KYCStatus:        "pending",
			PreferredContact: models.ContactEmail,
			CreatedAt:        now,
		}
	}
	update.Apply(&p)
	p.UpdatedAt = now
	r.t.profiles[id] = p
	return &p, nil
}

func (r profileRepo) SetRole(ctx context.Context, id string, role models.UserRole) (*models.Profile, error) {
	r.t.mu.Lock()
	defer r.t.mu.Unlock()

	p, ok := r.t.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p.Role = role
	p.UpdatedAt = r.t.now()
	r.t.profiles[id] = p
	return &p, nil
}

func (r profileRepo) Count(ctx context.Context) (int, error) {
	r.t.mu.RLock()
	defer r.t.mu.RUnlock()
	return len(r.t.profiles), nil
}

type catalogWriter struct{ t *tables }

func (w catalogWriter) ReplaceCatalog(ctx context.Context, zones []models.Zone, lots []models.Lot) error {
	w.t.mu.Lock()
	defer w.t.mu.Unlock()

	now := w.t.now()
	w.t.saved = map[string]models.SavedLot{}
	w.t.reservations = map[string]models.Reservation{}
	w.t.zones = make(map[string]models.Zone, len(zones))
	w.t.lots = make(map[string]models.Lot, len(lots))
	for _, z := range zones {
		z.CreatedAt, z.UpdatedAt = now, now
		w.t.zones[z.ID] = z
	}
	for _, l := range lots {
		l.CreatedAt, l.UpdatedAt = now, now
		w.t.lots[l.ID] = l
	}
	return nil
}
