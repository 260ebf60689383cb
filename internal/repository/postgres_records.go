package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/parcela/internal/database"
	"github.com/stwalsh4118/parcela/internal/models"
)

const documentColumns = `id, user_id, type, file_name, file_url, status, review_notes, created_at, updated_at`

func documentDest(d *models.Document) []interface{} {
	return []interface{}{
		&d.ID, &d.UserID, &d.Type, &d.FileName, &d.FileURL, &d.Status, &d.ReviewNotes, &d.CreatedAt, &d.UpdatedAt,
	}
}

// documentRepository is the PostgreSQL DocumentRepository.
type documentRepository struct {
	db *database.Database
}

// NewDocumentRepository creates a PostgreSQL-backed DocumentRepository.
func NewDocumentRepository(db *database.Database) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc models.Document) (*models.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Status == "" {
		doc.Status = models.DocumentPending
	}

	var created models.Document
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO documents (id, user_id, type, file_name, file_url, status, review_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+documentColumns,
		doc.ID, doc.UserID, doc.Type, doc.FileName, doc.FileURL, string(doc.Status), doc.ReviewNotes,
	).Scan(documentDest(&created)...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert document for user %s: %w", doc.UserID, err)
	}
	return &created, nil
}

func (r *documentRepository) Get(ctx context.Context, id string) (*models.Document, error) {
	var d models.Document
	err := r.db.Pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id::text = $1`, id).
		Scan(documentDest(&d)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query document %s: %w", id, err)
	}
	return &d, nil
}

func (r *documentRepository) ListByUser(ctx context.Context, userID string) ([]models.Document, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(documentDest(&d)...); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *documentRepository) Review(ctx context.Context, id string, status models.DocumentStatus, notes string) (*models.Document, error) {
	var d models.Document
	err := r.db.Pool.QueryRow(ctx, `
		UPDATE documents SET status = $2, review_notes = $3, updated_at = now()
		WHERE id::text = $1
		RETURNING `+documentColumns, id, string(status), notes,
	).Scan(documentDest(&d)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to review document %s: %w", id, err)
	}
	return &d, nil
}

func (r *documentRepository) CountByStatus(ctx context.Context, userID string) (map[models.DocumentStatus]int, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT status, count(*) FROM documents
		WHERE $1 = '' OR user_id = $1
		GROUP BY status`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	defer rows.Close()

	counts := map[models.DocumentStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan document count: %w", err)
		}
		counts[models.DocumentStatus(status)] = n
	}
	return counts, rows.Err()
}

const ticketColumns = `id, user_id, subject, category, priority, description, preferred_contact, best_time, status, created_at, updated_at`

func ticketDest(t *models.SupportTicket) []interface{} {
	return []interface{}{
		&t.ID, &t.UserID, &t.Subject, &t.Category, &t.Priority, &t.Description,
		&t.PreferredContact, &t.BestTime, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	}
}

const messageColumns = `id, ticket_id, sender_id, message, is_admin, created_at`

func messageDest(m *models.TicketMessage) []interface{} {
	return []interface{}{&m.ID, &m.TicketID, &m.SenderID, &m.Message, &m.IsAdmin, &m.CreatedAt}
}

// ticketRepository is the PostgreSQL TicketRepository.
type ticketRepository struct {
	db *database.Database
}

// NewTicketRepository creates a PostgreSQL-backed TicketRepository.
func NewTicketRepository(db *database.Database) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket models.SupportTicket, first models.TicketMessage) (*models.SupportTicket, error) {
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.Status == "" {
		ticket.Status = models.TicketOpen
	}
	if first.ID == "" {
		first.ID = uuid.NewString()
	}

	var created models.SupportTicket
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO support_tickets (id, user_id, subject, category, priority, description, preferred_contact, best_time, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING `+ticketColumns,
			ticket.ID, ticket.UserID, ticket.Subject, string(ticket.Category), string(ticket.Priority),
			ticket.Description, string(ticket.PreferredContact), ticket.BestTime, string(ticket.Status),
		).Scan(ticketDest(&created)...); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO ticket_messages (id, ticket_id, sender_id, message, is_admin, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			first.ID, created.ID, first.SenderID, first.Message, first.IsAdmin, created.CreatedAt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ticket for user %s: %w", ticket.UserID, err)
	}
	return &created, nil
}

func (r *ticketRepository) Get(ctx context.Context, id string) (*models.SupportTicket, error) {
	var t models.SupportTicket
	err := r.db.Pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM support_tickets WHERE id::text = $1`, id).
		Scan(ticketDest(&t)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query ticket %s: %w", id, err)
	}
	return &t, nil
}

func (r *ticketRepository) ListByUser(ctx context.Context, userID string) ([]models.SupportTicket, error) {
	return r.query(ctx, `SELECT `+ticketColumns+` FROM support_tickets
		WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
}

func (r *ticketRepository) List(ctx context.Context, status models.TicketStatus) ([]models.SupportTicket, error) {
	return r.query(ctx, `SELECT `+ticketColumns+` FROM support_tickets
		WHERE $1 = '' OR status = $1 ORDER BY created_at DESC`, string(status))
}

func (r *ticketRepository) query(ctx context.Context, sql string, args ...interface{}) ([]models.SupportTicket, error) {
	rows, err := r.db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickets: %w", err)
	}
	defer rows.Close()

	tickets := []models.SupportTicket{}
	for rows.Next() {
		var t models.SupportTicket
		if err := rows.Scan(ticketDest(&t)...); err != nil {
			return nil, fmt.Errorf("failed to scan ticket row: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status models.TicketStatus) (*models.SupportTicket, error) {
	var t models.SupportTicket
	err := r.db.Pool.QueryRow(ctx, `
		UPDATE support_tickets SET status = $2, updated_at = now()
		WHERE id::text = $1
		RETURNING `+ticketColumns, id, string(status),
	).Scan(ticketDest(&t)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update ticket %s: %w", id, err)
	}
	return &t, nil
}

func (r *ticketRepository) AddMessage(ctx context.Context, msg models.TicketMessage, status *models.TicketStatus) (*models.TicketMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	var next *string
	if status != nil {
		s := string(*status)
		next = &s
	}

	var created models.TicketMessage
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE support_tickets SET status = COALESCE($2::text, status), updated_at = now()
			WHERE id::text = $1`, msg.TicketID, next)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return tx.QueryRow(ctx, `
			INSERT INTO ticket_messages (id, ticket_id, sender_id, message, is_admin)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+messageColumns,
			msg.ID, msg.TicketID, msg.SenderID, msg.Message, msg.IsAdmin,
		).Scan(messageDest(&created)...)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to add message to ticket %s: %w", msg.TicketID, err)
	}
	return &created, nil
}

func (r *ticketRepository) Messages(ctx context.Context, ticketID string) ([]models.TicketMessage, error) {
	if _, err := r.Get(ctx, ticketID); err != nil {
		return nil, err
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+messageColumns+` FROM ticket_messages
		WHERE ticket_id::text = $1 ORDER BY created_at, id`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticket messages: %w", err)
	}
	defer rows.Close()

	messages := []models.TicketMessage{}
	for rows.Next() {
		var m models.TicketMessage
		if err := rows.Scan(messageDest(&m)...); err != nil {
			return nil, fmt.Errorf("failed to scan ticket message row: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *ticketRepository) CountOpen(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `
		SELECT count(*) FROM support_tickets
		WHERE status IN ('open', 'waiting_on_user', 'waiting_on_support')
		AND ($1 = '' OR user_id = $1)`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count open tickets: %w", err)
	}
	return n, nil
}

// savedLotRepository is the PostgreSQL SavedLotRepository.
type savedLotRepository struct {
	db   *database.Database
	lots *lotRepository
}

// NewSavedLotRepository creates a PostgreSQL-backed SavedLotRepository.
func NewSavedLotRepository(db *database.Database) SavedLotRepository {
	return &savedLotRepository{db: db, lots: &lotRepository{db: db}}
}

func (r *savedLotRepository) Save(ctx context.Context, userID, lotID string) (*models.SavedLot, error) {
	var s models.SavedLot
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO saved_lots (id, user_id, lot_id) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, lot_id) DO NOTHING
		RETURNING id, user_id, lot_id, created_at`,
		uuid.NewString(), userID, lotID,
	).Scan(&s.ID, &s.UserID, &s.LotID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAlreadyExists
		}
		if pgErrorCode(err) == pgForeignKeyViolation {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to save lot %s: %w", lotID, err)
	}
	return &s, nil
}

func (r *savedLotRepository) Delete(ctx context.Context, userID, lotID string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM saved_lots WHERE user_id = $1 AND lot_id = $2`, userID, lotID)
	if err != nil {
		return fmt.Errorf("failed to unsave lot %s: %w", lotID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *savedLotRepository) ListByUser(ctx context.Context, userID string) ([]models.SavedLot, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, user_id, lot_id, created_at FROM saved_lots
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query saved lots: %w", err)
	}
	defer rows.Close()

	saved := []models.SavedLot{}
	var lotIDs []string
	for rows.Next() {
		var s models.SavedLot
		if err := rows.Scan(&s.ID, &s.UserID, &s.LotID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan saved lot row: %w", err)
		}
		saved = append(saved, s)
		lotIDs = append(lotIDs, s.LotID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating saved lot rows: %w", err)
	}

	lots, err := r.lots.byIDs(ctx, lotIDs)
	if err != nil {
		return nil, err
	}
	for i := range saved {
		if lot, ok := lots[saved[i].LotID]; ok {
			lot := lot
			saved[i].Lot = &lot
		}
	}
	return saved, nil
}

const profileColumns = `id, full_name, email, phone, secondary_phone, timezone, preferred_contact, address, role, kyc_status, created_at, updated_at`

func profileDest(p *models.Profile) []interface{} {
	return []interface{}{
		&p.ID, &p.FullName, &p.Email, &p.Phone, &p.SecondaryPhone, &p.Timezone,
		&p.PreferredContact, &p.Address, &p.Role, &p.KYCStatus, &p.CreatedAt, &p.UpdatedAt,
	}
}

// profileRepository is the PostgreSQL ProfileRepository.
type profileRepository struct {
	db *database.Database
}

// NewProfileRepository creates a PostgreSQL-backed ProfileRepository.
func NewProfileRepository(db *database.Database) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Get(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	err := r.db.Pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id).
		Scan(profileDest(&p)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query profile %s: %w", id, err)
	}
	return &p, nil
}

func (r *profileRepository) List(ctx context.Context) ([]models.Profile, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

	profiles := []models.Profile{}
	for rows.Next() {
		var p models.Profile
		if err := rows.Scan(profileDest(&p)...); err != nil {
			return nil, fmt.Errorf("failed to scan profile row: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (r *profileRepository) Update(ctx context.Context, id string, update models.ProfileUpdate) (*models.Profile, error) {
	var contact *string
	if update.PreferredContact != nil {
		c := string(*update.PreferredContact)
		contact = &c
	}

	var p models.Profile
	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO profiles (id, full_name, phone, secondary_phone, timezone, preferred_contact, address)
		VALUES ($1, COALESCE($2::text, ''), COALESCE($3::text, ''), COALESCE($4::text, ''),
			COALESCE($5::text, ''), COALESCE($6::text, 'email'), COALESCE($7::jsonb, '{}'))
		ON CONFLICT (id) DO UPDATE SET
			full_name         = COALESCE($2::text, profiles.full_name),
			phone             = COALESCE($3::text, profiles.phone),
			secondary_phone   = COALESCE($4::text, profiles.secondary_phone),
			timezone          = COALESCE($5::text, profiles.timezone),
			preferred_contact = COALESCE($6::text, profiles.preferred_contact),
			address           = COALESCE($7::jsonb, profiles.address),
			updated_at        = now()
		RETURNING `+profileColumns,
		id, update.FullName, update.Phone, update.SecondaryPhone, update.Timezone, contact, update.Address,
	).Scan(profileDest(&p)...)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile %s: %w", id, err)
	}
	return &p, nil
}

func (r *profileRepository) SetRole(ctx context.Context, id string, role models.UserRole) (*models.Profile, error) {
	var p models.Profile
	err := r.db.Pool.QueryRow(ctx, `
		UPDATE profiles SET role = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+profileColumns, id, string(role),
	).Scan(profileDest(&p)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to set role on profile %s: %w", id, err)
	}
	return &p, nil
}

func (r *profileRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM profiles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return n, nil
}

// NewPostgresStore wires every PostgreSQL repository onto one pool.
func NewPostgresStore(db *database.Database) *Store {
	return &Store{
		Zones:        NewZoneRepository(db),
		Lots:         NewLotRepository(db),
		Reservations: NewReservationRepository(db),
		Documents:    NewDocumentRepository(db),
		Tickets:      NewTicketRepository(db),
		SavedLots:    NewSavedLotRepository(db),
		Profiles:     NewProfileRepository(db),
		Catalog:      NewCatalogWriter(db),
	}
}
