package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stwalsh4118/parcela/internal/database"
	"github.com/stwalsh4118/parcela/internal/models"
)

// PostgreSQL error codes mapped onto repository errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

const reservationColumns = `
	r.id, r.user_id, r.lot_id, r.status, r.payment_plan, r.amount_due, r.amount_paid,
	r.reservation_fee, r.next_payment_due, r.expiry_date, r.created_at, r.updated_at`

func reservationDest(r *models.Reservation) []interface{} {
	return []interface{}{
		&r.ID, &r.UserID, &r.LotID, &r.Status, &r.PaymentPlan, &r.AmountDue, &r.AmountPaid,
		&r.ReservationFee, &r.NextPaymentDue, &r.ExpiryDate, &r.CreatedAt, &r.UpdatedAt,
	}
}

// reservationRepository is the PostgreSQL ReservationRepository.
type reservationRepository struct {
	db   *database.Database
	lots *lotRepository
}

// NewReservationRepository creates a PostgreSQL-backed ReservationRepository.
func NewReservationRepository(db *database.Database) ReservationRepository {
	return &reservationRepository{db: db, lots: &lotRepository{db: db}}
}

// ReserveLot performs the available -> reserved compare-and-swap and the
// reservation insert in one transaction. The partial unique index on open
// reservations per lot backs the same guarantee.
func (r *reservationRepository) ReserveLot(ctx context.Context, res models.Reservation) (*models.Reservation, error) {
	var created models.Reservation
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE lots SET status = 'reserved', updated_at = now()
			WHERE id = $1 AND status = 'available'`, res.LotID)
		if err != nil {
			return fmt.Errorf("failed to claim lot %s: %w", res.LotID, err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lots WHERE id = $1)`, res.LotID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check lot %s: %w", res.LotID, err)
			}
			if !exists {
				return ErrNotFound
			}
			return ErrLotUnavailable
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO reservations AS r (id, user_id, lot_id, status, payment_plan, amount_due,
				amount_paid, reservation_fee, next_payment_due, expiry_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
			RETURNING `+reservationColumns,
			res.ID, res.UserID, res.LotID, string(res.Status), string(res.PaymentPlan), res.AmountDue,
			res.AmountPaid, res.ReservationFee, res.NextPaymentDue, res.ExpiryDate, res.CreatedAt,
		).Scan(reservationDest(&created)...)
		if err != nil {
			if pgErrorCode(err) == pgUniqueViolation {
				return ErrLotUnavailable
			}
			return fmt.Errorf("failed to insert reservation for lot %s: %w", res.LotID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *reservationRepository) Get(ctx context.Context, id string) (*models.ReservationWithLot, error) {
	var res models.ReservationWithLot
	err := r.db.Pool.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations r WHERE r.id::text = $1`, id).
		Scan(reservationDest(&res.Reservation)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query reservation %s: %w", id, err)
	}

	lots, err := r.lots.byIDs(ctx, []string{res.LotID})
	if err != nil {
		return nil, err
	}
	if lot, ok := lots[res.LotID]; ok {
		res.Lot = &lot
	}
	return &res, nil
}

func (r *reservationRepository) List(ctx context.Context, filter models.ReservationFilter) ([]models.ReservationWithLot, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations r WHERE 1 = 1`
	var args []interface{}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(" AND r.user_id = $%d", len(args))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		query += fmt.Sprintf(" AND r.status = ANY($%d)", len(args))
	}
	query += " ORDER BY r.created_at DESC"

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	out := []models.ReservationWithLot{}
	var lotIDs []string
	for rows.Next() {
		var res models.ReservationWithLot
		if err := rows.Scan(reservationDest(&res.Reservation)...); err != nil {
			return nil, fmt.Errorf("failed to scan reservation row: %w", err)
		}
		out = append(out, res)
		lotIDs = append(lotIDs, res.LotID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reservation rows: %w", err)
	}

	lots, err := r.lots.byIDs(ctx, lotIDs)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if lot, ok := lots[out[i].LotID]; ok {
			lot := lot
			out[i].Lot = &lot
		}
	}
	return out, nil
}

// Transition updates the reservation status conditionally on its current
// status and, when requested, the lot status in the same transaction.
func (r *reservationRepository) Transition(ctx context.Context, change StatusChange) (*models.Reservation, error) {
	at := change.At
	if at.IsZero() {
		at = time.Now()
	}

	var updated models.Reservation
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE reservations r SET status = $3, updated_at = $4
			WHERE r.id::text = $1 AND r.status = $2
			RETURNING `+reservationColumns,
			change.ReservationID, string(change.From), string(change.To), at,
		).Scan(reservationDest(&updated)...)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("failed to update reservation %s: %w", change.ReservationID, err)
			}
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reservations WHERE id::text = $1)`,
				change.ReservationID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check reservation %s: %w", change.ReservationID, err)
			}
			if !exists {
				return ErrNotFound
			}
			return ErrStaleStatus
		}

		if change.LotStatus != nil {
			if _, err := tx.Exec(ctx, `UPDATE lots SET status = $2, updated_at = $3 WHERE id = $1`,
				updated.LotID, string(*change.LotStatus), at); err != nil {
				return fmt.Errorf("failed to update lot %s: %w", updated.LotID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *reservationRepository) ListExpired(ctx context.Context, now time.Time) ([]models.Reservation, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+reservationColumns+` FROM reservations r
		WHERE r.status IN ('pending', 'active') AND r.expiry_date < $1
		ORDER BY r.expiry_date`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired reservations: %w", err)
	}
	defer rows.Close()

	out := []models.Reservation{}
	for rows.Next() {
		var res models.Reservation
		if err := rows.Scan(reservationDest(&res)...); err != nil {
			return nil, fmt.Errorf("failed to scan reservation row: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *reservationRepository) CountOpen(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM reservations WHERE status IN ('pending', 'active')`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count open reservations: %w", err)
	}
	return n, nil
}
