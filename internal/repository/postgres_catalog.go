package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/parcela/internal/database"
	"github.com/stwalsh4118/parcela/internal/models"
)

// SeedBatchSize is how many lots are inserted per round trip.
const SeedBatchSize = 50

const zoneColumns = `
	z.id, z.name, z.zoning_type, z.base_price, z.lot_size_sqm, z.description,
	z.corners, z.image_urls, z.model_3d_url, z.camera_orbit, z.created_at, z.updated_at`

const lotColumns = `
	l.id, l.zone_id, l.label, l.price, l.size_sqm, l.size_sqft, l.status,
	l.polygon, l.center, l.grid_row, l.grid_col, l.feature_id, l.created_at, l.updated_at`

func zoneDest(z *models.Zone) []interface{} {
	return []interface{}{
		&z.ID, &z.Name, &z.ZoningType, &z.BasePrice, &z.LotSizeSqm, &z.Description,
		&z.Corners, &z.ImageURLs, &z.Model3DURL, &z.CameraOrbit, &z.CreatedAt, &z.UpdatedAt,
	}
}

func lotDest(l *models.Lot) []interface{} {
	return []interface{}{
		&l.ID, &l.ZoneID, &l.Label, &l.Price, &l.SizeSqm, &l.SizeSqft, &l.Status,
		&l.Polygon, &l.Center, &l.GridRow, &l.GridCol, &l.FeatureID, &l.CreatedAt, &l.UpdatedAt,
	}
}

// zoneRepository is the PostgreSQL ZoneRepository.
type zoneRepository struct {
	db *database.Database
}

// NewZoneRepository creates a PostgreSQL-backed ZoneRepository.
func NewZoneRepository(db *database.Database) ZoneRepository {
	return &zoneRepository{db: db}
}

func (r *zoneRepository) List(ctx context.Context) ([]models.Zone, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT `+zoneColumns+` FROM zones z ORDER BY z.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query zones: %w", err)
	}
	defer rows.Close()

	zones := []models.Zone{}
	for rows.Next() {
		var z models.Zone
		if err := rows.Scan(zoneDest(&z)...); err != nil {
			return nil, fmt.Errorf("failed to scan zone row: %w", err)
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating zone rows: %w", err)
	}
	return zones, nil
}

func (r *zoneRepository) Get(ctx context.Context, id string) (*models.Zone, error) {
	var z models.Zone
	err := r.db.Pool.QueryRow(ctx, `SELECT `+zoneColumns+` FROM zones z WHERE z.id = $1`, id).Scan(zoneDest(&z)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query zone %s: %w", id, err)
	}
	return &z, nil
}

func (r *zoneRepository) Update(ctx context.Context, id string, update models.ZoneUpdate) (*models.Zone, error) {
	query := `
		UPDATE zones z SET
			name = COALESCE($2, name),
			zoning_type = COALESCE($3, zoning_type),
			base_price = COALESCE($4, base_price),
			lot_size_sqm = COALESCE($5, lot_size_sqm),
			description = COALESCE($6, description),
			updated_at = now()
		WHERE z.id = $1
		RETURNING ` + zoneColumns

	var z models.Zone
	err := r.db.Pool.QueryRow(ctx, query,
		id, update.Name, update.ZoningType, update.BasePrice, update.LotSizeSqm, update.Description,
	).Scan(zoneDest(&z)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update zone %s: %w", id, err)
	}
	return &z, nil
}

// lotRepository is the PostgreSQL LotRepository.
type lotRepository struct {
	db *database.Database
}

// NewLotRepository creates a PostgreSQL-backed LotRepository.
func NewLotRepository(db *database.Database) LotRepository {
	return &lotRepository{db: db}
}

const lotJoinQuery = `SELECT ` + lotColumns + `,` + zoneColumns + `
	FROM lots l JOIN zones z ON z.id = l.zone_id`

func scanLotWithZone(row pgx.Row) (*models.LotWithZone, error) {
	var lot models.LotWithZone
	var zone models.Zone
	dest := append(lotDest(&lot.Lot), zoneDest(&zone)...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	lot.Zone = &zone
	return &lot, nil
}

func (r *lotRepository) List(ctx context.Context, filter models.LotFilter) ([]models.LotWithZone, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("l.status = $%d", len(args)))
	}
	if filter.ZoneID != "" {
		args = append(args, filter.ZoneID)
		where = append(where, fmt.Sprintf("l.zone_id = $%d", len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(l.id ILIKE $%d OR l.label ILIKE $%d OR z.name ILIKE $%d)", n, n, n))
	}

	query := lotJoinQuery
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY l.feature_id"

	return r.queryLots(ctx, query, args...)
}

func (r *lotRepository) queryLots(ctx context.Context, query string, args ...interface{}) ([]models.LotWithZone, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	lots := []models.LotWithZone{}
	for rows.Next() {
		lot, err := scanLotWithZone(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot row: %w", err)
		}
		lots = append(lots, *lot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lot rows: %w", err)
	}
	return lots, nil
}

// byIDs loads lots keyed by id.
func (r *lotRepository) byIDs(ctx context.Context, ids []string) (map[string]models.LotWithZone, error) {
	out := make(map[string]models.LotWithZone, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	lots, err := r.queryLots(ctx, lotJoinQuery+` WHERE l.id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for _, l := range lots {
		out[l.ID] = l
	}
	return out, nil
}

func (r *lotRepository) Get(ctx context.Context, id string) (*models.LotWithZone, error) {
	lot, err := scanLotWithZone(r.db.Pool.QueryRow(ctx, lotJoinQuery+` WHERE l.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query lot %s: %w", id, err)
	}
	return lot, nil
}

func (r *lotRepository) GetByFeatureID(ctx context.Context, featureID int64) (*models.LotWithZone, error) {
	lot, err := scanLotWithZone(r.db.Pool.QueryRow(ctx, lotJoinQuery+` WHERE l.feature_id = $1`, featureID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query lot by feature %d: %w", featureID, err)
	}
	return lot, nil
}

func (r *lotRepository) Update(ctx context.Context, id string, update models.LotUpdate) (*models.LotWithZone, error) {
	var status *string
	if update.Status != nil {
		s := string(*update.Status)
		status = &s
	}

	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE lots SET
			price = COALESCE($2, price),
			status = COALESCE($3, status),
			updated_at = now()
		WHERE id = $1`, id, update.Price, status)
	if err != nil {
		return nil, fmt.Errorf("failed to update lot %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *lotRepository) CountByStatus(ctx context.Context) (map[models.LotStatus]int, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT status, count(*) FROM lots GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count lots: %w", err)
	}
	defer rows.Close()

	counts := map[models.LotStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan lot count: %w", err)
		}
		counts[models.LotStatus(status)] = n
	}
	return counts, rows.Err()
}

// catalogWriter is the PostgreSQL CatalogWriter.
type catalogWriter struct {
	db *database.Database
}

// NewCatalogWriter creates a PostgreSQL-backed CatalogWriter.
func NewCatalogWriter(db *database.Database) CatalogWriter {
	return &catalogWriter{db: db}
}

// ReplaceCatalog clears reservations, lots and zones and inserts the new
// catalogue in one transaction, batching lot inserts.
func (w *catalogWriter) ReplaceCatalog(ctx context.Context, zones []models.Zone, lots []models.Lot) error {
	return w.db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM saved_lots`,
			`DELETE FROM reservations`,
			`DELETE FROM lots`,
			`DELETE FROM zones`,
		} {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to clear catalogue (%s): %w", stmt, err)
			}
		}

		for _, z := range zones {
			_, err := tx.Exec(ctx, `
				INSERT INTO zones (id, name, zoning_type, base_price, lot_size_sqm, description,
					corners, image_urls, model_3d_url, camera_orbit)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
				z.ID, z.Name, z.ZoningType, z.BasePrice, z.LotSizeSqm, z.Description,
				z.Corners, z.ImageURLs, z.Model3DURL, z.CameraOrbit,
			)
			if err != nil {
				return fmt.Errorf("failed to insert zone %s: %w", z.ID, err)
			}
		}

		for start := 0; start < len(lots); start += SeedBatchSize {
			end := start + SeedBatchSize
			if end > len(lots) {
				end = len(lots)
			}
			batch := &pgx.Batch{}
			for _, l := range lots[start:end] {
				batch.Queue(`
					INSERT INTO lots (id, zone_id, label, price, size_sqm, size_sqft, status,
						polygon, center, grid_row, grid_col, feature_id)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
					l.ID, l.ZoneID, l.Label, l.Price, l.SizeSqm, l.SizeSqft, string(l.Status),
					l.Polygon, l.Center, l.GridRow, l.GridCol, l.FeatureID,
				)
			}
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("failed to insert lots %d-%d: %w", start, end, err)
			}
		}
		return nil
	})
}
