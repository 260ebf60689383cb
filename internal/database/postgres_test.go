package database

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/parcela/internal/config"
)

// testConfig points at a local PostgreSQL, overridable through PARCELA_DB_*.
func testConfig() config.DatabaseConfig {
	env := func(key, fallback string) string {
		if v := os.Getenv("PARCELA_DB_" + key); v != "" {
			return v
		}
		return fallback
	}
	return config.DatabaseConfig{
		Host:     env("HOST", "localhost"),
		Port:     env("PORT", "5432"),
		Name:     env("NAME", "parcela_test"),
		User:     env("USER", "postgres"),
		Password: env("PASSWORD", "postgres"),
		PoolMin:  1,
		PoolMax:  4,
	}
}

// connect opens a pool or skips when no database is reachable.
func connect(t *testing.T, cfg config.DatabaseConfig) *Database {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := NewPostgresPool(ctx, cfg)
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func TestNewPostgresPool_Unreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	cfg := testConfig()
	cfg.Host = "parcela-db.invalid"

	db, err := NewPostgresPool(ctx, cfg)
	assert.Error(t, err)
	assert.Nil(t, db)
}

func TestDatabase_PoolLifecycle(t *testing.T) {
	cfg := testConfig()
	cfg.PoolMax = 6
	db := connect(t, cfg)
	ctx := context.Background()

	require.NoError(t, db.Ping(ctx))
	stats := db.Stats()
	require.NotNil(t, stats)
	assert.Equal(t, int32(6), stats.MaxConns())

	db.Close()
	assert.Error(t, db.Ping(ctx), "a closed pool refuses pings")
	assert.NotPanics(t, db.Close)
}

func TestMigrations_Embedded(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, "0001_init", migrations[0].Version)
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
	assert.Contains(t, migrations[0].SQL, "uq_reservations_open_lot",
		"at most one open reservation per lot is enforced by the schema")
}

func TestMigrate_Idempotent(t *testing.T) {
	db := connect(t, testConfig())
	ctx := context.Background()

	_, err := db.Migrate(ctx)
	require.NoError(t, err)

	applied, err := db.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := connect(t, testConfig())
	ctx := context.Background()

	_, err := db.Pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS tx_scratch (v INT)`)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = db.Pool.Exec(context.Background(), `DROP TABLE IF EXISTS tx_scratch`) })

	abort := errors.New("abort")
	err = db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO tx_scratch (v) VALUES (1)`); err != nil {
			return err
		}
		return abort
	})
	require.ErrorIs(t, err, abort)

	var n int
	require.NoError(t, db.Pool.QueryRow(ctx, `SELECT count(*) FROM tx_scratch`).Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO tx_scratch (v) VALUES (2)`)
		return err
	}))
	require.NoError(t, db.Pool.QueryRow(ctx, `SELECT count(*) FROM tx_scratch`).Scan(&n))
	assert.Equal(t, 1, n)
}
