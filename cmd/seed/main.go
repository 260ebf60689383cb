// Command seed regenerates the zone and lot catalogue. It deletes every
// zone, lot and reservation before writing.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stwalsh4118/parcela/internal/config"
	"github.com/stwalsh4118/parcela/internal/database"
	"github.com/stwalsh4118/parcela/internal/events"
	"github.com/stwalsh4118/parcela/internal/logger"
	"github.com/stwalsh4118/parcela/internal/models"
	"github.com/stwalsh4118/parcela/internal/repository"
	"github.com/stwalsh4118/parcela/internal/services"
	"github.com/stwalsh4118/parcela/internal/subdivision"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply migrations before seeding")
	cols := flag.Int("cols", subdivision.DefaultGrid().Columns, "lot columns per zone")
	rows := flag.Int("rows", subdivision.DefaultGrid().Rows, "lot rows per zone")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	if *migrate {
		applied, err := db.Migrate(ctx)
		if err != nil {
			log.Fatal("Migration failed", err, map[string]interface{}{"applied": applied})
		}
		log.Info("Migrations applied", map[string]interface{}{"count": len(applied)})
	}

	grid := subdivision.DefaultGrid()
	grid.Columns, grid.Rows = *cols, *rows

	store := repository.NewPostgresStore(db)
	summary, err := services.NewSeedService(store.Catalog, store.Lots, log).Seed(ctx, subdivision.Catalog(), grid)
	if err != nil {
		log.Fatal("Seed failed", err, map[string]interface{}{"cols": grid.Columns, "rows": grid.Rows})
	}

	// Running servers rebuild their map sources on this event.
	bus := events.New(cfg.NATS, log)
	defer bus.Close()
	if err := bus.Publish(ctx, events.SubjectLotStatusChanged, events.Event{OccurredAt: time.Now()}); err != nil {
		log.Warn("Failed to announce catalogue change", map[string]interface{}{"error": err.Error()})
	}

	fmt.Printf("Seeded %d zones and %d lots (%d available, %d reserved, %d sold)\n",
		summary.Zones, summary.Lots,
		summary.ByStatus[models.LotAvailable], summary.ByStatus[models.LotReserved], summary.ByStatus[models.LotSold])
}
