// Command migrate applies the embedded schema migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/stwalsh4118/parcela/internal/config"
	"github.com/stwalsh4118/parcela/internal/database"
	"github.com/stwalsh4118/parcela/internal/logger"
)

func main() {
	list := flag.Bool("list", false, "print embedded migrations without applying them")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	if *list {
		migrations, err := database.Migrations()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read migrations: %v\n", err)
			os.Exit(1)
		}
		for _, m := range migrations {
			fmt.Println(m.Version)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel).Named("migrate")

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

	applied, err := db.Migrate(ctx)
	if err != nil {
		log.Error("Migration failed", err, map[string]interface{}{"applied": applied})
		db.Close()
		os.Exit(1)
	}
	log.Info("Migrations complete", map[string]interface{}{
		"applied": applied,
		"count":   len(applied),
	})
}
