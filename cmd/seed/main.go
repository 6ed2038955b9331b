// Package main seeds a team catalog, demo technician stock and a ticket, then
// prints a development token for the technician.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"fieldledger/internal/app"
	"fieldledger/internal/config"
	appctx "fieldledger/internal/core/context"
	"fieldledger/internal/domain/auth"
	"fieldledger/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	technicianID := flag.String("technician", "tech-demo", "technician id")
	technicianName := flag.String("name", "Demo Technician", "technician display name")
	teamID := flag.String("team", "team-demo", "team id")
	ticketID := flag.String("ticket", "TCK-1", "ticket to create, empty to skip")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: true})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx := context.Background()

	store, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer store.Close()

	if cfg.Database.Driver == config.DriverMemory {
		log.Warn("memory driver: seeded data is lost when this process exits")
	}

	cat, err := app.DefaultCatalog(cfg.Catalog)
	if err != nil {
		log.Fatalw("failed to load catalog", "error", err)
	}
	if err := app.SeedCatalog(ctx, store, *teamID, cat); err != nil {
		log.Fatalw("failed to seed catalog", "team_id", *teamID, "error", err)
	}
	log.Infow("catalog seeded", "team_id", *teamID, "entries", len(cat.Entries))

	if err := app.SeedDemoStock(ctx, store, *technicianID, *teamID); err != nil {
		log.Fatalw("failed to seed stock", "technician_id", *technicianID, "error", err)
	}
	log.Infow("stock seeded", "technician_id", *technicianID)

	if *ticketID != "" {
		if err := store.EnsureTicket(ctx, *ticketID); err != nil {
			log.Fatalw("failed to create ticket", "ticket_id", *ticketID, "error", err)
		}
		log.Infow("ticket ready", "ticket_id", *ticketID)
	}

	jwtService := auth.NewJWTService(auth.JWTConfig{
		Secret:         cfg.Auth.JWTSecret,
		Issuer:         cfg.Auth.Issuer,
		AccessTokenTTL: cfg.Auth.TokenTTL,
	})
	token, expiresAt, err := jwtService.Generate(appctx.Technician{
		TechnicianID: *technicianID,
		TeamID:       *teamID,
		Name:         *technicianName,
	})
	if err != nil {
		log.Fatalw("failed to issue token", "error", err)
	}

	fmt.Printf("token (expires %s):\n%s\n", expiresAt.Format("2006-01-02 15:04"), token)
	_ = log.Sync()
}
