package main

import (
	"context"
	"fmt"

	"ms-darshan/internal/config"
	"ms-darshan/internal/database"
	"ms-darshan/internal/database/migrations"
	"ms-darshan/internal/logger"
	slot_db "ms-darshan/internal/slots/db"
	slots "ms-darshan/internal/slots/service"

	"github.com/joho/godotenv"
)

// seed creates the default hourly slot grid for every configured temple.
func main() {
	log := logger.NewLogger()
	defer log.Close()

	_ = godotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if err := migrations.NewRunner(bunDB, log).MigrateUp(); err != nil {
		log.Fatal("DATABASE", err.Error())
	}

	svc := slots.NewSlotService(&slot_db.DB{Bun: bunDB}, nil, cfg.Booking, log)
	created, err := svc.SeedDefaultSlots(ctx)
	if err != nil {
		log.Fatal("SEED", fmt.Sprintf("seeding stopped after %d slots: %v", created, err))
	}
	log.LogProcess("SEED", fmt.Sprintf("created %d slots for %d temples", created, len(cfg.Booking.TempleIDs)))
}
