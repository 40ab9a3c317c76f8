package main

import (
	"context"
	"flag"
	"fmt"

	"ms-darshan/internal/config"
	"ms-darshan/internal/database"
	"ms-darshan/internal/database/migrations"
	"ms-darshan/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	down := flag.Bool("down", false, "roll back every migration")
	to := flag.Uint("to", 0, "migrate up or down to this version")
	flag.Parse()

	log := logger.NewLogger()
	defer log.Close()

	_ = godotenv.Load()
	cfg := config.Load()

	bunDB, err := database.Connect(context.Background(), cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, log)
	defer runner.Close()

	switch {
	case *down:
		err = runner.MigrateDown()
	case *to > 0:
		err = runner.MigrateTo(*to)
	default:
		err = runner.MigrateUp()
	}
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}

	version, dirty, err := runner.Version()
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	log.LogDatabase("MIGRATE", "schema", fmt.Sprintf("version %d (dirty=%v)", version, dirty))
}
