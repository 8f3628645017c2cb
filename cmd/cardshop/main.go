package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/dora-gg/cardshop/internal/app"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	migrateOnly := flag.Bool("migrate", false, "apply database migrations and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *migrateOnly {
		if errMigrate := app.Migrate(ctx, *configPath); errMigrate != nil {
			log.Errorf("migrate: %v", errMigrate)
			os.Exit(1)
		}
		return
	}

	if errRun := app.Run(ctx, *configPath); errRun != nil {
		log.Errorf("server: %v", errRun)
		os.Exit(1)
	}
}
