// Command sweep runs a single retention pass and exits. Intended for cron
// deployments where the in-process sweeper is disabled; the result lands on
// stdout as JSON for log scraping.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"parley/internal/bootstrap"
	"parley/internal/config"
	"parley/internal/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, redisClient, err := bootstrap.InitRuntime(cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	srv, err := server.NewServerWithDeps(cfg, db, redisClient)
	if err != nil {
		log.Fatalf("Failed to wire services: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result := srv.Sweeper().RunOnce(ctx)
	if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
}
