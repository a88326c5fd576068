// migrate applies or rolls back the embedded schema migrations.
package main

import (
	"flag"
	"log"

	"github.com/sbguangha/tianyishenshu/internal/config"
	"github.com/sbguangha/tianyishenshu/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := migrate.Run(cfg.DatabaseURL(), *direction); err != nil {
		log.Fatalf("Migration %s failed: %v", *direction, err)
	}
	log.Printf("Migration %s applied", *direction)
}
