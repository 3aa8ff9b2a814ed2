package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/mdobak/go-xerrors"

	"github.com/Anuj2862/EcoSort-AI/config"
	"github.com/Anuj2862/EcoSort-AI/db"
	"github.com/Anuj2862/EcoSort-AI/utils"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Expected 'serve' or 'migrate' subcommand")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	switch os.Args[1] {
	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		protocol := serveCmd.String("proto", cfg.Protocol, "Protocol to use (http or https)")
		port := serveCmd.String("p", cfg.Port, "Port to use")
		serveCmd.Parse(os.Args[2:])

		cfg.Protocol = *protocol
		cfg.Port = *port
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid config: %v", err)
		}
		serve(cfg)
	case "migrate":
		migrate(cfg)
	default:
		fmt.Println("Expected 'serve' or 'migrate' subcommand")
		os.Exit(1)
	}
}

// migrate brings an existing database up to the current schema.
func migrate(cfg config.Config) {
	ctx := context.Background()

	store, err := db.NewStore(ctx, cfg)
	if err != nil {
		utils.GetLogger().ErrorContext(ctx, "Database migration failed.", slog.Any("error", xerrors.New(err)))
		os.Exit(1)
	}
	defer store.Close()

	log.Printf("Database migration completed (%s)", cfg.StoreDriver)
}
