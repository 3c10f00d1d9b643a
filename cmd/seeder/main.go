//cmd/seeder/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/unclebandit/directmail-scheduler/internal/config"
	"github.com/unclebandit/directmail-scheduler/internal/db"
	"github.com/unclebandit/directmail-scheduler/internal/logger"
)

func main() {
	seedDir := flag.String("seed", "seed", "directory of .sql seed files, empty to only migrate")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	log := logger.New(cfg.Env)

	if err := db.Migrate(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		log.Error("migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("migrations applied", slog.String("dir", cfg.MigrationsDir))

	if *seedDir == "" {
		return
	}

	conn, err := db.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Error("database connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer conn.Close()

	seedFiles, err := filepath.Glob(filepath.Join(*seedDir, "*.sql"))
	if err != nil {
		log.Error("invalid seed directory", slog.String("error", err.Error()))
		os.Exit(1)
	}
	sort.Strings(seedFiles)

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			log.Error("failed to read seed file", slog.String("file", file), slog.String("error", err.Error()))
			os.Exit(1)
		}

		if _, err := conn.Exec(string(content)); err != nil {
			log.Error("failed to execute seed file", slog.String("file", file), slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Printf("Seeded: %s\n", file)
	}

	fmt.Println("Database seeding completed successfully!")
}
