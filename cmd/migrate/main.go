package main

import (
	"errors"
	"flag"
	"log"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/pkg/config"
	"github.com/noah-isme/tutorhub-api/pkg/logger"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding the *.up.sql and *.down.sql files")
	steps := flag.Int("steps", 0, "number of migrations to apply for up/down; 0 applies all")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	abs, err := filepath.Abs(*dir)
	if err != nil {
		logr.Fatal("resolve migrations directory", zap.Error(err))
	}

	m, err := migrate.New("file://"+abs, cfg.Database.URL())
	if err != nil {
		logr.Fatal("open migrations", zap.Error(err))
	}
	defer m.Close() //nolint:errcheck

	cmd := "up"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}

	switch cmd {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			logr.Fatal("read migration version", zap.Error(verr))
		}
		logr.Info("migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return
	default:
		logr.Fatal("unknown command, expected up, down or version", zap.String("command", cmd))
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logr.Fatal("migration failed", zap.String("command", cmd), zap.Error(err))
	}
	logr.Info("migration complete", zap.String("command", cmd))
}
