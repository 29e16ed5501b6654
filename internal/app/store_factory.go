package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/shrimpsizemoose/semla/internal/storage"
	"github.com/shrimpsizemoose/semla/internal/store"
	"github.com/shrimpsizemoose/semla/internal/store/postgres"
	"github.com/shrimpsizemoose/semla/internal/store/sqlite"
)

func NewStore(config *Config, publisher store.Publisher) (store.Store, error) {
	dsn := config.Database.DSN
	migrationsDir := config.Database.MigrationsDir
	if migrationsDir == "" {
		migrationsDir = "./migrations"
	}

	dbType := store.DBTypeSQLite
	if strings.HasPrefix(dsn, "postgres") {
		dbType = store.DBTypePostgres
	}

	switch dbType {
	case store.DBTypePostgres:
		return postgres.NewPostgresStore(dsn, migrationsDir, publisher)
	case store.DBTypeSQLite:
		return sqlite.NewSQLiteStore(dsn, migrationsDir, publisher)
	default:
		return nil, fmt.Errorf("unable to determine database type from DSN: %s", dsn)
	}
}

func NewBlobStore(config *Config) (storage.BlobStore, error) {
	switch config.Storage.Backend {
	case "b2":
		return storage.NewB2Store(
			context.Background(),
			config.Storage.B2AccountID,
			config.Storage.B2AppKey,
			config.Storage.Bucket,
		)
	case "fs", "":
		return storage.NewFSStore(config.Storage.Root, config.Storage.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", config.Storage.Backend)
	}
}
