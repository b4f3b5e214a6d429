package core

import (
	"fmt"
	"os"

	"signalsai/internal/infra/persistence/memory"
	"signalsai/internal/infra/persistence/postgres"
	"signalsai/internal/infra/persistence/sqlite"
	"signalsai/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig selects and parameterizes the persistent backend.
type StorageConfig struct {
	Driver      StorageDriver `yaml:"driver"`
	SQLitePath  string        `yaml:"sqlite_path"`
	PostgresDSN string        `yaml:"postgres_dsn"`
}

// StorageConfigFromEnv reads backend selection from the environment.
// Defaults to sqlite when unset.
//
//	SIGNALSAI_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	SIGNALSAI_SQLITE_PATH: path to sqlite file (default ./signalsai.db)
//	SIGNALSAI_POSTGRES_DSN: postgres DSN when driver=postgres
func StorageConfigFromEnv() StorageConfig {
	driver := StorageDriver(os.Getenv("SIGNALSAI_STORAGE_DRIVER"))
	if driver == "" {
		driver = StorageSQLite
	}
	return StorageConfig{
		Driver:      driver,
		SQLitePath:  os.Getenv("SIGNALSAI_SQLITE_PATH"),
		PostgresDSN: os.Getenv("SIGNALSAI_POSTGRES_DSN"),
	}
}

// OpenPersistentStore opens the configured backend with the default rule set
// installed.
func OpenPersistentStore(cfg StorageConfig) (PersistentStore, error) {
	engine := domain.NewRulesEngine()
	RegisterDefaultRules(engine)
	switch cfg.Driver {
	case StorageMemory, "":
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath, engine)
	case StoragePostgres:
		return postgres.NewStore(cfg.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
