// Package persistence selects the persistent store backend.
package persistence

import (
	"fmt"
	"os"

	"herdcore/internal/contract"
	"herdcore/internal/core"
	"herdcore/internal/infra/persistence/postgres"
	"herdcore/internal/infra/persistence/sqlite"
	"herdcore/pkg/domain"
)

// Driver identifies a concrete persistent storage implementation.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Open selects a backend using environment variables. Defaults to sqlite
// when unset.
//
//	HERDCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	HERDCORE_SQLITE_PATH: path to sqlite file (default ./herdcore.db)
//	HERDCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func Open(registry *contract.Registry) (domain.PersistentStore, error) {
	driver := os.Getenv("HERDCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(DriverSQLite)
	}
	switch Driver(driver) {
	case DriverMemory:
		return core.NewStore(registry), nil
	case DriverSQLite:
		return sqlite.NewStore(os.Getenv("HERDCORE_SQLITE_PATH"), registry)
	case DriverPostgres:
		return postgres.NewStore(os.Getenv("HERDCORE_POSTGRES_DSN"), registry)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
