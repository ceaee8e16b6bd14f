package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// ConnectionConfig satisfies the go-persistence-bun config contract.
type ConnectionConfig struct {
	Driver      string
	DSN         string
	Debug       bool
	PingTimeout time.Duration
}

func (c ConnectionConfig) GetDebug() bool { return c.Debug }

func (c ConnectionConfig) GetDriver() string { return c.Driver }

func (c ConnectionConfig) GetServer() string { return c.DSN }

func (c ConnectionConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

func (c ConnectionConfig) GetOtelIdentifier() string { return "go-pids" }

// Open builds a persistence client for postgres or sqlite3. Migrations are
// registered by the caller.
func Open(cfg ConnectionConfig) (*persistence.Client, error) {
	driver := strings.TrimSpace(strings.ToLower(cfg.Driver))
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}

	var dialect schema.Dialect
	switch driver {
	case DriverPostgres:
		dialect = pgdialect.New()
	case DriverSQLite, "sqlite":
		driver = DriverSQLite
		dialect = sqlitedialect.New()
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", cfg.Driver)
	}
	cfg.Driver = driver

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: persistence client: %w", err)
	}
	return client, nil
}
