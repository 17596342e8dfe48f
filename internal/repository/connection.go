package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

type Credentials struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SQLitePath string
}

func (c *Credentials) DSN() string {
	if c.Driver == DriverSQLite {
		return fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", c.SQLitePath)
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.DBName)
}

// Connect opens and pings the store. SQLite is limited to a single
// connection, which serializes writers the way row locks do on PostgreSQL.
func Connect(ctx context.Context, cred *Credentials) (*sqlx.DB, error) {
	switch cred.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cred.Driver)
	}

	db, err := sqlx.ConnectContext(ctx, cred.Driver, cred.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cred.Driver, err)
	}

	if cred.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(100)
		db.SetMaxIdleConns(10)
	}
	return db, nil
}
