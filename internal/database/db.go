package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported values of Options.Driver.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Options describes how to reach the store.  Path is only used by sqlite;
// the network fields only by mysql and postgres.
type Options struct {
	Driver string
	User   string
	Pass   string
	Host   string
	Port   string
	Name   string
	Path   string
}

// DSN renders the driver specific connection string.
func (o Options) DSN() (string, error) {
	switch o.Driver {
	case DriverMySQL, "":
		auth := o.User
		if o.Pass != "" {
			auth = fmt.Sprintf("%s:%s", o.User, o.Pass)
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			auth, o.Host, o.Port, o.Name), nil
	case DriverPostgres:
		u := url.URL{
			Scheme:   "postgres",
			Host:     o.Host + ":" + o.Port,
			Path:     "/" + o.Name,
			RawQuery: "sslmode=disable&timezone=UTC",
		}
		if o.Pass != "" {
			u.User = url.UserPassword(o.User, o.Pass)
		} else {
			u.User = url.User(o.User)
		}
		return u.String(), nil
	case DriverSQLite:
		if o.Path == "" {
			return "", fmt.Errorf("sqlite requires a database path")
		}
		return "file:" + o.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite", nil
	}
	return "", fmt.Errorf("unsupported database driver %q", o.Driver)
}

// Open connects to the configured store and verifies the connection.
func Open(opts Options) (*sqlx.DB, error) {
	if opts.Driver == "" {
		opts.Driver = DriverMySQL
	}
	dsn, err := opts.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(opts.Driver, dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	if opts.Driver == DriverSQLite {
		// one writer at a time; a single connection avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
