// Package config loads application configuration from environment variables.
// main builds one Config at start-up and hands the pieces each component
// needs to its constructor; nothing below main reads the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/iliyamo/ferry-reservation/internal/database"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBDriver string // mysql, postgres or sqlite
	DBUser   string // database username
	DBPass   string // database password (optional)
	DBHost   string // database host address
	DBPort   string // database port number
	DBName   string // database name
	DBPath   string // sqlite database file

	HoldTTL           time.Duration // lifetime of a seat hold
	HoldSweepInterval time.Duration // in-process sweeper period, 0 disables
	TicketTTL         time.Duration // minimum lifetime of a ticket credential
	TicketGrace       time.Duration // credentials stay valid this long after departure
	BookingRefPrefix  string        // prefix of booking references
	RequirePayment    bool          // create bookings as pending until paid

	TicketPrivateKeyPath string // PEM EC P-256 private key, empty for verify-only
	TicketPublicKeyPath  string // PEM EC P-256 public key

	RabbitMQURL    string // broker for booking.confirmed and payments.events; empty disables
	ManifestDir    string // directory of the booking manifest log
	TracingEnabled bool   // wrap HTTP requests and batch runs in X-Ray segments
	ServiceName    string // X-Ray segment name
}

// Load reads configuration values from environment variables.  Every
// missing or malformed variable is reported in the returned error.
func Load() (Config, error) {
	l := &loader{}
	cfg := Config{
		Env:      l.must("APP_ENV"),
		Port:     l.must("APP_PORT"),
		DBDriver: strings.ToLower(envStr("DB_DRIVER", "mysql")),

		HoldTTL:           l.duration("HOLD_TTL", 10*time.Minute),
		HoldSweepInterval: l.duration("HOLD_SWEEP_INTERVAL", time.Minute),
		TicketTTL:         l.duration("TICKET_TOKEN_TTL", 24*time.Hour),
		TicketGrace:       l.duration("TICKET_GRACE_AFTER_DEPARTURE", 6*time.Hour),
		BookingRefPrefix:  strings.ToUpper(envStr("BOOKING_REF_PREFIX", "FRY")),
		RequirePayment:    envBool("BOOKING_REQUIRE_PAYMENT", false),

		TicketPrivateKeyPath: os.Getenv("TICKET_PRIVATE_KEY_PATH"),
		TicketPublicKeyPath:  os.Getenv("TICKET_PUBLIC_KEY_PATH"),

		RabbitMQURL:    firstNonEmpty(os.Getenv("RABBITMQ_URL"), os.Getenv("AMQP_URL")),
		ManifestDir:    envStr("MANIFEST_DIR", "logs"),
		TracingEnabled: envBool("TRACING_ENABLED", false),
		ServiceName:    envStr("SERVICE_NAME", "ferry-reservation"),
	}

	l.database(&cfg)
	if cfg.TicketPrivateKeyPath == "" && cfg.TicketPublicKeyPath == "" {
		l.errs = append(l.errs, errors.New("one of TICKET_PRIVATE_KEY_PATH or TICKET_PUBLIC_KEY_PATH is required"))
	}

	if len(l.errs) > 0 {
		return Config{}, errors.Join(l.errs...)
	}
	return cfg, nil
}

// LoadBatch reads the subset of configuration the batch binaries need:
// environment name, database, hold timing and tracing.
func LoadBatch() (Config, error) {
	l := &loader{}
	cfg := Config{
		Env:            envStr("APP_ENV", "dev"),
		DBDriver:       strings.ToLower(envStr("DB_DRIVER", "mysql")),
		HoldTTL:        l.duration("HOLD_TTL", 10*time.Minute),
		TracingEnabled: envBool("TRACING_ENABLED", false),
		ServiceName:    envStr("SERVICE_NAME", "ferry-sweeper"),
	}
	l.database(&cfg)
	if len(l.errs) > 0 {
		return Config{}, errors.Join(l.errs...)
	}
	return cfg, nil
}

// Database returns the connection options for database.Open.
func (c Config) Database() database.Options {
	return database.Options{
		Driver: c.DBDriver,
		User:   c.DBUser,
		Pass:   c.DBPass,
		Host:   c.DBHost,
		Port:   c.DBPort,
		Name:   c.DBName,
		Path:   c.DBPath,
	}
}

type loader struct {
	errs []error
}

// must retrieves the value of a required environment variable and records
// an error when it is unset or empty.
func (l *loader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		l.errs = append(l.errs, fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		l.errs = append(l.errs, fmt.Errorf("invalid duration for %s: %q", key, v))
		return def
	}
	return d
}

func (l *loader) database(cfg *Config) {
	switch cfg.DBDriver {
	case "mysql", "postgres":
		cfg.DBUser = l.must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = l.must("DB_HOST")
		cfg.DBPort = l.must("DB_PORT")
		cfg.DBName = l.must("DB_NAME")
	case "sqlite":
		cfg.DBPath = l.must("DB_PATH")
	default:
		l.errs = append(l.errs, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver))
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
