// Package favorites reads user favorite destinations from the relational
// store. PostgreSQL is the production backend; SQLite serves local runs.
package favorites

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/lib/pq"  // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/euskotrips/euskotrips/internal/tracing"
)

// Dialect identifies the SQL backend behind a Store.
type Dialect string

// Supported dialects.
const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// system returns the OpenTelemetry db.system value.
func (d Dialect) system() string {
	if d == DialectPostgres {
		return tracing.SystemPostgres
	}
	return tracing.SystemSQLite
}

// Errors returned by Open.
var (
	ErrMissingDatabaseURL = errors.New("database url is required")
	ErrUnsupportedScheme  = errors.New("unsupported database url scheme")
)

// schema creates the favorites table. The composite key keeps associations
// unique per user.
const schema = `CREATE TABLE IF NOT EXISTS favoritos (
	user_id    BIGINT NOT NULL,
	destino_id TEXT   NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, destino_id)
)`

// Store reads favorites from a SQL database.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB, dialect Dialect, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, dialect: dialect, logger: logger}
}

// Open opens a store from a database URL. postgres:// and postgresql:// use
// lib/pq; sqlite://path and file: URLs use the pure-Go SQLite driver.
func Open(databaseURL string, logger *slog.Logger) (*Store, error) {
	driver, dsn, dialect, err := parseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// database/sql would otherwise open per-connection in-memory databases.
		db.SetMaxOpenConns(1)
	}
	return NewStore(db, dialect, logger), nil
}

func parseDatabaseURL(databaseURL string) (driver, dsn string, dialect Dialect, err error) {
	switch {
	case databaseURL == "":
		return "", "", "", ErrMissingDatabaseURL
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "postgres", databaseURL, DialectPostgres, nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return "sqlite", strings.TrimPrefix(databaseURL, "sqlite://"), DialectSQLite, nil
	case strings.HasPrefix(databaseURL, "file:"):
		return "sqlite", databaseURL, DialectSQLite, nil
	default:
		return "", "", "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, redactURL(databaseURL))
	}
}

// redactURL keeps only the scheme of a URL for error messages.
func redactURL(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		return u[:i] + "://..."
	}
	return "..."
}

// DB returns the underlying handle, for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the backend dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the favorites table when it does not exist.
func (s *Store) Migrate(ctx context.Context) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, s.dialect.system(), "favoritos", tracing.DBOperationExec)
	defer func() { endSpan(err) }()

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create favoritos table: %w", err)
	}
	return nil
}

// FavoriteDestinationIDs returns the destination ids a user saved. Order is
// whatever the database returns.
func (s *Store) FavoriteDestinationIDs(ctx context.Context, userID int64) (ids []string, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, s.dialect.system(), "favoritos", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	rows, err := s.db.QueryContext(ctx, s.rebind("SELECT destino_id FROM favoritos WHERE user_id = ?"), userID)
	if err != nil {
		return nil, fmt.Errorf("query favorites: %w", err)
	}
	defer rows.Close()

	ids = make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorites: %w", err)
	}

	s.logger.DebugContext(ctx, "loaded favorites",
		slog.Int64("user_id", userID),
		slog.Int("count", len(ids)))
	return ids, nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
