// Package health provides readiness checks for the API's dependencies.
package health

import (
	"context"
	"fmt"
)

// Checker is a dependency that can report its health.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// contextPinger is satisfied by *sql.DB.
type contextPinger interface {
	PingContext(ctx context.Context) error
}

// DBChecker implements health checking for the favorites database.
type DBChecker struct {
	db contextPinger
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db contextPinger) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	return nil
}
