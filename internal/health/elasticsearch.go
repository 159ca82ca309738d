package health

import (
	"context"
	"fmt"
)

// Pinger is implemented by the index store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ElasticsearchChecker reports whether the search cluster answers.
type ElasticsearchChecker struct {
	index Pinger
}

// NewElasticsearchChecker creates a checker for the index store.
func NewElasticsearchChecker(index Pinger) *ElasticsearchChecker {
	return &ElasticsearchChecker{index: index}
}

// HealthCheck pings the cluster.
func (e *ElasticsearchChecker) HealthCheck(ctx context.Context) error {
	if err := e.index.Ping(ctx); err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	return nil
}
