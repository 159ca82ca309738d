// Package index stores canonical documents in Elasticsearch and reads them
// back for ranking.
package index

import (
	"errors"
	"time"
)

// Defaults for the index store.
const (
	DefaultURL            = "http://localhost:9200"
	DefaultIndexName      = "destinos"
	DefaultRequestTimeout = 8 * time.Second
	DefaultBulkTimeout    = 2 * time.Minute
)

// Configuration errors.
var (
	ErrMissingURL       = errors.New("elasticsearch url is required")
	ErrMissingIndexName = errors.New("index name is required")
	ErrInvalidTimeout   = errors.New("index timeouts must be positive")
)

// Config configures an Elasticsearch store.
type Config struct {
	URL            string
	IndexName      string
	Username       string
	Password       string
	RequestTimeout time.Duration // search, multi-get and schema calls
	BulkTimeout    time.Duration
}

// DefaultConfig returns a Config pointing at a local single-node cluster.
func DefaultConfig() Config {
	return Config{
		URL:            DefaultURL,
		IndexName:      DefaultIndexName,
		RequestTimeout: DefaultRequestTimeout,
		BulkTimeout:    DefaultBulkTimeout,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.URL == "" {
		return ErrMissingURL
	}
	if c.IndexName == "" {
		return ErrMissingIndexName
	}
	if c.RequestTimeout <= 0 || c.BulkTimeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}
