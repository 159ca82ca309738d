// Package ingest downloads the open-data tourism feeds, normalizes every
// feature into a canonical document and bulk-loads the result into the
// search index.
package ingest

import (
	"errors"
	"fmt"
	"time"

	"github.com/euskotrips/euskotrips/internal/document"
)

// Default values for dataset fetching.
const (
	DefaultFetchTimeout     = 30 * time.Second
	DefaultMaxPayloadBytes  = 256 << 20
	DefaultBreakerFailures  = 3
	DefaultBreakerOpenDelay = 60 * time.Second
	DefaultUserAgent        = "euskotrips-indexer/1.0"
)

// Configuration errors.
var (
	ErrNoDatasets           = errors.New("at least one dataset is required")
	ErrEmptyDatasetName     = errors.New("dataset name cannot be empty")
	ErrEmptyDatasetURL      = errors.New("dataset url cannot be empty")
	ErrDuplicateDataset     = errors.New("dataset names must be unique")
	ErrUnknownResourceType  = errors.New("unknown resource type")
	ErrInvalidFetchTimeout  = errors.New("fetch timeout must be positive")
	ErrInvalidBreakerConfig = errors.New("breaker failure threshold must be positive")
)

// DatasetDescriptor names one source feed.
type DatasetDescriptor struct {
	Name         string `koanf:"name" json:"name"`
	ResourceType string `koanf:"resource_type" json:"resource_type"`
	URL          string `koanf:"url" json:"url"`
}

// DefaultDatasets returns the OpenData Euskadi tourism feeds.
func DefaultDatasets() []DatasetDescriptor {
	const base = "https://opendata.euskadi.eus/contenidos/ds_recursos_turisticos/"
	return []DatasetDescriptor{
		{
			Name:         "destinos_turisticos",
			ResourceType: document.ResourceDestination,
			URL:          base + "destinos_turisticos/opendata/destinos.geojson",
		},
		{
			Name:         "rutas_y_paseos",
			ResourceType: document.ResourceRoute,
			URL:          base + "rutas_paseos_euskadi/opendata/rutas.geojson",
		},
		{
			Name:         "hoteles",
			ResourceType: document.ResourceHotel,
			URL:          base + "hoteles_de_euskadi/opendata/alojamientos.geojson",
		},
		{
			Name:         "restaurantes",
			ResourceType: document.ResourceRestaurant,
			URL:          base + "restaurantes_asador_sidrerias/opendata/restaurantes.geojson",
		},
	}
}

var knownResourceTypes = map[string]struct{}{
	document.ResourceDestination: {},
	document.ResourceRoute:       {},
	document.ResourceHotel:       {},
	document.ResourceRestaurant:  {},
}

// Config holds configuration for an ingestion run.
type Config struct {
	// Datasets are processed sequentially in this order.
	Datasets []DatasetDescriptor

	// FetchTimeout bounds a single dataset download.
	FetchTimeout time.Duration

	// MaxPayloadBytes caps the size of one downloaded feed.
	MaxPayloadBytes int64

	// BreakerFailures is the number of consecutive failures against one host
	// after which remaining datasets on that host are skipped.
	BreakerFailures uint32

	// BreakerOpenDelay is how long the breaker stays open.
	BreakerOpenDelay time.Duration

	UserAgent string
}

// DefaultConfig returns a Config for the default datasets.
func DefaultConfig() Config {
	return Config{
		Datasets:         DefaultDatasets(),
		FetchTimeout:     DefaultFetchTimeout,
		MaxPayloadBytes:  DefaultMaxPayloadBytes,
		BreakerFailures:  DefaultBreakerFailures,
		BreakerOpenDelay: DefaultBreakerOpenDelay,
		UserAgent:        DefaultUserAgent,
	}
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if len(c.Datasets) == 0 {
		return ErrNoDatasets
	}
	seen := make(map[string]struct{}, len(c.Datasets))
	for _, ds := range c.Datasets {
		if ds.Name == "" {
			return ErrEmptyDatasetName
		}
		if ds.URL == "" {
			return fmt.Errorf("%w: %s", ErrEmptyDatasetURL, ds.Name)
		}
		if _, ok := knownResourceTypes[ds.ResourceType]; !ok {
			return fmt.Errorf("%w: %q in dataset %s", ErrUnknownResourceType, ds.ResourceType, ds.Name)
		}
		if _, dup := seen[ds.Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateDataset, ds.Name)
		}
		seen[ds.Name] = struct{}{}
	}
	if c.FetchTimeout <= 0 {
		return ErrInvalidFetchTimeout
	}
	if c.BreakerFailures == 0 {
		return ErrInvalidBreakerConfig
	}
	return nil
}
