// Package config provides configuration loading and validation for the
// indexer and the recommendation API. It uses koanf to merge environment
// variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/euskotrips/euskotrips/internal/validate"
)

// Dataset describes one source feed in the config file.
type Dataset struct {
	Name         string `koanf:"name"`
	ResourceType string `koanf:"resource_type"`
	URL          string `koanf:"url"`
}

// Config holds all configuration values for both binaries.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Elasticsearch
	ElasticsearchURL      string `koanf:"elasticsearch_url"`
	ElasticsearchIndex    string `koanf:"elasticsearch_index"`
	ElasticsearchUsername string `koanf:"elasticsearch_username"`
	ElasticsearchPassword string `koanf:"elasticsearch_password"`

	// Favorites database
	DatabaseURL string `koanf:"database_url"`

	// Redis backs the /rank rate limiter when set
	RedisURL string `koanf:"redis_url"`

	// Ranking
	RankingCalibrationPath string `koanf:"ranking_calibration_path"`
	RankCandidatePoolSize  int    `koanf:"rank_candidate_pool_size"`
	RankRateLimitPerMinute int    `koanf:"rank_rate_limit_per_minute"`

	// Ingestion. Empty Datasets means the built-in OpenData Euskadi feeds.
	Datasets            []Dataset `koanf:"datasets"`
	FetchTimeoutSeconds int       `koanf:"fetch_timeout_seconds"`

	// R2 / S3-compatible archive of raw dataset payloads (optional)
	R2BucketName      string `koanf:"r2_bucket_name"`
	R2AccessKeyID     string `koanf:"r2_access_key_id"`
	R2SecretAccessKey string `koanf:"r2_secret_access_key"`
	R2Endpoint        string `koanf:"r2_endpoint"`

	// Observability
	PushgatewayURL    string  `koanf:"pushgateway_url"`
	MetricsToken      string  `koanf:"metrics_token"`
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingExporter   string  `koanf:"tracing_exporter"` // otlp-http or otlp-grpc
	OTLPEndpoint      string  `koanf:"otlp_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
	TracingInsecure   bool    `koanf:"tracing_insecure"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL       = errors.New("DATABASE_URL is required")
	ErrMissingElasticsearchURL  = errors.New("ES_URL is required")
	ErrMissingIndexName         = errors.New("ES_INDEX is required")
	ErrMissingR2BucketName      = errors.New("R2_BUCKET_NAME is required")
	ErrMissingR2AccessKeyID     = errors.New("R2_ACCESS_KEY_ID is required")
	ErrMissingR2SecretAccessKey = errors.New("R2_SECRET_ACCESS_KEY is required")
	ErrMissingR2Endpoint        = errors.New("R2_ENDPOINT is required")
	ErrInvalidPort              = errors.New("PORT must be a valid integer")
	ErrPortOutOfRange           = errors.New("PORT must be between 1 and 65535")
	ErrInvalidInteger           = errors.New("value must be a valid integer")
	ErrInvalidPoolSize          = errors.New("RANK_CANDIDATE_POOL_SIZE must be positive")
	ErrInvalidRateLimit         = errors.New("RANK_RATE_LIMIT_PER_MINUTE must not be negative")
	ErrInvalidFetchTimeout      = errors.New("FETCH_TIMEOUT_SECONDS must be positive")
	ErrInvalidSampleRate        = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
	ErrInvalidDataset           = errors.New("datasets entries need a name, resource_type and url")
)

// Default values for non-secret configuration.
const (
	DefaultPort                   = 8000
	DefaultEnv                    = "development"
	DefaultElasticsearchURL       = "http://localhost:9200"
	DefaultElasticsearchIndex     = "destinos"
	DefaultRankCandidatePoolSize  = 200
	DefaultRankRateLimitPerMinute = 120
	DefaultFetchTimeoutSeconds    = 30
	DefaultTracingExporter        = "otlp-http"
	DefaultTracingSampleRate      = 0.1
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	collect := func(v int, err error) int {
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
		return v
	}

	port, portErr := getEnvIntOrDefaultMulti([]string{"EUSKOTRIPS_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, fmt.Errorf("%w: %w", ErrInvalidPort, portErr))
	}

	sampleRate, sampleErr := getEnvFloatOrDefault("TRACING_SAMPLE_RATE", k.Float64("tracing_sample_rate"), DefaultTracingSampleRate)
	if sampleErr != nil {
		loadErrs = append(loadErrs, sampleErr)
	}

	var datasets []Dataset
	if k.Exists("datasets") {
		if err := k.Unmarshal("datasets", &datasets); err != nil {
			loadErrs = append(loadErrs, fmt.Errorf("failed to parse datasets: %w", err))
		}
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:                   port,
		Env:                    getEnvOrDefaultMulti([]string{"EUSKOTRIPS_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		ElasticsearchURL:       getEnvOrDefaultMulti([]string{"ES_URL", "ELASTIC_URL"}, k.String("elasticsearch_url"), DefaultElasticsearchURL),
		ElasticsearchIndex:     getEnvOrDefault("ES_INDEX", k.String("elasticsearch_index"), DefaultElasticsearchIndex),
		ElasticsearchUsername:  getEnvOrKoanf("ES_USERNAME", k, "elasticsearch_username"),
		ElasticsearchPassword:  getEnvOrKoanf("ES_PASSWORD", k, "elasticsearch_password"),
		DatabaseURL:            getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:               getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		RankingCalibrationPath: getEnvOrKoanf("RANKING_CALIBRATION_PATH", k, "ranking_calibration_path"),
		RankCandidatePoolSize:  collect(getEnvIntOrDefault("RANK_CANDIDATE_POOL_SIZE", k.Int("rank_candidate_pool_size"), DefaultRankCandidatePoolSize)),
		RankRateLimitPerMinute: collect(getEnvIntOrDefault("RANK_RATE_LIMIT_PER_MINUTE", k.Int("rank_rate_limit_per_minute"), DefaultRankRateLimitPerMinute)),
		Datasets:               datasets,
		FetchTimeoutSeconds:    collect(getEnvIntOrDefault("FETCH_TIMEOUT_SECONDS", k.Int("fetch_timeout_seconds"), DefaultFetchTimeoutSeconds)),
		R2BucketName:           getEnvOrKoanf("R2_BUCKET_NAME", k, "r2_bucket_name"),
		R2AccessKeyID:          getEnvOrKoanf("R2_ACCESS_KEY_ID", k, "r2_access_key_id"),
		R2SecretAccessKey:      getEnvOrKoanf("R2_SECRET_ACCESS_KEY", k, "r2_secret_access_key"),
		R2Endpoint:             getEnvOrKoanf("R2_ENDPOINT", k, "r2_endpoint"),
		PushgatewayURL:         getEnvOrKoanf("PUSHGATEWAY_URL", k, "pushgateway_url"),
		MetricsToken:           getEnvOrKoanf("METRICS_TOKEN", k, "metrics_token"),
		TracingEnabled:         getEnvBoolOrKoanf("TRACING_ENABLED", k, "tracing_enabled"),
		TracingExporter:        getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		OTLPEndpoint:           getEnvOrDefaultMulti([]string{"OTEL_EXPORTER_OTLP_ENDPOINT", "OTLP_ENDPOINT"}, k.String("otlp_endpoint"), ""),
		TracingSampleRate:      sampleRate,
		TracingInsecure:        getEnvBoolOrKoanf("TRACING_INSECURE", k, "tracing_insecure"),
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvBoolOrKoanf parses a boolean flag from env (true/1/yes/on, false/0/no/off),
// falling back to the koanf value. Unrecognized env values are ignored.
func getEnvBoolOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) bool {
	result := k.Bool(koanfKey)
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			result = true
		case "false", "0", "no", "off":
			result = false
		}
	}
	return result
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
// A zero value from a YAML file falls back to the default.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", envKey, ErrInvalidInteger)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s: %w", key, ErrInvalidInteger)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks settings shared by both binaries.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrPortOutOfRange)
	}
	if c.ElasticsearchURL == "" {
		errs = append(errs, ErrMissingElasticsearchURL)
	} else if err := validate.HTTPURL(c.ElasticsearchURL); err != nil {
		errs = append(errs, fmt.Errorf("ES_URL: %w", err))
	}
	if c.ElasticsearchIndex == "" {
		errs = append(errs, ErrMissingIndexName)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, ErrInvalidSampleRate)
	}

	return errs
}

// ValidateAPI checks settings the recommendation API needs.
func (c *Config) ValidateAPI() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	if c.RankCandidatePoolSize <= 0 {
		errs = append(errs, ErrInvalidPoolSize)
	}
	if c.RankRateLimitPerMinute < 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}

	return errs
}

// ValidateIndexer checks settings the ingestion CLI needs.
func (c *Config) ValidateIndexer() []error {
	var errs []error

	if c.FetchTimeoutSeconds <= 0 {
		errs = append(errs, ErrInvalidFetchTimeout)
	}
	for i, ds := range c.Datasets {
		if ds.Name == "" || ds.ResourceType == "" || ds.URL == "" {
			errs = append(errs, fmt.Errorf("datasets[%d]: %w", i, ErrInvalidDataset))
			continue
		}
		if err := validate.HTTPURL(ds.URL); err != nil {
			errs = append(errs, fmt.Errorf("datasets[%d] %s: %w", i, ds.Name, err))
		}
	}

	// R2 configuration is optional. Only validate fields if any R2 value is set.
	if c.ArchiveEnabled() || c.R2AccessKeyID != "" || c.R2SecretAccessKey != "" || c.R2Endpoint != "" {
		if c.R2BucketName == "" {
			errs = append(errs, ErrMissingR2BucketName)
		}
		if c.R2AccessKeyID == "" {
			errs = append(errs, ErrMissingR2AccessKeyID)
		}
		if c.R2SecretAccessKey == "" {
			errs = append(errs, ErrMissingR2SecretAccessKey)
		}
		if c.R2Endpoint == "" {
			errs = append(errs, ErrMissingR2Endpoint)
		} else if err := validate.HTTPURL(c.R2Endpoint); err != nil {
			errs = append(errs, fmt.Errorf("R2_ENDPOINT: %w", err))
		}
	}

	return errs
}

// ArchiveEnabled reports whether raw payload archiving is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.R2BucketName != ""
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                       strconv.Itoa(c.Port),
		"env":                        c.Env,
		"elasticsearch_url":          maskDatabaseURL(c.ElasticsearchURL),
		"elasticsearch_index":        c.ElasticsearchIndex,
		"elasticsearch_username":     c.ElasticsearchUsername,
		"elasticsearch_password":     maskSecret(c.ElasticsearchPassword),
		"database_url":               maskDatabaseURL(c.DatabaseURL),
		"redis_url":                  maskDatabaseURL(c.RedisURL),
		"ranking_calibration_path":   c.RankingCalibrationPath,
		"rank_candidate_pool_size":   strconv.Itoa(c.RankCandidatePoolSize),
		"rank_rate_limit_per_minute": strconv.Itoa(c.RankRateLimitPerMinute),
		"datasets":                   datasetSummary(c.Datasets),
		"fetch_timeout_seconds":      strconv.Itoa(c.FetchTimeoutSeconds),
		"r2_bucket_name":             c.R2BucketName,
		"r2_access_key_id":           maskSecret(c.R2AccessKeyID),
		"r2_secret_access_key":       maskSecret(c.R2SecretAccessKey),
		"r2_endpoint":                c.R2Endpoint,
		"pushgateway_url":            c.PushgatewayURL,
		"metrics_token":              maskSecret(c.MetricsToken),
		"tracing_enabled":            strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":           c.TracingExporter,
		"otlp_endpoint":              c.OTLPEndpoint,
		"tracing_sample_rate":        strconv.FormatFloat(c.TracingSampleRate, 'f', -1, 64),
	}
}

func datasetSummary(ds []Dataset) string {
	if len(ds) == 0 {
		return "<defaults>"
	}
	names := make([]string, 0, len(ds))
	for _, d := range ds {
		names = append(names, d.Name)
	}
	return strings.Join(names, ",")
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
// Works for postgres://, redis:// and http:// style URLs.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		// sqlite file: DSNs carry no credentials
		if strings.HasPrefix(s, "file:") {
			return s
		}
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	// Reconstruct URL with masked password
	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
