package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/euskotrips/euskotrips/internal/config"
	"github.com/euskotrips/euskotrips/internal/document"
	"github.com/euskotrips/euskotrips/internal/index"
	"github.com/euskotrips/euskotrips/internal/ingest"
	"github.com/euskotrips/euskotrips/internal/middleware"
	"github.com/euskotrips/euskotrips/internal/normalize"
	"github.com/euskotrips/euskotrips/internal/tracing"
)

// pushTimeout bounds the final Pushgateway report.
const pushTimeout = 10 * time.Second

// inspectKeyLimit caps the property keys reported per dataset.
const inspectKeyLimit = 20

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Load the open-data tourism feeds into the search index",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file (optional)")

	root.AddCommand(
		newIngestCmd(opts),
		newEnsureIndexCmd(opts),
		newDatasetsCmd(opts),
		newInspectCmd(opts),
	)
	return root
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var push bool
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch, normalize and bulk-index every configured dataset",
		Long: `Downloads each configured dataset in order, normalizes every feature into a
canonical document and writes them all in one bulk request. Datasets that
cannot be fetched or decoded are skipped. The command fails when the index
is unreachable or rejects documents.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			return runIngest(cmd.Context(), cfg, logger, push)
		},
	}
	cmd.Flags().BoolVar(&push, "push", false, "push run metrics to the configured Pushgateway")
	return cmd
}

func newEnsureIndexCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-index",
		Short: "Create the index with its mapping if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			store, err := newIndexStore(cfg, logger)
			if err != nil {
				return err
			}
			created, err := store.EnsureSchema(cmd.Context())
			if err != nil {
				return err
			}
			if created {
				cmd.Printf("index %s created\n", store.IndexName())
			} else {
				cmd.Printf("index %s already exists\n", store.IndexName())
			}
			return nil
		},
	}
}

func newDatasetsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "Print the datasets an ingest run would process, as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(ingestConfig(cfg).Datasets, "", "  ")
			if err != nil {
				return fmt.Errorf("encode datasets: %w", err)
			}
			cmd.Println(string(data))
			return nil
		},
	}
}

// datasetReport is the inspect output for one dataset.
type datasetReport struct {
	Name           string         `json:"name"`
	URL            string         `json:"url"`
	Features       int            `json:"features"`
	PropertyKeys   []string       `json:"property_keys"`
	SampleCategory string         `json:"sample_category,omitempty"`
	Categories     map[string]int `json:"categories"`
	Error          string         `json:"error,omitempty"`
}

func newInspectCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [dataset...]",
		Short: "Download datasets and report their shape without indexing",
		Long: `Fetches the named datasets (all configured datasets when none are named) and
prints, per dataset, the feature count, the first property keys of the first
feature and how the normalized categories split into absent, single and many.
A dataset that cannot be fetched or decoded is reported with its error.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			ic := ingestConfig(cfg)
			datasets, err := selectDatasets(ic.Datasets, args)
			if err != nil {
				return err
			}

			fetcher := ingest.NewHTTPFetcher(ic, nil, logger)
			reports := make([]datasetReport, 0, len(datasets))
			for _, ds := range datasets {
				reports = append(reports, inspectDataset(cmd.Context(), fetcher, ds))
			}

			data, err := json.MarshalIndent(reports, "", "  ")
			if err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			cmd.Println(string(data))
			return nil
		},
	}
}

// selectDatasets keeps the named datasets in configuration order.
func selectDatasets(all []ingest.DatasetDescriptor, names []string) ([]ingest.DatasetDescriptor, error) {
	if len(names) == 0 {
		return all, nil
	}
	selected := make([]ingest.DatasetDescriptor, 0, len(names))
	for _, name := range names {
		i := slices.IndexFunc(all, func(ds ingest.DatasetDescriptor) bool { return ds.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("unknown dataset %q", name)
		}
		selected = append(selected, all[i])
	}
	return selected, nil
}

func inspectDataset(ctx context.Context, fetcher ingest.Fetcher, ds ingest.DatasetDescriptor) datasetReport {
	report := datasetReport{
		Name:         ds.Name,
		URL:          ds.URL,
		PropertyKeys: []string{},
		Categories:   map[string]int{"absent": 0, "single": 0, "many": 0},
	}

	payload, err := fetcher.Fetch(ctx, ds)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	fc, err := normalize.DecodeFeatureCollection(bytes.NewReader(payload))
	if err != nil {
		report.Error = fmt.Sprintf("decode: %v", err)
		return report
	}

	report.Features = len(fc.Features)
	for i, f := range fc.Features {
		doc := normalize.Feature(f, ds.Name, ds.ResourceType, i)
		switch doc.Category.Kind() {
		case document.CategorySingle:
			report.Categories["single"]++
		case document.CategoryMany:
			report.Categories["many"]++
		default:
			report.Categories["absent"]++
		}
		if i == 0 {
			report.SampleCategory = doc.Category.String()
		}
	}
	if len(fc.Features) > 0 {
		keys := make([]string, 0, len(fc.Features[0].Properties))
		for k := range fc.Features[0].Properties {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		if len(keys) > inspectKeyLimit {
			keys = keys[:inspectKeyLimit]
		}
		report.PropertyKeys = keys
	}
	return report
}

// loadConfig loads and validates the indexer configuration and installs the
// default logger.
func loadConfig(path string) (*config.Config, *slog.Logger, error) {
	cfg, errs := config.Load(path)
	if cfg != nil {
		errs = append(errs, cfg.ValidateIndexer()...)
	}
	if len(errs) > 0 {
		return nil, nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// ingestConfig maps configured datasets onto the ingest defaults. With no
// datasets configured the OpenData Euskadi feeds are used.
func ingestConfig(cfg *config.Config) ingest.Config {
	ic := ingest.DefaultConfig()
	ic.FetchTimeout = time.Duration(cfg.FetchTimeoutSeconds) * time.Second
	if len(cfg.Datasets) > 0 {
		ic.Datasets = make([]ingest.DatasetDescriptor, 0, len(cfg.Datasets))
		for _, ds := range cfg.Datasets {
			ic.Datasets = append(ic.Datasets, ingest.DatasetDescriptor{
				Name:         ds.Name,
				ResourceType: ds.ResourceType,
				URL:          ds.URL,
			})
		}
	}
	return ic
}

func newIndexStore(cfg *config.Config, logger *slog.Logger) (*index.ElasticsearchStore, error) {
	ic := index.DefaultConfig()
	ic.URL = cfg.ElasticsearchURL
	ic.IndexName = cfg.ElasticsearchIndex
	ic.Username = cfg.ElasticsearchUsername
	ic.Password = cfg.ElasticsearchPassword
	store, err := index.NewElasticsearchStore(ic, logger)
	if err != nil {
		return nil, fmt.Errorf("create index store: %w", err)
	}
	return store, nil
}

func runIngest(ctx context.Context, cfg *config.Config, logger *slog.Logger, push bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:    tracing.ServiceIndexer,
		ServiceVersion: version,
		Enabled:        cfg.TracingEnabled,
		Environment:    cfg.Env,
		ExporterType:   cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplingRate:   cfg.TracingSampleRate,
		InsecureMode:   cfg.TracingInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown tracer provider", "error", err)
		}
	}()

	store, err := newIndexStore(cfg, logger)
	if err != nil {
		return err
	}

	ic := ingestConfig(cfg)
	metrics := ingest.NewMetrics()
	driverOpts := []ingest.Option{ingest.WithMetrics(metrics)}
	if cfg.ArchiveEnabled() {
		archiver, err := ingest.NewS3Archiver(ingest.ArchiveConfig{
			BucketName:      cfg.R2BucketName,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Endpoint:        cfg.R2Endpoint,
		})
		if err != nil {
			return fmt.Errorf("create archiver: %w", err)
		}
		driverOpts = append(driverOpts, ingest.WithArchiver(archiver))
	}

	driver, err := ingest.NewDriver(ic, store, ingest.NewHTTPFetcher(ic, nil, logger), logger, driverOpts...)
	if err != nil {
		return fmt.Errorf("create ingest driver: %w", err)
	}

	if push && cfg.PushgatewayURL != "" {
		defer func() {
			pushCtx, cancel := context.WithTimeout(context.Background(), pushTimeout)
			defer cancel()
			if pushErr := metrics.Push(pushCtx, cfg.PushgatewayURL); pushErr != nil {
				logger.Warn("failed to push metrics", "gateway", cfg.PushgatewayURL, "error", pushErr)
			}
		}()
	} else if push {
		logger.Warn("--push given but PUSHGATEWAY_URL is not set")
	}

	summary, err := driver.Run(ctx)
	logger.Info("ingestion finished", slog.Any("summary", summary))
	return err
}
