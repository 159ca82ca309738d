package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/euskotrips/euskotrips/internal/document"
	"github.com/euskotrips/euskotrips/internal/index"
	"github.com/euskotrips/euskotrips/internal/normalize"
	"github.com/euskotrips/euskotrips/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// ErrPartialWrite is returned by Run when the bulk write succeeded as a
// request but some documents were rejected.
var ErrPartialWrite = errors.New("ingestion finished with rejected documents")

// DocumentIndex is the write side of the search index.
type DocumentIndex interface {
	EnsureSchema(ctx context.Context) (bool, error)
	BulkUpsert(ctx context.Context, docs []document.Document) (index.BulkReport, error)
}

// Fetcher downloads the raw payload of a dataset.
type Fetcher interface {
	Fetch(ctx context.Context, ds DatasetDescriptor) ([]byte, error)
}

// Archiver stores raw payloads. Implementations return the stored key.
type Archiver interface {
	Archive(ctx context.Context, dataset string, payload []byte) (string, error)
}

// Summary describes a finished run.
type Summary struct {
	DatasetsFetched []string
	DatasetsSkipped []string
	Normalized      int
	Indexed         int
	Failed          []index.BulkItemError
	SchemaCreated   bool
	Duration        time.Duration
}

// LogValue renders the summary as one log group.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("fetched", s.DatasetsFetched),
		slog.Any("skipped", s.DatasetsSkipped),
		slog.Int("normalized", s.Normalized),
		slog.Int("indexed", s.Indexed),
		slog.Int("failed", len(s.Failed)),
		slog.Bool("schema_created", s.SchemaCreated),
		slog.Duration("duration", s.Duration),
	)
}

// Driver runs the ingestion pipeline: fetch, archive, normalize, bulk write.
type Driver struct {
	config   Config
	index    DocumentIndex
	fetcher  Fetcher
	archiver Archiver
	metrics  *Metrics
	logger   *slog.Logger
	timeNow  func() time.Time
}

// Option configures optional Driver dependencies.
type Option func(*Driver)

// WithArchiver stores every fetched payload before it is normalized.
func WithArchiver(a Archiver) Option {
	return func(d *Driver) { d.archiver = a }
}

// WithMetrics records run counters.
func WithMetrics(m *Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// NewDriver creates a driver.
func NewDriver(config Config, idx DocumentIndex, fetcher Fetcher, logger *slog.Logger, opts ...Option) (*Driver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Driver{
		config:  config,
		index:   idx,
		fetcher: fetcher,
		logger:  logger,
		timeNow: time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run executes one ingestion pass. Dataset failures are logged and skipped.
// Schema and bulk transport failures are returned as errors; per-document
// rejections return the summary together with ErrPartialWrite.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	start := d.timeNow()
	var summary Summary

	created, err := d.index.EnsureSchema(ctx)
	if err != nil {
		return summary, fmt.Errorf("ensure index schema: %w", err)
	}
	summary.SchemaCreated = created

	var docs []document.Document
	for _, ds := range d.config.Datasets {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		dsDocs, err := d.processDataset(ctx, ds)
		if err != nil {
			d.logger.WarnContext(ctx, "skipping dataset",
				slog.String("dataset", ds.Name),
				slog.String("url", ds.URL),
				slog.String("error", err.Error()))
			d.metrics.incDatasetSkipped(ds.Name)
			summary.DatasetsSkipped = append(summary.DatasetsSkipped, ds.Name)
			continue
		}

		d.metrics.incDatasetFetched(ds.Name)
		d.metrics.addNormalized(ds.Name, len(dsDocs))
		summary.DatasetsFetched = append(summary.DatasetsFetched, ds.Name)
		docs = append(docs, dsDocs...)
	}
	summary.Normalized = len(docs)

	d.logger.InfoContext(ctx, "documents ready to index", slog.Int("count", len(docs)))

	var runErr error
	if len(docs) == 0 {
		d.logger.InfoContext(ctx, "no documents to index")
	} else {
		report, err := d.bulkUpsert(ctx, docs)
		switch {
		case errors.Is(err, index.ErrPartialBulk):
			summary.Indexed = report.Indexed
			summary.Failed = report.Failed
			d.metrics.addBulkResult(report.Indexed, len(report.Failed))
			d.logFailedDocuments(ctx, report.Failed)
			runErr = fmt.Errorf("%w: %d of %d documents rejected",
				ErrPartialWrite, len(report.Failed), report.Attempted)
		case err != nil:
			summary.Duration = d.timeNow().Sub(start)
			d.metrics.observeRun(summary.Duration.Seconds(), false, 0)
			return summary, fmt.Errorf("bulk upsert: %w", err)
		default:
			summary.Indexed = report.Indexed
			d.metrics.addBulkResult(report.Indexed, 0)
		}
	}

	summary.Duration = d.timeNow().Sub(start)
	success := runErr == nil && len(summary.DatasetsSkipped) == 0
	d.metrics.observeRun(summary.Duration.Seconds(), success, float64(d.timeNow().Unix()))

	return summary, runErr
}

// processDataset fetches, archives, decodes and normalizes one dataset.
func (d *Driver) processDataset(ctx context.Context, ds DatasetDescriptor) (docs []document.Document, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "ingest.dataset",
		attribute.String("dataset", ds.Name),
		attribute.String("resource_type", ds.ResourceType))
	defer func() { endSpan(err) }()

	d.logger.InfoContext(ctx, "downloading dataset",
		slog.String("dataset", ds.Name),
		slog.String("url", ds.URL))

	payload, err := d.fetcher.Fetch(ctx, ds)
	if err != nil {
		return nil, err
	}

	if d.archiver != nil {
		key, err := d.archiver.Archive(ctx, ds.Name, payload)
		if err != nil {
			d.metrics.incArchiveFailures()
			d.logger.WarnContext(ctx, "failed to archive raw dataset",
				slog.String("dataset", ds.Name),
				slog.String("error", err.Error()))
		} else {
			d.logger.DebugContext(ctx, "archived raw dataset",
				slog.String("dataset", ds.Name),
				slog.String("key", key))
		}
	}

	fc, err := normalize.DecodeFeatureCollection(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}

	d.logger.InfoContext(ctx, "dataset decoded",
		slog.String("dataset", ds.Name),
		slog.Int("features", len(fc.Features)))

	docs = make([]document.Document, 0, len(fc.Features))
	for i, f := range fc.Features {
		docs = append(docs, normalize.Feature(f, ds.Name, ds.ResourceType, i))
	}
	return docs, nil
}

func (d *Driver) bulkUpsert(ctx context.Context, docs []document.Document) (report index.BulkReport, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "ingest.bulk_upsert", attribute.Int("documents", len(docs)))
	defer func() { endSpan(err) }()
	return d.index.BulkUpsert(ctx, docs)
}

// logFailedDocuments logs a bounded sample of rejected documents.
func (d *Driver) logFailedDocuments(ctx context.Context, failed []index.BulkItemError) {
	const sample = 10
	for i, f := range failed {
		if i == sample {
			d.logger.WarnContext(ctx, "more documents rejected",
				slog.Int("remaining", len(failed)-sample))
			return
		}
		d.logger.WarnContext(ctx, "document rejected by index",
			slog.String("id", f.ID),
			slog.Int("status", f.Status),
			slog.String("type", f.Type),
			slog.String("reason", f.Reason))
	}
}
