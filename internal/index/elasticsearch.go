package index

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/euskotrips/euskotrips/internal/document"
	"github.com/euskotrips/euskotrips/internal/tracing"
)

// Store errors.
var (
	// ErrUnavailable wraps transport failures: the cluster could not be reached.
	ErrUnavailable = errors.New("elasticsearch unavailable")
	// ErrResponse wraps non-2xx responses.
	ErrResponse = errors.New("elasticsearch returned an error response")
)

// ElasticsearchStore implements the index operations over the Elasticsearch
// REST API.
type ElasticsearchStore struct {
	client *elasticsearch.Client
	config Config
	logger *slog.Logger
}

// NewElasticsearchStore creates a store. Outbound requests are traced with
// otelhttp.
func NewElasticsearchStore(config Config, logger *slog.Logger) (*ElasticsearchStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{config.URL},
		Username:  config.Username,
		Password:  config.Password,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &ElasticsearchStore{client: client, config: config, logger: logger}, nil
}

// IndexName returns the configured index name.
func (s *ElasticsearchStore) IndexName() string {
	return s.config.IndexName
}

// Ping checks that the cluster answers. Used by readiness checks.
func (s *ElasticsearchStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	res, err := s.client.Info(s.client.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer closeBody(res)
	return checkResponse(res, "info")
}

// EnsureSchema creates the index with its mapping when it does not exist.
// It is idempotent. It reports whether the index was created.
func (s *ElasticsearchStore) EnsureSchema(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	res, err := s.client.Indices.Exists([]string{s.config.IndexName},
		s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	closeBody(res)

	switch {
	case res.StatusCode == http.StatusOK:
		s.logger.InfoContext(ctx, "index already exists",
			slog.String("index", s.config.IndexName))
		return false, nil
	case res.StatusCode != http.StatusNotFound:
		return false, fmt.Errorf("%w: index exists check: status %d", ErrResponse, res.StatusCode)
	}

	res, err = s.client.Indices.Create(s.config.IndexName,
		s.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		s.client.Indices.Create.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer closeBody(res)
	if err := checkResponse(res, "create index"); err != nil {
		return false, err
	}

	s.logger.InfoContext(ctx, "index created",
		slog.String("index", s.config.IndexName))
	return true, nil
}

// BulkUpsert indexes docs by id in one bulk request. A transport or non-2xx
// failure returns an error and an empty report. Per-document rejections
// return the report together with ErrPartialBulk.
func (s *ElasticsearchStore) BulkUpsert(ctx context.Context, docs []document.Document) (_ BulkReport, err error) {
	if len(docs) == 0 {
		return BulkReport{}, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, tracing.SystemElasticsearch, s.config.IndexName, tracing.DBOperationBulk)
	defer func() { endSpan(err) }()

	payload, err := encodeBulk(s.config.IndexName, docs)
	if err != nil {
		return BulkReport{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.BulkTimeout)
	defer cancel()

	res, err := s.client.Bulk(bytes.NewReader(payload),
		s.client.Bulk.WithIndex(s.config.IndexName),
		s.client.Bulk.WithContext(ctx))
	if err != nil {
		return BulkReport{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer closeBody(res)
	if err := checkResponse(res, "bulk"); err != nil {
		return BulkReport{}, err
	}

	var resp bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return BulkReport{}, fmt.Errorf("decode bulk response: %w", err)
	}

	report := reportFromResponse(len(docs), resp)
	if report.HasErrors() {
		return report, fmt.Errorf("%w: %d of %d documents rejected",
			ErrPartialBulk, len(report.Failed), report.Attempted)
	}
	return report, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string            `json:"_id"`
			Score  *float64          `json:"_score"`
			Source document.Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchAll returns up to size documents using a match_all query.
func (s *ElasticsearchStore) SearchAll(ctx context.Context, size int) (_ []document.Hit, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, tracing.SystemElasticsearch, s.config.IndexName, tracing.DBOperationSearch)
	defer func() { endSpan(err) }()

	body, err := json.Marshal(map[string]any{
		"query": map[string]any{"match_all": struct{}{}},
		"size":  size,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.config.IndexName),
		s.client.Search.WithBody(bytes.NewReader(body)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer closeBody(res)
	if err := checkResponse(res, "search"); err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]document.Hit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		doc := h.Source
		if doc.ID == "" {
			doc.ID = h.ID
		}
		hits = append(hits, document.Hit{ID: h.ID, Score: h.Score, Document: doc})
	}
	return hits, nil
}

type mgetResponse struct {
	Docs []struct {
		ID     string            `json:"_id"`
		Found  bool              `json:"found"`
		Source document.Document `json:"_source"`
	} `json:"docs"`
}

// MultiGet fetches documents by id. The result has one entry per id in
// request order; missing ids have Found=false.
func (s *ElasticsearchStore) MultiGet(ctx context.Context, ids []string) (_ []document.GetResult, err error) {
	if len(ids) == 0 {
		return []document.GetResult{}, nil
	}
	ctx, endSpan := tracing.StartDBSpan(ctx, tracing.SystemElasticsearch, s.config.IndexName, tracing.DBOperationMGet)
	defer func() { endSpan(err) }()

	body, err := json.Marshal(map[string]any{"ids": ids})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeout)
	defer cancel()

	res, err := s.client.Mget(bytes.NewReader(body),
		s.client.Mget.WithIndex(s.config.IndexName),
		s.client.Mget.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer closeBody(res)
	if err := checkResponse(res, "mget"); err != nil {
		return nil, err
	}

	var resp mgetResponse
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode mget response: %w", err)
	}

	out := make([]document.GetResult, 0, len(resp.Docs))
	for _, d := range resp.Docs {
		entry := document.GetResult{ID: d.ID, Found: d.Found}
		if d.Found {
			entry.Document = d.Source
			if entry.Document.ID == "" {
				entry.Document.ID = d.ID
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// checkResponse turns a non-2xx response into an ErrResponse carrying a
// truncated body.
func checkResponse(res *esapi.Response, op string) error {
	if !res.IsError() {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	return fmt.Errorf("%w: %s: status %d: %s", ErrResponse, op, res.StatusCode, strings.TrimSpace(string(snippet)))
}

func closeBody(res *esapi.Response) {
	if res != nil && res.Body != nil {
		_, _ = io.Copy(io.Discard, res.Body)
		_ = res.Body.Close()
	}
}
