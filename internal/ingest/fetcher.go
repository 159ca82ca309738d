package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Fetch errors.
var (
	ErrUnexpectedStatus = errors.New("unexpected dataset response status")
	ErrPayloadTooLarge  = errors.New("dataset payload exceeds size limit")
	ErrHostUnavailable  = errors.New("dataset host circuit open")

	errInvalidRequest = errors.New("build dataset request")
)

// StatusError is returned for a non-2xx dataset response. It matches
// ErrUnexpectedStatus with errors.Is.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d", ErrUnexpectedStatus, e.Code)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// HTTPFetcher downloads dataset payloads. Each upstream host gets its own
// circuit breaker.
type HTTPFetcher struct {
	client   *http.Client
	config   Config
	logger   *slog.Logger
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

// NewHTTPFetcher creates a fetcher. A nil client gets a traced default
// client with the configured timeout.
func NewHTTPFetcher(config Config, client *http.Client, logger *slog.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{
			Timeout:   config.FetchTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPFetcher{
		client:   client,
		config:   config,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}
}

// Fetch downloads the raw payload of a dataset.
func (f *HTTPFetcher) Fetch(ctx context.Context, ds DatasetDescriptor) ([]byte, error) {
	cb := f.breakerFor(ds.URL)
	body, err := cb.Execute(func() ([]byte, error) {
		return f.get(ctx, ds.URL)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrHostUnavailable, err)
	}
	return body, err
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	if f.config.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.FetchTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidRequest, err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode}
	}

	limit := f.config.MaxPayloadBytes
	if limit <= 0 {
		limit = DefaultMaxPayloadBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrPayloadTooLarge, limit)
	}
	return body, nil
}

func (f *HTTPFetcher) breakerFor(rawURL string) *gobreaker.CircuitBreaker[[]byte] {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[host]; ok {
		return cb
	}
	threshold := f.config.BreakerFailures
	if threshold == 0 {
		threshold = DefaultBreakerFailures
	}
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     f.config.BreakerOpenDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return !hostFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn("dataset host breaker state changed",
				slog.String("host", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	f.breakers[host] = cb
	return cb
}

// hostFailure reports whether err says something about the upstream host
// rather than about one dataset: transport errors and 5xx responses. A 4xx,
// an oversized payload or a cancelled caller only skip that dataset.
func hostFailure(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= http.StatusInternalServerError
	}
	switch {
	case errors.Is(err, ErrPayloadTooLarge),
		errors.Is(err, errInvalidRequest),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
