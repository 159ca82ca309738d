package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/euskotrips/euskotrips/internal/api"
	"github.com/euskotrips/euskotrips/internal/config"
	"github.com/euskotrips/euskotrips/internal/ranking"
)

type staticRanker struct{}

func (staticRanker) Rank(context.Context, ranking.Request) (*ranking.Result, error) {
	return &ranking.Result{Mode: ranking.ModeGeneric}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	return ln
}

func TestEnvOf(t *testing.T) {
	if got := envOf(nil); got != config.DefaultEnv {
		t.Errorf("envOf(nil) = %q, want %q", got, config.DefaultEnv)
	}
	if got := envOf(&config.Config{Env: "production"}); got != "production" {
		t.Errorf("envOf() = %q, want production", got)
	}
}

func TestServe_ServesRouterUntilCancelled(t *testing.T) {
	logger := discardLogger()
	server := &http.Server{Handler: api.NewRouter(api.RouterConfig{
		Rank:    api.NewRankHandlers(staticRanker{}, logger),
		Health:  api.NewHealthHandlers(api.HealthHandlersConfig{}),
		Logger:  logger,
		Version: "test",
	})}
	ln := listen(t)
	addr := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, server, ln, logger, time.Second) }()

	resp, err := http.Get(addr + "/rank")
	if err != nil {
		t.Fatalf("GET /rank failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), `"mode":"generic"`) {
		t.Errorf("unexpected body: %s", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}

	if _, err := http.Get(addr + "/health"); err == nil {
		t.Error("expected the listener to be closed after shutdown")
	}
}

func TestServe_DrainsInFlightRequests(t *testing.T) {
	started := make(chan struct{})
	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("done"))
	})}
	ln := listen(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, server, ln, discardLogger(), 2*time.Second) }()

	type result struct {
		body string
		err  error
	}
	got := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			got <- result{err: err}
			return
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		got <- result{body: string(b), err: err}
	}()

	<-started
	cancel()

	r := <-got
	if r.err != nil {
		t.Fatalf("in-flight request failed: %v", r.err)
	}
	if r.body != "done" {
		t.Errorf("body = %q, want done", r.body)
	}
	if err := <-done; err != nil {
		t.Errorf("serve returned %v, want nil", err)
	}
}

func TestServe_ShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	server := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	})}
	t.Cleanup(func() { close(release) })
	ln := listen(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, server, ln, discardLogger(), 50*time.Millisecond) }()

	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err == nil {
			resp.Body.Close()
		}
	}()

	<-started
	cancel()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "forced to shutdown") {
			t.Errorf("serve returned %v, want forced shutdown error", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not honour the shutdown timeout")
	}
}
