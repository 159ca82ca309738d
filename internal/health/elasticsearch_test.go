package health

import (
	"context"
	"errors"
	"testing"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestElasticsearchChecker(t *testing.T) {
	unreachable := errors.New("connection refused")

	tests := []struct {
		name    string
		pinger  fakePinger
		wantErr error
	}{
		{"healthy", fakePinger{}, nil},
		{"unreachable", fakePinger{err: unreachable}, unreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewElasticsearchChecker(tt.pinger).HealthCheck(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("HealthCheck() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
