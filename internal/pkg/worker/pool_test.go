package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"xrmkit.io/xrmkit/internal/pkg/logger"
)

func init() {
	logger.InitNop()
}

func TestNewPool_DefaultSize(t *testing.T) {
	p, err := NewPool("prefetch", 0)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer p.Shutdown(time.Second)

	if got := p.Metrics()["cap"]; got != DefaultSize {
		t.Errorf("cap = %d, want %d", got, DefaultSize)
	}
}

func TestPool_Each_AfterShutdown(t *testing.T) {
	p, err := NewPool("prefetch", 1)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	p.Shutdown(time.Second)

	errs := p.Each(context.Background(), []string{"account"}, func(context.Context, string) error {
		t.Error("fn should not run on a closed pool")
		return nil
	})
	if !errors.Is(errs["account"], ErrPoolClosed) {
		t.Errorf("Each() error = %v, want ErrPoolClosed", errs["account"])
	}
}

func TestPool_Metrics(t *testing.T) {
	p, err := NewPool("prefetch", 3)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer p.Shutdown(time.Second)

	m := p.Metrics()
	if m["cap"] != 3 || m["running"] != 0 || m["free"] != 3 {
		t.Errorf("Metrics() = %v, want cap=3 running=0 free=3", m)
	}
}

func TestPool_Each(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		failOn   string
		wantErrs int
	}{
		{"all succeed", []string{"account", "contact", "incident"}, "", 0},
		{"one fails", []string{"account", "contact", "incident"}, "contact", 1},
		{"no keys", nil, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPool("prefetch", 2)
			if err != nil {
				t.Fatalf("NewPool() error = %v", err)
			}
			defer p.Shutdown(time.Second)

			var calls atomic.Int32
			errs := p.Each(context.Background(), tt.keys, func(_ context.Context, key string) error {
				calls.Add(1)
				if key == tt.failOn {
					return errors.New("boom")
				}
				return nil
			})

			if int(calls.Load()) != len(tt.keys) {
				t.Errorf("calls = %d, want %d", calls.Load(), len(tt.keys))
			}
			if len(errs) != tt.wantErrs {
				t.Errorf("len(errs) = %d, want %d (%v)", len(errs), tt.wantErrs, errs)
			}
			if tt.failOn != "" && errs[tt.failOn] == nil {
				t.Errorf("errs[%q] missing", tt.failOn)
			}
		})
	}
}

func TestPool_Each_CancelledContext(t *testing.T) {
	p, err := NewPool("prefetch", 2)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer p.Shutdown(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	errs := p.Each(ctx, []string{"account", "contact"}, func(context.Context, string) error {
		t.Error("fn should not run with cancelled context")
		return nil
	})
	if len(errs) != 2 {
		t.Fatalf("len(errs) = %d, want 2", len(errs))
	}
	for key, err := range errs {
		if !errors.Is(err, context.Canceled) {
			t.Errorf("errs[%q] = %v, want context.Canceled", key, err)
		}
	}
}
