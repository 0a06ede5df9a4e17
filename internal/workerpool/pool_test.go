package workerpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/cityrag/internal/domain"
)

func TestNew_DefaultSize(t *testing.T) {
	if p := New(0, 0); p.Size() < 1 {
		t.Fatalf("expected at least one slot, got %d", p.Size())
	}
	if p := New(3, 0); p.Size() != 3 {
		t.Fatalf("expected 3 slots, got %d", p.Size())
	}
}

func TestDo_BoundsConcurrency(t *testing.T) {
	p := New(2, 0)
	var (
		current, peak atomic.Int32
		wg            sync.WaitGroup
	)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), func(context.Context) error {
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if peak.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent tasks, saw %d", peak.Load())
	}
}

func TestDo_PropagatesError(t *testing.T) {
	p := New(1, 0)
	boom := errors.New("boom")
	if err := p.Do(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	// slot must be released after an error
	if err := p.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDo_QueueTimeoutRateLimited(t *testing.T) {
	p := New(1, 20*time.Millisecond)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = p.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	err := p.Do(context.Background(), func(context.Context) error {
		t.Error("task must not run without a slot")
		return nil
	})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestDo_CallerCancel(t *testing.T) {
	p := New(1, time.Minute)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = p.Do(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Do(ctx, func(context.Context) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, domain.ErrRateLimited) {
		t.Fatal("caller cancellation must not be reported as rate limiting")
	}
}
