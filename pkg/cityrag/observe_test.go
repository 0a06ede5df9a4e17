package cityrag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/cityrag/internal/domain/answer"
	"github.com/kailas-cloud/cityrag/internal/domain/query"
)

func TestObserver_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	obs.observe("ask", time.Now(), nil)
	obs.observe("ask", time.Now(), errors.New("boom"))
	obs.tokens(5, 0)

	if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues("ask", "ok")); got != 1 {
		t.Errorf("ok ops = %v, want 1", got)
	}
	if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues("ask", "error")); got != 1 {
		t.Errorf("error ops = %v, want 1", got)
	}
	if got := testutil.ToFloat64(obs.metrics.tokens.WithLabelValues("embedding")); got != 5 {
		t.Errorf("embedding tokens = %v, want 5", got)
	}
	if got := testutil.CollectAndCount(obs.metrics.tokens); got != 1 {
		t.Errorf("zero generation tokens must not create a series, got %d series", got)
	}
}

func TestObserver_ReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := newObserver(nil, reg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("second registration must reuse collectors: %v", err)
	}

	second.observe("usage", time.Now(), nil)
	if got := testutil.ToFloat64(first.metrics.operations.WithLabelValues("usage", "ok")); got != 1 {
		t.Errorf("collectors not shared: %v", got)
	}
}

func TestObserver_NilSafe(t *testing.T) {
	var obs *observer
	obs.observe("ask", time.Now(), nil)
	obs.tokens(1, 1)

	plain, err := newObserver(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	plain.tokens(1, 1)
}

func TestAsk_RecordsOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatal(err)
	}
	c := &Client{obs: obs, askSvc: &mockAskUC{fn: func(ctx context.Context, q query.Query) (answer.Result, error) {
		usageAdder(ctx, 3, 20)
		return answer.Result{Question: q.Question(), Answer: "a"}, nil
	}}}

	if _, err := c.Ask(context.Background(), "q", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Ask(context.Background(), "", 0); err == nil {
		t.Fatal("expected invalid query")
	}

	if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues("ask", "ok")); got != 1 {
		t.Errorf("ok asks = %v", got)
	}
	if got := testutil.ToFloat64(obs.metrics.operations.WithLabelValues("ask", "error")); got != 1 {
		t.Errorf("failed asks = %v", got)
	}
	if got := testutil.ToFloat64(obs.metrics.tokens.WithLabelValues("generation")); got != 20 {
		t.Errorf("generation tokens = %v", got)
	}
}
