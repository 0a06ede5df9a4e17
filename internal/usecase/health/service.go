package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates no usable corpus or total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

const defaultCheckTimeout = 3 * time.Second

// Report aggregates health check results.
type Report struct {
	Status     Status
	Checks     map[string]CheckResult
	CorpusSize int
}

type namedCheck struct {
	name string
	fn   func(ctx context.Context) error
}

// Service coordinates health checks.
type Service struct {
	corpusSize int
	timeout    time.Duration
	checks     []namedCheck
}

// New creates a Service for a corpus of the given size.
func New(corpusSize int) *Service {
	return &Service{corpusSize: corpusSize, timeout: defaultCheckTimeout}
}

// WithDatabase adds a "database" check. nil is ignored.
func (s *Service) WithDatabase(db DBPinger) *Service {
	if db != nil {
		s.checks = append(s.checks, namedCheck{name: "database", fn: db.Ping})
	}
	return s
}

// WithComponent adds a named model service check. nil is ignored.
func (s *Service) WithComponent(name string, c ComponentChecker) *Service {
	if c != nil {
		s.checks = append(s.checks, namedCheck{name: name, fn: c.HealthCheck})
	}
	return s
}

// Check runs all checks concurrently, each bounded by the per-check timeout.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.checks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range s.checks {
		c := c
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, s.timeout)
			defer cancel()

			res := CheckOK
			if err := c.fn(cctx); err != nil {
				res = CheckError
			}
			mu.Lock()
			checks[c.name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // checks never return errors

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if s.corpusSize == 0 {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks, CorpusSize: s.corpusSize}
}
