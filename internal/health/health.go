// Package health probes the external dependencies and reports a degraded
// rather than failed status when one of them is down.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/matthias-truyzelaere/documindr/internal/store"
)

// Status summarizes overall system health.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
)

const probeTimeout = 5 * time.Second

// Component is the probe result for one dependency.
type Component struct {
	Name    string
	Healthy bool
	Detail  string
}

// Report is a point-in-time health snapshot. A degraded report still
// carries every component's detail; the checker never errors out.
type Report struct {
	Status     Status
	Components []Component
	Pool       store.PoolStats
	CheckedAt  time.Time
}

// Pinger is anything with a reachability probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker probes the store and the model backend.
type Checker struct {
	store  store.Store
	model  Pinger
	logger *zap.Logger
}

// NewChecker creates a health checker. model may be nil when no generation
// backend is configured.
func NewChecker(st store.Store, model Pinger, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{store: st, model: model, logger: logger}
}

// Check probes each dependency with a bounded timeout and aggregates the
// results. It always returns a report.
func (c *Checker) Check(ctx context.Context) Report {
	report := Report{
		Status:    StatusHealthy,
		Pool:      c.store.Stats(),
		CheckedAt: time.Now(),
	}

	report.Components = append(report.Components, c.probe(ctx, "storage", c.store))
	if c.model != nil {
		report.Components = append(report.Components, c.probe(ctx, "model", c.model))
	}

	for _, comp := range report.Components {
		if !comp.Healthy {
			report.Status = StatusDegraded
			c.logger.Warn("dependency unhealthy",
				zap.String("component", comp.Name),
				zap.String("detail", comp.Detail))
		}
	}
	return report
}

func (c *Checker) probe(ctx context.Context, name string, p Pinger) Component {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		return Component{Name: name, Detail: err.Error()}
	}
	return Component{Name: name, Healthy: true, Detail: "ok"}
}
