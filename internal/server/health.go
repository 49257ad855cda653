package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/vanshika/icorewards/internal/graph"
)

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// Pinger is implemented by the ledger store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DependencyHealth verifies the graph database and the ledger.
type DependencyHealth struct {
	Graph  graph.Client
	Ledger Pinger
}

// Probe implements the HealthService interface. Both dependencies are
// checked and every failure is reported.
func (s DependencyHealth) Probe(ctx context.Context) error {
	var errs []error
	if s.Graph != nil {
		if err := s.Graph.VerifyConnectivity(ctx); err != nil {
			errs = append(errs, fmt.Errorf("graph: %w", err))
		}
	}
	if s.Ledger != nil {
		if err := s.Ledger.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("ledger: %w", err))
		}
	}
	return errors.Join(errs...)
}
