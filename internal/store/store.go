// Package store persists leads and their calculations. Two implementations
// are provided: an in-process map for single-node deployments and tests, and
// PostgreSQL via pgx.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/iwvelando/mro-estimator/internal/lead"
	"github.com/iwvelando/mro-estimator/pkg/constants"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a lead does not exist.
var ErrNotFound = errors.New("lead not found")

// Store is a keyed record store for leads and calculations.
type Store interface {
	// UpsertLead returns the existing lead for l.Email, or stores l. The
	// created flag reports which happened.
	UpsertLead(ctx context.Context, l lead.Lead) (lead.Lead, bool, error)
	GetLead(ctx context.Context, id string) (lead.Lead, error)
	SetCRMStatus(ctx context.Context, id, status string) error
	CreateCalculation(ctx context.Context, c lead.Calculation) (lead.Calculation, error)
	CalculationsByLead(ctx context.Context, leadID string) ([]lead.Calculation, error)
	Close()
}

// Options selects and configures a Store.
type Options struct {
	Driver      string
	DatabaseURL string
}

// Open builds the store named by opts.Driver.
func Open(ctx context.Context, logger *zap.Logger, opts Options) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch opts.Driver {
	case "", constants.StoreDriverMemory:
		logger.Info("using in-memory lead store",
			zap.String("op", "store.Open"),
		)
		return NewMemory(), nil
	case constants.StoreDriverPostgres:
		pg, err := NewPostgres(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to postgres lead store",
			zap.String("op", "store.Open"),
		)
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
