package store

import (
	"context"

	"github.com/sakaguchiii/bus-notification/internal/domain"
)

// Repo defines storage operations for the stop directory.
type Repo interface {
	ListStops(ctx context.Context) ([]domain.Stop, error)
	UpsertStops(ctx context.Context, stops []domain.Stop) error
	Close() error
}
