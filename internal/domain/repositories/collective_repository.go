package repositories

import (
	"context"

	"github.com/bimakw/collective-ledger/internal/domain/entities"
)

// CollectiveRepository provides the configured collectives and known tokens
type CollectiveRepository interface {
	// GetBySlug returns the collective or nil when it does not exist
	GetBySlug(ctx context.Context, slug string) (*entities.Collective, error)

	// GetAll returns every collective
	GetAll(ctx context.Context) ([]entities.Collective, error)

	// KnownTokens returns the metadata of every token referenced by configuration
	KnownTokens(ctx context.Context) ([]entities.Token, error)
}
