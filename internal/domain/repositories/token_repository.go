package repositories

import (
	"context"

	"github.com/bimakw/collective-ledger/internal/domain/entities"
)

// TokenRepository defines the interface for token data operations
type TokenRepository interface {
	// GetByAddress retrieves a token by chain and address
	GetByAddress(ctx context.Context, chain, address string) (*entities.Token, error)

	// GetAll retrieves all tokens
	GetAll(ctx context.Context) ([]entities.Token, error)

	// Upsert creates or updates a token
	Upsert(ctx context.Context, token *entities.Token) error

	// UpdateStats updates token statistics
	UpdateStats(ctx context.Context, chain, address string, transferCount int64, lastBlock int64) error
}
