package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/bimakw/collective-ledger/internal/domain/entities"
	"github.com/bimakw/collective-ledger/internal/domain/repositories"
)

// Ensure TokenRepo implements TokenRepository
var _ repositories.TokenRepository = (*TokenRepo)(nil)

// TokenRepo implements TokenRepository using PostgreSQL
type TokenRepo struct {
	db *sqlx.DB
}

// NewTokenRepo creates a new token repository
func NewTokenRepo(db *sqlx.DB) *TokenRepo {
	return &TokenRepo{db: db}
}

const tokenColumns = `chain, address, name, symbol, decimals, total_indexed_transfers,
	first_seen_block, last_seen_block, created_at, updated_at`

// GetByAddress retrieves a token by chain and address
func (r *TokenRepo) GetByAddress(ctx context.Context, chain, address string) (*entities.Token, error) {
	var token entities.Token
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE chain = $1 AND address = $2`

	if err := r.db.GetContext(ctx, &token, query, strings.ToLower(chain), strings.ToLower(address)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	return &token, nil
}

// GetAll retrieves all tokens
func (r *TokenRepo) GetAll(ctx context.Context) ([]entities.Token, error) {
	var tokens []entities.Token
	query := `SELECT ` + tokenColumns + ` FROM tokens ORDER BY chain, symbol`

	if err := r.db.SelectContext(ctx, &tokens, query); err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}

	return tokens, nil
}

// Upsert creates or updates a token
func (r *TokenRepo) Upsert(ctx context.Context, token *entities.Token) error {
	query := `
		INSERT INTO tokens (chain, address, name, symbol, decimals, first_seen_block)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chain, address) DO UPDATE SET
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			decimals = EXCLUDED.decimals,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		strings.ToLower(token.Chain),
		strings.ToLower(token.Address),
		token.Name,
		token.Symbol,
		token.Decimals,
		token.FirstSeenBlock,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert token: %w", err)
	}

	return nil
}

// UpdateStats updates token statistics
func (r *TokenRepo) UpdateStats(ctx context.Context, chain, address string, transferCount int64, lastBlock int64) error {
	query := `
		UPDATE tokens SET
			total_indexed_transfers = total_indexed_transfers + $3,
			last_seen_block = GREATEST(COALESCE(last_seen_block, 0), $4),
			updated_at = NOW()
		WHERE chain = $1 AND address = $2
	`

	_, err := r.db.ExecContext(ctx, query, strings.ToLower(chain), strings.ToLower(address), transferCount, lastBlock)
	if err != nil {
		return fmt.Errorf("failed to update token stats: %w", err)
	}

	return nil
}
