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

// Ensure IndexerStateRepo implements IndexerStateRepository
var _ repositories.IndexerStateRepository = (*IndexerStateRepo)(nil)

// IndexerStateRepo implements IndexerStateRepository using PostgreSQL
type IndexerStateRepo struct {
	db *sqlx.DB
}

// NewIndexerStateRepo creates a new indexer state repository
func NewIndexerStateRepo(db *sqlx.DB) *IndexerStateRepo {
	return &IndexerStateRepo{db: db}
}

// Get retrieves the indexer state for a token
func (r *IndexerStateRepo) Get(ctx context.Context, chain, tokenAddress string) (*entities.IndexerState, error) {
	var state entities.IndexerState
	query := `
		SELECT chain, token_address, last_indexed_block, is_backfilling,
			   backfill_from_block, backfill_to_block, updated_at
		FROM indexer_state WHERE chain = $1 AND token_address = $2
	`

	if err := r.db.GetContext(ctx, &state, query, strings.ToLower(chain), strings.ToLower(tokenAddress)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get indexer state: %w", err)
	}

	return &state, nil
}

// Upsert creates or updates the indexer state
func (r *IndexerStateRepo) Upsert(ctx context.Context, state *entities.IndexerState) error {
	query := `
		INSERT INTO indexer_state (chain, token_address, last_indexed_block, is_backfilling, backfill_from_block, backfill_to_block)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (chain, token_address) DO UPDATE SET
			last_indexed_block = EXCLUDED.last_indexed_block,
			is_backfilling = EXCLUDED.is_backfilling,
			backfill_from_block = EXCLUDED.backfill_from_block,
			backfill_to_block = EXCLUDED.backfill_to_block,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		strings.ToLower(state.Chain),
		strings.ToLower(state.TokenAddress),
		state.LastIndexedBlock,
		state.IsBackfilling,
		state.BackfillFromBlock,
		state.BackfillToBlock,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert indexer state: %w", err)
	}

	return nil
}

// UpdateLastBlock moves the checkpoint of a token forward, creating the
// state row when missing. The checkpoint never moves backwards.
func (r *IndexerStateRepo) UpdateLastBlock(ctx context.Context, chain, tokenAddress string, blockNumber int64) error {
	query := `
		INSERT INTO indexer_state (chain, token_address, last_indexed_block)
		VALUES ($1, $2, $3)
		ON CONFLICT (chain, token_address) DO UPDATE SET
			last_indexed_block = GREATEST(indexer_state.last_indexed_block, EXCLUDED.last_indexed_block),
			updated_at = NOW()
	`

	if _, err := r.db.ExecContext(ctx, query, strings.ToLower(chain), strings.ToLower(tokenAddress), blockNumber); err != nil {
		return fmt.Errorf("failed to update last block: %w", err)
	}
	return nil
}

// SetBackfilling records whether a backfill is running for a token and over which range
func (r *IndexerStateRepo) SetBackfilling(ctx context.Context, chain, tokenAddress string, isBackfilling bool, fromBlock, toBlock *int64) error {
	query := `
		INSERT INTO indexer_state (chain, token_address, is_backfilling, backfill_from_block, backfill_to_block)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chain, token_address) DO UPDATE SET
			is_backfilling = EXCLUDED.is_backfilling,
			backfill_from_block = EXCLUDED.backfill_from_block,
			backfill_to_block = EXCLUDED.backfill_to_block,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, strings.ToLower(chain), strings.ToLower(tokenAddress), isBackfilling, fromBlock, toBlock)
	if err != nil {
		return fmt.Errorf("failed to set backfilling: %w", err)
	}

	return nil
}

// List returns the state of every token indexed on chain
func (r *IndexerStateRepo) List(ctx context.Context, chain string) ([]entities.IndexerState, error) {
	var states []entities.IndexerState
	query := `
		SELECT chain, token_address, last_indexed_block, is_backfilling,
			   backfill_from_block, backfill_to_block, updated_at
		FROM indexer_state WHERE chain = $1 ORDER BY token_address
	`

	if err := r.db.SelectContext(ctx, &states, query, strings.ToLower(chain)); err != nil {
		return nil, fmt.Errorf("failed to list indexer state: %w", err)
	}
	return states, nil
}
