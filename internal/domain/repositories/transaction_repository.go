package repositories

import (
	"context"

	"github.com/bimakw/collective-ledger/internal/domain/entities"
)

// TransactionRepository defines the interface for transaction data operations
type TransactionRepository interface {
	// GetByFilter retrieves transactions matching the given filter, newest first
	GetByFilter(ctx context.Context, filter entities.TransactionFilter) ([]entities.Transaction, error)

	// GetCount returns the count of transactions matching the filter
	GetCount(ctx context.Context, filter entities.TransactionFilter) (int64, error)

	// BatchInsert inserts multiple transactions in a single database transaction
	BatchInsert(ctx context.Context, txs []entities.Transaction) error

	// GetLatestBlock returns the latest indexed block for a token
	GetLatestBlock(ctx context.Context, chain, tokenAddress string) (int64, error)
}
