package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/bimakw/collective-ledger/internal/domain/entities"
	"github.com/bimakw/collective-ledger/internal/domain/repositories"
)

// Ensure TransactionRepo implements TransactionRepository
var _ repositories.TransactionRepository = (*TransactionRepo)(nil)

// TransactionRepo implements TransactionRepository using PostgreSQL
type TransactionRepo struct {
	db *sqlx.DB
}

// NewTransactionRepo creates a new transaction repository
func NewTransactionRepo(db *sqlx.DB) *TransactionRepo {
	return &TransactionRepo{db: db}
}

// transactionRow is a transactions row joined with its token metadata
type transactionRow struct {
	Chain          string    `db:"chain"`
	ChainID        int64     `db:"chain_id"`
	TxHash         string    `db:"tx_hash"`
	LogIndex       int       `db:"log_index"`
	BlockNumber    int64     `db:"block_number"`
	BlockTimestamp time.Time `db:"block_timestamp"`
	TokenAddress   string    `db:"token_address"`
	FromAddress    string    `db:"from_address"`
	ToAddress      string    `db:"to_address"`
	Value          string    `db:"value"`
	TokenName      string    `db:"token_name"`
	TokenSymbol    string    `db:"token_symbol"`
	TokenDecimals  int       `db:"token_decimals"`
}

func (r transactionRow) toEntity() entities.Transaction {
	return entities.Transaction{
		ChainID:     r.ChainID,
		TxHash:      r.TxHash,
		LogIndex:    r.LogIndex,
		BlockNumber: r.BlockNumber,
		Timestamp:   r.BlockTimestamp.Unix(),
		From:        r.FromAddress,
		To:          r.ToAddress,
		Value:       r.Value,
		Token: entities.Token{
			Chain:    r.Chain,
			Address:  r.TokenAddress,
			Name:     r.TokenName,
			Symbol:   r.TokenSymbol,
			Decimals: r.TokenDecimals,
		},
	}
}

// GetByFilter retrieves transactions matching the given filter
func (r *TransactionRepo) GetByFilter(ctx context.Context, filter entities.TransactionFilter) ([]entities.Transaction, error) {
	query, args := buildFilterQuery(filter, false)

	var rows []transactionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}

	txs := make([]entities.Transaction, len(rows))
	for i, row := range rows {
		txs[i] = row.toEntity()
	}
	return txs, nil
}

// GetCount returns the count of transactions matching the filter
func (r *TransactionRepo) GetCount(ctx context.Context, filter entities.TransactionFilter) (int64, error) {
	query, args := buildFilterQuery(filter, true)

	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to get transaction count: %w", err)
	}

	return count, nil
}

// buildFilterQuery builds the SQL query for filtering transactions.
// A non-positive limit returns every matching row.
func buildFilterQuery(filter entities.TransactionFilter, countOnly bool) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	argIdx := 1

	if filter.Chain != nil {
		conditions = append(conditions, fmt.Sprintf("t.chain = $%d", argIdx))
		args = append(args, *filter.Chain)
		argIdx++
	}

	if len(filter.TokenAddresses) > 0 {
		conditions = append(conditions, fmt.Sprintf("t.token_address = ANY($%d)", argIdx))
		args = append(args, pq.Array(lowerAll(filter.TokenAddresses)))
		argIdx++
	}

	if len(filter.Addresses) > 0 {
		conditions = append(conditions, fmt.Sprintf("(t.from_address = ANY($%d) OR t.to_address = ANY($%d))", argIdx, argIdx))
		args = append(args, pq.Array(lowerAll(filter.Addresses)))
		argIdx++
	}

	if filter.FromBlock != nil {
		conditions = append(conditions, fmt.Sprintf("t.block_number >= $%d", argIdx))
		args = append(args, *filter.FromBlock)
		argIdx++
	}

	if filter.ToBlock != nil {
		conditions = append(conditions, fmt.Sprintf("t.block_number <= $%d", argIdx))
		args = append(args, *filter.ToBlock)
		argIdx++
	}

	if filter.FromTime != nil {
		conditions = append(conditions, fmt.Sprintf("t.block_timestamp >= $%d", argIdx))
		args = append(args, *filter.FromTime)
		argIdx++
	}

	if filter.ToTime != nil {
		conditions = append(conditions, fmt.Sprintf("t.block_timestamp < $%d", argIdx))
		args = append(args, *filter.ToTime)
		argIdx++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	if countOnly {
		return fmt.Sprintf("SELECT COUNT(*) FROM transactions t %s", whereClause), args
	}

	query := fmt.Sprintf(`
		SELECT t.chain, t.chain_id, t.tx_hash, t.log_index, t.block_number, t.block_timestamp,
			   t.token_address, t.from_address, t.to_address, t.value::TEXT AS value,
			   COALESCE(k.name, '') AS token_name,
			   COALESCE(k.symbol, '') AS token_symbol,
			   COALESCE(k.decimals, 0) AS token_decimals
		FROM transactions t
		LEFT JOIN tokens k ON k.chain = t.chain AND k.address = t.token_address
		%s
		ORDER BY t.block_timestamp DESC, t.log_index DESC
	`, whereClause)

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
		args = append(args, filter.Limit, filter.Offset)
	}

	return query, args
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// BatchInsert inserts multiple transactions in a single database transaction
func (r *TransactionRepo) BatchInsert(ctx context.Context, txs []entities.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	dbtx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	query := `
		INSERT INTO transactions (chain, chain_id, tx_hash, log_index, block_number, block_timestamp,
								  token_address, from_address, to_address, value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (chain, tx_hash, log_index) DO NOTHING
	`

	stmt, err := dbtx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		_, err := stmt.ExecContext(ctx,
			strings.ToLower(t.Token.Chain),
			t.ChainID,
			t.TxHash,
			t.LogIndex,
			t.BlockNumber,
			t.Time(),
			strings.ToLower(t.Token.Address),
			strings.ToLower(t.From),
			strings.ToLower(t.To),
			t.Value,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
	}

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetLatestBlock returns the latest indexed block for a token
func (r *TransactionRepo) GetLatestBlock(ctx context.Context, chain, tokenAddress string) (int64, error) {
	query := `SELECT COALESCE(MAX(block_number), 0) FROM transactions WHERE chain = $1 AND token_address = $2`

	var blockNumber int64
	if err := r.db.GetContext(ctx, &blockNumber, query, strings.ToLower(chain), strings.ToLower(tokenAddress)); err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}

	return blockNumber, nil
}
