package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bimakw/collective-ledger/internal/config"
	"github.com/bimakw/collective-ledger/internal/domain/entities"
	"github.com/bimakw/collective-ledger/internal/infrastructure/cache"
)

// BlockSource is the subset of the node client used by the fetcher
type BlockSource interface {
	GetLatestBlockNumber(ctx context.Context) (uint64, error)
	GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
	GetBlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error)
}

var _ BlockSource = (*Client)(nil)

// Fetcher pulls Transfer logs and turns them into transactions
type Fetcher struct {
	source BlockSource
	chain  ChainRef
	cache  *cache.Cache
	config config.IndexerConfig
	logger *zap.Logger
}

// NewFetcher creates a fetcher. Block timestamps are memoized in c when it is not nil.
func NewFetcher(source BlockSource, chain ChainRef, c *cache.Cache, cfg config.IndexerConfig, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		source: source,
		chain:  chain,
		cache:  c,
		config: cfg,
		logger: logger,
	}
}

// FetchResult contains the result of fetching transactions
type FetchResult struct {
	Transactions   []entities.Transaction
	FromBlock      int64
	ToBlock        int64
	FailedLogCount int
}

// FetchTransactions fetches Transfer events of the given token contracts in a block range
func (f *Fetcher) FetchTransactions(ctx context.Context, tokenAddresses []string, fromBlock, toBlock int64) (*FetchResult, error) {
	addresses := make([]common.Address, len(tokenAddresses))
	for i, addr := range tokenAddresses {
		addresses[i] = common.HexToAddress(addr)
	}

	query := BuildTransferFilterQuery(big.NewInt(fromBlock), big.NewInt(toBlock), addresses)

	f.logger.Debug("Fetching logs",
		zap.String("chain", f.chain.Name),
		zap.Int64("from_block", fromBlock),
		zap.Int64("to_block", toBlock),
		zap.Int("token_count", len(tokenAddresses)),
	)

	logs, err := f.source.GetLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch logs: %w", err)
	}

	result := &FetchResult{
		Transactions: []entities.Transaction{},
		FromBlock:    fromBlock,
		ToBlock:      toBlock,
	}
	if len(logs) == 0 {
		return result, nil
	}

	blockNumbers := make(map[uint64]struct{})
	for _, log := range logs {
		blockNumbers[log.BlockNumber] = struct{}{}
	}

	timestamps, err := f.fetchBlockTimestamps(ctx, blockNumbers)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch block timestamps: %w", err)
	}

	txs, failed := ParseTransferLogs(logs, f.chain, timestamps)
	if len(failed) > 0 {
		f.logger.Warn("Failed to parse some logs",
			zap.Int("failed_count", len(failed)),
			zap.Int("total_logs", len(logs)),
		)
	}

	f.logger.Info("Fetched transactions",
		zap.String("chain", f.chain.Name),
		zap.Int64("from_block", fromBlock),
		zap.Int64("to_block", toBlock),
		zap.Int("tx_count", len(txs)),
	)

	result.Transactions = txs
	result.FailedLogCount = len(failed)
	return result, nil
}

// fetchBlockTimestamps resolves timestamps for multiple blocks concurrently
func (f *Fetcher) fetchBlockTimestamps(ctx context.Context, blockNumbers map[uint64]struct{}) (map[uint64]int64, error) {
	timestamps := make(map[uint64]int64, len(blockNumbers))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(f.config.WorkerCount, 1))

	for blockNum := range blockNumbers {
		g.Go(func() error {
			ts, err := f.BlockTimestamp(ctx, blockNum)
			if err != nil {
				return fmt.Errorf("failed to get timestamp for block %d: %w", blockNum, err)
			}

			mu.Lock()
			timestamps[blockNum] = ts
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return timestamps, nil
}

// BlockTimestampKey is the cache key of a block timestamp
func BlockTimestampKey(chain string, blockNumber uint64) string {
	return fmt.Sprintf("%s:%d", chain, blockNumber)
}

// BlockTimestamp returns the unix timestamp of a block, memoized per chain and block.
// Block timestamps never change, so entries have no TTL.
func (f *Fetcher) BlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error) {
	load := func(ctx context.Context) (int64, error) {
		return f.source.GetBlockTimestamp(ctx, blockNumber)
	}
	if f.cache == nil {
		return load(ctx)
	}

	ts, _, err := cache.Get(ctx, f.cache, BlockTimestampKey(f.chain.Name, blockNumber), cache.Options[int64]{
		Refresh: load,
	})
	return ts, err
}

// GetSafeBlockNumber returns the latest block number minus confirmations
func (f *Fetcher) GetSafeBlockNumber(ctx context.Context) (int64, error) {
	latestBlock, err := f.source.GetLatestBlockNumber(ctx)
	if err != nil {
		return 0, err
	}

	safeBlock := int64(latestBlock) - int64(f.config.BlockConfirmations)
	if safeBlock < 0 {
		safeBlock = 0
	}
	return safeBlock, nil
}

// BlockRange represents a range of blocks to fetch
type BlockRange struct {
	From int64
	To   int64
}

// SplitBlockRange splits an inclusive range into batches of at most batchSize blocks
func SplitBlockRange(fromBlock, toBlock int64, batchSize int) []BlockRange {
	if fromBlock > toBlock || batchSize <= 0 {
		return nil
	}

	var ranges []BlockRange
	for current := fromBlock; current <= toBlock; current += int64(batchSize) {
		end := min(current+int64(batchSize)-1, toBlock)
		ranges = append(ranges, BlockRange{From: current, To: end})
	}
	return ranges
}
