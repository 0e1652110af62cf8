package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bimakw/collective-ledger/internal/config"
	"github.com/bimakw/collective-ledger/internal/domain/entities"
	"github.com/bimakw/collective-ledger/internal/domain/repositories"
	"github.com/bimakw/collective-ledger/internal/infrastructure/ethereum"
)

// TransactionFetcher reads Transfer events from the chain
type TransactionFetcher interface {
	GetSafeBlockNumber(ctx context.Context) (int64, error)
	FetchTransactions(ctx context.Context, tokenAddresses []string, fromBlock, toBlock int64) (*ethereum.FetchResult, error)
}

// TokenMetadataFetcher reads token metadata from the chain
type TokenMetadataFetcher interface {
	FetchToken(ctx context.Context, address string) (entities.Token, error)
}

var (
	_ TransactionFetcher   = (*ethereum.Fetcher)(nil)
	_ TokenMetadataFetcher = (*ethereum.MetadataFetcher)(nil)
)

// IndexerService indexes the Transfer events of the tracked token contracts on one chain
type IndexerService struct {
	chain       string
	fetcher     TransactionFetcher
	metadata    TokenMetadataFetcher
	tokenRepo   repositories.TokenRepository
	txRepo      repositories.TransactionRepository
	stateRepo   repositories.IndexerStateRepository
	collectives repositories.CollectiveRepository
	config      config.IndexerConfig
	logger      *zap.Logger

	tokens  []string
	metrics *IndexerMetrics
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// IndexerMetrics is a snapshot of the indexer's progress
type IndexerMetrics struct {
	mu                  sync.RWMutex
	BlocksIndexed       int64
	TransactionsIndexed int64
	LastIndexedBlock    int64
	LastIndexedTime     time.Time
	IndexingLatencyMs   int64
	ErrorCount          int64
}

// NewIndexerService creates a new indexer service
func NewIndexerService(
	chain string,
	fetcher TransactionFetcher,
	metadata TokenMetadataFetcher,
	tokenRepo repositories.TokenRepository,
	txRepo repositories.TransactionRepository,
	stateRepo repositories.IndexerStateRepository,
	collectives repositories.CollectiveRepository,
	cfg config.IndexerConfig,
	logger *zap.Logger,
) *IndexerService {
	return &IndexerService{
		chain:       chain,
		fetcher:     fetcher,
		metadata:    metadata,
		tokenRepo:   tokenRepo,
		txRepo:      txRepo,
		stateRepo:   stateRepo,
		collectives: collectives,
		config:      cfg,
		logger:      logger,
		metrics:     &IndexerMetrics{},
		stopCh:      make(chan struct{}),
	}
}

// Start resolves and initializes the tracked tokens, then starts the polling loop
func (s *IndexerService) Start(ctx context.Context) error {
	tokens, err := s.resolveTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to resolve tokens: %w", err)
	}
	s.tokens = tokens

	s.logger.Info("Starting indexer service",
		zap.String("chain", s.chain),
		zap.Strings("tokens", s.tokens),
	)

	if err := s.initializeTokens(ctx); err != nil {
		return fmt.Errorf("failed to initialize tokens: %w", err)
	}
	s.warnInterruptedBackfills(ctx)

	s.wg.Add(1)
	go s.runIndexingLoop(ctx)

	return nil
}

// Stop gracefully stops the indexer
func (s *IndexerService) Stop() {
	s.logger.Info("Stopping indexer service")
	close(s.stopCh)
	s.wg.Wait()
}

// Tokens returns the tracked token addresses
func (s *IndexerService) Tokens() []string {
	return s.tokens
}

// Checkpoints returns the indexing state of every token on the chain
func (s *IndexerService) Checkpoints(ctx context.Context) ([]entities.IndexerState, error) {
	states, err := s.stateRepo.List(ctx, s.chain)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return states, nil
}

// warnInterruptedBackfills reports backfills left flagged by a previous run
func (s *IndexerService) warnInterruptedBackfills(ctx context.Context) {
	states, err := s.Checkpoints(ctx)
	if err != nil {
		s.logger.Warn("Failed to read checkpoints", zap.Error(err))
		return
	}
	for _, st := range states {
		if !st.IsBackfilling {
			continue
		}
		fields := []zap.Field{zap.String("token", st.TokenAddress)}
		if st.BackfillFromBlock != nil && st.BackfillToBlock != nil {
			fields = append(fields,
				zap.Int64("from_block", *st.BackfillFromBlock),
				zap.Int64("to_block", *st.BackfillToBlock),
			)
		}
		s.logger.Warn("Backfill was interrupted and must be restarted", fields...)
	}
}

// GetMetrics returns current indexer metrics
func (s *IndexerService) GetMetrics() IndexerMetrics {
	s.metrics.mu.RLock()
	defer s.metrics.mu.RUnlock()
	return IndexerMetrics{
		BlocksIndexed:       s.metrics.BlocksIndexed,
		TransactionsIndexed: s.metrics.TransactionsIndexed,
		LastIndexedBlock:    s.metrics.LastIndexedBlock,
		LastIndexedTime:     s.metrics.LastIndexedTime,
		IndexingLatencyMs:   s.metrics.IndexingLatencyMs,
		ErrorCount:          s.metrics.ErrorCount,
	}
}

// resolveTokens merges the configured token addresses with the tokens on this
// chain referenced by collectives
func (s *IndexerService) resolveTokens(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var tokens []string
	add := func(addr string) {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" || seen[addr] {
			return
		}
		seen[addr] = true
		tokens = append(tokens, addr)
	}

	for _, addr := range s.config.TokenAddresses {
		add(addr)
	}

	if s.collectives != nil {
		known, err := s.collectives.KnownTokens(ctx)
		if err != nil {
			return nil, err
		}
		for _, t := range known {
			if strings.EqualFold(t.Chain, s.chain) {
				add(t.Address)
			}
		}
	}

	return tokens, nil
}

// initializeTokens ensures every tracked token has a token row and a checkpoint
func (s *IndexerService) initializeTokens(ctx context.Context) error {
	for _, addr := range s.tokens {
		existing, err := s.tokenRepo.GetByAddress(ctx, s.chain, addr)
		if err != nil {
			return fmt.Errorf("failed to check token %s: %w", addr, err)
		}
		if existing != nil {
			continue
		}

		token := entities.Token{Chain: s.chain, Address: addr, Name: "Unknown", Symbol: "UNK", Decimals: entities.DefaultDecimals}
		if s.metadata != nil {
			fetched, err := s.metadata.FetchToken(ctx, addr)
			if err != nil {
				s.logger.Warn("Failed to fetch token metadata, using fallback",
					zap.String("token", addr),
					zap.Error(err),
				)
			} else {
				token = fetched
				token.Chain = s.chain
			}
		}

		if err := s.tokenRepo.Upsert(ctx, &token); err != nil {
			return fmt.Errorf("failed to create token %s: %w", addr, err)
		}

		state := &entities.IndexerState{
			Chain:            s.chain,
			TokenAddress:     addr,
			LastIndexedBlock: max(s.config.StartBlock-1, 0),
		}
		if err := s.stateRepo.Upsert(ctx, state); err != nil {
			return fmt.Errorf("failed to create indexer state for %s: %w", addr, err)
		}

		s.logger.Info("Initialized token",
			zap.String("chain", s.chain),
			zap.String("address", addr),
			zap.String("symbol", token.Symbol),
		)
	}

	return nil
}

// runIndexingLoop continuously indexes new blocks
func (s *IndexerService) runIndexingLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.IndexNewBlocks(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.IndexNewBlocks(ctx)
		}
	}
}

// IndexNewBlocks runs one indexing pass over every tracked token
func (s *IndexerService) IndexNewBlocks(ctx context.Context) {
	startTime := time.Now()

	safeBlock, err := s.fetcher.GetSafeBlockNumber(ctx)
	if err != nil {
		s.logger.Error("Failed to get safe block number", zap.Error(err))
		s.incrementErrorCount()
		return
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.config.WorkerCount, 1))

	for _, addr := range s.tokens {
		g.Go(func() error {
			return s.indexToken(gCtx, addr, safeBlock)
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Error("Error indexing transactions", zap.Error(err))
		s.incrementErrorCount()
	}

	latency := time.Since(startTime)
	indexingLatency.WithLabelValues(s.chain).Observe(latency.Seconds())

	s.metrics.mu.Lock()
	s.metrics.IndexingLatencyMs = latency.Milliseconds()
	s.metrics.LastIndexedTime = time.Now()
	s.metrics.mu.Unlock()
}

// indexToken indexes one token from its checkpoint up to toBlock
func (s *IndexerService) indexToken(ctx context.Context, tokenAddress string, toBlock int64) error {
	state, err := s.stateRepo.Get(ctx, s.chain, tokenAddress)
	if err != nil {
		return fmt.Errorf("failed to get indexer state: %w", err)
	}
	if state == nil {
		return fmt.Errorf("indexer state not found for %s", tokenAddress)
	}

	fromBlock := state.LastIndexedBlock + 1
	if fromBlock > toBlock {
		return nil
	}

	for _, r := range ethereum.SplitBlockRange(fromBlock, toBlock, s.config.BatchSize) {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := s.indexRange(ctx, tokenAddress, r)
		if err != nil {
			return err
		}

		if err := s.stateRepo.UpdateLastBlock(ctx, s.chain, tokenAddress, r.To); err != nil {
			return fmt.Errorf("failed to update checkpoint: %w", err)
		}

		s.updateMetrics(tokenAddress, r.To-r.From+1, int64(n), r.To)

		s.logger.Debug("Indexed block range",
			zap.String("token", tokenAddress),
			zap.Int64("from", r.From),
			zap.Int64("to", r.To),
			zap.Int("transactions", n),
		)
	}

	return nil
}

// indexRange fetches and stores one block range, returning the number of transactions
func (s *IndexerService) indexRange(ctx context.Context, tokenAddress string, r ethereum.BlockRange) (int, error) {
	result, err := s.fetcher.FetchTransactions(ctx, []string{tokenAddress}, r.From, r.To)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch transactions for blocks %d-%d: %w", r.From, r.To, err)
	}
	if len(result.Transactions) == 0 {
		return 0, nil
	}

	if err := s.txRepo.BatchInsert(ctx, result.Transactions); err != nil {
		return 0, fmt.Errorf("failed to insert transactions: %w", err)
	}

	if err := s.tokenRepo.UpdateStats(ctx, s.chain, tokenAddress, int64(len(result.Transactions)), r.To); err != nil {
		s.logger.Warn("Failed to update token stats", zap.Error(err))
	}

	return len(result.Transactions), nil
}

// Backfill indexes a historical block range of a token without moving its checkpoint
func (s *IndexerService) Backfill(ctx context.Context, tokenAddress string, fromBlock, toBlock int64) error {
	tokenAddress = strings.ToLower(tokenAddress)

	s.logger.Info("Starting backfill",
		zap.String("chain", s.chain),
		zap.String("token", tokenAddress),
		zap.Int64("from_block", fromBlock),
		zap.Int64("to_block", toBlock),
	)

	if err := s.stateRepo.SetBackfilling(ctx, s.chain, tokenAddress, true, &fromBlock, &toBlock); err != nil {
		return fmt.Errorf("failed to set backfilling state: %w", err)
	}

	defer func() {
		if err := s.stateRepo.SetBackfilling(context.WithoutCancel(ctx), s.chain, tokenAddress, false, nil, nil); err != nil {
			s.logger.Warn("Failed to clear backfilling state", zap.Error(err))
		}
	}()

	ranges := ethereum.SplitBlockRange(fromBlock, toBlock, s.config.BackfillBatchSize)

	for i, r := range ranges {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := s.indexRange(ctx, tokenAddress, r)
		if err != nil {
			return fmt.Errorf("backfill failed at blocks %d-%d: %w", r.From, r.To, err)
		}

		s.logger.Info("Backfill progress",
			zap.String("token", tokenAddress),
			zap.Int("batch", i+1),
			zap.Int("total_batches", len(ranges)),
			zap.Int64("from", r.From),
			zap.Int64("to", r.To),
			zap.Int("transactions", n),
		)
	}

	s.logger.Info("Backfill completed",
		zap.String("token", tokenAddress),
		zap.Int64("from_block", fromBlock),
		zap.Int64("to_block", toBlock),
	)

	return nil
}

func (s *IndexerService) updateMetrics(tokenAddress string, blocks, txs, lastBlock int64) {
	blocksIndexedTotal.WithLabelValues(s.chain).Add(float64(blocks))
	transactionsIndexedTotal.WithLabelValues(s.chain, tokenAddress).Add(float64(txs))
	lastIndexedBlock.WithLabelValues(s.chain, tokenAddress).Set(float64(lastBlock))

	s.metrics.mu.Lock()
	defer s.metrics.mu.Unlock()
	s.metrics.BlocksIndexed += blocks
	s.metrics.TransactionsIndexed += txs
	s.metrics.LastIndexedBlock = max(s.metrics.LastIndexedBlock, lastBlock)
}

func (s *IndexerService) incrementErrorCount() {
	indexerErrorsTotal.WithLabelValues(s.chain).Inc()

	s.metrics.mu.Lock()
	defer s.metrics.mu.Unlock()
	s.metrics.ErrorCount++
}
