package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/bimakw/collective-ledger/internal/config"
	"github.com/bimakw/collective-ledger/internal/domain/entities"
	"github.com/bimakw/collective-ledger/internal/domain/ledger"
	"github.com/bimakw/collective-ledger/internal/domain/repositories"
	"github.com/bimakw/collective-ledger/internal/infrastructure/cache"
)

// TransactionService assembles the transactions of a collective
type TransactionService struct {
	txRepo      repositories.TransactionRepository
	collectives repositories.CollectiveRepository
	cache       *cache.Cache
	cacheCfg    config.CacheConfig
	logger      *zap.Logger
}

// NewTransactionService creates a new transaction service. c may be nil.
func NewTransactionService(
	txRepo repositories.TransactionRepository,
	collectives repositories.CollectiveRepository,
	c *cache.Cache,
	cacheCfg config.CacheConfig,
	logger *zap.Logger,
) *TransactionService {
	return &TransactionService{
		txRepo:      txRepo,
		collectives: collectives,
		cache:       c,
		cacheCfg:    cacheCfg,
		logger:      logger,
	}
}

// TransactionsCacheKey is the cache key of a collective's transactions for a period
func TransactionsCacheKey(slug string, period Period) string {
	return fmt.Sprintf("transactions:%s:%d:%d", slug, period.Year, period.Month)
}

// GetCollectiveTransactions returns the collective's transactions in the period,
// newest first, without ignored hashes. Results go through the cache.
func (s *TransactionService) GetCollectiveTransactions(ctx context.Context, slug string, period Period) ([]entities.Transaction, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	cc, err := loadCollective(ctx, s.collectives, slug)
	if err != nil {
		return nil, err
	}
	return s.transactions(ctx, cc, period)
}

func (s *TransactionService) transactions(ctx context.Context, cc *collectiveContext, period Period) ([]entities.Transaction, error) {
	load := func(ctx context.Context) ([]entities.Transaction, error) {
		return s.query(ctx, cc.collective, period)
	}
	if s.cache == nil {
		return load(ctx)
	}

	txs, _, err := cache.Get(ctx, s.cache, TransactionsCacheKey(cc.collective.Slug, period), cache.Options[[]entities.Transaction]{
		Version:     s.cacheCfg.Version,
		TTL:         s.cacheCfg.TTL,
		GracePeriod: s.cacheCfg.GracePeriod,
		Refresh:     load,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	return txs, nil
}

// query reads the collective's transactions from the repository
func (s *TransactionService) query(ctx context.Context, c *entities.Collective, period Period) ([]entities.Transaction, error) {
	home := c.HomeAddresses()
	if len(home) == 0 {
		return []entities.Transaction{}, nil
	}

	from, to := period.Range()
	filter := entities.TransactionFilter{
		TokenAddresses: c.TokenAddresses(),
		Addresses:      home,
		FromTime:       &from,
		ToTime:         &to,
	}

	txs, err := s.txRepo.GetByFilter(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}

	known := ledger.NewTokenRegistry(c.Tokens...)
	out := make([]entities.Transaction, 0, len(txs))
	for _, tx := range txs {
		if c.IsIgnored(tx.TxHash) {
			continue
		}
		if t, ok := known.Lookup(tx.Token.Chain, tx.Token.Address); ok {
			tx.Token = mergeToken(tx.Token, t)
		}
		out = append(out, tx)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].LogIndex > out[j].LogIndex
	})

	s.logger.Debug("Loaded collective transactions",
		zap.String("collective", c.Slug),
		zap.Int("year", period.Year),
		zap.Int("month", period.Month),
		zap.Int("count", len(out)),
	)

	return out, nil
}

// mergeToken fills the fields the indexed token is missing from configuration
func mergeToken(indexed, configured entities.Token) entities.Token {
	if indexed.Name == "" {
		indexed.Name = configured.Name
	}
	if indexed.Symbol == "" {
		indexed.Symbol = configured.Symbol
	}
	if indexed.Decimals <= 0 {
		indexed.Decimals = configured.Decimals
	}
	if indexed.ImageURL == "" {
		indexed.ImageURL = configured.ImageURL
	}
	return indexed
}

// FeedFilter selects a page of a collective's transaction feed
type FeedFilter struct {
	Period    Period
	TokenType entities.TokenType
	Direction entities.Direction
	Limit     int
	Offset    int
}

// FeedItem is a transaction annotated for display
type FeedItem struct {
	entities.Transaction
	Direction entities.Direction `json:"direction"`
	Amount    float64            `json:"amount"`
}

// FeedResponse is the API response for feed queries
type FeedResponse struct {
	Transactions []FeedItem `json:"transactions"`
	Total        int        `json:"total"`
	Limit        int        `json:"limit"`
	Offset       int        `json:"offset"`
	HasMore      bool       `json:"has_more"`
}

// GetFeed returns a page of the collective's transactions matching the filter
func (s *TransactionService) GetFeed(ctx context.Context, slug string, filter FeedFilter) (*FeedResponse, error) {
	if err := filter.Period.Validate(); err != nil {
		return nil, err
	}
	cc, err := loadCollective(ctx, s.collectives, slug)
	if err != nil {
		return nil, err
	}

	txs, err := s.transactions(ctx, cc, filter.Period)
	if err != nil {
		return nil, err
	}
	txs = ledger.FilterTransactions(txs, filter.TokenType, filter.Direction, cc.home)

	total := len(txs)
	start := min(max(filter.Offset, 0), total)
	end := total
	if filter.Limit > 0 {
		end = min(start+filter.Limit, total)
	}

	items := make([]FeedItem, 0, end-start)
	for _, tx := range txs[start:end] {
		direction, _ := ledger.ClassifyDirection(tx, cc.home)
		amount, _ := ledger.ToFloat(tx.Value, tx.Token.EffectiveDecimals())
		items = append(items, FeedItem{
			Transaction: tx,
			Direction:   direction,
			Amount:      amount,
		})
	}

	return &FeedResponse{
		Transactions: items,
		Total:        total,
		Limit:        filter.Limit,
		Offset:       filter.Offset,
		HasMore:      end < total,
	}, nil
}
