package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/bimakw/collective-ledger/internal/domain/entities"
	"github.com/bimakw/collective-ledger/internal/domain/ledger"
	"github.com/bimakw/collective-ledger/internal/domain/repositories"
)

// StatsService computes per-token and per-token-type statistics of a collective
type StatsService struct {
	transactions *TransactionService
	collectives  repositories.CollectiveRepository
	rates        *ledger.RateTable
	logger       *zap.Logger
}

// NewStatsService creates a new stats service
func NewStatsService(
	transactions *TransactionService,
	collectives repositories.CollectiveRepository,
	rates *ledger.RateTable,
	logger *zap.Logger,
) *StatsService {
	return &StatsService{
		transactions: transactions,
		collectives:  collectives,
		rates:        rates,
		logger:       logger,
	}
}

// TokenStatsResponse is the API response for token stats queries
type TokenStatsResponse struct {
	Collective string                `json:"collective"`
	Period     Period                `json:"period"`
	Data       []entities.TokenStats `json:"data"`
}

// TotalsResponse is the API response for totals queries
type TotalsResponse struct {
	Collective string                                         `json:"collective"`
	Period     Period                                         `json:"period"`
	Currency   string                                         `json:"currency"`
	Data       map[entities.TokenType]*entities.DirectionTotals `json:"data"`
}

// GetTokenStats returns per-token statistics of the collective's known tokens
func (s *StatsService) GetTokenStats(ctx context.Context, slug string, period Period) (*TokenStatsResponse, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	cc, err := loadCollective(ctx, s.collectives, slug)
	if err != nil {
		return nil, err
	}

	txs, err := s.transactions.transactions(ctx, cc, period)
	if err != nil {
		return nil, err
	}

	knownTokens, err := s.collectives.KnownTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get known tokens: %w", err)
	}
	known := ledger.NewTokenRegistry(append(knownTokens, cc.collective.Tokens...)...)

	stats := ledger.ComputeTokenStats(txs, cc.home, known)

	data := make([]entities.TokenStats, 0, len(stats))
	for _, ts := range stats {
		data = append(data, *ts)
	}
	sort.Slice(data, func(i, j int) bool {
		if data[i].Token.Symbol != data[j].Token.Symbol {
			return data[i].Token.Symbol < data[j].Token.Symbol
		}
		return data[i].Token.Key().String() < data[j].Token.Key().String()
	})

	return &TokenStatsResponse{
		Collective: cc.collective.Slug,
		Period:     period,
		Data:       data,
	}, nil
}

// GetTotals returns inbound, outbound and internal sums per token type in the
// collective's primary currency
func (s *StatsService) GetTotals(ctx context.Context, slug string, period Period) (*TotalsResponse, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	cc, err := loadCollective(ctx, s.collectives, slug)
	if err != nil {
		return nil, err
	}

	txs, err := s.transactions.transactions(ctx, cc, period)
	if err != nil {
		return nil, err
	}

	totals := ledger.TotalsByTokenType(txs, cc.home, cc.reference, s.rates)
	if totals == nil {
		totals = map[entities.TokenType]*entities.DirectionTotals{}
	}

	return &TotalsResponse{
		Collective: cc.collective.Slug,
		Period:     period,
		Currency:   cc.reference,
		Data:       totals,
	}, nil
}
