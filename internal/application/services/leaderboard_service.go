package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/bimakw/collective-ledger/internal/domain/entities"
	"github.com/bimakw/collective-ledger/internal/domain/ledger"
	"github.com/bimakw/collective-ledger/internal/domain/repositories"
)

// LeaderboardService ranks the counterparties of a collective
type LeaderboardService struct {
	transactions *TransactionService
	collectives  repositories.CollectiveRepository
	rates        *ledger.RateTable
	logger       *zap.Logger
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(
	transactions *TransactionService,
	collectives repositories.CollectiveRepository,
	rates *ledger.RateTable,
	logger *zap.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		transactions: transactions,
		collectives:  collectives,
		rates:        rates,
		logger:       logger,
	}
}

// LeaderboardQuery selects the period, direction and size of a leaderboard
type LeaderboardQuery struct {
	Period    Period
	Direction entities.Direction
	// Limit caps the number of entries returned; zero returns all of them
	Limit int
}

// LeaderboardResponse is the API response for leaderboard queries
type LeaderboardResponse struct {
	Collective string               `json:"collective"`
	Period     Period               `json:"period"`
	Currency   string               `json:"currency"`
	Total      int                  `json:"total"`
	Data       entities.Leaderboard `json:"data"`
}

// GetLeaderboard ranks the collective's counterparties by value exchanged in
// the collective's primary currency. The collective's own wallets are excluded.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, slug string, query LeaderboardQuery) (*LeaderboardResponse, error) {
	if err := query.Period.Validate(); err != nil {
		return nil, err
	}
	cc, err := loadCollective(ctx, s.collectives, slug)
	if err != nil {
		return nil, err
	}

	txs, err := s.transactions.transactions(ctx, cc, query.Period)
	if err != nil {
		return nil, err
	}

	board := ledger.GetLeaderboard(txs, cc.reference, ledger.LeaderboardOptions{
		Direction: query.Direction,
		Rates:     s.rates,
		Exclude:   cc.home,
	})
	total := len(board)
	if query.Limit > 0 && total > query.Limit {
		board = board[:query.Limit]
	}
	if board == nil {
		board = entities.Leaderboard{}
	}

	s.logger.Debug("Computed leaderboard",
		zap.String("collective", cc.collective.Slug),
		zap.String("direction", string(query.Direction)),
		zap.Int("entries", total),
	)

	return &LeaderboardResponse{
		Collective: cc.collective.Slug,
		Period:     query.Period,
		Currency:   cc.reference,
		Total:      total,
		Data:       board,
	}, nil
}
