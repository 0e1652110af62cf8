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

// TokenService lists the configured collectives and the indexed tokens
type TokenService struct {
	tokenRepo   repositories.TokenRepository
	collectives repositories.CollectiveRepository
	logger      *zap.Logger
}

// NewTokenService creates a new token service
func NewTokenService(
	tokenRepo repositories.TokenRepository,
	collectives repositories.CollectiveRepository,
	logger *zap.Logger,
) *TokenService {
	return &TokenService{
		tokenRepo:   tokenRepo,
		collectives: collectives,
		logger:      logger,
	}
}

// TokenDTO is the API representation of a token
type TokenDTO struct {
	Chain                 string             `json:"chain"`
	Address               string             `json:"address"`
	Name                  string             `json:"name"`
	Symbol                string             `json:"symbol"`
	Decimals              int                `json:"decimals"`
	Type                  entities.TokenType `json:"type"`
	ImageURL              string             `json:"imageUrl,omitempty"`
	TotalIndexedTransfers int64              `json:"total_indexed_transfers"`
	LastSeenBlock         *int64             `json:"last_seen_block,omitempty"`
}

// TokenListResponse is the API response for token list queries
type TokenListResponse struct {
	Data []TokenDTO `json:"data"`
}

// CollectiveDTO summarizes a collective
type CollectiveDTO struct {
	Slug            string            `json:"slug"`
	Name            string            `json:"name"`
	PrimaryCurrency string            `json:"primaryCurrency"`
	Wallets         []entities.Wallet `json:"wallets"`
	Tokens          []entities.Token  `json:"tokens"`
}

// CollectiveListResponse is the API response for collective list queries
type CollectiveListResponse struct {
	Data []CollectiveDTO `json:"data"`
}

// CollectiveResponse is the API response for single collective queries
type CollectiveResponse struct {
	Data CollectiveDTO `json:"data"`
}

// GetAllTokens returns the indexed tokens, completed with configured metadata
func (s *TokenService) GetAllTokens(ctx context.Context) (*TokenListResponse, error) {
	indexed, err := s.tokenRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}

	knownTokens, err := s.collectives.KnownTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get known tokens: %w", err)
	}
	known := ledger.NewTokenRegistry(knownTokens...)

	dtos := make([]TokenDTO, 0, len(indexed))
	for _, t := range indexed {
		if k, ok := known.Lookup(t.Chain, t.Address); ok {
			t = mergeToken(t, k)
		}
		dtos = append(dtos, TokenDTO{
			Chain:                 t.Chain,
			Address:               t.Address,
			Name:                  t.Name,
			Symbol:                t.Symbol,
			Decimals:              t.EffectiveDecimals(),
			Type:                  ledger.ClassifyTokenType(t.Symbol),
			ImageURL:              t.ImageURL,
			TotalIndexedTransfers: t.TotalIndexedTransfers,
			LastSeenBlock:         t.LastSeenBlock,
		})
	}

	sort.Slice(dtos, func(i, j int) bool {
		if dtos[i].Chain != dtos[j].Chain {
			return dtos[i].Chain < dtos[j].Chain
		}
		return dtos[i].Address < dtos[j].Address
	})

	return &TokenListResponse{Data: dtos}, nil
}

// GetCollectives returns every configured collective
func (s *TokenService) GetCollectives(ctx context.Context) (*CollectiveListResponse, error) {
	all, err := s.collectives.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get collectives: %w", err)
	}

	dtos := make([]CollectiveDTO, len(all))
	for i := range all {
		dtos[i] = toCollectiveDTO(&all[i])
	}
	return &CollectiveListResponse{Data: dtos}, nil
}

// GetCollective returns one collective or ErrCollectiveNotFound
func (s *TokenService) GetCollective(ctx context.Context, slug string) (*CollectiveResponse, error) {
	cc, err := loadCollective(ctx, s.collectives, slug)
	if err != nil {
		return nil, err
	}
	return &CollectiveResponse{Data: toCollectiveDTO(cc.collective)}, nil
}

func toCollectiveDTO(c *entities.Collective) CollectiveDTO {
	wallets := c.Wallets
	if wallets == nil {
		wallets = []entities.Wallet{}
	}
	tokens := c.Tokens
	if tokens == nil {
		tokens = []entities.Token{}
	}
	return CollectiveDTO{
		Slug:            c.Slug,
		Name:            c.Name,
		PrimaryCurrency: c.PrimaryCurrency,
		Wallets:         wallets,
		Tokens:          tokens,
	}
}
