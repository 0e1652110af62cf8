package services

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/bimakw/collective-ledger/internal/domain/entities"
	"github.com/bimakw/collective-ledger/internal/testutil"
)

func setupTokenServiceTest() (*TokenService, *testutil.MockTokenRepository, *testutil.MockCollectiveRepository) {
	tokenRepo := testutil.NewMockTokenRepository()
	collectives := testutil.NewMockCollectiveRepository()
	collectives.AddCollective(testutil.CreateTestCollective())

	service := NewTokenService(tokenRepo, collectives, zap.NewNop())
	return service, tokenRepo, collectives
}

func TestTokenService_GetAllTokens(t *testing.T) {
	service, tokenRepo, collectives := setupTokenServiceTest()

	tokenRepo.AddToken(&entities.Token{Chain: testutil.TestChain, Address: testutil.CHTAddress, TotalIndexedTransfers: 42})
	tokenRepo.AddToken(testutil.CreateTestToken(testutil.TokenWithTotalTransfers(7)))

	withImage := testutil.CreateTestToken(testutil.TokenWithAddress(testutil.CHTAddress), testutil.TokenWithSymbol("CHT"), testutil.TokenWithDecimals(6))
	withImage.ImageURL = "https://example.org/cht.png"
	collectives.SetKnownTokens(*withImage)

	resp, err := service.GetAllTokens(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(resp.Data))
	}

	var cht *TokenDTO
	for i := range resp.Data {
		if resp.Data[i].Address == testutil.CHTAddress {
			cht = &resp.Data[i]
		}
	}
	if cht == nil {
		t.Fatal("expected CHT in the list")
	}
	if cht.Symbol != "CHT" || cht.Decimals != 6 || cht.Type != entities.TokenTypeToken {
		t.Errorf("expected configured CHT metadata, got %+v", cht)
	}
	if cht.ImageURL != "https://example.org/cht.png" {
		t.Errorf("expected image url, got %q", cht.ImageURL)
	}
	if cht.TotalIndexedTransfers != 42 {
		t.Errorf("expected 42 indexed transfers, got %d", cht.TotalIndexedTransfers)
	}
}

func TestTokenService_GetAllTokens_Error(t *testing.T) {
	service, tokenRepo, _ := setupTokenServiceTest()
	tokenRepo.GetAllFunc = func(ctx context.Context) ([]entities.Token, error) {
		return nil, errors.New("db down")
	}

	if _, err := service.GetAllTokens(context.Background()); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestTokenService_GetCollectives(t *testing.T) {
	service, _, collectives := setupTokenServiceTest()
	collectives.AddCollective(testutil.CreateTestCollective(testutil.CollectiveWithSlug("another")))

	resp, err := service.GetCollectives(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("expected 2 collectives, got %d", len(resp.Data))
	}
	if resp.Data[0].Slug != "another" || resp.Data[1].Slug != "commonshub" {
		t.Errorf("unexpected order %s, %s", resp.Data[0].Slug, resp.Data[1].Slug)
	}
}

func TestTokenService_GetCollective(t *testing.T) {
	service, _, _ := setupTokenServiceTest()

	resp, err := service.GetCollective(context.Background(), "commonshub")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Data.Wallets) != 2 || len(resp.Data.Tokens) != 2 {
		t.Errorf("unexpected collective %+v", resp.Data)
	}

	_, err = service.GetCollective(context.Background(), "missing")
	if !errors.Is(err, ErrCollectiveNotFound) {
		t.Errorf("expected ErrCollectiveNotFound, got %v", err)
	}
}
