package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bimakw/collective-ledger/internal/domain/entities"
)

func TestMockTransactionRepository_GetByFilter(t *testing.T) {
	repo := NewMockTransactionRepository()
	usdc := CreateTestToken(TokenWithAddress(USDCAddress), TokenWithSymbol("USDC"), TokenWithDecimals(6))

	repo.AddTransactions(
		CreateTestTransaction(WithTxHash("0x01"), WithBlockNumber(1), WithFrom(AliceAddress)),
		CreateTestTransaction(WithTxHash("0x02"), WithBlockNumber(2), WithFrom(BobAddress)),
		CreateTestTransaction(WithTxHash("0x03"), WithBlockNumber(3), WithToken(usdc)),
		CreateTestTransaction(WithTxHash("0x04"), WithBlockNumber(4), WithFrom(CharlieAddr), WithTo(BobAddress)),
	)

	ctx := context.Background()

	txs, err := repo.GetByFilter(ctx, entities.TransactionFilter{TokenAddresses: []string{CUSDAddress}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(txs) != 3 {
		t.Errorf("expected 3 cUSD transactions, got %d", len(txs))
	}
	if txs[0].BlockNumber != 4 {
		t.Errorf("expected newest first, got block %d", txs[0].BlockNumber)
	}

	txs, _ = repo.GetByFilter(ctx, entities.TransactionFilter{Addresses: []string{TreasuryAddr}, Limit: 2})
	if len(txs) != 2 {
		t.Errorf("expected limit of 2, got %d", len(txs))
	}

	if len(repo.Calls) != 2 {
		t.Errorf("expected 2 calls, got %d", len(repo.Calls))
	}
}

func TestMockTransactionRepository_TimeRange(t *testing.T) {
	repo := NewMockTransactionRepository()
	repo.AddTransactions(
		CreateTestTransaction(WithTxHash("0x01"), WithTimestamp(time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC))),
		CreateTestTransaction(WithTxHash("0x02"), WithTimestamp(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))),
	)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	count, err := repo.GetCount(context.Background(), entities.TransactionFilter{FromTime: &from, ToTime: &to})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 transaction in January, got %d", count)
	}
}

func TestMockTransactionRepository_BatchInsertAndLatestBlock(t *testing.T) {
	repo := NewMockTransactionRepository()
	ctx := context.Background()

	if err := repo.BatchInsert(ctx, CreateMultipleTransactions(5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	latest, err := repo.GetLatestBlock(ctx, TestChain, CUSDAddress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest != 12345682 {
		t.Errorf("expected latest block 12345682, got %d", latest)
	}
	if repo.CallCount("BatchInsert") != 1 {
		t.Errorf("expected 1 BatchInsert call, got %d", repo.CallCount("BatchInsert"))
	}
}

func TestMockTransactionRepository_Hook(t *testing.T) {
	repo := NewMockTransactionRepository()
	repo.GetByFilterFunc = func(ctx context.Context, filter entities.TransactionFilter) ([]entities.Transaction, error) {
		return nil, errors.New("db down")
	}

	if _, err := repo.GetByFilter(context.Background(), entities.TransactionFilter{}); err == nil {
		t.Error("expected hook error")
	}
}

func TestMockTokenRepository(t *testing.T) {
	repo := NewMockTokenRepository()
	ctx := context.Background()

	if err := repo.Upsert(ctx, CreateTestToken()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, err := repo.GetByAddress(ctx, TestChain, "0x765DE816845861E75A25FCA122BB6898B8B1282A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == nil || token.Symbol != "cUSD" {
		t.Fatalf("expected cUSD token, got %+v", token)
	}

	if err := repo.UpdateStats(ctx, TestChain, CUSDAddress, 10, 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.TotalIndexedTransfers != 10 || *token.LastSeenBlock != 500 {
		t.Errorf("unexpected stats %d/%d", token.TotalIndexedTransfers, *token.LastSeenBlock)
	}

	missing, _ := repo.GetByAddress(ctx, "ethereum", CUSDAddress)
	if missing != nil {
		t.Error("expected nil for token on another chain")
	}
}

func TestMockIndexerStateRepository(t *testing.T) {
	repo := NewMockIndexerStateRepository()
	ctx := context.Background()

	repo.AddState(CreateTestIndexerState(StateWithLastIndexedBlock(100)))

	if err := repo.UpdateLastBlock(ctx, TestChain, CUSDAddress, 999); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.UpdateLastBlock(ctx, TestChain, CUSDAddress, 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state, _ := repo.Get(ctx, TestChain, CUSDAddress)
	if state == nil || state.LastIndexedBlock != 999 {
		t.Fatalf("expected last block to stay at 999, got %+v", state)
	}

	if err := repo.SetBackfilling(ctx, TestChain, CUSDAddress, true, PointerTo(int64(1)), PointerTo(int64(10))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.IsBackfilling || *state.BackfillToBlock != 10 {
		t.Errorf("expected backfilling state, got %+v", state)
	}
}

func TestMockCollectiveRepository(t *testing.T) {
	repo := NewMockCollectiveRepository()
	ctx := context.Background()
	repo.AddCollective(CreateTestCollective())

	c, err := repo.GetBySlug(ctx, "commonshub")
	if err != nil || c == nil {
		t.Fatalf("expected collective, got %v, %v", c, err)
	}

	missing, _ := repo.GetBySlug(ctx, "unknown")
	if missing != nil {
		t.Error("expected nil for unknown slug")
	}

	tokens, _ := repo.KnownTokens(ctx)
	if len(tokens) != 2 {
		t.Errorf("expected 2 known tokens, got %d", len(tokens))
	}

	repo.SetKnownTokens(*CreateTestToken())
	tokens, _ = repo.KnownTokens(ctx)
	if len(tokens) != 1 {
		t.Errorf("expected overridden known tokens, got %d", len(tokens))
	}
}

func TestMockHealthChecker(t *testing.T) {
	hc := NewMockHealthChecker(true)
	if err := hc.HealthCheck(context.Background()); err != nil {
		t.Errorf("expected healthy, got %v", err)
	}

	hc.SetHealthy(false)
	if err := hc.HealthCheck(context.Background()); err == nil {
		t.Error("expected unhealthy")
	}
	if len(hc.Calls) != 2 {
		t.Errorf("expected 2 calls, got %d", len(hc.Calls))
	}
}
