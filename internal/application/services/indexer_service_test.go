package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/bimakw/collective-ledger/internal/config"
	"github.com/bimakw/collective-ledger/internal/domain/entities"
	"github.com/bimakw/collective-ledger/internal/infrastructure/ethereum"
	"github.com/bimakw/collective-ledger/internal/testutil"
)

type fakeFetcher struct {
	mu        sync.Mutex
	safeBlock int64
	safeErr   error
	fetchErr  error
	txs       map[int64][]entities.Transaction // by block
	ranges    []ethereum.BlockRange
}

func (f *fakeFetcher) GetSafeBlockNumber(context.Context) (int64, error) {
	return f.safeBlock, f.safeErr
}

func (f *fakeFetcher) FetchTransactions(_ context.Context, _ []string, from, to int64) (*ethereum.FetchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ranges = append(f.ranges, ethereum.BlockRange{From: from, To: to})
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	result := &ethereum.FetchResult{FromBlock: from, ToBlock: to}
	for block := from; block <= to; block++ {
		result.Transactions = append(result.Transactions, f.txs[block]...)
	}
	return result, nil
}

type fakeMetadata struct {
	token entities.Token
	err   error
}

func (f *fakeMetadata) FetchToken(_ context.Context, address string) (entities.Token, error) {
	if f.err != nil {
		return entities.Token{}, f.err
	}
	t := f.token
	t.Address = address
	return t, nil
}

type indexerFixture struct {
	service     *IndexerService
	fetcher     *fakeFetcher
	tokenRepo   *testutil.MockTokenRepository
	txRepo      *testutil.MockTransactionRepository
	stateRepo   *testutil.MockIndexerStateRepository
	collectives *testutil.MockCollectiveRepository
}

func setupIndexerServiceTest(cfg config.IndexerConfig, metadata TokenMetadataFetcher) *indexerFixture {
	f := &indexerFixture{
		fetcher:     &fakeFetcher{txs: map[int64][]entities.Transaction{}},
		tokenRepo:   testutil.NewMockTokenRepository(),
		txRepo:      testutil.NewMockTransactionRepository(),
		stateRepo:   testutil.NewMockIndexerStateRepository(),
		collectives: testutil.NewMockCollectiveRepository(),
	}
	f.service = NewIndexerService(testutil.TestChain, f.fetcher, metadata,
		f.tokenRepo, f.txRepo, f.stateRepo, f.collectives, cfg, zap.NewNop())
	return f
}

func testIndexerConfig() config.IndexerConfig {
	return config.IndexerConfig{BatchSize: 10, BackfillBatchSize: 50, WorkerCount: 2}
}

func TestIndexerService_ResolveTokens(t *testing.T) {
	cfg := testIndexerConfig()
	cfg.TokenAddresses = []string{" 0xAAAA ", testutil.CUSDAddress}
	f := setupIndexerServiceTest(cfg, nil)
	f.collectives.SetKnownTokens(
		*testutil.CreateTestToken(),
		*testutil.CreateTestToken(testutil.TokenWithAddress(testutil.CHTAddress)),
		*testutil.CreateTestToken(testutil.TokenWithChain("gnosis"), testutil.TokenWithAddress("0xbbbb")),
	)

	tokens, err := f.service.resolveTokens(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"0xaaaa", testutil.CUSDAddress, testutil.CHTAddress}
	if len(tokens) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, tokens)
	}
	for i := range expected {
		if tokens[i] != expected[i] {
			t.Errorf("expected %v, got %v", expected, tokens)
		}
	}
}

func TestIndexerService_InitializeTokens(t *testing.T) {
	cfg := testIndexerConfig()
	cfg.StartBlock = 1000
	f := setupIndexerServiceTest(cfg, &fakeMetadata{token: entities.Token{Name: "Celo Dollar", Symbol: "cUSD", Decimals: 18}})
	f.service.tokens = []string{testutil.CUSDAddress}

	if err := f.service.initializeTokens(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, _ := f.tokenRepo.GetByAddress(context.Background(), testutil.TestChain, testutil.CUSDAddress)
	if token == nil || token.Symbol != "cUSD" || token.Chain != testutil.TestChain {
		t.Errorf("expected cUSD token, got %+v", token)
	}

	state, _ := f.stateRepo.Get(context.Background(), testutil.TestChain, testutil.CUSDAddress)
	if state == nil || state.LastIndexedBlock != 999 {
		t.Errorf("expected checkpoint before the start block, got %+v", state)
	}
}

func TestIndexerService_InitializeTokens_MetadataFallback(t *testing.T) {
	f := setupIndexerServiceTest(testIndexerConfig(), &fakeMetadata{err: errors.New("reverted")})
	f.service.tokens = []string{testutil.CUSDAddress}

	if err := f.service.initializeTokens(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, _ := f.tokenRepo.GetByAddress(context.Background(), testutil.TestChain, testutil.CUSDAddress)
	if token == nil || token.Symbol != "UNK" || token.Decimals != 18 {
		t.Errorf("expected fallback token, got %+v", token)
	}
}

func TestIndexerService_InitializeTokens_Existing(t *testing.T) {
	f := setupIndexerServiceTest(testIndexerConfig(), nil)
	f.tokenRepo.AddToken(testutil.CreateTestToken())
	f.service.tokens = []string{testutil.CUSDAddress}

	if err := f.service.initializeTokens(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.stateRepo.Calls) != 0 {
		t.Errorf("expected existing token to be left alone, got %d state calls", len(f.stateRepo.Calls))
	}
}

func TestIndexerService_IndexNewBlocks(t *testing.T) {
	f := setupIndexerServiceTest(testIndexerConfig(), nil)
	f.service.tokens = []string{testutil.CUSDAddress}
	f.tokenRepo.AddToken(testutil.CreateTestToken())
	f.stateRepo.AddState(testutil.CreateTestIndexerState(testutil.StateWithLastIndexedBlock(100)))

	f.fetcher.safeBlock = 125
	f.fetcher.txs[105] = []entities.Transaction{testutil.CreateTestTransaction(testutil.WithBlockNumber(105))}
	f.fetcher.txs[120] = testutil.CreateMultipleTransactions(2, testutil.WithBlockNumber(120))

	f.service.IndexNewBlocks(context.Background())

	expected := []ethereum.BlockRange{{From: 101, To: 110}, {From: 111, To: 120}, {From: 121, To: 125}}
	if len(f.fetcher.ranges) != len(expected) {
		t.Fatalf("expected ranges %v, got %v", expected, f.fetcher.ranges)
	}
	for i := range expected {
		if f.fetcher.ranges[i] != expected[i] {
			t.Errorf("expected ranges %v, got %v", expected, f.fetcher.ranges)
		}
	}

	state, _ := f.stateRepo.Get(context.Background(), testutil.TestChain, testutil.CUSDAddress)
	if state.LastIndexedBlock != 125 {
		t.Errorf("expected checkpoint 125, got %d", state.LastIndexedBlock)
	}
	if n := f.txRepo.CallCount("BatchInsert"); n != 2 {
		t.Errorf("expected 2 inserts for the non-empty ranges, got %d", n)
	}

	m := f.service.GetMetrics()
	if m.BlocksIndexed != 25 || m.TransactionsIndexed != 3 || m.LastIndexedBlock != 125 {
		t.Errorf("unexpected metrics %+v", &m)
	}

	token, _ := f.tokenRepo.GetByAddress(context.Background(), testutil.TestChain, testutil.CUSDAddress)
	if token.TotalIndexedTransfers != 3 {
		t.Errorf("expected 3 indexed transfers on the token, got %d", token.TotalIndexedTransfers)
	}
}

func TestIndexerService_IndexNewBlocks_UpToDate(t *testing.T) {
	f := setupIndexerServiceTest(testIndexerConfig(), nil)
	f.service.tokens = []string{testutil.CUSDAddress}
	f.stateRepo.AddState(testutil.CreateTestIndexerState(testutil.StateWithLastIndexedBlock(200)))
	f.fetcher.safeBlock = 200

	f.service.IndexNewBlocks(context.Background())

	if len(f.fetcher.ranges) != 0 {
		t.Errorf("expected no fetches, got %v", f.fetcher.ranges)
	}
}

func TestIndexerService_IndexNewBlocks_Errors(t *testing.T) {
	f := setupIndexerServiceTest(testIndexerConfig(), nil)
	f.service.tokens = []string{testutil.CUSDAddress}
	f.stateRepo.AddState(testutil.CreateTestIndexerState(testutil.StateWithLastIndexedBlock(100)))
	f.fetcher.safeBlock = 150
	f.fetcher.fetchErr = errors.New("rpc timeout")

	f.service.IndexNewBlocks(context.Background())

	state, _ := f.stateRepo.Get(context.Background(), testutil.TestChain, testutil.CUSDAddress)
	if state.LastIndexedBlock != 100 {
		t.Errorf("expected checkpoint to stay at 100, got %d", state.LastIndexedBlock)
	}
	if f.service.GetMetrics().ErrorCount != 1 {
		t.Errorf("expected 1 error, got %d", f.service.GetMetrics().ErrorCount)
	}

	f.fetcher.safeErr = errors.New("node down")
	f.service.IndexNewBlocks(context.Background())
	if f.service.GetMetrics().ErrorCount != 2 {
		t.Errorf("expected 2 errors, got %d", f.service.GetMetrics().ErrorCount)
	}
}

func TestIndexerService_Backfill(t *testing.T) {
	f := setupIndexerServiceTest(testIndexerConfig(), nil)
	f.stateRepo.AddState(testutil.CreateTestIndexerState(testutil.StateWithLastIndexedBlock(5000)))
	f.fetcher.txs[30] = []entities.Transaction{testutil.CreateTestTransaction(testutil.WithBlockNumber(30))}

	if err := f.service.Backfill(context.Background(), "0x765DE816845861E75A25FCA122BB6898B8B1282A", 1, 120); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.fetcher.ranges) != 3 {
		t.Errorf("expected 3 backfill batches, got %v", f.fetcher.ranges)
	}

	state, _ := f.stateRepo.Get(context.Background(), testutil.TestChain, testutil.CUSDAddress)
	if state.IsBackfilling {
		t.Error("expected backfilling flag to be cleared")
	}
	if state.LastIndexedBlock != 5000 {
		t.Errorf("expected checkpoint untouched, got %d", state.LastIndexedBlock)
	}
	if n := f.txRepo.CallCount("BatchInsert"); n != 1 {
		t.Errorf("expected 1 insert, got %d", n)
	}
}

func TestIndexerService_Checkpoints(t *testing.T) {
	f := setupIndexerServiceTest(testIndexerConfig(), nil)
	f.stateRepo.AddState(testutil.CreateTestIndexerState(
		testutil.StateWithTokenAddress(testutil.CHTAddress),
		testutil.StateWithLastIndexedBlock(500),
		testutil.StateWithBackfilling(true, testutil.PointerTo(int64(1)), testutil.PointerTo(int64(100))),
	))
	f.stateRepo.AddState(testutil.CreateTestIndexerState(
		testutil.StateWithTokenAddress(testutil.CUSDAddress),
		testutil.StateWithLastIndexedBlock(700),
	))
	ctx := context.Background()

	// Older blocks never move the checkpoint back
	if err := f.stateRepo.UpdateLastBlock(ctx, testutil.TestChain, testutil.CUSDAddress, 600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	states, err := f.service.Checkpoints(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("expected 2 checkpoints, got %d", len(states))
	}
	if states[0].TokenAddress != testutil.CHTAddress || !states[0].IsBackfilling {
		t.Errorf("expected interrupted CHT backfill first, got %+v", states[0])
	}
	if states[1].LastIndexedBlock != 700 {
		t.Errorf("expected cUSD checkpoint 700, got %d", states[1].LastIndexedBlock)
	}

	f.stateRepo.ListFunc = func(context.Context, string) ([]entities.IndexerState, error) {
		return nil, errors.New("connection refused")
	}
	if _, err := f.service.Checkpoints(ctx); err == nil {
		t.Error("expected error from failing repository")
	}
}
