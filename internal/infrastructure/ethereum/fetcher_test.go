package ethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/bimakw/collective-ledger/internal/config"
	"github.com/bimakw/collective-ledger/internal/infrastructure/cache"
)

type stubSource struct {
	latest    uint64
	logs      []types.Log
	logsErr   error
	mu        sync.Mutex
	tsCalls   map[uint64]int
	lastQuery ethereum.FilterQuery
}

func (s *stubSource) GetLatestBlockNumber(context.Context) (uint64, error) {
	return s.latest, nil
}

func (s *stubSource) GetLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	s.lastQuery = q
	return s.logs, s.logsErr
}

func (s *stubSource) GetBlockTimestamp(_ context.Context, block uint64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tsCalls == nil {
		s.tsCalls = make(map[uint64]int)
	}
	s.tsCalls[block]++
	return int64(1700000000 + block), nil
}

func testIndexerConfig() config.IndexerConfig {
	return config.IndexerConfig{WorkerCount: 2, BlockConfirmations: 12}
}

func TestFetcher_FetchTransactions(t *testing.T) {
	src := &stubSource{logs: []types.Log{
		transferLog(100, 0, big.NewInt(5)),
		transferLog(100, 1, big.NewInt(6)),
		transferLog(101, 0, big.NewInt(7)),
	}}
	c := cache.New(cache.NewMemoryStorage(), zap.NewNop())
	f := NewFetcher(src, testChain, c, testIndexerConfig(), zap.NewNop())

	result, err := f.FetchTransactions(context.Background(), []string{"0x765de816845861e75a25fca122bb6898b8b1282a"}, 100, 110)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Transactions) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(result.Transactions))
	}
	if result.Transactions[2].Timestamp != 1700000101 {
		t.Errorf("expected timestamp of block 101, got %d", result.Transactions[2].Timestamp)
	}
	if src.tsCalls[100] != 1 || src.tsCalls[101] != 1 {
		t.Errorf("expected one timestamp call per block, got %v", src.tsCalls)
	}
	if src.lastQuery.FromBlock.Int64() != 100 || src.lastQuery.ToBlock.Int64() != 110 {
		t.Errorf("unexpected query range %v-%v", src.lastQuery.FromBlock, src.lastQuery.ToBlock)
	}

	// a second pass over the same blocks is served from the cache
	if _, err := f.FetchTransactions(context.Background(), nil, 100, 110); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.tsCalls[100] != 1 {
		t.Errorf("expected memoized timestamp, got %d calls", src.tsCalls[100])
	}
}

func TestFetcher_NoLogs(t *testing.T) {
	f := NewFetcher(&stubSource{}, testChain, nil, testIndexerConfig(), zap.NewNop())

	result, err := f.FetchTransactions(context.Background(), nil, 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Transactions == nil || len(result.Transactions) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", result.Transactions)
	}
}

func TestFetcher_LogsError(t *testing.T) {
	f := NewFetcher(&stubSource{logsErr: errors.New("boom")}, testChain, nil, testIndexerConfig(), zap.NewNop())

	if _, err := f.FetchTransactions(context.Background(), nil, 1, 2); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestFetcher_GetSafeBlockNumber(t *testing.T) {
	tests := []struct {
		latest   uint64
		expected int64
	}{
		{1000, 988},
		{5, 0},
	}

	for _, tt := range tests {
		f := NewFetcher(&stubSource{latest: tt.latest}, testChain, nil, testIndexerConfig(), zap.NewNop())
		got, err := f.GetSafeBlockNumber(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != tt.expected {
			t.Errorf("latest %d: expected %d, got %d", tt.latest, tt.expected, got)
		}
	}
}

func TestSplitBlockRange(t *testing.T) {
	tests := []struct {
		name     string
		from, to int64
		size     int
		expected []BlockRange
	}{
		{"exact", 0, 9, 5, []BlockRange{{0, 4}, {5, 9}}},
		{"remainder", 1, 7, 3, []BlockRange{{1, 3}, {4, 6}, {7, 7}}},
		{"single block", 5, 5, 100, []BlockRange{{5, 5}}},
		{"inverted", 10, 5, 3, nil},
		{"zero size", 0, 10, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitBlockRange(tt.from, tt.to, tt.size)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("expected %v, got %v", tt.expected, got)
				}
			}
		})
	}
}

func TestBlockTimestampKey(t *testing.T) {
	if got := BlockTimestampKey("celo", 123); got != "celo:123" {
		t.Errorf("expected celo:123, got %s", got)
	}
}
