package testutil

import (
	"fmt"
	"time"

	"github.com/bimakw/collective-ledger/internal/domain/entities"
)

// Common test chains, tokens and addresses
const (
	TestChain   = "celo"
	TestChainID = int64(42220)

	CUSDAddress  = "0x765de816845861e75a25fca122bb6898b8b1282a"
	USDCAddress  = "0xceba9300f2b948710d2653dd7b07f33a8b32118c"
	CHTAddress   = "0x65dd3b7a1b1bf4a3b4b3b2a8f4f2b6b1e2a5c9d0"
	DAIAddress   = "0xe4fe50cdd716522a56204352f00aa110f731932d"
	AliceAddress = "0x1111111111111111111111111111111111111111"
	BobAddress   = "0x2222222222222222222222222222222222222222"
	CharlieAddr  = "0x3333333333333333333333333333333333333333"
	TreasuryAddr = "0x4444444444444444444444444444444444444444"
	SavingsAddr  = "0x5555555555555555555555555555555555555555"
)

// DefaultTestTime is the block time used by the fixtures
var DefaultTestTime = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

// CreateTestTransaction creates a test transaction of 1 cUSD from Alice to the treasury
func CreateTestTransaction(opts ...TransactionOption) entities.Transaction {
	tx := entities.Transaction{
		ChainID:     TestChainID,
		TxHash:      "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		LogIndex:    0,
		BlockNumber: 12345678,
		Timestamp:   DefaultTestTime.Unix(),
		From:        AliceAddress,
		To:          TreasuryAddr,
		Value:       "1000000000000000000",
		Token:       *CreateTestToken(),
	}

	for _, opt := range opts {
		opt(&tx)
	}

	return tx
}

type TransactionOption func(*entities.Transaction)

func WithTxHash(hash string) TransactionOption {
	return func(tx *entities.Transaction) {
		tx.TxHash = hash
	}
}

func WithLogIndex(idx int) TransactionOption {
	return func(tx *entities.Transaction) {
		tx.LogIndex = idx
	}
}

func WithBlockNumber(num int64) TransactionOption {
	return func(tx *entities.Transaction) {
		tx.BlockNumber = num
	}
}

func WithTimestamp(ts time.Time) TransactionOption {
	return func(tx *entities.Transaction) {
		tx.Timestamp = ts.Unix()
	}
}

func WithFrom(addr string) TransactionOption {
	return func(tx *entities.Transaction) {
		tx.From = addr
	}
}

func WithTo(addr string) TransactionOption {
	return func(tx *entities.Transaction) {
		tx.To = addr
	}
}

func WithValue(val string) TransactionOption {
	return func(tx *entities.Transaction) {
		tx.Value = val
	}
}

func WithToken(token *entities.Token) TransactionOption {
	return func(tx *entities.Transaction) {
		tx.Token = *token
	}
}

// CreateTestToken creates a cUSD test token
func CreateTestToken(opts ...TokenOption) *entities.Token {
	t := &entities.Token{
		Chain:    TestChain,
		Address:  CUSDAddress,
		Name:     "Celo Dollar",
		Symbol:   "cUSD",
		Decimals: 18,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

type TokenOption func(*entities.Token)

func TokenWithChain(chain string) TokenOption {
	return func(t *entities.Token) {
		t.Chain = chain
	}
}

func TokenWithAddress(addr string) TokenOption {
	return func(t *entities.Token) {
		t.Address = addr
	}
}

func TokenWithName(name string) TokenOption {
	return func(t *entities.Token) {
		t.Name = name
	}
}

func TokenWithSymbol(symbol string) TokenOption {
	return func(t *entities.Token) {
		t.Symbol = symbol
	}
}

func TokenWithDecimals(dec int) TokenOption {
	return func(t *entities.Token) {
		t.Decimals = dec
	}
}

func TokenWithTotalTransfers(count int64) TokenOption {
	return func(t *entities.Token) {
		t.TotalIndexedTransfers = count
	}
}

// CreateTestCollective creates a collective whose treasury and savings wallets hold cUSD and CHT
func CreateTestCollective(opts ...CollectiveOption) *entities.Collective {
	c := &entities.Collective{
		Slug:            "commonshub",
		Name:            "Commons Hub",
		PrimaryCurrency: "USD",
		Wallets: []entities.Wallet{
			{Type: "safe", Chain: TestChain, Address: TreasuryAddr},
			{Type: "eoa", Chain: TestChain, Address: SavingsAddr},
		},
		Tokens: []entities.Token{
			*CreateTestToken(),
			*CreateTestToken(
				TokenWithAddress(CHTAddress),
				TokenWithName("Commons Hub Token"),
				TokenWithSymbol("CHT"),
				TokenWithDecimals(6),
			),
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type CollectiveOption func(*entities.Collective)

func CollectiveWithSlug(slug string) CollectiveOption {
	return func(c *entities.Collective) {
		c.Slug = slug
	}
}

func CollectiveWithIgnoreTxs(hashes ...string) CollectiveOption {
	return func(c *entities.Collective) {
		c.IgnoreTxs = hashes
	}
}

func CollectiveWithPrimaryCurrency(currency string) CollectiveOption {
	return func(c *entities.Collective) {
		c.PrimaryCurrency = currency
	}
}

// CreateTestIndexerState creates a test indexer state
func CreateTestIndexerState(opts ...IndexerStateOption) *entities.IndexerState {
	s := &entities.IndexerState{
		Chain:            TestChain,
		TokenAddress:     CUSDAddress,
		LastIndexedBlock: 12345678,
		IsBackfilling:    false,
		UpdatedAt:        time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type IndexerStateOption func(*entities.IndexerState)

func StateWithTokenAddress(addr string) IndexerStateOption {
	return func(s *entities.IndexerState) {
		s.TokenAddress = addr
	}
}

func StateWithLastIndexedBlock(block int64) IndexerStateOption {
	return func(s *entities.IndexerState) {
		s.LastIndexedBlock = block
	}
}

func StateWithBackfilling(isBackfilling bool, fromBlock, toBlock *int64) IndexerStateOption {
	return func(s *entities.IndexerState) {
		s.IsBackfilling = isBackfilling
		s.BackfillFromBlock = fromBlock
		s.BackfillToBlock = toBlock
	}
}

// CreateMultipleTransactions creates transactions one minute apart with unique hashes
func CreateMultipleTransactions(count int, opts ...TransactionOption) []entities.Transaction {
	txs := make([]entities.Transaction, count)
	for i := 0; i < count; i++ {
		tx := CreateTestTransaction(opts...)
		tx.LogIndex = i
		tx.BlockNumber = int64(12345678 + i)
		tx.Timestamp += int64(i * 60)
		tx.TxHash = generateTxHash(i)
		txs[i] = tx
	}
	return txs
}

func generateTxHash(index int) string {
	return fmt.Sprintf("0x%064x", index+1)
}

// PointerTo returns a pointer to the given value
func PointerTo[T any](v T) *T {
	return &v
}
