package testutil

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/bimakw/collective-ledger/internal/domain/entities"
	"github.com/bimakw/collective-ledger/internal/domain/repositories"
)

type MockCall struct {
	Method string
	Args   []interface{}
}

var (
	_ repositories.TransactionRepository  = (*MockTransactionRepository)(nil)
	_ repositories.TokenRepository        = (*MockTokenRepository)(nil)
	_ repositories.IndexerStateRepository = (*MockIndexerStateRepository)(nil)
	_ repositories.CollectiveRepository   = (*MockCollectiveRepository)(nil)
)

// MockTransactionRepository is a mock implementation of TransactionRepository
type MockTransactionRepository struct {
	mu  sync.RWMutex
	txs []entities.Transaction

	// Function hooks for custom behavior
	GetByFilterFunc    func(ctx context.Context, filter entities.TransactionFilter) ([]entities.Transaction, error)
	GetCountFunc       func(ctx context.Context, filter entities.TransactionFilter) (int64, error)
	BatchInsertFunc    func(ctx context.Context, txs []entities.Transaction) error
	GetLatestBlockFunc func(ctx context.Context, chain, tokenAddress string) (int64, error)

	// Call tracking
	Calls []MockCall
}

func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		txs:   make([]entities.Transaction, 0),
		Calls: make([]MockCall, 0),
	}
}

func (m *MockTransactionRepository) record(method string, args ...interface{}) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: method, Args: args})
	m.mu.Unlock()
}

// CallCount returns how many times method was called
func (m *MockTransactionRepository) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.Calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func (m *MockTransactionRepository) matching(filter entities.TransactionFilter) []entities.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.Transaction, 0)
	for _, tx := range m.txs {
		if filter.Chain != nil && tx.Token.Chain != *filter.Chain {
			continue
		}
		if len(filter.TokenAddresses) > 0 && !containsFold(filter.TokenAddresses, tx.Token.Address) {
			continue
		}
		if len(filter.Addresses) > 0 && !containsFold(filter.Addresses, tx.From) && !containsFold(filter.Addresses, tx.To) {
			continue
		}
		if filter.FromBlock != nil && tx.BlockNumber < *filter.FromBlock {
			continue
		}
		if filter.ToBlock != nil && tx.BlockNumber > *filter.ToBlock {
			continue
		}
		if filter.FromTime != nil && tx.Time().Before(*filter.FromTime) {
			continue
		}
		if filter.ToTime != nil && !tx.Time().Before(*filter.ToTime) {
			continue
		}
		result = append(result, tx)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].BlockNumber != result[j].BlockNumber {
			return result[i].BlockNumber > result[j].BlockNumber
		}
		return result[i].LogIndex > result[j].LogIndex
	})
	return result
}

func (m *MockTransactionRepository) GetByFilter(ctx context.Context, filter entities.TransactionFilter) ([]entities.Transaction, error) {
	m.record("GetByFilter", filter)

	if m.GetByFilterFunc != nil {
		return m.GetByFilterFunc(ctx, filter)
	}

	result := m.matching(filter)

	start := filter.Offset
	if start > len(result) {
		return []entities.Transaction{}, nil
	}
	end := len(result)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return result[start:end], nil
}

func (m *MockTransactionRepository) GetCount(ctx context.Context, filter entities.TransactionFilter) (int64, error) {
	m.record("GetCount", filter)

	if m.GetCountFunc != nil {
		return m.GetCountFunc(ctx, filter)
	}
	return int64(len(m.matching(filter))), nil
}

func (m *MockTransactionRepository) BatchInsert(ctx context.Context, txs []entities.Transaction) error {
	m.record("BatchInsert", txs)

	if m.BatchInsertFunc != nil {
		return m.BatchInsertFunc(ctx, txs)
	}

	m.AddTransactions(txs...)
	return nil
}

func (m *MockTransactionRepository) GetLatestBlock(ctx context.Context, chain, tokenAddress string) (int64, error) {
	m.record("GetLatestBlock", chain, tokenAddress)

	if m.GetLatestBlockFunc != nil {
		return m.GetLatestBlockFunc(ctx, chain, tokenAddress)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest int64
	for _, tx := range m.txs {
		if tx.Token.Chain == chain && strings.EqualFold(tx.Token.Address, tokenAddress) && tx.BlockNumber > latest {
			latest = tx.BlockNumber
		}
	}
	return latest, nil
}

// AddTransactions adds transactions to the mock store
func (m *MockTransactionRepository) AddTransactions(txs ...entities.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = append(m.txs, txs...)
}

// Reset clears all stored data and calls
func (m *MockTransactionRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = make([]entities.Transaction, 0)
	m.Calls = make([]MockCall, 0)
}

// MockTokenRepository is a mock implementation of TokenRepository
type MockTokenRepository struct {
	mu     sync.RWMutex
	tokens map[entities.TokenKey]*entities.Token

	// Function hooks
	GetByAddressFunc func(ctx context.Context, chain, address string) (*entities.Token, error)
	GetAllFunc       func(ctx context.Context) ([]entities.Token, error)
	UpsertFunc       func(ctx context.Context, token *entities.Token) error
	UpdateStatsFunc  func(ctx context.Context, chain, address string, transferCount int64, lastBlock int64) error

	Calls []MockCall
}

func NewMockTokenRepository() *MockTokenRepository {
	return &MockTokenRepository{
		tokens: make(map[entities.TokenKey]*entities.Token),
		Calls:  make([]MockCall, 0),
	}
}

func (m *MockTokenRepository) GetByAddress(ctx context.Context, chain, address string) (*entities.Token, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetByAddress", Args: []interface{}{chain, address}})
	m.mu.Unlock()

	if m.GetByAddressFunc != nil {
		return m.GetByAddressFunc(ctx, chain, address)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if token, ok := m.tokens[entities.NewTokenKey(chain, address)]; ok {
		return token, nil
	}
	return nil, nil
}

func (m *MockTokenRepository) GetAll(ctx context.Context) ([]entities.Token, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetAll", Args: nil})
	m.mu.Unlock()

	if m.GetAllFunc != nil {
		return m.GetAllFunc(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.Token, 0, len(m.tokens))
	for _, token := range m.tokens {
		result = append(result, *token)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Key().String() < result[j].Key().String()
	})
	return result, nil
}

func (m *MockTokenRepository) Upsert(ctx context.Context, token *entities.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "Upsert", Args: []interface{}{token}})

	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, token)
	}

	m.tokens[token.Key()] = token
	return nil
}

func (m *MockTokenRepository) UpdateStats(ctx context.Context, chain, address string, transferCount int64, lastBlock int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "UpdateStats", Args: []interface{}{chain, address, transferCount, lastBlock}})

	if m.UpdateStatsFunc != nil {
		return m.UpdateStatsFunc(ctx, chain, address, transferCount, lastBlock)
	}

	if token, ok := m.tokens[entities.NewTokenKey(chain, address)]; ok {
		token.TotalIndexedTransfers += transferCount
		if token.LastSeenBlock == nil || lastBlock > *token.LastSeenBlock {
			token.LastSeenBlock = &lastBlock
		}
	}
	return nil
}

// AddToken adds a token to the mock store
func (m *MockTokenRepository) AddToken(token *entities.Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Key()] = token
}

// MockIndexerStateRepository is a mock implementation of IndexerStateRepository
type MockIndexerStateRepository struct {
	mu     sync.RWMutex
	states map[entities.TokenKey]*entities.IndexerState

	// Function hooks
	GetFunc             func(ctx context.Context, chain, tokenAddress string) (*entities.IndexerState, error)
	UpsertFunc          func(ctx context.Context, state *entities.IndexerState) error
	UpdateLastBlockFunc func(ctx context.Context, chain, tokenAddress string, blockNumber int64) error
	SetBackfillingFunc  func(ctx context.Context, chain, tokenAddress string, isBackfilling bool, fromBlock, toBlock *int64) error
	ListFunc            func(ctx context.Context, chain string) ([]entities.IndexerState, error)

	Calls []MockCall
}

func NewMockIndexerStateRepository() *MockIndexerStateRepository {
	return &MockIndexerStateRepository{
		states: make(map[entities.TokenKey]*entities.IndexerState),
		Calls:  make([]MockCall, 0),
	}
}

func (m *MockIndexerStateRepository) Get(ctx context.Context, chain, tokenAddress string) (*entities.IndexerState, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Get", Args: []interface{}{chain, tokenAddress}})
	m.mu.Unlock()

	if m.GetFunc != nil {
		return m.GetFunc(ctx, chain, tokenAddress)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, ok := m.states[entities.NewTokenKey(chain, tokenAddress)]; ok {
		return state, nil
	}
	return nil, nil
}

func (m *MockIndexerStateRepository) Upsert(ctx context.Context, state *entities.IndexerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "Upsert", Args: []interface{}{state}})

	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, state)
	}

	m.states[entities.NewTokenKey(state.Chain, state.TokenAddress)] = state
	return nil
}

func (m *MockIndexerStateRepository) UpdateLastBlock(ctx context.Context, chain, tokenAddress string, blockNumber int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "UpdateLastBlock", Args: []interface{}{chain, tokenAddress, blockNumber}})

	if m.UpdateLastBlockFunc != nil {
		return m.UpdateLastBlockFunc(ctx, chain, tokenAddress, blockNumber)
	}

	key := entities.NewTokenKey(chain, tokenAddress)
	state, ok := m.states[key]
	if !ok {
		m.states[key] = &entities.IndexerState{Chain: key.Chain, TokenAddress: key.Address, LastIndexedBlock: blockNumber}
		return nil
	}
	state.LastIndexedBlock = max(state.LastIndexedBlock, blockNumber)
	return nil
}

func (m *MockIndexerStateRepository) SetBackfilling(ctx context.Context, chain, tokenAddress string, isBackfilling bool, fromBlock, toBlock *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "SetBackfilling", Args: []interface{}{chain, tokenAddress, isBackfilling, fromBlock, toBlock}})

	if m.SetBackfillingFunc != nil {
		return m.SetBackfillingFunc(ctx, chain, tokenAddress, isBackfilling, fromBlock, toBlock)
	}

	key := entities.NewTokenKey(chain, tokenAddress)
	state, ok := m.states[key]
	if !ok {
		state = &entities.IndexerState{Chain: key.Chain, TokenAddress: key.Address}
		m.states[key] = state
	}
	state.IsBackfilling = isBackfilling
	state.BackfillFromBlock = fromBlock
	state.BackfillToBlock = toBlock
	return nil
}

func (m *MockIndexerStateRepository) List(ctx context.Context, chain string) ([]entities.IndexerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "List", Args: []interface{}{chain}})

	if m.ListFunc != nil {
		return m.ListFunc(ctx, chain)
	}

	var out []entities.IndexerState
	for key, state := range m.states {
		if key.Chain == strings.ToLower(chain) {
			out = append(out, *state)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenAddress < out[j].TokenAddress })
	return out, nil
}

// AddState adds a state to the mock store
func (m *MockIndexerStateRepository) AddState(state *entities.IndexerState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[entities.NewTokenKey(state.Chain, state.TokenAddress)] = state
}

// MockCollectiveRepository is a mock implementation of CollectiveRepository
type MockCollectiveRepository struct {
	mu          sync.RWMutex
	collectives map[string]*entities.Collective
	tokens      []entities.Token

	// Function hooks
	GetBySlugFunc   func(ctx context.Context, slug string) (*entities.Collective, error)
	GetAllFunc      func(ctx context.Context) ([]entities.Collective, error)
	KnownTokensFunc func(ctx context.Context) ([]entities.Token, error)

	Calls []MockCall
}

func NewMockCollectiveRepository() *MockCollectiveRepository {
	return &MockCollectiveRepository{
		collectives: make(map[string]*entities.Collective),
		Calls:       make([]MockCall, 0),
	}
}

func (m *MockCollectiveRepository) GetBySlug(ctx context.Context, slug string) (*entities.Collective, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetBySlug", Args: []interface{}{slug}})
	m.mu.Unlock()

	if m.GetBySlugFunc != nil {
		return m.GetBySlugFunc(ctx, slug)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if c, ok := m.collectives[slug]; ok {
		return c, nil
	}
	return nil, nil
}

func (m *MockCollectiveRepository) GetAll(ctx context.Context) ([]entities.Collective, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetAll", Args: nil})
	m.mu.Unlock()

	if m.GetAllFunc != nil {
		return m.GetAllFunc(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.Collective, 0, len(m.collectives))
	for _, c := range m.collectives {
		result = append(result, *c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Slug < result[j].Slug })
	return result, nil
}

func (m *MockCollectiveRepository) KnownTokens(ctx context.Context) ([]entities.Token, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "KnownTokens", Args: nil})
	m.mu.Unlock()

	if m.KnownTokensFunc != nil {
		return m.KnownTokensFunc(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.tokens != nil {
		return m.tokens, nil
	}

	// Default to the tokens of every collective
	seen := make(map[entities.TokenKey]bool)
	var result []entities.Token
	for _, c := range m.collectives {
		for _, t := range c.Tokens {
			if !seen[t.Key()] {
				seen[t.Key()] = true
				result = append(result, t)
			}
		}
	}
	return result, nil
}

// AddCollective adds a collective to the mock store
func (m *MockCollectiveRepository) AddCollective(c *entities.Collective) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collectives[c.Slug] = c
}

// SetKnownTokens overrides the known token list
func (m *MockCollectiveRepository) SetKnownTokens(tokens ...entities.Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = tokens
}

// MockHealthChecker is a mock implementation of HealthChecker
type MockHealthChecker struct {
	mu sync.RWMutex

	Error error
	Calls []MockCall
}

func NewMockHealthChecker(healthy bool) *MockHealthChecker {
	m := &MockHealthChecker{Calls: make([]MockCall, 0)}
	m.SetHealthy(healthy)
	return m
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Method: "HealthCheck", Args: nil})
	return m.Error
}

func (m *MockHealthChecker) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if healthy {
		m.Error = nil
	} else {
		m.Error = errors.New("health check failed")
	}
}
