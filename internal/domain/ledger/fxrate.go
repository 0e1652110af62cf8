package ledger

import (
	"strings"
	"sync"
	"time"

	"github.com/bimakw/collective-ledger/internal/domain/entities"
)

// DateLayout is the layout of the daily keys of a RateTable
const DateLayout = "20060102"

// RateTable holds historical daily exchange rates per (symbol, currency) pair.
// A nil *RateTable has no rates.
type RateTable struct {
	mu    sync.RWMutex
	rates map[string]map[string]float64
}

// NewRateTable creates an empty RateTable
func NewRateTable() *RateTable {
	return &RateTable{rates: make(map[string]map[string]float64)}
}

func pairKey(symbol, currency string) string {
	return strings.ToUpper(symbol) + "/" + strings.ToUpper(currency)
}

// Add stores the rates of symbol expressed in currency, keyed by YYYYMMDD
func (t *RateTable) Add(symbol, currency string, daily map[string]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := pairKey(symbol, currency)
	m, ok := t.rates[key]
	if !ok {
		m = make(map[string]float64, len(daily))
		t.rates[key] = m
	}
	for day, rate := range daily {
		m[day] = rate
	}
}

// Rate returns the rate of symbol in currency on the UTC day of at
func (t *RateTable) Rate(symbol, currency string, at time.Time) (float64, bool) {
	if t == nil {
		return 0, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	m, ok := t.rates[pairKey(symbol, currency)]
	if !ok {
		return 0, false
	}
	rate, ok := m[at.UTC().Format(DateLayout)]
	if !ok || rate <= 0 {
		return 0, false
	}
	return rate, true
}

// Len returns the number of (symbol, currency) pairs
func (t *RateTable) Len() int {
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rates)
}

// NormalizeAmount converts amount of token into the reference currency.
// Symbols starting or ending with the reference code are taken 1:1. Otherwise
// the daily rate is used, and a missing rate yields 0 rather than a guessed price.
func NormalizeAmount(token entities.Token, reference string, amount float64, at time.Time, rates *RateTable) float64 {
	if reference == "" || token.Symbol == "" {
		return 0
	}
	symbol := strings.ToUpper(token.Symbol)
	ref := strings.ToUpper(reference)
	if strings.HasPrefix(symbol, ref) || strings.HasSuffix(symbol, ref) {
		return amount
	}
	rate, ok := rates.Rate(symbol, ref, at)
	if !ok {
		return 0
	}
	return amount * rate
}
