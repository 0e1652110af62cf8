package ledger

import (
	"sort"

	"github.com/bimakw/collective-ledger/internal/domain/entities"
)

// TokenRegistry maps (chain, address) to the metadata of a known token
type TokenRegistry map[entities.TokenKey]entities.Token

// NewTokenRegistry builds a registry from a list of tokens
func NewTokenRegistry(tokens ...entities.Token) TokenRegistry {
	reg := make(TokenRegistry, len(tokens))
	for _, t := range tokens {
		reg[t.Key()] = t
	}
	return reg
}

// Lookup returns the known token for the given chain and address
func (r TokenRegistry) Lookup(chain, address string) (entities.Token, bool) {
	t, ok := r[entities.NewTokenKey(chain, address)]
	return t, ok
}

// displayValue converts the raw value of tx, falling back to the decimals of
// the known token when the transaction does not carry them
func displayValue(tx entities.Transaction, known *entities.Token) (float64, bool) {
	if isZero(tx.Value) {
		return 0, false
	}
	decimals := tx.Token.Decimals
	if decimals <= 0 && known != nil {
		decimals = known.Decimals
	}
	if decimals <= 0 {
		decimals = entities.DefaultDecimals
	}
	return ToFloat(tx.Value, decimals)
}

// ComputeTokenStats aggregates per-token statistics of the transactions touching
// the home addresses. Transactions of tokens missing from known, with a zero or
// malformed value, or with no home endpoint are skipped.
func ComputeTokenStats(txs []entities.Transaction, home AddressSet, known TokenRegistry) map[entities.TokenKey]*entities.TokenStats {
	result := make(map[entities.TokenKey]*entities.TokenStats)
	if len(txs) == 0 || len(known) == 0 {
		return result
	}

	for _, tx := range txs {
		key := tx.Token.Key()
		token, ok := known[key]
		if !ok {
			continue
		}
		direction, ok := ClassifyDirection(tx, home)
		if !ok {
			continue
		}
		value, ok := displayValue(tx, &token)
		if !ok {
			continue
		}

		ts, ok := result[key]
		if !ok {
			ts = &entities.TokenStats{Token: token}
			result[key] = ts
		}
		ts.Stats.Add(direction, value)
	}

	return result
}

// LeaderboardOptions controls GetLeaderboard
type LeaderboardOptions struct {
	// Direction restricts the buckets populated. Empty or DirectionAll means both
	// inbound (keyed by sender) and outbound (keyed by receiver).
	Direction entities.Direction
	// Rates converts non-reference symbols into the reference currency
	Rates *RateTable
	// Exclude lists counterparties that never get an entry, usually the home addresses
	Exclude AddressSet
}

// GetLeaderboard ranks counterparties by normalized inbound plus outbound value.
// The inbound bucket is keyed by the sender and the outbound bucket by the receiver.
func GetLeaderboard(txs []entities.Transaction, referenceCurrency string, opts LeaderboardOptions) entities.Leaderboard {
	entries := make(map[string]*entities.LeaderboardEntry)
	var order []string

	process := func(tx entities.Transaction, direction entities.Direction, value float64) {
		counterparty := tx.From
		if direction == entities.DirectionOutbound {
			counterparty = tx.To
		}
		if counterparty == "" || opts.Exclude.Contains(counterparty) {
			return
		}
		uri, err := GenerateURI("ethereum", URIParams{ChainID: tx.ChainID, Address: counterparty})
		if err != nil {
			return
		}

		amount := NormalizeAmount(tx.Token, referenceCurrency, value, tx.Time(), opts.Rates)

		entry, ok := entries[uri]
		if !ok {
			entry = &entities.LeaderboardEntry{URI: uri}
			entries[uri] = entry
			order = append(order, uri)
		}
		entry.Stats.Record(direction, amount)
		entry.Transactions = append(entry.Transactions, tx)
	}

	for _, tx := range txs {
		value, ok := displayValue(tx, nil)
		if !ok {
			continue
		}
		switch opts.Direction {
		case entities.DirectionInbound:
			process(tx, entities.DirectionInbound, value)
		case entities.DirectionOutbound:
			process(tx, entities.DirectionOutbound, value)
		default:
			process(tx, entities.DirectionInbound, value)
			process(tx, entities.DirectionOutbound, value)
		}
	}

	board := make(entities.Leaderboard, 0, len(order))
	for _, uri := range order {
		board = append(board, *entries[uri])
	}
	sort.SliceStable(board, func(i, j int) bool {
		return board[i].Score() > board[j].Score()
	})
	return board
}

// TotalsByTokenType sums normalized values per token type and direction.
// It returns nil when there are no home addresses.
func TotalsByTokenType(txs []entities.Transaction, home AddressSet, referenceCurrency string, rates *RateTable) map[entities.TokenType]*entities.DirectionTotals {
	if len(home) == 0 {
		return nil
	}
	if referenceCurrency == "" {
		referenceCurrency = "USD"
	}

	totals := make(map[entities.TokenType]*entities.DirectionTotals)
	for _, tx := range txs {
		direction, ok := ClassifyDirection(tx, home)
		if !ok {
			continue
		}
		value, ok := displayValue(tx, nil)
		if !ok {
			continue
		}
		tokenType := ClassifyTokenType(tx.Token.Symbol)
		t, ok := totals[tokenType]
		if !ok {
			t = &entities.DirectionTotals{}
			totals[tokenType] = t
		}
		amount := NormalizeAmount(tx.Token, referenceCurrency, value, tx.Time(), rates)
		switch direction {
		case entities.DirectionInbound:
			t.Inbound += amount
		case entities.DirectionOutbound:
			t.Outbound += amount
		case entities.DirectionInternal:
			t.Internal += amount
		}
	}
	return totals
}
