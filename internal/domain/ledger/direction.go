package ledger

import (
	"strings"

	"github.com/bimakw/collective-ledger/internal/domain/entities"
)

// issuedTokenSymbols lists the symbols of tokens issued by collectives themselves
var issuedTokenSymbols = map[string]struct{}{
	"CHT": {},
}

// ClassifyTokenType returns TokenTypeToken for issued tokens and TokenTypeFiat otherwise
func ClassifyTokenType(symbol string) entities.TokenType {
	if _, ok := issuedTokenSymbols[symbol]; ok {
		return entities.TokenTypeToken
	}
	return entities.TokenTypeFiat
}

// AddressSet is a set of lowercase addresses
type AddressSet map[string]struct{}

// NewAddressSet builds an AddressSet, skipping empty addresses
func NewAddressSet(addrs ...string) AddressSet {
	set := make(AddressSet, len(addrs))
	for _, a := range addrs {
		if a == "" {
			continue
		}
		set[strings.ToLower(a)] = struct{}{}
	}
	return set
}

// Contains reports whether addr is in the set, ignoring case
func (s AddressSet) Contains(addr string) bool {
	if len(s) == 0 || addr == "" {
		return false
	}
	_, ok := s[strings.ToLower(addr)]
	return ok
}

// ClassifyDirection returns the direction of tx relative to home.
// The second result is false when neither endpoint is a home address.
func ClassifyDirection(tx entities.Transaction, home AddressSet) (entities.Direction, bool) {
	fromHome := home.Contains(tx.From)
	toHome := home.Contains(tx.To)

	switch {
	case fromHome && toHome:
		return entities.DirectionInternal, true
	case toHome:
		return entities.DirectionInbound, true
	case fromHome:
		return entities.DirectionOutbound, true
	default:
		return "", false
	}
}

// FilterTransactions returns the transactions of the given token type and direction.
// An empty tokenType matches every type and DirectionAll matches every classified
// transaction. Without home addresses the input is returned unchanged.
func FilterTransactions(txs []entities.Transaction, tokenType entities.TokenType, direction entities.Direction, home AddressSet) []entities.Transaction {
	if len(home) == 0 {
		return txs
	}

	out := make([]entities.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tokenType != "" {
			if tx.Token.Symbol == "" || ClassifyTokenType(tx.Token.Symbol) != tokenType {
				continue
			}
		}
		d, ok := ClassifyDirection(tx, home)
		if !ok {
			continue
		}
		if direction != "" && direction != entities.DirectionAll && d != direction {
			continue
		}
		out = append(out, tx)
	}
	return out
}
