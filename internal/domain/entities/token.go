package entities

import (
	"strings"
	"time"
)

// DefaultDecimals is used when a token does not declare its decimals
const DefaultDecimals = 18

// Token represents an ERC-20 token known to the ledger
type Token struct {
	Chain                 string    `db:"chain" json:"chain"`
	Address               string    `db:"address" json:"address"`
	Name                  string    `db:"name" json:"name,omitempty"`
	Symbol                string    `db:"symbol" json:"symbol,omitempty"`
	Decimals              int       `db:"decimals" json:"decimals,omitempty"`
	ImageURL              string    `db:"-" json:"imageUrl,omitempty"`
	TotalIndexedTransfers int64     `db:"total_indexed_transfers" json:"-"`
	FirstSeenBlock        *int64    `db:"first_seen_block" json:"-"`
	LastSeenBlock         *int64    `db:"last_seen_block" json:"-"`
	CreatedAt             time.Time `db:"created_at" json:"-"`
	UpdatedAt             time.Time `db:"updated_at" json:"-"`
}

// EffectiveDecimals returns the declared decimals or DefaultDecimals when unset
func (t Token) EffectiveDecimals() int {
	if t.Decimals <= 0 {
		return DefaultDecimals
	}
	return t.Decimals
}

// Key returns the normalized (chain, address) identity of the token
func (t Token) Key() TokenKey {
	return NewTokenKey(t.Chain, t.Address)
}

// TokenKey identifies a token by chain and contract address
type TokenKey struct {
	Chain   string `json:"chain"`
	Address string `json:"address"`
}

// NewTokenKey builds a TokenKey with a lowercase address
func NewTokenKey(chain, address string) TokenKey {
	return TokenKey{
		Chain:   strings.ToLower(chain),
		Address: strings.ToLower(address),
	}
}

// String returns chain:address
func (k TokenKey) String() string {
	return k.Chain + ":" + k.Address
}

// TokenType distinguishes the collective's own issued token from other currencies
type TokenType string

const (
	TokenTypeToken TokenType = "token"
	TokenTypeFiat  TokenType = "fiat"
)
