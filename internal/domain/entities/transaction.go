package entities

import (
	"time"
)

// Direction is the direction of a transaction relative to a set of home addresses
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
	DirectionInternal Direction = "internal"
	DirectionAll      Direction = "all"
)

// Valid reports whether d is one of the known directions
func (d Direction) Valid() bool {
	switch d {
	case DirectionInbound, DirectionOutbound, DirectionInternal, DirectionAll:
		return true
	}
	return false
}

// Transaction is a normalized ERC-20 transfer record
type Transaction struct {
	ChainID     int64  `json:"chainId"`
	TxHash      string `json:"txHash"`
	LogIndex    int    `json:"logIndex"`
	BlockNumber int64  `json:"blockNumber"`
	Timestamp   int64  `json:"timestamp"` // unix seconds
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"` // integer string in the token's smallest unit
	Token       Token  `json:"token"`
}

// Time returns the block time of the transaction in UTC
func (tx Transaction) Time() time.Time {
	return time.Unix(tx.Timestamp, 0).UTC()
}

// TransactionFilter contains filters for querying transactions
type TransactionFilter struct {
	Chain          *string
	TokenAddresses []string
	Addresses      []string // matches either from or to
	FromBlock      *int64
	ToBlock        *int64
	FromTime       *time.Time
	ToTime         *time.Time
	Limit          int
	Offset         int
}

// DefaultTransactionFilter returns a filter with sensible defaults
func DefaultTransactionFilter() TransactionFilter {
	return TransactionFilter{
		Limit:  100,
		Offset: 0,
	}
}
