package ethereum

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bimakw/collective-ledger/internal/domain/entities"
)

// TransferEventSignature is the keccak256 hash of Transfer(address,address,uint256)
var TransferEventSignature = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// ChainRef identifies the chain a log was read from
type ChainRef struct {
	Name string
	ID   int64
}

// ParseTransferEvent converts a raw Transfer log into a Transaction.
// Addresses are lowercased; the token carries only chain and address.
func ParseTransferEvent(log types.Log, chain ChainRef, blockTimestamp int64) (*entities.Transaction, error) {
	if len(log.Topics) != 3 {
		return nil, fmt.Errorf("invalid number of topics: expected 3, got %d", len(log.Topics))
	}
	if log.Topics[0] != TransferEventSignature {
		return nil, fmt.Errorf("not a Transfer event")
	}
	if len(log.Data) != 32 {
		return nil, fmt.Errorf("invalid data length: expected 32, got %d", len(log.Data))
	}

	from := common.BytesToAddress(log.Topics[1].Bytes())
	to := common.BytesToAddress(log.Topics[2].Bytes())
	value := new(big.Int).SetBytes(log.Data)

	return &entities.Transaction{
		ChainID:     chain.ID,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    int(log.Index),
		BlockNumber: int64(log.BlockNumber),
		Timestamp:   blockTimestamp,
		From:        strings.ToLower(from.Hex()),
		To:          strings.ToLower(to.Hex()),
		Value:       value.String(),
		Token: entities.Token{
			Chain:   chain.Name,
			Address: strings.ToLower(log.Address.Hex()),
		},
	}, nil
}

// ParseTransferLogs parses logs into transactions.
// It returns the parsed transactions and the indices of logs that failed.
func ParseTransferLogs(logs []types.Log, chain ChainRef, blockTimestamps map[uint64]int64) ([]entities.Transaction, []int) {
	txs := make([]entities.Transaction, 0, len(logs))
	var failed []int

	for i, log := range logs {
		if log.Removed {
			failed = append(failed, i)
			continue
		}
		ts, ok := blockTimestamps[log.BlockNumber]
		if !ok {
			failed = append(failed, i)
			continue
		}

		tx, err := ParseTransferEvent(log, chain, ts)
		if err != nil {
			failed = append(failed, i)
			continue
		}

		txs = append(txs, *tx)
	}

	return txs, failed
}

// IsTransferEvent checks if a log is a Transfer event
func IsTransferEvent(log types.Log) bool {
	return len(log.Topics) == 3 && log.Topics[0] == TransferEventSignature
}
