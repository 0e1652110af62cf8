package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/bimakw/collective-ledger/internal/config"
)

// Client wraps the JSON-RPC client of one EVM chain with retry logic
type Client struct {
	client  *ethclient.Client
	config  config.EthereumConfig
	logger  *zap.Logger
	chainID *big.Int
}

// NewClient dials the node and checks that it serves the configured chain
func NewClient(cfg config.EthereumConfig, logger *zap.Logger) (*Client, error) {
	client, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to node: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	if chainID.Int64() != cfg.ChainID {
		return nil, fmt.Errorf("chain ID mismatch: expected %d, got %d", cfg.ChainID, chainID.Int64())
	}

	logger.Info("Connected to node",
		zap.String("rpc_url", cfg.RPCURL),
		zap.String("chain", cfg.ChainName),
		zap.Int64("chain_id", chainID.Int64()),
	)

	return &Client{
		client:  client,
		config:  cfg,
		logger:  logger,
		chainID: chainID,
	}, nil
}

// Close closes the node connection
func (c *Client) Close() {
	c.client.Close()
}

// withRetry calls fn up to MaxRetries+1 times, waiting RetryDelay between attempts
func withRetry[T any](ctx context.Context, c *Client, op string, fn func(context.Context) (T, error)) (T, error) {
	var result T
	var err error

	for i := 0; i <= c.config.MaxRetries; i++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}

		c.logger.Warn("RPC call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", i+1),
			zap.Error(err),
		)

		if i < c.config.MaxRetries {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}
	}

	return result, fmt.Errorf("failed to %s after %d retries: %w", op, c.config.MaxRetries, err)
}

// GetLatestBlockNumber returns the latest block number
func (c *Client) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	return withRetry(ctx, c, "get latest block number", c.client.BlockNumber)
}

// GetLogs retrieves logs matching the filter query
func (c *Client) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return withRetry(ctx, c, "get logs", func(ctx context.Context) ([]types.Log, error) {
		return c.client.FilterLogs(ctx, query)
	})
}

// GetBlockTimestamp returns the timestamp of a block in unix seconds
func (c *Client) GetBlockTimestamp(ctx context.Context, blockNumber uint64) (int64, error) {
	header, err := withRetry(ctx, c, "get block header", func(ctx context.Context) (*types.Header, error) {
		return c.client.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	})
	if err != nil {
		return 0, err
	}
	return int64(header.Time), nil
}

// CallContract executes a read-only call against the latest state
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return withRetry(ctx, c, "call contract", func(ctx context.Context) ([]byte, error) {
		return c.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
}

// ChainID returns the chain ID
func (c *Client) ChainID() *big.Int {
	return c.chainID
}

// ChainName returns the configured chain name
func (c *Client) ChainName() string {
	return c.config.ChainName
}

// BuildTransferFilterQuery builds a filter query for ERC-20 Transfer events of the given contracts
func BuildTransferFilterQuery(fromBlock, toBlock *big.Int, addresses []common.Address) ethereum.FilterQuery {
	return ethereum.FilterQuery{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Addresses: addresses,
		Topics: [][]common.Hash{
			{TransferEventSignature},
		},
	}
}
