/*
 * Copyright (c) 2024 Bima Kharisma Wicaksana
 * GitHub: https://github.com/bimakw
 *
 * Licensed under MIT License with Attribution Requirement.
 * See LICENSE file for details.
 */

package ethereum

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/bimakw/collective-ledger/internal/domain/entities"
	"github.com/bimakw/collective-ledger/internal/infrastructure/cache"
)

// ContractCaller executes read-only contract calls
type ContractCaller interface {
	CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

var _ ContractCaller = (*Client)(nil)

// ErrNoMetadata is returned when a contract answered none of name, symbol or decimals
var ErrNoMetadata = errors.New("contract returned no token metadata")

// MetadataFetcher reads ERC-20 token metadata via eth_call
type MetadataFetcher struct {
	caller ContractCaller
	chain  string
	cache  *cache.Cache
	logger *zap.Logger
}

// NewMetadataFetcher creates a metadata fetcher. Results are memoized in c when it is not nil.
func NewMetadataFetcher(caller ContractCaller, chain string, c *cache.Cache, logger *zap.Logger) *MetadataFetcher {
	return &MetadataFetcher{
		caller: caller,
		chain:  chain,
		cache:  c,
		logger: logger,
	}
}

// ERC-20 function selectors
var (
	nameSig     = common.FromHex("0x06fdde03")
	symbolSig   = common.FromHex("0x95d89b41")
	decimalsSig = common.FromHex("0x313ce567")
)

// TokenMetadataKey is the cache key of a token's metadata
func TokenMetadataKey(chain, address string) string {
	return chain + ":" + strings.ToLower(address)
}

// FetchToken returns the token at address with name, symbol and decimals filled in.
// Successful lookups are cached without expiry under chain:address.
func (f *MetadataFetcher) FetchToken(ctx context.Context, address string) (entities.Token, error) {
	address = strings.ToLower(address)
	load := func(ctx context.Context) (entities.Token, error) {
		return f.fetch(ctx, address)
	}
	if f.cache == nil {
		return load(ctx)
	}

	token, _, err := cache.Get(ctx, f.cache, TokenMetadataKey(f.chain, address), cache.Options[entities.Token]{
		Refresh: load,
	})
	return token, err
}

func (f *MetadataFetcher) fetch(ctx context.Context, address string) (entities.Token, error) {
	addr := common.HexToAddress(address)
	token := entities.Token{Chain: f.chain, Address: address}
	failures := 0

	name, err := f.fetchString(ctx, addr, nameSig)
	if err != nil {
		f.logger.Warn("Failed to fetch token name, using fallback",
			zap.String("token", address),
			zap.Error(err),
		)
		name = "Unknown"
		failures++
	}

	symbol, err := f.fetchString(ctx, addr, symbolSig)
	if err != nil {
		f.logger.Warn("Failed to fetch token symbol, using fallback",
			zap.String("token", address),
			zap.Error(err),
		)
		symbol = "UNK"
		failures++
	}

	decimals, err := f.fetchDecimals(ctx, addr)
	if err != nil {
		f.logger.Warn("Failed to fetch token decimals, using fallback",
			zap.String("token", address),
			zap.Error(err),
		)
		decimals = entities.DefaultDecimals
		failures++
	}

	if failures == 3 {
		return entities.Token{}, fmt.Errorf("%w: %s", ErrNoMetadata, address)
	}

	token.Name = name
	token.Symbol = symbol
	token.Decimals = decimals
	return token, nil
}

func (f *MetadataFetcher) fetchString(ctx context.Context, addr common.Address, selector []byte) (string, error) {
	result, err := f.caller.CallContract(ctx, addr, selector)
	if err != nil {
		return "", err
	}
	return decodeStringOrBytes32(result)
}

func (f *MetadataFetcher) fetchDecimals(ctx context.Context, addr common.Address) (int, error) {
	result, err := f.caller.CallContract(ctx, addr, decimalsSig)
	if err != nil {
		return 0, err
	}
	if len(result) < 32 {
		return 0, fmt.Errorf("invalid decimals response length: %d", len(result))
	}
	// uint8 right-aligned in a 32 byte word
	return int(result[31]), nil
}

// decodeStringOrBytes32 decodes either an ABI-encoded string or a raw bytes32
// value (as returned by MKR-style tokens)
func decodeStringOrBytes32(data []byte) (string, error) {
	if len(data) < 32 {
		return "", fmt.Errorf("data too short: %d bytes", len(data))
	}

	if len(data) >= 64 && new(big.Int).SetBytes(data[:32]).Uint64() == 32 {
		strLen := new(big.Int).SetBytes(data[32:64]).Uint64()
		if strLen == 0 {
			return "", nil
		}
		if uint64(len(data)-64) >= strLen {
			return strings.TrimRight(string(data[64:64+strLen]), "\x00"), nil
		}
	}

	trimmed := bytes.TrimRight(data[:32], "\x00")
	if isPrintableASCII(trimmed) {
		return string(trimmed), nil
	}
	return "0x" + hex.EncodeToString(data[:32]), nil
}

func isPrintableASCII(data []byte) bool {
	for _, b := range data {
		if b < 32 || b > 126 {
			return false
		}
	}
	return len(data) > 0
}

// FetchTokens fetches metadata for several contracts, skipping those that fail
func (f *MetadataFetcher) FetchTokens(ctx context.Context, addresses []string) map[string]entities.Token {
	results := make(map[string]entities.Token, len(addresses))

	for _, addr := range addresses {
		token, err := f.FetchToken(ctx, addr)
		if err != nil {
			f.logger.Warn("Failed to fetch metadata for token",
				zap.String("token", addr),
				zap.Error(err),
			)
			continue
		}
		results[token.Address] = token
	}

	return results
}
