package fxrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/bimakw/collective-ledger/internal/domain/ledger"
)

// fileSuffix is the suffix of daily rate files named <symbol>.<currency>.fxrate.json
const fileSuffix = ".fxrate.json"

// ParseFileName extracts symbol and currency from a rate file name
func ParseFileName(name string) (symbol, currency string, ok bool) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, fileSuffix) {
		return "", "", false
	}
	parts := strings.Split(strings.TrimSuffix(base, fileSuffix), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return strings.ToUpper(parts[0]), strings.ToUpper(parts[1]), true
}

// Parse decodes a YYYYMMDD to rate mapping. Null rates are dropped.
func Parse(data []byte) (map[string]float64, error) {
	var raw map[string]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse rates: %w", err)
	}
	out := make(map[string]float64, len(raw))
	for day, rate := range raw {
		if rate == nil || len(day) != len(ledger.DateLayout) {
			continue
		}
		out[day] = *rate
	}
	return out, nil
}

// LoadDir reads every rate file in dir into a RateTable. A missing directory
// yields an empty table.
func LoadDir(dir string, logger *zap.Logger) (*ledger.RateTable, error) {
	table := ledger.NewRateTable()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Exchange rate directory not found", zap.String("dir", dir))
			return table, nil
		}
		return nil, fmt.Errorf("failed to read rate directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		symbol, currency, ok := ParseFileName(entry.Name())
		if !ok {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		rates, err := Parse(data)
		if err != nil {
			logger.Warn("Skipping malformed rate file",
				zap.String("file", entry.Name()),
				zap.Error(err),
			)
			continue
		}
		table.Add(symbol, currency, rates)
	}

	logger.Info("Loaded exchange rates", zap.Int("pairs", table.Len()))
	return table, nil
}
