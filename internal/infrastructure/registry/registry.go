package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/bimakw/collective-ledger/internal/domain/entities"
	"github.com/bimakw/collective-ledger/internal/domain/repositories"
)

// Ensure FileRegistry implements CollectiveRepository
var _ repositories.CollectiveRepository = (*FileRegistry)(nil)

// tokenFileEntry is a token in tokens.json, keyed by chain then address
type tokenFileEntry struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	ImageURL string `json:"imageUrl"`
}

type collectivesFile struct {
	Collectives []entities.Collective `json:"collectives"`
}

// FileRegistry serves collectives and token metadata loaded from JSON files
type FileRegistry struct {
	collectives map[string]*entities.Collective
	order       []string
	tokens      map[entities.TokenKey]entities.Token
}

// Load reads the collectives and tokens files
func Load(collectivesPath, tokensPath string, logger *zap.Logger) (*FileRegistry, error) {
	tokensRaw, err := os.ReadFile(tokensPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read tokens file: %w", err)
	}
	collectivesRaw, err := os.ReadFile(collectivesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read collectives file: %w", err)
	}

	reg, err := Parse(collectivesRaw, tokensRaw)
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded registry",
		zap.Int("collectives", len(reg.order)),
		zap.Int("tokens", len(reg.tokens)),
	)
	return reg, nil
}

// Parse builds a registry from the contents of the collectives and tokens files
func Parse(collectivesJSON, tokensJSON []byte) (*FileRegistry, error) {
	var byChain map[string]map[string]tokenFileEntry
	if err := json.Unmarshal(tokensJSON, &byChain); err != nil {
		return nil, fmt.Errorf("failed to parse tokens file: %w", err)
	}

	var cf collectivesFile
	if err := json.Unmarshal(collectivesJSON, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse collectives file: %w", err)
	}

	reg := &FileRegistry{
		collectives: make(map[string]*entities.Collective),
		tokens:      make(map[entities.TokenKey]entities.Token),
	}

	for chain, byAddr := range byChain {
		for addr, t := range byAddr {
			token := entities.Token{
				Chain:    strings.ToLower(chain),
				Address:  strings.ToLower(addr),
				Name:     t.Name,
				Symbol:   t.Symbol,
				Decimals: t.Decimals,
				ImageURL: t.ImageURL,
			}
			reg.tokens[token.Key()] = token
		}
	}

	for i := range cf.Collectives {
		c := cf.Collectives[i]
		if c.Slug == "" {
			return nil, fmt.Errorf("collective at index %d has no slug", i)
		}
		if _, dup := reg.collectives[c.Slug]; dup {
			return nil, fmt.Errorf("duplicate collective slug %q", c.Slug)
		}
		c.Tokens = reg.resolveTokens(&c)
		reg.collectives[c.Slug] = &c
		reg.order = append(reg.order, c.Slug)
	}

	return reg, nil
}

// resolveTokens merges the explicit tokens of a collective with the tokens its
// wallets reference by symbol, enriching them with known metadata
func (r *FileRegistry) resolveTokens(c *entities.Collective) []entities.Token {
	seen := make(map[entities.TokenKey]struct{})
	var out []entities.Token
	add := func(t entities.Token) {
		if known, ok := r.tokens[t.Key()]; ok {
			t = mergeToken(known, t)
		}
		t.Chain = strings.ToLower(t.Chain)
		t.Address = strings.ToLower(t.Address)
		if _, ok := seen[t.Key()]; ok {
			return
		}
		seen[t.Key()] = struct{}{}
		out = append(out, t)
	}

	for _, t := range c.Tokens {
		add(t)
	}
	for _, w := range c.Wallets {
		for _, symbol := range w.Tokens {
			if t, ok := r.tokenBySymbol(w.Chain, symbol); ok {
				add(t)
			}
		}
	}
	return out
}

func mergeToken(known, override entities.Token) entities.Token {
	if override.Name != "" {
		known.Name = override.Name
	}
	if override.Symbol != "" {
		known.Symbol = override.Symbol
	}
	if override.Decimals > 0 {
		known.Decimals = override.Decimals
	}
	if override.ImageURL != "" {
		known.ImageURL = override.ImageURL
	}
	return known
}

func (r *FileRegistry) tokenBySymbol(chain, symbol string) (entities.Token, bool) {
	chain = strings.ToLower(chain)
	for _, t := range r.tokens {
		if t.Chain == chain && strings.EqualFold(t.Symbol, symbol) {
			return t, true
		}
	}
	return entities.Token{}, false
}

// GetBySlug returns a copy of the collective or nil when it does not exist
func (r *FileRegistry) GetBySlug(_ context.Context, slug string) (*entities.Collective, error) {
	c, ok := r.collectives[slug]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// GetAll returns every collective in file order
func (r *FileRegistry) GetAll(_ context.Context) ([]entities.Collective, error) {
	out := make([]entities.Collective, 0, len(r.order))
	for _, slug := range r.order {
		out = append(out, *r.collectives[slug])
	}
	return out, nil
}

// KnownTokens returns the tokens of tokens.json plus any declared only by collectives
func (r *FileRegistry) KnownTokens(_ context.Context) ([]entities.Token, error) {
	all := make(map[entities.TokenKey]entities.Token, len(r.tokens))
	for k, t := range r.tokens {
		all[k] = t
	}
	for _, c := range r.collectives {
		for _, t := range c.Tokens {
			if _, ok := all[t.Key()]; !ok {
				all[t.Key()] = t
			}
		}
	}

	out := make([]entities.Token, 0, len(all))
	for _, t := range all {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().String() < out[j].Key().String()
	})
	return out, nil
}

// TokenLookup returns the known token for chain and address
func (r *FileRegistry) TokenLookup(chain, address string) (entities.Token, bool) {
	t, ok := r.tokens[entities.NewTokenKey(chain, address)]
	return t, ok
}
