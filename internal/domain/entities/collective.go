package entities

import (
	"strings"
)

// Wallet is an address controlled by a collective
type Wallet struct {
	Type    string   `json:"type"`
	Chain   string   `json:"chain"`
	Address string   `json:"address"`
	Tokens  []string `json:"tokens,omitempty"`
}

// Collective is an organization whose on-chain activity is aggregated
type Collective struct {
	Slug            string   `json:"slug"`
	Name            string   `json:"name"`
	PrimaryCurrency string   `json:"primaryCurrency"`
	Wallets         []Wallet `json:"wallets"`
	Tokens          []Token  `json:"tokens"`
	IgnoreTxs       []string `json:"ignoreTxs,omitempty"`
}

// HomeAddresses returns the lowercase, deduplicated wallet addresses
func (c *Collective) HomeAddresses() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(addr string) {
		addr = strings.ToLower(addr)
		if addr == "" {
			return
		}
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	for _, w := range c.Wallets {
		add(w.Address)
	}
	return out
}

// TokenAddresses returns the lowercase contract addresses of the collective's tokens
func (c *Collective) TokenAddresses() []string {
	out := make([]string, 0, len(c.Tokens))
	for _, t := range c.Tokens {
		out = append(out, strings.ToLower(t.Address))
	}
	return out
}

// IsIgnored reports whether txHash is on the collective's ignore list
func (c *Collective) IsIgnored(txHash string) bool {
	for _, h := range c.IgnoreTxs {
		if strings.EqualFold(h, txHash) {
			return true
		}
	}
	return false
}
