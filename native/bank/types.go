package bank

import (
	"math/big"
	"strings"
)

// Metadata describes a registered fungible token.
type Metadata struct {
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name"`
	Decimals      uint8    `json:"decimals"`
	MintAuthority [20]byte `json:"mintAuthority"`
	MintPaused    bool     `json:"mintPaused"`
	TotalSupply   *big.Int `json:"totalSupply"`
}

// Clone returns a deep copy of the metadata.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	clone := *m
	if m.TotalSupply != nil {
		clone.TotalSupply = new(big.Int).Set(m.TotalSupply)
	} else {
		clone.TotalSupply = new(big.Int)
	}
	return &clone
}

// NormalizeSymbol upper-cases and trims a token symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
